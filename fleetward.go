// Package fleetward verifies over SSH that a watched script is alive on
// each configured remote host, restarts it when absent, and publishes the
// observed state through an HTTP read API.
package fleetward

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/telkar/fleetward/internal/config"
	"github.com/telkar/fleetward/internal/history"
	"github.com/telkar/fleetward/internal/history/factory"
	"github.com/telkar/fleetward/internal/metrics"
	"github.com/telkar/fleetward/internal/reconciler"
	iapi "github.com/telkar/fleetward/internal/server"
	"github.com/telkar/fleetward/internal/status"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Record = status.Record

type Status = status.Status

const (
	Running          = status.Running
	Restarted        = status.Restarted
	ConnectionFailed = status.ConnectionFailed
	Error            = status.Error
)

type Config = cfg.Config

type Host = cfg.Host

type HistorySink = history.Sink

// ErrUnknownHost is returned by Monitor.Status for a hostname that has no
// record yet.
var ErrUnknownHost = errors.New("unknown host")

// Monitor is a thin facade over the internal reconciler and status store.
// It provides a stable public API for embedding.
type Monitor struct {
	cfg       *cfg.Config
	store     *status.Store
	sink      history.Sink
	rec       *reconciler.Reconciler
	startedAt time.Time
}

// New creates a Monitor from configuration. Call SetHistorySink before Run
// to enable the audit sink.
func New(c *Config) *Monitor {
	return &Monitor{cfg: c, store: status.NewStore(), startedAt: time.Now()}
}

// SetHistorySink attaches an audit sink fed one event per host per pass.
func (m *Monitor) SetHistorySink(sink HistorySink) { m.sink = sink }

// reconciler builds the loop on first use so remembered host keys survive
// across passes of the same Monitor. Not safe to race with SetHistorySink.
func (m *Monitor) reconciler() *reconciler.Reconciler {
	if m.rec == nil {
		m.rec = reconciler.New(m.cfg, m.store, m.sink)
	}
	return m.rec
}

// Run performs the initial pass and then reconciles periodically until ctx
// is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	return m.reconciler().Run(ctx)
}

// RunPass performs exactly one full pass over all configured hosts.
func (m *Monitor) RunPass(ctx context.Context) {
	m.reconciler().RunPass(ctx)
}

// Status returns the last record for hostname.
func (m *Monitor) Status(hostname string) (Record, error) {
	rec, ok := m.store.Get(hostname)
	if !ok {
		return Record{}, ErrUnknownHost
	}
	return rec, nil
}

// StatusAll returns a snapshot of all records ordered by host index.
func (m *Monitor) StatusAll() []Record { return m.store.Snapshot() }

// StatusTable renders the snapshot as the fixed-width ASCII summary table.
func (m *Monitor) StatusTable() string { return reconciler.Table(m.store.Snapshot()) }

// LoadConfig reads the TOML config at path (empty for env-only) and merges
// hosts discovered from HOSTNAME_N environment variables.
func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// NewHistorySink builds an audit sink from a DSN
// (sqlite://, postgres://, clickhouse://).
func NewHistorySink(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// NewHTTPServer starts the status read API on addr, serving this monitor's
// store. It returns an error when addr cannot be bound; otherwise the server
// runs in its own goroutine until Shutdown.
func NewHTTPServer(addr, basePath string, m *Monitor) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, m.store, m.startedAt)
}

// NewHTTPHandler returns the read API as an http.Handler for mounting in an
// existing server or framework.
func NewHTTPHandler(basePath string, m *Monitor) http.Handler {
	return iapi.NewRouter(m.store, m.startedAt, basePath).Handler()
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It returns any immediate listen error; otherwise it runs
// the server in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
