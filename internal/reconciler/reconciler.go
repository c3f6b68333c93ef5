// Package reconciler drives the fleet-health loop: one synchronous pass at
// startup, then a full pass every interval, with a short tick in between for
// heartbeat logging and cooperative shutdown.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/telkar/fleetward/internal/config"
	"github.com/telkar/fleetward/internal/history"
	"github.com/telkar/fleetward/internal/metrics"
	"github.com/telkar/fleetward/internal/probe"
	"github.com/telkar/fleetward/internal/sshconn"
	"github.com/telkar/fleetward/internal/status"
)

// heartbeatEvery is the number of ticks between heartbeat log lines.
const heartbeatEvery = 5

// Connector supplies an authenticated remote session for one host.
type Connector interface {
	Connect(ctx context.Context, host config.Host) (sshconn.Runner, error)
}

// Prober decides the run state of the watched script over a session.
type Prober interface {
	Check(ctx context.Context, r sshconn.Runner, hostname, scriptPath string) probe.Result
}

type dialerConnector struct {
	d *sshconn.Dialer
}

func (c dialerConnector) Connect(ctx context.Context, host config.Host) (sshconn.Runner, error) {
	return c.d.Connect(ctx, host)
}

// Reconciler owns the reconciliation loop. Hosts are probed sequentially;
// a failing host never aborts the pass, it only extends its latency.
type Reconciler struct {
	hosts    []config.Host
	conn     Connector
	prober   Prober
	store    *status.Store
	sink     history.Sink // nil disables history
	interval time.Duration
	tick     time.Duration
}

// New builds a Reconciler from configuration with a real SSH connector.
func New(cfg *config.Config, store *status.Store, sink history.Sink) *Reconciler {
	d := sshconn.NewDialer(cfg.Monitor.Retries, cfg.Monitor.RetryDelay, cfg.Monitor.CommandTimeout)
	return NewWithConnector(cfg, store, sink, dialerConnector{d: d}, probe.Prober{})
}

// NewWithConnector is New with the transport and prober injected. Tests use
// it to run passes against fakes.
func NewWithConnector(cfg *config.Config, store *status.Store, sink history.Sink, conn Connector, p Prober) *Reconciler {
	return &Reconciler{
		hosts:    cfg.Hosts,
		conn:     conn,
		prober:   p,
		store:    store,
		sink:     sink,
		interval: cfg.Monitor.Interval,
		tick:     cfg.Monitor.Tick,
	}
}

// Run executes the initial pass synchronously, then enters the periodic
// regime until ctx is cancelled. The status store is therefore populated
// before Run yields control for the first time at a tick boundary.
func (r *Reconciler) Run(ctx context.Context) error {
	metrics.SetHostsConfigured(len(r.hosts))
	slog.Info("running initial pass", "hosts", len(r.hosts))
	r.RunPass(ctx)

	slog.Info("entering periodic regime", "interval", r.interval, "tick", r.tick)
	nextDue := time.Now().Add(r.interval)
	heartbeat := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("reconciler stopping")
			return ctx.Err()
		case <-time.After(r.tick):
		}
		heartbeat++
		if heartbeat%heartbeatEvery == 0 {
			slog.Info("heartbeat: still running", "ticks", heartbeat)
		}
		if !time.Now().Before(nextDue) {
			r.RunPass(ctx)
			nextDue = nextDue.Add(r.interval)
		}
	}
}

// RunPass checks every configured host once, in configuration order, and
// writes one record per host. Failures are folded into records; nothing
// propagates. After the pass a summary table is logged.
func (r *Reconciler) RunPass(ctx context.Context) {
	slog.Info("starting pass", "hosts", len(r.hosts))
	started := time.Now()

	for _, host := range r.hosts {
		rec := r.checkHost(ctx, host)
		r.store.Set(rec)
		metrics.IncHostCheck(host.Hostname, string(rec.Status))
		r.record(ctx, rec)
	}

	metrics.IncPass()
	metrics.ObservePassDuration(time.Since(started).Seconds())
	slog.Info("pass complete", "hosts", len(r.hosts), "elapsed", time.Since(started))
	slog.Info("status summary\n" + Table(r.store.Snapshot()))
}

func (r *Reconciler) checkHost(ctx context.Context, host config.Host) status.Record {
	slog.Info("checking host", "index", host.Index, "host", host.Hostname)
	rec := status.Record{
		Index:    host.Index,
		Hostname: host.Hostname,
		Username: host.Username,
	}

	runner, err := r.conn.Connect(ctx, host)
	if err != nil {
		rec.Status = status.ConnectionFailed
		rec.LastCheck = time.Now()
		return rec
	}

	res := r.prober.Check(ctx, runner, host.Hostname, host.ScriptPath)
	rec.Status = res.Status
	rec.Detail = res.Detail
	rec.LastCheck = time.Now()
	return rec
}

func (r *Reconciler) record(ctx context.Context, rec status.Record) {
	if r.sink == nil {
		return
	}
	e := history.Event{OccurredAt: rec.LastCheck.UTC(), Record: rec}
	if err := r.sink.Send(ctx, e); err != nil {
		slog.Error("history sink failed", "host", rec.Hostname, "err", err)
	}
}

// Table renders records as the fixed-width ASCII summary logged after each
// pass.
func Table(recs []status.Record) string {
	const sep = "+---------+-----------------------+--------------------+-------------------------+----------+\n"
	var b strings.Builder
	b.WriteString(sep)
	b.WriteString("| Index   | Hostname              | Status             | Last Check              | Username |\n")
	b.WriteString(sep)
	for _, rec := range recs {
		fmt.Fprintf(&b, "| %-7d | %-21s | %-18s | %-23s | %-8s |\n",
			rec.Index,
			clip(rec.Hostname, 21),
			clip(rec.StatusText(), 18),
			rec.LastCheck.Format("2006-01-02 15:04:05"),
			clip(rec.Username, 8),
		)
		b.WriteString(sep)
	}
	return b.String()
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
