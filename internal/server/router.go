package server

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/telkar/fleetward/internal/status"
)

// Router provides embeddable HTTP handlers for the status read API.
// Endpoints:
//
//	GET {basePath}/                    HTML overview of all records
//	GET {basePath}/status/:hostname    JSON of one record; 404 when unknown
//	GET {basePath}/health              liveness flag and process uptime
//
// The router only reads the store; nothing here mutates state.
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	store     *status.Store
	startedAt time.Time
	basePath  string
}

// NewRouter constructs a Router over store. startedAt feeds the uptime
// reported by /health; it is injected rather than read from a global.
func NewRouter(store *status.Store, startedAt time.Time, basePath string) *Router {
	return &Router{store: store, startedAt: startedAt, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/", r.handleOverview)
	group.GET("/status/:hostname", r.handleStatus)
	group.GET("/health", r.handleHealth)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// The listener is opened before returning, so an unusable addr (port in
// use, bad host) surfaces here instead of dying silently in a goroutine.
// Shut it down via http.Server's Shutdown or Close.
func NewServer(addr, basePath string, store *status.Store, startedAt time.Time) (*http.Server, error) {
	r := NewRouter(store, startedAt, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("status server stopped", "addr", addr, "err", err)
		}
	}()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type healthResp struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
}

var overviewTmpl = template.Must(template.New("overview").Parse(`<h1>Host Status Overview</h1>
<table border="1">
    <tr>
        <th>Index</th>
        <th>Hostname</th>
        <th>Status</th>
        <th>Last Check</th>
        <th>Username</th>
    </tr>
    {{range .}}
    <tr>
        <td>{{.Index}}</td>
        <td><a href="status/{{.Hostname}}">{{.Hostname}}</a></td>
        <td>{{.StatusText}}</td>
        <td>{{.LastCheck.Format "2006-01-02 15:04:05"}}</td>
        <td>{{.Username}}</td>
    </tr>
    {{end}}
</table>
`))

func (r *Router) handleOverview(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := overviewTmpl.Execute(c.Writer, r.store.Snapshot()); err != nil {
		_ = c.Error(err)
	}
}

func (r *Router) handleStatus(c *gin.Context) {
	hostname := c.Param("hostname")
	rec, ok := r.store.Get(hostname)
	if !ok {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "host not found"})
		return
	}
	writeJSON(c, http.StatusOK, rec)
}

func (r *Router) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, healthResp{
		Status: "healthy",
		Uptime: time.Since(r.startedAt).Seconds(),
	})
}
