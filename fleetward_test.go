package fleetward

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telkar/fleetward/internal/testutil/sshd"
)

const (
	checkCmd   = "ps -eo args | grep run.sh | grep -v grep"
	restartCmd = "nohup /bin/sh /opt/app/run.sh > /dev/null 2>&1 &"
)

func monitorFor(t *testing.T, srv *sshd.Server) *Monitor {
	t.Helper()
	cfg := &Config{Hosts: []Host{{
		Index:      1,
		Hostname:   "127.0.0.1",
		Port:       srv.Port(),
		Username:   "monitor",
		Password:   "secret",
		ScriptPath: "/opt/app/run.sh",
	}}}
	cfg.Normalize()
	cfg.Monitor.RetryDelay = 10 * time.Millisecond
	return New(cfg)
}

func TestPassScriptRunning(t *testing.T) {
	srv := sshd.New(t, sshd.Options{
		Username: "monitor",
		Password: "secret",
		Script: map[string]sshd.Response{
			checkCmd: {Stdout: "/bin/sh /opt/app/run.sh --flag\n"},
		},
	})
	srv.Start()
	defer srv.Stop()

	m := monitorFor(t, srv)
	m.RunPass(context.Background())

	rec, err := m.Status("127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, Running, rec.Status)
	assert.Equal(t, []string{checkCmd}, srv.Commands(), "no restart for a running script")
}

func TestPassScriptAbsentRestarts(t *testing.T) {
	srv := sshd.New(t, sshd.Options{
		Username: "monitor",
		Password: "secret",
		Script: map[string]sshd.Response{
			checkCmd: {Stdout: "", ExitStatus: 1},
		},
	})
	srv.Start()
	defer srv.Stop()

	m := monitorFor(t, srv)
	m.RunPass(context.Background())

	rec, err := m.Status("127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, Restarted, rec.Status)
	assert.Equal(t, []string{checkCmd, restartCmd}, srv.Commands(), "exactly one restart command")
}

func TestStatusUnknownHost(t *testing.T) {
	m := New(&Config{})
	_, err := m.Status("unknown.example.com")
	assert.ErrorIs(t, err, ErrUnknownHost)
}

func TestHTTPHandlerServesStore(t *testing.T) {
	srv := sshd.New(t, sshd.Options{
		Username: "monitor",
		Password: "secret",
		Script: map[string]sshd.Response{
			checkCmd: {Stdout: "/bin/sh /opt/app/run.sh\n"},
		},
	})
	srv.Start()
	defer srv.Stop()

	m := monitorFor(t, srv)
	m.RunPass(context.Background())

	h := NewHTTPHandler("", m)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/127.0.0.1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Running"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/unknown.example.com", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestStatusTable(t *testing.T) {
	m := New(&Config{})
	table := m.StatusTable()
	assert.Contains(t, table, "Hostname")
}
