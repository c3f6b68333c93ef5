package factory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telkar/fleetward/internal/history"
	"github.com/telkar/fleetward/internal/status"
)

func TestNewSinkFromDSNSQLite(t *testing.T) {
	for _, dsn := range []string{
		"sqlite://" + filepath.Join(t.TempDir(), "a.db"),
		filepath.Join(t.TempDir(), "b.db"),
		":memory:",
	} {
		sink, err := NewSinkFromDSN(dsn)
		require.NoErrorf(t, err, "dsn %q", dsn)

		e := history.Event{
			OccurredAt: time.Now().UTC(),
			Record:     status.Record{Index: 1, Hostname: "a.example.com", Status: status.Running},
		}
		assert.NoError(t, sink.Send(context.Background(), e))
		assert.NoError(t, sink.Close())
	}
}

func TestNewSinkFromDSNEmpty(t *testing.T) {
	_, err := NewSinkFromDSN("")
	assert.Error(t, err)
	_, err = NewSinkFromDSN("   ")
	assert.Error(t, err)
}

func TestNewSinkFromDSNUnsupported(t *testing.T) {
	_, err := NewSinkFromDSN("redis://localhost:6379")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported DSN")
}
