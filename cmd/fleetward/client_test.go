package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostStatusOK(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/status/a.example.com", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"index":1,"hostname":"a.example.com","status":"Running","last_check":"2026-08-26T10:00:00Z","username":"root"}`))
	}))
	defer api.Close()

	c := newStatusClient(api.URL, time.Second)
	rec, err := c.hostStatus("a.example.com")
	require.NoError(t, err)
	assert.Equal(t, "a.example.com", rec.Hostname)
	assert.Equal(t, 1, rec.Index)
}

func TestHostStatusNotFound(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"host not found"}`))
	}))
	defer api.Close()

	c := newStatusClient(api.URL, time.Second)
	_, err := c.hostStatus("unknown.example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not known")
}

func TestHostStatusBadJSON(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{{{`))
	}))
	defer api.Close()

	c := newStatusClient(api.URL, time.Second)
	_, err := c.hostStatus("a.example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestHostStatusServerError(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer api.Close()

	c := newStatusClient(api.URL, time.Second)
	_, err := c.hostStatus("a.example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}
