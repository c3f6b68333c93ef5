package sshconn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/telkar/fleetward/internal/config"
	"github.com/telkar/fleetward/internal/metrics"
)

// Dialer opens authenticated SSH sessions with a fixed retry budget.
// A zero Dialer is not usable; construct with NewDialer.
type Dialer struct {
	Retries        int
	Delay          time.Duration
	DialTimeout    time.Duration
	CommandTimeout time.Duration

	keys *KnownKeys
}

// NewDialer returns a Dialer with the given retry budget. Host keys are
// checked trust-on-first-use: the first key presented by a host is
// remembered for the life of the process and must match thereafter.
func NewDialer(retries int, delay, commandTimeout time.Duration) *Dialer {
	return &Dialer{
		Retries:        retries,
		Delay:          delay,
		DialTimeout:    10 * time.Second,
		CommandTimeout: commandTimeout,
		keys:           NewKnownKeys(),
	}
}

// Connect dials host and authenticates, retrying with the fixed delay on
// any failure. It returns on the first success; after the budget is
// exhausted it returns the last error wrapped with the attempt count.
// Context cancellation aborts the inter-attempt wait.
func (d *Dialer) Connect(ctx context.Context, host config.Host) (*Client, error) {
	cfg := &ssh.ClientConfig{
		User:            host.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(host.Password)},
		HostKeyCallback: d.keys.Callback(),
		Timeout:         d.DialTimeout,
	}

	var lastErr error
	for attempt := 1; attempt <= d.Retries; attempt++ {
		metrics.IncConnectAttempt(host.Hostname)
		client, err := ssh.Dial("tcp", host.Addr(), cfg)
		if err == nil {
			slog.Info("connected", "host", host.Hostname, "attempt", attempt)
			return &Client{ssh: client, commandTimeout: d.CommandTimeout}, nil
		}
		lastErr = err
		slog.Error("connect failed", "host", host.Hostname, "attempt", attempt, "retries", d.Retries, "err", err)
		select {
		case <-time.After(d.Delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("connect %s: %w", host.Hostname, ctx.Err())
		}
	}
	return nil, fmt.Errorf("connect %s: %d attempts failed: %w", host.Hostname, d.Retries, lastErr)
}
