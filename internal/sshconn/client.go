package sshconn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/ssh"
)

// Runner executes remote commands over an established connection. The probe
// consumes this interface so it can be tested without a live SSH server.
type Runner interface {
	// Run executes cmd remotely and returns its stdout. A nonzero remote
	// exit status is not an error; only transport and session failures are.
	Run(ctx context.Context, cmd string) (string, error)
	Close() error
}

// Client wraps an authenticated *ssh.Client. Each Run opens a fresh session,
// so one Client can execute several commands.
type Client struct {
	ssh            *ssh.Client
	commandTimeout time.Duration
}

// Run executes cmd in a new session and returns its stdout. The exit status
// is deliberately ignored: a probe pipeline ending in grep exits nonzero
// when nothing matches, which is an answer, not a failure. The command is
// bounded by the configured timeout so a hung remote command cannot stall a
// pass indefinitely; on timeout or cancellation the session is torn down.
func (c *Client) Run(ctx context.Context, cmd string) (string, error) {
	session, err := c.ssh.NewSession()
	if err != nil {
		return "", fmt.Errorf("new session: %w", err)
	}
	defer func() { _ = session.Close() }()

	if c.commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.commandTimeout)
		defer cancel()
	}

	var stdout bytes.Buffer
	session.Stdout = &stdout

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case err := <-done:
		var exitErr *ssh.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			return "", fmt.Errorf("remote command %q: %w", cmd, err)
		}
		return stdout.String(), nil
	case <-ctx.Done():
		// Closing the session unblocks the Run goroutine.
		_ = session.Close()
		return "", fmt.Errorf("remote command %q: %w", cmd, ctx.Err())
	}
}

// Close terminates the underlying SSH connection.
func (c *Client) Close() error {
	return c.ssh.Close()
}
