package probe

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/telkar/fleetward/internal/metrics"
	"github.com/telkar/fleetward/internal/sshconn"
	"github.com/telkar/fleetward/internal/status"
)

// Result is the probe verdict for one host in one pass.
type Result struct {
	Status status.Status // Running, Restarted or Error
	Detail string        // human-readable cause when Status is Error
}

// Prober decides whether the watched script is running and restarts it when
// absent. It never panics or propagates errors past its boundary; every
// outcome is folded into a Result.
type Prober struct{}

// CheckCommand builds the remote process-list probe. It greps for the
// script's base name and drops the grep entry itself; the caller then tests
// the full path against the output.
func CheckCommand(scriptPath string) string {
	return fmt.Sprintf("ps -eo args | grep %s | grep -v grep", path.Base(scriptPath))
}

// RestartCommand builds the detached restart invocation: backgrounded,
// output discarded, survives the session closing.
func RestartCommand(scriptPath string) string {
	return fmt.Sprintf("nohup /bin/sh %s > /dev/null 2>&1 &", scriptPath)
}

// Check probes hostname through r and restarts the script when it is not
// found in the process list. The runner is closed on every exit path.
//
// The membership test is a substring match of the full script path against
// the raw process-list text. That is approximate on purpose: a command line
// merely containing the path matches, and unusual quoting can hide a live
// process. Exact "is it running" semantics are best-effort over a remote
// shell.
//
// A Restarted verdict asserts only that the restart command was issued; the
// restart is not re-verified until the next pass.
func (Prober) Check(ctx context.Context, r sshconn.Runner, hostname, scriptPath string) Result {
	defer func() { _ = r.Close() }()

	out, err := r.Run(ctx, CheckCommand(scriptPath))
	if err != nil {
		slog.Error("probe failed", "host", hostname, "err", err)
		return Result{Status: status.Error, Detail: err.Error()}
	}

	if out != "" && strings.Contains(out, scriptPath) {
		slog.Info("script is running", "host", hostname, "script", scriptPath)
		return Result{Status: status.Running}
	}

	slog.Info("script not running, restarting", "host", hostname, "script", scriptPath)
	if _, err := r.Run(ctx, RestartCommand(scriptPath)); err != nil {
		slog.Error("restart failed", "host", hostname, "err", err)
		return Result{Status: status.Error, Detail: err.Error()}
	}
	metrics.IncRestartIssued(hostname)
	slog.Info("restart command issued", "host", hostname, "script", scriptPath)
	return Result{Status: status.Restarted}
}
