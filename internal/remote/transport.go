package remote

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultAttemptTimeout = 30 * time.Second
	defaultMaxAttempts    = 3

	// Keepalive: probe every 60s, three missed probes kill the session.
	keepaliveInterval = 60
	keepaliveCountMax = 3

	// backoffUnit * attempt number is slept before the next retry.
	backoffUnit = 2 * time.Second
)

var (
	sshAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_command_attempts_total",
			Help: "Remote command attempts by host and outcome",
		},
		[]string{"host", "outcome"},
	)

	sshCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_command_duration_seconds",
			Help:    "Remote command duration per attempt in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)
)

// Result is the outcome of a successful remote command.
type Result struct {
	Stdout   string
	ExitCode int
}

// Error is the terminal transport failure after all attempts are
// exhausted. It carries the original command text for diagnostics; the
// transport itself never retries past this point.
type Error struct {
	Host     string
	Command  string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote command failed on %s after %d attempts: %v (command: %s)",
		e.Host, e.Attempts, e.Err, e.Command)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transport executes one remote command per call over a single trusted
// channel. It applies a connection timeout, a per-attempt deadline and a
// bounded retry sequence; it does not distinguish the retry-eligible
// failure classes (timeout, connect failure, non-zero exit). There is no
// idempotency: a run whose attempt times out after the remote side already
// forked leaves an orphaned launch — accepted, not silently fixed.
type Transport struct {
	connectTimeout time.Duration
	attemptTimeout time.Duration
	maxAttempts    int
	log            *slog.Logger

	// run performs one attempt; sleep waits between attempts. Both are
	// swapped out in tests.
	run   func(ctx context.Context, ep Endpoint, command string) (string, error)
	sleep func(d time.Duration)
}

type TransportOption func(*Transport)

func WithTimeouts(connect, attempt time.Duration) TransportOption {
	return func(t *Transport) {
		t.connectTimeout = connect
		t.attemptTimeout = attempt
	}
}

func WithMaxAttempts(n int) TransportOption {
	return func(t *Transport) {
		if n > 0 {
			t.maxAttempts = n
		}
	}
}

func NewTransport(log *slog.Logger, opts ...TransportOption) *Transport {
	t := &Transport{
		connectTimeout: defaultConnectTimeout,
		attemptTimeout: defaultAttemptTimeout,
		maxAttempts:    defaultMaxAttempts,
		log:            log,
		sleep:          time.Sleep,
	}
	t.run = t.runSSH
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Execute runs command on ep with bounded retries. The backoff before
// retry n+1 is n * 2s; no delay follows the final failed attempt. Every
// attempt is logged, success or failure; logging never blocks or fails
// the command. Trailing newlines are stripped from the captured stdout.
func (t *Transport) Execute(ctx context.Context, ep Endpoint, command string) (*Result, error) {
	var lastErr error

	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, t.attemptTimeout)
		start := time.Now()
		stdout, err := t.run(attemptCtx, ep, command)
		cancel()

		sshCommandDuration.WithLabelValues(ep.Host).Observe(time.Since(start).Seconds())

		if err == nil {
			sshAttemptsTotal.WithLabelValues(ep.Host, "success").Inc()
			t.log.Info("remote command succeeded",
				"host", ep.Host,
				"attempt", attempt,
				"command", command,
			)
			return &Result{Stdout: strings.TrimRight(stdout, "\n"), ExitCode: 0}, nil
		}

		lastErr = err
		sshAttemptsTotal.WithLabelValues(ep.Host, "failure").Inc()
		t.log.Warn("remote command attempt failed",
			"host", ep.Host,
			"attempt", attempt,
			"max_attempts", t.maxAttempts,
			"command", command,
			"error", err,
		)

		if attempt < t.maxAttempts {
			t.sleep(time.Duration(attempt) * backoffUnit)
		}
	}

	return nil, &Error{
		Host:     ep.Host,
		Command:  command,
		Attempts: t.maxAttempts,
		Err:      lastErr,
	}
}

// runSSH shells out to the system ssh binary in batch mode. The remote
// command arrives as a single pre-quoted string; ssh hands it to the
// remote shell verbatim.
func (t *Transport) runSSH(ctx context.Context, ep Endpoint, command string) (string, error) {
	args := []string{
		"-o", "BatchMode=yes",
		"-o", fmt.Sprintf("ConnectTimeout=%d", int(t.connectTimeout.Seconds())),
		"-o", fmt.Sprintf("ServerAliveInterval=%d", keepaliveInterval),
		"-o", fmt.Sprintf("ServerAliveCountMax=%d", keepaliveCountMax),
	}
	if ep.KeyPath != "" {
		args = append(args, "-i", ep.KeyPath)
	}
	args = append(args, ep.Host, "--", command)

	cmd := exec.CommandContext(ctx, "ssh", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("ssh %s timed out: %w", ep.Host, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("ssh %s: %s: %w", ep.Host, msg, err)
	}

	return stdout.String(), nil
}
