// Package runner spawns external commands, waits for them to exit and
// captures their output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// drainDelay is the WaitDelay used when no Grace is configured.
const drainDelay = time.Second

// Runner executes one command per call. A zero Runner inherits the caller's
// working directory and imposes no time or size limits.
type Runner struct {
	Dir       string        // working directory; empty inherits the caller's
	Timeout   time.Duration // zero means no limit
	Grace     time.Duration // interrupt-to-kill delay on timeout or cancel; zero kills immediately
	MaxOutput int           // per-stream cap in bytes; zero means unbounded
}

// Run executes a command with the given argv. The first element is the
// binary name (resolved via PATH), and the rest are arguments.
//
// An error is returned only when the process could not be started. A process
// that ran and was then killed, by ctx or by Timeout, yields a Result with
// Killed set.
func (r *Runner) Run(ctx context.Context, argv []string) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	runID := uuid.New().String()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.Dir
	// Bounds how long Wait keeps draining pipes that grandchildren hold open.
	cmd.WaitDelay = drainDelay
	if r.Grace > 0 {
		cmd.Cancel = func() error {
			return cmd.Process.Signal(os.Interrupt)
		}
		cmd.WaitDelay = r.Grace
	}

	var stdout, stderr bytes.Buffer
	outW := newCapture(&stdout, r.MaxOutput)
	errW := newCapture(&stderr, r.MaxOutput)
	cmd.Stdout = outW
	cmd.Stderr = errW

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	state := cmd.ProcessState
	if state == nil {
		// Binary not found, permission denied, or ctx already done.
		return nil, fmt.Errorf("executing %s: %w", argv[0], runErr)
	}

	killed := !state.Exited() ||
		errors.Is(runErr, context.DeadlineExceeded) ||
		errors.Is(runErr, context.Canceled)

	return &Result{
		RunID:     runID,
		ExitCode:  state.ExitCode(),
		Killed:    killed,
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: truncated(outW) || truncated(errW),
		Duration:  elapsed,
	}, nil
}

func newCapture(buf *bytes.Buffer, limit int) io.Writer {
	if limit <= 0 {
		return buf
	}
	return &limitWriter{buf: buf, limit: limit}
}

func truncated(w io.Writer) bool {
	lw, ok := w.(*limitWriter)
	return ok && lw.dropped
}

// limitWriter writes up to limit bytes to buf, then silently discards the rest.
type limitWriter struct {
	buf     *bytes.Buffer
	limit   int
	dropped bool
}

func (w *limitWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		w.dropped = w.dropped || len(p) > 0
		return len(p), nil // discard
	}
	if len(p) > remaining {
		// Write only what fits, but report all bytes as consumed
		// to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		w.dropped = true
		return len(p), nil
	}
	return w.buf.Write(p)
}
