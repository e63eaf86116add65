package workflow

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/deixis/harness/internal/classify"
	"github.com/deixis/harness/internal/evaluator"
	"github.com/deixis/harness/internal/report"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Run resolves args to files, evaluates each in mode and returns the
// collected results in file order.
//
// Classification failures are part of the result, not errors. If the
// interpreter cannot be invoked the whole run fails with that error, since
// every file would fail the same way.
func (e *Engine) Run(ctx context.Context, mode evaluator.Mode, args []string) (*report.RunResult, error) {
	if _, err := evaluator.ParseMode(string(mode)); err != nil {
		return nil, err
	}
	files, err := e.ResolveFiles(args)
	if err != nil {
		return nil, err
	}

	rr := &report.RunResult{
		ID:          uuid.New().String(),
		Kind:        report.Kind(mode),
		Interpreter: e.Interpreter,
		Started:     time.Now().UTC(),
		Evaluations: make([]report.Evaluation, len(files)),
	}
	log := e.logger().With(zap.String("run_id", rr.ID), zap.String("mode", string(mode)))
	log.Info("run started", zap.Int("files", len(files)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism())
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := e.Evaluator.Evaluate(gctx, mode, path)
			if err != nil {
				return err
			}
			rr.Evaluations[i] = toEvaluation(out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("run %s: %w", rr.ID, ctx.Err())
		}
		return nil, err
	}

	passed, failed := rr.Counts()
	log.Info("run finished", zap.Int("passed", passed), zap.Int("failed", failed))
	return rr, nil
}

func toEvaluation(o *evaluator.Outcome) report.Evaluation {
	status := report.StatusFail
	if o.Passed() {
		status = report.StatusPass
	}
	return report.Evaluation{
		ProcessID:  o.RunID,
		Path:       o.Path,
		Status:     status,
		Reason:     string(o.Reason),
		ExitCode:   o.ExitCode,
		Killed:     o.Killed,
		Truncated:  o.Truncated,
		Transcript: o.Transcript,
		DurationMs: o.Duration.Milliseconds(),
	}
}

func (e *Engine) parallelism() int {
	if e.Concurrency > 0 {
		return e.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// FailureSummaries returns one line per failed file: its path relative to
// the workspace and why it failed.
func (e *Engine) FailureSummaries(rr *report.RunResult) []string {
	var out []string
	for _, ev := range report.Failures(rr) {
		out = append(out, fmt.Sprintf("%s: %s", e.Rel(ev.Path), e.Explain(ev)))
	}
	return out
}

// Explain describes why an evaluation failed, quoting the offending line
// when a text marker triggered it.
func (e *Engine) Explain(ev report.Evaluation) string {
	m := e.markers()
	switch classify.Reason(ev.Reason) {
	case classify.ReasonNone:
		return "ok"
	case classify.ReasonExitStatus:
		if ev.Killed {
			return "interpreter was killed"
		}
		return fmt.Sprintf("exit status %d", ev.ExitCode)
	case classify.ReasonFailMarker:
		return firstLine(ev.Transcript, func(l string) bool { return strings.Contains(l, m.FailSubstring) })
	case classify.ReasonErrorLine:
		return firstLine(ev.Transcript, func(l string) bool { return strings.HasPrefix(l, m.ErrorPrefix) })
	}
	return ev.Reason
}

func (e *Engine) markers() classify.Markers {
	if e.Markers == (classify.Markers{}) {
		return classify.DefaultMarkers()
	}
	return e.Markers
}

func firstLine(s string, match func(string) bool) string {
	for line := range strings.Lines(s) {
		if match(line) {
			return strings.TrimSpace(line)
		}
	}
	return ""
}
