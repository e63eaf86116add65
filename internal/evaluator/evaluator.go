// Package evaluator runs a single source file through the external
// interpreter and classifies the run.
//
// Each call spawns its own child process, owns its own buffers and returns
// its own Outcome, so an Evaluator may be used from many goroutines at once.
package evaluator

import (
	"context"
	"fmt"
	"time"

	"github.com/deixis/harness/internal/classify"
	"github.com/deixis/harness/internal/runner"
	"go.uber.org/zap"
)

// DefaultInterpreter is the executable invoked when Interpreter is empty.
const DefaultInterpreter = "seqlisp"

// Mode selects the classification policy.
type Mode string

const (
	// Compile detects parse and static errors from error lines only.
	Compile Mode = "compile"
	// Test detects assertion failures from exit status and text markers.
	Test Mode = "test"
)

// ParseMode converts s to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Compile, Test:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want %s or %s)", s, Compile, Test)
}

// CommandRunner executes a command to completion.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string) (*runner.Result, error)
}

// Evaluator invokes the interpreter and applies a Policy per Mode.
type Evaluator struct {
	Interpreter   []string // argv prefix; the source path is appended as the only positional argument
	Runner        CommandRunner
	CompilePolicy classify.Policy
	TestPolicy    classify.Policy
	Logger        *zap.Logger
}

// New returns an Evaluator using the textual marker policies.
func New(interpreter []string, r CommandRunner, markers classify.Markers, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		Interpreter:   interpreter,
		Runner:        r,
		CompilePolicy: classify.CompilePolicy{Markers: markers},
		TestPolicy:    classify.TestPolicy{Markers: markers},
		Logger:        logger,
	}
}

// Outcome is the classified result of one interpreter run.
type Outcome struct {
	RunID      string
	Mode       Mode
	Path       string
	Verdict    classify.Verdict
	Reason     classify.Reason // empty on pass
	Transcript string          // stdout then stderr
	ExitCode   int
	Killed     bool
	Truncated  bool
	Duration   time.Duration
}

// Passed reports whether the run was classified as a success.
func (o *Outcome) Passed() bool {
	return o.Verdict == classify.Pass
}

// EvaluateCompile runs path and fails it only if the transcript has an
// error line. The exit status is ignored.
func (e *Evaluator) EvaluateCompile(ctx context.Context, path string) (*Outcome, error) {
	return e.Evaluate(ctx, Compile, path)
}

// EvaluateTest runs path and fails it on a non-successful exit, a fail
// marker anywhere in the transcript, or an error line.
func (e *Evaluator) EvaluateTest(ctx context.Context, path string) (*Outcome, error) {
	return e.Evaluate(ctx, Test, path)
}

// Evaluate runs path and classifies it with the policy for mode.
// For a valid mode the error is either *NotInvokableError or, when ctx was
// already done before the interpreter could start, ctx.Err().
func (e *Evaluator) Evaluate(ctx context.Context, mode Mode, path string) (*Outcome, error) {
	policy, err := e.policy(mode)
	if err != nil {
		return nil, err
	}

	argv := e.argv(path)
	log := e.logger().With(zap.String("mode", string(mode)), zap.String("path", path))
	log.Debug("spawning interpreter", zap.Strings("argv", argv))

	res, err := e.Runner.Run(ctx, argv)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn("interpreter not invokable", zap.Error(err))
		return nil, &NotInvokableError{Interpreter: argv[0], Err: err}
	}

	transcript := res.Transcript()
	d := policy.Classify(classify.Exit{Code: res.ExitCode, Killed: res.Killed}, transcript)
	out := &Outcome{
		RunID:      res.RunID,
		Mode:       mode,
		Path:       path,
		Verdict:    d.Verdict,
		Reason:     d.Reason,
		Transcript: transcript,
		ExitCode:   res.ExitCode,
		Killed:     res.Killed,
		Truncated:  res.Truncated,
		Duration:   res.Duration,
	}

	log.Debug("evaluated",
		zap.String("run_id", out.RunID),
		zap.String("verdict", string(out.Verdict)),
		zap.String("reason", string(out.Reason)),
		zap.Int("exit_code", out.ExitCode),
		zap.Bool("killed", out.Killed),
		zap.Duration("duration", out.Duration),
	)
	return out, nil
}

func (e *Evaluator) policy(mode Mode) (classify.Policy, error) {
	var p classify.Policy
	switch mode {
	case Compile:
		p = e.CompilePolicy
		if p == nil {
			p = classify.CompilePolicy{Markers: classify.DefaultMarkers()}
		}
	case Test:
		p = e.TestPolicy
		if p == nil {
			p = classify.TestPolicy{Markers: classify.DefaultMarkers()}
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	return p, nil
}

// argv builds a fresh argument vector so concurrent calls never share one.
func (e *Evaluator) argv(path string) []string {
	prefix := e.Interpreter
	if len(prefix) == 0 {
		prefix = []string{DefaultInterpreter}
	}
	argv := make([]string, 0, len(prefix)+1)
	argv = append(argv, prefix...)
	return append(argv, path)
}

func (e *Evaluator) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
