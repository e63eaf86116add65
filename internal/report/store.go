// Package report provides structured persistence and retrieval of
// evaluation runs. A run covers one or more source files evaluated in the
// same mode; results can be queried by path.
package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Kind identifies the mode of a run.
type Kind string

const (
	// Compile is a compile-mode run.
	Compile Kind = "compile"
	// Test is a test-mode run.
	Test Kind = "test"
)

// Status is the classification of a single file.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// Store persists and retrieves run results.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult holds the outcome of evaluating a batch of files.
type RunResult struct {
	ID          string       `json:"id"`
	Kind        Kind         `json:"kind"`
	Interpreter []string     `json:"interpreter"`
	Started     time.Time    `json:"started"`
	Evaluations []Evaluation `json:"evaluations"`
}

// Evaluation is the classified result of one interpreter run.
type Evaluation struct {
	ProcessID  string `json:"process_id"` // runner run ID of the child process
	Path       string `json:"path"`
	Status     Status `json:"status"`
	Reason     string `json:"reason,omitempty"` // rule that failed the file
	ExitCode   int    `json:"exit_code"`
	Killed     bool   `json:"killed,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
	Transcript string `json:"transcript"`
	DurationMs int64  `json:"duration_ms"`
}

// Counts returns the number of passed and failed evaluations.
func (r *RunResult) Counts() (passed, failed int) {
	for _, e := range r.Evaluations {
		if e.Status == StatusPass {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

// Passed reports whether every evaluation passed.
func (r *RunResult) Passed() bool {
	_, failed := r.Counts()
	return failed == 0
}

// Expect returns an error if the run's Kind does not match want.
func (r *RunResult) Expect(want Kind) error {
	if r.Kind != want {
		return fmt.Errorf("run %s is a %s run, not a %s run", r.ID, r.Kind, want)
	}
	return nil
}

// Failures returns the failed evaluations in run order.
func Failures(result *RunResult) []Evaluation {
	var out []Evaluation
	for _, e := range result.Evaluations {
		if e.Status != StatusPass {
			out = append(out, e)
		}
	}
	return out
}

// ByPath returns the evaluations whose path matches p. A match is either
// the same cleaned path or a path ending in "/"+p, so "02-lists/map.slisp"
// finds "/work/exercises/02-lists/map.slisp".
func ByPath(result *RunResult, p string) []Evaluation {
	want := filepath.ToSlash(filepath.Clean(p))
	var out []Evaluation
	for _, e := range result.Evaluations {
		got := filepath.ToSlash(filepath.Clean(e.Path))
		if got == want || strings.HasSuffix(got, "/"+strings.TrimPrefix(want, "./")) {
			out = append(out, e)
		}
	}
	return out
}
