// Package classify decides whether an interpreter run succeeded from its
// exit status and merged transcript.
//
// The interpreter does not report failure reliably through its exit code, so
// the policies here look for textual markers as well. Policy is the seam for
// replacing these heuristics with a structured result protocol.
package classify

import "strings"

// Default markers emitted by the interpreter.
const (
	DefaultErrorPrefix   = "Error"
	DefaultFailSubstring = "FAIL"
)

// Verdict is the outcome of a classification.
type Verdict string

const (
	Pass Verdict = "pass"
	Fail Verdict = "fail"
)

// Reason names the rule that produced a Fail verdict.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonExitStatus Reason = "exit-status" // process exited non-zero or was killed
	ReasonFailMarker Reason = "fail-marker" // transcript contains the fail substring
	ReasonErrorLine  Reason = "error-line"  // a line starts with the error prefix
)

// Exit is the termination status of a completed process.
type Exit struct {
	Code   int
	Killed bool
}

// Success reports whether the process exited on its own with status 0.
func (e Exit) Success() bool {
	return e.Code == 0 && !e.Killed
}

// Decision is the result of applying a Policy.
type Decision struct {
	Verdict Verdict
	Reason  Reason
}

// Passed reports whether the decision is a Pass.
func (d Decision) Passed() bool { return d.Verdict == Pass }

func pass() Decision { return Decision{Verdict: Pass} }
func fail(reason Reason) Decision { return Decision{Verdict: Fail, Reason: reason} }

// Policy classifies a completed run. Implementations must be pure.
type Policy interface {
	Classify(exit Exit, transcript string) Decision
}

// Markers holds the textual failure markers.
// An empty marker disables its rule.
type Markers struct {
	ErrorPrefix   string // a line starting with this is an error
	FailSubstring string // the transcript containing this is a test failure
}

// DefaultMarkers returns the markers the interpreter prints.
func DefaultMarkers() Markers {
	return Markers{
		ErrorPrefix:   DefaultErrorPrefix,
		FailSubstring: DefaultFailSubstring,
	}
}

// HasErrorLine reports whether any line of transcript begins with
// m.ErrorPrefix. The match is case-sensitive and anchored at column 0.
func (m Markers) HasErrorLine(transcript string) bool {
	if m.ErrorPrefix == "" {
		return false
	}
	for line := range strings.Lines(transcript) {
		if strings.HasPrefix(line, m.ErrorPrefix) {
			return true
		}
	}
	return false
}

// HasFailMarker reports whether transcript contains m.FailSubstring anywhere.
func (m Markers) HasFailMarker(transcript string) bool {
	return m.FailSubstring != "" && strings.Contains(transcript, m.FailSubstring)
}

// CompilePolicy fails a run only when an error line is present. The exit
// status is ignored because the interpreter exits 0 on parse and runtime
// errors.
type CompilePolicy struct {
	Markers Markers
}

// Classify implements Policy.
func (p CompilePolicy) Classify(_ Exit, transcript string) Decision {
	if p.Markers.HasErrorLine(transcript) {
		return fail(ReasonErrorLine)
	}
	return pass()
}

// TestPolicy fails a run on a non-successful exit, on the fail marker
// anywhere in the transcript, or on an error line. The reason reported is
// the first rule that matched, in that order.
type TestPolicy struct {
	Markers Markers
}

// Classify implements Policy.
func (p TestPolicy) Classify(exit Exit, transcript string) Decision {
	switch {
	case !exit.Success():
		return fail(ReasonExitStatus)
	case p.Markers.HasFailMarker(transcript):
		return fail(ReasonFailMarker)
	case p.Markers.HasErrorLine(transcript):
		return fail(ReasonErrorLine)
	}
	return pass()
}
