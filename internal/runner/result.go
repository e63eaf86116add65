package runner

import (
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// Result holds the output of a command execution.
type Result struct {
	RunID     string        // unique identifier for this run
	ExitCode  int           // process exit code; -1 when terminated by a signal
	Killed    bool          // true if the process was terminated by timeout, cancellation or a signal
	Stdout    []byte        // captured stdout (may be truncated)
	Stderr    []byte        // captured stderr (may be truncated)
	Truncated bool          // true if output exceeded the size cap
	Duration  time.Duration // wall clock time from spawn to exit
}

// Success reports whether the process exited on its own with status 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0 && !r.Killed
}

// Transcript returns decoded stdout followed by decoded stderr.
// Invalid UTF-8 is replaced with U+FFFD.
func (r *Result) Transcript() string {
	return decode(r.Stdout) + decode(r.Stderr)
}

func decode(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return string(out)
}
