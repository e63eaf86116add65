package evaluator

import "fmt"

// NotInvokableError is returned when the interpreter process could not be
// started at all. It is distinct from a classification failure: no output
// was produced and nothing was classified.
type NotInvokableError struct {
	Interpreter string
	Err         error
}

func (e *NotInvokableError) Error() string {
	return fmt.Sprintf("failed to run %s: %v. Is %s installed and in PATH?", e.Interpreter, e.Err, e.Interpreter)
}

func (e *NotInvokableError) Unwrap() error {
	return e.Err
}
