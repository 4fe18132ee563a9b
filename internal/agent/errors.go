// internal/agent/errors.go
package agent

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind splits step outcomes into the two classes the failure budget
// cares about. The classification travels as data on the error value; the
// loop never recovers panics to make this distinction.
type FailureKind int

const (
	// KindRecoverable failures consume one unit of the failure budget and
	// the loop continues.
	KindRecoverable FailureKind = iota
	// KindFatal failures end the run immediately.
	KindFatal
)

// StepError wraps a step failure with its classification.
type StepError struct {
	Kind FailureKind
	Err  error
}

func (e *StepError) Error() string {
	if e.Kind == KindFatal {
		return fmt.Sprintf("fatal: %v", e.Err)
	}
	return e.Err.Error()
}

func (e *StepError) Unwrap() error { return e.Err }

// Recoverable marks an error as budget-consuming but survivable.
func Recoverable(err error) *StepError {
	return &StepError{Kind: KindRecoverable, Err: err}
}

// Recoverablef builds a recoverable error from a format string.
func Recoverablef(format string, args ...any) *StepError {
	return Recoverable(fmt.Errorf(format, args...))
}

// Fatal marks an error as run-ending.
func Fatal(err error) *StepError {
	return &StepError{Kind: KindFatal, Err: err}
}

// IsFatal reports whether an error must end the run. Context cancellation is
// always fatal; unclassified errors are recoverable.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var stepErr *StepError
	return errors.As(err, &stepErr) && stepErr.Kind == KindFatal
}
