package errors

import "fmt"

// ErrValidation signals that a single field failed input validation.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return e.Field + ": " + e.Message
}

// ErrNotFound signals that a reference-data lookup (currency, counterparty,
// customer, FX rate, rule) found no matching row.
type ErrNotFound struct {
	Table string
	Key   string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s: not found: %s", e.Table, e.Key)
}

// ErrFatal wraps a panic recovered while running a pipeline step. The
// pipeline runtime never lets a step's panic escape; it is converted into
// a failed StepResult carrying this error's message.
type ErrFatal struct {
	Step  string
	Cause interface{}
}

func (e *ErrFatal) Error() string {
	return fmt.Sprintf("step %s panicked: %v", e.Step, e.Cause)
}
