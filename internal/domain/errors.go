package domain

import "fmt"

// ValidationError reports a violated entity constraint together with the
// offending value. Callers detect it with errors.As and decide whether the
// violation aborts the whole run or only the record being written.
type ValidationError struct {
	Entity     string // e.g. "price"
	Constraint string // e.g. "price_positive"
	Value      string // offending value, formatted
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s violates %s (value: %s)", e.Entity, e.Constraint, e.Value)
}

func validationErr(entity, constraint, value string) *ValidationError {
	return &ValidationError{Entity: entity, Constraint: constraint, Value: value}
}
