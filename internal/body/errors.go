package body

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter indicates a body was constructed with a bad mass or position.
	ErrInvalidParameter = errors.New("body: invalid parameter")

	// ErrArithmeticDegenerate indicates integration was attempted on a body without
	// positive mass. Construction rules out this state, so reaching it is a bug.
	ErrArithmeticDegenerate = errors.New("body: integration with non-positive mass")
)

// ParameterError wraps ErrInvalidParameter with the offending field.
type ParameterError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s: %s %v: %s", ErrInvalidParameter.Error(), e.Field, e.Value, e.Reason)
}

func (e *ParameterError) Unwrap() error {
	return ErrInvalidParameter
}
