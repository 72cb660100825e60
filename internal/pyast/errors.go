package pyast

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax is returned when source text does not parse as Python.
	ErrSyntax = errors.New("invalid Python code provided")

	// ErrUnsupported is returned for valid Python outside the supported subset.
	ErrUnsupported = errors.New("unsupported syntax")

	// ErrInvalidLiteral is returned when literal text is not a plain literal.
	ErrInvalidLiteral = errors.New("invalid literal")
)

// UnsupportedError describes a construct outside the supported subset.
type UnsupportedError struct {
	// Line is 1-based, 0 when unknown.
	Line   int
	Reason string
}

func (e *UnsupportedError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return e.Reason
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

// Unsupported builds an UnsupportedError.
func Unsupported(line int, format string, args ...any) error {
	return &UnsupportedError{Line: line, Reason: fmt.Sprintf(format, args...)}
}
