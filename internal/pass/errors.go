package pass

import (
	"fmt"
)

// FetchError reports a transport failure or a non-success status from PASS.
type FetchError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("pass %s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("pass %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError reports a PASS payload that does not match the expected shape.
type ValidationError struct {
	Op     string
	Detail string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pass %s: invalid payload: %s: %v", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("pass %s: invalid payload: %s", e.Op, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(op, format string, args ...any) *ValidationError {
	return &ValidationError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
