package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAddress  = errors.New("invalid resource address")
	ErrUnknownKind     = errors.New("unknown resource kind")
	ErrUnknownTool     = errors.New("unknown tool")
	ErrMissingArgument = errors.New("missing required argument")
)

// AddressError reports a resource URI that could not be routed.
type AddressError struct {
	URI string
	Err error
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("resource %q: %v", e.URI, e.Err)
}

func (e *AddressError) Unwrap() error { return e.Err }

// EngineError wraps any failure coming back from the SQL engine, including
// failing to borrow a connection.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *EngineError) Unwrap() error { return e.Err }

func engineError(op string, err error) error {
	return &EngineError{Op: op, Err: err}
}
