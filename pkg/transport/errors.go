package transport

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceNotFound   = errors.New("serial device not found")
	ErrPermissionDenied = errors.New("serial device permission denied")
	ErrTimeout          = errors.New("serial exchange timed out")
	ErrIO               = errors.New("serial I/O failed")
	ErrDisconnected     = errors.New("serial link is closed")
)

// TransportError wraps a link failure with the operation and device path.
type TransportError struct {
	Op      string
	Path    string
	Wrapped error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("serial %s %s: %v", e.Op, e.Path, e.Wrapped)
}

func (e *TransportError) Unwrap() error {
	return e.Wrapped
}
