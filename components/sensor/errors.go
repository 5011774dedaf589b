package sensor

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrHandleClosed is returned when a closed sensor is used.
var ErrHandleClosed = errors.New("sensor handle is closed")

// HardwareInitError is returned when the device could not be opened or initialized.
type HardwareInitError struct {
	Err error
}

func (e *HardwareInitError) Error() string {
	return fmt.Sprintf("hardware init failed: %v", e.Err)
}

func (e *HardwareInitError) Unwrap() error {
	return e.Err
}

// HardwareReadError is returned when an operation on an open device failed. The device has been
// discarded and is re-opened on next use.
type HardwareReadError struct {
	Err error
}

func (e *HardwareReadError) Error() string {
	return fmt.Sprintf("hardware read failed: %v", e.Err)
}

func (e *HardwareReadError) Unwrap() error {
	return e.Err
}

// IsHardwareError returns whether err is or wraps a hardware init or read error.
func IsHardwareError(err error) bool {
	var initErr *HardwareInitError
	var readErr *HardwareReadError
	return errors.As(err, &initErr) || errors.As(err, &readErr)
}
