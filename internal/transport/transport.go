package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Transport is the byte link to an ELM327-class adapter. Implementations
// frame the adapter's text interface: Send writes one command with a CR
// terminator and collects response lines until the '>' prompt, which is
// stripped before the lines are returned.
//
// Implementations are half-duplex: callers must not overlap Send calls.
type Transport interface {
	// Connect establishes the link. It returns ErrPeripheralNotFound when
	// the device cannot be located and ErrTimeout when it does not answer
	// in time.
	Connect(ctx context.Context) error

	// Send writes command and returns the response lines, prompt excluded,
	// echo and blank lines dropped. A timeout is treated as a link failure.
	Send(ctx context.Context, command string, timeout time.Duration) ([]string, error)

	// Disconnect tears the link down, best-effort. Any in-flight read is
	// abandoned.
	Disconnect()

	// SetStateHandler registers a callback invoked on every link state
	// transition, including repeats of the same state.
	SetStateHandler(fn func(connected bool))
}

var (
	// ErrTimeout reports that the adapter did not produce its prompt
	// within the allotted time.
	ErrTimeout = errors.New("transport: response timeout")

	// ErrPeripheralNotFound reports that no adapter device was found.
	ErrPeripheralNotFound = errors.New("transport: peripheral not found")

	// ErrInvalidData reports bytes that could not be framed into lines.
	ErrInvalidData = errors.New("transport: invalid data")
)

// Error wraps a lower-level link failure.
type Error struct {
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: %v", e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
