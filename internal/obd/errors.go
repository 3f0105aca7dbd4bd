package obd

import (
	"errors"
	"fmt"
)

var (
	// ErrNoProtocolFound is returned when every candidate wire protocol
	// has been probed without a positive response.
	ErrNoProtocolFound = errors.New("obd: no protocol found")

	// ErrIgnitionOff is returned when the bus answers a probe with
	// "NO DATA": the adapter link is alive but the ECU is dormant, so
	// trying further protocols will not help.
	ErrIgnitionOff = errors.New("obd: ignition off")

	// ErrInvalidProtocol is returned when a probe draws a response that
	// lacks the expected positive marker, i.e. the protocol under test
	// does not match the bus. Safe to advance to the next candidate.
	ErrInvalidProtocol = errors.New("obd: invalid protocol")

	// ErrAdapterInitFailed is returned when an ack-required directive of
	// the initialization sequence goes unacknowledged.
	ErrAdapterInitFailed = errors.New("obd: adapter initialization failed")

	// ErrNoECUCharacteristic is returned by transports that expose the
	// adapter through service endpoints (BLE) when the expected ELM
	// characteristic is missing from the peripheral.
	ErrNoECUCharacteristic = errors.New("obd: no ECU characteristic")
)

// InvalidResponseError reports a response that could not be interpreted
// for the command that produced it.
type InvalidResponseError struct {
	Command  string
	Response string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("obd: invalid response to %q: %q", e.Command, e.Response)
}
