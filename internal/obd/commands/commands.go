// Package commands holds the diagnostic command catalog and the decode
// rules that turn a response payload into something usable.
package commands

import (
	"encoding/hex"
	"fmt"
)

// Unit selects the measurement system for value decodes.
type Unit int

const (
	UnitMetric Unit = iota
	UnitImperial
)

// Command is one adapter request: an OBD-II mode plus an optional PID.
type Command struct {
	Mode string
	PID  string
	Desc string
}

// Request renders the hex string sent to the adapter.
func (c Command) Request() string {
	return c.Mode + c.PID
}

var (
	MonitorStatus = Command{Mode: "01", PID: "01", Desc: "Monitor status since DTCs cleared"}
	CoolantTemp   = Command{Mode: "01", PID: "05", Desc: "Engine coolant temperature"}
	EngineRPM     = Command{Mode: "01", PID: "0C", Desc: "Engine RPM"}
	VehicleSpeed  = Command{Mode: "01", PID: "0D", Desc: "Vehicle speed"}
	IntakeTemp    = Command{Mode: "01", PID: "0F", Desc: "Intake air temperature"}
	VIN           = Command{Mode: "09", PID: "02", Desc: "Vehicle identification number"}
	StoredDTCs    = Command{Mode: "03", Desc: "Stored diagnostic trouble codes"}
	PendingDTCs   = Command{Mode: "07", Desc: "Pending diagnostic trouble codes"}
	ClearDTCs     = Command{Mode: "04", Desc: "Clear trouble codes and MIL"}
)

// SupportQueries are the PID-support bitmap requests, in query order. Each
// answers for the 32 PIDs above its own number.
var SupportQueries = []Command{
	{Mode: "01", PID: "00", Desc: "Supported PIDs 01-20"},
	{Mode: "01", PID: "20", Desc: "Supported PIDs 21-40"},
	{Mode: "01", PID: "40", Desc: "Supported PIDs 41-60"},
	{Mode: "01", PID: "60", Desc: "Supported PIDs 61-80"},
}

// Decode validates the positive-response echo for c and returns the
// payload that follows the mode byte. For 0100 the input
// [41 00 BE 7F B8 13] becomes [00 BE 7F B8 13].
func (c Command) Decode(data []byte) ([]byte, error) {
	mode, err := hex.DecodeString(c.Mode)
	if err != nil || len(mode) != 1 {
		return nil, fmt.Errorf("commands: bad mode %q", c.Mode)
	}
	if len(data) == 0 || data[0] != mode[0]+0x40 {
		return nil, fmt.Errorf("commands: no positive response for %s", c.Request())
	}
	if c.PID != "" {
		pid, err := hex.DecodeString(c.PID)
		if err != nil || len(pid) != 1 {
			return nil, fmt.Errorf("commands: bad PID %q", c.PID)
		}
		if len(data) < 2 || data[1] != pid[0] {
			return nil, fmt.Errorf("commands: response does not echo PID %s", c.PID)
		}
	}
	return data[1:], nil
}

// Status is the decoded result of the 0101 monitor-status read.
type Status struct {
	MILOn    bool
	DTCCount int
}

// DecodeStatus interprets a MonitorStatus payload as returned by
// Command.Decode: [01 A B C D] where A carries the MIL bit and count.
func DecodeStatus(payload []byte) (Status, error) {
	if len(payload) < 2 {
		return Status{}, fmt.Errorf("commands: status payload too short (%d bytes)", len(payload))
	}
	a := payload[1]
	return Status{
		MILOn:    a&0x80 != 0,
		DTCCount: int(a & 0x7F),
	}, nil
}

// Measurement is a decoded physical value.
type Measurement struct {
	Value float64
	Unit  string
}

// DecodeValue interprets a measurement payload as returned by
// Command.Decode ([PID A B ...]) for the given command and unit system.
func DecodeValue(c Command, payload []byte, u Unit) (Measurement, error) {
	if len(payload) < 2 {
		return Measurement{}, fmt.Errorf("commands: payload too short for %s", c.Request())
	}
	a := float64(payload[1])

	switch c {
	case EngineRPM:
		if len(payload) < 3 {
			return Measurement{}, fmt.Errorf("commands: payload too short for %s", c.Request())
		}
		return Measurement{Value: (a*256 + float64(payload[2])) / 4, Unit: "rpm"}, nil
	case CoolantTemp, IntakeTemp:
		celsius := a - 40
		if u == UnitImperial {
			return Measurement{Value: celsius*9/5 + 32, Unit: "°F"}, nil
		}
		return Measurement{Value: celsius, Unit: "°C"}, nil
	case VehicleSpeed:
		if u == UnitImperial {
			return Measurement{Value: a * 0.621371, Unit: "mph"}, nil
		}
		return Measurement{Value: a, Unit: "km/h"}, nil
	}
	return Measurement{}, fmt.Errorf("commands: no value decode for %s", c.Request())
}

// DecodeVIN interprets a VIN payload as returned by Command.Decode:
// [02 NN ascii...] where NN is the record count byte. Sanitizing the text
// is the caller's concern.
func DecodeVIN(payload []byte) (string, error) {
	if len(payload) < 3 {
		return "", fmt.Errorf("commands: VIN payload too short (%d bytes)", len(payload))
	}
	return string(payload[2:]), nil
}
