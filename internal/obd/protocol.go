package obd

import (
	"strings"

	"github.com/amarton5/SwiftOBD2/internal/obd/frame"
)

// Protocol identifies one of the wire protocols an ELM327 can drive.
// The zero value ProtocolNone is the sentinel that terminates probing.
type Protocol int

const (
	ProtocolNone Protocol = iota
	ProtocolCAN11_500     // ISO 15765-4 (CAN 11/500)
	ProtocolCAN29_500     // ISO 15765-4 (CAN 29/500)
	ProtocolCAN11_250     // ISO 15765-4 (CAN 11/250)
	ProtocolCAN29_250     // ISO 15765-4 (CAN 29/250)
	ProtocolJ1850PWM      // SAE J1850 PWM
	ProtocolJ1850VPW      // SAE J1850 VPW
	ProtocolISO9141       // ISO 9141-2
	ProtocolKWP5Baud      // ISO 14230-4 (KWP 5BAUD)
	ProtocolKWPFast       // ISO 14230-4 (KWP FAST)
	ProtocolJ1939         // SAE J1939 (CAN 29/250)
)

// protocolNumbers maps each protocol to the digit the adapter uses for it
// in ATSP / ATDPN exchanges.
var protocolNumbers = map[Protocol]string{
	ProtocolJ1850PWM:  "1",
	ProtocolJ1850VPW:  "2",
	ProtocolISO9141:   "3",
	ProtocolKWP5Baud:  "4",
	ProtocolKWPFast:   "5",
	ProtocolCAN11_500: "6",
	ProtocolCAN29_500: "7",
	ProtocolCAN11_250: "8",
	ProtocolCAN29_250: "9",
	ProtocolJ1939:     "A",
}

var protocolNames = map[Protocol]string{
	ProtocolNone:      "None",
	ProtocolJ1850PWM:  "SAE J1850 PWM (41.6 kbaud)",
	ProtocolJ1850VPW:  "SAE J1850 VPW (10.4 kbaud)",
	ProtocolISO9141:   "ISO 9141-2 (5 baud init)",
	ProtocolKWP5Baud:  "ISO 14230-4 KWP (5 baud init)",
	ProtocolKWPFast:   "ISO 14230-4 KWP (fast init)",
	ProtocolCAN11_500: "ISO 15765-4 CAN (11 bit ID, 500 kbaud)",
	ProtocolCAN29_500: "ISO 15765-4 CAN (29 bit ID, 500 kbaud)",
	ProtocolCAN11_250: "ISO 15765-4 CAN (11 bit ID, 250 kbaud)",
	ProtocolCAN29_250: "ISO 15765-4 CAN (29 bit ID, 250 kbaud)",
	ProtocolJ1939:     "SAE J1939 CAN (29 bit ID, 250 kbaud)",
}

// probeOrder lists the protocols in descending order of likelihood. Next
// walks this list, so sequential probing visits every protocol once and
// terminates at ProtocolNone.
var probeOrder = []Protocol{
	ProtocolCAN11_500,
	ProtocolCAN29_500,
	ProtocolCAN11_250,
	ProtocolCAN29_250,
	ProtocolJ1850PWM,
	ProtocolJ1850VPW,
	ProtocolISO9141,
	ProtocolKWP5Baud,
	ProtocolKWPFast,
	ProtocolJ1939,
}

func (p Protocol) String() string {
	if name, ok := protocolNames[p]; ok {
		return name
	}
	return "Unknown"
}

// Number returns the adapter's digit for p, or "" for the sentinel.
func (p Protocol) Number() string {
	return protocolNumbers[p]
}

// SelectCommand returns the AT directive that switches the adapter to p.
func (p Protocol) SelectCommand() string {
	return "ATSP" + p.Number()
}

// Next returns the candidate to probe after p. The last candidate maps to
// ProtocolNone, so repeated application always halts.
func (p Protocol) Next() Protocol {
	for i, candidate := range probeOrder {
		if candidate == p {
			if i+1 < len(probeOrder) {
				return probeOrder[i+1]
			}
			return ProtocolNone
		}
	}
	return ProtocolNone
}

// Format returns the frame layout the decoder should assume for p.
func (p Protocol) Format() frame.Format {
	switch p {
	case ProtocolCAN11_500, ProtocolCAN11_250:
		return frame.FormatCAN11
	case ProtocolCAN29_500, ProtocolCAN29_250, ProtocolJ1939:
		return frame.FormatCAN29
	case ProtocolJ1850PWM, ProtocolJ1850VPW, ProtocolISO9141, ProtocolKWP5Baud, ProtocolKWPFast:
		return frame.FormatLegacy
	default:
		return frame.FormatCAN11
	}
}

// ProtocolFromNumber maps an ATDPN digit to a Protocol. The leading "A"
// the adapter prefixes in auto mode is stripped. Unknown numbers map to
// ProtocolNone.
func ProtocolFromNumber(num string) Protocol {
	num = strings.TrimSpace(strings.ToUpper(num))
	if len(num) > 1 && num[0] == 'A' {
		num = num[1:]
	}
	for p, n := range protocolNumbers {
		if n == num {
			return p
		}
	}
	return ProtocolNone
}
