// Package frame turns the hex text lines an ELM327 prints into per-ECU
// messages. The adapter has already done the bus-level work; what arrives
// here is one line per frame with headers enabled, e.g.
//
//	7E8 06 41 00 BE 7F B8 13
//
// plus whatever noise the adapter emits around it (SEARCHING..., blank
// lines, the command echo). Unparsable lines are dropped, never an error.
package frame

import (
	"encoding/hex"
	"strings"
)

// Format selects the header layout of a response line.
type Format int

const (
	FormatCAN11 Format = iota
	FormatCAN29
	FormatLegacy
)

// ECUID is the small transmit identifier of a responding ECU. On 11-bit
// CAN the engine answers from 0x7E8, which normalizes to ID 0.
type ECUID uint8

// Message is one decoded response unit. Data holds the payload starting
// at the mode echo byte (0x41, 0x43, 0x49, ...).
type Message struct {
	ECU  ECUID
	Data []byte
}

// Decode parses response lines into messages, reassembling ISO-TP
// multi-frame payloads per ECU. Lines that do not parse are skipped.
func Decode(lines []string, format Format) []Message {
	type assembly struct {
		ecu    ECUID
		data   []byte
		length int
	}

	var order []ECUID
	open := make(map[ECUID]*assembly)
	var done []Message

	finish := func(a *assembly) {
		if a.length > 0 && len(a.data) > a.length {
			a.data = a.data[:a.length]
		}
		if len(a.data) > 0 {
			done = append(done, Message{ECU: a.ecu, Data: a.data})
		}
	}

	for _, line := range lines {
		raw := normalize(line)
		if raw == "" {
			continue
		}

		ecu, body, ok := splitHeader(raw, format)
		if !ok {
			continue
		}

		payload, err := hex.DecodeString(body)
		if err != nil || len(payload) == 0 {
			continue
		}

		if format == FormatLegacy {
			// No ISO-TP on the legacy buses: every line is complete.
			done = append(done, Message{ECU: ecu, Data: payload})
			continue
		}

		pci := payload[0]
		switch pci >> 4 {
		case 0x0: // single frame
			n := int(pci & 0x0F)
			if n == 0 || n > len(payload)-1 {
				continue
			}
			done = append(done, Message{ECU: ecu, Data: payload[1 : 1+n]})
		case 0x1: // first frame
			if len(payload) < 2 {
				continue
			}
			n := int(pci&0x0F)<<8 | int(payload[1])
			open[ecu] = &assembly{ecu: ecu, data: append([]byte(nil), payload[2:]...), length: n}
			order = append(order, ecu)
		case 0x2: // consecutive frame
			a, ok := open[ecu]
			if !ok {
				continue
			}
			a.data = append(a.data, payload[1:]...)
			if a.length > 0 && len(a.data) >= a.length {
				finish(a)
				delete(open, ecu)
			}
		}
	}

	// Flush incomplete assemblies in arrival order; a truncated payload
	// still beats silence for best-effort reads.
	for _, ecu := range order {
		if a, ok := open[ecu]; ok {
			finish(a)
			delete(open, ecu)
		}
	}

	return done
}

// normalize uppercases a line, strips spacing and the segment prefix the
// adapter prints for formatted multi-line output ("0: 49 02 ..."), and
// rejects anything that is not pure hex.
func normalize(line string) string {
	line = strings.ToUpper(strings.TrimSpace(line))
	if i := strings.Index(line, ":"); i >= 0 && i <= 2 {
		line = line[i+1:]
	}
	line = strings.ReplaceAll(line, " ", "")
	if line == "" || !isHex(line) {
		return ""
	}
	return line
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// splitHeader peels the frame header off raw and maps it to an ECUID.
func splitHeader(raw string, format Format) (ECUID, string, bool) {
	switch format {
	case FormatCAN11:
		// Three hex digits, 7E8..7EF for the standard reply range. The
		// low nibble minus 8 is the responder's transmit ID.
		if len(raw) < 5 {
			return 0, "", false
		}
		header := raw[:3]
		if header[0] != '7' || header[1] != 'E' {
			return 0, "", false
		}
		n := hexNibble(header[2])
		if n < 8 {
			return 0, "", false
		}
		return ECUID(n - 8), raw[3:], true
	case FormatCAN29:
		// Four header bytes, 18 DA F1 xx; the source address minus 0x10
		// is the transmit ID.
		if len(raw) < 10 || !strings.HasPrefix(raw, "18DAF1") {
			return 0, "", false
		}
		src, err := hex.DecodeString(raw[6:8])
		if err != nil {
			return 0, "", false
		}
		id := src[0]
		if id >= 0x10 {
			id -= 0x10
		}
		return ECUID(id), raw[8:], true
	case FormatLegacy:
		// Three header bytes, e.g. 48 6B 10; the source address encodes
		// the transmit ID in steps of 8 from 0x10.
		if len(raw) < 8 {
			return 0, "", false
		}
		src, err := hex.DecodeString(raw[4:6])
		if err != nil {
			return 0, "", false
		}
		id := src[0]
		if id >= 0x10 {
			id = (id - 0x10) >> 3
		}
		return ECUID(id), raw[6:], true
	}
	return 0, "", false
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	default:
		return c - 'A' + 10
	}
}
