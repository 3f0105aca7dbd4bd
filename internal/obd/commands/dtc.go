package commands

import "strings"

// DecodeDTCs extracts trouble codes from a mode 03/07 payload as returned
// by Command.Decode. On CAN the first byte is the code count; the legacy
// buses send the pairs directly, so an odd-length payload is taken as
// count-prefixed. Zero pairs are padding and are skipped.
func DecodeDTCs(payload []byte) []string {
	if len(payload)%2 == 1 {
		payload = payload[1:]
	}

	var codes []string
	for i := 0; i+1 < len(payload); i += 2 {
		if code := decodeDTC(payload[i], payload[i+1]); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

// decodeDTC converts a 2-byte DTC value into SAE J2012 notation, e.g.
// P0301. Both bytes zero means "no code".
func decodeDTC(a, b byte) string {
	if a == 0 && b == 0 {
		return ""
	}

	const hexDigits = "0123456789ABCDEF"
	letters := [4]byte{'P', 'C', 'B', 'U'}

	return string([]byte{
		letters[(a&0xC0)>>6],
		'0' + (a&0x30)>>4,
		hexDigits[a&0x0F],
		hexDigits[(b&0xF0)>>4],
		hexDigits[b&0x0F],
	})
}

// dtcDescriptions covers the codes seen most in practice; everything else
// falls back to a family description.
var dtcDescriptions = map[string]string{
	"P0101": "Mass Air Flow Circuit Range/Performance",
	"P0102": "Mass Air Flow Circuit Low Input",
	"P0133": "O2 Sensor Circuit Slow Response (Bank 1 Sensor 1)",
	"P0171": "System Too Lean (Bank 1)",
	"P0172": "System Too Rich (Bank 1)",
	"P0174": "System Too Lean (Bank 2)",
	"P0300": "Random/Multiple Cylinder Misfire Detected",
	"P0301": "Cylinder 1 Misfire Detected",
	"P0302": "Cylinder 2 Misfire Detected",
	"P0303": "Cylinder 3 Misfire Detected",
	"P0304": "Cylinder 4 Misfire Detected",
	"P0401": "Exhaust Gas Recirculation Flow Insufficient",
	"P0420": "Catalyst System Efficiency Below Threshold",
	"P0440": "Evaporative Emission Control System Malfunction",
	"P0442": "Evaporative Emission Control System Leak Detected (Small)",
	"P0455": "Evaporative Emission Control System Leak Detected (Large)",
	"P0500": "Vehicle Speed Sensor Malfunction",
	"P0700": "Transmission Control System Malfunction",
	"P0715": "Input/Turbine Speed Sensor Circuit Malfunction",
	"U0100": "Lost Communication With ECM/PCM",
	"U0101": "Lost Communication With TCM",
}

// Describe returns a human-readable description for a trouble code.
func Describe(code string) string {
	if desc, ok := dtcDescriptions[code]; ok {
		return desc
	}
	switch {
	case strings.HasPrefix(code, "P"):
		return "Powertrain fault"
	case strings.HasPrefix(code, "C"):
		return "Chassis fault"
	case strings.HasPrefix(code, "B"):
		return "Body fault"
	case strings.HasPrefix(code, "U"):
		return "Network fault"
	}
	return "Unknown DTC"
}
