package obd

import "testing"

func TestProtocolSuccessorTerminates(t *testing.T) {
	for _, start := range probeOrder {
		p := start
		steps := 0
		for p != ProtocolNone {
			p = p.Next()
			steps++
			if steps > len(probeOrder) {
				t.Fatalf("successor chain from %s did not terminate within %d steps", start, len(probeOrder))
			}
		}
	}
}

func TestProtocolSuccessorCoversAllCandidates(t *testing.T) {
	seen := make(map[Protocol]bool)
	for p := probeOrder[0]; p != ProtocolNone; p = p.Next() {
		if seen[p] {
			t.Fatalf("successor chain revisited %s", p)
		}
		seen[p] = true
	}
	if len(seen) != len(probeOrder) {
		t.Fatalf("successor chain visited %d protocols, want %d", len(seen), len(probeOrder))
	}
}

func TestProtocolFromNumber(t *testing.T) {
	tests := []struct {
		name string
		num  string
		want Protocol
	}{
		{name: "can 11/500", num: "6", want: ProtocolCAN11_500},
		{name: "auto prefix stripped", num: "A6", want: ProtocolCAN11_500},
		{name: "iso 9141", num: "3", want: ProtocolISO9141},
		{name: "j1939", num: "A", want: ProtocolJ1939},
		{name: "whitespace", num: " 8 ", want: ProtocolCAN11_250},
		{name: "unknown", num: "X", want: ProtocolNone},
		{name: "empty", num: "", want: ProtocolNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProtocolFromNumber(tt.num); got != tt.want {
				t.Errorf("ProtocolFromNumber(%q) = %v, want %v", tt.num, got, tt.want)
			}
		})
	}
}

func TestProtocolSelectCommand(t *testing.T) {
	if got := ProtocolCAN11_500.SelectCommand(); got != "ATSP6" {
		t.Errorf("SelectCommand() = %q, want %q", got, "ATSP6")
	}
	if got := ProtocolJ1939.SelectCommand(); got != "ATSPA" {
		t.Errorf("SelectCommand() = %q, want %q", got, "ATSPA")
	}
}
