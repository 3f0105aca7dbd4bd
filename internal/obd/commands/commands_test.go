package commands

import (
	"bytes"
	"math"
	"testing"
)

func TestCommandDecode(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		data    []byte
		want    []byte
		wantErr bool
	}{
		{
			name: "positive status response",
			cmd:  SupportQueries[0],
			data: []byte{0x41, 0x00, 0xBE, 0x7F, 0xB8, 0x13},
			want: []byte{0x00, 0xBE, 0x7F, 0xB8, 0x13},
		},
		{
			name: "mode only command",
			cmd:  StoredDTCs,
			data: []byte{0x43, 0x01, 0x03, 0x01},
			want: []byte{0x01, 0x03, 0x01},
		},
		{
			name:    "wrong mode echo",
			cmd:     SupportQueries[0],
			data:    []byte{0x7F, 0x01, 0x12},
			wantErr: true,
		},
		{
			name:    "wrong pid echo",
			cmd:     CoolantTemp,
			data:    []byte{0x41, 0x0C, 0x5F},
			wantErr: true,
		},
		{
			name:    "empty payload",
			cmd:     SupportQueries[0],
			data:    nil,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Decode(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Decode() succeeded unexpectedly")
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() failed: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Decode() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestDecodeStatus(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    Status
		wantErr bool
	}{
		{
			name:    "mil on one code",
			payload: []byte{0x01, 0x81, 0x07, 0x65, 0x04},
			want:    Status{MILOn: true, DTCCount: 1},
		},
		{
			name:    "mil off no codes",
			payload: []byte{0x01, 0x00, 0x07, 0x65, 0x04},
			want:    Status{MILOn: false, DTCCount: 0},
		},
		{
			name:    "too short",
			payload: []byte{0x01},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeStatus(tt.payload)
			if tt.wantErr {
				if err == nil {
					t.Fatal("DecodeStatus() succeeded unexpectedly")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeStatus() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeStatus() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name      string
		cmd       Command
		payload   []byte
		unit      Unit
		wantValue float64
		wantUnit  string
	}{
		{
			name:      "rpm",
			cmd:       EngineRPM,
			payload:   []byte{0x0C, 0x1A, 0xF8},
			unit:      UnitMetric,
			wantValue: 1726,
			wantUnit:  "rpm",
		},
		{
			name:      "coolant metric",
			cmd:       CoolantTemp,
			payload:   []byte{0x05, 0x5F},
			unit:      UnitMetric,
			wantValue: 55,
			wantUnit:  "°C",
		},
		{
			name:      "coolant imperial",
			cmd:       CoolantTemp,
			payload:   []byte{0x05, 0x5F},
			unit:      UnitImperial,
			wantValue: 131,
			wantUnit:  "°F",
		},
		{
			name:      "speed metric",
			cmd:       VehicleSpeed,
			payload:   []byte{0x0D, 0x3C},
			unit:      UnitMetric,
			wantValue: 60,
			wantUnit:  "km/h",
		},
		{
			name:      "speed imperial",
			cmd:       VehicleSpeed,
			payload:   []byte{0x0D, 0x3C},
			unit:      UnitImperial,
			wantValue: 37.28,
			wantUnit:  "mph",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeValue(tt.cmd, tt.payload, tt.unit)
			if err != nil {
				t.Fatalf("DecodeValue() failed: %v", err)
			}
			if math.Abs(got.Value-tt.wantValue) > 0.01 {
				t.Errorf("value = %v, want %v", got.Value, tt.wantValue)
			}
			if got.Unit != tt.wantUnit {
				t.Errorf("unit = %q, want %q", got.Unit, tt.wantUnit)
			}
		})
	}
}

func TestDecodeValueUnsupportedCommand(t *testing.T) {
	if _, err := DecodeValue(VIN, []byte{0x02, 0x01}, UnitMetric); err == nil {
		t.Fatal("DecodeValue() succeeded for a non-measurement command")
	}
}

func TestDecodeDTCs(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    []string
	}{
		{
			name:    "can payload with count byte",
			payload: []byte{0x01, 0x03, 0x01, 0x00, 0x00},
			want:    []string{"P0301"},
		},
		{
			name:    "legacy payload without count",
			payload: []byte{0x01, 0x33, 0x00, 0x00},
			want:    []string{"P0133"},
		},
		{
			name:    "chassis body network letters",
			payload: []byte{0x41, 0x23, 0x81, 0x23, 0xC1, 0x23},
			want:    []string{"C0123", "B0123", "U0123"},
		},
		{
			name:    "all padding",
			payload: []byte{0x00, 0x00, 0x00, 0x00},
			want:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeDTCs(tt.payload)
			if len(got) != len(tt.want) {
				t.Fatalf("DecodeDTCs() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("code[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe("P0301"); got != "Cylinder 1 Misfire Detected" {
		t.Errorf("Describe(P0301) = %q", got)
	}
	if got := Describe("P9999"); got != "Powertrain fault" {
		t.Errorf("Describe(P9999) = %q, want family fallback", got)
	}
	if got := Describe("X0000"); got != "Unknown DTC" {
		t.Errorf("Describe(X0000) = %q", got)
	}
}
