package obd

import (
	"context"
	"errors"
	"testing"
)

func TestTestProtocolOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		protocol Protocol
		probe    []string
		wantErr  error
	}{
		{
			name:     "positive response",
			protocol: ProtocolCAN11_500,
			probe:    []string{"7E8 06 41 00 BE 7F B8 13"},
			wantErr:  nil,
		},
		{
			name:     "no data means ignition off",
			protocol: ProtocolCAN11_500,
			probe:    []string{"NO DATA"},
			wantErr:  ErrIgnitionOff,
		},
		{
			name:     "no data on another protocol still ignition off",
			protocol: ProtocolISO9141,
			probe:    []string{"NO DATA"},
			wantErr:  ErrIgnitionOff,
		},
		{
			name:     "missing positive marker means protocol mismatch",
			protocol: ProtocolCAN11_500,
			probe:    []string{"BUS INIT... ERROR"},
			wantErr:  ErrInvalidProtocol,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := newFakeTransport()
			ft.stub("0100", tt.probe...)
			e := New(ft)

			lines, err := e.testProtocol(context.Background(), tt.protocol)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("testProtocol() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("testProtocol() failed: %v", err)
			}
			if len(lines) == 0 {
				t.Fatal("testProtocol() retained no probe lines")
			}
		})
	}
}

func TestNegotiateBadPreferenceFallsBackToAuto(t *testing.T) {
	ft := newFakeTransport()
	// The preferred protocol draws an unusable response, the auto path a
	// positive one twice: once for detection, once for validation.
	ft.stub("0100", "UNABLE TO CONNECT")
	ft.stub("0100", "7E8 06 41 00 BE 7F B8 13")
	ft.stub("ATDPN", "A6")
	e := New(ft)

	got, err := e.negotiate(context.Background(), ProtocolISO9141)
	if err != nil {
		t.Fatalf("negotiate() failed: %v", err)
	}
	if got.protocol != ProtocolCAN11_500 {
		t.Errorf("negotiate() protocol = %v, want %v", got.protocol, ProtocolCAN11_500)
	}
	if ft.sentCount("ATSP0") == 0 {
		t.Error("automatic negotiation never ran after bad preference")
	}
}

func TestNegotiateAutoUnknownProtocolNumber(t *testing.T) {
	ft := newFakeTransport()
	ft.stub("0100", "7E8 06 41 00 BE 7F B8 13")
	ft.stub("ATDPN", "Z")
	e := New(ft)

	_, err := e.negotiateAuto(context.Background())
	var invalid *InvalidResponseError
	if !errors.As(err, &invalid) {
		t.Fatalf("negotiateAuto() error = %v, want InvalidResponseError", err)
	}
}

func TestProbeSequentialExhaustsCandidates(t *testing.T) {
	ft := newFakeTransport()
	ft.stub("0100", "UNABLE TO CONNECT")
	e := New(ft)

	_, err := e.probeSequential(context.Background(), ProtocolCAN11_500)
	if !errors.Is(err, ErrNoProtocolFound) {
		t.Fatalf("probeSequential() error = %v, want %v", err, ErrNoProtocolFound)
	}
	if got, want := ft.sentCount("0100"), len(probeOrder); got != want {
		t.Errorf("probeSequential() probed %d times, want %d", got, want)
	}
}

func TestProbeSequentialHaltsOnIgnitionOff(t *testing.T) {
	ft := newFakeTransport()
	ft.stub("0100", "NO DATA")
	e := New(ft)

	_, err := e.probeSequential(context.Background(), ProtocolCAN11_500)
	if !errors.Is(err, ErrIgnitionOff) {
		t.Fatalf("probeSequential() error = %v, want %v", err, ErrIgnitionOff)
	}
	if got := ft.sentCount("0100"); got != 1 {
		t.Errorf("probeSequential() kept probing after ignition-off, %d probes", got)
	}
}

func TestProbeSequentialAdvancesPastMismatch(t *testing.T) {
	ft := newFakeTransport()
	ft.stub("0100", "UNABLE TO CONNECT")
	ft.stub("0100", "7E8 06 41 00 BE 7F B8 13")
	e := New(ft)

	got, err := e.probeSequential(context.Background(), ProtocolCAN11_500)
	if err != nil {
		t.Fatalf("probeSequential() failed: %v", err)
	}
	if got.protocol != ProtocolCAN29_500 {
		t.Errorf("probeSequential() protocol = %v, want %v", got.protocol, ProtocolCAN29_500)
	}
}
