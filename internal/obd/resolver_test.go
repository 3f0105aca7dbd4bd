package obd

import (
	"testing"

	"github.com/amarton5/SwiftOBD2/internal/obd/frame"
)

func TestResolveRoles(t *testing.T) {
	tests := []struct {
		name string
		msgs []frame.Message
		want RoleMap
	}{
		{
			name: "no messages",
			msgs: nil,
			want: nil,
		},
		{
			name: "single responder is the engine",
			msgs: []frame.Message{
				{ECU: 5, Data: []byte{0x41, 0x00, 0x80}},
			},
			want: RoleMap{5: RoleEngine},
		},
		{
			name: "canonical transmit IDs",
			msgs: []frame.Message{
				{ECU: 0, Data: []byte{0x41, 0x00, 0xBE, 0x7F}},
				{ECU: 1, Data: []byte{0x41, 0x00, 0x80, 0x00}},
			},
			want: RoleMap{0: RoleEngine, 1: RoleTransmission},
		},
		{
			name: "no canonical engine, richest payload wins",
			msgs: []frame.Message{
				{ECU: 2, Data: []byte{0x41, 0x00, 0x80, 0x00}},
				{ECU: 3, Data: []byte{0x41, 0x00, 0xBE, 0x7F}},
			},
			want: RoleMap{3: RoleEngine, 2: RoleTransmission},
		},
		{
			name: "leftover responders become transmission",
			msgs: []frame.Message{
				{ECU: 0, Data: []byte{0x41, 0x00, 0xBE, 0x7F}},
				{ECU: 1, Data: []byte{0x41, 0x00, 0x80, 0x00}},
				{ECU: 7, Data: []byte{0x41, 0x00, 0x00, 0x01}},
			},
			want: RoleMap{0: RoleEngine, 1: RoleTransmission, 7: RoleTransmission},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveRoles(tt.msgs)
			if len(got) != len(tt.want) {
				t.Fatalf("ResolveRoles() = %v, want %v", got, tt.want)
			}
			for ecu, role := range tt.want {
				if got[ecu] != role {
					t.Errorf("ResolveRoles()[%d] = %v, want %v", ecu, got[ecu], role)
				}
			}
		})
	}
}
