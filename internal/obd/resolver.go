package obd

import (
	"math/bits"

	"github.com/amarton5/SwiftOBD2/internal/obd/frame"
)

// ECURole is the logical role assigned to a responding ECU.
type ECURole int

const (
	RoleUnassigned ECURole = iota
	RoleEngine
	RoleTransmission
)

func (r ECURole) String() string {
	switch r {
	case RoleEngine:
		return "engine"
	case RoleTransmission:
		return "transmission"
	default:
		return "unassigned"
	}
}

// RoleMap maps raw ECU identifiers to logical roles. It is built once per
// session from the protocol probe and read thereafter.
type RoleMap map[frame.ECUID]ECURole

// ResolveRoles classifies the ECUs that answered the protocol probe. A
// single responder is the engine. With several responders, IDs 0 and 1 are
// engine and transmission by the standard transmit-ID layout; when no ECU
// carries ID 0, the unassigned responder with the most set bits in its
// payload - the richest capability advertisement - is taken as the engine.
// Everything still unassigned afterwards is labeled transmission, a
// catch-all rather than a verified mapping.
func ResolveRoles(msgs []frame.Message) RoleMap {
	if len(msgs) == 0 {
		return nil
	}

	roles := make(RoleMap)
	if len(msgs) == 1 {
		roles[msgs[0].ECU] = RoleEngine
		return roles
	}

	for _, m := range msgs {
		switch m.ECU {
		case 0:
			roles[m.ECU] = RoleEngine
		case 1:
			roles[m.ECU] = RoleTransmission
		}
	}

	if roles[0] != RoleEngine {
		best := -1
		var bestECU frame.ECUID
		for _, m := range msgs {
			if _, taken := roles[m.ECU]; taken {
				continue
			}
			if n := bitCount(m.Data); n > best {
				best = n
				bestECU = m.ECU
			}
		}
		if best >= 0 {
			roles[bestECU] = RoleEngine
		}
	}

	for _, m := range msgs {
		if _, ok := roles[m.ECU]; !ok {
			roles[m.ECU] = RoleTransmission
		}
	}
	return roles
}

func bitCount(data []byte) int {
	n := 0
	for _, b := range data {
		n += bits.OnesCount8(b)
	}
	return n
}
