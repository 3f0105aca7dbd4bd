// Package obd is the session engine for talking to a vehicle through an
// ELM327-class adapter: adapter initialization, protocol negotiation with
// fallback probing, response demultiplexing by ECU, and the diagnostic
// operations built on top.
package obd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/amarton5/SwiftOBD2/internal/obd/commands"
	"github.com/amarton5/SwiftOBD2/internal/obd/frame"
	"github.com/amarton5/SwiftOBD2/internal/transport"
	"github.com/amarton5/SwiftOBD2/pkg/log"

	"go.uber.org/zap"
)

// Info is the outcome of a successful vehicle setup. Immutable once
// constructed. VIN may be empty and SupportedCommands nil: both reads are
// best-effort.
type Info struct {
	VIN               string
	SupportedCommands []string
	Protocol          Protocol
	Roles             RoleMap
}

// TroubleCode is one decoded diagnostic trouble code.
type TroubleCode struct {
	Code        string
	Description string
}

// Engine drives one adapter session. It is not safe for concurrent command
// issuance; operations are strictly sequential over the half-duplex link.
type Engine struct {
	transport  transport.Transport
	dispatcher *Dispatcher
	initSeq    []Directive

	mu        sync.Mutex
	state     ConnectionState
	observers []StateObserver

	current  Protocol // seed for fallback probing, set during init
	protocol Protocol // established by negotiation
	roles    RoleMap
}

// Option configures an Engine.
type Option func(*Engine)

// WithInitSequence overrides the adapter initialization directives.
func WithInitSequence(seq []Directive) Option {
	return func(e *Engine) { e.initSeq = seq }
}

// New creates an Engine over t.
func New(t transport.Transport, opts ...Option) *Engine {
	e := &Engine{
		transport:  t,
		dispatcher: NewDispatcher(t),
		initSeq:    defaultInitSequence(),
		current:    ProtocolCAN11_500,
	}
	for _, opt := range opts {
		opt(e)
	}
	t.SetStateHandler(func(connected bool) {
		if !connected {
			e.setState(Disconnected)
		}
	})
	return e
}

// ConnectAdapter establishes the transport link and runs the adapter
// initialization sequence.
func (e *Engine) ConnectAdapter(ctx context.Context) error {
	if err := e.transport.Connect(ctx); err != nil {
		return err
	}
	if err := e.initAdapter(ctx); err != nil {
		e.transport.Disconnect()
		e.setState(Disconnected)
		return err
	}
	e.setState(ConnectedToAdapter)
	return nil
}

// SetupVehicle negotiates a wire protocol, resolves the responding ECUs,
// and gathers the session info. Pass ProtocolNone for pure auto detection.
func (e *Engine) SetupVehicle(ctx context.Context, preferred Protocol) (*Info, error) {
	result, err := e.negotiate(ctx, preferred)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.protocol = result.protocol
	e.current = result.protocol
	e.mu.Unlock()
	log.Info("wire protocol established", zap.Stringer("protocol", result.protocol))

	vin := e.readVIN(ctx)
	supported := e.discoverSupported(ctx)

	msgs := frame.Decode(result.probe, result.protocol.Format())
	if len(msgs) == 0 {
		return nil, &InvalidResponseError{Command: probeCommand, Response: first(result.probe)}
	}
	roles := ResolveRoles(msgs)

	e.mu.Lock()
	e.roles = roles
	e.mu.Unlock()

	e.setState(ConnectedToVehicle)
	return &Info{
		VIN:               vin,
		SupportedCommands: supported,
		Protocol:          result.protocol,
		Roles:             roles,
	}, nil
}

// Disconnect ends the session.
func (e *Engine) Disconnect() {
	e.transport.Disconnect()
	e.setState(Disconnected)
}

// Protocol returns the established wire protocol, ProtocolNone before
// setup completes.
func (e *Engine) Protocol() Protocol {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.protocol
}

// readVIN is best-effort: any transport, decode, or emptiness problem
// yields an empty string rather than an error.
func (e *Engine) readVIN(ctx context.Context) string {
	lines, err := e.dispatcher.Send(ctx, commands.VIN.Request(), DefaultTimeout)
	if err != nil {
		log.Warn("VIN read failed", zap.Error(err))
		return ""
	}
	msgs := frame.Decode(lines, e.format())
	if len(msgs) == 0 {
		return ""
	}
	payload, err := commands.VIN.Decode(msgs[0].Data)
	if err != nil {
		log.Warn("VIN decode failed", zap.Error(err))
		return ""
	}
	text, err := commands.DecodeVIN(payload)
	if err != nil {
		return ""
	}
	return sanitizeVIN(text)
}

// sanitizeVIN keeps only the characters a VIN may contain.
func sanitizeVIN(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
			return r
		}
		return -1
	}, s)
}

// discoverSupported walks the PID-support bitmap queries and unions the
// advertised command numbers. A query that fails to produce a decodable
// message is skipped; the bitmap queries themselves are excluded from the
// result.
func (e *Engine) discoverSupported(ctx context.Context) []string {
	queries := make(map[string]bool, len(commands.SupportQueries))
	set := make(map[string]bool)

	for _, q := range commands.SupportQueries {
		queries[q.PID] = true

		lines, err := e.dispatcher.Send(ctx, q.Request(), DefaultTimeout)
		if err != nil {
			log.Warn("support query failed", zap.String("query", q.Request()), zap.Error(err))
			continue
		}
		msgs := frame.Decode(lines, e.format())
		if len(msgs) == 0 {
			continue
		}
		payload, err := q.Decode(msgs[0].Data)
		if err != nil || len(payload) < 2 {
			continue
		}

		// payload[0] echoes the PID group marker; the rest is the
		// bitmap, MSB first, 1-indexed from the group base.
		base := int(payload[0])
		for i, b := range payload[1:] {
			for bit := 0; bit < 8; bit++ {
				if b&(0x80>>bit) != 0 {
					set[fmt.Sprintf("%02X", base+i*8+bit+1)] = true
				}
			}
		}
	}

	var out []string
	for pid := range set {
		if !queries[pid] {
			out = append(out, pid)
		}
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// Status reads the 0101 monitor status. Unlike the VIN this is required
// telemetry: failures surface to the caller.
func (e *Engine) Status(ctx context.Context) (commands.Status, error) {
	lines, err := e.dispatcher.Send(ctx, commands.MonitorStatus.Request(), DefaultTimeout)
	if err != nil {
		return commands.Status{}, err
	}
	msgs := frame.Decode(lines, e.format())
	if len(msgs) == 0 {
		return commands.Status{}, &InvalidResponseError{Command: commands.MonitorStatus.Request(), Response: first(lines)}
	}
	payload, err := commands.MonitorStatus.Decode(msgs[0].Data)
	if err != nil {
		return commands.Status{}, err
	}
	return commands.DecodeStatus(payload)
}

// Measure runs a measurement command and decodes it in the given unit
// system.
func (e *Engine) Measure(ctx context.Context, c commands.Command, u commands.Unit) (commands.Measurement, error) {
	lines, err := e.dispatcher.Send(ctx, c.Request(), DefaultTimeout)
	if err != nil {
		return commands.Measurement{}, err
	}
	msgs := frame.Decode(lines, e.format())
	if len(msgs) == 0 {
		return commands.Measurement{}, &InvalidResponseError{Command: c.Request(), Response: first(lines)}
	}
	payload, err := c.Decode(msgs[0].Data)
	if err != nil {
		return commands.Measurement{}, err
	}
	return commands.DecodeValue(c, payload, u)
}

// ScanTroubleCodes reads the stored trouble codes of every responding ECU
// and groups them by resolved role. Messages from ECUs without a resolved
// role, and messages that fail to decode, are skipped with a warning.
func (e *Engine) ScanTroubleCodes(ctx context.Context) (map[ECURole][]TroubleCode, error) {
	return e.scanDTCs(ctx, commands.StoredDTCs)
}

// ScanPendingTroubleCodes reads the mode 07 pending codes, grouped the
// same way as the stored scan.
func (e *Engine) ScanPendingTroubleCodes(ctx context.Context) (map[ECURole][]TroubleCode, error) {
	return e.scanDTCs(ctx, commands.PendingDTCs)
}

func (e *Engine) scanDTCs(ctx context.Context, cmd commands.Command) (map[ECURole][]TroubleCode, error) {
	lines, err := e.dispatcher.Send(ctx, cmd.Request(), DefaultTimeout)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	roles := e.roles
	e.mu.Unlock()

	out := make(map[ECURole][]TroubleCode)
	for _, m := range frame.Decode(lines, e.format()) {
		role, ok := roles[m.ECU]
		if !ok {
			log.Warn("trouble codes from unresolved ECU skipped", zap.Uint8("ecu", uint8(m.ECU)))
			continue
		}
		payload, err := cmd.Decode(m.Data)
		if err != nil {
			log.Warn("trouble code decode failed", zap.Uint8("ecu", uint8(m.ECU)), zap.Error(err))
			continue
		}
		for _, code := range commands.DecodeDTCs(payload) {
			out[role] = append(out[role], TroubleCode{Code: code, Description: commands.Describe(code)})
		}
	}
	return out, nil
}

// ClearTroubleCodes sends the mode 04 clear request. The ECU answers 44 on
// success; some adapters collapse that to OK.
func (e *Engine) ClearTroubleCodes(ctx context.Context) error {
	lines, err := e.dispatcher.Send(ctx, commands.ClearDTCs.Request(), DefaultTimeout)
	if err != nil {
		return err
	}
	joined := strings.ToUpper(strings.Join(lines, " "))
	if !strings.Contains(joined, "44") && !strings.Contains(joined, ackToken) {
		return &InvalidResponseError{Command: commands.ClearDTCs.Request(), Response: first(lines)}
	}
	return nil
}

func (e *Engine) format() frame.Format {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.protocol.Format()
}
