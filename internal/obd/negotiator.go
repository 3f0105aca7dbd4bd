package obd

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/amarton5/SwiftOBD2/pkg/log"

	"go.uber.org/zap"
)

const (
	cmdProtocolAuto   = "ATSP0"
	cmdProtocolNumber = "ATDPN"

	// probeCommand is the universal status request every compliant ECU
	// answers; its response doubles as the ECU discovery input.
	probeCommand = "0100"

	noDataMarker   = "NO DATA"
	positiveMarker = "4100"

	// autoSettleDelay gives the adapter time to actually switch to auto
	// mode before the probe hits the bus.
	autoSettleDelay = 500 * time.Millisecond
)

// negotiation is the outcome of a successful protocol negotiation: the
// established protocol and the retained 0100 probe lines, which the
// session later re-decodes for ECU resolution.
type negotiation struct {
	protocol Protocol
	probe    []string
}

// negotiate establishes a wire protocol. A supplied preference is tried
// once; any failure there falls back to automatic detection rather than
// aborting, so a bad preference can never block setup.
func (e *Engine) negotiate(ctx context.Context, preferred Protocol) (negotiation, error) {
	if preferred != ProtocolNone {
		probe, err := e.testProtocol(ctx, preferred)
		if err == nil {
			return negotiation{protocol: preferred, probe: probe}, nil
		}
		log.Warn("preferred protocol failed, falling back to auto detection",
			zap.Stringer("protocol", preferred), zap.Error(err))
	}
	return e.negotiateAuto(ctx)
}

// negotiateAuto lets the adapter pick the protocol: reset to auto-select,
// settle, probe, then ask the adapter which protocol it landed on and
// validate that choice. If validation reports a protocol mismatch, the
// adapter's answer is distrusted and sequential probing takes over from
// the current seed.
func (e *Engine) negotiateAuto(ctx context.Context) (negotiation, error) {
	if _, err := e.dispatcher.SendExpectingAck(ctx, cmdProtocolAuto); err != nil {
		return negotiation{}, err
	}
	if err := sleep(ctx, autoSettleDelay); err != nil {
		return negotiation{}, err
	}
	if _, err := e.dispatcher.Send(ctx, probeCommand, ProbeTimeout); err != nil {
		return negotiation{}, err
	}

	lines, err := e.dispatcher.Send(ctx, cmdProtocolNumber, DefaultTimeout)
	if err != nil {
		return negotiation{}, err
	}
	resolved := ProtocolFromNumber(first(lines))
	if resolved == ProtocolNone {
		return negotiation{}, &InvalidResponseError{Command: cmdProtocolNumber, Response: first(lines)}
	}
	log.Info("adapter auto-selected protocol", zap.Stringer("protocol", resolved))

	probe, err := e.testProtocol(ctx, resolved)
	if err == nil {
		return negotiation{protocol: resolved, probe: probe}, nil
	}
	if errors.Is(err, ErrInvalidProtocol) {
		log.Warn("auto-selected protocol did not validate, probing sequentially",
			zap.Stringer("from", e.current))
		return e.probeSequential(ctx, e.current)
	}
	return negotiation{}, err
}

// probeSequential walks the successor chain from start until a protocol
// validates or the sentinel is reached. The chain is finite and monotone
// toward ProtocolNone, so the loop always terminates.
func (e *Engine) probeSequential(ctx context.Context, start Protocol) (negotiation, error) {
	for p := start; p != ProtocolNone; p = p.Next() {
		probe, err := e.testProtocol(ctx, p)
		if err == nil {
			return negotiation{protocol: p, probe: probe}, nil
		}

		var invalid *InvalidResponseError
		switch {
		case errors.Is(err, ErrInvalidProtocol), errors.As(err, &invalid):
			log.Debug("protocol rejected", zap.Stringer("protocol", p), zap.Error(err))
		default:
			// Ignition off and link failures end probing outright.
			return negotiation{}, err
		}
	}
	return negotiation{}, ErrNoProtocolFound
}

// testProtocol validates one protocol: select it with an ack check, then
// require a recognizable positive answer to the 0100 probe. "NO DATA"
// means the bus is alive but the ECU is asleep, which is a different
// failure than a protocol mismatch and must stay distinguishable.
func (e *Engine) testProtocol(ctx context.Context, p Protocol) ([]string, error) {
	if _, err := e.dispatcher.SendExpectingAck(ctx, p.SelectCommand()); err != nil {
		return nil, err
	}

	lines, err := e.dispatcher.Send(ctx, probeCommand, ProbeTimeout)
	if err != nil {
		return nil, err
	}

	joined := strings.ToUpper(strings.Join(lines, " "))
	if strings.Contains(joined, noDataMarker) {
		return nil, ErrIgnitionOff
	}
	if !strings.Contains(strings.ReplaceAll(joined, " ", ""), positiveMarker) {
		return nil, ErrInvalidProtocol
	}
	return lines, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
