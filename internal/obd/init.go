package obd

import (
	"context"
	"fmt"

	"github.com/amarton5/SwiftOBD2/pkg/log"

	"go.uber.org/zap"
)

// DirectiveKind classifies an initialization directive.
type DirectiveKind int

const (
	// AckRequired directives fail the whole sequence when the adapter
	// does not acknowledge them.
	AckRequired DirectiveKind = iota

	// ValueReturning directives hand their response text to a handler;
	// the response content, not an ack, is what matters.
	ValueReturning
)

// Directive is one step of the adapter initialization sequence.
type Directive struct {
	Command string
	Kind    DirectiveKind

	// Handle consumes the response of a ValueReturning directive.
	Handle func(e *Engine, lines []string)
}

// defaultInitSequence is what ConnectAdapter runs unless the caller
// overrides it: reset, echo off, headers on, linefeeds off, adaptive
// timing, voltage readout, and the current protocol number which seeds
// the fallback probing state.
func defaultInitSequence() []Directive {
	return []Directive{
		{Command: "ATZ", Kind: ValueReturning, Handle: func(e *Engine, lines []string) {
			log.Info("adapter reset", zap.String("ident", first(lines)))
		}},
		{Command: "ATE0", Kind: AckRequired},
		{Command: "ATH1", Kind: AckRequired},
		{Command: "ATL0", Kind: AckRequired},
		{Command: "ATAT1", Kind: AckRequired},
		{Command: "ATRV", Kind: ValueReturning, Handle: func(e *Engine, lines []string) {
			log.Info("adapter voltage", zap.String("voltage", first(lines)))
		}},
		{Command: "ATDPN", Kind: ValueReturning, Handle: func(e *Engine, lines []string) {
			p := ProtocolFromNumber(first(lines))
			if p == ProtocolNone {
				p = ProtocolCAN11_500
			}
			e.current = p
			log.Info("adapter protocol seed", zap.Stringer("protocol", p))
		}},
	}
}

// initAdapter runs the directive sequence. A missing ack fails the whole
// sequence with ErrAdapterInitFailed.
func (e *Engine) initAdapter(ctx context.Context) error {
	for _, d := range e.initSeq {
		switch d.Kind {
		case AckRequired:
			if _, err := e.dispatcher.SendExpectingAck(ctx, d.Command); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrAdapterInitFailed, d.Command, err)
			}
		case ValueReturning:
			lines, err := e.dispatcher.Send(ctx, d.Command, DefaultTimeout)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrAdapterInitFailed, d.Command, err)
			}
			if d.Handle != nil {
				d.Handle(e, lines)
			}
		}
	}
	return nil
}
