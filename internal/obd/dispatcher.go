package obd

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/amarton5/SwiftOBD2/internal/transport"
	"github.com/amarton5/SwiftOBD2/pkg/log"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds an ordinary command round trip.
	DefaultTimeout = 5 * time.Second

	// ProbeTimeout bounds the initial 0100 probe; ECU wake-up after a
	// protocol switch can take much longer than a normal request.
	ProbeTimeout = 20 * time.Second

	ackToken = "OK"
)

// Dispatcher serializes commands over the transport: one in-flight command
// at a time, no pipelining, no retries. Retry policy belongs to callers.
type Dispatcher struct {
	t  transport.Transport
	mu sync.Mutex
}

// NewDispatcher returns a Dispatcher bound to t.
func NewDispatcher(t transport.Transport) *Dispatcher {
	return &Dispatcher{t: t}
}

// Send issues command and returns the response lines. A zero timeout means
// DefaultTimeout. Transport failures propagate unchanged.
func (d *Dispatcher) Send(ctx context.Context, command string, timeout time.Duration) ([]string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	log.Debug("sending command", zap.String("command", command), zap.Duration("timeout", timeout))
	lines, err := d.t.Send(ctx, command, timeout)
	if err != nil {
		return nil, err
	}
	log.Debug("received response", zap.String("command", command), zap.Strings("lines", lines))
	return lines, nil
}

// SendExpectingAck issues command with the default timeout and requires the
// adapter's OK token somewhere in the response.
func (d *Dispatcher) SendExpectingAck(ctx context.Context, command string) ([]string, error) {
	lines, err := d.Send(ctx, command, DefaultTimeout)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		if strings.Contains(strings.ToUpper(line), ackToken) {
			return lines, nil
		}
	}
	return nil, &InvalidResponseError{Command: command, Response: first(lines)}
}

func first(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}
