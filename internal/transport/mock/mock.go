// Package mock is a scripted adapter for demos and tests. It simulates an
// ELM327 v1.5 on a two-ECU CAN 11/500 vehicle with one stored misfire
// code.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Transport replays canned responses. Stub installs or overrides the
// response for a command; unknown AT directives answer OK and unknown PID
// requests answer NO DATA.
type Transport struct {
	mu        sync.Mutex
	responses map[string][]string
	connected bool
	handler   func(connected bool)
}

// New returns a mock seeded with a simulated vehicle.
func New() *Transport {
	t := &Transport{responses: make(map[string][]string)}
	t.Stub("ATZ", "ELM327 v1.5")
	t.Stub("ATRV", "12.6V")
	t.Stub("ATDPN", "A6")
	t.Stub("0100",
		"7E8 06 41 00 BE 7F B8 13",
		"7E9 06 41 00 98 18 80 10",
	)
	t.Stub("0101", "7E8 06 41 01 81 07 65 04")
	t.Stub("0105", "7E8 03 41 05 5F")
	t.Stub("010C", "7E8 04 41 0C 1A F8")
	t.Stub("010D", "7E8 03 41 0D 3C")
	t.Stub("0902",
		"7E8 10 14 49 02 01 31 48 47",
		"7E8 21 43 4D 38 32 36 33 33",
		"7E8 22 41 30 30 34 33 35 32",
	)
	t.Stub("03", "7E8 06 43 01 03 01 00 00")
	t.Stub("07", "7E8 02 47 00")
	t.Stub("04", "7E8 01 44")
	return t
}

// Stub sets the response lines for command.
func (t *Transport) Stub(command string, lines ...string) {
	t.mu.Lock()
	t.responses[strings.ToUpper(command)] = lines
	t.mu.Unlock()
}

func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	t.connected = true
	handler := t.handler
	t.mu.Unlock()
	if handler != nil {
		handler(true)
	}
	return nil
}

func (t *Transport) Send(ctx context.Context, command string, timeout time.Duration) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil, fmt.Errorf("mock: not connected")
	}

	key := strings.ToUpper(command)
	if lines, ok := t.responses[key]; ok {
		out := make([]string, len(lines))
		copy(out, lines)
		return out, nil
	}
	if strings.HasPrefix(key, "AT") {
		return []string{"OK"}, nil
	}
	return []string{"NO DATA"}, nil
}

func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.connected = false
	handler := t.handler
	t.mu.Unlock()
	if handler != nil {
		handler(false)
	}
}

func (t *Transport) SetStateHandler(fn func(connected bool)) {
	t.mu.Lock()
	t.handler = fn
	t.mu.Unlock()
}
