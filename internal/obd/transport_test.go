package obd

import (
	"context"
	"strings"
	"sync"
	"time"
)

// fakeTransport replays scripted responses for engine tests. Stubbed
// responses for a command are consumed as a queue, repeating the last one;
// unstubbed AT directives answer OK and unstubbed requests NO DATA.
type fakeTransport struct {
	mu        sync.Mutex
	responses map[string][][]string
	sent      []string
	handler   func(connected bool)
	connected bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responses: make(map[string][][]string)}
}

func (f *fakeTransport) stub(command string, lines ...string) {
	f.mu.Lock()
	f.responses[command] = append(f.responses[command], lines)
	f.mu.Unlock()
}

func (f *fakeTransport) sentCount(command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.sent {
		if c == command {
			n++
		}
	}
	return n
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connected = true
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(true)
	}
	return nil
}

func (f *fakeTransport) Send(ctx context.Context, command string, timeout time.Duration) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, command)

	if queue, ok := f.responses[command]; ok && len(queue) > 0 {
		lines := queue[0]
		if len(queue) > 1 {
			f.responses[command] = queue[1:]
		}
		return lines, nil
	}
	if strings.HasPrefix(command, "AT") {
		return []string{"OK"}, nil
	}
	return []string{"NO DATA"}, nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	f.connected = false
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(false)
	}
}

func (f *fakeTransport) SetStateHandler(fn func(connected bool)) {
	f.mu.Lock()
	f.handler = fn
	f.mu.Unlock()
}

// stubVehicle scripts a two-ECU CAN 11/500 vehicle with one stored code.
func stubVehicle(f *fakeTransport) {
	f.stub("ATZ", "ELM327 v1.5")
	f.stub("ATRV", "12.6V")
	f.stub("ATDPN", "A6")
	f.stub("0100",
		"7E8 06 41 00 BE 7F B8 13",
		"7E9 06 41 00 98 18 80 10",
	)
	f.stub("0101", "7E8 06 41 01 81 07 65 04")
	f.stub("0902",
		"7E8 10 14 49 02 01 31 48 47",
		"7E8 21 43 4D 38 32 36 33 33",
		"7E8 22 41 30 30 34 33 35 32",
	)
	f.stub("03", "7E8 06 43 01 03 01 00 00")
	f.stub("04", "7E8 01 44")
}
