// Package serial links the engine to an ELM327 over a serial device
// (USB or a bound Bluetooth rfcomm port).
package serial

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/amarton5/SwiftOBD2/internal/transport"
	"github.com/amarton5/SwiftOBD2/pkg/log"

	"github.com/avast/retry-go/v4"
	serial "github.com/tarm/serial"
	"go.uber.org/zap"
)

const (
	cr     = "\r"
	prompt = '>'
)

// Transport is a serial ELM327 link.
type Transport struct {
	portName string
	baud     int

	mu      sync.Mutex
	port    io.ReadWriteCloser
	handler func(connected bool)
}

// New creates a serial transport. An empty portName picks a platform
// default.
func New(portName string, baud int) *Transport {
	if portName == "" {
		portName = detectPlatformSerialDev()
	}
	return &Transport{portName: portName, baud: baud}
}

// Connect opens the port, retrying a few times since Bluetooth serial
// devices often need a moment after pairing.
func (t *Transport) Connect(ctx context.Context) error {
	cfg := &serial.Config{
		Name:        t.portName,
		Baud:        t.baud,
		ReadTimeout: 100 * time.Millisecond,
	}

	port, err := retry.DoWithData(func() (*serial.Port, error) {
		p, err := serial.OpenPort(cfg)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, retry.Unrecoverable(err)
			}
			return nil, err
		}
		return p, nil
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(2*time.Second),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("failed to open port, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", transport.ErrPeripheralNotFound, t.portName, err)
	}

	// The adapter needs time to settle after the port opens.
	time.Sleep(500 * time.Millisecond)

	t.mu.Lock()
	t.port = port
	handler := t.handler
	t.mu.Unlock()

	log.Info("serial port opened", zap.String("port", t.portName), zap.Int("baud", t.baud))
	if handler != nil {
		handler(true)
	}
	return nil
}

func (t *Transport) Send(ctx context.Context, command string, timeout time.Duration) ([]string, error) {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return nil, &transport.Error{Cause: fmt.Errorf("port not open")}
	}

	if _, err := port.Write([]byte(command + cr)); err != nil {
		return nil, &transport.Error{Cause: err}
	}

	raw, err := readUntilPrompt(ctx, port, timeout)
	if err != nil {
		return nil, err
	}
	return splitLines(raw, command), nil
}

func (t *Transport) Disconnect() {
	t.mu.Lock()
	port := t.port
	t.port = nil
	handler := t.handler
	t.mu.Unlock()

	if port != nil {
		port.Close()
	}
	if handler != nil {
		handler(false)
	}
}

func (t *Transport) SetStateHandler(fn func(connected bool)) {
	t.mu.Lock()
	t.handler = fn
	t.mu.Unlock()
}

// readUntilPrompt collects bytes until the '>' prompt or the timeout. The
// port's own short ReadTimeout keeps the loop responsive to cancellation.
func readUntilPrompt(ctx context.Context, r io.Reader, timeout time.Duration) (string, error) {
	var sb strings.Builder
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 1)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", transport.ErrTimeout
		}

		n, err := r.Read(buf)
		if err != nil {
			if err == io.EOF {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return "", &transport.Error{Cause: err}
		}
		if n == 0 {
			continue
		}

		b := buf[0]
		if b == prompt {
			return sb.String(), nil
		}
		// Drop nulls and stray control characters, keep line breaks.
		if b >= 32 && b <= 126 || b == '\r' || b == '\n' {
			sb.WriteByte(b)
		}
	}
}

// splitLines breaks a raw response into trimmed lines, dropping blanks and
// the command echo adapters produce before ATE0 takes effect.
func splitLines(raw, command string) []string {
	var lines []string
	for _, line := range strings.FieldsFunc(raw, func(r rune) bool { return r == '\r' || r == '\n' }) {
		line = strings.TrimSpace(line)
		if line == "" || line == command {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func detectPlatformSerialDev() string {
	switch runtime.GOOS {
	case "darwin":
		return "/dev/tty.usbserial"
	case "windows":
		return "COM3"
	default:
		return "/dev/ttyUSB0"
	}
}
