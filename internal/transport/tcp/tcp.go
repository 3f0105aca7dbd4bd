// Package tcp links the engine to a Wi-Fi ELM327 bridge. These adapters
// listen on port 35000 and speak the same prompt-terminated text protocol
// as their serial siblings.
package tcp

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/amarton5/SwiftOBD2/internal/transport"
	"github.com/amarton5/SwiftOBD2/pkg/log"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// Transport is a TCP ELM327 link.
type Transport struct {
	addr string

	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
	handler func(connected bool)
}

// New creates a TCP transport for addr, e.g. "192.168.0.10:35000".
func New(addr string) *Transport {
	return &Transport{addr: addr}
}

func (t *Transport) Connect(ctx context.Context) error {
	conn, err := retry.DoWithData(func() (net.Conn, error) {
		d := net.Dialer{Timeout: connectTimeout}
		return d.DialContext(ctx, "tcp", t.addr)
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("dial failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", transport.ErrPeripheralNotFound, t.addr, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.reader = bufio.NewReader(conn)
	handler := t.handler
	t.mu.Unlock()

	log.Info("adapter reachable", zap.String("addr", t.addr))
	if handler != nil {
		handler(true)
	}
	return nil
}

func (t *Transport) Send(ctx context.Context, command string, timeout time.Duration) ([]string, error) {
	t.mu.Lock()
	conn := t.conn
	reader := t.reader
	t.mu.Unlock()
	if conn == nil {
		return nil, &transport.Error{Cause: fmt.Errorf("not connected")}
	}

	if deadline, ok := ctx.Deadline(); ok && deadline.Before(time.Now().Add(timeout)) {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(timeout))
	}

	if _, err := conn.Write([]byte(command + "\r")); err != nil {
		return nil, &transport.Error{Cause: err}
	}

	raw, err := reader.ReadString('>')
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return nil, transport.ErrTimeout
		}
		return nil, &transport.Error{Cause: err}
	}
	raw = strings.TrimSuffix(raw, ">")

	var lines []string
	for _, line := range strings.FieldsFunc(raw, func(r rune) bool { return r == '\r' || r == '\n' }) {
		line = strings.TrimSpace(line)
		if line == "" || line == command {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (t *Transport) Disconnect() {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.reader = nil
	handler := t.handler
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
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
