package modem

import (
	"context"
	"io"
	"strings"
	"sync"
)

// TestTransport is a test helper that simulates a blocking transport using channels.
// This is needed because the Loop's scanner goroutine continuously reads from the transport,
// and we need reads to block until data is available (like a real serial port would).
//
// When a responder is set, every write is answered with the text it returns.
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	closed   bool
	writes   []string
	respond  func(cmd string) string
}

// NewTestTransport creates a new test transport for testing.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 64),
	}
}

// Respond installs fn as the responder for subsequent writes.
func (t *TestTransport) Respond(fn func(cmd string) string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.respond = fn
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	t.writes = append(t.writes, string(p))
	respond := t.respond
	t.mu.Unlock()

	if respond != nil {
		if resp := respond(strings.TrimSuffix(string(p), "\r")); resp != "" {
			t.SendData(resp)
		}
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	data, ok := <-t.readChan
	if !ok {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates receiving data from the modem.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// Writes returns the commands written so far, without the trailing CR.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, len(t.writes))
	for i, w := range t.writes {
		out[i] = strings.TrimSuffix(w, "\r")
	}
	return out
}

// InitResponder answers the initialization sequence with a ready SIM and
// hands every other command to next.
func InitResponder(next func(cmd string) string) func(cmd string) string {
	return func(cmd string) string {
		switch cmd {
		case "AT", "ATE0", "AT+CMEE=2", "AT+CMGF=1", "AT+CNMI=2,1,0,0,0", "AT+CLIP=1", "AT+DDET=1,0":
			return "OK\r\n"
		case "AT+CPIN?":
			return "+CPIN: READY\r\nOK\r\n"
		}
		if next == nil {
			return "OK\r\n"
		}
		return next(cmd)
	}
}

// TestDialer hands out a fixed transport.
type TestDialer struct {
	Transport Transport
}

func (d TestDialer) Dial(context.Context) (Transport, error) {
	return d.Transport, nil
}
