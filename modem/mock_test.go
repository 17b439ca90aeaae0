package modem_test

import (
	"fmt"

	gomock "go.uber.org/mock/gomock"

	"i4.energy/across/vibralarm/modem"
)

type MockSequenceBuilder struct {
	transport *modem.MockTransport
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// expect adds a write of cmd answered by a single read of resp.
func (b *MockSequenceBuilder) expect(cmd, resp string) *MockSequenceBuilder {
	wire := cmd + "\r"
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(wire)).Return(len(wire), nil),
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			copy(p, resp)
			return len(resp), nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) AT() *MockSequenceBuilder {
	return b.expect("AT", "AT\r\nOK\r\n")
}

func (b *MockSequenceBuilder) EchoOff() *MockSequenceBuilder {
	return b.expect("ATE0", "ATE0\r\nOK\r\n")
}

func (b *MockSequenceBuilder) VerboseErrors() *MockSequenceBuilder {
	return b.expect("AT+CMEE=2", "OK\r\n")
}

func (b *MockSequenceBuilder) SimPinRequired() *MockSequenceBuilder {
	return b.expect("AT+CPIN?", "+CPIN: SIM PIN\r\nOK\r\n")
}

func (b *MockSequenceBuilder) EnterPIN(pin string) *MockSequenceBuilder {
	return b.expect(fmt.Sprintf(`AT+CPIN="%s"`, pin), "OK\r\n")
}

func (b *MockSequenceBuilder) SimReady() *MockSequenceBuilder {
	return b.expect("AT+CPIN?", "+CPIN: READY\r\nOK\r\n")
}

func (b *MockSequenceBuilder) SMSTextMode() *MockSequenceBuilder {
	return b.expect("AT+CMGF=1", "OK\r\n")
}

func (b *MockSequenceBuilder) NewMessageIndex() *MockSequenceBuilder {
	return b.expect("AT+CNMI=2,1,0,0,0", "OK\r\n")
}

func (b *MockSequenceBuilder) CallerID() *MockSequenceBuilder {
	return b.expect("AT+CLIP=1", "OK\r\n")
}

func (b *MockSequenceBuilder) ToneDetect() *MockSequenceBuilder {
	return b.expect("AT+DDET=1,0", "OK\r\n")
}

func (b *MockSequenceBuilder) ToneDetectError() *MockSequenceBuilder {
	return b.expect("AT+DDET=1,0", "ERROR\r\n")
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}

// initMockCalls is the full successful initialization sequence.
func initMockCalls(transport *modem.MockTransport) []any {
	return NewMockSequence(transport).
		AT().
		EchoOff().
		VerboseErrors().
		SimReady().
		SMSTextMode().
		NewMessageIndex().
		CallerID().
		ToneDetect().
		Build()
}
