package modem

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.bug.st/serial"
	"go.uber.org/mock/gomock"
)

func TestSerialDialerRejects(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		dialer  SerialDialer
		ctx     context.Context
		wantMsg string
		wantErr error
	}{
		{
			name:    "Empty port name",
			dialer:  SerialDialer{},
			ctx:     context.Background(),
			wantMsg: "gsm: serial port name is required",
		},
		{
			name:    "Nil context",
			dialer:  SerialDialer{PortName: "/dev/ttyUSB0"},
			ctx:     nil,
			wantMsg: "gsm: context is nil",
		},
		{
			name:    "Cancelled before opening",
			dialer:  SerialDialer{PortName: "/dev/vibralarm-missing"},
			ctx:     canceled,
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			//nolint:staticcheck // a nil context is one of the cases under test.
			transport, err := tt.dialer.Dial(tt.ctx)
			if transport != nil {
				t.Error("expected nil transport")
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantMsg != "" && err.Error() != tt.wantMsg {
				t.Errorf("unexpected error message: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got: %v", tt.wantErr, err)
			}
		})
	}
}

// TestSerialDialerOpenFailure checks that a missing device is reported with
// its path, both with the default line settings and with an explicit mode.
func TestSerialDialerOpenFailure(t *testing.T) {
	for _, mode := range []*serial.Mode{nil, {BaudRate: 9600, DataBits: 8}} {
		dialer := SerialDialer{PortName: "/dev/vibralarm-missing", Mode: mode}

		transport, err := dialer.Dial(context.Background())
		if err == nil {
			t.Fatal("expected error for a missing port")
		}
		if transport != nil {
			t.Error("expected nil transport for a missing port")
		}
		if !strings.Contains(err.Error(), "/dev/vibralarm-missing") {
			t.Errorf("expected the port name in the error, got: %v", err)
		}
	}
}

func TestDefaultMode(t *testing.T) {
	if DefaultMode.BaudRate != 115200 || DefaultMode.DataBits != 8 {
		t.Errorf("unexpected default line settings: %+v", DefaultMode)
	}
	if DefaultMode.Parity != serial.NoParity || DefaultMode.StopBits != serial.OneStopBit {
		t.Errorf("expected 8N1, got %+v", DefaultMode)
	}
}

// TestNewDialFailure ensures a dial error surfaces from New unchanged and no
// transport is touched.
func TestNewDialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := NewMockDialer(ctrl)

	dialErr := errors.New("port busy")
	dialer.EXPECT().Dial(gomock.Any()).Return(nil, dialErr)

	config, err := NewConfigBuilder().WithDialer(dialer).Build()
	if err != nil {
		t.Fatalf("unexpected config error: %v", err)
	}

	m, err := New(context.Background(), config)
	if !errors.Is(err, dialErr) {
		t.Errorf("expected dial error, got: %v", err)
	}
	if m != nil {
		t.Error("expected nil modem on dial failure")
	}
}
