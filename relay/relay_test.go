package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// recordingPin keeps every level written to a fake pin.
type recordingPin struct {
	*gpiotest.Pin

	mu     sync.Mutex
	writes []gpio.Level
}

func newRecordingPin(name string) *recordingPin {
	return &recordingPin{Pin: &gpiotest.Pin{N: name}}
}

func (p *recordingPin) Out(l gpio.Level) error {
	p.mu.Lock()
	p.writes = append(p.writes, l)
	p.mu.Unlock()

	return p.Pin.Out(l)
}

func (p *recordingPin) last() gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.writes[len(p.writes)-1]
}

// transitions counts level changes across the recorded writes.
func (p *recordingPin) transitions() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for i := 1; i < len(p.writes); i++ {
		if p.writes[i] != p.writes[i-1] {
			n++
		}
	}
	return n
}

func newTestBank(activeHigh bool) (*Bank, [3]*recordingPin) {
	pins := [3]*recordingPin{
		newRecordingPin("VIB1"),
		newRecordingPin("VIB2"),
		newRecordingPin("LAMP"),
	}
	return NewBank(pins[0], pins[1], pins[2], activeHigh, nil), pins
}

// TestNewBankSwitchesOff verifies the lines start in the off level for the
// configured polarity.
func TestNewBankSwitchesOff(t *testing.T) {
	t.Parallel()

	_, low := newTestBank(false)
	for _, p := range low {
		require.Equal(t, gpio.High, p.last(), p.N)
	}

	_, high := newTestBank(true)
	for _, p := range high {
		require.Equal(t, gpio.Low, p.last(), p.N)
	}
}

// TestPolarityAppliedPerWrite flips polarity between two "on" writes and
// expects the physical line to change once per write.
func TestPolarityAppliedPerWrite(t *testing.T) {
	t.Parallel()

	b, pins := newTestBank(false)
	lamp := pins[Lamp]

	require.True(t, b.Write(Lamp, true))
	require.Equal(t, gpio.Low, lamp.last())

	b.SetActiveHigh(true)
	require.Equal(t, gpio.Low, lamp.last(), "polarity change alone must not touch the line")

	require.True(t, b.Write(Lamp, true))
	require.Equal(t, gpio.High, lamp.last())
	require.Equal(t, 2, lamp.transitions())
	require.True(t, b.Snapshot().Lamp)
}

func TestSetWritesAllChannels(t *testing.T) {
	t.Parallel()

	b, pins := newTestBank(true)

	require.True(t, b.Set(true, false, true))
	require.Equal(t, gpio.High, pins[Vibrator1].last())
	require.Equal(t, gpio.Low, pins[Vibrator2].last())
	require.Equal(t, gpio.High, pins[Lamp].last())

	snap := b.Snapshot()
	require.True(t, snap.Vibrator1)
	require.False(t, snap.Vibrator2)
	require.True(t, snap.Lamp)
	require.True(t, snap.ActiveHigh)
}

// TestOverrideSuppressesWrites checks that a forced pattern holds the
// outputs and expires back to all-off.
func TestOverrideSuppressesWrites(t *testing.T) {
	t.Parallel()

	b, pins := newTestBank(true)

	b.ForceFor(false, true, false, 30*time.Millisecond)
	require.True(t, b.Overridden())
	require.Equal(t, gpio.High, pins[Vibrator2].last())

	require.False(t, b.Set(false, false, true))
	require.False(t, b.Write(Vibrator2, false))
	require.Equal(t, gpio.Low, pins[Lamp].last())
	require.Equal(t, gpio.High, pins[Vibrator2].last())

	require.Eventually(t, func() bool { return !b.Overridden() }, time.Second, time.Millisecond)
	snap := b.Snapshot()
	require.False(t, snap.Vibrator1 || snap.Vibrator2 || snap.Lamp)
	require.True(t, snap.OverrideUntil.IsZero())
}

// TestOverrideReplacesPrevious ensures a new override restarts the shared
// expiry timer.
func TestOverrideReplacesPrevious(t *testing.T) {
	t.Parallel()

	b, _ := newTestBank(true)

	b.TestFor(20 * time.Millisecond)
	b.ForceFor(true, false, false, 200*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	require.True(t, b.Overridden(), "first deadline must not end the replacement override")

	snap := b.Snapshot()
	require.True(t, snap.Vibrator1)
	require.False(t, snap.Vibrator2)
}

func TestCancelOverride(t *testing.T) {
	t.Parallel()

	b, pins := newTestBank(false)

	require.False(t, b.CancelOverride())

	b.TestFor(time.Hour)
	require.Equal(t, gpio.Low, pins[Vibrator1].last())

	require.True(t, b.CancelOverride())
	require.False(t, b.Overridden())
	for _, p := range pins {
		require.Equal(t, gpio.High, p.last(), p.N)
	}

	require.True(t, b.Set(true, true, true), "normal writes resume after cancel")
}
