// Package audio plays the prompt clips heard by the remote party of a call.
//
// Clips are WAV files named after their identifier (0.wav .. 9.wav,
// menu.wav, alert.wav) in a single directory. Playback goes through the
// modem's analog audio input, so Play blocks until the clip has finished.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Clip identifies one audio clip.
type Clip string

const (
	// ClipMenu introduces the tone menu after an authorized call is answered.
	ClipMenu Clip = "menu"
	// ClipAlert is played to each number dialled during an alarm.
	ClipAlert Clip = "alert"
)

// ErrClipNotFound is returned when the clip file is missing.
var ErrClipNotFound = errors.New("clip not found")

// DigitClip returns the clip announcing digit d (0-9).
func DigitClip(d int) Clip {
	return Clip(strconv.Itoa(d))
}

// Player plays a clip and returns when it has finished.
type Player interface {
	Play(ctx context.Context, clip Clip) error
}

// DefaultCommand is the player binary used by CommandPlayer.
const DefaultCommand = "aplay"

// CommandPlayer plays clips with an external player process, by default
// "aplay -q <dir>/<clip>.wav".
type CommandPlayer struct {
	Dir     string
	Command string
	Args    []string
	Log     *zap.SugaredLogger
}

// NewCommandPlayer returns a player for the clips in dir.
func NewCommandPlayer(dir string, log *zap.SugaredLogger) *CommandPlayer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CommandPlayer{
		Dir:     dir,
		Command: DefaultCommand,
		Args:    []string{"-q"},
		Log:     log,
	}
}

// Path returns the file backing clip.
func (p *CommandPlayer) Path(clip Clip) string {
	return filepath.Join(p.Dir, string(clip)+".wav")
}

// Play runs the player and waits for it. Cancelling ctx stops playback.
func (p *CommandPlayer) Play(ctx context.Context, clip Clip) error {
	path := p.Path(clip)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrClipNotFound, path)
		}
		return fmt.Errorf("stat clip %s: %w", path, err)
	}

	args := append(append([]string(nil), p.Args...), path)
	p.Log.Debugw("Playing clip", "clip", clip, "path", path)

	out, err := exec.CommandContext(ctx, p.Command, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("play %s: %w: %s", clip, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// NopPlayer discards every clip. It stands in when no audio is wired.
type NopPlayer struct{}

func (NopPlayer) Play(context.Context, Clip) error { return nil }
