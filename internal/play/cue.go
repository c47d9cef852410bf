package play

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/audiolibrelab/tapedeck/internal/audio"
	"github.com/audiolibrelab/tapedeck/internal/config"
)

// Cue is the short alert played before a message. Play returns once the
// cue has finished.
type Cue interface {
	Play(ctx context.Context) error
}

// NopCue plays nothing.
type NopCue struct{}

func (NopCue) Play(context.Context) error { return nil }

// ToneCue synthesises the alert tone once and plays it through a one-shot
// player process per call.
type ToneCue struct {
	player string
	wav    []byte
}

// NewCue builds the cue described by cfg. A disabled tone yields NopCue.
func NewCue(cfg *config.Config) (Cue, error) {
	if !cfg.Tone.Enabled {
		return NopCue{}, nil
	}

	wav, err := audio.ToneFromConfig(cfg.Tone).WAV()
	if err != nil {
		return nil, err
	}

	player, err := findAudioPlayer(cfg.Player.Command)
	if err != nil {
		return nil, fmt.Errorf("no player for alert tone: %w", err)
	}

	return &ToneCue{player: player, wav: wav}, nil
}

func (c *ToneCue) Play(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.player, playerArgs(c.player, 0)...)
	cmd.Stdin = bytes.NewReader(c.wav)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("alert tone failed with %s: %w", c.player, err)
	}
	return nil
}
