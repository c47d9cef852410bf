package play

import (
	"bytes"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Sink is the single audio output slot. Only one payload is loaded at a
// time.
type Sink interface {
	// Load replaces the loaded payload, stopping any playback and resetting
	// the position. A nil payload empties the slot.
	Load(payload []byte)
	Play() error
	Pause()
	Seek(pos time.Duration)
	CurrentTime() time.Duration
	Playing() bool
	// OnEnded registers fn to run when playback reaches the end of the
	// payload on its own.
	OnEnded(fn func())
	Close() error
}

// ProcessSink plays payloads through an external player fed on stdin.
// Seeking restarts the player at the new offset.
type ProcessSink struct {
	player string
	args   func(offset time.Duration) []string

	mu        sync.Mutex
	payload   []byte
	offset    time.Duration
	startedAt time.Time
	cmd       *exec.Cmd
	gen       uint64
	playing   bool
	onEnded   func()
}

// NewProcessSink resolves the player named by command ("auto", "ffplay" or
// "mpv").
func NewProcessSink(command string) (*ProcessSink, error) {
	player, err := findAudioPlayer(command)
	if err != nil {
		return nil, fmt.Errorf("no suitable audio player found: %w", err)
	}
	slog.Debug("Using audio player", "player", player)
	return &ProcessSink{
		player: player,
		args:   func(offset time.Duration) []string { return playerArgs(player, offset) },
	}, nil
}

func (p *ProcessSink) Load(payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.payload = payload
	p.offset = 0
}

func (p *ProcessSink) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playing {
		return nil
	}
	if len(p.payload) == 0 {
		return ErrNothingLoaded
	}
	return p.startLocked()
}

func (p *ProcessSink) startLocked() error {
	cmd := exec.Command(p.player, p.args(p.offset)...)
	cmd.Stdin = bytes.NewReader(p.payload)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("playback failed with %s: %w", p.player, err)
	}

	p.gen++
	gen := p.gen
	p.cmd = cmd
	p.startedAt = time.Now()
	p.playing = true

	go p.wait(cmd, gen)
	return nil
}

func (p *ProcessSink) wait(cmd *exec.Cmd, gen uint64) {
	err := cmd.Wait()

	p.mu.Lock()
	if p.gen != gen {
		// Killed by Pause, Seek or Load.
		p.mu.Unlock()
		return
	}
	p.playing = false
	p.cmd = nil
	p.offset = 0
	fn := p.onEnded
	p.mu.Unlock()

	if err != nil {
		slog.Debug("Player exited with error", "player", p.player, "error", err)
	}
	if fn != nil {
		fn()
	}
}

func (p *ProcessSink) stopLocked() {
	if !p.playing {
		return
	}
	p.offset += time.Since(p.startedAt)
	p.gen++
	p.playing = false
	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.cmd = nil
}

func (p *ProcessSink) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *ProcessSink) Seek(pos time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pos < 0 {
		pos = 0
	}
	if !p.playing {
		p.offset = pos
		return
	}
	p.stopLocked()
	p.offset = pos
	if err := p.startLocked(); err != nil {
		slog.Warn("Failed to restart player after seek", "error", err)
	}
}

func (p *ProcessSink) CurrentTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return p.offset + time.Since(p.startedAt)
	}
	return p.offset
}

func (p *ProcessSink) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *ProcessSink) OnEnded(fn func()) {
	p.mu.Lock()
	p.onEnded = fn
	p.mu.Unlock()
}

func (p *ProcessSink) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.payload = nil
	p.offset = 0
	return nil
}

// playerArgs builds a command line that reads the payload from stdin and
// exits when it ends.
func playerArgs(player string, offset time.Duration) []string {
	start := fmt.Sprintf("%.3f", offset.Seconds())
	switch player {
	case "mpv":
		return []string{"--no-video", "--really-quiet", "--start=" + start, "-"}
	default:
		return []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-ss", start, "-i", "pipe:0"}
	}
}

func findAudioPlayer(preferred string) (string, error) {
	// List of supported players in order of preference
	players := []string{"ffplay", "mpv"}
	if preferred != "" && preferred != "auto" {
		players = []string{preferred}
	}

	for _, player := range players {
		if _, err := exec.LookPath(player); err == nil {
			return player, nil
		}
	}

	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(players, ", "))
}
