package play

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State represents the playback state
type State string

const (
	StateIdle    State = "IDLE"
	StatePlaying State = "PLAYING"
)

var (
	ErrCaptureActive = errors.New("playback unavailable while capturing")
	ErrNothingLoaded = errors.New("nothing loaded")
)

// Source resolves a recording id to its audio.
type Source interface {
	Payload(id string) ([]byte, error)
}

// Controller drives the single Sink: cue then audio on play, pause, rewind,
// and forced unload when the loaded recording goes away.
type Controller struct {
	sink      Sink
	cue       Cue
	source    Source
	capturing func() bool

	mu       sync.Mutex
	state    State
	loaded   string
	gen      uint64
	onChange func()
}

// NewController wires sink and cue to source. capturing reports whether a
// capture is in progress; playback never starts while it returns true.
func NewController(sink Sink, cue Cue, source Source, capturing func() bool) *Controller {
	if cue == nil {
		cue = NopCue{}
	}
	if capturing == nil {
		capturing = func() bool { return false }
	}
	c := &Controller{
		sink:      sink,
		cue:       cue,
		source:    source,
		capturing: capturing,
		state:     StateIdle,
	}
	sink.OnEnded(c.ended)
	return c
}

// OnChange registers fn to run after every state transition.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// ended runs after the sink ran out. A play that restarted the sink in the
// meantime keeps the controller Playing.
func (c *Controller) ended() {
	c.mu.Lock()
	changed := c.state == StatePlaying && !c.sink.Playing()
	if changed {
		c.state = StateIdle
	}
	c.mu.Unlock()

	if changed {
		slog.Debug("Playback reached end", "id", c.Loaded())
		c.notify()
	}
}

// Play plays the cue and then recording id. A pause, unload or newer play
// issued while the cue sounds supersedes this call, which then returns nil
// without starting audio.
func (c *Controller) Play(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.capturing() {
		c.mu.Unlock()
		return ErrCaptureActive
	}
	if _, err := c.source.Payload(id); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.playingLocked() && c.loaded == id {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	gen := c.gen

	// Another recording is sounding: silence it before the cue.
	switched := c.state == StatePlaying && c.loaded != id
	if switched {
		c.sink.Pause()
		c.state = StateIdle
	}
	c.mu.Unlock()

	if switched {
		c.notify()
	}

	if err := c.cue.Play(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("Alert tone failed, playing without it", "error", err)
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		slog.Debug("Play superseded during cue", "id", id)
		return nil
	}
	if c.capturing() {
		c.mu.Unlock()
		return ErrCaptureActive
	}
	payload, err := c.source.Payload(id)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if c.loaded != id {
		c.sink.Load(payload)
		c.loaded = id
	}
	if err := c.sink.Play(); err != nil {
		c.state = StateIdle
		c.mu.Unlock()
		return fmt.Errorf("failed to start playback: %w", err)
	}
	c.state = StatePlaying
	c.mu.Unlock()

	slog.Debug("Playback started", "id", id)
	c.notify()
	return nil
}

// Pause stops audio and cancels a play whose cue is still sounding.
func (c *Controller) Pause() {
	c.mu.Lock()
	c.gen++
	changed := c.state == StatePlaying
	if changed {
		c.sink.Pause()
		c.state = StateIdle
	}
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// Rewind moves recording id back to the start. When idle it also plays.
func (c *Controller) Rewind(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.loaded == id {
		c.sink.Seek(0)
		if c.playingLocked() {
			c.mu.Unlock()
			c.notify()
			return nil
		}
	}
	c.mu.Unlock()

	return c.Play(ctx, id)
}

// Unload forces Idle and empties the sink.
func (c *Controller) Unload() {
	c.mu.Lock()
	c.gen++
	changed := c.state == StatePlaying || c.loaded != ""
	c.sink.Load(nil)
	c.loaded = ""
	c.state = StateIdle
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// playingLocked reports whether audio is really sounding. The sink may have
// run out before ended had a chance to update state.
func (c *Controller) playingLocked() bool {
	return c.state == StatePlaying && c.sink.Playing()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Loaded returns the id in the sink, or "".
func (c *Controller) Loaded() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

func (c *Controller) Position() time.Duration {
	return c.sink.CurrentTime()
}

// Close unloads and releases the sink.
func (c *Controller) Close() error {
	c.Unload()
	return c.sink.Close()
}
