package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Status represents the current state of the recorder
type Status string

const (
	StatusStandby   Status = "STANDBY"
	StatusOpening   Status = "OPENING"
	StatusRecording Status = "RECORDING"
)

// Take is one finished capture.
type Take struct {
	Payload   []byte
	StartedAt time.Time
	Duration  time.Duration
	Elapsed   int // whole seconds counted while recording
}

// Recorder adapts a Device into start/stop semantics with a one-second
// elapsed counter.
type Recorder struct {
	device Device
	tick   time.Duration

	mu      sync.Mutex
	status  Status
	attempt uint64
	current *capture
	onTick  func(elapsed int)
}

// capture is one open stream and everything it accumulates. A Stop that is
// still finalizing keeps its own capture while a new Start fills another.
type capture struct {
	stream  Stream
	buf     bytes.Buffer
	elapsed int
	started time.Time

	collectDone chan struct{}
	tickStop    chan struct{}
	tickDone    chan struct{}
}

type RecorderOption func(*Recorder)

// WithTickInterval changes the counter resolution. Tests use it to avoid
// waiting whole seconds.
func WithTickInterval(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.tick = d }
}

func NewRecorder(device Device, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		device: device,
		tick:   time.Second,
		status: StatusStandby,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnTick registers fn to run after every counter increment.
func (r *Recorder) OnTick(fn func(elapsed int)) {
	r.mu.Lock()
	r.onTick = fn
	r.mu.Unlock()
}

// Start opens the device and begins buffering. It reports false without
// error when a capture is already active or being opened.
func (r *Recorder) Start(ctx context.Context) (bool, error) {
	r.mu.Lock()
	if r.status != StatusStandby {
		r.mu.Unlock()
		slog.Debug("Start ignored, capture already active", "status", r.status)
		return false, nil
	}
	r.status = StatusOpening
	r.attempt++
	attempt := r.attempt
	r.mu.Unlock()

	stream, err := r.device.Open(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		if r.attempt == attempt {
			r.status = StatusStandby
		}
		return false, fmt.Errorf("failed to start capture: %w", err)
	}

	if r.status != StatusOpening || r.attempt != attempt {
		// Closed while the device was being opened.
		go drainAndClose(stream)
		return false, nil
	}

	c := &capture{
		stream:      stream,
		started:     time.Now(),
		collectDone: make(chan struct{}),
		tickStop:    make(chan struct{}),
		tickDone:    make(chan struct{}),
	}
	r.current = c
	r.status = StatusRecording

	go r.collect(c)
	go r.count(c)

	slog.Info("Capture started")
	return true, nil
}

func drainAndClose(stream Stream) {
	go func() {
		for range stream.Chunks() {
		}
	}()
	if err := stream.Close(); err != nil {
		slog.Debug("Capture stream close failed", "error", err)
	}
}

func (r *Recorder) collect(c *capture) {
	defer close(c.collectDone)
	for chunk := range c.stream.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		r.mu.Lock()
		c.buf.Write(chunk)
		r.mu.Unlock()
	}
}

func (r *Recorder) count(c *capture) {
	defer close(c.tickDone)

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-c.tickStop:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.current != c {
				r.mu.Unlock()
				return
			}
			c.elapsed++
			elapsed, fn := c.elapsed, r.onTick
			r.mu.Unlock()

			if fn != nil {
				fn(elapsed)
			}
		}
	}
}

// Stop finalizes the capture and releases the device. The bool is false
// when nothing was recording.
func (r *Recorder) Stop() (Take, bool, error) {
	r.mu.Lock()
	if r.status != StatusRecording {
		if r.status == StatusOpening {
			// Let the pending Start release the stream.
			r.status = StatusStandby
			r.attempt++
		}
		r.mu.Unlock()
		return Take{}, false, nil
	}

	c := r.current
	r.status = StatusStandby
	r.current = nil
	r.mu.Unlock()

	close(c.tickStop)
	<-c.tickDone

	closeErr := c.stream.Close()
	<-c.collectDone

	r.mu.Lock()
	payload := make([]byte, c.buf.Len())
	copy(payload, c.buf.Bytes())
	elapsed := c.elapsed
	r.mu.Unlock()

	take := Take{
		Payload:   payload,
		StartedAt: c.started,
		Duration:  time.Since(c.started),
		Elapsed:   elapsed,
	}

	slog.Info("Capture stopped", "bytes", len(payload), "elapsed", FormatElapsed(elapsed))

	if closeErr != nil {
		return take, true, fmt.Errorf("failed to release capture device: %w", closeErr)
	}
	return take, true, nil
}

// Close stops any capture and discards it.
func (r *Recorder) Close() error {
	_, _, err := r.Stop()
	return err
}

func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Recording reports whether a capture is active or being opened.
func (r *Recorder) Recording() bool {
	return r.Status() != StatusStandby
}

// Elapsed returns the whole seconds counted for the current capture.
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRecording || r.current == nil {
		return 0
	}
	return r.current.elapsed
}

// FormatElapsed renders seconds as m:ss.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
