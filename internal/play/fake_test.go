package play

import (
	"context"
	"sync"
	"time"

	"github.com/audiolibrelab/tapedeck/internal/tape"
)

type fakeSink struct {
	mu      sync.Mutex
	payload []byte
	pos     time.Duration
	playing bool
	plays   int
	onEnded func()
}

func (s *fakeSink) Load(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = payload
	s.pos = 0
	s.playing = false
}

func (s *fakeSink) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.payload) == 0 {
		return ErrNothingLoaded
	}
	s.playing = true
	s.plays++
	return nil
}

func (s *fakeSink) Pause() {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
}

func (s *fakeSink) Seek(pos time.Duration) {
	s.mu.Lock()
	s.pos = pos
	s.mu.Unlock()
}

func (s *fakeSink) CurrentTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *fakeSink) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *fakeSink) OnEnded(fn func()) {
	s.mu.Lock()
	s.onEnded = fn
	s.mu.Unlock()
}

func (s *fakeSink) Close() error {
	s.Load(nil)
	return nil
}

// finish simulates the payload running out.
func (s *fakeSink) finish() {
	s.mu.Lock()
	s.playing = false
	s.pos = 0
	fn := s.onEnded
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// runOut stops the sink as a natural end would but holds back the ended
// callback, returning it for the test to fire later.
func (s *fakeSink) runOut() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.pos = 0
	return s.onEnded
}

func (s *fakeSink) loaded() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.payload)
}

// fakeCue counts plays. With a gate set, Play blocks until the gate is
// released so tests can act while the cue "sounds".
type fakeCue struct {
	mu      sync.Mutex
	plays   int
	gate    chan struct{}
	started chan struct{}
}

func (c *fakeCue) Play(ctx context.Context) error {
	c.mu.Lock()
	c.plays++
	gate, started := c.gate, c.started
	c.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *fakeCue) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plays
}

func newTestStore(payloads ...string) (*tape.Store, []tape.Recording) {
	store := tape.NewStore(nil)
	var recs []tape.Recording
	for _, p := range payloads {
		rec, err := store.Append([]byte(p), time.Now(), time.Second)
		if err != nil {
			panic(err)
		}
		recs = append(recs, rec)
	}
	return store, recs
}
