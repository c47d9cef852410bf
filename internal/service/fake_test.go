package service

import (
	"context"
	"sync"
	"time"

	"github.com/audiolibrelab/tapedeck/internal/audio"
	"github.com/audiolibrelab/tapedeck/internal/config"
	"github.com/audiolibrelab/tapedeck/internal/play"
)

type fakeDevice struct {
	mu       sync.Mutex
	chunks   [][]byte
	takes    [][][]byte // per-open chunks, overriding chunks when set
	err      error
	closeErr error
	gate     chan struct{} // when set, Open blocks until it is closed
	release  chan struct{} // when set, stream Close blocks until it is closed
	opens    int
	streams  []*fakeStream
}

func (d *fakeDevice) Open(ctx context.Context) (audio.Stream, error) {
	d.mu.Lock()
	d.opens++
	gate := d.gate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	chunks := d.chunks
	if n := len(d.streams); n < len(d.takes) {
		chunks = d.takes[n]
	}
	s := &fakeStream{
		out:     make(chan []byte, len(chunks)),
		err:     d.closeErr,
		release: d.release,
		closing: make(chan struct{}),
	}
	for _, c := range chunks {
		s.out <- c
	}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDevice) stream(i int) *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.streams) {
		return nil
	}
	return d.streams[i]
}

type fakeStream struct {
	out     chan []byte
	err     error
	release chan struct{}
	closing chan struct{} // closed when Close is entered
	once    sync.Once
}

func (s *fakeStream) Chunks() <-chan []byte { return s.out }

func (s *fakeStream) Close() error {
	s.once.Do(func() {
		close(s.closing)
		if s.release != nil {
			<-s.release
		}
		close(s.out)
	})
	return s.err
}

type fakeSink struct {
	mu      sync.Mutex
	payload []byte
	playing bool
	pos     time.Duration
	onEnded func()
}

func (s *fakeSink) Load(payload []byte) {
	s.mu.Lock()
	s.payload, s.playing, s.pos = payload, false, 0
	s.mu.Unlock()
}

func (s *fakeSink) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.payload) == 0 {
		return play.ErrNothingLoaded
	}
	s.playing = true
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

type fakeCue struct{}

func (fakeCue) Play(context.Context) error { return nil }

func newTestDeck(device *fakeDevice, mutate ...func(*config.Config)) (*DeckService, *fakeSink) {
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}
	sink := &fakeSink{}
	deck := NewWithDeps(cfg, Deps{Device: device, Sink: sink, Cue: fakeCue{}},
		audio.WithTickInterval(5*time.Millisecond))
	return deck, sink
}
