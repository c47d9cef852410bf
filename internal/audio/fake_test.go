package audio

import (
	"context"
	"sync"
)

// fakeDevice hands out fakeStreams that emit the configured chunks and
// then wait for Close.
type fakeDevice struct {
	mu      sync.Mutex
	chunks  [][]byte
	err     error
	opens   int
	streams []*fakeStream
	gate    chan struct{} // when set, Open blocks until it is closed
	takes   [][][]byte    // per-open chunks, overriding chunks when set
	release chan struct{} // when set, stream Close blocks until it is closed
}

func (d *fakeDevice) Open(ctx context.Context) (Stream, error) {
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

	if d.err != nil {
		return nil, d.err
	}

	d.mu.Lock()
	chunks := d.chunks
	if n := len(d.streams); n < len(d.takes) {
		chunks = d.takes[n]
	}
	s := &fakeStream{out: make(chan []byte, len(chunks)+1), closed: make(chan struct{}), release: d.release}
	for _, c := range chunks {
		s.out <- c
	}
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDevice) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

type fakeStream struct {
	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	closes    int
	release   chan struct{}
	closing   chan struct{}
	mu        sync.Mutex
}

func (s *fakeStream) Chunks() <-chan []byte {
	return s.out
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	s.closeOnce.Do(func() {
		if s.release != nil {
			close(s.closingCh())
			<-s.release
		}
		s.out <- []byte("|tail")
		close(s.out)
		close(s.closed)
	})
	return nil
}

func (s *fakeStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// closingCh is closed once Close has been entered.
func (s *fakeStream) closingCh() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing == nil {
		s.closing = make(chan struct{})
	}
	return s.closing
}
