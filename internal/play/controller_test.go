package play

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/audiolibrelab/tapedeck/internal/tape"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestController_PlayCueThenAudio(t *testing.T) {
	store, recs := newTestStore("alpha")
	sink, cue := &fakeSink{}, &fakeCue{}
	c := NewController(sink, cue, store, nil)

	var changes atomic.Int32
	c.OnChange(func() { changes.Add(1) })

	require.NoError(t, c.Play(context.Background(), recs[0].ID))

	assert.Equal(t, 1, cue.count())
	assert.Equal(t, StatePlaying, c.State())
	assert.Equal(t, recs[0].ID, c.Loaded())
	assert.Equal(t, "alpha", sink.loaded())
	assert.True(t, sink.Playing())
	assert.Equal(t, int32(1), changes.Load())
}

func TestController_PlayWhilePlayingSameIsNoop(t *testing.T) {
	store, recs := newTestStore("alpha")
	sink, cue := &fakeSink{}, &fakeCue{}
	c := NewController(sink, cue, store, nil)

	require.NoError(t, c.Play(context.Background(), recs[0].ID))
	require.NoError(t, c.Play(context.Background(), recs[0].ID))

	assert.Equal(t, 1, cue.count())
	assert.Equal(t, 1, sink.plays)
}

func TestController_PlayRefusedWhileCapturing(t *testing.T) {
	store, recs := newTestStore("alpha")
	sink, cue := &fakeSink{}, &fakeCue{}
	c := NewController(sink, cue, store, func() bool { return true })

	err := c.Play(context.Background(), recs[0].ID)
	assert.ErrorIs(t, err, ErrCaptureActive)
	assert.Equal(t, 0, cue.count())
	assert.Equal(t, StateIdle, c.State())
}

func TestController_PlayUnknownID(t *testing.T) {
	store, _ := newTestStore()
	c := NewController(&fakeSink{}, &fakeCue{}, store, nil)

	err := c.Play(context.Background(), "missing")
	assert.ErrorIs(t, err, tape.ErrNotFound)
	assert.Equal(t, StateIdle, c.State())
}

func TestController_PauseDuringCueDropsPlay(t *testing.T) {
	store, recs := newTestStore("alpha")
	sink := &fakeSink{}
	cue := &fakeCue{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	c := NewController(sink, cue, store, nil)

	done := make(chan error, 1)
	go func() { done <- c.Play(context.Background(), recs[0].ID) }()

	<-cue.started
	c.Pause()
	close(cue.gate)

	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, sink.Playing())
}

func TestController_RemovedDuringCue(t *testing.T) {
	store, recs := newTestStore("alpha")
	sink := &fakeSink{}
	cue := &fakeCue{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	c := NewController(sink, cue, store, nil)

	done := make(chan error, 1)
	go func() { done <- c.Play(context.Background(), recs[0].ID) }()

	<-cue.started
	_, err := store.Remove(recs[0].ID)
	require.NoError(t, err)
	close(cue.gate)

	assert.ErrorIs(t, <-done, tape.ErrNotFound)
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, sink.Playing())
}

func TestController_CaptureStartedDuringCue(t *testing.T) {
	store, recs := newTestStore("alpha")
	sink := &fakeSink{}
	cue := &fakeCue{gate: make(chan struct{}), started: make(chan struct{}, 1)}

	var capturing atomic.Bool
	c := NewController(sink, cue, store, capturing.Load)

	done := make(chan error, 1)
	go func() { done <- c.Play(context.Background(), recs[0].ID) }()

	<-cue.started
	capturing.Store(true)
	close(cue.gate)

	assert.ErrorIs(t, <-done, ErrCaptureActive)
	assert.False(t, sink.Playing())
}

func TestController_CancelledContextDuringCue(t *testing.T) {
	store, recs := newTestStore("alpha")
	cue := &fakeCue{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	c := NewController(&fakeSink{}, cue, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Play(ctx, recs[0].ID) }()

	<-cue.started
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, StateIdle, c.State())
}

func TestController_NaturalEndReturnsToIdle(t *testing.T) {
	store, recs := newTestStore("alpha")
	sink := &fakeSink{}
	c := NewController(sink, &fakeCue{}, store, nil)

	require.NoError(t, c.Play(context.Background(), recs[0].ID))
	sink.finish()

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, recs[0].ID, c.Loaded())
}

func TestController_RewindWhilePlayingSeeksOnly(t *testing.T) {
	store, recs := newTestStore("alpha")
	sink, cue := &fakeSink{}, &fakeCue{}
	c := NewController(sink, cue, store, nil)

	require.NoError(t, c.Play(context.Background(), recs[0].ID))
	sink.Seek(42)

	require.NoError(t, c.Rewind(context.Background(), recs[0].ID))

	assert.Zero(t, c.Position())
	assert.Equal(t, 1, cue.count())
	assert.Equal(t, StatePlaying, c.State())
}

func TestController_RewindWhenIdlePlays(t *testing.T) {
	store, recs := newTestStore("alpha")
	sink, cue := &fakeSink{}, &fakeCue{}
	c := NewController(sink, cue, store, nil)

	require.NoError(t, c.Play(context.Background(), recs[0].ID))
	c.Pause()
	sink.Seek(42)

	require.NoError(t, c.Rewind(context.Background(), recs[0].ID))

	assert.Zero(t, c.Position())
	assert.Equal(t, 2, cue.count())
	assert.Equal(t, StatePlaying, c.State())
}

func TestController_SwitchingRecordingKeepsOneOutput(t *testing.T) {
	store, recs := newTestStore("alpha", "beta")
	sink, cue := &fakeSink{}, &fakeCue{}
	c := NewController(sink, cue, store, nil)

	require.NoError(t, c.Play(context.Background(), recs[0].ID))
	require.True(t, sink.Playing())

	cue.mu.Lock()
	cue.gate = make(chan struct{})
	cue.started = make(chan struct{}, 1)
	cue.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- c.Play(context.Background(), recs[1].ID) }()

	<-cue.started
	// alpha must be silent while the cue for beta sounds
	assert.False(t, sink.Playing())
	assert.Equal(t, StateIdle, c.State())
	close(cue.gate)

	require.NoError(t, <-done)
	assert.Equal(t, "beta", sink.loaded())
	assert.Equal(t, recs[1].ID, c.Loaded())
	assert.Equal(t, StatePlaying, c.State())
	assert.True(t, sink.Playing())
}

func TestController_RewindAfterSinkRanOutReplays(t *testing.T) {
	store, recs := newTestStore("alpha")
	sink, cue := &fakeSink{}, &fakeCue{}
	c := NewController(sink, cue, store, nil)

	require.NoError(t, c.Play(context.Background(), recs[0].ID))

	// the sink finished but ended has not been delivered yet
	ended := sink.runOut()
	require.NoError(t, c.Rewind(context.Background(), recs[0].ID))
	ended()

	assert.Equal(t, 2, cue.count())
	assert.True(t, sink.Playing())
	assert.Equal(t, StatePlaying, c.State())
}

func TestController_UnloadForcesIdle(t *testing.T) {
	store, recs := newTestStore("alpha")
	sink := &fakeSink{}
	c := NewController(sink, &fakeCue{}, store, nil)

	require.NoError(t, c.Play(context.Background(), recs[0].ID))
	c.Unload()

	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, c.Loaded())
	assert.Empty(t, sink.loaded())
	assert.False(t, sink.Playing())
}
