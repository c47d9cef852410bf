package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/tapedeck/internal/audio"
	"github.com/audiolibrelab/tapedeck/internal/config"
	"github.com/audiolibrelab/tapedeck/internal/play"
	"github.com/audiolibrelab/tapedeck/internal/service"
)

type stubDevice struct{ err error }

func (d stubDevice) Open(context.Context) (audio.Stream, error) {
	if d.err != nil {
		return nil, d.err
	}
	s := &stubStream{out: make(chan []byte, 1)}
	s.out <- []byte("voice")
	return s, nil
}

type stubStream struct {
	out  chan []byte
	once sync.Once
}

func (s *stubStream) Chunks() <-chan []byte { return s.out }
func (s *stubStream) Close() error {
	s.once.Do(func() { close(s.out) })
	return nil
}

type stubSink struct {
	mu      sync.Mutex
	payload []byte
	playing bool
}

func (s *stubSink) Load(p []byte) {
	s.mu.Lock()
	s.payload, s.playing = p, false
	s.mu.Unlock()
}
func (s *stubSink) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.payload) == 0 {
		return play.ErrNothingLoaded
	}
	s.playing = true
	return nil
}
func (s *stubSink) Pause()                     { s.mu.Lock(); s.playing = false; s.mu.Unlock() }
func (s *stubSink) Seek(time.Duration)         {}
func (s *stubSink) CurrentTime() time.Duration { return 0 }
func (s *stubSink) Playing() bool              { s.mu.Lock(); defer s.mu.Unlock(); return s.playing }
func (s *stubSink) OnEnded(func())             {}
func (s *stubSink) Close() error               { s.Load(nil); return nil }

func newTestServer(t *testing.T, device audio.Device, mutate ...func(*config.Config)) (*Server, *service.DeckService) {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}
	deck := service.NewWithDeps(cfg, service.Deps{Device: device, Sink: &stubSink{}, Cue: play.NopCue{}})
	t.Cleanup(func() { deck.Close() })
	return New(deck, ""), deck
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	srv, _ := newTestServer(t, stubDevice{})
	rec := do(t, srv.Router(), http.MethodGet, "/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, audio.StatusStandby, resp.Status)
	assert.Equal(t, "0:00", resp.ElapsedDisplay)
	assert.Equal(t, "default", resp.Source)
}

func TestRecordListStreamDelete(t *testing.T) {
	srv, _ := newTestServer(t, stubDevice{})
	h := srv.Router()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/record/start", "").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/record/stop", "").Code)

	rec := do(t, h, http.MethodGet, "/api/recordings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list RecordingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.TotalCount)
	item := list.Recordings[0]
	assert.True(t, item.IsSelected)
	assert.Equal(t, "Recording 1", item.Name)

	stream := do(t, h, http.MethodGet, item.StreamURL, "")
	require.Equal(t, http.StatusOK, stream.Code)
	assert.Equal(t, "voice", stream.Body.String())
	assert.Equal(t, "audio/webm", stream.Header().Get("Content-Type"))

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/recordings/"+item.ID+"/delete", "").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/delete/confirm", "").Code)

	assert.Equal(t, http.StatusGone, do(t, h, http.MethodGet, item.StreamURL, "").Code)
}

func TestStreamUnknownHandle(t *testing.T) {
	srv, _ := newTestServer(t, stubDevice{})
	rec := do(t, srv.Router(), http.MethodGet, "/api/handles/tape-unknown", "")
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestStartRecordingDeviceUnavailable(t *testing.T) {
	device := stubDevice{err: fmt.Errorf("%w: no microphone", audio.ErrDeviceUnavailable)}
	srv, _ := newTestServer(t, device)

	rec := do(t, srv.Router(), http.MethodPost, "/record/start", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp GenericResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "capture device unavailable")
}

func TestPlayAndPause(t *testing.T) {
	srv, deck := newTestServer(t, stubDevice{})
	h := srv.Router()

	do(t, h, http.MethodPost, "/record/toggle", "")
	do(t, h, http.MethodPost, "/record/toggle", "")

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/play", "").Code)
	assert.Equal(t, play.StatePlaying, deck.Snapshot().Playback)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/pause", "").Code)
	assert.Equal(t, play.StateIdle, deck.Snapshot().Playback)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/play", "{not json").Code)
}

func TestEditFlow(t *testing.T) {
	srv, deck := newTestServer(t, stubDevice{})
	h := srv.Router()

	do(t, h, http.MethodPost, "/record/toggle", "")
	do(t, h, http.MethodPost, "/record/toggle", "")
	id := deck.Snapshot().Selected

	assert.Equal(t, http.StatusBadRequest,
		do(t, h, http.MethodPost, "/api/edit/begin", `{"id":"`+id+`","field":"color"}`).Code)

	rec := do(t, h, http.MethodPost, "/api/edit/begin", `{"id":"`+id+`","field":"name"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Recording 1")

	do(t, h, http.MethodPost, "/api/edit/input", `{"value":"Grandma"}`)
	do(t, h, http.MethodPost, "/api/edit/commit", "")

	assert.Equal(t, "Grandma", deck.Snapshot().Recordings[0].Name)
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, stubDevice{}, func(c *config.Config) {
		c.Server.RateLimitRPS = 1
	})
	h := srv.Router()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/status", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/status", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, stubDevice{})
	rec := do(t, srv.Router(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	off, _ := newTestServer(t, stubDevice{}, func(c *config.Config) {
		c.Server.EnableMetrics = false
	})
	assert.Equal(t, http.StatusNotFound, do(t, off.Router(), http.MethodGet, "/metrics", "").Code)
}

func TestEventsWebSocket(t *testing.T) {
	srv, deck := newTestServer(t, stubDevice{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first service.Snapshot
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, audio.StatusStandby, first.Status)

	require.NoError(t, deck.StartRecording(context.Background()))

	var next service.Snapshot
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, audio.StatusRecording, next.Status)

	require.NoError(t, deck.StopRecording())
}
