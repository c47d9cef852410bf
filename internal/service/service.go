package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/audiolibrelab/tapedeck/internal/audio"
	"github.com/audiolibrelab/tapedeck/internal/config"
	"github.com/audiolibrelab/tapedeck/internal/metrics"
	"github.com/audiolibrelab/tapedeck/internal/play"
	"github.com/audiolibrelab/tapedeck/internal/tape"
)

// Service represents the core tapedeck service interface
type Service interface {
	// Capture operations
	StartRecording(ctx context.Context) error
	StopRecording() error
	ToggleRecording(ctx context.Context) error

	// Selection and playback operations. An empty id means the selection.
	Select(id string) error
	Play(ctx context.Context, id string) error
	Pause()
	TogglePlay(ctx context.Context, id string) error
	Rewind(ctx context.Context, id string) error

	// Deletion operations
	RequestDelete(id string)
	ConfirmDelete() error
	CancelDelete()

	// Metadata editing operations
	BeginEdit(id string, field tape.Field) (string, error)
	EditInput(value string) error
	CommitEdit()
	CancelEdit()

	// Information operations
	Snapshot() Snapshot
	Resolve(handle string) ([]byte, error)
	Subscribe() (<-chan Snapshot, func())
	GetConfig() *config.Config
	GetLastError() string

	Close() error
}

// Snapshot is a consistent-enough view of the deck for rendering.
type Snapshot struct {
	Status         audio.Status     `json:"status"`
	Elapsed        int              `json:"elapsed"`
	ElapsedDisplay string           `json:"elapsed_display"`
	Playback       play.State       `json:"playback"`
	Loaded         string           `json:"loaded,omitempty"`
	Position       float64          `json:"position_seconds"`
	Selected       string           `json:"selected,omitempty"`
	Recordings     []tape.Recording `json:"recordings"`
	PendingDelete  string           `json:"pending_delete,omitempty"`
	Editing        *Editing         `json:"editing,omitempty"`
	Notice         string           `json:"notice,omitempty"`
}

// Deps are the hardware-facing primitives the deck drives.
type Deps struct {
	Device audio.Device
	Sink   play.Sink
	Cue    play.Cue
}

// DeckService is the main service implementation
type DeckService struct {
	cfg        *config.Config
	store      *tape.Store
	recorder   *audio.Recorder
	controller *play.Controller
	confirm    *Confirmation
	editor     *Editor
	hub        *hub

	closeOnce sync.Once

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a deck wired to ffmpeg capture and an external player.
func New(cfg *config.Config, logWriter io.Writer) (*DeckService, error) {
	if logWriter == nil {
		logWriter = io.Discard
	}

	sink, err := play.NewProcessSink(cfg.Player.Command)
	if err != nil {
		return nil, err
	}

	cue, err := play.NewCue(cfg)
	if err != nil {
		slog.Warn("Alert tone unavailable, playing without it", "error", err)
		cue = play.NopCue{}
	}

	return NewWithDeps(cfg, Deps{
		Device: audio.NewDevice(cfg, logWriter),
		Sink:   sink,
		Cue:    cue,
	}), nil
}

// NewWithDeps creates a deck around the given primitives.
func NewWithDeps(cfg *config.Config, deps Deps, opts ...audio.RecorderOption) *DeckService {
	store := tape.NewStore(nil)
	recorder := audio.NewRecorder(deps.Device, opts...)

	s := &DeckService{
		cfg:        cfg,
		store:      store,
		recorder:   recorder,
		controller: play.NewController(deps.Sink, deps.Cue, store, recorder.Recording),
		confirm:    &Confirmation{},
		editor:     NewEditor(store, cfg.Edit.RevertOnCancel),
		hub:        newHub(),
	}

	recorder.OnTick(func(int) { s.publish() })
	s.controller.OnChange(s.publish)
	return s
}

// interrupt is run by every intent outside the prompt and the editor:
// an open prompt is cancelled and an open edit loses focus.
func (s *DeckService) interrupt() {
	if s.confirm.Cancel() {
		metrics.IncDeletion("cancelled")
	}
	if done, ok := s.editor.Commit(); ok {
		metrics.IncEdit(string(done.Field), "committed")
	}
}

// StartRecording pauses playback and opens the capture device
func (s *DeckService) StartRecording(ctx context.Context) error {
	slog.Debug("Service.StartRecording called")
	s.interrupt()
	s.controller.Pause()

	started, err := s.recorder.Start(ctx)
	if err != nil {
		if errors.Is(err, audio.ErrDeviceUnavailable) {
			metrics.IncCaptureStart("unavailable")
			s.setLastError(fmt.Sprintf("Microphone unavailable: %v", err))
		} else {
			metrics.IncCaptureStart("error")
			s.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
		}
		s.publish()
		return err
	}
	if !started {
		return nil
	}

	// A play that slipped in before the device was claimed loses.
	s.controller.Pause()
	s.clearLastError()
	metrics.IncCaptureStart("started")
	metrics.SetCaptureActive(true)
	s.publish()
	return nil
}

// StopRecording finalizes the capture into a new, selected recording
func (s *DeckService) StopRecording() error {
	s.interrupt()

	opening := s.recorder.Status() == audio.StatusOpening
	take, stopped, err := s.recorder.Stop()
	if !stopped {
		if opening {
			slog.Debug("Capture abandoned while the device was opening")
			s.publish()
		}
		return nil
	}
	metrics.SetCaptureActive(false)
	if err != nil {
		slog.Warn("Capture did not stop cleanly", "error", err)
	}

	if len(take.Payload) == 0 {
		slog.Info("Capture produced no audio, nothing stored")
		s.publish()
		return err
	}

	rec, appendErr := s.store.Append(take.Payload, take.StartedAt, take.Duration)
	if appendErr != nil {
		s.setLastError(fmt.Sprintf("Failed to store recording: %v", appendErr))
		s.publish()
		return appendErr
	}

	metrics.ObserveCaptureDuration(take.Duration)
	s.updateStoredMetrics()
	slog.Info("Recording stored", "id", rec.ID, "name", rec.Name, "elapsed", audio.FormatElapsed(take.Elapsed))

	// A release error after a stored take is only logged.
	s.publish()
	return nil
}

func (s *DeckService) ToggleRecording(ctx context.Context) error {
	if s.recorder.Recording() {
		return s.StopRecording()
	}
	return s.StartRecording(ctx)
}

// Select makes id current. Leaving a loaded recording unloads it first.
func (s *DeckService) Select(id string) error {
	s.interrupt()

	if id != "" {
		if _, ok := s.store.Get(id); !ok {
			slog.Debug("Select ignored, recording not found", "id", id)
			return nil
		}
	}
	if id == s.store.SelectedID() {
		return nil
	}

	if loaded := s.controller.Loaded(); loaded != "" && loaded != id {
		s.controller.Unload()
	}
	if err := s.store.Select(id); err != nil {
		slog.Debug("Select ignored", "id", id, "error", err)
		return nil
	}

	s.publish()
	return nil
}

func (s *DeckService) target(id string) string {
	if id == "" {
		return s.store.SelectedID()
	}
	return id
}

// Play plays the cue and then recording id
func (s *DeckService) Play(ctx context.Context, id string) error {
	s.interrupt()

	id = s.target(id)
	if id == "" {
		return nil
	}
	if id != s.store.SelectedID() {
		if err := s.Select(id); err != nil {
			return err
		}
	}
	return s.playResult(s.controller.Play(ctx, id))
}

func (s *DeckService) playResult(err error) error {
	switch {
	case err == nil:
		if s.controller.State() == play.StatePlaying {
			metrics.IncPlaybackStart("started")
		} else {
			metrics.IncPlaybackStart("superseded")
		}
		return nil
	case errors.Is(err, play.ErrCaptureActive):
		metrics.IncPlaybackStart("refused")
		slog.Debug("Playback refused while capturing")
		return nil
	case errors.Is(err, tape.ErrNotFound), errors.Is(err, tape.ErrHandleRevoked):
		metrics.IncPlaybackStart("refused")
		slog.Debug("Playback target vanished", "error", err)
		return nil
	case errors.Is(err, context.Canceled):
		return err
	default:
		metrics.IncPlaybackStart("error")
		s.setLastError(fmt.Sprintf("Playback failed: %v", err))
		s.publish()
		return err
	}
}

func (s *DeckService) Pause() {
	s.interrupt()
	s.controller.Pause()
}

func (s *DeckService) TogglePlay(ctx context.Context, id string) error {
	if s.controller.State() == play.StatePlaying && (id == "" || id == s.controller.Loaded()) {
		s.Pause()
		return nil
	}
	return s.Play(ctx, id)
}

// Rewind seeks recording id to the start, playing it when idle
func (s *DeckService) Rewind(ctx context.Context, id string) error {
	s.interrupt()

	id = s.target(id)
	if id == "" {
		return nil
	}
	if id != s.store.SelectedID() {
		if err := s.Select(id); err != nil {
			return err
		}
	}
	return s.playResult(s.controller.Rewind(ctx, id))
}

// RequestDelete opens the confirmation prompt for id
func (s *DeckService) RequestDelete(id string) {
	if done, ok := s.editor.Commit(); ok {
		metrics.IncEdit(string(done.Field), "committed")
	}

	id = s.target(id)
	if _, ok := s.store.Get(id); !ok {
		slog.Debug("Delete request ignored, recording not found", "id", id)
		return
	}
	s.confirm.Request(id)
	s.publish()
}

// ConfirmDelete removes the pending target, stopping it first if loaded
func (s *DeckService) ConfirmDelete() error {
	id, ok := s.confirm.Take()
	if !ok {
		return nil
	}
	metrics.IncDeletion("confirmed")

	if s.controller.Loaded() == id {
		s.controller.Unload()
	}
	s.editor.Abandon(id)

	if _, err := s.store.Remove(id); err != nil {
		if errors.Is(err, tape.ErrNotFound) {
			slog.Debug("Delete ignored, recording already gone", "id", id)
			return nil
		}
		return err
	}

	// A play racing the removal may have loaded it in between.
	if s.controller.Loaded() == id {
		s.controller.Unload()
	}

	s.updateStoredMetrics()
	s.publish()
	return nil
}

func (s *DeckService) CancelDelete() {
	if s.confirm.Cancel() {
		metrics.IncDeletion("cancelled")
		s.publish()
	}
}

// BeginEdit opens field of recording id and returns its current value
func (s *DeckService) BeginEdit(id string, field tape.Field) (string, error) {
	if s.confirm.Cancel() {
		metrics.IncDeletion("cancelled")
	}
	if done, ok := s.editor.Commit(); ok {
		metrics.IncEdit(string(done.Field), "committed")
	}

	value, err := s.editor.Begin(s.target(id), field)
	if err != nil {
		if errors.Is(err, tape.ErrNotFound) {
			slog.Debug("Edit ignored", "error", err)
			return "", nil
		}
		return "", err
	}

	s.publish()
	return value, nil
}

// EditInput applies value to the open edit immediately
func (s *DeckService) EditInput(value string) error {
	if !s.editor.Input(value) {
		slog.Debug("Edit input ignored, no open edit")
	}
	s.publish()
	return nil
}

func (s *DeckService) CommitEdit() {
	if done, ok := s.editor.Commit(); ok {
		metrics.IncEdit(string(done.Field), "committed")
		s.publish()
	}
}

func (s *DeckService) CancelEdit() {
	if done, ok := s.editor.Cancel(); ok {
		metrics.IncEdit(string(done.Field), "cancelled")
		s.publish()
	}
}

// Snapshot returns the current deck state
func (s *DeckService) Snapshot() Snapshot {
	elapsed := s.recorder.Elapsed()
	snap := Snapshot{
		Status:         s.recorder.Status(),
		Elapsed:        elapsed,
		ElapsedDisplay: audio.FormatElapsed(elapsed),
		Playback:       s.controller.State(),
		Loaded:         s.controller.Loaded(),
		Position:       s.controller.Position().Seconds(),
		Selected:       s.store.SelectedID(),
		Recordings:     s.store.List(),
		PendingDelete:  s.confirm.Pending(),
		Notice:         s.GetLastError(),
	}
	if editing, ok := s.editor.Active(); ok {
		snap.Editing = &editing
	}
	return snap
}

// Resolve returns the audio behind a playback handle
func (s *DeckService) Resolve(handle string) ([]byte, error) {
	return s.store.Handles().Resolve(handle)
}

// Subscribe delivers a snapshot after every state change. The returned
// func unsubscribes.
func (s *DeckService) Subscribe() (<-chan Snapshot, func()) {
	return s.hub.subscribe()
}

func (s *DeckService) publish() {
	s.hub.publish(s.Snapshot())
}

func (s *DeckService) updateStoredMetrics() {
	recs := s.store.List()
	total := 0
	for _, r := range recs {
		total += r.Size
	}
	metrics.SetStored(len(recs), total)
}

// GetConfig returns the current configuration
func (s *DeckService) GetConfig() *config.Config {
	return s.cfg
}

// Close discards any capture, stops playback and releases every handle
func (s *DeckService) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if recErr := s.recorder.Close(); recErr != nil {
			err = recErr
		}
		metrics.SetCaptureActive(false)
		if playErr := s.controller.Close(); playErr != nil && err == nil {
			err = playErr
		}
		if storeErr := s.store.Close(); storeErr != nil && err == nil {
			err = storeErr
		}
		s.updateStoredMetrics()
		s.hub.close()
		slog.Debug("Deck closed")
	})
	return err
}

// GetLastError returns the last error message (thread-safe)
func (s *DeckService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe)
func (s *DeckService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *DeckService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

var _ Service = (*DeckService)(nil)
