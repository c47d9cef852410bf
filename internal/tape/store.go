package tape

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("recording not found")
	ErrEmptyPayload = errors.New("recording payload is empty")
)

type entry struct {
	rec     Recording
	payload []byte
}

// Store is the ordered, in-memory collection of recordings plus the current
// selection. Insertion order is the only ordering.
type Store struct {
	mu       sync.RWMutex
	handles  *Handles
	entries  []*entry
	selected string
	closed   bool
}

// NewStore creates an empty store issuing playback handles from handles.
// A nil handles gets a private registry.
func NewStore(handles *Handles) *Store {
	if handles == nil {
		handles = NewHandles()
	}
	return &Store{handles: handles}
}

// Append stores a finished capture and selects it.
func (s *Store) Append(payload []byte, capturedAt time.Time, duration time.Duration) (Recording, error) {
	if len(payload) == 0 {
		return Recording{}, ErrEmptyPayload
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Recording{}, fmt.Errorf("store closed")
	}

	local := capturedAt.Local()
	rec := Recording{
		ID:         s.newID(),
		Name:       fmt.Sprintf("Recording %d", len(s.entries)+1),
		Date:       local.Format(DateLayout),
		Time:       local.Format(TimeLayout),
		CapturedAt: capturedAt,
		Duration:   duration,
		Size:       len(payload),
		Handle:     s.handles.Create(payload),
	}

	s.entries = append(s.entries, &entry{rec: rec, payload: payload})
	s.selected = rec.ID

	slog.Info("Recording stored", "id", rec.ID, "name", rec.Name, "bytes", rec.Size, "duration", duration)
	return rec, nil
}

// newID returns a time-ordered id not used by any current entry.
func (s *Store) newID() string {
	for {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		if s.indexOf(id.String()) < 0 {
			return id.String()
		}
	}
}

func (s *Store) indexOf(id string) int {
	for i, e := range s.entries {
		if e.rec.ID == id {
			return i
		}
	}
	return -1
}

// Rename sets one metadata field. Unknown ids and fields are ignored; the
// return value reports whether anything changed.
func (s *Store) Rename(id string, field Field, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		slog.Debug("Rename ignored, recording not found", "id", id, "field", field)
		return false
	}
	return s.entries[i].rec.set(field, value)
}

// Remove releases the recording's handle and drops it. The selection is
// cleared when it pointed at id.
func (s *Store) Remove(id string) (Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Recording{}, fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}

	e := s.entries[i]
	s.handles.Revoke(e.rec.Handle)
	e.payload = nil

	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	if s.selected == id {
		s.selected = ""
	}

	slog.Info("Recording removed", "id", id, "name", e.rec.Name)
	return e.rec, nil
}

// Get returns the recording with id.
func (s *Store) Get(id string) (Recording, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return Recording{}, false
	}
	return s.entries[i].rec, true
}

// Payload resolves the recording's encoded audio through its handle.
func (s *Store) Payload(id string) ([]byte, error) {
	s.mu.RLock()
	i := s.indexOf(id)
	var token string
	if i >= 0 {
		token = s.entries[i].rec.Handle
	}
	s.mu.RUnlock()

	if i < 0 {
		return nil, fmt.Errorf("payload %s: %w", id, ErrNotFound)
	}
	return s.handles.Resolve(token)
}

// List returns all recordings in insertion order.
func (s *Store) List() []Recording {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Recording, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.rec
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Select makes id the current selection. An empty id clears it.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		s.selected = ""
		return nil
	}
	if s.indexOf(id) < 0 {
		return fmt.Errorf("select %s: %w", id, ErrNotFound)
	}
	s.selected = id
	return nil
}

// Selected returns the selected recording, if any.
func (s *Store) Selected() (Recording, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selected == "" {
		return Recording{}, false
	}
	i := s.indexOf(s.selected)
	if i < 0 {
		return Recording{}, false
	}
	return s.entries[i].rec, true
}

func (s *Store) SelectedID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Handles exposes the registry used for playback references.
func (s *Store) Handles() *Handles {
	return s.handles
}

// Close releases every handle and empties the store. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, e := range s.entries {
		e.payload = nil
	}
	released := s.handles.RevokeAll()
	s.entries = nil
	s.selected = ""

	slog.Debug("Recording store closed", "released", released)
	return nil
}
