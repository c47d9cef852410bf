package tape

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrHandleRevoked is returned when resolving a handle that was released
// or never issued.
var ErrHandleRevoked = errors.New("playback handle revoked")

// Handles issues session-scoped, revocable references to encoded payloads.
// A token resolves until it is revoked; revocation happens exactly once.
type Handles struct {
	mu   sync.RWMutex
	live map[string][]byte
}

func NewHandles() *Handles {
	return &Handles{live: make(map[string][]byte)}
}

// Create registers payload and returns its token.
func (h *Handles) Create(payload []byte) string {
	token := "tape-" + uuid.NewString()

	h.mu.Lock()
	h.live[token] = payload
	h.mu.Unlock()

	slog.Debug("Playback handle created", "handle", token, "bytes", len(payload))
	return token
}

// Resolve returns the payload behind token. The slice must not be modified.
func (h *Handles) Resolve(token string) ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	payload, ok := h.live[token]
	if !ok {
		return nil, ErrHandleRevoked
	}
	return payload, nil
}

// Revoke releases token. It reports true only for the call that actually
// released it.
func (h *Handles) Revoke(token string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.live[token]; !ok {
		return false
	}
	delete(h.live, token)

	slog.Debug("Playback handle revoked", "handle", token)
	return true
}

// RevokeAll releases every live handle and returns how many were released.
func (h *Handles) RevokeAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.live)
	h.live = make(map[string][]byte)
	return n
}

func (h *Handles) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.live)
}
