package service

import (
	"fmt"
	"sync"

	"github.com/audiolibrelab/tapedeck/internal/tape"
)

// Editing describes an open inline edit.
type Editing struct {
	ID    string     `json:"id"`
	Field tape.Field `json:"field"`
	Value string     `json:"value"`

	original string
}

// Editor applies keystrokes to the store as they arrive. Only one field is
// edited at a time.
type Editor struct {
	store          *tape.Store
	revertOnCancel bool

	mu     sync.Mutex
	active *Editing
}

func NewEditor(store *tape.Store, revertOnCancel bool) *Editor {
	return &Editor{store: store, revertOnCancel: revertOnCancel}
}

// Begin opens field of recording id for editing and returns its current
// value. An edit already open elsewhere is committed as is.
func (e *Editor) Begin(id string, field tape.Field) (string, error) {
	rec, ok := e.store.Get(id)
	if !ok {
		return "", fmt.Errorf("edit %s: %w", id, tape.ErrNotFound)
	}
	value, ok := rec.Value(field)
	if !ok {
		return "", fmt.Errorf("edit %s: unknown field %q", id, field)
	}

	e.mu.Lock()
	e.active = &Editing{ID: id, Field: field, Value: value, original: value}
	e.mu.Unlock()
	return value, nil
}

// Input renames live. It reports false when no edit is open or the
// recording has gone, in which case the edit is closed.
func (e *Editor) Input(value string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil {
		return false
	}
	if !e.store.Rename(e.active.ID, e.active.Field, value) {
		e.active = nil
		return false
	}
	e.active.Value = value
	return true
}

// Commit closes the edit, keeping what was typed.
func (e *Editor) Commit() (Editing, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeLocked()
}

// Cancel closes the edit. With revert enabled the field goes back to the
// value it had at Begin; otherwise the live edits stay.
func (e *Editor) Cancel() (Editing, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active != nil && e.revertOnCancel && e.active.Value != e.active.original {
		e.store.Rename(e.active.ID, e.active.Field, e.active.original)
		e.active.Value = e.active.original
	}
	return e.closeLocked()
}

// Abandon drops an edit on id without touching the store.
func (e *Editor) Abandon(id string) {
	e.mu.Lock()
	if e.active != nil && e.active.ID == id {
		e.active = nil
	}
	e.mu.Unlock()
}

// Active returns a copy of the open edit.
func (e *Editor) Active() (Editing, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return Editing{}, false
	}
	return *e.active, true
}

func (e *Editor) closeLocked() (Editing, bool) {
	if e.active == nil {
		return Editing{}, false
	}
	done := *e.active
	e.active = nil
	return done, true
}
