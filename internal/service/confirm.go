package service

import "sync"

// Confirmation holds the target of an open deletion prompt. It never
// touches the store itself.
type Confirmation struct {
	mu      sync.Mutex
	pending string
}

// Request opens the prompt for id, replacing any earlier target.
func (c *Confirmation) Request(id string) {
	c.mu.Lock()
	c.pending = id
	c.mu.Unlock()
}

// Pending returns the current target, or "".
func (c *Confirmation) Pending() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Take closes the prompt and returns its target.
func (c *Confirmation) Take() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.pending
	c.pending = ""
	return id, id != ""
}

// Cancel closes the prompt. It reports whether one was open.
func (c *Confirmation) Cancel() bool {
	_, ok := c.Take()
	return ok
}
