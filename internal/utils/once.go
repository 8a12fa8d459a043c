package utils

import "sync"

// InitOnce runs a setup step until it first succeeds. Unlike sync.Once a
// failed attempt is not remembered, so the next caller tries again.
type InitOnce struct {
	mu   sync.Mutex
	done bool
}

// Do calls fn unless an earlier call succeeded. Callers are serialized.
func (o *InitOnce) Do(fn func() error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	o.done = true
	return nil
}
