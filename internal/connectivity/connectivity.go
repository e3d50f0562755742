// Package connectivity provides the online/offline signal consumed by
// the sync scheduler. The capability is a narrow interface so the
// scheduler never depends on how the signal is produced: a manual
// toggle driven by the UI, an HTTP probe, or a test fake.
package connectivity

import (
	"sync"
)

// Monitor exposes the current connectivity state plus edge events.
// Subscribe returns an unsubscribe handle; callbacks receive the new
// state on every online/offline transition.
type Monitor interface {
	Online() bool
	Subscribe(callback func(online bool)) (unsubscribe func())
}

// Manual is a Monitor whose state is flipped explicitly via SetOnline.
// It is the production monitor on platforms that deliver their own
// network-change events, and the standard fake in tests.
type Manual struct {
	mu        sync.Mutex
	online    bool
	nextID    int
	callbacks map[int]func(online bool)
}

// NewManual creates a Manual monitor with the given initial state.
func NewManual(online bool) *Manual {
	return &Manual{
		online:    online,
		callbacks: make(map[int]func(online bool)),
	}
}

// Online returns the current state.
func (m *Manual) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a transition callback and returns its
// unsubscribe handle.
func (m *Manual) Subscribe(callback func(online bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.callbacks[id] = callback
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.callbacks, id)
		m.mu.Unlock()
	}
}

// SetOnline updates the state and notifies subscribers on a
// transition. Setting the current state again is a no-op.
func (m *Manual) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	callbacks := make([]func(bool), 0, len(m.callbacks))
	for _, cb := range m.callbacks {
		callbacks = append(callbacks, cb)
	}
	m.mu.Unlock()

	// Callbacks run outside the lock so a subscriber may re-enter the
	// monitor (e.g. to read Online).
	for _, cb := range callbacks {
		cb(online)
	}
}
