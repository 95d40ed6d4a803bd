// Package server coordinates display-name registration, chat-line
// broadcast, and connection cleanup for the relay via the Registry type.
package server

import (
	"errors"
	"sync"

	"github.com/samber/lo"
)

var (
	// ErrNameTaken reports that a display name is already registered.
	// It is an expected outcome of Register and Rename, not a failure.
	ErrNameTaken = errors.New("name already taken")

	// ErrUnknownName reports a rename whose current name is not registered.
	ErrUnknownName = errors.New("name not registered")
)

// DeliveryHandle pushes one chat line toward a single connection's
// outbound path without revealing connection internals. Deliver must
// never block; it reports whether the line was queued.
type DeliveryHandle interface {
	Deliver(line ChatLine) bool
}

// Registry maps display names to the delivery handles of live sessions.
// It is the single point of truth for who is present and is safe for
// concurrent use: mutations take the write lock, while snapshots and
// broadcast iteration share the read lock so broadcasts do not serialize
// behind each other.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]DeliveryHandle
}

// NewRegistry creates an empty Registry ready to accept registrations.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]DeliveryHandle)}
}

// Register inserts name bound to handle. If the name is already present
// it returns ErrNameTaken and leaves the registry untouched; concurrent
// racers on the same name observe exactly one success.
func (r *Registry) Register(name string, handle DeliveryHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return ErrNameTaken
	}
	r.entries[name] = handle
	return nil
}

// Unregister removes name from the registry. Removing an absent name is
// a no-op, which covers the case where a rename already replaced the key.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, name)
}

// Rename rebinds the handle registered under oldName to newName. It
// fails with ErrNameTaken if newName is present (including newName ==
// oldName) and with ErrUnknownName if oldName is not registered; in both
// cases the registry is left exactly as it was. The remove+insert pair
// happens under the write lock, so no reader ever observes a half-updated
// registry.
func (r *Registry) Rename(oldName, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[newName]; exists {
		return ErrNameTaken
	}
	handle, ok := r.entries[oldName]
	if !ok {
		return ErrUnknownName
	}
	delete(r.entries, oldName)
	r.entries[newName] = handle
	return nil
}

// Names returns a snapshot of the registered display names. The order is
// unspecified and callers must not rely on it.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.entries)
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Broadcast delivers line to every registered handle, the sender's own
// included. Delivery is fire-and-forget per recipient: a full outbound
// buffer drops the line for that recipient only and never stalls the
// fan-out. It returns the number of recipients that accepted the line.
func (r *Registry) Broadcast(line ChatLine) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for _, handle := range r.entries {
		if handle.Deliver(line) {
			delivered++
		}
	}
	return delivered
}
