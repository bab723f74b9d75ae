package dispatch

import (
	"fmt"
	"sync"
)

// Handler receives a dispatched message.
//
// topic is the delivery topic with the base topic stripped (when it was a
// prefix). Handlers run on the caller's goroutine, which for live traffic
// is the transport's network goroutine, so they should not block for long.
type Handler func(topic string, msg *Message)

// ID identifies a registration. IDs increase monotonically and are never
// reused within a Registry.
type ID uint64

// Registration binds a topic filter to an ordered list of handlers.
type Registration struct {
	ID       ID
	Pattern  string
	Handlers []Handler
}

// Registry stores filter registrations in insertion order.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Dispatch works on a snapshot, so handlers may Register or Remove
//     without deadlocking; changes apply from the next message on.
type Registry struct {
	mu      sync.RWMutex
	entries []Registration
	lastID  ID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a registration for pattern.
//
// Parameters:
//   - pattern: topic filter relative to the base topic (e.g. "echoservice/echo")
//   - handlers: invoked in order for every matching message
//
// Returns:
//   - ID: handle for Remove
//   - error: ErrInvalidPattern or ErrNilHandler
func (r *Registry) Register(pattern string, handlers ...Handler) (ID, error) {
	if err := ValidatePattern(pattern); err != nil {
		return 0, err
	}
	for i, h := range handlers {
		if h == nil {
			return 0, fmt.Errorf("%w: pattern %q, handler %d", ErrNilHandler, pattern, i)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	r.entries = append(r.entries, Registration{
		ID:       r.lastID,
		Pattern:  pattern,
		Handlers: append([]Handler(nil), handlers...),
	})
	return r.lastID, nil
}

// Remove deletes the registration with the given id. Unknown ids are a
// no-op. The relative order of the remaining registrations is preserved.
func (r *Registry) Remove(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]Registration, 0, len(r.entries))
	for _, e := range r.entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	r.entries = kept
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Patterns returns the distinct registered patterns in first-registration order.
func (r *Registry) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.entries))
	patterns := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		if _, dup := seen[e.Pattern]; dup {
			continue
		}
		seen[e.Pattern] = struct{}{}
		patterns = append(patterns, e.Pattern)
	}
	return patterns
}

// Dispatch invokes every registration whose effective filter
// (baseTopic + pattern) matches topic.
//
// The handler-visible topic has baseTopic stripped when it is a prefix.
// Every matching registration runs; there is no short-circuit.
//
// Returns:
//   - int: number of registrations that matched
func (r *Registry) Dispatch(topic string, msg *Message, baseTopic string) int {
	r.mu.RLock()
	snapshot := make([]Registration, len(r.entries))
	copy(snapshot, r.entries)
	r.mu.RUnlock()

	stripped := StripBaseTopic(topic, baseTopic)

	matched := 0
	for _, e := range snapshot {
		if !Matches(baseTopic+e.Pattern, topic) {
			continue
		}
		matched++
		for _, h := range e.Handlers {
			h(stripped, msg)
		}
	}
	return matched
}
