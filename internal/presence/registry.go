// Package presence tracks which users hold live realtime connections.
package presence

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry maps a user to the set of connection ids currently open for it.
// A user is online iff its connection set is non-empty.
type Registry interface {
	// Bind adds connID to the user's set. Binding the same pair twice is a no-op.
	Bind(userID uuid.UUID, connID string)
	// Unbind removes connID and reports whether the user just went fully offline.
	Unbind(userID uuid.UUID, connID string) bool
	ConnectionsFor(userID uuid.UUID) []string
	OnlineUserIDs() []uuid.UUID
	IsOnline(userID uuid.UUID) bool
}

type MemoryRegistry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]map[string]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		conns: make(map[uuid.UUID]map[string]struct{}),
	}
}

func (r *MemoryRegistry) Bind(userID uuid.UUID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		r.conns[userID] = set
	}
	set[connID] = struct{}{}
}

func (r *MemoryRegistry) Unbind(userID uuid.UUID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		return false
	}
	if _, bound := set[connID]; !bound {
		return false
	}

	delete(set, connID)
	if len(set) == 0 {
		delete(r.conns, userID)
		return true
	}
	return false
}

// ConnectionsFor returns a sorted copy; callers may keep it past later mutations.
func (r *MemoryRegistry) ConnectionsFor(userID uuid.UUID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.conns[userID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *MemoryRegistry) OnlineUserIDs() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}

func (r *MemoryRegistry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.conns[userID]
	return ok
}
