package service

import (
	"chat-realtime-service/internal/presence"

	"github.com/google/uuid"
)

// Emitter delivers an event to live connections. Ids that are no longer
// connected are skipped.
type Emitter interface {
	EmitTo(connIDs []string, event string, payload interface{})
	EmitAll(event string, payload interface{})
}

// connectionsOf collects the live connections of every listed user, each
// user counted once.
func connectionsOf(registry presence.Registry, userIDs ...uuid.UUID) []string {
	seen := make(map[uuid.UUID]bool, len(userIDs))
	var conns []string
	for _, id := range userIDs {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		conns = append(conns, registry.ConnectionsFor(id)...)
	}
	return conns
}

func emitToUsers(emitter Emitter, registry presence.Registry, event string, payload interface{}, userIDs ...uuid.UUID) {
	conns := connectionsOf(registry, userIDs...)
	if len(conns) == 0 {
		return
	}
	emitter.EmitTo(conns, event, payload)
}
