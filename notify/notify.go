package notify

import "log"

// Event is a best-effort broadcast to connected clients. Absence of a
// subscriber is not an error.
type Event struct {
	Type     string                 `json:"type"` // "session_end", "rank_change"
	PlayerID string                 `json:"playerId"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
}

// Publisher fans events out to whatever transport the deployment wires in.
type Publisher interface {
	Publish(e Event)
}

// LogPublisher writes events to the process log. Default when no transport is
// configured.
type LogPublisher struct{}

func (LogPublisher) Publish(e Event) {
	log.Printf("notify: %s player=%s payload=%v", e.Type, e.PlayerID, e.Payload)
}

// NopPublisher drops events. Used by tests.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
