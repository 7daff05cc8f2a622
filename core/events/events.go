package events

// Event is a structured state change emitted by the escrow engine for
// downstream consumers (gateway webhooks, indexers, dashboards).
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// EventType returns the canonical type tag of the event.
func (e *Event) EventType() string {
	if e == nil {
		return ""
	}
	return e.Type
}

// Emitter broadcasts events to downstream subscribers.
type Emitter interface {
	Emit(*Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default wherever a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(*Event) {}
