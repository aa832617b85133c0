package chatmodel

// EventType tags the closed variant set an Event can carry (spec §3).
type EventType string

const (
	EventStart EventType = "start"
	EventToken EventType = "token"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Event is the unified vocabulary the fan-out engine emits. Every event
// carries ModelID; unused fields for a given Type are left zero-valued,
// mirroring how the teacher represents provider.StreamChunk as one struct
// with a Type discriminator rather than a Go sum type.
type Event struct {
	Type    EventType `json:"type"`
	ModelID string    `json:"model_id"`

	// Content holds the token fragment for EventToken or the human-readable
	// message for EventError.
	Content string `json:"content,omitempty"`

	// Code is an optional machine-readable error code, set only on
	// EventError (see pkg/chaterrors for the taxonomy).
	Code string `json:"code,omitempty"`
}

// StartEvent builds a start event for modelID.
func StartEvent(modelID string) Event { return Event{Type: EventStart, ModelID: modelID} }

// TokenEvent builds a token event carrying a content delta.
func TokenEvent(modelID, content string) Event {
	return Event{Type: EventToken, ModelID: modelID, Content: content}
}

// DoneEvent builds a clean end-of-stream event.
func DoneEvent(modelID string) Event { return Event{Type: EventDone, ModelID: modelID} }

// ErrorEvent builds an error event with an optional machine-readable code.
func ErrorEvent(modelID, content, code string) Event {
	return Event{Type: EventError, ModelID: modelID, Content: content, Code: code}
}

// EndpointDescriptor is the resolver's output: everything a worker needs to
// open the upstream connection for one model. It is derived fresh per
// request and never cached (spec §4.3).
type EndpointDescriptor struct {
	BaseURL     string
	PathSuffix  string
	AuthHeader  string // full header value, e.g. "Bearer <token>"; empty if none
	ExtraHeader map[string]string
	Class       TransportClass
}

// URL returns the full request URL for this endpoint.
func (e EndpointDescriptor) URL() string {
	return e.BaseURL + e.PathSuffix
}
