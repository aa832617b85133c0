// Package chatmodel defines the data types shared by the model registry,
// endpoint resolver, and fan-out engine: model records, selection sets,
// chat messages, generation parameters, and the unified event vocabulary.
package chatmodel

import "sync/atomic"

// TransportClass identifies how a model's inference is reached. The set is
// closed at two members; callers switch on it rather than treating it as
// open-ended polymorphism.
type TransportClass string

const (
	ClassSelfHosted TransportClass = "self-hosted"
	ClassGateway    TransportClass = "gateway"
)

// Availability is the prober's belief about whether a self-hosted model is
// reachable right now. Gateway records are always AvailabilityOnline.
type Availability int32

const (
	AvailabilityUnknown Availability = iota
	AvailabilityOnline
	AvailabilityOffline
)

func (a Availability) String() string {
	switch a {
	case AvailabilityOnline:
		return "online"
	case AvailabilityOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Model describes one known model: its identity, transport class, and
// metadata. Availability is stored separately as an atomic so concurrent
// probes never race with readers.
type Model struct {
	ID            string
	DisplayName   string
	Class         TransportClass
	Priority      *int
	ContextLength *int
	Default       bool

	availability atomic.Int32
}

// NewModel constructs a Model with the given starting availability.
// Gateway-class models should always be constructed with AvailabilityOnline;
// the registry enforces this at load time regardless of what's passed here.
func NewModel(id, displayName string, class TransportClass, priority, contextLength *int, isDefault bool, initial Availability) *Model {
	m := &Model{
		ID:            id,
		DisplayName:   displayName,
		Class:         class,
		Priority:      priority,
		ContextLength: contextLength,
		Default:       isDefault,
	}
	m.availability.Store(int32(initial))
	return m
}

// Availability returns the model's current availability.
func (m *Model) Availability() Availability {
	return Availability(m.availability.Load())
}

// SetAvailability atomically updates the model's availability. It is a
// no-op for gateway-class models, which are always online by invariant.
func (m *Model) SetAvailability(a Availability) {
	if m.Class == ClassGateway {
		m.availability.Store(int32(AvailabilityOnline))
		return
	}
	m.availability.Store(int32(a))
}

// Snapshot returns an immutable copy of the model suitable for handing to a
// caller outside the registry's lock.
func (m *Model) Snapshot() ModelView {
	return ModelView{
		ID:            m.ID,
		DisplayName:   m.DisplayName,
		Class:         m.Class,
		Priority:      m.Priority,
		ContextLength: m.ContextLength,
		Default:       m.Default,
		Availability:  m.Availability(),
	}
}

// ModelView is a read-only, race-free snapshot of a Model at a point in
// time. It is what List/Resolve callers receive instead of the live record.
type ModelView struct {
	ID            string        `json:"id"`
	DisplayName   string        `json:"name"`
	Class         TransportClass `json:"type"`
	Priority      *int          `json:"priority,omitempty"`
	ContextLength *int          `json:"context_length,omitempty"`
	Default       bool          `json:"default,omitempty"`
	Availability  Availability  `json:"availability"`
}

// NormalizeClass maps legacy discovery-document spellings onto the closed
// TransportClass set: both "github" and "api" normalize to gateway; any
// other value (including "self-hosted" itself) normalizes to self-hosted.
func NormalizeClass(raw string) TransportClass {
	switch raw {
	case "github", "api":
		return ClassGateway
	default:
		return ClassSelfHosted
	}
}
