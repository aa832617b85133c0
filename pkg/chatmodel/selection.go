package chatmodel

// Selection is an unordered set of model identifiers. The empty selection
// is well-formed. A Selection with exactly one member is eligible for the
// singleton policy exemption described in spec §4.3/§4.4.
type Selection map[string]struct{}

// NewSelection builds a Selection from a slice of identifiers, de-duplicating.
func NewSelection(ids ...string) Selection {
	s := make(Selection, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Singleton reports whether the selection has exactly one member.
func (s Selection) Singleton() bool {
	return len(s) == 1
}

// IDs returns the selection's members as a slice. Order is unspecified.
func (s Selection) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}

// Without returns a new Selection with the given identifiers removed. It
// does not mutate the receiver.
func (s Selection) Without(ids ...string) Selection {
	out := make(Selection, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	for _, id := range ids {
		delete(out, id)
	}
	return out
}

// SelectableModels groups a model list into what a UI model picker needs:
// the models that are currently selectable (not offline), the ones that are
// offline, and both split further by transport class. This is the concrete
// shape behind spec §6's "selection helper".
type SelectableModels struct {
	Selectable []ModelView
	Offline    []ModelView
	SelfHosted []ModelView
	Gateway    []ModelView
}

// ComputeSelectable builds a SelectableModels view from a full model list.
func ComputeSelectable(models []ModelView) SelectableModels {
	var out SelectableModels
	for _, m := range models {
		if m.Availability == AvailabilityOffline {
			out.Offline = append(out.Offline, m)
		} else {
			out.Selectable = append(out.Selectable, m)
		}
		switch m.Class {
		case ClassSelfHosted:
			out.SelfHosted = append(out.SelfHosted, m)
		case ClassGateway:
			out.Gateway = append(out.Gateway, m)
		}
	}
	return out
}

// DeselectOffline returns a new Selection with every identifier whose
// current availability is offline removed, per spec §4.2's "Side effect on
// selection" (a pull observation, not a push from the prober).
func DeselectOffline(sel Selection, lookup func(id string) (ModelView, bool)) Selection {
	out := make(Selection, len(sel))
	for id := range sel {
		view, ok := lookup(id)
		if ok && view.Availability == AvailabilityOffline {
			continue
		}
		out[id] = struct{}{}
	}
	return out
}
