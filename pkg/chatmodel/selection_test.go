package chatmodel

import "testing"

func TestNewSelection_Dedupes(t *testing.T) {
	t.Parallel()
	sel := NewSelection("a", "b", "a")
	if len(sel) != 2 {
		t.Fatalf("expected 2 members, got %d", len(sel))
	}
}

func TestSelection_Singleton(t *testing.T) {
	t.Parallel()
	if !NewSelection("a").Singleton() {
		t.Error("expected singleton")
	}
	if NewSelection("a", "b").Singleton() {
		t.Error("expected non-singleton")
	}
	if NewSelection().Singleton() {
		t.Error("expected empty selection to not be singleton")
	}
}

func TestSelection_Without(t *testing.T) {
	t.Parallel()
	sel := NewSelection("a", "b", "c")
	out := sel.Without("b")

	if _, ok := out["b"]; ok {
		t.Error("expected b removed")
	}
	if _, ok := sel["b"]; !ok {
		t.Error("expected original selection untouched")
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 remaining, got %d", len(out))
	}
}

func TestComputeSelectable(t *testing.T) {
	t.Parallel()

	models := []ModelView{
		{ID: "a", Class: ClassSelfHosted, Availability: AvailabilityOnline},
		{ID: "b", Class: ClassSelfHosted, Availability: AvailabilityOffline},
		{ID: "c", Class: ClassGateway, Availability: AvailabilityOnline},
	}

	out := ComputeSelectable(models)

	if len(out.Selectable) != 2 {
		t.Errorf("expected 2 selectable, got %d", len(out.Selectable))
	}
	if len(out.Offline) != 1 || out.Offline[0].ID != "b" {
		t.Errorf("expected b offline, got %+v", out.Offline)
	}
	if len(out.SelfHosted) != 2 {
		t.Errorf("expected 2 self-hosted, got %d", len(out.SelfHosted))
	}
	if len(out.Gateway) != 1 || out.Gateway[0].ID != "c" {
		t.Errorf("expected c as gateway, got %+v", out.Gateway)
	}
}

func TestDeselectOffline(t *testing.T) {
	t.Parallel()

	views := map[string]ModelView{
		"a": {ID: "a", Availability: AvailabilityOnline},
		"b": {ID: "b", Availability: AvailabilityOffline},
	}
	lookup := func(id string) (ModelView, bool) {
		v, ok := views[id]
		return v, ok
	}

	sel := NewSelection("a", "b", "unknown")
	out := DeselectOffline(sel, lookup)

	if _, ok := out["b"]; ok {
		t.Error("expected offline model b removed")
	}
	if _, ok := out["a"]; !ok {
		t.Error("expected online model a retained")
	}
	if _, ok := out["unknown"]; !ok {
		t.Error("expected unknown id retained since lookup found nothing to disqualify it")
	}
}
