package contract

import (
	"errors"
	"math"
	"testing"
)

func TestRegistryValidate_AllowsValidConfigs(t *testing.T) {
	registry := Registry{
		"alert":   {Duration: 0.2},
		"dumb":    {},
		"rollDie": {Create: func(arg any) any { return arg }},
	}
	if err := registry.Validate(); err != nil {
		t.Fatalf("expected registry to validate, got error: %v", err)
	}
}

func TestRegistryValidate_RejectsReservedName(t *testing.T) {
	registry := Registry{"alert": {}, "timeline": {}}
	err := registry.Validate()
	if err == nil {
		t.Fatal("expected reserved name to fail validation")
	}
	want := `Cannot create effect type "timeline". Name is reserved.`
	if err.Error() != want {
		t.Fatalf("unexpected message:\n got %s\nwant %s", err.Error(), want)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatal("expected error to match ErrInvalidConfig")
	}
}

func TestRegistryValidate_RejectsBuiltinsAndBadDurations(t *testing.T) {
	for _, registry := range []Registry{
		{"": {}},
		{"*": {}},
		{EffectStart: {}},
		{"neg": {Duration: -1}},
		{"nan": {Duration: math.NaN()}},
	} {
		if err := registry.Validate(); err == nil {
			t.Fatalf("expected %v to fail validation", registry.Names())
		}
	}
}

func TestSnapshotEffectsDataToleratesMissingPlugin(t *testing.T) {
	var nilSnapshot *Snapshot
	if _, ok := nilSnapshot.EffectsData(); ok {
		t.Fatal("expected nil snapshot to report no data")
	}
	if _, ok := (&Snapshot{}).EffectsData(); ok {
		t.Fatal("expected snapshot without plugin to report no data")
	}
	snap := &Snapshot{Plugins: Plugins{Effects: &PluginState{Data: Data{ID: "abc"}}}}
	data, ok := snap.EffectsData()
	if !ok || data.ID != "abc" {
		t.Fatalf("unexpected data %+v %v", data, ok)
	}
}

func TestQueueCloneIsIndependent(t *testing.T) {
	q := Queue{{Type: "a"}}
	c := q.Clone()
	c[0].Type = "b"
	if q[0].Type != "a" {
		t.Fatal("expected clone to be independent")
	}
}
