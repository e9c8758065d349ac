package core

import "testing"

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	v, ok := c.Value(ActionVideoWatch)
	if !ok || v != 3 {
		t.Fatalf("video_watch = %d %v", v, ok)
	}
	if _, ok := c.Value("made_up"); ok {
		t.Fatal("unknown action should not resolve")
	}
	for _, id := range c.Actions() {
		v, _ := c.Value(id)
		if v <= 0 {
			t.Fatalf("action %s has non-positive value", id)
		}
	}
}

func TestNewCatalog_Rejects(t *testing.T) {
	if _, err := NewCatalog(nil); err == nil {
		t.Fatal("empty catalog should be rejected")
	}
	if _, err := NewCatalog(map[ActionID]int64{"a": 0}); err == nil {
		t.Fatal("zero value should be rejected")
	}
	if _, err := NewCatalog(map[ActionID]int64{" ": 1}); err == nil {
		t.Fatal("blank action id should be rejected")
	}
}

func TestCatalogMerge(t *testing.T) {
	c := DefaultCatalog()
	merged, err := c.Merge(map[ActionID]int64{ActionVideoWatch: 7, "season_bonus": 100})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := merged.Value(ActionVideoWatch); v != 7 {
		t.Fatalf("override not applied: %d", v)
	}
	if v, _ := merged.Value("season_bonus"); v != 100 {
		t.Fatalf("new action not added: %d", v)
	}
	// original untouched
	if v, _ := c.Value(ActionVideoWatch); v != 3 {
		t.Fatal("merge mutated the source catalog")
	}
	if _, err := c.Merge(map[ActionID]int64{"bad": -1}); err == nil {
		t.Fatal("negative override should be rejected")
	}
}
