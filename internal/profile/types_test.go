package profile

import "testing"

func TestEffectivePriority(t *testing.T) {
	p := New("p")
	if got := p.EffectivePriority(); got != DefaultPriority {
		t.Errorf("unset priority = %d, want %d", got, DefaultPriority)
	}
	p.Priority = 10
	if got := p.EffectivePriority(); got != 10 {
		t.Errorf("priority = %d, want 10", got)
	}
	p.Priority = -3
	if got := p.EffectivePriority(); got != DefaultPriority {
		t.Errorf("negative priority = %d, want %d", got, DefaultPriority)
	}
}

func TestCloneIndependence(t *testing.T) {
	p := testProfile("p", true)
	c := p.Clone()

	c.RequestHeaderModGroups[0].Items[0].Value = "mutated"
	if p.RequestHeaderModGroups[0].Items[0].Value == "mutated" {
		t.Error("clone shares mod group backing array with original")
	}
	if c.ID != p.ID {
		t.Error("clone changed identity")
	}
}
