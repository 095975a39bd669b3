package persona

import (
	"math/rand"
	"testing"
)

func TestGenerateRespectsRoleRanges(t *testing.T) {
	g := NewGenerator(rand.New(rand.NewSource(7)))

	for i := 0; i < 50; i++ {
		p := g.Generate("npc_gate", "gatekeeper")
		if p.Faction != "guards" {
			t.Fatalf("Faction = %q, want guards", p.Faction)
		}
		if v := p.Traits["paranoia"]; v < 0.6 || v > 0.9 {
			t.Fatalf("paranoia = %v, want [0.6, 0.9]", v)
		}
		if v := p.Traits["discipline"]; v < 0.5 || v > 0.8 {
			t.Fatalf("discipline = %v, want [0.5, 0.8]", v)
		}
		if err := Validate(p); err != nil {
			t.Fatalf("generated persona invalid: %v", err)
		}
	}
}

func TestGenerateAllRolesValid(t *testing.T) {
	g := NewGenerator(rand.New(rand.NewSource(11)))

	for _, role := range RoleTypes {
		t.Run(role, func(t *testing.T) {
			p := g.Generate("npc_"+role, role)
			if err := Validate(p); err != nil {
				t.Fatalf("Validate() = %v", err)
			}
			if p.Role == "" || p.Location == "" || p.DialogueStyle == "" {
				t.Errorf("incomplete persona: %+v", p)
			}
			if len(p.InitialMemories) != 3 {
				t.Errorf("InitialMemories len = %d, want 3", len(p.InitialMemories))
			}
			for name, v := range p.Traits {
				if v < 0 || v > 1 {
					t.Errorf("trait %q = %v outside [0, 1]", name, v)
				}
			}
			if h := p.InitialVitals.Hunger; h < 0.1 || h > 0.4 {
				t.Errorf("Hunger = %v, want [0.1, 0.4]", h)
			}
			if f := p.InitialVitals.Fatigue; f < 0.1 || f > 0.4 {
				t.Errorf("Fatigue = %v, want [0.1, 0.4]", f)
			}
		})
	}
}

func TestGenerateUnknownRoleFallsBack(t *testing.T) {
	g := NewGenerator(rand.New(rand.NewSource(3)))
	p := g.Generate("npc_x", "jester")
	if p.Faction != "citizens" {
		t.Errorf("Faction = %q, want civilian fallback faction citizens", p.Faction)
	}
	if p.Goal != "Survive another day" {
		t.Errorf("Goal = %q, want civilian goal", p.Goal)
	}
}

func TestGenerateDeterministicPerSeed(t *testing.T) {
	a := NewGenerator(rand.New(rand.NewSource(42))).Generate("npc_a", "merchant")
	b := NewGenerator(rand.New(rand.NewSource(42))).Generate("npc_a", "merchant")

	if a.Role != b.Role || a.Location != b.Location {
		t.Errorf("same seed diverged: %q/%q vs %q/%q", a.Role, a.Location, b.Role, b.Location)
	}
	for name, v := range a.Traits {
		if b.Traits[name] != v {
			t.Errorf("trait %q diverged: %v vs %v", name, v, b.Traits[name])
		}
	}
}
