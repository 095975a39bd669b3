package group

import (
	"fmt"
	"testing"
)

func TestNearbyFallsBackToRegistrationOrder(t *testing.T) {
	l := NewLocations()
	for i := 0; i < 8; i++ {
		if err := l.Update(LocationAgent, fmt.Sprintf("npc_%d", i), float64(i), 0, 0, "market"); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	// No position recorded for the player: first registered agents win.
	got := l.Nearby("player-unknown", 0)
	if len(got) != maxGroupSize {
		t.Fatalf("nearby = %d agents, want %d", len(got), maxGroupSize)
	}
	for i, n := range got {
		if want := fmt.Sprintf("npc_%d", i); n.AgentID != want {
			t.Errorf("nearby[%d] = %s, want %s", i, n.AgentID, want)
		}
	}
}

func TestNearbyRanksByDistance(t *testing.T) {
	l := NewLocations()
	if err := l.Update(LocationPlayer, "player-1", 0, 0, 0, "market"); err != nil {
		t.Fatalf("Update player: %v", err)
	}
	positions := map[string]float64{
		"close":   10,
		"mid":     300,
		"edge":    500,
		"too_far": 501,
	}
	for id, x := range positions {
		if err := l.Update(LocationAgent, id, x, 0, 0, "market"); err != nil {
			t.Fatalf("Update %s: %v", id, err)
		}
	}

	got := l.Nearby("player-1", 0)
	if len(got) != 3 {
		t.Fatalf("nearby = %+v, want close/mid/edge", got)
	}
	for i, want := range []string{"close", "mid", "edge"} {
		if got[i].AgentID != want {
			t.Errorf("nearby[%d] = %s, want %s", i, got[i].AgentID, want)
		}
	}
	if got[0].Distance != 10 {
		t.Errorf("distance = %v, want 10", got[0].Distance)
	}

	// A tighter threshold narrows the candidates.
	if got := l.Nearby("player-1", 100); len(got) != 1 || got[0].AgentID != "close" {
		t.Errorf("nearby within 100 = %+v", got)
	}
}

func TestNearbyCapsAtGroupSize(t *testing.T) {
	l := NewLocations()
	if err := l.Update(LocationPlayer, "player-1", 0, 0, 0, ""); err != nil {
		t.Fatalf("Update player: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := l.Update(LocationAgent, fmt.Sprintf("npc_%d", i), float64(i), 0, 0, ""); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if got := l.Nearby("player-1", 0); len(got) != maxGroupSize {
		t.Errorf("nearby = %d agents, want capped %d", len(got), maxGroupSize)
	}
}

func TestInZone(t *testing.T) {
	l := NewLocations()
	for id, zone := range map[string]string{
		"marta": "market", "bram": "market", "garrick": "gates",
	} {
		if err := l.Update(LocationAgent, id, 0, 0, 0, zone); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	got := l.InZone("market")
	if len(got) != 2 || got[0] != "bram" || got[1] != "marta" {
		t.Errorf("InZone = %v", got)
	}
	if got := l.InZone("wilds"); len(got) != 0 {
		t.Errorf("empty zone = %v", got)
	}
}

func TestUpdateRejectsUnknownKind(t *testing.T) {
	l := NewLocations()
	if err := l.Update("vehicle", "cart-1", 0, 0, 0, ""); err == nil {
		t.Error("unknown kind must be rejected")
	}
}

func TestOfReturnsLastPosition(t *testing.T) {
	l := NewLocations()
	if err := l.Update(LocationAgent, "marta", 1, 2, 3, "market"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := l.Update(LocationAgent, "marta", 4, 5, 6, "gates"); err != nil {
		t.Fatalf("Update: %v", err)
	}

	loc, ok := l.Of(LocationAgent, "marta")
	if !ok || loc.X != 4 || loc.Zone != "gates" {
		t.Errorf("Of = %+v, %v", loc, ok)
	}
	if _, ok := l.Of(LocationPlayer, "marta"); ok {
		t.Error("agent position must not leak into the player namespace")
	}
}
