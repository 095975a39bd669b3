package scale

import (
	"slices"
	"testing"
	"time"
)

func newTestTiers(start time.Time) (*Tiers, *time.Time) {
	now := start
	t := NewTiers()
	t.now = func() time.Time { return now }
	return t, &now
}

func TestRegisterStartsIdle(t *testing.T) {
	ts, _ := newTestTiers(time.Unix(1000, 0))
	ts.Register("npc-1", "market")

	if got := ts.TierOf("npc-1"); got != TierIdle {
		t.Errorf("tier = %q, want idle", got)
	}
	if got := ts.InZone("market"); len(got) != 1 || got[0] != "npc-1" {
		t.Errorf("InZone(market) = %v", got)
	}
	if got := ts.TierOf("ghost"); got != "" {
		t.Errorf("unregistered tier = %q, want empty", got)
	}
}

func TestRegisterMovesZones(t *testing.T) {
	ts, _ := newTestTiers(time.Unix(1000, 0))
	ts.Register("npc-1", "market")
	ts.Register("npc-1", "docks")

	if got := ts.InZone("market"); len(got) != 0 {
		t.Errorf("market still holds %v after the move", got)
	}
	if got := ts.InZone("docks"); len(got) != 1 || got[0] != "npc-1" {
		t.Errorf("InZone(docks) = %v", got)
	}

	ts.Register("npc-2", "")
	if got := ts.InZone("default"); len(got) != 1 || got[0] != "npc-2" {
		t.Errorf("empty zone should land in default, got %v", got)
	}
}

func TestInteractionPromotesThenRecomputeDemotes(t *testing.T) {
	ts, now := newTestTiers(time.Unix(1000, 0))
	ts.Register("npc-1", "market")

	ts.RecordInteraction("npc-1")
	if got := ts.TierOf("npc-1"); got != TierActive {
		t.Fatalf("tier after interaction = %q, want active", got)
	}

	steps := []struct {
		advance time.Duration
		want    Tier
	}{
		{30 * time.Second, TierActive},   // 30s since interaction
		{2 * time.Minute, TierNearby},    // 2m30s
		{10 * time.Minute, TierIdle},     // 12m30s
		{2 * time.Hour, TierDormant},     // >1h
	}
	for _, step := range steps {
		*now = now.Add(step.advance)
		ts.Recompute()
		if got := ts.TierOf("npc-1"); got != step.want {
			t.Errorf("tier after %s total = %q, want %q", now.Sub(time.Unix(1000, 0)), got, step.want)
		}
	}
}

func TestDueAgentsFollowsTierCadence(t *testing.T) {
	ts, _ := newTestTiers(time.Unix(1000, 0))
	ts.Register("hot", "z")
	ts.Register("warm", "z")
	ts.Register("cold", "z")
	ts.Register("frozen", "z")

	// Pin tiers directly; Recompute is exercised separately.
	ts.agents["hot"].tier = TierActive
	ts.agents["warm"].tier = TierNearby
	ts.agents["cold"].tier = TierIdle
	ts.agents["frozen"].tier = TierDormant

	counts := map[string]int{}
	for tick := 0; tick < 100; tick++ {
		for _, id := range ts.DueAgents() {
			counts[id]++
		}
	}

	want := map[string]int{"hot": 100, "warm": 20, "cold": 5, "frozen": 1}
	for id, n := range want {
		if counts[id] != n {
			t.Errorf("%s due %d times over 100 ticks, want %d", id, counts[id], n)
		}
	}
}

func TestHotAgentsAndStats(t *testing.T) {
	ts, _ := newTestTiers(time.Unix(1000, 0))
	ts.Register("a", "z1")
	ts.Register("b", "z1")
	ts.Register("c", "z2")
	ts.RecordInteraction("a")
	ts.agents["b"].tier = TierNearby

	hot := ts.HotAgents()
	slices.Sort(hot)
	if !slices.Equal(hot, []string{"a", "b"}) {
		t.Errorf("HotAgents = %v, want [a b]", hot)
	}

	stats := ts.Stats()
	if stats.Total != 3 || stats.Zones != 2 {
		t.Errorf("stats = %+v, want 3 agents across 2 zones", stats)
	}
	if stats.Distribution[TierActive] != 1 || stats.Distribution[TierNearby] != 1 || stats.Distribution[TierIdle] != 1 {
		t.Errorf("distribution = %v", stats.Distribution)
	}
}
