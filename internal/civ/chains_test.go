package civ

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

func newChains(seed int64) *Chains {
	return NewChains(WithChainsRand(rand.New(rand.NewSource(seed))))
}

func TestCreateChainMatchesFaction(t *testing.T) {
	wantByFaction := map[string]string{
		"traders":  "The Trade Route",
		"guards":   "Hunting the Outlaws",
		"outcasts": "Spark of Rebellion",
		"citizens": "The Dark Secret",
	}

	c := newChains(1)
	for faction, wantName := range wantByFaction {
		chain := c.Create("npc_a", faction, "")
		if chain.Name != wantName {
			t.Errorf("faction %s chain %q, want %q", faction, chain.Name, wantName)
		}
		if len(chain.Stages) != 4 {
			t.Errorf("chain has %d stages, want 4", len(chain.Stages))
		}
		if chain.RewardGold < 200 || chain.RewardGold > 500 {
			t.Errorf("reward gold %d outside [200, 500]", chain.RewardGold)
		}
		if chain.RewardRep != 0.3 {
			t.Errorf("reward rep %v, want 0.3", chain.RewardRep)
		}
		if chain.RewardItem == "" {
			t.Error("chain missing special item reward")
		}
	}

	// Unknown faction still gets a storyline.
	chain := c.Create("npc_a", "pirates", "")
	if chain.Name == "" {
		t.Error("unknown faction produced no chain")
	}
}

func TestChainStartAndAdvance(t *testing.T) {
	c := newChains(2)
	chain := c.Create("npc_a", "guards", "")

	started, err := c.Start(chain.ID, "p1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.Status != ChainInProgress || started.PlayerID != "p1" {
		t.Fatalf("started chain %+v, want in_progress bound to p1", started)
	}
	if started.CurrentStage() != "gather_intel" {
		t.Errorf("first stage %q, want gather_intel", started.CurrentStage())
	}

	// Starting twice conflicts.
	if _, err := c.Start(chain.ID, "p2"); !errors.Is(err, ErrWrongState) {
		t.Errorf("second start: err = %v, want ErrWrongState", err)
	}

	stages := []string{"track_hideout", "assault_camp", "capture_leader"}
	for _, want := range stages {
		advanced, err := c.Advance(chain.ID)
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if advanced.CurrentStage() != want {
			t.Errorf("stage %q, want %q", advanced.CurrentStage(), want)
		}
	}

	final, err := c.Advance(chain.ID)
	if err != nil {
		t.Fatalf("final Advance: %v", err)
	}
	if final.Status != ChainCompleted {
		t.Errorf("status %q after last stage, want completed", final.Status)
	}
	if _, err := c.Advance(chain.ID); !errors.Is(err, ErrWrongState) {
		t.Errorf("advance completed chain: err = %v, want ErrWrongState", err)
	}
}

func TestChainAvailableScoping(t *testing.T) {
	c := newChains(3)
	open := c.Create("npc_a", "traders", "")
	scoped := c.Create("npc_a", "guards", "p1")
	running := c.Create("npc_a", "citizens", "")
	if _, err := c.Start(running.ID, "p1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// p1 sees the open chain, the one scoped to them, and their running one.
	got := c.Available("p1")
	if len(got) != 3 {
		t.Fatalf("p1 sees %d chains, want 3", len(got))
	}
	ids := map[string]bool{}
	for _, ch := range got {
		ids[ch.ID] = true
	}
	if !ids[scoped.ID] {
		t.Error("p1 does not see the chain scoped to them")
	}

	// p2 sees only the open chain.
	got = c.Available("p2")
	if len(got) != 1 || got[0].ID != open.ID {
		t.Errorf("p2 sees %d chains, want just the open one", len(got))
	}

	if _, err := c.Get("missing"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("Get missing: err = %v, want ErrNotFound", err)
	}
}
