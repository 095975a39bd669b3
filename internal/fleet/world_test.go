package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/duskfolk/duskfolk/pkg/memory"
	llmmock "github.com/duskfolk/duskfolk/pkg/provider/llm/mock"
)

func TestStartWorldClampsAndRejectsDoubleStart(t *testing.T) {
	provider := &llmmock.Provider{}
	c, _ := newTestFleet(t, provider)

	if err := c.StartWorld(1000, time.Second); err != nil {
		t.Fatalf("StartWorld: %v", err)
	}
	st := c.WorldStatus()
	if !st.Running {
		t.Error("world not running after Start")
	}
	if st.TimeScale != maxTimeScale {
		t.Errorf("time scale = %v, want clamped %v", st.TimeScale, maxTimeScale)
	}
	if st.TickInterval != minTickInterval {
		t.Errorf("tick interval = %v, want clamped %v", st.TickInterval, minTickInterval)
	}

	if err := c.StartWorld(1, time.Minute); !errors.Is(err, ErrWorldRunning) {
		t.Errorf("double Start = %v, want ErrWorldRunning", err)
	}
	if err := c.StopWorld(); err != nil {
		t.Fatalf("StopWorld: %v", err)
	}
	if c.WorldStatus().Running {
		t.Error("world still running after Stop")
	}
	if err := c.StopWorld(); !errors.Is(err, ErrWorldNotRunning) {
		t.Errorf("double Stop = %v, want ErrWorldNotRunning", err)
	}
}

func TestStartWorldKeepsDefaultsForZeroValues(t *testing.T) {
	provider := &llmmock.Provider{}
	c, _ := newTestFleet(t, provider)

	if err := c.StartWorld(0, 0); err != nil {
		t.Fatalf("StartWorld: %v", err)
	}
	defer func() {
		if err := c.StopWorld(); err != nil {
			t.Errorf("StopWorld: %v", err)
		}
	}()

	st := c.WorldStatus()
	if st.TimeScale != defaultTimeScale || st.TickInterval != defaultTickInterval {
		t.Errorf("status = %+v, want defaults", st)
	}
}

func TestConfigureWorldAppliesLive(t *testing.T) {
	provider := &llmmock.Provider{}
	c, _ := newTestFleet(t, provider)

	// Configure works on a stopped world and seeds the next start.
	c.ConfigureWorld(4, 30*time.Second)
	st := c.WorldStatus()
	if st.TimeScale != 4 || st.TickInterval != 30*time.Second {
		t.Errorf("configured while stopped = %+v", st)
	}

	if err := c.StartWorld(0, 0); err != nil {
		t.Fatalf("StartWorld: %v", err)
	}
	defer func() {
		if err := c.StopWorld(); err != nil {
			t.Errorf("StopWorld: %v", err)
		}
	}()

	// Zero values keep the current settings; out-of-range values clamp.
	c.ConfigureWorld(0, maxTickInterval*10)
	st = c.WorldStatus()
	if st.TimeScale != 4 {
		t.Errorf("time scale = %v, want 4 kept", st.TimeScale)
	}
	if st.TickInterval != maxTickInterval {
		t.Errorf("tick interval = %v, want clamped %v", st.TickInterval, maxTickInterval)
	}
}

func TestTickExpiresQuestsAndAdvancesTime(t *testing.T) {
	ctx := context.Background()
	provider := &llmmock.Provider{}
	c, store := newTestFleet(t, provider,
		villagerPersona("mira", "merchants"),
		villagerPersona("tomas", "merchants"),
	)
	mustRegister(t, c, "mira")
	mustRegister(t, c, "tomas")

	if err := store.SaveQuest(ctx, memory.Quest{
		ID:        "q-stale",
		AgentID:   "mira",
		Title:     "Retrieve Lost Heirloom",
		Status:    memory.QuestAvailable,
		ExpiresAt: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("SaveQuest: %v", err)
	}

	before := c.WorldStatus().WorldTime
	events, err := c.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}

	st := c.WorldStatus()
	if st.Stats.TotalTicks != 1 {
		t.Errorf("total ticks = %d, want 1", st.Stats.TotalTicks)
	}
	if !st.WorldTime.After(before) {
		t.Error("world time did not advance")
	}
	if st.Stats.QuestsExpired != 1 {
		t.Errorf("quests expired = %d, want 1", st.Stats.QuestsExpired)
	}

	var sawExpiry bool
	for _, ev := range events {
		if ev.Stream == StreamQuest && ev.Type == "quests_expired" {
			sawExpiry = true
		}
	}
	if !sawExpiry {
		t.Errorf("events = %+v, want a quests_expired event", events)
	}
	if retained := c.WorldEvents(10); len(retained) != len(events) {
		t.Errorf("retained = %d events, emitted %d", len(retained), len(events))
	}

	q, err := store.Quest(ctx, "q-stale")
	if err != nil {
		t.Fatalf("Quest: %v", err)
	}
	if q.Status != memory.QuestExpired {
		t.Errorf("quest status = %q, want expired", q.Status)
	}
}

func TestTickPublishesToHub(t *testing.T) {
	ctx := context.Background()
	provider := &llmmock.Provider{}
	c, store := newTestFleet(t, provider, villagerPersona("mira", "merchants"))
	mustRegister(t, c, "mira")

	ch, cancel := c.Hub().Subscribe(StreamQuest, 4)
	defer cancel()

	if err := store.SaveQuest(ctx, memory.Quest{
		ID:        "q-stale",
		AgentID:   "mira",
		Status:    memory.QuestAvailable,
		ExpiresAt: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("SaveQuest: %v", err)
	}
	if _, err := c.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Type != "quests_expired" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no quest event reached the hub")
	}
}

func TestAdvanceDecaysMemoriesAndEmits(t *testing.T) {
	ctx := context.Background()
	provider := &llmmock.Provider{}
	c, _ := newTestFleet(t, provider,
		villagerPersona("mira", "merchants"),
		villagerPersona("tomas", "merchants"),
	)
	mustRegister(t, c, "mira")
	mustRegister(t, c, "tomas")

	if _, err := c.deps.Topics.Extract(ctx, "mira", "player-1", "my father was killed by bandits"); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	before := c.WorldStatus().WorldTime
	events, err := c.Advance(ctx, 2)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}

	st := c.WorldStatus()
	if got := st.WorldTime.Sub(before); got != 2*time.Hour {
		t.Errorf("world time advanced %v, want 2h", got)
	}
	if st.Stats.MemoriesDecayed == 0 {
		t.Error("stored topics must age during fast-forward")
	}

	if len(events) == 0 || events[0].Type != "time_advanced" {
		t.Fatalf("events = %+v, want time_advanced first", events)
	}
}

func TestAdvanceRejectsNonPositiveHours(t *testing.T) {
	provider := &llmmock.Provider{}
	c, _ := newTestFleet(t, provider)

	if _, err := c.Advance(context.Background(), 0); err == nil {
		t.Error("Advance(0) must fail")
	}
	if _, err := c.Advance(context.Background(), -3); err == nil {
		t.Error("Advance(-3) must fail")
	}
}

func TestGossipEventWrapsExchange(t *testing.T) {
	ctx := context.Background()
	provider := &llmmock.Provider{}
	c, _ := newTestFleet(t, provider,
		villagerPersona("mira", "merchants"),
		villagerPersona("tomas", "merchants"),
	)
	mustRegister(t, c, "mira")
	mustRegister(t, c, "tomas")

	if _, err := c.deps.Social.GetOrCreatePlayer(ctx, "player-1", "Ash"); err != nil {
		t.Fatalf("GetOrCreatePlayer: %v", err)
	}
	if _, err := c.deps.Social.AuthorRumor(ctx, "player-1", "mira", "picked a fight", "negative"); err != nil {
		t.Fatalf("AuthorRumor: %v", err)
	}

	ev, ok := c.gossipEvent(ctx, "mira", "tomas")
	if !ok {
		t.Fatal("gossipEvent reported failure")
	}
	if ev.Stream != StreamWorld || ev.Type != "gossip" {
		t.Errorf("event = %+v", ev)
	}
	if c.WorldStatus().Stats.GossipEvents != 1 {
		t.Errorf("gossip events = %d, want 1", c.WorldStatus().Stats.GossipEvents)
	}

	// Unregistered participants fail quietly; the tick carries on.
	if _, ok := c.gossipEvent(ctx, "mira", "ghost"); ok {
		t.Error("gossip with an unknown listener must not produce an event")
	}
}

func TestExecuteRandomTradeEmitsEvent(t *testing.T) {
	provider := &llmmock.Provider{}
	c, _ := newTestFleet(t, provider)

	if _, ok := c.executeRandomTrade(); ok {
		t.Error("no routes established, no trade expected")
	}

	c.deps.Trade.Establish("mira", "tomas", "docks", "market_square")
	ev, ok := c.executeRandomTrade()
	if !ok {
		t.Fatal("trade on an active route must produce an event")
	}
	if ev.Stream != StreamWorld || ev.Type != "trade" || ev.Detail == "" {
		t.Errorf("event = %+v", ev)
	}
	if c.WorldStatus().Stats.TradesExecuted != 1 {
		t.Errorf("trades executed = %d, want 1", c.WorldStatus().Stats.TradesExecuted)
	}
}
