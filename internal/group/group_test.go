package group

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/duskfolk/duskfolk/internal/agent"
	"github.com/duskfolk/duskfolk/internal/mind"
	"github.com/duskfolk/duskfolk/internal/persona"
	"github.com/duskfolk/duskfolk/internal/social"
	"github.com/duskfolk/duskfolk/internal/topics"
	"github.com/duskfolk/duskfolk/pkg/memory/mock"
	llmmock "github.com/duskfolk/duskfolk/pkg/provider/llm/mock"
)

// testDirectory resolves agents from a plain map.
type testDirectory map[string]*agent.Agent

func (d testDirectory) AgentByID(id string) (*agent.Agent, bool) {
	ag, ok := d[id]
	return ag, ok
}

func frameJSON(dialogue string) string {
	return fmt.Sprintf(`{"internal_reflection":"hm","intent":"Socialize","dialogue":%q,"urgency":0.3,"trust_mod":0,"emotional_state":"Neutral"}`, dialogue)
}

// startAgent builds and starts one live agent over the shared store.
func startAgent(t *testing.T, store *mock.Store, id, name string, traits map[string]float64, provider *llmmock.Provider) *agent.Agent {
	t.Helper()
	a := agent.New(persona.Persona{
		ID:     id,
		Name:   name,
		Role:   "villager",
		Traits: traits,
	}, mind.NewEngine(provider), store, topics.NewService(store, store), social.NewService(store))
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start %s: %v", id, err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.Stop(ctx)
	})
	return a
}

// newTestManager wires a manager over two live agents, Marta and Bram, with a
// seeded rng: the first two rolls come up 0.60 and 0.94, so a default-trait
// chime-in (chance 0.35) stays quiet and a hot-headed one (chance 0.63)
// speaks up.
func newTestManager(t *testing.T, orchestrator *llmmock.Provider, martaTraits, bramTraits map[string]float64, martaSays, bramSays string) (*Manager, testDirectory) {
	t.Helper()
	store := mock.NewStore()
	dir := testDirectory{
		"marta": startAgent(t, store, "marta", "Marta", martaTraits, &llmmock.Provider{Response: frameJSON(martaSays)}),
		"bram":  startAgent(t, store, "bram", "Bram", bramTraits, &llmmock.Provider{Response: frameJSON(bramSays)}),
	}
	m := NewManager(dir, orchestrator, WithRand(rand.New(rand.NewSource(1))))
	return m, dir
}

func TestStartWithExplicitParticipants(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil, "Aye.", "Hm.")

	snap, err := m.Start("player-1", []string{"marta", "bram"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !strings.HasPrefix(snap.ID, "conv_") || len(snap.ID) != len("conv_")+8 {
		t.Errorf("group id = %q", snap.ID)
	}
	if !snap.Active {
		t.Error("new group must be active")
	}
	if len(snap.Participants) != 2 {
		t.Fatalf("participants = %+v", snap.Participants)
	}
	for _, p := range snap.Participants {
		if p.Role != RoleListener {
			t.Errorf("%s role = %q, want listener", p.AgentID, p.Role)
		}
	}
	if snap.Participants[0].Name != "Marta" || snap.Participants[1].Name != "Bram" {
		t.Errorf("join order lost: %+v", snap.Participants)
	}
}

func TestStartAutoDiscoversNearbyAgents(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil, "Aye.", "Hm.")
	for _, id := range []string{"marta", "bram"} {
		if err := m.Locations().Update(LocationAgent, id, 0, 0, 0, "market"); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	snap, err := m.Start("player-1", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(snap.Participants) != 2 {
		t.Errorf("auto-discovered = %+v", snap.Participants)
	}
}

func TestStartRejectsUnknownAgent(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil, "Aye.", "Hm.")
	if _, err := m.Start("player-1", []string{"marta", "ghost"}); !errors.Is(err, ErrAgentUnknown) {
		t.Errorf("Start = %v, want ErrAgentUnknown", err)
	}
}

func TestStartWithNobodyAround(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil, "Aye.", "Hm.")
	if _, err := m.Start("player-1", nil); !errors.Is(err, ErrNoParticipants) {
		t.Errorf("Start = %v, want ErrNoParticipants", err)
	}
}

func TestAddAndRemoveLifecycle(t *testing.T) {
	m, dir := newTestManager(t, nil, nil, nil, "Aye.", "Hm.")
	store := mock.NewStore()
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("extra_%d", i)
		dir[id] = startAgent(t, store, id, "Extra "+id, nil, &llmmock.Provider{})
	}

	snap, err := m.Start("player-1", []string{"marta"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	gid := snap.ID

	snap, err = m.Add(gid, "bram")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(snap.Participants) != 2 {
		t.Fatalf("participants = %+v", snap.Participants)
	}
	last := snap.History[len(snap.History)-1]
	if last.Speaker != "system" || !strings.Contains(last.Text, "Bram has joined") {
		t.Errorf("join line = %+v", last)
	}

	if _, err := m.Add(gid, "bram"); !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("duplicate Add = %v, want ErrAlreadyMember", err)
	}
	if _, err := m.Add(gid, "ghost"); !errors.Is(err, ErrAgentUnknown) {
		t.Errorf("unknown Add = %v, want ErrAgentUnknown", err)
	}
	if _, err := m.Add("conv_missing", "marta"); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("Add to missing group = %v, want ErrGroupNotFound", err)
	}

	// Fill to capacity, then one more.
	for i := 0; i < 4; i++ {
		if _, err := m.Add(gid, fmt.Sprintf("extra_%d", i)); err != nil {
			t.Fatalf("Add extra_%d: %v", i, err)
		}
	}
	if _, err := m.Add(gid, "extra_4"); !errors.Is(err, ErrGroupFull) {
		t.Errorf("Add past capacity = %v, want ErrGroupFull", err)
	}

	snap, err = m.Remove(gid, "bram")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	for _, p := range snap.Participants {
		if p.AgentID == "bram" {
			t.Error("removed participant still present")
		}
	}
	if _, err := m.Remove(gid, "bram"); !errors.Is(err, ErrNotMember) {
		t.Errorf("double Remove = %v, want ErrNotMember", err)
	}
}

func TestRemovingLastParticipantEndsGroup(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil, "Aye.", "Hm.")
	snap, err := m.Start("player-1", []string{"marta"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap, err = m.Remove(snap.ID, "marta")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if snap.Active {
		t.Error("empty group must deactivate")
	}
}

func TestEndAndGet(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil, "Aye.", "Hm.")
	snap, err := m.Start("player-1", []string{"marta", "bram"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	final, err := m.End(snap.ID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if final.Active {
		t.Error("ended group still active")
	}
	got, err := m.Get(snap.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Active {
		t.Error("Get after End reports active")
	}
	if _, err := m.Get("conv_missing"); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("Get missing = %v, want ErrGroupNotFound", err)
	}
}

func TestCleanupSweepsIdleAndInactive(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil, "Aye.", "Hm.")
	stale, err := m.Start("player-1", []string{"marta"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	fresh, err := m.Start("player-2", []string{"bram"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	m.mu.Lock()
	m.groups[stale.ID].lastActivity = time.Now().Add(-conversationTimeout - time.Minute)
	m.mu.Unlock()

	if swept := m.Cleanup(); swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}
	got, err := m.Get(stale.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Active {
		t.Error("idle group still active after sweep")
	}

	// The now-inactive group is dropped on the next sweep; the fresh one
	// survives both.
	if swept := m.Cleanup(); swept != 1 {
		t.Errorf("second sweep = %d, want 1", swept)
	}
	if _, err := m.Get(stale.ID); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("Get swept group = %v, want ErrGroupNotFound", err)
	}
	if _, err := m.Get(fresh.ID); err != nil {
		t.Errorf("fresh group swept: %v", err)
	}
}

func TestStatsSummarises(t *testing.T) {
	m, _ := newTestManager(t, nil, nil, nil, "Aye.", "Hm.")
	if _, err := m.Start("player-1", []string{"marta", "bram"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap, err := m.Start("player-2", []string{"marta"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.End(snap.ID); err != nil {
		t.Fatalf("End: %v", err)
	}

	st := m.Stats()
	if st.TotalGroups != 2 || st.ActiveGroups != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.Participants != 2 {
		t.Errorf("participants = %d, want 2 (active groups only)", st.Participants)
	}
	if st.MaxGroupSize != maxGroupSize || st.TimeoutSecs != 300 {
		t.Errorf("thresholds = %+v", st)
	}
}
