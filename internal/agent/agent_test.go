package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/duskfolk/duskfolk/internal/mind"
	"github.com/duskfolk/duskfolk/internal/persona"
	"github.com/duskfolk/duskfolk/internal/social"
	"github.com/duskfolk/duskfolk/internal/topics"
	"github.com/duskfolk/duskfolk/pkg/memory"
	"github.com/duskfolk/duskfolk/pkg/memory/mock"
	llmmock "github.com/duskfolk/duskfolk/pkg/provider/llm/mock"
	"github.com/duskfolk/duskfolk/pkg/types"
)

func testPersona() persona.Persona {
	return persona.Persona{
		ID:       "npc-guard-1",
		Name:     "Maren",
		Role:     "gate guard",
		Location: "gates",
		Faction:  "guards",
		Traits:   map[string]float64{"paranoia": 0.8, "discipline": 0.7},
		InitialMemories: []persona.SeedMemory{
			{Kind: memory.KindEpisodic, Content: "The raid last winter took three of us."},
		},
	}
}

func frameJSON(intent, dialogue string, urgency, trustMod float64) string {
	return fmt.Sprintf(`{"internal_reflection":"thinking it over","intent":%q,"dialogue":%q,"urgency":%g,"trust_mod":%g,"emotional_state":"Wary"}`,
		intent, dialogue, urgency, trustMod)
}

// newTestAgent wires an agent over the in-memory store and a scripted model,
// starts it, and registers shutdown.
func newTestAgent(t *testing.T, p persona.Persona, provider *llmmock.Provider) (*Agent, *mock.Store) {
	t.Helper()
	store := mock.NewStore()
	a := New(p,
		mind.NewEngine(provider),
		store,
		topics.NewService(store, store),
		social.NewService(store),
	)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.Stop(ctx); err != nil && !errors.Is(err, ErrStopped) {
			t.Errorf("Stop: %v", err)
		}
	})
	return a, store
}

func TestStartSeedsInitialMemories(t *testing.T) {
	provider := &llmmock.Provider{Response: frameJSON("Guard", "Move along.", 0.3, 0)}
	_, store := newTestAgent(t, testPersona(), provider)

	mems, err := store.RecentMemories(context.Background(), "npc-guard-1", 10)
	if err != nil {
		t.Fatalf("RecentMemories: %v", err)
	}
	if len(mems) != 1 || mems[0].Content != "The raid last winter took three of us." {
		t.Fatalf("seeded memories = %v", mems)
	}
	if mems[0].Strength != 0.7 {
		t.Errorf("seed strength = %v, want default 0.7", mems[0].Strength)
	}
}

func TestActReturnsFrameAndPersists(t *testing.T) {
	ctx := context.Background()
	provider := &llmmock.Provider{Response: frameJSON("Socialize", "Well met.", 0.3, 0.02)}
	a, store := newTestAgent(t, testPersona(), provider)

	res, err := a.Act(ctx, ActionInput{
		PlayerID:   "player-1",
		PlayerName: "Ash",
		Perception: "The traveler waves in greeting",
	})
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	if res.Frame.Fallback {
		t.Fatal("frame degraded unexpectedly")
	}
	if res.Frame.Intent != types.IntentSocialize || res.Frame.Dialogue != "Well met." {
		t.Errorf("frame = %+v", res.Frame)
	}
	// Paranoia 0.8 scales the trust mod by 1.5.
	if got := res.Frame.TrustMod; got < 0.029 || got > 0.031 {
		t.Errorf("trust mod = %v, want 0.03 after paranoia scaling", got)
	}

	mems, err := store.RecentMemories(ctx, "npc-guard-1", 10)
	if err != nil {
		t.Fatalf("RecentMemories: %v", err)
	}
	if len(mems) != 2 {
		t.Fatalf("memory count = %d, want seed + interaction", len(mems))
	}
	if mems[0].Content != "Player action: The traveler waves in greeting" {
		t.Errorf("interaction memory = %q", mems[0].Content)
	}
	if mems[0].Strength != 0.6 {
		t.Errorf("interaction strength = %v, want 0.6", mems[0].Strength)
	}
}

func TestActFallsBackOnModelFailure(t *testing.T) {
	ctx := context.Background()
	provider := &llmmock.Provider{Err: errors.New("backend gone")}
	a, store := newTestAgent(t, testPersona(), provider)

	res, err := a.Act(ctx, ActionInput{PlayerID: "player-1", Perception: "hello"})
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	frame := res.Frame
	if !frame.Fallback {
		t.Fatal("want fallback frame")
	}
	if frame.Intent != types.IntentGuard || frame.Dialogue != "..." || frame.Urgency != 0.5 {
		t.Errorf("fallback frame = %+v", frame)
	}
	if !strings.Contains(frame.InternalReflection, "[ERROR:") {
		t.Errorf("reflection = %q, want error marker", frame.InternalReflection)
	}

	// Nothing persists on the degraded path: only the seed memory exists.
	mems, err := store.RecentMemories(ctx, "npc-guard-1", 10)
	if err != nil {
		t.Fatalf("RecentMemories: %v", err)
	}
	if len(mems) != 1 {
		t.Errorf("memory count = %d, fallback must not persist", len(mems))
	}
}

func TestActFallsBackOnMalformedFrame(t *testing.T) {
	provider := &llmmock.Provider{Response: `{"intent":"Dance","dialogue":"??"}`}
	a, _ := newTestAgent(t, testPersona(), provider)

	res, err := a.Act(context.Background(), ActionInput{PlayerID: "player-1", Perception: "hello"})
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	if !res.Frame.Fallback {
		t.Error("invalid frame JSON must degrade to the fallback frame")
	}
}

func TestHungerOverridesIntent(t *testing.T) {
	ctx := context.Background()
	provider := &llmmock.Provider{Response: frameJSON("Socialize", "Care to chat?", 0.2, 0)}
	a, _ := newTestAgent(t, testPersona(), provider)

	if err := a.ForceVitals(ctx, types.Vitals{Hunger: 0.85}); err != nil {
		t.Fatalf("ForceVitals: %v", err)
	}
	res, err := a.Act(ctx, ActionInput{PlayerID: "player-1", Perception: "hello"})
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	if res.Frame.Intent != types.IntentInvestigate {
		t.Errorf("intent = %v, want hunger-driven Investigate", res.Frame.Intent)
	}
	if res.Frame.Urgency < 0.9 {
		t.Errorf("urgency = %v, want ≥0.9", res.Frame.Urgency)
	}
	if !strings.Contains(res.Frame.InternalReflection, "Hunger override") {
		t.Errorf("reflection = %q, want hunger annotation", res.Frame.InternalReflection)
	}
}

func TestFatigueWinsOverHunger(t *testing.T) {
	ctx := context.Background()
	provider := &llmmock.Provider{Response: frameJSON("Socialize", "Care to chat?", 0.2, 0)}
	a, _ := newTestAgent(t, testPersona(), provider)

	if err := a.ForceVitals(ctx, types.Vitals{Hunger: 0.9, Fatigue: 0.95}); err != nil {
		t.Fatalf("ForceVitals: %v", err)
	}
	res, err := a.Act(ctx, ActionInput{PlayerID: "player-1", Perception: "hello"})
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	if res.Frame.Intent != types.IntentIgnore {
		t.Errorf("intent = %v, want exhausted Ignore", res.Frame.Intent)
	}
	if res.Frame.Dialogue != "I... need to rest..." || res.Frame.Urgency != 1.0 {
		t.Errorf("frame = %+v", res.Frame)
	}
}

func TestVitalsOverridePreservesFlee(t *testing.T) {
	ctx := context.Background()
	provider := &llmmock.Provider{Response: frameJSON("Flee", "Run!", 0.9, 0)}
	a, _ := newTestAgent(t, testPersona(), provider)

	if err := a.ForceVitals(ctx, types.Vitals{Hunger: 0.95, Fatigue: 0.95}); err != nil {
		t.Fatalf("ForceVitals: %v", err)
	}
	res, err := a.Act(ctx, ActionInput{PlayerID: "player-1", Perception: "a raider draws a weapon"})
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	if res.Frame.Intent != types.IntentFlee {
		t.Errorf("intent = %v, fleeing must survive vitals overrides", res.Frame.Intent)
	}
}

func TestThreatPerceptionDriftsParanoia(t *testing.T) {
	ctx := context.Background()
	provider := &llmmock.Provider{Response: frameJSON("Guard", "Drop it!", 0.9, -0.05)}
	a, store := newTestAgent(t, testPersona(), provider)

	res, err := a.Act(ctx, ActionInput{PlayerID: "player-1", Perception: "the stranger raises a weapon"})
	if err != nil {
		t.Fatalf("Act: %v", err)
	}

	// Drift: paranoia 0.8 + 0.1 through the sigmoid soft-clamp lands at
	// SoftClamp(0.9) ≈ 0.9338, still inside humanity bounds.
	want := memory.SoftClamp(0.9)
	if got := res.Traits.Paranoia; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("paranoia = %v, want %v after threat drift", got, want)
	}
	if res.Traits.Paranoia > 0.95 {
		t.Errorf("paranoia = %v, escaped humanity bounds", res.Traits.Paranoia)
	}
	ledger, err := store.TraitHistory(ctx, "npc-guard-1", "paranoia", 10)
	if err != nil {
		t.Fatalf("TraitHistory: %v", err)
	}
	if len(ledger) != 1 || ledger[0].Delta != 0.1 {
		t.Fatalf("trait ledger = %v", ledger)
	}
	if got := ledger[0].Result; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("ledger result = %v, want %v", got, want)
	}

	// The limbic system reacted too: arousal up from 0.5, paranoid mood.
	if res.Emotional.Arousal <= 0.5 {
		t.Errorf("arousal = %v, want raised by the threat", res.Emotional.Arousal)
	}
	if res.Emotional.Mood != "Paranoid" {
		t.Errorf("mood = %q, want Paranoid", res.Emotional.Mood)
	}

	// Negative trust mod scaled 1.5 by paranoia: -0.05 → -0.075.
	if got := res.Frame.TrustMod; got < -0.0751 || got > -0.0749 {
		t.Errorf("trust mod = %v, want -0.075", got)
	}
}

func TestTrustModClamped(t *testing.T) {
	provider := &llmmock.Provider{Response: frameJSON("Guard", "Out.", 0.5, -0.1)}
	a, _ := newTestAgent(t, testPersona(), provider)

	res, err := a.Act(context.Background(), ActionInput{PlayerID: "player-1", Perception: "an insult"})
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	// -0.1 × 1.5 would be -0.15; the write path only accepts [-0.1, 0.1].
	if res.Frame.TrustMod != -0.1 {
		t.Errorf("trust mod = %v, want clamped -0.1", res.Frame.TrustMod)
	}
}

func TestStatusSnapshot(t *testing.T) {
	provider := &llmmock.Provider{}
	a, _ := newTestAgent(t, testPersona(), provider)

	st, err := a.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.ID != "npc-guard-1" || st.Name != "Maren" || st.Faction != "guards" {
		t.Errorf("status = %+v", st)
	}
	if st.Traits.Paranoia != 0.8 {
		t.Errorf("traits.paranoia = %v, want 0.8", st.Traits.Paranoia)
	}
	if st.Emotional.Mood != "Paranoid" {
		t.Errorf("mood = %q, want persona-derived Paranoid", st.Emotional.Mood)
	}
}

func TestStoppedAgentRejectsWork(t *testing.T) {
	ctx := context.Background()
	provider := &llmmock.Provider{}
	a, _ := newTestAgent(t, testPersona(), provider)

	if err := a.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := a.Act(ctx, ActionInput{PlayerID: "p", Perception: "x"}); !errors.Is(err, ErrStopped) {
		t.Errorf("Act after Stop = %v, want ErrStopped", err)
	}
	if _, err := a.Status(ctx); !errors.Is(err, ErrStopped) {
		t.Errorf("Status after Stop = %v, want ErrStopped", err)
	}
}

func TestActBeforeStart(t *testing.T) {
	store := mock.NewStore()
	a := New(testPersona(), mind.NewEngine(&llmmock.Provider{}), store,
		topics.NewService(store, store), social.NewService(store))

	if _, err := a.Act(context.Background(), ActionInput{Perception: "x"}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Act before Start = %v, want ErrNotStarted", err)
	}
}

func TestReflectStoresBelief(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()
	provider := &llmmock.Provider{Response: "The gates see more armed travelers every week."}
	a := New(testPersona(), mind.NewEngine(provider), store,
		topics.NewService(store, store), social.NewService(store))

	for i := 0; i < 5; i++ {
		if _, err := store.AppendMemory(ctx, memory.Memory{
			AgentID: a.ID(), Kind: memory.KindEpisodic, Content: fmt.Sprintf("patrol report %d", i),
		}); err != nil {
			t.Fatalf("AppendMemory: %v", err)
		}
	}

	// Exercised directly; the autonomous ticker schedules this every
	// reflection interval through the same code path.
	a.reflect(ctx)

	beliefs, err := store.Beliefs(ctx, a.ID(), 10)
	if err != nil {
		t.Fatalf("Beliefs: %v", err)
	}
	if len(beliefs) != 1 {
		t.Fatalf("beliefs = %v, want one", beliefs)
	}
	if beliefs[0].Content != "The gates see more armed travelers every week." {
		t.Errorf("belief = %q", beliefs[0].Content)
	}
	if beliefs[0].Strength != 0.7 {
		t.Errorf("belief strength = %v, want 0.7", beliefs[0].Strength)
	}
}

func TestContextAssemblyReachesPrompt(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()
	provider := &llmmock.Provider{Response: frameJSON("Guard", "Hm.", 0.2, 0)}
	soc := social.NewService(store)
	a := New(testPersona(), mind.NewEngine(provider), store,
		topics.NewService(store, store), soc)
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	if _, err := store.UpsertBelief(ctx, memory.Belief{
		AgentID: a.ID(), Content: "Strangers mean trouble.", Strength: 0.8,
	}); err != nil {
		t.Fatalf("UpsertBelief: %v", err)
	}
	if _, err := soc.GetOrCreatePlayer(ctx, "player-1", "Ash"); err != nil {
		t.Fatalf("GetOrCreatePlayer: %v", err)
	}
	if _, err := soc.ApplyTrust(ctx, "player-1", a.ID(), 0.1); err != nil {
		t.Fatalf("ApplyTrust: %v", err)
	}

	if _, err := a.Act(ctx, ActionInput{PlayerID: "player-1", Perception: "hello"}); err != nil {
		t.Fatalf("Act: %v", err)
	}

	calls := provider.Calls()
	if len(calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(calls))
	}
	user := calls[0].Req.Messages[0].Content
	if !strings.Contains(user, "Strangers mean trouble.") {
		t.Error("belief missing from the prompt")
	}
	if !strings.Contains(user, "The raid last winter") {
		t.Error("seed memory missing from the prompt")
	}
	if !strings.Contains(user, "Your trust in this player: 0.10") {
		t.Errorf("reputation missing from the prompt:\n%s", user)
	}
	sys := calls[0].Req.SystemPrompt
	if !strings.Contains(sys, "Maren") || !strings.Contains(sys, "guards") {
		t.Error("persona missing from the system prompt")
	}
}
