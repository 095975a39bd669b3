package topics

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/duskfolk/duskfolk/pkg/memory"
	"github.com/duskfolk/duskfolk/pkg/memory/mock"
)

func newService(t *testing.T, seed int64) (*Service, *mock.Store) {
	t.Helper()
	store := mock.NewStore()
	svc := NewService(store, store, WithRand(rand.New(rand.NewSource(seed))))
	return svc, store
}

func TestExtractSingleCategory(t *testing.T) {
	svc, _ := newService(t, 1)

	got, err := svc.Extract(context.Background(), "mira", "player1",
		"I am afraid of the dark woods")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("extracted %d topics, want 1: %+v", len(got), got)
	}
	topic := got[0]
	if topic.Category != memory.CategoryFear {
		t.Errorf("Category = %q, want fear", topic.Category)
	}
	if topic.EmotionalWeight != 0.8 {
		t.Errorf("EmotionalWeight = %v, want base 0.8 for one match", topic.EmotionalWeight)
	}
	if topic.Keywords != "afraid" {
		t.Errorf("Keywords = %q, want afraid", topic.Keywords)
	}
	if topic.Content != "I am afraid of the dark woods" {
		t.Errorf("Content = %q, want full message", topic.Content)
	}
	if math.Abs(topic.DecayRate-(0.08-0.05*0.8)) > 1e-9 {
		t.Errorf("DecayRate = %v, want %v", topic.DecayRate, 0.08-0.05*0.8)
	}
}

func TestExtractWeightScalesWithMatches(t *testing.T) {
	svc, _ := newService(t, 1)

	// family base 0.9; "father", "killed", "lost" = 3 matches → 0.9 + 0.05·2 = 1.0
	got, err := svc.Extract(context.Background(), "mira", "player1",
		"My father was killed and I lost everything")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	var family *memory.Topic
	for i := range got {
		if got[i].Category == memory.CategoryFamily {
			family = &got[i]
		}
	}
	if family == nil {
		t.Fatalf("no family topic extracted: %+v", got)
	}
	if family.EmotionalWeight != 1.0 {
		t.Errorf("EmotionalWeight = %v, want capped 1.0", family.EmotionalWeight)
	}
	if family.Keywords != "father,killed,lost" {
		t.Errorf("Keywords = %q, want father,killed,lost", family.Keywords)
	}
}

func TestExtractMultipleCategories(t *testing.T) {
	svc, _ := newService(t, 1)

	got, err := svc.Extract(context.Background(), "mira", "player1",
		"I need to find my brother, I'm afraid he was attacked")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := map[memory.TopicCategory]bool{
		memory.CategoryFamily: true, // brother
		memory.CategoryGoal:   true, // need to, find
		memory.CategoryFear:   true, // afraid
		memory.CategoryEvent:  true, // attacked
	}
	if len(got) != len(want) {
		t.Fatalf("extracted %d topics, want %d: %+v", len(got), len(want), got)
	}
	for _, topic := range got {
		if !want[topic.Category] {
			t.Errorf("unexpected category %q", topic.Category)
		}
	}
}

func TestExtractNoMatches(t *testing.T) {
	svc, _ := newService(t, 1)
	got, err := svc.Extract(context.Background(), "mira", "player1", "Hello there")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("extracted %d topics from small talk, want 0", len(got))
	}
}

func TestExtractRepeatReinforces(t *testing.T) {
	svc, store := newService(t, 1)
	ctx := context.Background()
	msg := "I am afraid of the dark woods"

	first, _ := svc.Extract(ctx, "mira", "player1", msg)
	second, err := svc.Extract(ctx, "mira", "player1", msg)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if second[0].ID != first[0].ID {
		t.Errorf("repeat extraction created new topic %d, want reinforce of %d", second[0].ID, first[0].ID)
	}
	if second[0].RefCount != 2 {
		t.Errorf("RefCount = %d, want 2", second[0].RefCount)
	}

	rows, _ := store.TopicsForPlayer(ctx, "mira", "player1", 0, 10)
	if len(rows) != 1 {
		t.Errorf("store holds %d topics, want 1", len(rows))
	}
}

func TestRelevantScoring(t *testing.T) {
	svc, _ := newService(t, 1)
	ctx := context.Background()

	// Heavy secret topic plus a light preference topic.
	if _, err := svc.Extract(ctx, "mira", "player1", "Keep this secret between us"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Extract(ctx, "mira", "player1", "I like warm bread"); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Relevant(ctx, "mira", "player1", "about that secret you keep", 5)
	if err != nil {
		t.Fatalf("Relevant() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Relevant() returned %d, want 2", len(got))
	}
	if got[0].Category != memory.CategorySecret {
		t.Errorf("top topic = %q, want secret first", got[0].Category)
	}
	// secret: keyword hit 0.3 + weight bonus 0.4 = 0.7, strength 1 →
	// min(1, 0.7 + weight·0.3) = 1.0
	if got[0].Relevance != 1.0 {
		t.Errorf("secret relevance = %v, want 1.0", got[0].Relevance)
	}
	if got[0].Clarity != "vivid" {
		t.Errorf("Clarity = %q, want vivid at full strength", got[0].Clarity)
	}
	// preference: no keyword hit, weight 0.5 < 0.8 → relevance 0 → final 0.15
	if math.Abs(got[1].Relevance-0.15) > 1e-9 {
		t.Errorf("preference relevance = %v, want 0.15", got[1].Relevance)
	}
}

func TestRelevantDropsFadedTopics(t *testing.T) {
	svc, store := newService(t, 1)
	ctx := context.Background()

	if _, err := svc.Extract(ctx, "mira", "player1", "I like warm bread"); err != nil {
		t.Fatal(err)
	}
	// Age it far past the floor: preference decay 0.055/day · (1.1-0.5).
	if _, _, err := svc.Decay(ctx, 40*24*time.Hour); err != nil {
		t.Fatal(err)
	}

	rows, _ := store.TopicsForPlayer(ctx, "mira", "player1", 0, 10)
	if len(rows) != 1 || rows[0].Strength >= 0.2 {
		t.Fatalf("precondition: topic should have faded, got %+v", rows)
	}

	got, err := svc.Relevant(ctx, "mira", "player1", "bread", 5)
	if err != nil {
		t.Fatalf("Relevant() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Relevant() returned %d faded topics, want 0", len(got))
	}
}

func TestDecayComposes(t *testing.T) {
	ctx := context.Background()

	strengthAfter := func(steps []time.Duration) float64 {
		svc, store := newService(t, 1)
		if _, err := svc.Extract(ctx, "mira", "p", "I am afraid of wolves"); err != nil {
			t.Fatal(err)
		}
		for _, d := range steps {
			if _, _, err := svc.Decay(ctx, d); err != nil {
				t.Fatal(err)
			}
		}
		rows, _ := store.TopicsForPlayer(ctx, "mira", "p", 0, 1)
		return rows[0].Strength
	}

	oneShot := strengthAfter([]time.Duration{72 * time.Hour})
	split := strengthAfter([]time.Duration{24 * time.Hour, 48 * time.Hour})
	if math.Abs(oneShot-split) > 1e-6 {
		t.Errorf("decay(72h) = %v but decay(24h);decay(48h) = %v", oneShot, split)
	}
}

func TestReinforceByKeywords(t *testing.T) {
	svc, store := newService(t, 1)
	ctx := context.Background()

	if _, err := svc.Extract(ctx, "mira", "player1", "I am afraid of wolves"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Decay(ctx, 5*24*time.Hour); err != nil {
		t.Fatal(err)
	}
	before, _ := store.TopicsForPlayer(ctx, "mira", "player1", 0, 1)
	if before[0].Strength >= 1.0 {
		t.Fatal("precondition: topic should have decayed")
	}

	n, err := svc.ReinforceByKeywords(ctx, "mira", "player1", "still afraid out there")
	if err != nil {
		t.Fatalf("ReinforceByKeywords() error = %v", err)
	}
	if n != 1 {
		t.Errorf("reinforced %d, want 1", n)
	}
	after, _ := store.TopicsForPlayer(ctx, "mira", "player1", 0, 1)
	if after[0].Strength != 1.0 {
		t.Errorf("Strength = %v, want restored to 1.0", after[0].Strength)
	}

	// Unrelated message reinforces nothing.
	n, err = svc.ReinforceByKeywords(ctx, "mira", "player1", "nice weather")
	if err != nil || n != 0 {
		t.Errorf("ReinforceByKeywords(unrelated) = (%d, %v), want (0, nil)", n, err)
	}
}

func TestAutoShareRequiresFriendship(t *testing.T) {
	svc, store := newService(t, 1)
	ctx := context.Background()

	if _, err := svc.Extract(ctx, "mira", "player1", "They told me a secret about the vault"); err != nil {
		t.Fatal(err)
	}
	// Hostile pair: below the 0.5 gate.
	if _, err := store.UpsertRelation(ctx, "mira", "bran", -0.3, false); err != nil {
		t.Fatal(err)
	}

	n, err := svc.AutoShare(ctx, "mira", "bran", "player1")
	if err != nil {
		t.Fatalf("AutoShare() error = %v", err)
	}
	if n != 0 {
		t.Errorf("shared %d topics across hostile relation, want 0", n)
	}
}

func TestAutoShareFriendlyPair(t *testing.T) {
	svc, store := newService(t, 42)
	ctx := context.Background()

	if _, err := svc.Extract(ctx, "mira", "player1", "They told me a secret about the vault"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.UpsertRelation(ctx, "mira", "bran", 0.5, false); err != nil {
		t.Fatal(err) // relation 1.0 → share chance 0.8
	}

	var total int
	for i := 0; i < 10; i++ {
		n, err := svc.AutoShare(ctx, "mira", "bran", "player1")
		if err != nil {
			t.Fatalf("AutoShare() error = %v", err)
		}
		total += n
	}
	if total != 1 {
		t.Errorf("total shares = %d, want exactly 1 (idempotent per source topic)", total)
	}

	shared, _ := store.SharedTopicsFor(ctx, "bran", "player1", 10)
	if len(shared) != 1 {
		t.Fatalf("bran has %d shared topics, want 1", len(shared))
	}
	st := shared[0]
	if st.TrustFactor != 0.7 || st.Strength != 0.8 {
		t.Errorf("shared topic = %+v, want trust 0.7 strength 0.8", st)
	}
	if math.Abs(st.Weight-0.95*0.8) > 1e-9 {
		t.Errorf("Weight = %v, want source 0.95 scaled by 0.8", st.Weight)
	}
}

func TestAutoShareUnscopedTopFive(t *testing.T) {
	svc, store := newService(t, 7)
	ctx := context.Background()

	// Six heavy topics across different players; only five may be proposed.
	messages := []string{
		"my father died in the raid",
		"keep this secret safe",
		"I witnessed what happened at the mill",
		"I'm terrified of the night patrols",
		"someone murdered the old trader",
		"my sister was lost in the storm",
	}
	for i, msg := range messages {
		if _, err := svc.Extract(ctx, "mira", playerN(i), msg); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.UpsertRelation(ctx, "mira", "bran", 0.5, false); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 50; i++ {
		if _, err := svc.AutoShare(ctx, "mira", "bran", ""); err != nil {
			t.Fatalf("AutoShare() error = %v", err)
		}
	}

	var sharedTotal int
	for i := range messages {
		shared, _ := store.SharedTopicsFor(ctx, "bran", playerN(i), 10)
		sharedTotal += len(shared)
	}
	if sharedTotal > 5 {
		t.Errorf("shared %d distinct topics, want at most the top 5", sharedTotal)
	}
	if sharedTotal == 0 {
		t.Error("no topics shared after 50 friendly gossip rounds")
	}
}

func playerN(i int) string {
	return "player" + string(rune('a'+i))
}
