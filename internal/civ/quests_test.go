package civ

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/duskfolk/duskfolk/pkg/memory"
	"github.com/duskfolk/duskfolk/pkg/memory/mock"
)

func newQuests(seed int64, rep ReputationCrediter) (*Quests, *mock.Store) {
	store := mock.NewStore()
	q := NewQuests(store, rep, WithQuestsRand(rand.New(rand.NewSource(seed))))
	return q, store
}

func topicsOf(categories ...memory.TopicCategory) []memory.Topic {
	out := make([]memory.Topic, len(categories))
	for i, c := range categories {
		out[i] = memory.Topic{Category: c, EmotionalWeight: 0.8}
	}
	return out
}

func TestQuestTypeFollowsTopicCategories(t *testing.T) {
	tests := []struct {
		name   string
		topics []memory.Topic
		want   map[string]bool
	}{
		{
			name:   "crime invites investigation or revenge",
			topics: topicsOf(memory.CategoryCrime),
			want:   map[string]bool{"investigate": true, "revenge": true},
		},
		{
			name:   "secrets likewise",
			topics: topicsOf(memory.CategorySecret, memory.CategoryPreference),
			want:   map[string]bool{"investigate": true, "revenge": true},
		},
		{
			name:   "family invites rescue or protection",
			topics: topicsOf(memory.CategoryFamily),
			want:   map[string]bool{"rescue": true, "protect": true},
		},
		{
			name:   "goals invite errands",
			topics: topicsOf(memory.CategoryGoal),
			want:   map[string]bool{"fetch": true, "trade": true},
		},
		{
			name:   "fear invites protection or investigation",
			topics: topicsOf(memory.CategoryFear),
			want:   map[string]bool{"protect": true, "investigate": true},
		},
		{
			name:   "no topics fall back to common work",
			topics: nil,
			want:   map[string]bool{"fetch": true, "trade": true, "protect": true},
		},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := newQuests(3, nil)
			for i := 0; i < 10; i++ {
				quest, err := q.Generate(ctx, "npc_a", "p1", tt.topics)
				if err != nil {
					t.Fatalf("Generate: %v", err)
				}
				if !tt.want[quest.Type] {
					t.Errorf("quest type %q not among %v", quest.Type, tt.want)
				}
			}
		})
	}
}

func TestQuestRewardsByDifficulty(t *testing.T) {
	q, _ := newQuests(5, nil)
	ctx := context.Background()

	wantGold := map[string]int{"easy": 50, "medium": 100, "hard": 200}
	wantRep := map[string]float64{"easy": 0.05, "medium": 0.1, "hard": 0.2}

	for i := 0; i < 30; i++ {
		quest, err := q.Generate(ctx, "npc_a", "", nil)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if quest.RewardGold != wantGold[quest.Difficulty] {
			t.Errorf("%s quest gold = %d, want %d", quest.Difficulty, quest.RewardGold, wantGold[quest.Difficulty])
		}
		if quest.RewardRep != wantRep[quest.Difficulty] {
			t.Errorf("%s quest rep = %v, want %v", quest.Difficulty, quest.RewardRep, wantRep[quest.Difficulty])
		}
		if hasItem := quest.RewardItem != ""; hasItem != (quest.Difficulty == "hard") {
			t.Errorf("%s quest item = %q", quest.Difficulty, quest.RewardItem)
		}
		if until := time.Until(quest.ExpiresAt); until < 6*24*time.Hour || until > 8*24*time.Hour {
			t.Errorf("quest deadline %v out, want about a week", until)
		}
	}
}

func TestQuestContextLineFromHeaviestTopic(t *testing.T) {
	q, _ := newQuests(5, nil)

	topics := []memory.Topic{
		{Category: memory.CategoryFamily, EmotionalWeight: 0.95},
		{Category: memory.CategoryCrime, EmotionalWeight: 0.9},
	}
	quest, err := q.Generate(context.Background(), "npc_a", "p1", topics)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := questContextLines[memory.CategoryFamily]
	if len(quest.Details) < len(want) || quest.Details[len(quest.Details)-len(want):] != want {
		t.Errorf("details %q do not end with the family context line", quest.Details)
	}
}

func TestQuestAcceptCompleteCreditsReputation(t *testing.T) {
	store := mock.NewStore()
	// The same mock store backs the reputation side.
	rep := repFunc(func(ctx context.Context, playerID, agentID string, mod float64) (memory.ReputationEdge, error) {
		return store.AdjustReputation(ctx, playerID, agentID, mod)
	})
	q := NewQuests(store, rep, WithQuestsRand(rand.New(rand.NewSource(2))))
	ctx := context.Background()

	quest, err := q.Generate(ctx, "npc_a", "", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	accepted, err := q.Accept(ctx, quest.ID, "p1")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != memory.QuestActive || accepted.PlayerID != "p1" {
		t.Fatalf("accepted quest %+v, want active bound to p1", accepted)
	}

	// Double-accept is a state conflict.
	if _, err := q.Accept(ctx, quest.ID, "p2"); !errors.Is(err, ErrWrongState) {
		t.Errorf("second accept: err = %v, want ErrWrongState", err)
	}

	done, err := q.Complete(ctx, quest.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != memory.QuestCompleted {
		t.Errorf("status %q, want completed", done.Status)
	}

	edge, err := store.Reputation(ctx, "p1", "npc_a")
	if err != nil {
		t.Fatalf("Reputation: %v", err)
	}
	if edge.Score != done.RewardRep {
		t.Errorf("reputation %v, want credited reward %v", edge.Score, done.RewardRep)
	}
}

type repFunc func(ctx context.Context, playerID, agentID string, mod float64) (memory.ReputationEdge, error)

func (f repFunc) ApplyTrust(ctx context.Context, playerID, agentID string, mod float64) (memory.ReputationEdge, error) {
	return f(ctx, playerID, agentID, mod)
}

func TestQuestCompleteRequiresActive(t *testing.T) {
	q, _ := newQuests(2, nil)
	ctx := context.Background()

	quest, err := q.Generate(ctx, "npc_a", "", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := q.Complete(ctx, quest.ID); !errors.Is(err, ErrWrongState) {
		t.Errorf("complete unaccepted quest: err = %v, want ErrWrongState", err)
	}
	if _, err := q.Accept(ctx, "missing", "p1"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("accept missing quest: err = %v, want ErrNotFound", err)
	}
}

func TestQuestExpiry(t *testing.T) {
	q, _ := newQuests(2, nil)
	ctx := context.Background()

	quest, err := q.Generate(ctx, "npc_a", "", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	n, err := q.Expire(ctx, quest.ExpiresAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d quests, want 1", n)
	}
	if _, err := q.Accept(ctx, quest.ID, "p1"); !errors.Is(err, ErrWrongState) {
		t.Errorf("accept expired quest: err = %v, want ErrWrongState", err)
	}
}
