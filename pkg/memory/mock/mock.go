// Package mock provides an in-memory implementation of memory.Store for
// tests. It honors the same semantics as the sqlite store (natural-key
// reinforcement, idempotent shares and rumor spreads, clamped reputation)
// without touching disk.
//
// Now is swappable so decay tests can control the clock.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

// Compile-time interface check.
var _ memory.Store = (*Store)(nil)

// Store is an in-memory memory.Store. Safe for concurrent use.
type Store struct {
	mu sync.Mutex

	// Now supplies timestamps; defaults to time.Now.
	Now func() time.Time

	// Err, if non-nil, is returned from every operation. Use it to test
	// degraded-store paths.
	Err error

	nextID int64

	memories     []memory.Memory
	beliefs      []memory.Belief
	traitLedger  []memory.TraitDelta
	topics       []memory.Topic
	sharedTopics []memory.SharedTopic
	players      map[string]memory.Player
	reputation   map[string]memory.ReputationEdge // key playerID + "\x00" + agentID
	actions      []memory.ActionRecord
	rumors       map[string]memory.Rumor
	rumorKnown   map[string]memory.RumorKnowledge // key agentID + "\x00" + rumorID
	relations    map[string]memory.Relation       // key ordered pair
	quests       map[string]memory.Quest

	// FlushedBatches records every FlushBatch call.
	FlushedBatches [][]memory.BatchWrite

	// AnalyzeCalls counts Analyze invocations.
	AnalyzeCalls int

	closed bool
}

// NewStore returns an empty mock store.
func NewStore() *Store {
	return &Store{
		Now:        time.Now,
		players:    make(map[string]memory.Player),
		reputation: make(map[string]memory.ReputationEdge),
		rumors:     make(map[string]memory.Rumor),
		rumorKnown: make(map[string]memory.RumorKnowledge),
		relations:  make(map[string]memory.Relation),
		quests:     make(map[string]memory.Quest),
	}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

// ─────────────────────────────────────────────────────────────────────────────
// Vault
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) AppendMemory(ctx context.Context, m memory.Memory) (memory.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return memory.Memory{}, s.Err
	}
	if m.Strength == 0 {
		m.Strength = 1.0
	}
	m.ID = s.id()
	m.CreatedAt = s.now()
	s.memories = append(s.memories, m)
	return m, nil
}

func (s *Store) RecentMemories(ctx context.Context, agentID string, limit int) ([]memory.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []memory.Memory
	for i := len(s.memories) - 1; i >= 0 && len(out) < limit; i-- {
		if s.memories[i].AgentID == agentID {
			out = append(out, s.memories[i])
		}
	}
	return out, nil
}

func (s *Store) MemoriesByKind(ctx context.Context, agentID string, kind memory.Kind, limit int) ([]memory.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []memory.Memory
	for i := len(s.memories) - 1; i >= 0 && len(out) < limit; i-- {
		if s.memories[i].AgentID == agentID && s.memories[i].Kind == kind {
			out = append(out, s.memories[i])
		}
	}
	return out, nil
}

func (s *Store) UpsertBelief(ctx context.Context, b memory.Belief) (memory.Belief, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return memory.Belief{}, s.Err
	}
	if b.Strength == 0 {
		b.Strength = 0.5
	}
	for i := range s.beliefs {
		if s.beliefs[i].AgentID == b.AgentID && s.beliefs[i].Content == b.Content {
			if b.Strength > s.beliefs[i].Strength {
				s.beliefs[i].Strength = b.Strength
			}
			return s.beliefs[i], nil
		}
	}
	b.ID = s.id()
	b.CreatedAt = s.now()
	s.beliefs = append(s.beliefs, b)
	return b, nil
}

func (s *Store) Beliefs(ctx context.Context, agentID string, limit int) ([]memory.Belief, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []memory.Belief
	for _, b := range s.beliefs {
		if b.AgentID == agentID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AppendTraitDelta(ctx context.Context, d memory.TraitDelta) (memory.TraitDelta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return memory.TraitDelta{}, s.Err
	}
	d.ID = s.id()
	d.CreatedAt = s.now()
	s.traitLedger = append(s.traitLedger, d)
	return d, nil
}

func (s *Store) TraitHistory(ctx context.Context, agentID, trait string, limit int) ([]memory.TraitDelta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []memory.TraitDelta
	for _, d := range s.traitLedger {
		if d.AgentID == agentID && d.Trait == trait {
			out = append(out, d)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Topics
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) UpsertTopic(ctx context.Context, t memory.Topic) (memory.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return memory.Topic{}, s.Err
	}
	now := s.now()
	for i := range s.topics {
		e := &s.topics[i]
		if e.AgentID == t.AgentID && e.PlayerID == t.PlayerID &&
			e.Category == t.Category && strings.EqualFold(e.Content, t.Content) {
			e.Strength = 1.0
			e.RefCount++
			if t.EmotionalWeight > e.EmotionalWeight {
				e.EmotionalWeight = t.EmotionalWeight
			}
			if t.DecayRate < e.DecayRate {
				e.DecayRate = t.DecayRate
			}
			e.LastReinforced = now
			return *e, nil
		}
	}
	t.ID = s.id()
	t.RefCount = 1
	t.Strength = 1.0
	t.CreatedAt = now
	t.LastReinforced = now
	s.topics = append(s.topics, t)
	return t, nil
}

func (s *Store) TopicsForPlayer(ctx context.Context, agentID, playerID string, minStrength float64, limit int) ([]memory.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []memory.Topic
	for _, t := range s.topics {
		if t.AgentID == agentID && t.PlayerID == playerID && t.Strength >= minStrength {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		return out[i].EmotionalWeight > out[j].EmotionalWeight
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) TopicsByAgent(ctx context.Context, agentID string, minWeight float64, limit int) ([]memory.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []memory.Topic
	for _, t := range s.topics {
		if t.AgentID == agentID && t.EmotionalWeight >= minWeight {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EmotionalWeight != out[j].EmotionalWeight {
			return out[i].EmotionalWeight > out[j].EmotionalWeight
		}
		return out[i].Strength > out[j].Strength
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) TopicByID(ctx context.Context, id int64) (memory.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return memory.Topic{}, s.Err
	}
	for _, t := range s.topics {
		if t.ID == id {
			return t, nil
		}
	}
	return memory.Topic{}, memory.ErrNotFound
}

func (s *Store) ReinforceTopic(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for i := range s.topics {
		if s.topics[i].ID == id {
			s.topics[i].Strength = 1.0
			s.topics[i].RefCount++
			s.topics[i].LastReinforced = s.now()
			return nil
		}
	}
	return memory.ErrNotFound
}

func (s *Store) DecayTopics(ctx context.Context, elapsed time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	days := elapsed.Hours() / 24
	var n int64
	for i := range s.topics {
		t := &s.topics[i]
		if t.Strength <= 0 {
			continue
		}
		t.Strength -= t.DecayRate * days * (1.1 - t.EmotionalWeight)
		if t.Strength < 0 {
			t.Strength = 0
		}
		n++
	}
	return n, nil
}

func (s *Store) DecaySharedTopics(ctx context.Context, elapsed time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	days := elapsed.Hours() / 24
	var n int64
	for i := range s.sharedTopics {
		st := &s.sharedTopics[i]
		if st.Strength <= 0 {
			continue
		}
		st.Strength -= 0.08 * days
		if st.Strength < 0 {
			st.Strength = 0
		}
		n++
	}
	return n, nil
}

func (s *Store) CleanupWeakTopics(ctx context.Context, threshold float64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	var n int64

	kept := s.topics[:0]
	for _, t := range s.topics {
		if t.Strength < threshold {
			n++
			continue
		}
		kept = append(kept, t)
	}
	s.topics = kept

	keptShared := s.sharedTopics[:0]
	for _, st := range s.sharedTopics {
		if st.Strength < threshold {
			n++
			continue
		}
		keptShared = append(keptShared, st)
	}
	s.sharedTopics = keptShared

	return n, nil
}

func (s *Store) ShareTopic(ctx context.Context, sh memory.SharedTopic) (memory.SharedTopic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return memory.SharedTopic{}, s.Err
	}
	for _, e := range s.sharedTopics {
		if e.ToAgent == sh.ToAgent && e.SourceTopicID == sh.SourceTopicID {
			return memory.SharedTopic{}, memory.ErrAlreadyShared
		}
	}
	sh.ID = s.id()
	sh.CreatedAt = s.now()
	s.sharedTopics = append(s.sharedTopics, sh)
	return sh, nil
}

func (s *Store) SharedTopicsFor(ctx context.Context, agentID, playerID string, limit int) ([]memory.SharedTopic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []memory.SharedTopic
	for _, st := range s.sharedTopics {
		if st.ToAgent == agentID && st.PlayerID == playerID {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Social
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) TouchPlayer(ctx context.Context, playerID, playerName string) (memory.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return memory.Player{}, s.Err
	}
	now := s.now()
	p, ok := s.players[playerID]
	if !ok {
		p = memory.Player{ID: playerID, Name: playerName, FirstSeen: now}
	}
	p.LastSeen = now
	p.Interactions++
	s.players[playerID] = p
	return p, nil
}

func (s *Store) Player(ctx context.Context, playerID string) (memory.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return memory.Player{}, s.Err
	}
	p, ok := s.players[playerID]
	if !ok {
		return memory.Player{}, memory.ErrNotFound
	}
	return p, nil
}

func (s *Store) AdjustReputation(ctx context.Context, playerID, agentID string, delta float64) (memory.ReputationEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return memory.ReputationEdge{}, s.Err
	}
	key := playerID + "\x00" + agentID
	edge, ok := s.reputation[key]
	if !ok {
		edge = memory.ReputationEdge{PlayerID: playerID, AgentID: agentID}
	}
	edge.Score = memory.Clamp(edge.Score+delta, -1, 1)
	edge.Interactions++
	edge.LastInteraction = s.now()
	s.reputation[key] = edge

	// Recompute the global mean.
	var sum float64
	var n int
	for _, e := range s.reputation {
		if e.PlayerID == playerID {
			sum += e.Score
			n++
		}
	}
	if p, ok := s.players[playerID]; ok && n > 0 {
		p.GlobalReputation = sum / float64(n)
		s.players[playerID] = p
	}
	return edge, nil
}

func (s *Store) Reputation(ctx context.Context, playerID, agentID string) (memory.ReputationEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return memory.ReputationEdge{}, s.Err
	}
	edge, ok := s.reputation[playerID+"\x00"+agentID]
	if !ok {
		return memory.ReputationEdge{}, memory.ErrNotFound
	}
	return edge, nil
}

func (s *Store) ReputationEdges(ctx context.Context, playerID string) ([]memory.ReputationEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []memory.ReputationEdge
	for _, e := range s.reputation {
		if e.PlayerID == playerID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

func (s *Store) Players(ctx context.Context, limit, offset int) ([]memory.Player, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	all := make([]memory.Player, 0, len(s.players))
	for _, p := range s.players {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].LastSeen.Equal(all[j].LastSeen) {
			return all[i].ID < all[j].ID
		}
		return all[i].LastSeen.After(all[j].LastSeen)
	})
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *Store) LogAction(ctx context.Context, a memory.ActionRecord) (memory.ActionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return memory.ActionRecord{}, s.Err
	}
	a.ID = s.id()
	a.CreatedAt = s.now()
	s.actions = append(s.actions, a)
	return a, nil
}

func (s *Store) RecentActions(ctx context.Context, playerID string, limit int) ([]memory.ActionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []memory.ActionRecord
	for i := len(s.actions) - 1; i >= 0 && len(out) < limit; i-- {
		if s.actions[i].PlayerID == playerID {
			out = append(out, s.actions[i])
		}
	}
	return out, nil
}

func (s *Store) CreateRumor(ctx context.Context, r memory.Rumor) (memory.Rumor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return memory.Rumor{}, s.Err
	}
	r.CreatedAt = s.now()
	s.rumors[r.ID] = r
	s.rumorKnown[r.AuthorAgent+"\x00"+r.ID] = memory.RumorKnowledge{
		AgentID: r.AuthorAgent,
		RumorID: r.ID,
		Belief:  1.0,
		HeardAt: r.CreatedAt,
	}
	return r, nil
}

func (s *Store) SpreadRumor(ctx context.Context, k memory.RumorKnowledge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	key := k.AgentID + "\x00" + k.RumorID
	if _, ok := s.rumorKnown[key]; ok {
		return memory.ErrAlreadyHeard
	}
	k.HeardAt = s.now()
	s.rumorKnown[key] = k

	if r, ok := s.rumors[k.RumorID]; ok {
		r.SpreadCount++
		s.rumors[k.RumorID] = r
	}
	return nil
}

func (s *Store) RumorsKnownBy(ctx context.Context, agentID, aboutPlayer string) ([]memory.Rumor, []memory.RumorKnowledge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, nil, s.Err
	}
	var (
		rumors    []memory.Rumor
		knowledge []memory.RumorKnowledge
	)
	for _, k := range s.rumorKnown {
		if k.AgentID != agentID {
			continue
		}
		r, ok := s.rumors[k.RumorID]
		if !ok || (aboutPlayer != "" && r.AboutPlayer != aboutPlayer) {
			continue
		}
		rumors = append(rumors, r)
		knowledge = append(knowledge, k)
	}
	sort.SliceStable(rumors, func(i, j int) bool {
		return knowledge[i].Belief > knowledge[j].Belief
	})
	sort.SliceStable(knowledge, func(i, j int) bool {
		return knowledge[i].Belief > knowledge[j].Belief
	})
	return rumors, knowledge, nil
}

func (s *Store) UpsertRelation(ctx context.Context, agentA, agentB string, delta float64, sharedExperience bool) (memory.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return memory.Relation{}, s.Err
	}
	a, b := agentA, agentB
	if b < a {
		a, b = b, a
	}
	key := pairKey(agentA, agentB)
	r, ok := s.relations[key]
	if !ok {
		r = memory.Relation{AgentA: a, AgentB: b, Score: 0.5}
	}
	r.Score = memory.Clamp(r.Score+delta, 0, 1)
	if sharedExperience {
		r.SharedExperiences++
	}
	r.UpdatedAt = s.now()
	s.relations[key] = r
	return r, nil
}

func (s *Store) Relation(ctx context.Context, agentA, agentB string) (memory.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return memory.Relation{}, s.Err
	}
	r, ok := s.relations[pairKey(agentA, agentB)]
	if !ok {
		return memory.Relation{}, memory.ErrNotFound
	}
	return r, nil
}

func (s *Store) RelationsOf(ctx context.Context, agentID string) ([]memory.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []memory.Relation
	for _, r := range s.relations {
		if r.AgentA == agentID || r.AgentB == agentID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Civ + batch + lifecycle
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) SaveQuest(ctx context.Context, q memory.Quest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.quests[q.ID] = q
	return nil
}

func (s *Store) Quest(ctx context.Context, questID string) (memory.Quest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return memory.Quest{}, s.Err
	}
	q, ok := s.quests[questID]
	if !ok {
		return memory.Quest{}, memory.ErrNotFound
	}
	return q, nil
}

func (s *Store) QuestsByAgent(ctx context.Context, agentID string, status memory.QuestStatus) ([]memory.Quest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []memory.Quest
	for _, q := range s.quests {
		if q.AgentID == agentID && (status == "" || q.Status == status) {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) QuestsByPlayer(ctx context.Context, playerID string, status memory.QuestStatus) ([]memory.Quest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []memory.Quest
	for _, q := range s.quests {
		if q.PlayerID == playerID && (status == "" || q.Status == status) {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Quests(ctx context.Context, limit, offset int) ([]memory.Quest, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	all := make([]memory.Quest, 0, len(s.quests))
	for _, q := range s.quests {
		all = append(all, q)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *Store) ExpireQuests(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	var n int64
	for id, q := range s.quests {
		if q.Status == memory.QuestAvailable && q.ExpiresAt.Before(now) {
			q.Status = memory.QuestExpired
			s.quests[id] = q
			n++
		}
	}
	return n, nil
}

func (s *Store) FlushBatch(ctx context.Context, writes []memory.BatchWrite) error {
	s.mu.Lock()
	if s.Err != nil {
		s.mu.Unlock()
		return s.Err
	}
	cp := make([]memory.BatchWrite, len(writes))
	copy(cp, writes)
	s.FlushedBatches = append(s.FlushedBatches, cp)
	s.mu.Unlock()

	for _, w := range writes {
		var err error
		switch {
		case w.Memory != nil:
			_, err = s.AppendMemory(ctx, *w.Memory)
		case w.TraitDelta != nil:
			_, err = s.AppendTraitDelta(ctx, *w.TraitDelta)
		case w.Action != nil:
			_, err = s.LogAction(ctx, *w.Action)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) AgentAggregates(ctx context.Context, agentIDs []string) (map[string]memory.AgentAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := make(map[string]memory.AgentAggregate, len(agentIDs))
	for _, id := range agentIDs {
		agg := memory.AgentAggregate{AgentID: id}
		for _, m := range s.memories {
			if m.AgentID == id {
				agg.MemoryCount++
			}
		}
		var strengthSum float64
		for _, t := range s.topics {
			if t.AgentID == id {
				agg.TopicCount++
				strengthSum += t.Strength
			}
		}
		if agg.TopicCount > 0 {
			agg.AvgTopicStrength = strengthSum / float64(agg.TopicCount)
		}
		for _, r := range s.relations {
			if r.AgentA == id || r.AgentB == id {
				agg.RelationCount++
			}
		}
		out[id] = agg
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	return nil
}

// Analyze is a no-op; the mock has no query planner. Calls are counted so
// tests can assert optimize passes reached the store.
func (s *Store) Analyze(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.AnalyzeCalls++
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
