package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

// sharedTopicDailyDecay is the flat per-day strength loss for second-hand
// topics. Hearsay fades faster than lived conversation.
const sharedTopicDailyDecay = 0.08

// UpsertTopic implements memory.TopicStore. A collision on the natural key
// (agent, player, category, content) reinforces the existing row instead of
// inserting: strength back to 1, ref_count incremented, last_reinforced
// stamped, and the emotional weight kept at the higher of old and new.
func (s *Store) UpsertTopic(ctx context.Context, t memory.Topic) (memory.Topic, error) {
	if !t.Category.IsValid() {
		return memory.Topic{}, fmt.Errorf("upsert topic: invalid category %q", t.Category)
	}
	now := s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO topics
		    (player_id, agent_id, category, content, emotional_weight,
		     keywords, ref_count, memory_strength, decay_rate,
		     created_at, last_reinforced)
		VALUES (?, ?, ?, ?, ?, ?, 1, 1.0, ?, ?, ?)
		ON CONFLICT (agent_id, player_id, category, content)
		DO UPDATE SET
		    memory_strength  = 1.0,
		    ref_count        = ref_count + 1,
		    emotional_weight = MAX(emotional_weight, excluded.emotional_weight),
		    decay_rate       = MIN(decay_rate, excluded.decay_rate),
		    last_reinforced  = excluded.last_reinforced`,
		t.PlayerID, t.AgentID, t.Category, t.Content, t.EmotionalWeight,
		t.Keywords, t.DecayRate, now, now)
	if err != nil {
		return memory.Topic{}, fmt.Errorf("upsert topic: %w", err)
	}

	var stored memory.Topic
	err = s.db.GetContext(ctx, &stored, `
		SELECT * FROM topics
		WHERE agent_id = ? AND player_id = ? AND category = ? AND content = ?`,
		t.AgentID, t.PlayerID, t.Category, t.Content)
	if err != nil {
		return memory.Topic{}, fmt.Errorf("upsert topic: reload: %w", err)
	}
	return stored, nil
}

// TopicsForPlayer implements memory.TopicStore.
func (s *Store) TopicsForPlayer(ctx context.Context, agentID, playerID string, minStrength float64, limit int) ([]memory.Topic, error) {
	var out []memory.Topic
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM topics
		WHERE agent_id = ? AND player_id = ? AND memory_strength >= ?
		ORDER BY memory_strength DESC, emotional_weight DESC
		LIMIT ?`,
		agentID, playerID, minStrength, limit)
	if err != nil {
		return nil, fmt.Errorf("topics for player: %w", err)
	}
	return out, nil
}

// TopicsByAgent implements memory.TopicStore.
func (s *Store) TopicsByAgent(ctx context.Context, agentID string, minWeight float64, limit int) ([]memory.Topic, error) {
	var out []memory.Topic
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM topics
		WHERE agent_id = ? AND emotional_weight >= ?
		ORDER BY emotional_weight DESC, memory_strength DESC
		LIMIT ?`,
		agentID, minWeight, limit)
	if err != nil {
		return nil, fmt.Errorf("topics by agent: %w", err)
	}
	return out, nil
}

// TopicByID implements memory.TopicStore.
func (s *Store) TopicByID(ctx context.Context, id int64) (memory.Topic, error) {
	var t memory.Topic
	err := s.db.GetContext(ctx, &t, `SELECT * FROM topics WHERE id = ?`, id)
	if err != nil {
		return memory.Topic{}, fmt.Errorf("topic by id %d: %w", id, notFound(err))
	}
	return t, nil
}

// ReinforceTopic implements memory.TopicStore.
func (s *Store) ReinforceTopic(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE topics
		SET memory_strength = 1.0,
		    ref_count       = ref_count + 1,
		    last_reinforced = ?
		WHERE id = ?`,
		s.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("reinforce topic %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reinforce topic %d: %w", id, memory.ErrNotFound)
	}
	return nil
}

// DecayTopics implements memory.TopicStore. Decay runs as one UPDATE so two
// calls with elapsed t1 and t2 produce the same strengths as a single call
// with t1+t2; the per-row formula is linear in elapsed time.
func (s *Store) DecayTopics(ctx context.Context, elapsed time.Duration) (int64, error) {
	days := elapsed.Hours() / 24

	res, err := s.db.ExecContext(ctx, `
		UPDATE topics
		SET memory_strength = MAX(0, memory_strength - decay_rate * ? * (1.1 - emotional_weight))
		WHERE memory_strength > 0`,
		days)
	if err != nil {
		return 0, fmt.Errorf("decay topics: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("decay topics: rows affected: %w", err)
	}
	return n, nil
}

// DecaySharedTopics implements memory.TopicStore.
func (s *Store) DecaySharedTopics(ctx context.Context, elapsed time.Duration) (int64, error) {
	days := elapsed.Hours() / 24

	res, err := s.db.ExecContext(ctx, `
		UPDATE shared_topics
		SET strength = MAX(0, strength - ? * ?)
		WHERE strength > 0`,
		sharedTopicDailyDecay, days)
	if err != nil {
		return 0, fmt.Errorf("decay shared topics: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("decay shared topics: rows affected: %w", err)
	}
	return n, nil
}

// CleanupWeakTopics implements memory.TopicStore.
func (s *Store) CleanupWeakTopics(ctx context.Context, threshold float64) (int64, error) {
	var total int64
	for _, table := range []string{"topics", "shared_topics"} {
		col := "memory_strength"
		if table == "shared_topics" {
			col = "strength"
		}
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE %s < ?`, table, col), threshold)
		if err != nil {
			return total, fmt.Errorf("cleanup weak topics (%s): %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("cleanup weak topics (%s): rows affected: %w", table, err)
		}
		total += n
	}
	return total, nil
}

// ShareTopic implements memory.TopicStore. The (to_agent, source_topic_id)
// unique index makes shares idempotent; a repeat returns ErrAlreadyShared.
func (s *Store) ShareTopic(ctx context.Context, sh memory.SharedTopic) (memory.SharedTopic, error) {
	sh.CreatedAt = s.now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO shared_topics
		    (from_agent, to_agent, source_topic_id, player_id, content,
		     weight, trust_factor, strength, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (to_agent, source_topic_id) DO NOTHING`,
		sh.FromAgent, sh.ToAgent, sh.SourceTopicID, sh.PlayerID, sh.Content,
		sh.Weight, sh.TrustFactor, sh.Strength, sh.CreatedAt)
	if err != nil {
		return memory.SharedTopic{}, fmt.Errorf("share topic: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return memory.SharedTopic{}, memory.ErrAlreadyShared
	}
	sh.ID, err = res.LastInsertId()
	if err != nil {
		return memory.SharedTopic{}, fmt.Errorf("share topic: last insert id: %w", err)
	}
	return sh, nil
}

// SharedTopicsFor implements memory.TopicStore.
func (s *Store) SharedTopicsFor(ctx context.Context, agentID, playerID string, limit int) ([]memory.SharedTopic, error) {
	var out []memory.SharedTopic
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM shared_topics
		WHERE to_agent = ? AND player_id = ?
		ORDER BY strength DESC, weight DESC
		LIMIT ?`,
		agentID, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("shared topics for: %w", err)
	}
	return out, nil
}
