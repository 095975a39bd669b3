package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

// FlushBatch implements memory.BatchOps. All queued writes land in one
// transaction; any failure rolls the whole batch back so the caller can
// requeue it intact.
func (s *Store) FlushBatch(ctx context.Context, writes []memory.BatchWrite) error {
	if len(writes) == 0 {
		return nil
	}
	now := s.now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("flush batch: begin: %w", err)
	}
	defer tx.Rollback()

	for i, w := range writes {
		switch {
		case w.Memory != nil:
			m := *w.Memory
			if m.Strength == 0 {
				m.Strength = 1.0
			}
			if m.CreatedAt.IsZero() {
				m.CreatedAt = now
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO memories (agent_id, kind, content, strength, created_at)
				VALUES (?, ?, ?, ?, ?)`,
				m.AgentID, m.Kind, m.Content, m.Strength, m.CreatedAt)

		case w.TraitDelta != nil:
			d := *w.TraitDelta
			if d.CreatedAt.IsZero() {
				d.CreatedAt = now
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO trait_ledger (agent_id, trait, delta, reason, result, created_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				d.AgentID, d.Trait, d.Delta, d.Reason, d.Result, d.CreatedAt)

		case w.Action != nil:
			a := *w.Action
			if a.CreatedAt.IsZero() {
				a.CreatedAt = now
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO action_log (player_id, agent_id, action, response, reputation_delta, created_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				a.PlayerID, a.AgentID, a.Action, a.Response, a.RepDelta, a.CreatedAt)

		default:
			return fmt.Errorf("flush batch: write %d has no payload", i)
		}
		if err != nil {
			return fmt.Errorf("flush batch: write %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("flush batch: commit: %w", err)
	}
	return nil
}

// AgentAggregates implements memory.BatchOps. Three IN-list group-bys cover
// any number of agents in a constant number of round trips.
func (s *Store) AgentAggregates(ctx context.Context, agentIDs []string) (map[string]memory.AgentAggregate, error) {
	out := make(map[string]memory.AgentAggregate, len(agentIDs))
	if len(agentIDs) == 0 {
		return out, nil
	}
	for _, id := range agentIDs {
		out[id] = memory.AgentAggregate{AgentID: id}
	}

	query, args, err := sqlx.In(`
		SELECT agent_id, COUNT(*) AS n
		FROM memories
		WHERE agent_id IN (?)
		GROUP BY agent_id`, agentIDs)
	if err != nil {
		return nil, fmt.Errorf("agent aggregates: memories: %w", err)
	}
	var memRows []struct {
		AgentID string `db:"agent_id"`
		N       int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &memRows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("agent aggregates: memories: %w", err)
	}
	for _, r := range memRows {
		agg := out[r.AgentID]
		agg.MemoryCount = r.N
		out[r.AgentID] = agg
	}

	query, args, err = sqlx.In(`
		SELECT agent_id, COUNT(*) AS n, AVG(memory_strength) AS avg_strength
		FROM topics
		WHERE agent_id IN (?)
		GROUP BY agent_id`, agentIDs)
	if err != nil {
		return nil, fmt.Errorf("agent aggregates: topics: %w", err)
	}
	var topicRows []struct {
		AgentID     string  `db:"agent_id"`
		N           int     `db:"n"`
		AvgStrength float64 `db:"avg_strength"`
	}
	if err := s.db.SelectContext(ctx, &topicRows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("agent aggregates: topics: %w", err)
	}
	for _, r := range topicRows {
		agg := out[r.AgentID]
		agg.TopicCount = r.N
		agg.AvgTopicStrength = r.AvgStrength
		out[r.AgentID] = agg
	}

	query, args, err = sqlx.In(`
		SELECT agent_id, COUNT(*) AS n FROM (
			SELECT agent_a AS agent_id FROM relations WHERE agent_a IN (?)
			UNION ALL
			SELECT agent_b AS agent_id FROM relations WHERE agent_b IN (?)
		)
		GROUP BY agent_id`, agentIDs, agentIDs)
	if err != nil {
		return nil, fmt.Errorf("agent aggregates: relations: %w", err)
	}
	var relRows []struct {
		AgentID string `db:"agent_id"`
		N       int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &relRows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("agent aggregates: relations: %w", err)
	}
	for _, r := range relRows {
		agg := out[r.AgentID]
		agg.RelationCount = r.N
		out[r.AgentID] = agg
	}

	return out, nil
}
