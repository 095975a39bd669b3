package sqlite

import (
	"context"
	"fmt"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

// TouchPlayer implements memory.SocialStore. The name is written only on
// first contact; later touches never overwrite it, so a placeholder name
// from an anonymous session cannot clobber the real one.
func (s *Store) TouchPlayer(ctx context.Context, playerID, playerName string) (memory.Player, error) {
	now := s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (player_id, player_name, first_seen, last_seen, total_interactions)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (player_id)
		DO UPDATE SET
		    last_seen          = excluded.last_seen,
		    total_interactions = total_interactions + 1`,
		playerID, playerName, now, now)
	if err != nil {
		return memory.Player{}, fmt.Errorf("touch player: %w", err)
	}
	return s.Player(ctx, playerID)
}

// Player implements memory.SocialStore.
func (s *Store) Player(ctx context.Context, playerID string) (memory.Player, error) {
	var p memory.Player
	err := s.db.GetContext(ctx, &p, `SELECT * FROM players WHERE player_id = ?`, playerID)
	if err != nil {
		return memory.Player{}, fmt.Errorf("player %s: %w", playerID, notFound(err))
	}
	return p, nil
}

// AdjustReputation implements memory.SocialStore. The edge write and the
// global mean recomputation happen in one transaction so the player's global
// reputation never drifts from its edges.
func (s *Store) AdjustReputation(ctx context.Context, playerID, agentID string, delta float64) (memory.ReputationEdge, error) {
	now := s.now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return memory.ReputationEdge{}, fmt.Errorf("adjust reputation: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reputation (player_id, agent_id, reputation, interaction_count, last_interaction)
		VALUES (?, ?, MAX(-1.0, MIN(1.0, ?)), 1, ?)
		ON CONFLICT (player_id, agent_id)
		DO UPDATE SET
		    reputation        = MAX(-1.0, MIN(1.0, reputation + ?)),
		    interaction_count = interaction_count + 1,
		    last_interaction  = excluded.last_interaction`,
		playerID, agentID, delta, now, delta)
	if err != nil {
		return memory.ReputationEdge{}, fmt.Errorf("adjust reputation: upsert edge: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE players
		SET global_reputation = (SELECT AVG(reputation) FROM reputation WHERE player_id = ?)
		WHERE player_id = ?`,
		playerID, playerID)
	if err != nil {
		return memory.ReputationEdge{}, fmt.Errorf("adjust reputation: global mean: %w", err)
	}

	var edge memory.ReputationEdge
	err = tx.GetContext(ctx, &edge, `
		SELECT * FROM reputation WHERE player_id = ? AND agent_id = ?`,
		playerID, agentID)
	if err != nil {
		return memory.ReputationEdge{}, fmt.Errorf("adjust reputation: reload: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return memory.ReputationEdge{}, fmt.Errorf("adjust reputation: commit: %w", err)
	}
	return edge, nil
}

// Reputation implements memory.SocialStore.
func (s *Store) Reputation(ctx context.Context, playerID, agentID string) (memory.ReputationEdge, error) {
	var edge memory.ReputationEdge
	err := s.db.GetContext(ctx, &edge, `
		SELECT * FROM reputation WHERE player_id = ? AND agent_id = ?`,
		playerID, agentID)
	if err != nil {
		return memory.ReputationEdge{}, fmt.Errorf("reputation %s/%s: %w", playerID, agentID, notFound(err))
	}
	return edge, nil
}

// ReputationEdges implements memory.SocialStore.
func (s *Store) ReputationEdges(ctx context.Context, playerID string) ([]memory.ReputationEdge, error) {
	var out []memory.ReputationEdge
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM reputation WHERE player_id = ? ORDER BY agent_id`,
		playerID)
	if err != nil {
		return nil, fmt.Errorf("reputation edges: %w", err)
	}
	return out, nil
}

// Players implements memory.SocialStore.
func (s *Store) Players(ctx context.Context, limit, offset int) ([]memory.Player, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM players`); err != nil {
		return nil, 0, fmt.Errorf("players: count: %w", err)
	}

	var out []memory.Player
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM players ORDER BY last_seen DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("players: %w", err)
	}
	return out, total, nil
}

// LogAction implements memory.SocialStore.
func (s *Store) LogAction(ctx context.Context, a memory.ActionRecord) (memory.ActionRecord, error) {
	a.CreatedAt = s.now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO action_log (player_id, agent_id, action, response, reputation_delta, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.PlayerID, a.AgentID, a.Action, a.Response, a.RepDelta, a.CreatedAt)
	if err != nil {
		return memory.ActionRecord{}, fmt.Errorf("log action: %w", err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return memory.ActionRecord{}, fmt.Errorf("log action: last insert id: %w", err)
	}
	return a, nil
}

// RecentActions implements memory.SocialStore.
func (s *Store) RecentActions(ctx context.Context, playerID string, limit int) ([]memory.ActionRecord, error) {
	var out []memory.ActionRecord
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM action_log
		WHERE player_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent actions: %w", err)
	}
	return out, nil
}

// CreateRumor implements memory.SocialStore. The author is seeded into
// rumor_knowledge at full belief so it never re-hears its own rumor.
func (s *Store) CreateRumor(ctx context.Context, r memory.Rumor) (memory.Rumor, error) {
	r.CreatedAt = s.now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return memory.Rumor{}, fmt.Errorf("create rumor: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rumors (rumor_id, about_player, content, truthfulness, spread_count, created_by, created_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		r.ID, r.AboutPlayer, r.Content, r.Truthfulness, r.AuthorAgent, r.CreatedAt)
	if err != nil {
		return memory.Rumor{}, fmt.Errorf("create rumor: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rumor_knowledge (agent_id, rumor_id, belief_level, heard_from, heard_at)
		VALUES (?, ?, 1.0, '', ?)`,
		r.AuthorAgent, r.ID, r.CreatedAt)
	if err != nil {
		return memory.Rumor{}, fmt.Errorf("create rumor: seed author knowledge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return memory.Rumor{}, fmt.Errorf("create rumor: commit: %w", err)
	}
	return r, nil
}

// SpreadRumor implements memory.SocialStore.
func (s *Store) SpreadRumor(ctx context.Context, k memory.RumorKnowledge) error {
	k.HeardAt = s.now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("spread rumor: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO rumor_knowledge (agent_id, rumor_id, belief_level, heard_from, heard_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (agent_id, rumor_id) DO NOTHING`,
		k.AgentID, k.RumorID, k.Belief, k.HeardFrom, k.HeardAt)
	if err != nil {
		return fmt.Errorf("spread rumor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return memory.ErrAlreadyHeard
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE rumors SET spread_count = spread_count + 1 WHERE rumor_id = ?`,
		k.RumorID)
	if err != nil {
		return fmt.Errorf("spread rumor: bump count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("spread rumor: commit: %w", err)
	}
	return nil
}

// RumorsKnownBy implements memory.SocialStore. An empty aboutPlayer matches
// every player.
func (s *Store) RumorsKnownBy(ctx context.Context, agentID, aboutPlayer string) ([]memory.Rumor, []memory.RumorKnowledge, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT r.rumor_id, r.about_player, r.content, r.truthfulness,
		       r.spread_count, r.created_by, r.created_at,
		       k.agent_id, k.belief_level, k.heard_from, k.heard_at
		FROM rumors r
		JOIN rumor_knowledge k ON k.rumor_id = r.rumor_id
		WHERE k.agent_id = ? AND (? = '' OR r.about_player = ?)
		ORDER BY k.belief_level DESC, r.created_at DESC`,
		agentID, aboutPlayer, aboutPlayer)
	if err != nil {
		return nil, nil, fmt.Errorf("rumors known by: %w", err)
	}
	defer rows.Close()

	var (
		rumors    []memory.Rumor
		knowledge []memory.RumorKnowledge
	)
	for rows.Next() {
		var (
			r memory.Rumor
			k memory.RumorKnowledge
		)
		err := rows.Scan(
			&r.ID, &r.AboutPlayer, &r.Content, &r.Truthfulness,
			&r.SpreadCount, &r.AuthorAgent, &r.CreatedAt,
			&k.AgentID, &k.Belief, &k.HeardFrom, &k.HeardAt,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("rumors known by: scan: %w", err)
		}
		k.RumorID = r.ID
		rumors = append(rumors, r)
		knowledge = append(knowledge, k)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rumors known by: rows: %w", err)
	}
	return rumors, knowledge, nil
}

// UpsertRelation implements memory.SocialStore. The pair is stored with the
// lexically smaller ID in agent_a so lookups in either order hit one row.
func (s *Store) UpsertRelation(ctx context.Context, agentA, agentB string, delta float64, sharedExperience bool) (memory.Relation, error) {
	a, b := orderPair(agentA, agentB)
	now := s.now().UTC()

	exp := 0
	if sharedExperience {
		exp = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relations (agent_a, agent_b, score, shared_experiences, updated_at)
		VALUES (?, ?, MAX(0.0, MIN(1.0, 0.5 + ?)), ?, ?)
		ON CONFLICT (agent_a, agent_b)
		DO UPDATE SET
		    score              = MAX(0.0, MIN(1.0, score + ?)),
		    shared_experiences = shared_experiences + ?,
		    updated_at         = excluded.updated_at`,
		a, b, delta, exp, now, delta, exp)
	if err != nil {
		return memory.Relation{}, fmt.Errorf("upsert relation: %w", err)
	}
	return s.Relation(ctx, a, b)
}

// Relation implements memory.SocialStore.
func (s *Store) Relation(ctx context.Context, agentA, agentB string) (memory.Relation, error) {
	a, b := orderPair(agentA, agentB)

	var r memory.Relation
	err := s.db.GetContext(ctx, &r, `
		SELECT * FROM relations WHERE agent_a = ? AND agent_b = ?`, a, b)
	if err != nil {
		return memory.Relation{}, fmt.Errorf("relation %s/%s: %w", a, b, notFound(err))
	}
	return r, nil
}

// RelationsOf implements memory.SocialStore.
func (s *Store) RelationsOf(ctx context.Context, agentID string) ([]memory.Relation, error) {
	var out []memory.Relation
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM relations
		WHERE agent_a = ? OR agent_b = ?
		ORDER BY score DESC`,
		agentID, agentID)
	if err != nil {
		return nil, fmt.Errorf("relations of: %w", err)
	}
	return out, nil
}

// orderPair normalises an agent pair so (a, b) and (b, a) address the same row.
func orderPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
