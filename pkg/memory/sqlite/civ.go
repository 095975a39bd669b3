package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

// SaveQuest implements memory.CivStore.
func (s *Store) SaveQuest(ctx context.Context, q memory.Quest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quests
		    (quest_id, agent_id, player_id, quest_type, title, details,
		     difficulty, reward_gold, reward_reputation, reward_item,
		     status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (quest_id)
		DO UPDATE SET
		    player_id = excluded.player_id,
		    status    = excluded.status`,
		q.ID, q.AgentID, q.PlayerID, q.Type, q.Title, q.Details,
		q.Difficulty, q.RewardGold, q.RewardRep, q.RewardItem,
		q.Status, q.CreatedAt, q.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save quest %s: %w", q.ID, err)
	}
	return nil
}

// Quest implements memory.CivStore.
func (s *Store) Quest(ctx context.Context, questID string) (memory.Quest, error) {
	var q memory.Quest
	err := s.db.GetContext(ctx, &q, `SELECT * FROM quests WHERE quest_id = ?`, questID)
	if err != nil {
		return memory.Quest{}, fmt.Errorf("quest %s: %w", questID, notFound(err))
	}
	return q, nil
}

// QuestsByAgent implements memory.CivStore.
func (s *Store) QuestsByAgent(ctx context.Context, agentID string, status memory.QuestStatus) ([]memory.Quest, error) {
	query := `SELECT * FROM quests WHERE agent_id = ?`
	args := []any{agentID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	var out []memory.Quest
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("quests by agent: %w", err)
	}
	return out, nil
}

// QuestsByPlayer implements memory.CivStore.
func (s *Store) QuestsByPlayer(ctx context.Context, playerID string, status memory.QuestStatus) ([]memory.Quest, error) {
	query := `SELECT * FROM quests WHERE player_id = ?`
	args := []any{playerID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	var out []memory.Quest
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("quests by player: %w", err)
	}
	return out, nil
}

// Quests implements memory.CivStore.
func (s *Store) Quests(ctx context.Context, limit, offset int) ([]memory.Quest, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM quests`); err != nil {
		return nil, 0, fmt.Errorf("quests: count: %w", err)
	}

	var out []memory.Quest
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM quests ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("quests: %w", err)
	}
	return out, total, nil
}

// ExpireQuests implements memory.CivStore. Only quests still on the board
// expire; accepted quests fail through the normal state machine instead.
func (s *Store) ExpireQuests(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE quests SET status = ?
		WHERE status = ? AND expires_at < ?`,
		memory.QuestExpired, memory.QuestAvailable, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("expire quests: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire quests: rows affected: %w", err)
	}
	return n, nil
}
