package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

// AppendMemory implements memory.Vault.
func (s *Store) AppendMemory(ctx context.Context, m memory.Memory) (memory.Memory, error) {
	if !m.Kind.IsValid() {
		return memory.Memory{}, fmt.Errorf("append memory: invalid kind %q", m.Kind)
	}
	if m.Strength == 0 {
		m.Strength = 1.0
	}
	m.CreatedAt = s.now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (agent_id, kind, content, strength, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.AgentID, m.Kind, m.Content, m.Strength, m.CreatedAt)
	if err != nil {
		return memory.Memory{}, fmt.Errorf("append memory: %w", err)
	}
	m.ID, err = res.LastInsertId()
	if err != nil {
		return memory.Memory{}, fmt.Errorf("append memory: last insert id: %w", err)
	}
	return m, nil
}

// RecentMemories implements memory.Vault.
func (s *Store) RecentMemories(ctx context.Context, agentID string, limit int) ([]memory.Memory, error) {
	var out []memory.Memory
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM memories
		WHERE agent_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent memories: %w", err)
	}
	return out, nil
}

// MemoriesByKind implements memory.Vault.
func (s *Store) MemoriesByKind(ctx context.Context, agentID string, kind memory.Kind, limit int) ([]memory.Memory, error) {
	var out []memory.Memory
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM memories
		WHERE agent_id = ? AND kind = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		agentID, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("memories by kind: %w", err)
	}
	return out, nil
}

// UpsertBelief implements memory.Vault. Identical content reinforces the
// existing belief to the higher of the two strengths.
func (s *Store) UpsertBelief(ctx context.Context, b memory.Belief) (memory.Belief, error) {
	if b.Strength == 0 {
		b.Strength = 0.5
	}
	b.CreatedAt = s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO beliefs (agent_id, content, strength, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (agent_id, content)
		DO UPDATE SET strength = MAX(strength, excluded.strength)`,
		b.AgentID, b.Content, b.Strength, b.CreatedAt)
	if err != nil {
		return memory.Belief{}, fmt.Errorf("upsert belief: %w", err)
	}

	var stored memory.Belief
	err = s.db.GetContext(ctx, &stored, `
		SELECT * FROM beliefs WHERE agent_id = ? AND content = ?`,
		b.AgentID, b.Content)
	if err != nil {
		return memory.Belief{}, fmt.Errorf("upsert belief: reload: %w", err)
	}
	return stored, nil
}

// Beliefs implements memory.Vault.
func (s *Store) Beliefs(ctx context.Context, agentID string, limit int) ([]memory.Belief, error) {
	var out []memory.Belief
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM beliefs
		WHERE agent_id = ?
		ORDER BY strength DESC, id
		LIMIT ?`,
		agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("beliefs: %w", err)
	}
	return out, nil
}

// AppendTraitDelta implements memory.Vault.
func (s *Store) AppendTraitDelta(ctx context.Context, d memory.TraitDelta) (memory.TraitDelta, error) {
	d.CreatedAt = s.now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trait_ledger (agent_id, trait, delta, reason, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.AgentID, d.Trait, d.Delta, d.Reason, d.Result, d.CreatedAt)
	if err != nil {
		return memory.TraitDelta{}, fmt.Errorf("append trait delta: %w", err)
	}
	d.ID, err = res.LastInsertId()
	if err != nil {
		return memory.TraitDelta{}, fmt.Errorf("append trait delta: last insert id: %w", err)
	}
	return d, nil
}

// TraitHistory implements memory.Vault.
func (s *Store) TraitHistory(ctx context.Context, agentID, trait string, limit int) ([]memory.TraitDelta, error) {
	var out []memory.TraitDelta
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM trait_ledger
		WHERE agent_id = ? AND trait = ?
		ORDER BY created_at, id
		LIMIT ?`,
		agentID, trait, limit)
	if err != nil {
		return nil, fmt.Errorf("trait history: %w", err)
	}
	return out, nil
}

// notFound maps sql.ErrNoRows onto the package sentinel.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return memory.ErrNotFound
	}
	return err
}
