package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ─────────────────────────────────────────────────────────────────────────────
// DDL — agent vault (memories, beliefs, trait ledger)
// ─────────────────────────────────────────────────────────────────────────────

const ddlVault = `
CREATE TABLE IF NOT EXISTS memories (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    agent_id    TEXT    NOT NULL,
    kind        TEXT    NOT NULL,
    content     TEXT    NOT NULL,
    strength    REAL    NOT NULL DEFAULT 1.0,
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_memories_agent
    ON memories (agent_id, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_memories_agent_kind
    ON memories (agent_id, kind, created_at DESC);

CREATE TABLE IF NOT EXISTS beliefs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    agent_id    TEXT    NOT NULL,
    content     TEXT    NOT NULL,
    strength    REAL    NOT NULL DEFAULT 0.5,
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (agent_id, content)
);

CREATE INDEX IF NOT EXISTS idx_beliefs_agent
    ON beliefs (agent_id, strength DESC);

CREATE TABLE IF NOT EXISTS trait_ledger (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    agent_id    TEXT    NOT NULL,
    trait       TEXT    NOT NULL,
    delta       REAL    NOT NULL,
    reason      TEXT    NOT NULL DEFAULT '',
    result      REAL    NOT NULL,
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_trait_ledger_agent_trait
    ON trait_ledger (agent_id, trait, created_at);
`

// ─────────────────────────────────────────────────────────────────────────────
// DDL — topic memory (direct topics + inter-agent shares)
// ─────────────────────────────────────────────────────────────────────────────

const ddlTopics = `
CREATE TABLE IF NOT EXISTS topics (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    player_id        TEXT    NOT NULL,
    agent_id         TEXT    NOT NULL,
    category         TEXT    NOT NULL,
    content          TEXT    NOT NULL,
    emotional_weight REAL    NOT NULL,
    keywords         TEXT    NOT NULL DEFAULT '',
    ref_count        INTEGER NOT NULL DEFAULT 1,
    memory_strength  REAL    NOT NULL DEFAULT 1.0,
    decay_rate       REAL    NOT NULL,
    created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_reinforced  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (agent_id, player_id, category, content)
);

CREATE INDEX IF NOT EXISTS idx_topics_agent_player
    ON topics (agent_id, player_id, memory_strength DESC);

CREATE TABLE IF NOT EXISTS shared_topics (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    from_agent      TEXT    NOT NULL,
    to_agent        TEXT    NOT NULL,
    source_topic_id INTEGER NOT NULL,
    player_id       TEXT    NOT NULL,
    content         TEXT    NOT NULL,
    weight          REAL    NOT NULL,
    trust_factor    REAL    NOT NULL,
    strength        REAL    NOT NULL DEFAULT 0.8,
    created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (to_agent, source_topic_id)
);

CREATE INDEX IF NOT EXISTS idx_shared_topics_to_player
    ON shared_topics (to_agent, player_id, strength DESC);
`

// ─────────────────────────────────────────────────────────────────────────────
// DDL — social graph (players, reputation, action log, rumors, relations)
// ─────────────────────────────────────────────────────────────────────────────

const ddlSocial = `
CREATE TABLE IF NOT EXISTS players (
    player_id          TEXT PRIMARY KEY,
    player_name        TEXT NOT NULL,
    first_seen         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_seen          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    total_interactions INTEGER NOT NULL DEFAULT 0,
    global_reputation  REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS reputation (
    player_id         TEXT NOT NULL,
    agent_id          TEXT NOT NULL,
    reputation        REAL NOT NULL DEFAULT 0,
    interaction_count INTEGER NOT NULL DEFAULT 0,
    last_interaction  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (player_id, agent_id)
);

CREATE INDEX IF NOT EXISTS idx_reputation_player
    ON reputation (player_id);

CREATE TABLE IF NOT EXISTS action_log (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    player_id        TEXT NOT NULL,
    agent_id         TEXT NOT NULL,
    action           TEXT NOT NULL,
    response         TEXT NOT NULL DEFAULT '',
    reputation_delta REAL NOT NULL DEFAULT 0,
    created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_action_log_player
    ON action_log (player_id, created_at DESC);

CREATE TABLE IF NOT EXISTS rumors (
    rumor_id     TEXT PRIMARY KEY,
    about_player TEXT NOT NULL,
    content      TEXT NOT NULL,
    truthfulness REAL NOT NULL,
    spread_count INTEGER NOT NULL DEFAULT 0,
    created_by   TEXT NOT NULL,
    created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_rumors_about
    ON rumors (about_player);

CREATE TABLE IF NOT EXISTS rumor_knowledge (
    agent_id     TEXT NOT NULL,
    rumor_id     TEXT NOT NULL,
    belief_level REAL NOT NULL,
    heard_from   TEXT NOT NULL DEFAULT '',
    heard_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (agent_id, rumor_id)
);

CREATE TABLE IF NOT EXISTS relations (
    agent_a            TEXT NOT NULL,
    agent_b            TEXT NOT NULL,
    score              REAL NOT NULL DEFAULT 0.5,
    shared_experiences INTEGER NOT NULL DEFAULT 0,
    updated_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (agent_a, agent_b)
);

CREATE INDEX IF NOT EXISTS idx_relations_b
    ON relations (agent_b);
`

// ─────────────────────────────────────────────────────────────────────────────
// DDL — persisted civilisation state
// ─────────────────────────────────────────────────────────────────────────────

const ddlCiv = `
CREATE TABLE IF NOT EXISTS quests (
    quest_id          TEXT PRIMARY KEY,
    agent_id          TEXT NOT NULL,
    player_id         TEXT NOT NULL DEFAULT '',
    quest_type        TEXT NOT NULL,
    title             TEXT NOT NULL,
    details           TEXT NOT NULL DEFAULT '',
    difficulty        TEXT NOT NULL,
    reward_gold       INTEGER NOT NULL,
    reward_reputation REAL NOT NULL,
    reward_item       TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL,
    created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    expires_at        TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quests_agent_status
    ON quests (agent_id, status, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_quests_player
    ON quests (player_id, status, created_at DESC);
`

// Migrate creates every table and index the store needs. All statements are
// idempotent; running Migrate against an existing database is a no-op.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, ddl := range []struct {
		name string
		sql  string
	}{
		{"vault", ddlVault},
		{"topics", ddlTopics},
		{"social", ddlSocial},
		{"civ", ddlCiv},
	} {
		if _, err := db.ExecContext(ctx, ddl.sql); err != nil {
			return fmt.Errorf("migrate %s schema: %w", ddl.name, err)
		}
	}
	return nil
}
