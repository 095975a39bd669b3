// Package sqlite provides the SQLite-backed implementation of the runtime's
// persistence contracts. The driver is modernc.org/sqlite (pure Go, no CGO),
// accessed through sqlx.
//
// A single file serves the whole population. The DSN enables WAL journaling
// and a 5s busy timeout so concurrent agent goroutines do not trip over each
// other on short write bursts.
//
// Usage:
//
//	store, err := sqlite.Open(ctx, "duskfolk.db")
//	if err != nil { … }
//	defer store.Close()
package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

// Compile-time interface check.
var _ memory.Store = (*Store)(nil)

// maxOpenConns bounds the connection pool. SQLite serialises writers anyway;
// a small pool keeps reader concurrency without lock churn.
const maxOpenConns = 10

// Store is the SQLite-backed memory store. All operations are safe for
// concurrent use.
type Store struct {
	db *sqlx.DB

	// now is swappable in tests so decay math sees a fixed clock.
	now func() time.Time
}

// Open opens (or creates) the database at path, applies the performance
// pragmas, and runs [Migrate].
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=cache_size(-65536)&_pragma=temp_store(MEMORY)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(maxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: ping: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: migrate: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Analyze refreshes the query planner statistics. The scaling layer calls
// this from its periodic optimize pass.
func (s *Store) Analyze(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `ANALYZE`); err != nil {
		return fmt.Errorf("sqlite store: analyze: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
