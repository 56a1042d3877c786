package history

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the audit trail in PostgreSQL.
//
// Ownership model:
//   - PostgresStore does NOT own the pgx pool. The caller must close it.
//   - Close() is therefore a no-op.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "yk"). The
// schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("history: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("history: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store and ensures its schema
// and table exist.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "yk",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("history: nil pool")
	}
	if err := st.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	schema := pgQuoteIdent(s.schema)
	table := pgIdent(s.schema, "operation_log")

	if _, err := s.pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+schema); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+table+` (
			id          text PRIMARY KEY,
			kind        text NOT NULL,
			outcome     text NOT NULL,
			account     text,
			wait_ms     bigint NOT NULL DEFAULT 0,
			duration_ms bigint NOT NULL DEFAULT 0,
			at          timestamptz NOT NULL
		)
	`)
	return err
}

// Record inserts one entry. Replays of the same operation ID are ignored.
func (s *PostgresStore) Record(ctx context.Context, e Entry) error {
	if s == nil || s.pool == nil {
		return errors.New("history: nil store")
	}
	if e.ID == "" {
		return errors.New("history: missing entry id")
	}

	var account any
	if e.Account != "" {
		account = e.Account
	}

	table := pgIdent(s.schema, "operation_log")
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+table+` (id, kind, outcome, account, wait_ms, duration_ms, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.Kind, e.Outcome, account, e.WaitMS, e.DurationMS, e.At)
	return err
}

// Recent returns up to limit entries, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("history: nil store")
	}
	if limit <= 0 {
		limit = defaultMemoryCap
	}

	table := pgIdent(s.schema, "operation_log")
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, outcome, COALESCE(account, ''), wait_ms, duration_ms, at
		FROM `+table+`
		ORDER BY at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Outcome, &e.Account, &e.WaitMS, &e.DurationMS, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

var pgIdentRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func isValidPGIdent(s string) bool { return pgIdentRe.MatchString(s) }

func pgQuoteIdent(s string) string { return `"` + s + `"` }

func pgIdent(schema, table string) string {
	return pgQuoteIdent(schema) + "." + pgQuoteIdent(table)
}
