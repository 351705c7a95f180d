package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// defaultTable is the table PostgresStore keeps lock keys in.
const defaultTable = "latch_keys"

// PostgresStore implements Store on a PostgreSQL table. A row per key
// carries the claim; INSERT ... ON CONFLICT makes the claim atomic and
// lets an expired row be reclaimed in the same statement. PostgreSQL
// has no native key expiry, so expired rows linger until the next claim
// attempt or a Cleanup call.
type PostgresStore struct {
	db    *pgxpool.Pool
	table string

	claimQuery   string
	expiryQuery  string
	deleteQuery  string
	cleanupQuery string
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithTable sets the table name used for lock rows. The default is
// "latch_keys".
func WithTable(name string) PostgresOption {
	return func(s *PostgresStore) {
		s.table = name
	}
}

// NewPostgres returns a new PostgresStore using the provided pool.
func NewPostgres(db *pgxpool.Pool, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, table: defaultTable}
	for _, opt := range opts {
		opt(s)
	}
	s.claimQuery = fmt.Sprintf(`
		INSERT INTO %s (key, value, expires_at)
		VALUES ($1, $2, NULL)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = NULL, created_at = NOW()
		WHERE %s.expires_at IS NOT NULL AND %s.expires_at < NOW()
		RETURNING key
	`, s.table, s.table, s.table)
	s.expiryQuery = fmt.Sprintf(`
		UPDATE %s SET expires_at = $2
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > NOW())
	`, s.table)
	s.deleteQuery = fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table)
	s.cleanupQuery = fmt.Sprintf(`DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at < NOW()`, s.table)
	return s
}

// Setup creates the lock table if it does not exist yet.
func (s *PostgresStore) Setup(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, s.table)
	_, err := s.db.Exec(ctx, query)
	return err
}

// SetIfAbsent implements Store.SetIfAbsent. A row whose expiry has
// passed counts as absent and is reclaimed atomically.
func (s *PostgresStore) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	var returned string
	err := s.db.QueryRow(ctx, s.claimQuery, key, value).Scan(&returned)
	if errors.Is(err, pgx.ErrNoRows) {
		// The row exists and has not expired, claim lost.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetExpiry implements Store.SetExpiry. Arming fails when the row is
// absent or already past its expiry.
func (s *PostgresStore) SetExpiry(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	tag, err := s.db.Exec(ctx, s.expiryQuery, key, time.Now().Add(ttl))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Delete implements Store.Delete.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, s.deleteQuery, key)
	return err
}

// Cleanup removes rows whose expiry has passed and reports how many
// were deleted. Call it periodically; claims reclaim expired rows on
// their own, but only for keys somebody tries to take again.
func (s *PostgresStore) Cleanup(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, s.cleanupQuery)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
