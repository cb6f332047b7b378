// Package postgres implements records.Store on PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msmeflow/quoteflow/internal/records"
)

// Schema creates the record tables when missing.
const Schema = `
CREATE TABLE IF NOT EXISTS quotations_uploads (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id TEXT NOT NULL,
	quotation_file_path TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS quotations_uploads_user_idx ON quotations_uploads (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS price_list_path (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id TEXT NOT NULL,
	path TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS price_list_path_user_idx ON price_list_path (user_id, created_at DESC);
`

type table struct {
	name string
	col  string
}

var tables = map[records.Kind]table{
	records.KindQuotation: {name: "quotations_uploads", col: "quotation_file_path"},
	records.KindPriceList: {name: "price_list_path", col: "path"},
}

func tableFor(kind records.Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, fmt.Errorf("%w: %q", records.ErrUnknownKind, kind)
	}
	return t, nil
}

type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and applies Schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	s := NewStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Save(ctx context.Context, userID string, kind records.Kind, paths []string) ([]records.Record, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for _, p := range paths {
		batch.Queue(fmt.Sprintf(`INSERT INTO %s (user_id, %s) VALUES ($1, $2) RETURNING id::text, created_at`, t.name, t.col), userID, p)
	}

	out := make([]records.Record, 0, len(paths))
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, p := range paths {
		r := records.Record{UserID: userID, Kind: kind, Path: p}
		if err := br.QueryRow().Scan(&r.ID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to insert %s record: %w", kind, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) List(ctx context.Context, userID string, kind records.Kind) ([]records.Record, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id::text, %s, created_at
		FROM %s
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, t.col, t.name), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", kind, err)
	}
	defer rows.Close()

	var out []records.Record
	for rows.Next() {
		r := records.Record{UserID: userID, Kind: kind}
		if err := rows.Scan(&r.ID, &r.Path, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeletePath(ctx context.Context, userID, path string) (int, error) {
	removed := 0
	for _, kind := range []records.Kind{records.KindQuotation, records.KindPriceList} {
		t := tables[kind]
		tag, err := s.pool.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND %s = $2`, t.name, t.col), userID, path)
		if err != nil {
			return removed, fmt.Errorf("failed to delete %s records: %w", kind, err)
		}
		removed += int(tag.RowsAffected())
	}
	return removed, nil
}
