package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vbonduro/facet/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS library_items (
    id         TEXT   PRIMARY KEY,
    type       TEXT   NOT NULL CHECK (type IN ('prompt', 'gem')),
    name       TEXT   NOT NULL,
    content    TEXT   NOT NULL,
    created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_library_items_created_at ON library_items(created_at);
`

// PostgresLibraryStore keeps the library in PostgreSQL, for deployments that
// share one library between several servers.
type PostgresLibraryStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresLibraryStore(ctx context.Context, connString string) (*PostgresLibraryStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create library schema: %w", err)
	}

	return &PostgresLibraryStore{pool: pool, now: time.Now}, nil
}

func (s *PostgresLibraryStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Add takes an exclusive table lock so the capacity check and insert cannot
// interleave with another server's.
func (s *PostgresLibraryStore) Add(ctx context.Context, typ domain.LibraryItemType, name, content string) (*domain.LibraryItem, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("invalid library item type %q", typ)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "LOCK TABLE library_items IN EXCLUSIVE MODE"); err != nil {
		return nil, fmt.Errorf("failed to lock library: %w", err)
	}

	var count int
	var latest int64
	if err := tx.QueryRow(ctx,
		"SELECT COUNT(*), COALESCE(MAX(created_at), 0) FROM library_items",
	).Scan(&count, &latest); err != nil {
		return nil, fmt.Errorf("failed to count library items: %w", err)
	}
	if count >= LibraryCapacity {
		return nil, ErrLibraryFull
	}

	created := nextTimestamp(s.now(), latest)
	item := &domain.LibraryItem{
		ID:        strconv.FormatInt(created, 10),
		Type:      typ,
		Name:      name,
		Content:   content,
		CreatedAt: time.UnixMilli(created),
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO library_items (id, type, name, content, created_at) VALUES ($1, $2, $3, $4, $5)",
		item.ID, string(item.Type), item.Name, item.Content, created,
	); err != nil {
		return nil, fmt.Errorf("failed to add library item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit library item: %w", err)
	}
	return item, nil
}

func (s *PostgresLibraryStore) GetByID(ctx context.Context, id string) (*domain.LibraryItem, error) {
	var typ string
	var created int64
	item := &domain.LibraryItem{}
	err := s.pool.QueryRow(ctx,
		"SELECT id, type, name, content, created_at FROM library_items WHERE id = $1", id,
	).Scan(&item.ID, &typ, &item.Name, &item.Content, &created)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get library item: %w", err)
	}

	item.Type = domain.LibraryItemType(typ)
	item.CreatedAt = time.UnixMilli(created)
	return item, nil
}

func (s *PostgresLibraryStore) List(ctx context.Context) ([]*domain.LibraryItem, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, type, name, content, created_at FROM library_items ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list library items: %w", err)
	}
	defer rows.Close()

	var items []*domain.LibraryItem
	for rows.Next() {
		var typ string
		var created int64
		item := &domain.LibraryItem{}
		if err := rows.Scan(&item.ID, &typ, &item.Name, &item.Content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan library item: %w", err)
		}
		item.Type = domain.LibraryItemType(typ)
		item.CreatedAt = time.UnixMilli(created)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating library items: %w", err)
	}

	return items, nil
}

func (s *PostgresLibraryStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM library_items WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete library item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
