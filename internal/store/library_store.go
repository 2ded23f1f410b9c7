package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/vbonduro/facet/internal/domain"
)

// LibraryCapacity is the most items the library holds.
const LibraryCapacity = 20

var (
	ErrLibraryFull = errors.New("library is full")
	ErrNotFound    = errors.New("library item not found")
)

type LibraryStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewLibraryStore(db *sql.DB) *LibraryStore {
	return &LibraryStore{db: db, now: time.Now}
}

// Add stores a new item unless the library is at capacity. The id is the
// creation time in milliseconds, moved forward when needed so ids stay unique
// and ordered.
func (s *LibraryStore) Add(ctx context.Context, typ domain.LibraryItemType, name, content string) (*domain.LibraryItem, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("invalid library item type %q", typ)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	var latest int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MAX(created_at), 0) FROM library_items
	`).Scan(&count, &latest); err != nil {
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

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO library_items (id, type, name, content, created_at) VALUES (?, ?, ?, ?, ?)
	`, item.ID, item.Type, item.Name, item.Content, created); err != nil {
		return nil, fmt.Errorf("failed to add library item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit library item: %w", err)
	}
	return item, nil
}

func nextTimestamp(now time.Time, latest int64) int64 {
	ms := now.UnixMilli()
	if ms <= latest {
		ms = latest + 1
	}
	return ms
}

// GetByID returns nil when no item has id.
func (s *LibraryStore) GetByID(ctx context.Context, id string) (*domain.LibraryItem, error) {
	var created int64
	item := &domain.LibraryItem{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, name, content, created_at FROM library_items WHERE id = ?
	`, id).Scan(&item.ID, &item.Type, &item.Name, &item.Content, &created)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get library item: %w", err)
	}

	item.CreatedAt = time.UnixMilli(created)
	return item, nil
}

// List returns every item, newest first.
func (s *LibraryStore) List(ctx context.Context) ([]*domain.LibraryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, name, content, created_at FROM library_items ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list library items: %w", err)
	}
	defer rows.Close()

	var items []*domain.LibraryItem
	for rows.Next() {
		var created int64
		item := &domain.LibraryItem{}
		if err := rows.Scan(&item.ID, &item.Type, &item.Name, &item.Content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan library item: %w", err)
		}
		item.CreatedAt = time.UnixMilli(created)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating library items: %w", err)
	}

	return items, nil
}

func (s *LibraryStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM library_items WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete library item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
