package server

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/medialoom/medialoom/pkg/httperr"
	"github.com/medialoom/medialoom/pkg/uuidv7"
)

// MediaItem is one entry in the catalog the demo protects. The catalog is
// deliberately small: it exists so the gate has real writes to block.
type MediaItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	MediaType string    `json:"mediaType"`
	Status    string    `json:"status"`
	Link      string    `json:"link,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var mediaStatuses = map[string]bool{
	"uncharted":          true,
	"actively_exploring": true,
	"completed":          true,
	"abandoned":          true,
}

// validateMediaItem normalizes and checks client-supplied fields. An empty
// status defaults to uncharted.
func validateMediaItem(item *MediaItem) error {
	item.Title = strings.TrimSpace(item.Title)
	item.MediaType = strings.ToLower(strings.TrimSpace(item.MediaType))
	item.Status = strings.ToLower(strings.TrimSpace(item.Status))
	item.Link = strings.TrimSpace(item.Link)

	if item.Title == "" {
		return httperr.NewBadRequest("title is required")
	}
	if item.MediaType == "" {
		return httperr.NewBadRequest("mediaType is required")
	}
	if item.Status == "" {
		item.Status = "uncharted"
	}
	if !mediaStatuses[item.Status] {
		return httperr.NewBadRequest("unknown status " + item.Status)
	}
	return nil
}

type MediaStore interface {
	List(ctx context.Context) ([]MediaItem, error)
	Get(ctx context.Context, id string) (MediaItem, error)
	Create(ctx context.Context, item MediaItem) (MediaItem, error)
	Update(ctx context.Context, item MediaItem) (MediaItem, error)
	Delete(ctx context.Context, id string) error
}

type mediaPGStore struct {
	pool pgBeginner
}

func newMediaPGStore(pool pgBeginner) MediaStore {
	return &mediaPGStore{pool: pool}
}

func (s *mediaPGStore) List(ctx context.Context) ([]MediaItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT id, title, media_type, status, link, notes, created_at, updated_at
FROM media.items
ORDER BY created_at DESC, id DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]MediaItem, 0)
	for rows.Next() {
		var item MediaItem
		if err := rows.Scan(&item.ID, &item.Title, &item.MediaType, &item.Status, &item.Link, &item.Notes, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *mediaPGStore) Get(ctx context.Context, id string) (MediaItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return MediaItem{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var item MediaItem
	err = tx.QueryRow(ctx, `
SELECT id, title, media_type, status, link, notes, created_at, updated_at
FROM media.items
WHERE id = $1
`, id).Scan(&item.ID, &item.Title, &item.MediaType, &item.Status, &item.Link, &item.Notes, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return MediaItem{}, httperr.NewNotFound("media item not found")
	}
	if err != nil {
		return MediaItem{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return MediaItem{}, err
	}
	return item, nil
}

func (s *mediaPGStore) Create(ctx context.Context, item MediaItem) (MediaItem, error) {
	if err := validateMediaItem(&item); err != nil {
		return MediaItem{}, err
	}
	id, err := uuidv7.NewString()
	if err != nil {
		return MediaItem{}, err
	}
	item.ID = id

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return MediaItem{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	err = tx.QueryRow(ctx, `
INSERT INTO media.items (id, title, media_type, status, link, notes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at, updated_at
`, item.ID, item.Title, item.MediaType, item.Status, item.Link, item.Notes).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return MediaItem{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return MediaItem{}, err
	}
	return item, nil
}

func (s *mediaPGStore) Update(ctx context.Context, item MediaItem) (MediaItem, error) {
	if err := validateMediaItem(&item); err != nil {
		return MediaItem{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return MediaItem{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	err = tx.QueryRow(ctx, `
UPDATE media.items
SET title = $2, media_type = $3, status = $4, link = $5, notes = $6, updated_at = now()
WHERE id = $1
RETURNING created_at, updated_at
`, item.ID, item.Title, item.MediaType, item.Status, item.Link, item.Notes).Scan(&item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return MediaItem{}, httperr.NewNotFound("media item not found")
	}
	if err != nil {
		return MediaItem{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return MediaItem{}, err
	}
	return item, nil
}

func (s *mediaPGStore) Delete(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `DELETE FROM media.items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httperr.NewNotFound("media item not found")
	}
	return tx.Commit(ctx)
}

type mediaMemoryStore struct {
	mu    sync.Mutex
	items map[string]MediaItem
	now   func() time.Time
}

func newMediaMemoryStore() *mediaMemoryStore {
	return &mediaMemoryStore{items: map[string]MediaItem{}, now: time.Now}
}

func (s *mediaMemoryStore) List(_ context.Context) ([]MediaItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]MediaItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	return items, nil
}

func (s *mediaMemoryStore) Get(_ context.Context, id string) (MediaItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return MediaItem{}, httperr.NewNotFound("media item not found")
	}
	return item, nil
}

func (s *mediaMemoryStore) Create(_ context.Context, item MediaItem) (MediaItem, error) {
	if err := validateMediaItem(&item); err != nil {
		return MediaItem{}, err
	}
	id, err := uuidv7.NewString()
	if err != nil {
		return MediaItem{}, err
	}
	now := s.now()
	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	return item, nil
}

func (s *mediaMemoryStore) Update(_ context.Context, item MediaItem) (MediaItem, error) {
	if err := validateMediaItem(&item); err != nil {
		return MediaItem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.items[item.ID]
	if !ok {
		return MediaItem{}, httperr.NewNotFound("media item not found")
	}
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = s.now()
	s.items[item.ID] = item
	return item, nil
}

func (s *mediaMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return httperr.NewNotFound("media item not found")
	}
	delete(s.items, id)
	return nil
}
