package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrImageNotFound is returned when no rehosted image exists for an id.
var ErrImageNotFound = errors.New("image not found")

// ImageStore keeps rehosted article images as bytea rows so articles stay
// renderable after a publisher takes the original down.
type ImageStore struct {
	db *DB
}

func NewImageStore(db *DB) *ImageStore {
	return &ImageStore{db: db}
}

// Save stores image bytes under id, replacing any existing row.
func (s *ImageStore) Save(ctx context.Context, id, contentType string, data []byte) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO article_images (id, content_type, image_data)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			image_data = EXCLUDED.image_data
	`, id, contentType, data); err != nil {
		return fmt.Errorf("save image %s: %w", id, err)
	}
	return nil
}

// Load returns the content type and bytes for id, or ErrImageNotFound.
func (s *ImageStore) Load(ctx context.Context, id string) (string, []byte, error) {
	var contentType string
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT content_type, image_data FROM article_images WHERE id = $1`, id,
	).Scan(&contentType, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, ErrImageNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("load image %s: %w", id, err)
	}
	return contentType, data, nil
}
