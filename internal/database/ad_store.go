package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/newsfold/newsfold/internal/models"
)

// AdStore reads advertisements. Rows are managed by an external admin
// surface; the pipeline only consumes active ones.
type AdStore struct {
	db *DB
}

func NewAdStore(db *DB) *AdStore {
	return &AdStore{db: db}
}

// ListActive returns all active advertisements, newest first.
func (s *AdStore) ListActive(ctx context.Context) ([]models.Advertisement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, url, excerpt, source_text, image_url, ad_type, is_active, created_at
		FROM advertisements
		WHERE is_active = true
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query advertisements: %w", err)
	}
	defer rows.Close()

	ads := make([]models.Advertisement, 0)
	for rows.Next() {
		var ad models.Advertisement
		var excerpt, imageURL sql.NullString

		if err := rows.Scan(&ad.ID, &ad.Title, &ad.URL, &excerpt, &ad.SourceText, &imageURL, &ad.Type, &ad.IsActive, &ad.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan advertisement: %w", err)
		}

		ad.Excerpt = excerpt.String
		ad.ImageURL = imageURL.String
		ads = append(ads, ad)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate advertisements: %w", err)
	}
	return ads, nil
}
