package database

import (
	"context"
	"fmt"
)

// ClickStore records raw click events and reads them back for popularity
// ranking. Counts are always derived from the raw rows on read, never
// persisted as aggregates.
type ClickStore struct {
	db *DB
}

func NewClickStore(db *DB) *ClickStore {
	return &ClickStore{db: db}
}

// Record writes one click event for an article.
func (s *ClickStore) Record(ctx context.Context, articleID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO article_clicks (article_id) VALUES ($1)`, articleID,
	); err != nil {
		return fmt.Errorf("record click for article %d: %w", articleID, err)
	}
	return nil
}

// Events returns the article id of every recorded click event, newest
// first, up to limit rows.
func (s *ClickStore) Events(ctx context.Context, limit int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT article_id FROM article_clicks
		ORDER BY clicked_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query click events: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan click event: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate click events: %w", err)
	}
	return ids, nil
}
