package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/newsfold/newsfold/internal/models"
)

// ArticleStore persists normalized articles in Postgres. Slug is the
// natural key: the store's atomic ON CONFLICT upsert is the only
// synchronization for concurrent reconciliations of the same slug
// (last-write-wins by design, no application-level locking).
type ArticleStore struct {
	db *DB
}

func NewArticleStore(db *DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// Upsert inserts the article or replaces every field of the existing row
// with the same slug. Returns the row id.
func (s *ArticleStore) Upsert(ctx context.Context, a models.StoredArticle) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO articles (
			slug, category_id, title, excerpt, image, original_image_url,
			source, author, url, published_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (slug) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			title = EXCLUDED.title,
			excerpt = EXCLUDED.excerpt,
			image = EXCLUDED.image,
			original_image_url = EXCLUDED.original_image_url,
			source = EXCLUDED.source,
			author = EXCLUDED.author,
			url = EXCLUDED.url,
			published_at = EXCLUDED.published_at,
			updated_at = NOW()
		RETURNING id
	`,
		a.Slug,
		a.CategoryID,
		a.Title,
		a.Excerpt,
		a.Image,
		nullString(a.OriginalImageURL),
		a.Source,
		nullString(a.Author),
		a.URL,
		a.Date,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert article %s: %w", a.Slug, err)
	}
	return id, nil
}

// ListRecent returns up to limit stored articles, newest first, joined with
// their category slug.
func (s *ArticleStore) ListRecent(ctx context.Context, limit int) ([]models.StoredArticle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.slug, a.category_id, c.slug, a.title, a.excerpt,
		       a.image, a.original_image_url, a.source, a.author, a.url,
		       a.published_at, a.created_at, a.updated_at
		FROM articles a
		JOIN categories c ON c.id = a.category_id
		ORDER BY a.published_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

// ListByIDs returns the stored articles for the given ids, in no particular
// order.
func (s *ArticleStore) ListByIDs(ctx context.Context, ids []int64) ([]models.StoredArticle, error) {
	if len(ids) == 0 {
		return []models.StoredArticle{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.slug, a.category_id, c.slug, a.title, a.excerpt,
		       a.image, a.original_image_url, a.source, a.author, a.url,
		       a.published_at, a.created_at, a.updated_at
		FROM articles a
		JOIN categories c ON c.id = a.category_id
		WHERE a.id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query articles by ids: %w", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

// DeleteOlderThan removes stored articles published before cutoff.
func (s *ArticleStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE published_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old articles: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows, nil
}

func scanArticles(rows *sql.Rows) ([]models.StoredArticle, error) {
	articles := make([]models.StoredArticle, 0)
	for rows.Next() {
		var a models.StoredArticle
		var originalImage, author sql.NullString

		if err := rows.Scan(
			&a.ID,
			&a.Slug,
			&a.CategoryID,
			&a.Category,
			&a.Title,
			&a.Excerpt,
			&a.Image,
			&originalImage,
			&a.Source,
			&author,
			&a.URL,
			&a.Date,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}

		a.OriginalImageURL = originalImage.String
		a.Author = author.String
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
