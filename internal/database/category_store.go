package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/newsfold/newsfold/internal/models"
)

// ErrCategoryNotFound is returned when a slug has no category row.
var ErrCategoryNotFound = errors.New("category not found")

// CategoryStore resolves category slugs to their foreign keys.
type CategoryStore struct {
	db *DB
}

func NewCategoryStore(db *DB) *CategoryStore {
	return &CategoryStore{db: db}
}

// GetBySlug returns the category for slug, or ErrCategoryNotFound.
func (s *CategoryStore) GetBySlug(ctx context.Context, slug string) (models.Category, error) {
	var c models.Category
	err := s.db.QueryRowContext(ctx,
		`SELECT id, slug, name FROM categories WHERE slug = $1`, slug,
	).Scan(&c.ID, &c.Slug, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Category{}, fmt.Errorf("%w: %s", ErrCategoryNotFound, slug)
	}
	if err != nil {
		return models.Category{}, fmt.Errorf("query category %s: %w", slug, err)
	}
	return c, nil
}

// List returns all categories ordered by name.
func (s *CategoryStore) List(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, slug, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]models.Category, 0)
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}
