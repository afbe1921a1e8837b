// Package reconcile upserts normalized articles into the store keyed by a
// deterministic slug, so re-fetching the same source item updates the
// existing row instead of duplicating it.
package reconcile

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/newsfold/newsfold/internal/logging"
	"github.com/newsfold/newsfold/internal/models"
	"github.com/newsfold/newsfold/internal/textutil"
)

// ArticleUpserter is the slice of the article store the reconciler needs.
type ArticleUpserter interface {
	Upsert(ctx context.Context, a models.StoredArticle) (int64, error)
}

// CategoryResolver translates a category slug into its foreign key.
type CategoryResolver interface {
	GetBySlug(ctx context.Context, slug string) (models.Category, error)
}

// Rehoster copies a source image to owned storage, returning the URL to
// store. Implementations fall back to the input URL on failure.
type Rehoster interface {
	Rehost(ctx context.Context, sourceURL string) string
}

// Reconciler merges freshly fetched articles into persistent storage.
type Reconciler struct {
	articles   ArticleUpserter
	categories CategoryResolver
	rehoster   Rehoster
	logger     *logging.Logger
	// onChange fires after a batch persisted at least one row, so the
	// read side can invalidate its cache immediately instead of waiting
	// for the next interval.
	onChange func()
}

func New(articles ArticleUpserter, categories CategoryResolver, rehoster Rehoster, logger *logging.Logger) *Reconciler {
	return &Reconciler{
		articles:   articles,
		categories: categories,
		rehoster:   rehoster,
		logger:     logger,
	}
}

// OnChange registers a change-notification callback.
func (r *Reconciler) OnChange(fn func()) {
	r.onChange = fn
}

// Reconcile upserts the batch for one category. Per-article failures are
// logged and skipped; they never abort the batch. Returns how many rows
// were written. Running the same batch twice is idempotent: the slug key
// reconciles to the same rows.
func (r *Reconciler) Reconcile(ctx context.Context, articles []models.Article, categorySlug string) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	category, err := r.categories.GetBySlug(ctx, categorySlug)
	if err != nil {
		return 0, fmt.Errorf("resolve category %s: %w", categorySlug, err)
	}

	written := 0
	for _, article := range articles {
		stored := models.StoredArticle{
			Slug:       Slug(categorySlug, article.Title, article.URL),
			CategoryID: category.ID,
			Title:      article.Title,
			Excerpt:    article.Excerpt,
			Image:      article.Image,
			Category:   categorySlug,
			Source:     article.Source,
			Date:       article.Date,
			Author:     article.Author,
			URL:        article.URL,
		}

		if r.rehoster != nil && article.Image != "" {
			hosted := r.rehoster.Rehost(ctx, article.Image)
			if hosted != article.Image {
				stored.Image = hosted
				stored.OriginalImageURL = article.Image
			}
		}

		if _, err := r.articles.Upsert(ctx, stored); err != nil {
			r.logger.Warn("Skipping article after upsert failure", logging.WithFields(map[string]interface{}{
				"slug":  stored.Slug,
				"error": err.Error(),
			}))
			continue
		}
		written++
	}

	if written > 0 && r.onChange != nil {
		r.onChange()
	}

	return written, nil
}

// maxSlugLen matches the slug column width; titles can be twice as long, so
// the derived key is capped here rather than letting the upsert fail.
const maxSlugLen = 512

// Slug derives the deterministic upsert key: category plus slugified title,
// falling back to the trailing path segment of the canonical URL when the
// title slugs to nothing. The result never exceeds maxSlugLen.
func Slug(categorySlug, title, articleURL string) string {
	s := textutil.Slugify(title)
	if s == "" {
		s = textutil.Slugify(lastPathSegment(articleURL))
	}
	if s == "" {
		s = textutil.Slugify(articleURL)
	}
	slug := categorySlug + "-" + s
	if len(slug) > maxSlugLen {
		// Slugified text is ASCII, so a byte cut cannot split a rune.
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	return slug
}

func lastPathSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}
