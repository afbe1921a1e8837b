// Package aggregator orchestrates the refresh cycle (fan-out fetch and
// reconcile per category) and the read side (cached stored articles fed
// through the ranking pipeline).
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/newsfold/newsfold/internal/cache"
	"github.com/newsfold/newsfold/internal/logging"
	"github.com/newsfold/newsfold/internal/models"
	"github.com/newsfold/newsfold/internal/ranking"
	"github.com/newsfold/newsfold/internal/sources"
)

const (
	storedArticlesKey = "stored_articles"
	storedArticlesTTL = 5 * time.Minute
	// maxReadArticles bounds how many stored rows feed the ranking
	// pipeline per read.
	maxReadArticles = 500
	// maxClickEvents bounds how many raw click rows are aggregated per
	// popularity read.
	maxClickEvents = 5000
)

// ArticleReader is the read slice of the article store.
type ArticleReader interface {
	ListRecent(ctx context.Context, limit int) ([]models.StoredArticle, error)
	ListByIDs(ctx context.Context, ids []int64) ([]models.StoredArticle, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AdReader lists active advertisements.
type AdReader interface {
	ListActive(ctx context.Context) ([]models.Advertisement, error)
}

// ClickReader reads raw click events for popularity ranking.
type ClickReader interface {
	Events(ctx context.Context, limit int) ([]int64, error)
}

// Reconciler persists a fetched batch for one category.
type Reconciler interface {
	Reconcile(ctx context.Context, articles []models.Article, categorySlug string) (int, error)
}

type Aggregator struct {
	fetchers   []sources.Fetcher
	reconciler Reconciler
	articles   ArticleReader
	ads        AdReader
	clicks     ClickReader
	cache      cache.Cache
	logger     *logging.Logger
	retention  time.Duration
}

func New(fetchers []sources.Fetcher, reconciler Reconciler, articles ArticleReader, ads AdReader, clicks ClickReader, c cache.Cache, retention time.Duration, logger *logging.Logger) *Aggregator {
	return &Aggregator{
		fetchers:   fetchers,
		reconciler: reconciler,
		articles:   articles,
		ads:        ads,
		clicks:     clicks,
		cache:      c,
		retention:  retention,
		logger:     logger,
	}
}

// RefreshAll fetches every category feed concurrently and reconciles each
// batch. A failing branch contributes zero articles and never cancels or
// fails the others.
func (a *Aggregator) RefreshAll(ctx context.Context) error {
	var wg sync.WaitGroup
	results := make(chan sources.FetchResult, len(a.fetchers))

	for _, fetcher := range a.fetchers {
		wg.Add(1)
		go func(f sources.Fetcher) {
			defer wg.Done()

			articles, err := f.Fetch(ctx)
			results <- sources.FetchResult{
				Articles: articles,
				Source:   f.SourceInfo(),
				Error:    err,
			}
		}(fetcher)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	totalWritten := 0
	for result := range results {
		if result.Error != nil {
			a.logger.Warn("Failed to fetch from source", logging.WithFields(map[string]interface{}{
				"source": result.Source.Name,
				"error":  result.Error.Error(),
			}))
			continue
		}

		written, err := a.reconciler.Reconcile(ctx, result.Articles, result.Source.Category)
		if err != nil {
			a.logger.Warn("Failed to reconcile batch", logging.WithFields(map[string]interface{}{
				"source": result.Source.Name,
				"error":  err.Error(),
			}))
			continue
		}

		a.logger.Info("Reconciled source", logging.WithFields(map[string]interface{}{
			"source":  result.Source.Name,
			"fetched": len(result.Articles),
			"written": written,
		}))
		totalWritten += written
	}

	a.InvalidateArticles()

	a.logger.Info("Refresh cycle complete", logging.WithFields(map[string]interface{}{
		"sources": len(a.fetchers),
		"written": totalWritten,
	}))

	return nil
}

// RefreshCategory re-runs fetch+reconcile for one category. Safe to call
// again while a previous run is in flight: reconciliation is upsert-based,
// so the two runs converge on the same rows.
func (a *Aggregator) RefreshCategory(ctx context.Context, categorySlug string) (int, error) {
	for _, f := range a.fetchers {
		if f.CategorySlug() != categorySlug {
			continue
		}

		articles, err := f.Fetch(ctx)
		if err != nil {
			return 0, fmt.Errorf("fetch category %s: %w", categorySlug, err)
		}

		written, err := a.reconciler.Reconcile(ctx, articles, categorySlug)
		if err != nil {
			return 0, fmt.Errorf("reconcile category %s: %w", categorySlug, err)
		}

		a.InvalidateArticles()
		return written, nil
	}

	return 0, fmt.Errorf("no configured feed for category %s", categorySlug)
}

// InvalidateArticles drops the read-side cache so the next read sees fresh
// rows. Wired as the reconciler's change notification.
func (a *Aggregator) InvalidateArticles() {
	if a.cache != nil {
		a.cache.Delete(storedArticlesKey)
	}
}

// GetPage serves one page of the reading feed. A store failure surfaces as
// an error with no articles; an ad-read failure degrades to an ad-free page.
func (a *Aggregator) GetPage(ctx context.Context, params models.FilterParams) (models.Page, error) {
	stored, err := a.loadArticles(ctx)
	if err != nil {
		return models.Page{}, fmt.Errorf("load articles: %w", err)
	}

	articles := make([]models.Article, 0, len(stored))
	for _, s := range stored {
		articles = append(articles, s.ToArticle())
	}

	ads, err := a.ads.ListActive(ctx)
	if err != nil {
		a.logger.Warn("Failed to load advertisements, serving ad-free page", logging.WithField("error", err.Error()))
		ads = nil
	}

	return ranking.BuildPage(articles, ads, params), nil
}

// GetPopular serves the click-ranked sidebar list. Any failure propagates;
// the sidebar shows nothing rather than partial popularity data.
func (a *Aggregator) GetPopular(ctx context.Context) ([]models.PopularArticle, error) {
	events, err := a.clicks.Events(ctx, maxClickEvents)
	if err != nil {
		return nil, fmt.Errorf("read click events: %w", err)
	}

	counts := ranking.TopByClicks(events, ranking.PopularLimit)
	if len(counts) == 0 {
		return []models.PopularArticle{}, nil
	}

	ids := make([]int64, 0, len(counts))
	for _, c := range counts {
		ids = append(ids, c.ArticleID)
	}

	stored, err := a.articles.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load popular articles: %w", err)
	}

	return ranking.RankPopular(counts, stored), nil
}

// GetTextAds returns the active text ads for the sidebar.
func (a *Aggregator) GetTextAds(ctx context.Context) ([]models.Advertisement, error) {
	ads, err := a.ads.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load advertisements: %w", err)
	}
	return ranking.TextAds(ads), nil
}

// GetSources lists the configured feed sources.
func (a *Aggregator) GetSources() []models.SourceInfo {
	infos := make([]models.SourceInfo, 0, len(a.fetchers))
	for _, f := range a.fetchers {
		infos = append(infos, f.SourceInfo())
	}
	return infos
}

// StartRefreshLoop refreshes all feeds on a fixed interval until ctx is
// canceled, pruning articles past the retention window after each cycle.
func (a *Aggregator) StartRefreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.RefreshAll(ctx); err != nil {
				a.logger.Warn("Scheduled refresh had errors", logging.WithField("error", err.Error()))
			}
			a.prune(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *Aggregator) prune(ctx context.Context) {
	if a.retention <= 0 {
		return
	}
	removed, err := a.articles.DeleteOlderThan(ctx, time.Now().Add(-a.retention))
	if err != nil {
		a.logger.Warn("Retention sweep failed", logging.WithField("error", err.Error()))
		return
	}
	if removed > 0 {
		a.logger.Info("Retention sweep removed old articles", logging.WithField("count", removed))
		a.InvalidateArticles()
	}
}

func (a *Aggregator) loadArticles(ctx context.Context) ([]models.StoredArticle, error) {
	if cached, ok := a.cachedArticles(); ok {
		return cached, nil
	}

	stored, err := a.articles.ListRecent(ctx, maxReadArticles)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		a.cache.SetWithTTL(storedArticlesKey, stored, storedArticlesTTL)
	}
	return stored, nil
}

// cachedArticles handles both backends: the memory cache returns the slice
// as-is, the Redis cache returns decoded JSON that needs another roundtrip.
func (a *Aggregator) cachedArticles() ([]models.StoredArticle, bool) {
	if a.cache == nil {
		return nil, false
	}

	cached, ok := a.cache.Get(storedArticlesKey)
	if !ok || cached == nil {
		return nil, false
	}

	if stored, ok := cached.([]models.StoredArticle); ok {
		return stored, true
	}

	raw, err := json.Marshal(cached)
	if err != nil {
		return nil, false
	}

	var decoded []models.StoredArticle
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, false
	}
	// A cached empty list ([]) is a valid hit; only JSON null is a miss.
	if decoded == nil {
		return nil, false
	}
	return decoded, true
}
