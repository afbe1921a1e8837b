package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/newsfold/newsfold/internal/cache"
	"github.com/newsfold/newsfold/internal/models"
	"github.com/newsfold/newsfold/internal/ranking"
	"github.com/newsfold/newsfold/internal/sources"
	"github.com/newsfold/newsfold/internal/testutil"
)

type fakeFetcher struct {
	name     string
	category string
	articles []models.Article
	err      error
}

func (f *fakeFetcher) Name() string         { return f.name }
func (f *fakeFetcher) CategorySlug() string { return f.category }
func (f *fakeFetcher) Fetch(context.Context) ([]models.Article, error) {
	return f.articles, f.err
}
func (f *fakeFetcher) SourceInfo() models.SourceInfo {
	return models.SourceInfo{ID: f.category, Name: f.name, Category: f.category, Enabled: true}
}

type fakeReconciler struct {
	mu      sync.Mutex
	batches map[string]int
	failFor string
}

func newFakeReconciler() *fakeReconciler {
	return &fakeReconciler{batches: map[string]int{}}
}

func (f *fakeReconciler) Reconcile(_ context.Context, articles []models.Article, categorySlug string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if categorySlug == f.failFor {
		return 0, errors.New("reconcile failed")
	}
	f.batches[categorySlug] += len(articles)
	return len(articles), nil
}

type fakeArticleStore struct {
	articles []models.StoredArticle
	listErr  error
	calls    int
}

func (f *fakeArticleStore) ListRecent(context.Context, int) ([]models.StoredArticle, error) {
	f.calls++
	return f.articles, f.listErr
}

func (f *fakeArticleStore) ListByIDs(_ context.Context, ids []int64) ([]models.StoredArticle, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.StoredArticle
	for _, a := range f.articles {
		if want[a.ID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeArticleStore) DeleteOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fakeAdStore struct {
	ads []models.Advertisement
	err error
}

func (f *fakeAdStore) ListActive(context.Context) ([]models.Advertisement, error) {
	return f.ads, f.err
}

type fakeClickStore struct {
	events []int64
	err    error
}

func (f *fakeClickStore) Events(context.Context, int) ([]int64, error) {
	return f.events, f.err
}

func storedArticles(n int) []models.StoredArticle {
	base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	out := make([]models.StoredArticle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.StoredArticle{
			ID:       int64(i + 1),
			Title:    fmt.Sprintf("Article %d", i),
			URL:      fmt.Sprintf("https://example.com/%d", i),
			Category: "tech",
			Date:     base.Add(-time.Duration(i) * time.Hour),
		})
	}
	return out
}

func newTestAggregator(fetchers []sources.Fetcher, rec Reconciler, articles ArticleReader, ads AdReader, clicks ClickReader, c cache.Cache) *Aggregator {
	return New(fetchers, rec, articles, ads, clicks, c, 0, testutil.NullLogger())
}

func TestRefreshAllFanOut(t *testing.T) {
	fetchers := make([]sources.Fetcher, 0, 5)
	for i := 0; i < 5; i++ {
		category := fmt.Sprintf("cat%d", i)
		f := &fakeFetcher{
			name:     category + " feed",
			category: category,
			articles: []models.Article{{Title: "A", URL: "https://e.com/" + category}},
		}
		if i == 2 {
			f.err = errors.New("connection refused")
			f.articles = nil
		}
		fetchers = append(fetchers, f)
	}

	rec := newFakeReconciler()
	agg := newTestAggregator(fetchers, rec, &fakeArticleStore{}, &fakeAdStore{}, &fakeClickStore{}, nil)

	if err := agg.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}

	if len(rec.batches) != 4 {
		t.Errorf("reconciled %d categories, want 4 (failing branch skipped)", len(rec.batches))
	}
	if _, ok := rec.batches["cat2"]; ok {
		t.Error("failing branch cat2 was reconciled, want skipped")
	}
	for _, cat := range []string{"cat0", "cat1", "cat3", "cat4"} {
		if rec.batches[cat] != 1 {
			t.Errorf("category %s reconciled %d articles, want 1", cat, rec.batches[cat])
		}
	}
}

func TestRefreshAllReconcileFailureIsolated(t *testing.T) {
	fetchers := []sources.Fetcher{
		&fakeFetcher{name: "a", category: "tech", articles: []models.Article{{Title: "T", URL: "https://e.com/t"}}},
		&fakeFetcher{name: "b", category: "sports", articles: []models.Article{{Title: "S", URL: "https://e.com/s"}}},
	}
	rec := newFakeReconciler()
	rec.failFor = "tech"
	agg := newTestAggregator(fetchers, rec, &fakeArticleStore{}, &fakeAdStore{}, &fakeClickStore{}, nil)

	if err := agg.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}
	if rec.batches["sports"] != 1 {
		t.Errorf("sports batch = %d, want 1 despite tech reconcile failure", rec.batches["sports"])
	}
}

func TestRefreshCategory(t *testing.T) {
	fetchers := []sources.Fetcher{
		&fakeFetcher{name: "tech feed", category: "tech", articles: []models.Article{{Title: "T", URL: "https://e.com/t"}}},
	}
	rec := newFakeReconciler()
	agg := newTestAggregator(fetchers, rec, &fakeArticleStore{}, &fakeAdStore{}, &fakeClickStore{}, nil)

	written, err := agg.RefreshCategory(context.Background(), "tech")
	if err != nil {
		t.Fatalf("RefreshCategory() error = %v", err)
	}
	if written != 1 {
		t.Errorf("written = %d, want 1", written)
	}

	if _, err := agg.RefreshCategory(context.Background(), "gardening"); err == nil {
		t.Error("RefreshCategory(unknown) error = nil, want error")
	}
}

func TestGetPage(t *testing.T) {
	store := &fakeArticleStore{articles: storedArticles(15)}
	ads := &fakeAdStore{ads: []models.Advertisement{
		{ID: 1, Title: "Ad", Type: models.AdTypeImage, IsActive: true},
	}}
	agg := newTestAggregator(nil, nil, store, ads, &fakeClickStore{}, nil)

	page, err := agg.GetPage(context.Background(), models.FilterParams{Page: 1, PageSize: ranking.PageSize})
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if len(page.Articles) != ranking.PageSize {
		t.Errorf("len(Articles) = %d, want %d", len(page.Articles), ranking.PageSize)
	}
	if page.TotalCount != 16 {
		t.Errorf("TotalCount = %d, want 15 articles + 1 ad", page.TotalCount)
	}
	if !page.Articles[ranking.AdInsertIndex].IsAd {
		t.Errorf("Articles[%d].IsAd = false, want interleaved ad", ranking.AdInsertIndex)
	}
}

func TestGetPageStoreFailure(t *testing.T) {
	store := &fakeArticleStore{listErr: errors.New("connection reset")}
	agg := newTestAggregator(nil, nil, store, &fakeAdStore{}, &fakeClickStore{}, nil)

	page, err := agg.GetPage(context.Background(), models.FilterParams{Page: 1})
	if err == nil {
		t.Fatal("GetPage() error = nil, want store failure")
	}
	if len(page.Articles) != 0 {
		t.Errorf("page has %d articles on failure, want 0", len(page.Articles))
	}
}

func TestGetPageAdFailureDegrades(t *testing.T) {
	store := &fakeArticleStore{articles: storedArticles(5)}
	ads := &fakeAdStore{err: errors.New("ads table missing")}
	agg := newTestAggregator(nil, nil, store, ads, &fakeClickStore{}, nil)

	page, err := agg.GetPage(context.Background(), models.FilterParams{Page: 1})
	if err != nil {
		t.Fatalf("GetPage() error = %v, want ad-free degradation", err)
	}
	if len(page.Articles) != 5 {
		t.Errorf("len(Articles) = %d, want 5", len(page.Articles))
	}
	for i, a := range page.Articles {
		if a.IsAd {
			t.Errorf("unexpected ad at index %d", i)
		}
	}
}

func TestGetPageUsesCache(t *testing.T) {
	store := &fakeArticleStore{articles: storedArticles(3)}
	c := cache.NewMemory(time.Minute)
	defer c.Stop()
	agg := newTestAggregator(nil, nil, store, &fakeAdStore{}, &fakeClickStore{}, c)

	for i := 0; i < 3; i++ {
		if _, err := agg.GetPage(context.Background(), models.FilterParams{Page: 1}); err != nil {
			t.Fatalf("GetPage() error = %v", err)
		}
	}
	if store.calls != 1 {
		t.Errorf("store queried %d times, want 1 (cache hit afterwards)", store.calls)
	}

	agg.InvalidateArticles()
	if _, err := agg.GetPage(context.Background(), models.FilterParams{Page: 1}); err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if store.calls != 2 {
		t.Errorf("store queried %d times after invalidation, want 2", store.calls)
	}
}

// decodedCache mimics the Redis backend, which returns values as decoded
// JSON rather than the original Go type.
type decodedCache struct {
	value interface{}
}

func (c *decodedCache) Get(string) (interface{}, bool) {
	if c.value == nil {
		return nil, false
	}
	return c.value, true
}
func (c *decodedCache) Set(string, interface{})                       {}
func (c *decodedCache) SetWithTTL(string, interface{}, time.Duration) {}
func (c *decodedCache) Delete(string)                                 { c.value = nil }
func (c *decodedCache) Clear()                                        { c.value = nil }

func TestGetPageCachedEmptyList(t *testing.T) {
	// An empty store result is a valid cached value; it must not force a
	// re-query on every read.
	store := &fakeArticleStore{}
	c := cache.NewMemory(time.Minute)
	defer c.Stop()
	agg := newTestAggregator(nil, nil, store, &fakeAdStore{}, &fakeClickStore{}, c)

	for i := 0; i < 3; i++ {
		page, err := agg.GetPage(context.Background(), models.FilterParams{Page: 1})
		if err != nil {
			t.Fatalf("GetPage() error = %v", err)
		}
		if page.TotalCount != 0 {
			t.Errorf("TotalCount = %d, want 0", page.TotalCount)
		}
	}
	if store.calls != 1 {
		t.Errorf("store queried %d times, want 1 (empty list cached)", store.calls)
	}
}

func TestGetPageCachedEmptyListJSONRoundtrip(t *testing.T) {
	store := &fakeArticleStore{}
	agg := newTestAggregator(nil, nil, store, &fakeAdStore{}, &fakeClickStore{}, &decodedCache{value: []interface{}{}})

	if _, err := agg.GetPage(context.Background(), models.FilterParams{Page: 1}); err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if store.calls != 0 {
		t.Errorf("store queried %d times, want 0 (cached empty list is a hit)", store.calls)
	}
}

func TestGetPopular(t *testing.T) {
	store := &fakeArticleStore{articles: storedArticles(3)}
	clicks := &fakeClickStore{events: []int64{1, 2, 1, 1, 2, 1, 1}}
	agg := newTestAggregator(nil, nil, store, &fakeAdStore{}, clicks, nil)

	popular, err := agg.GetPopular(context.Background())
	if err != nil {
		t.Fatalf("GetPopular() error = %v", err)
	}
	if len(popular) != 2 {
		t.Fatalf("len(popular) = %d, want 2", len(popular))
	}
	if popular[0].Clicks != 5 || popular[1].Clicks != 2 {
		t.Errorf("clicks = [%d, %d], want [5, 2]", popular[0].Clicks, popular[1].Clicks)
	}
}

func TestGetPopularNoClicks(t *testing.T) {
	agg := newTestAggregator(nil, nil, &fakeArticleStore{}, &fakeAdStore{}, &fakeClickStore{}, nil)

	popular, err := agg.GetPopular(context.Background())
	if err != nil {
		t.Fatalf("GetPopular() error = %v", err)
	}
	if len(popular) != 0 {
		t.Errorf("len(popular) = %d, want 0", len(popular))
	}
}

func TestGetPopularErrorPropagates(t *testing.T) {
	clicks := &fakeClickStore{err: errors.New("clicks table missing")}
	agg := newTestAggregator(nil, nil, &fakeArticleStore{}, &fakeAdStore{}, clicks, nil)

	if _, err := agg.GetPopular(context.Background()); err == nil {
		t.Error("GetPopular() error = nil, want click read failure")
	}
}

func TestGetTextAds(t *testing.T) {
	ads := &fakeAdStore{ads: []models.Advertisement{
		{ID: 1, Type: models.AdTypeText, IsActive: true},
		{ID: 2, Type: models.AdTypeImage, IsActive: true},
	}}
	agg := newTestAggregator(nil, nil, &fakeArticleStore{}, ads, &fakeClickStore{}, nil)

	got, err := agg.GetTextAds(context.Background())
	if err != nil {
		t.Fatalf("GetTextAds() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("GetTextAds() = %+v, want only the text ad", got)
	}
}

func TestGetSources(t *testing.T) {
	fetchers := []sources.Fetcher{
		&fakeFetcher{name: "tech feed", category: "tech"},
		&fakeFetcher{name: "sports feed", category: "sports"},
	}
	agg := newTestAggregator(fetchers, nil, &fakeArticleStore{}, &fakeAdStore{}, &fakeClickStore{}, nil)

	infos := agg.GetSources()
	if len(infos) != 2 {
		t.Fatalf("GetSources() returned %d, want 2", len(infos))
	}
	if infos[0].Name != "tech feed" || infos[1].Name != "sports feed" {
		t.Errorf("GetSources() = %+v", infos)
	}
}
