package sources

import (
	"context"
	"time"

	"github.com/newsfold/newsfold/internal/models"
)

// Fetcher retrieves and normalizes articles for one category feed.
type Fetcher interface {
	Name() string
	CategorySlug() string
	Fetch(ctx context.Context) ([]models.Article, error)
	SourceInfo() models.SourceInfo
}

// FetchResult is one branch of a fan-out refresh.
type FetchResult struct {
	Articles []models.Article
	Source   models.SourceInfo
	Error    error
}

// FetcherConfig bounds a single feed fetch.
type FetcherConfig struct {
	Timeout   time.Duration
	MaxItems  int
	UserAgent string
	// ProxyPrefix, when set, routes the request through an outbound
	// content-fetching proxy: prefix + url-encoded feed URL.
	ProxyPrefix string
}

// DefaultConfig caps each source at 10 items so one noisy feed cannot
// dominate storage.
func DefaultConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:   15 * time.Second,
		MaxItems:  10,
		UserAgent: "NewsfoldAggregator/1.0",
	}
}
