package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/newsfold/newsfold/internal/feedparse"
	"github.com/newsfold/newsfold/internal/logging"
	"github.com/newsfold/newsfold/internal/models"
	"github.com/newsfold/newsfold/internal/normalize"
	"github.com/newsfold/newsfold/internal/ratelimit"
)

// maxFeedBody caps how much of a feed response we are willing to read.
const maxFeedBody = 10 << 20

// RSSFetcher fetches one publisher feed and normalizes its items into
// Articles for a single category.
type RSSFetcher struct {
	name       string
	url        string
	category   string
	client     *http.Client
	parser     *feedparse.Parser
	normalizer *normalize.Normalizer
	limiter    *ratelimit.Limiter
	config     FetcherConfig
	logger     *logging.Logger
}

func NewRSSFetcher(name, feedURL, category string, normalizer *normalize.Normalizer, limiter *ratelimit.Limiter, config FetcherConfig, logger *logging.Logger) *RSSFetcher {
	return &RSSFetcher{
		name:       name,
		url:        feedURL,
		category:   category,
		client:     &http.Client{},
		parser:     feedparse.NewParser(),
		normalizer: normalizer,
		limiter:    limiter,
		config:     config,
		logger:     logger,
	}
}

func (f *RSSFetcher) Name() string { return f.name }

func (f *RSSFetcher) CategorySlug() string { return f.category }

func (f *RSSFetcher) SourceInfo() models.SourceInfo {
	return models.SourceInfo{
		ID:          strings.ToLower(strings.ReplaceAll(f.name, " ", "-")),
		Name:        f.name,
		URL:         f.url,
		Category:    f.category,
		Description: "RSS feed from " + f.name,
		Enabled:     true,
	}
}

// Fetch performs one network round-trip, parses the feed, and returns at
// most MaxItems valid articles. Item order from the source is preserved up
// to the truncation; final display order is decided downstream.
func (f *RSSFetcher) Fetch(ctx context.Context) ([]models.Article, error) {
	if host := hostOf(f.url); host != "" {
		if err := f.limiter.Wait(ctx, host); err != nil {
			return nil, fmt.Errorf("fetch feed %s: %w", f.url, err)
		}
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	body, err := f.download(ctxWithTimeout)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", f.url, err)
	}

	meta, rawItems, err := f.parser.Parse(body)
	if err != nil {
		if errors.Is(err, feedparse.ErrUnrecognizedFormat) {
			f.logger.Warn("Unrecognized feed structure", logging.WithFields(map[string]interface{}{
				"source": f.name,
				"url":    f.url,
			}))
			return []models.Article{}, nil
		}
		return nil, fmt.Errorf("parse feed %s: %w", f.url, err)
	}

	articles := make([]models.Article, 0, f.config.MaxItems)
	for _, raw := range rawItems {
		if len(articles) >= f.config.MaxItems {
			break
		}
		article, err := f.normalizer.Normalize(raw, f.category, meta)
		if err != nil {
			if errors.Is(err, normalize.ErrInvalidDate) {
				// Data-quality defect worth surfacing; silently defaulting
				// the date would corrupt recency ranking.
				f.logger.Warn("Dropping item with bad publication date", logging.WithFields(map[string]interface{}{
					"source": f.name,
					"title":  raw.Title,
				}))
			} else {
				f.logger.Debug("Dropping invalid item", logging.WithFields(map[string]interface{}{
					"source": f.name,
					"reason": err.Error(),
				}))
			}
			continue
		}
		articles = append(articles, *article)
	}

	return articles, nil
}

func (f *RSSFetcher) download(ctx context.Context) ([]byte, error) {
	requestURL := f.url
	if f.config.ProxyPrefix != "" {
		requestURL = f.config.ProxyPrefix + url.QueryEscape(f.url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
