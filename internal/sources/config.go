package sources

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/newsfold/newsfold/internal/logging"
	"github.com/newsfold/newsfold/internal/normalize"
	"github.com/newsfold/newsfold/internal/ratelimit"
)

// FeedSource is a single feed source from config. Category is the slug the
// fetched articles are filed under.
type FeedSource struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Category string `json:"category"`
	Enabled  bool   `json:"enabled"`
}

// FeedsConfig holds the feeds configuration
type FeedsConfig struct {
	Sources []FeedSource `json:"sources"`
}

// LoadFeedsConfig loads feed sources from a JSON config file
func LoadFeedsConfig(configPath string) (*FeedsConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds config: %w", err)
	}

	var config FeedsConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse feeds config: %w", err)
	}

	return &config, nil
}

// FindFeedsConfig searches for feeds.json in common locations
func FindFeedsConfig() string {
	locations := []string{
		"feeds.json",
		"./feeds.json",
		"../feeds.json",
		"/app/feeds.json",
		"config/feeds.json",
	}

	if envPath := os.Getenv("FEEDS_CONFIG_PATH"); envPath != "" {
		locations = append([]string{envPath}, locations...)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			absPath, _ := filepath.Abs(loc)
			return absPath
		}
	}

	return ""
}

// CreateFetchersFromConfig creates fetchers for every enabled source.
func CreateFetchersFromConfig(config *FeedsConfig, normalizer *normalize.Normalizer, limiter *ratelimit.Limiter, fetcherConfig FetcherConfig, logger *logging.Logger) []Fetcher {
	fetchers := make([]Fetcher, 0, len(config.Sources))

	for _, source := range config.Sources {
		if !source.Enabled || source.URL == "" || source.Category == "" {
			continue
		}
		fetchers = append(fetchers, NewRSSFetcher(source.Name, source.URL, source.Category, normalizer, limiter, fetcherConfig, logger))
	}

	return fetchers
}

// GetDefaultFeedsConfig returns a default configuration when no config file
// is found.
func GetDefaultFeedsConfig() *FeedsConfig {
	return &FeedsConfig{
		Sources: []FeedSource{
			{Name: "TechCrunch", URL: "https://techcrunch.com/feed/", Category: "tech", Enabled: true},
			{Name: "BBC Business", URL: "https://feeds.bbci.co.uk/news/business/rss.xml", Category: "business", Enabled: true},
			{Name: "ESPN", URL: "https://www.espn.com/espn/rss/news", Category: "sports", Enabled: true},
			{Name: "ScienceDaily", URL: "https://www.sciencedaily.com/rss/all.xml", Category: "science", Enabled: true},
			{Name: "BBC World", URL: "https://feeds.bbci.co.uk/news/world/rss.xml", Category: "world", Enabled: true},
			{Name: "The Guardian Culture", URL: "https://www.theguardian.com/culture/rss", Category: "culture", Enabled: true},
		},
	}
}

// DefaultSourceNames maps category slugs to the display names of their
// default publishers, used by the normalizer when the channel title is
// missing or unhelpful.
func DefaultSourceNames() map[string]string {
	return map[string]string{
		"tech":     "TechCrunch",
		"business": "BBC Business",
		"sports":   "ESPN",
		"science":  "ScienceDaily",
		"world":    "BBC World",
		"culture":  "The Guardian",
	}
}
