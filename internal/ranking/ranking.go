// Package ranking is the pure aggregation pipeline over stored articles:
// filter, dedupe, sort, ad interleaving, pagination, and click-derived
// popularity. It performs no I/O.
package ranking

import (
	"sort"
	"strings"
	"time"

	"github.com/newsfold/newsfold/internal/models"
)

const (
	// PageSize is the fixed reading-feed page size.
	PageSize = 10
	// AdInsertIndex is where image ads are spliced into the sorted list.
	// This repo uses the fixed-position interleaving policy: the first
	// image ad lands at index 3, subsequent ads one page apart, rather
	// than merging ads into the date sort.
	AdInsertIndex = 3
	// PopularLimit caps the "most popular" sidebar.
	PopularLimit = 10
	// CategoryAll bypasses the category filter.
	CategoryAll = "all"
	// SponsoredCategory marks interleaved ad entries.
	SponsoredCategory = "sponsored"
)

// Filter keeps articles matching the selected category and the free-text
// query (case-insensitive substring over title and excerpt).
func Filter(articles []models.Article, category, query string) []models.Article {
	byCategory := category != "" && !strings.EqualFold(category, CategoryAll)
	search := strings.ToLower(strings.TrimSpace(query))

	filtered := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if byCategory && !strings.EqualFold(a.Category, category) {
			continue
		}
		if search != "" {
			title := strings.ToLower(a.Title)
			excerpt := strings.ToLower(a.Excerpt)
			if !strings.Contains(title, search) && !strings.Contains(excerpt, search) {
				continue
			}
		}
		filtered = append(filtered, a)
	}
	return filtered
}

// Dedupe removes repeated articles by title+URL; the first occurrence wins
// and insertion order is preserved.
func Dedupe(articles []models.Article) []models.Article {
	seen := make(map[string]bool, len(articles))
	result := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		key := strings.ToLower(strings.TrimSpace(a.Title)) + "|" + a.URL
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, a)
	}
	return result
}

// SortByDate orders articles newest first, stably so dedupe order survives
// ties.
func SortByDate(articles []models.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].Date.After(articles[j].Date)
	})
}

// AdArticle converts an image advertisement into a synthetic Article entry
// for interleaving.
func AdArticle(ad models.Advertisement) models.Article {
	return models.Article{
		Title:    ad.Title,
		Excerpt:  ad.Excerpt,
		Image:    ad.ImageURL,
		Category: SponsoredCategory,
		Source:   ad.SourceText,
		Date:     ad.CreatedAt,
		Author:   ad.SourceText,
		URL:      ad.URL,
		IsAd:     true,
	}
}

// InterleaveAds splices active image ads into the sorted article list at
// fixed positions: the first at AdInsertIndex, each following ad one page
// further down. Text ads are never interleaved here; they belong to the
// sidebar list only.
func InterleaveAds(articles []models.Article, ads []models.Advertisement) []models.Article {
	result := articles
	position := AdInsertIndex
	for _, ad := range ads {
		if !ad.IsActive || ad.Type != models.AdTypeImage {
			continue
		}
		result = insertAt(result, AdArticle(ad), position)
		position += PageSize
	}
	return result
}

func insertAt(articles []models.Article, entry models.Article, index int) []models.Article {
	if index > len(articles) {
		index = len(articles)
	}
	result := make([]models.Article, 0, len(articles)+1)
	result = append(result, articles[:index]...)
	result = append(result, entry)
	result = append(result, articles[index:]...)
	return result
}

// TextAds returns the active text advertisements for the sidebar.
func TextAds(ads []models.Advertisement) []models.Advertisement {
	result := make([]models.Advertisement, 0)
	for _, ad := range ads {
		if ad.IsActive && ad.Type == models.AdTypeText {
			result = append(result, ad)
		}
	}
	return result
}

// Paginate slices the list into the requested page. Pages are 1-based;
// indices beyond the last page yield an empty slice, not an error.
func Paginate(articles []models.Article, page, pageSize int) models.Page {
	if pageSize <= 0 {
		pageSize = PageSize
	}
	if page < 1 {
		page = 1
	}

	total := len(articles)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start >= total {
		return models.Page{
			Articles:   []models.Article{},
			TotalCount: total,
			Page:       page,
			TotalPages: totalPages,
			FetchedAt:  time.Now(),
		}
	}

	end := start + pageSize
	if end > total {
		end = total
	}

	return models.Page{
		Articles:   articles[start:end],
		TotalCount: total,
		Page:       page,
		TotalPages: totalPages,
		FetchedAt:  time.Now(),
	}
}

// BuildPage runs the full reading-feed pipeline in its required order:
// filter, dedupe, sort, interleave, paginate.
func BuildPage(articles []models.Article, ads []models.Advertisement, params models.FilterParams) models.Page {
	filtered := Filter(articles, params.Category, params.Query)
	deduped := Dedupe(filtered)
	SortByDate(deduped)
	merged := InterleaveAds(deduped, ads)
	return Paginate(merged, params.Page, params.PageSize)
}

// TopByClicks aggregates raw click events into per-article counts and
// returns the top limit, count descending. Articles with zero recorded
// clicks never appear.
func TopByClicks(events []int64, limit int) []models.ClickCount {
	if limit <= 0 {
		limit = PopularLimit
	}

	tally := make(map[int64]int)
	order := make([]int64, 0)
	for _, id := range events {
		if tally[id] == 0 {
			order = append(order, id)
		}
		tally[id]++
	}

	counts := make([]models.ClickCount, 0, len(order))
	for _, id := range order {
		counts = append(counts, models.ClickCount{ArticleID: id, Count: tally[id]})
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})

	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}

// RankPopular joins top click counts with their stored articles, dedupes by
// URL, and keeps the count-descending order (not recency).
func RankPopular(counts []models.ClickCount, articles []models.StoredArticle) []models.PopularArticle {
	byID := make(map[int64]models.StoredArticle, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}

	seenURL := make(map[string]bool)
	result := make([]models.PopularArticle, 0, len(counts))
	for _, c := range counts {
		a, ok := byID[c.ArticleID]
		if !ok || seenURL[a.URL] {
			continue
		}
		seenURL[a.URL] = true
		result = append(result, models.PopularArticle{Article: a.ToArticle(), Clicks: c.Count})
		if len(result) >= PopularLimit {
			break
		}
	}
	return result
}
