package models

import "time"

// Article is the canonical record every publisher item is normalized into.
type Article struct {
	Title    string    `json:"title"`
	Excerpt  string    `json:"excerpt"`
	Image    string    `json:"image"`
	Category string    `json:"category"`
	Source   string    `json:"source"`
	Date     time.Time `json:"date"`
	Author   string    `json:"author"`
	URL      string    `json:"url"`
	IsAd     bool      `json:"isAd,omitempty"`
}

// StoredArticle is the persisted form of an Article. Slug is the natural
// upsert key: re-fetching the same source item reconciles to the same row.
type StoredArticle struct {
	ID               int64     `json:"id"`
	Slug             string    `json:"slug"`
	CategoryID       int64     `json:"categoryId"`
	Title            string    `json:"title"`
	Excerpt          string    `json:"excerpt"`
	Image            string    `json:"image"`
	OriginalImageURL string    `json:"originalImageUrl,omitempty"`
	Category         string    `json:"category"`
	Source           string    `json:"source"`
	Date             time.Time `json:"date"`
	Author           string    `json:"author"`
	URL              string    `json:"url"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ToArticle strips persistence-only fields for the reading pipeline.
func (s StoredArticle) ToArticle() Article {
	return Article{
		Title:    s.Title,
		Excerpt:  s.Excerpt,
		Image:    s.Image,
		Category: s.Category,
		Source:   s.Source,
		Date:     s.Date,
		Author:   s.Author,
		URL:      s.URL,
	}
}

// Category is static reference data keyed by slug.
type Category struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

const (
	AdTypeImage = "image"
	AdTypeText  = "text"
)

// Advertisement is managed by an external admin surface; the pipeline only
// reads active rows. Image ads carry ImageURL and Excerpt, text ads do not.
type Advertisement struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Excerpt    string    `json:"excerpt,omitempty"`
	SourceText string    `json:"sourceText"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	Type       string    `json:"type"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ClickCount is always derived from raw click-event rows, never persisted
// as an aggregate.
type ClickCount struct {
	ArticleID int64 `json:"articleId"`
	Count     int   `json:"count"`
}

// PopularArticle pairs an article with its aggregated click tally for the
// "most popular" sidebar.
type PopularArticle struct {
	Article
	Clicks int `json:"clicks"`
}

// FilterParams selects and pages the reading feed. Category "all" (or empty)
// bypasses the category filter.
type FilterParams struct {
	Category string `json:"category"`
	Query    string `json:"query"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

// Page is the client-visible slice of the aggregated feed.
type Page struct {
	Articles   []Article `json:"articles"`
	TotalCount int       `json:"totalCount"`
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
	FetchedAt  time.Time `json:"fetchedAt"`
}
