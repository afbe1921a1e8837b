// Package normalize maps one raw feed item plus category context into the
// canonical Article record. It is a pure function over its inputs: no I/O.
package normalize

import (
	"errors"
	"strings"

	"github.com/newsfold/newsfold/internal/feedimage"
	"github.com/newsfold/newsfold/internal/feedparse"
	"github.com/newsfold/newsfold/internal/models"
	"github.com/newsfold/newsfold/internal/textutil"
)

// Drop reasons. Items failing these are filtered out of the batch; the
// caller decides how loudly to log each.
var (
	ErrMissingTitle = errors.New("item has no title")
	ErrMissingURL   = errors.New("item has no link or guid URL")
	// ErrInvalidDate flags a missing or unparseable publication date.
	// Substituting "now" would corrupt recency ranking, so the item is
	// excluded instead.
	ErrInvalidDate = errors.New("item has no parseable publication date")
)

// UnknownAuthor is used when neither the item nor the source names one.
const UnknownAuthor = "unknown"

// Config is immutable lookup data, passed in explicitly (no package-level
// registries) so deployments can override it.
type Config struct {
	// SourceNames maps a category slug to the display name of its known
	// publisher.
	SourceNames   map[string]string
	ExcerptLength int
}

func DefaultConfig() Config {
	return Config{
		SourceNames:   map[string]string{},
		ExcerptLength: textutil.DefaultExcerptLength,
	}
}

type Normalizer struct {
	images *feedimage.Resolver
	cfg    Config
}

func New(images *feedimage.Resolver, cfg Config) *Normalizer {
	if cfg.ExcerptLength <= 0 {
		cfg.ExcerptLength = textutil.DefaultExcerptLength
	}
	return &Normalizer{images: images, cfg: cfg}
}

// Normalize converts a raw item into an Article. A nil Article with a
// non-nil error means the item must be dropped from the batch.
func (n *Normalizer) Normalize(item feedparse.RawItem, categorySlug string, meta feedparse.ChannelMeta) (*models.Article, error) {
	title := strings.TrimSpace(textutil.DecodeEntities(item.Title))
	if title == "" {
		return nil, ErrMissingTitle
	}

	url := canonicalURL(item)
	if url == "" {
		return nil, ErrMissingURL
	}

	if item.PublishedParsed == nil {
		return nil, ErrInvalidDate
	}

	// content:encoded (mapped to Content for RSS) wins over description.
	body := item.Content
	if strings.TrimSpace(body) == "" {
		body = item.Description
	}
	excerpt := textutil.CleanExcerpt(body, n.cfg.ExcerptLength)

	source := n.sourceName(categorySlug, meta)

	author := strings.TrimSpace(item.Author)
	if author == "" {
		author = source
	}
	if author == "" {
		author = UnknownAuthor
	}

	return &models.Article{
		Title:    title,
		Excerpt:  excerpt,
		Image:    n.images.Resolve(item, categorySlug),
		Category: categorySlug,
		Source:   source,
		Date:     item.PublishedParsed.UTC(),
		Author:   author,
		URL:      url,
	}, nil
}

// canonicalURL prefers the item link; a GUID only counts when it is itself
// an absolute URL, since many feeds use opaque GUIDs.
func canonicalURL(item feedparse.RawItem) string {
	if u := strings.TrimSpace(item.Link); u != "" {
		return u
	}
	guid := strings.TrimSpace(item.GUID)
	if strings.HasPrefix(guid, "http://") || strings.HasPrefix(guid, "https://") {
		return guid
	}
	return ""
}

func (n *Normalizer) sourceName(categorySlug string, meta feedparse.ChannelMeta) string {
	if name, ok := n.cfg.SourceNames[categorySlug]; ok && name != "" {
		return name
	}
	if t := strings.TrimSpace(textutil.DecodeEntities(meta.Title)); t != "" {
		return t
	}
	return categorySlug
}
