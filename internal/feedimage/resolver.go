// Package feedimage locates a usable image URL for a feed item by trying an
// ordered list of extraction strategies, falling back to a per-category
// default so callers always get a resolvable absolute URL.
package feedimage

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/newsfold/newsfold/internal/feedparse"
)

const mediaNamespace = "media"

var (
	absoluteURLPattern = regexp.MustCompile(`^https?://`)
	mediaTagPattern    = regexp.MustCompile(`<media:(?:content|thumbnail)[^>]+url=["']([^"']+)["']`)
	imgTagPattern      = regexp.MustCompile(`<img[^>]+src=["']([^"']+)["']`)
	imageURLPattern    = regexp.MustCompile(`(?i)https?://[^\s"'<>()]+\.(?:jpe?g|png|gif|webp)`)
)

// UpsizeRule rewrites a known low-resolution thumbnail path for one
// publisher. These are host-specific rules, never applied generically.
type UpsizeRule struct {
	HostContains string
	Old          string
	New          string
}

// Config holds the immutable lookup data the resolver needs. It is passed in
// explicitly rather than kept in package-level registries so deployments can
// override it and tests can construct their own.
type Config struct {
	// DefaultImages maps a category slug to its default image URL.
	DefaultImages map[string]string
	// FallbackImage is used when the category is unknown.
	FallbackImage string
	Upsizers      []UpsizeRule
}

// DefaultConfig returns the stock category defaults.
func DefaultConfig() Config {
	return Config{
		DefaultImages: map[string]string{
			"tech":     "https://images.unsplash.com/photo-1518770660439-4636190af475?w=800",
			"business": "https://images.unsplash.com/photo-1507679799987-c73779587ccf?w=800",
			"sports":   "https://images.unsplash.com/photo-1461896836934-ffe607ba8211?w=800",
			"science":  "https://images.unsplash.com/photo-1532094349884-543bc11b234d?w=800",
			"world":    "https://images.unsplash.com/photo-1526470608268-f674ce90ebd4?w=800",
			"culture":  "https://images.unsplash.com/photo-1499364615650-ec38552f4f34?w=800",
		},
		FallbackImage: "https://images.unsplash.com/photo-1504711434969-e33886168f5c?w=800",
		Upsizers: []UpsizeRule{
			// WordPress-style square thumbnails.
			{HostContains: "", Old: "-150x150.", New: "."},
			// BBC image CDN serves the width as a path segment.
			{HostContains: "ichef.bbci.co.uk", Old: "/240/", New: "/800/"},
		},
	}
}

// Resolver tries each extraction strategy in order; the first hit wins.
type Resolver struct {
	cfg        Config
	strategies []strategy
}

type strategy struct {
	name string
	fn   func(feedparse.RawItem) (string, bool)
}

func NewResolver(cfg Config) *Resolver {
	r := &Resolver{cfg: cfg}
	r.strategies = []strategy{
		{"media-content", mediaContentURL},
		{"media-thumbnail", r.mediaThumbnailURL},
		{"enclosure", enclosureImageURL},
		{"item-image", itemImageURL},
		{"embedded-markup", embeddedMarkupURL},
		{"image-extension-scan", imageExtensionScan},
	}
	return r
}

// Resolve returns a non-empty absolute image URL for the item. When no
// strategy produces one, the category default (or global fallback) is used.
func (r *Resolver) Resolve(item feedparse.RawItem, categorySlug string) string {
	for _, s := range r.strategies {
		if u, ok := s.fn(item); ok && absoluteURLPattern.MatchString(u) {
			return u
		}
	}
	if u, ok := r.cfg.DefaultImages[categorySlug]; ok && u != "" {
		return u
	}
	return r.cfg.FallbackImage
}

func mediaContentURL(item feedparse.RawItem) (string, bool) {
	return item.ExtensionURL(mediaNamespace, "content")
}

func (r *Resolver) mediaThumbnailURL(item feedparse.RawItem) (string, bool) {
	u, ok := item.ExtensionURL(mediaNamespace, "thumbnail")
	if !ok {
		return "", false
	}
	return r.upsize(u), true
}

// upsize applies publisher-specific thumbnail path rewrites.
func (r *Resolver) upsize(u string) string {
	for _, rule := range r.cfg.Upsizers {
		if rule.HostContains != "" && !strings.Contains(u, rule.HostContains) {
			continue
		}
		u = strings.Replace(u, rule.Old, rule.New, 1)
	}
	return u
}

func enclosureImageURL(item feedparse.RawItem) (string, bool) {
	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL, true
		}
	}
	return "", false
}

func itemImageURL(item feedparse.RawItem) (string, bool) {
	if item.ImageURL != "" {
		return item.ImageURL, true
	}
	return "", false
}

// embeddedMarkupURL scans the item's HTML fragments for the first <img src>
// or inline <media:content>/<media:thumbnail> URL. Content (content:encoded
// for RSS) is preferred over the plain description.
func embeddedMarkupURL(item feedparse.RawItem) (string, bool) {
	for _, fragment := range []string{item.Content, item.Description} {
		if fragment == "" {
			continue
		}
		if u, ok := firstImgSrc(fragment); ok {
			return u, true
		}
		if m := mediaTagPattern.FindStringSubmatch(fragment); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func firstImgSrc(fragment string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err == nil {
		if src, ok := doc.Find("img").First().Attr("src"); ok && src != "" {
			return src, true
		}
	}
	// The HTML parser chokes on some fragments; fall back to a direct scan
	// that also covers single-quoted attributes.
	if m := imgTagPattern.FindStringSubmatch(fragment); m != nil {
		return m[1], true
	}
	return "", false
}

// imageExtensionScan is the last resort: any absolute URL ending in a known
// image extension, anywhere in the item's text fields.
func imageExtensionScan(item feedparse.RawItem) (string, bool) {
	for _, fragment := range []string{item.Content, item.Description} {
		if m := imageURLPattern.FindString(fragment); m != "" {
			return m, true
		}
	}
	return "", false
}
