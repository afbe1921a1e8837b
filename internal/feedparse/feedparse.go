// Package feedparse turns raw feed XML into a dialect-neutral item list.
// Publisher feeds mix RSS and Atom shapes, single-or-list extension elements,
// and attribute-vs-text values; everything downstream goes through the
// accessors here instead of poking at the parsed tree directly.
package feedparse

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// ErrUnrecognizedFormat marks input that is neither RSS nor Atom. Callers
// treat it as a structural warning, not a fatal condition.
var ErrUnrecognizedFormat = errors.New("unrecognized feed format")

// ChannelMeta is feed-level context used by the normalizer for source-name
// and date fallbacks.
type ChannelMeta struct {
	Title       string
	Link        string
	Description string
}

// Enclosure is a declared media attachment with its MIME type.
type Enclosure struct {
	URL  string
	Type string
}

// RawItem is one parsed feed entry before normalization. Extension elements
// keep attributes (Attrs) separate from element text (Value), so attribute
// keys can never collide with element keys of the same name.
type RawItem struct {
	Title           string
	Link            string
	GUID            string
	Description     string
	Content         string
	Published       string
	PublishedParsed *time.Time
	Author          string
	ImageURL        string
	Enclosures      []Enclosure
	Extensions      ext.Extensions
	Categories      []string
}

// Extension returns the first extension element for space:name, unwrapping
// the single-element-or-list ambiguity feeds exhibit.
func (it RawItem) Extension(space, name string) (ext.Extension, bool) {
	byName, ok := it.Extensions[space]
	if !ok {
		return ext.Extension{}, false
	}
	elems := byName[name]
	if len(elems) == 0 {
		return ext.Extension{}, false
	}
	return elems[0], true
}

// ExtensionURL resolves the URL carried by an extension element, preferring
// the url attribute over element text.
func (it RawItem) ExtensionURL(space, name string) (string, bool) {
	e, ok := it.Extension(space, name)
	if !ok {
		return "", false
	}
	if u := strings.TrimSpace(e.Attrs["url"]); u != "" {
		return u, true
	}
	if v := strings.TrimSpace(e.Value); v != "" {
		return v, true
	}
	return "", false
}

// Parser parses RSS and Atom documents into RawItems.
type Parser struct {
	inner *gofeed.Parser
}

func NewParser() *Parser {
	// gofeed decodes with encoding/xml, which does not expand external
	// entities; feed XML is untrusted input.
	return &Parser{inner: gofeed.NewParser()}
}

// Parse parses feed XML. Input that is neither RSS nor Atom yields
// ErrUnrecognizedFormat with an empty item list.
func (p *Parser) Parse(data []byte) (ChannelMeta, []RawItem, error) {
	feed, err := p.inner.Parse(bytes.NewReader(data))
	if err != nil {
		return ChannelMeta{}, nil, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
	}

	meta := ChannelMeta{
		Title:       feed.Title,
		Link:        feed.Link,
		Description: feed.Description,
	}

	items := make([]RawItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		items = append(items, convertItem(item))
	}
	return meta, items, nil
}

func convertItem(item *gofeed.Item) RawItem {
	raw := RawItem{
		Title:           item.Title,
		Link:            item.Link,
		GUID:            item.GUID,
		Description:     item.Description,
		Content:         item.Content,
		Published:       item.Published,
		PublishedParsed: item.PublishedParsed,
		Extensions:      item.Extensions,
		Categories:      item.Categories,
	}

	// gofeed folds dc:creator into Author for RSS and author for Atom.
	if item.Author != nil {
		raw.Author = item.Author.Name
	}
	if item.Image != nil {
		raw.ImageURL = item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		raw.Enclosures = append(raw.Enclosures, Enclosure{URL: enc.URL, Type: enc.Type})
	}
	return raw
}
