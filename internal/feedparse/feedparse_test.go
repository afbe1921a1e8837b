package feedparse

import (
	"errors"
	"testing"

	ext "github.com/mmcdole/gofeed/extensions"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Example Tech News</title>
    <link>https://example.com</link>
    <description>Technology headlines</description>
    <item>
      <title>First Story</title>
      <link>https://example.com/first</link>
      <guid>https://example.com/first</guid>
      <description>A short summary.</description>
      <content:encoded><![CDATA[<p>Full body with an <img src="https://example.com/a.jpg"> image.</p>]]></content:encoded>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
      <dc:creator>Jane Reporter</dc:creator>
      <media:thumbnail url="https://example.com/thumb.jpg"/>
      <enclosure url="https://example.com/audio.mp3" type="audio/mpeg" length="1024"/>
    </item>
    <item>
      <title>Second Story</title>
      <link>https://example.com/second</link>
      <pubDate>Tue, 03 Jan 2006 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Atom Feed</title>
  <link href="https://atom.example.com"/>
  <updated>2006-01-02T15:04:05Z</updated>
  <entry>
    <title>Atom Entry</title>
    <link href="https://atom.example.com/entry"/>
    <id>urn:uuid:1225c695-cfb8-4ebb-aaaa-80da344efa6a</id>
    <updated>2006-01-02T15:04:05Z</updated>
    <published>2006-01-02T15:04:05Z</published>
    <author><name>Alex Writer</name></author>
    <summary>An atom summary.</summary>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	meta, items, err := NewParser().Parse([]byte(sampleRSS))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if meta.Title != "Example Tech News" {
		t.Errorf("meta.Title = %q, want %q", meta.Title, "Example Tech News")
	}
	if meta.Link != "https://example.com" {
		t.Errorf("meta.Link = %q, want %q", meta.Link, "https://example.com")
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}

	first := items[0]
	if first.Title != "First Story" {
		t.Errorf("Title = %q, want %q", first.Title, "First Story")
	}
	if first.Link != "https://example.com/first" {
		t.Errorf("Link = %q, want %q", first.Link, "https://example.com/first")
	}
	if first.Author != "Jane Reporter" {
		t.Errorf("Author = %q, want %q", first.Author, "Jane Reporter")
	}
	if first.PublishedParsed == nil {
		t.Fatal("PublishedParsed = nil, want parsed time")
	}
	if got := first.PublishedParsed.UTC().Format("2006-01-02"); got != "2006-01-02" {
		t.Errorf("PublishedParsed date = %q, want %q", got, "2006-01-02")
	}
	if first.Content == "" {
		t.Error("Content is empty, want content:encoded body")
	}
	if len(first.Enclosures) != 1 || first.Enclosures[0].Type != "audio/mpeg" {
		t.Errorf("Enclosures = %+v, want one audio/mpeg entry", first.Enclosures)
	}
}

func TestParseAtom(t *testing.T) {
	meta, items, err := NewParser().Parse([]byte(sampleAtom))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if meta.Title != "Example Atom Feed" {
		t.Errorf("meta.Title = %q, want %q", meta.Title, "Example Atom Feed")
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	entry := items[0]
	if entry.Title != "Atom Entry" {
		t.Errorf("Title = %q, want %q", entry.Title, "Atom Entry")
	}
	if entry.Author != "Alex Writer" {
		t.Errorf("Author = %q, want %q", entry.Author, "Alex Writer")
	}
	if entry.PublishedParsed == nil {
		t.Error("PublishedParsed = nil, want parsed time")
	}
}

func TestParseUnrecognizedFormat(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"html page", "<html><body>not a feed</body></html>"},
		{"plain text", "definitely not xml"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, items, err := NewParser().Parse([]byte(tt.input))
			if !errors.Is(err, ErrUnrecognizedFormat) {
				t.Errorf("Parse() error = %v, want ErrUnrecognizedFormat", err)
			}
			if len(items) != 0 {
				t.Errorf("len(items) = %d, want 0", len(items))
			}
		})
	}
}

func TestExtensionURL(t *testing.T) {
	tests := []struct {
		name   string
		item   RawItem
		wantU  string
		wantOK bool
	}{
		{
			"url attribute wins",
			RawItem{Extensions: ext.Extensions{
				"media": {"thumbnail": {{Attrs: map[string]string{"url": "https://e.com/t.jpg"}, Value: "https://e.com/ignored.jpg"}}},
			}},
			"https://e.com/t.jpg", true,
		},
		{
			"falls back to element text",
			RawItem{Extensions: ext.Extensions{
				"media": {"thumbnail": {{Value: "https://e.com/text.jpg"}}},
			}},
			"https://e.com/text.jpg", true,
		},
		{
			"first of list wins",
			RawItem{Extensions: ext.Extensions{
				"media": {"thumbnail": {
					{Attrs: map[string]string{"url": "https://e.com/one.jpg"}},
					{Attrs: map[string]string{"url": "https://e.com/two.jpg"}},
				}},
			}},
			"https://e.com/one.jpg", true,
		},
		{"missing namespace", RawItem{}, "", false},
		{
			"empty attrs and value",
			RawItem{Extensions: ext.Extensions{
				"media": {"thumbnail": {{Attrs: map[string]string{"url": "  "}}}},
			}},
			"", false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, ok := tt.item.ExtensionURL("media", "thumbnail")
			if u != tt.wantU || ok != tt.wantOK {
				t.Errorf("ExtensionURL() = (%q, %v), want (%q, %v)", u, ok, tt.wantU, tt.wantOK)
			}
		})
	}
}
