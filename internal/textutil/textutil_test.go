package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDecodeEntities(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"named entity", "Fish &amp; Chips", "Fish & Chips"},
		{"numeric entity", "caf&#233;", "café"},
		{"hex entity", "caf&#xE9;", "café"},
		{"quote entities", "&quot;hello&quot; &apos;world&apos;", `"hello" 'world'`},
		{"nbsp becomes space", "one&nbsp;two", "one two"},
		{"no entities", "plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeEntities(tt.input); got != tt.want {
				t.Errorf("DecodeEntities(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDecodeEntitiesIdempotent(t *testing.T) {
	inputs := []string{
		"Fish &amp; Chips",
		"a &lt; b &gt; c",
		"already decoded & plain",
		"caf&#233; society",
	}

	for _, in := range inputs {
		once := DecodeEntities(in)
		twice := DecodeEntities(once)
		if once != twice {
			t.Errorf("DecodeEntities not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestCleanExcerpt(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"empty", "", 100, ""},
		{"strips tags", "<p>Hello <b>world</b></p>", 100, "Hello world"},
		{"decodes entities", "<p>Fish &amp; Chips</p>", 100, "Fish & Chips"},
		{"collapses whitespace", "one\n\n  two\tthree", 100, "one two three"},
		{"unclosed tag", "text before <a href='x", 100, "text before"},
		{"malformed markup", "<div <span>broken</span>", 100, "broken"},
		{"truncates with ellipsis", "abcdefghij", 5, "abcde..."},
		{"entity-encoded tag stripped", "&lt;img src=x onerror=alert(1)&gt;see story", 150, "see story"},
		{"entity-encoded markup around text", "&lt;p&gt;Fish &amp;amp; Chips&lt;/p&gt;", 150, "Fish &amp; Chips"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanExcerpt(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("CleanExcerpt(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestCleanExcerptLengthBound(t *testing.T) {
	long := strings.Repeat("lorem ipsum dolor sit amet ", 20)
	maxLen := 150

	got := CleanExcerpt(long, maxLen)
	if n := utf8.RuneCountInString(got); n > maxLen+len(Ellipsis) {
		t.Errorf("CleanExcerpt length = %d runes, want at most %d", n, maxLen+len(Ellipsis))
	}
	if !strings.HasSuffix(got, Ellipsis) {
		t.Errorf("CleanExcerpt truncated output = %q, want %q suffix", got, Ellipsis)
	}
}

func TestCleanExcerptDefaultLength(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := CleanExcerpt(long, 0)
	want := strings.Repeat("x", DefaultExcerptLength) + Ellipsis
	if got != want {
		t.Errorf("CleanExcerpt with zero maxLen = %d chars, want %d", len(got), len(want))
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "Hello World", "hello-world"},
		{"punctuation collapsed", "Go 1.24: What's New?", "go-1-24-what-s-new"},
		{"diacritics folded", "Café Société", "cafe-societe"},
		{"leading trailing trimmed", "  --Breaking News--  ", "breaking-news"},
		{"already a slug", "already-a-slug", "already-a-slug"},
		{"empty", "", ""},
		{"only symbols", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSlugifyDeterministic(t *testing.T) {
	in := "Markets Rally as Fed Holds Rates"
	if a, b := Slugify(in), Slugify(in); a != b {
		t.Errorf("Slugify not deterministic: %q vs %q", a, b)
	}
}
