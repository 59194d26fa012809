package feed

import (
	"strings"
	"testing"
	"time"
)

func newTestGenerator() *Generator {
	g := NewGenerator()
	g.now = func() time.Time { return time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC) }
	return g
}

func TestGenerateRSS(t *testing.T) {
	generator := newTestGenerator()

	channel := Channel{
		SourceName: "wire",
		Endpoint:   "https://example.com/feed.xml",
		SelfURL:    "http://localhost:9090/feeds/wire",
		Generator:  "News-Comb/test",
	}

	items := []Item{
		{
			Header:      "Test Item 1",
			Text:        "Test Item 1 Text",
			PublishedAt: time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC),
			Hashtags:    []string{"technology", "programming"},
			SourceName:  "wire",
			URL:         "https://example.com/item1",
			ImageURL:    "https://example.com/item1.png?size=large",
		},
		{
			Header:      "Test Item 2",
			PublishedAt: time.Date(2023, 7, 2, 10, 0, 0, 0, time.UTC),
			SourceName:  "wire",
		},
	}

	rss, err := generator.Run(channel, items)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<rss version="2.0"`,
		`xmlns:atom="http://www.w3.org/2005/Atom"`,
		"<title>wire</title>",
		"<link>https://example.com/feed.xml</link>",
		"<description>Items forwarded from wire</description>",
		`<atom:link href="http://localhost:9090/feeds/wire" rel="self" type="application/rss+xml" />`,
		"<lastBuildDate>Mon, 03 Jul 2023 10:00:00 +0000</lastBuildDate>",
		"<generator>News-Comb/test</generator>",
		"<title>Test Item 1</title>",
		"<link>https://example.com/item1</link>",
		`<guid isPermaLink="true">https://example.com/item1</guid>`,
		"<description>Test Item 1 Text</description>",
		"<category>technology</category>",
		"<category>programming</category>",
		"<pubDate>Mon, 03 Jul 2023 10:00:00 +0000</pubDate>",
		`<enclosure url="https://example.com/item1.png?size=large" length="0" type="image/png" />`,
		"<title>Test Item 2</title>",
		"<description>No description available</description>",
		"</channel>",
		"</rss>",
	}

	for _, want := range expected {
		if !strings.Contains(rss, want) {
			t.Errorf("RSS should contain %q", want)
		}
	}

	if strings.Count(rss, "<item>") != 2 {
		t.Errorf("Expected 2 items, got %d", strings.Count(rss, "<item>"))
	}
}

func TestGenerateWithEmptyItems(t *testing.T) {
	generator := newTestGenerator()

	rss, err := generator.Run(Channel{SourceName: "empty"}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if strings.Contains(rss, "<item>") {
		t.Error("RSS should not contain items")
	}
	if strings.Contains(rss, "<atom:link") {
		t.Error("RSS should not contain self link when none is configured")
	}
	if !strings.Contains(rss, "<lastBuildDate>Tue, 05 Mar 2024 00:00:00 +0000</lastBuildDate>") {
		t.Error("Expected lastBuildDate to fall back to the current time")
	}
	if !strings.Contains(rss, "<generator>News-Comb</generator>") {
		t.Error("Expected default generator name")
	}
}

func TestGenerateRequiresSourceName(t *testing.T) {
	if _, err := newTestGenerator().Run(Channel{}, nil); err == nil {
		t.Error("Expected error for missing source name")
	}
}

func TestGenerateWithSpecialCharacters(t *testing.T) {
	items := []Item{{
		Header:      `Tom & Jerry <"live">`,
		Text:        "5 > 3 & 2 < 4",
		PublishedAt: time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC),
		URL:         "https://example.com/?a=1&b=2",
	}}

	rss, err := newTestGenerator().Run(Channel{SourceName: "s&p"}, items)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	for _, want := range []string{
		"<title>s&amp;p</title>",
		"<title>Tom &amp; Jerry &lt;&#34;live&#34;&gt;</title>",
		"<description>5 &gt; 3 &amp; 2 &lt; 4</description>",
		"<link>https://example.com/?a=1&amp;b=2</link>",
	} {
		if !strings.Contains(rss, want) {
			t.Errorf("RSS should contain escaped %q", want)
		}
	}
}

func TestGeneratorImageType(t *testing.T) {
	g := NewGenerator()

	tests := []struct {
		url      string
		expected string
	}{
		{"https://example.com/a.png", "image/png"},
		{"https://example.com/a.GIF", "image/gif"},
		{"https://example.com/a.webp#frag", "image/webp"},
		{"https://example.com/image", "image/jpeg"},
		{"https://example.com/file.pdf", "image/jpeg"},
	}

	for _, tt := range tests {
		if got := g.imageType(tt.url); got != tt.expected {
			t.Errorf("imageType(%q) = %q, expected %q", tt.url, got, tt.expected)
		}
	}
}

func TestIsURLMethod(t *testing.T) {
	g := NewGenerator()

	if !g.isURL("https://example.com") || !g.isURL("http://example.com") {
		t.Error("Expected http(s) URLs to be recognized")
	}
	if g.isURL("urn:uuid:1234") || g.isURL("http:/") {
		t.Error("Expected non-URLs to be rejected")
	}
}
