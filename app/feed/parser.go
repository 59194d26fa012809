package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses an RSS/Atom/JSON feed payload into raw entries.
func (p *Parser) Run(data []byte) ([]RawEntry, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		salvaged, ok := p.salvage(data)
		if !ok {
			return nil, fmt.Errorf("failed to parse feed: %w", err)
		}
		slog.Warn("Feed truncated, keeping complete items", "items", len(salvaged.Items), "error", err)
		parsed = salvaged
	}

	entries := make([]RawEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, p.toRawEntry(item))
	}

	return entries, nil
}

// truncatedFeedClosers maps the last complete element of a cut-off feed to
// the tags that close its document.
var truncatedFeedClosers = []struct {
	last   []byte
	closer []byte
}{
	{[]byte("</item>"), []byte("</channel></rss>")},
	{[]byte("</entry>"), []byte("</feed>")},
}

// salvage re-parses a feed cut off mid-document up to its last complete
// item, so a truncated response still yields the items before the cut.
func (p *Parser) salvage(data []byte) (*gofeed.Feed, bool) {
	for _, c := range truncatedFeedClosers {
		idx := bytes.LastIndex(data, c.last)
		if idx < 0 {
			continue
		}

		repaired := make([]byte, 0, idx+len(c.last)+len(c.closer))
		repaired = append(repaired, data[:idx+len(c.last)]...)
		repaired = append(repaired, c.closer...)

		parsed, err := p.gofeedParser.Parse(bytes.NewReader(repaired))
		if err == nil && len(parsed.Items) > 0 {
			return parsed, true
		}
	}
	return nil, false
}

func (p *Parser) toRawEntry(item *gofeed.Item) RawEntry {
	entry := RawEntry{
		Title:           item.Title,
		Link:            cmp.Or(item.Link, firstNonEmpty(item.Links)),
		Published:       item.Published,
		Updated:         item.Updated,
		PublishedParsed: item.PublishedParsed,
		UpdatedParsed:   item.UpdatedParsed,
		Tags:            PlainTags(item.Categories...),
		ImageURL:        p.extractImage(item),
	}

	// gofeed folds content:encoded into Content, so ContentEncoded stays empty.
	if item.Content != "" {
		entry.Content = Wrapped(item.Content)
	}

	if item.Description != "" {
		entry.SummaryDetail = Wrapped(item.Description)
		entry.Summary = Scalar(item.Description)
		entry.Description = Scalar(item.Description)
	}

	if v := extensionText(item.Extensions, "yandex", "full-text"); v != "" {
		entry.YandexFulltext = Scalar(v)
	}
	if v := item.Custom["fulltext"]; v != "" {
		entry.Fulltext = Scalar(v)
	}
	if v := item.Custom["body"]; v != "" {
		entry.Body = Scalar(v)
	}

	if item.ITunesExt != nil && item.ITunesExt.Subtitle != "" {
		entry.Subtitle = Scalar(item.ITunesExt.Subtitle)
	} else if v := item.Custom["subtitle"]; v != "" {
		entry.Subtitle = Scalar(v)
	}

	return entry
}

func (p *Parser) extractImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	for _, enclosure := range item.Enclosures {
		if enclosure != nil && strings.HasPrefix(enclosure.Type, "image/") {
			return enclosure.URL
		}
	}

	return ""
}

func extensionText(extensions ext.Extensions, prefix, name string) string {
	byName, ok := extensions[prefix]
	if !ok {
		return ""
	}
	values := byName[name]
	if len(values) == 0 {
		return ""
	}
	return values[0].Value
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
