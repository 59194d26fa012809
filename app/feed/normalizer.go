package feed

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// isoLayouts are tried in order; zone-less layouts are interpreted as UTC.
var isoLayouts = []struct {
	layout string
	naive  bool
}{
	{"2006-01-02T15:04:05.999999999Z07:00", false},
	{"2006-01-02 15:04:05.999999999Z07:00", false},
	{"2006-01-02T15:04:05.999999999-0700", false},
	{"2006-01-02T15:04Z07:00", false},
	{"2006-01-02T15:04:05.999999999", true},
	{"2006-01-02 15:04:05.999999999", true},
	{"2006-01-02T15:04", true},
	{"2006-01-02", true},
}

type Normalizer struct {
	now func() time.Time
}

func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewNormalizerWithClock is used by tests that need a fixed "now".
func NewNormalizerWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Run converts one raw entry into a canonical item. It never fails: every
// missing or malformed field degrades to a safe default.
func (n *Normalizer) Run(entry RawEntry, sourceName string) Item {
	return Item{
		Header:      NormalizeHeader(entry.Title),
		Text:        NormalizeText(n.extractText(entry)),
		PublishedAt: n.resolveDate(entry),
		Hashtags:    n.extractHashtags(entry),
		SourceName:  sourceName,
		URL:         entry.Link,
		ImageURL:    entry.ImageURL,
	}
}

func NormalizeHeader(title string) string {
	header := html.UnescapeString(title)
	header = strings.Join(strings.Fields(header), " ")
	return truncateRunes(header, HeaderMaxLen)
}

func NormalizeText(raw string) string {
	if raw == "" {
		return ""
	}
	text := tagPattern.ReplaceAllString(raw, " ")
	text = html.UnescapeString(text)
	text = strings.TrimSpace(text)
	return truncateRunes(text, TextMaxLen)
}

func (n *Normalizer) extractText(entry RawEntry) string {
	candidates := []Field{
		entry.Content,
		entry.ContentEncoded,
		entry.SummaryDetail,
		entry.Summary,
		entry.Description,
		entry.YandexFulltext,
		entry.Fulltext,
		entry.Subtitle,
		entry.Body,
	}

	for _, candidate := range candidates {
		if text := candidate.Value(); strings.TrimSpace(text) != "" {
			return text
		}
	}

	return ""
}

func (n *Normalizer) resolveDate(entry RawEntry) time.Time {
	for _, parsed := range []*time.Time{entry.PublishedParsed, entry.UpdatedParsed} {
		if parsed != nil && !parsed.IsZero() {
			return parsed.UTC()
		}
	}

	candidates := []struct {
		name  string
		value string
	}{
		{"published", entry.Published},
		{"pubDate", entry.PubDate},
		{"updated", entry.Updated},
	}

	for _, c := range candidates {
		if c.value == "" {
			continue
		}
		if t, ok := ParseISOTime(c.value); ok {
			return t
		}
		slog.Debug("Unparseable date field", "field", c.name, "value", c.value)
	}

	return n.now().UTC()
}

// ParseISOTime parses an ISO-8601 timestamp. Naive values are taken as UTC,
// offset-aware values are converted to UTC.
func ParseISOTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, l := range isoLayouts {
		if l.naive {
			if t, err := time.ParseInLocation(l.layout, value, time.UTC); err == nil {
				return t.UTC(), true
			}
			continue
		}
		if t, err := time.Parse(l.layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func (n *Normalizer) extractHashtags(entry RawEntry) []string {
	tags := entry.Tags
	if len(tags) == 0 {
		tags = entry.Category
	}

	// Casers are stateful, so one per call.
	lower := cases.Lower(language.Und)

	hashtags := make([]string, 0, min(len(tags), HashtagMax))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		term := tag.Term
		if term == "" {
			term = tag.Label
		}
		term = lower.String(strings.TrimSpace(term))
		if term != "" && !seen[term] {
			seen[term] = true
			hashtags = append(hashtags, term)
		}
		if len(hashtags) >= HashtagMax {
			break
		}
	}

	return hashtags
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
