package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"mime"
	"path"
	"strings"
	"time"
)

// Channel describes the republished feed of one source.
type Channel struct {
	SourceName string
	Endpoint   string
	SelfURL    string
	Generator  string
}

type Generator struct {
	now func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// Run renders forwarded items of a source as an RSS 2.0 document. Items are
// expected newest first.
func (g *Generator) Run(channel Channel, items []Item) (string, error) {
	if channel.SourceName == "" {
		return "", fmt.Errorf("channel source name is required")
	}

	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", channel.SourceName, 4)
	g.writeElement(&buf, "link", channel.Endpoint, 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Items forwarded from %s", channel.SourceName), 4)

	if channel.SelfURL != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(channel.SelfURL)))
	}

	lastBuildDate := g.now().UTC()
	if len(items) > 0 && !items[0].PublishedAt.IsZero() {
		lastBuildDate = items[0].PublishedAt
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", cmp.Or(channel.Generator, "News-Comb"), 4)

	for _, item := range items {
		g.writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, item Item) {
	buf.WriteString("    <item>\n")

	if item.URL != "" {
		buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(item.URL)))
		xml.EscapeText(buf, []byte(item.URL))
		buf.WriteString("</guid>\n")
	}

	g.writeElement(buf, "title", item.Header, 6)
	g.writeElement(buf, "link", item.URL, 6)
	g.writeElement(buf, "description", cmp.Or(item.Text, "No description available"), 6)

	if !item.PublishedAt.IsZero() {
		g.writeElement(buf, "pubDate", item.PublishedAt.UTC().Format(time.RFC1123Z), 6)
	}

	for _, tag := range item.Hashtags {
		g.writeElement(buf, "category", tag, 6)
	}

	// RSS 2.0 requires url, length and type on an enclosure; the length
	// of a backfilled image is unknown.
	if item.ImageURL != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"%s\" />\n",
			html.EscapeString(item.ImageURL),
			html.EscapeString(g.imageType(item.ImageURL))))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func (g *Generator) imageType(imageURL string) string {
	if i := strings.IndexAny(imageURL, "?#"); i >= 0 {
		imageURL = imageURL[:i]
	}
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(imageURL))); strings.HasPrefix(t, "image/") {
		return t
	}
	return "image/jpeg"
}
