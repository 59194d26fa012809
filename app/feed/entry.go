package feed

import (
	"time"
)

type FieldKind int

const (
	FieldEmpty FieldKind = iota
	FieldScalar
	FieldWrapped
)

// Field is one text-bearing slot of a raw entry. Feeds deliver the same
// logical value either as a plain string or wrapped in a record with a
// value (e.g. the first element of a multi-representation content list).
type Field struct {
	kind  FieldKind
	value string
}

func Scalar(s string) Field {
	return Field{kind: FieldScalar, value: s}
}

func Wrapped(value string) Field {
	return Field{kind: FieldWrapped, value: value}
}

func (f Field) Kind() FieldKind {
	return f.kind
}

// Value returns the raw text carried by the field, "" for FieldEmpty.
func (f Field) Value() string {
	if f.kind == FieldEmpty {
		return ""
	}
	return f.value
}

func (f Field) IsEmpty() bool {
	return f.kind == FieldEmpty
}

type Tag struct {
	Term  string
	Label string
}

func PlainTags(values ...string) []Tag {
	tags := make([]Tag, 0, len(values))
	for _, v := range values {
		tags = append(tags, Tag{Term: v})
	}
	return tags
}

// RawEntry is a source-shaped entry before normalization.
type RawEntry struct {
	Title string
	Link  string

	Content        Field
	ContentEncoded Field
	SummaryDetail  Field
	Summary        Field
	Description    Field
	YandexFulltext Field
	Fulltext       Field
	Subtitle       Field
	Body           Field

	PublishedParsed *time.Time
	UpdatedParsed   *time.Time
	Published       string
	PubDate         string
	Updated         string

	Tags     []Tag
	Category []Tag

	ImageURL string
}

// Snapshot is the JSON-friendly subset of a raw entry kept in the audit log.
type Snapshot struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Published string `json:"published"`
	Updated   string `json:"updated"`
	Summary   string `json:"summary"`
	Content   string `json:"content"`
}

func (e RawEntry) Snapshot() Snapshot {
	summary := e.Summary.Value()
	if summary == "" {
		summary = e.Description.Value()
	}

	return Snapshot{
		Title:     e.Title,
		Link:      e.Link,
		Published: e.Published,
		Updated:   e.Updated,
		Summary:   summary,
		Content:   e.Content.Value(),
	}
}
