package feed

import (
	"fmt"
	"time"
)

const (
	HeaderMaxLen = 512
	TextMaxLen   = 50_000
	HashtagMax   = 20
)

// Item is the canonical, storage-ready representation of one news item.
type Item struct {
	Header      string    `json:"header"`
	Text        string    `json:"text"`
	PublishedAt time.Time `json:"date"` // always UTC
	Hashtags    []string  `json:"hashtags"`
	SourceName  string    `json:"source_name"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"image_url,omitempty"` // enrichment only
}

// Source configuration types

type SourceKind string

const (
	SourceKindRSS SourceKind = "rss"
	SourceKindAPI SourceKind = "api"
)

const DefaultGNewsEndpoint = "https://gnews.io/api/v4/top-headlines"

type SourceConfig struct {
	Name       string         `yaml:"name"`
	Kind       SourceKind     `yaml:"kind"`
	Endpoint   string         `yaml:"endpoint"`
	Params     map[string]any `yaml:"params"`
	Credential string         `yaml:"credential"`
	Enabled    bool           `yaml:"-"`
}

// Param returns params[key] rendered as a string, "" when absent.
func (s SourceConfig) Param(key string) string {
	v, ok := s.Params[key]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

// Token returns the API credential, falling back to params.api_token.
func (s SourceConfig) Token() string {
	if s.Credential != "" {
		return s.Credential
	}
	return s.Param("api_token")
}

// Catalog is the parsed sources document.
type Catalog struct {
	PollInterval time.Duration
	Sources      []SourceConfig
}

func (c Catalog) EnabledSources() []SourceConfig {
	enabled := make([]SourceConfig, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}
	return enabled
}
