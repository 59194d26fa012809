package feed

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPollInterval = 300 * time.Second

type rawCatalog struct {
	PollIntervalSeconds int         `yaml:"poll_interval_seconds"`
	Sources             []rawSource `yaml:"sources"`
}

// rawSource accepts both the current keys and the legacy ones
// (type, rss_url, api_token).
type rawSource struct {
	Name       string         `yaml:"name"`
	Kind       string         `yaml:"kind"`
	Type       string         `yaml:"type"`
	Endpoint   string         `yaml:"endpoint"`
	RSSURL     string         `yaml:"rss_url"`
	Params     map[string]any `yaml:"params"`
	Credential string         `yaml:"credential"`
	APIToken   string         `yaml:"api_token"`
	Enabled    *bool          `yaml:"enabled"`
}

// SourceCatalog holds the last successfully loaded sources document.
type SourceCatalog struct {
	path    string
	current Catalog
	loaded  bool
	mu      sync.RWMutex
}

func NewSourceCatalog(path string) *SourceCatalog {
	return &SourceCatalog{path: path}
}

// Reload re-reads the sources file. On failure the previously loaded
// catalog stays in effect and the error is returned.
func (sc *SourceCatalog) Reload() (Catalog, error) {
	data, err := os.ReadFile(sc.path)
	if err != nil {
		return sc.Current(), fmt.Errorf("failed to read sources file: %w", err)
	}

	catalog, err := ParseCatalog(data)
	if err != nil {
		return sc.Current(), fmt.Errorf("invalid sources file %s: %w", sc.path, err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.current = catalog
	sc.loaded = true

	slog.Debug("Sources loaded", "path", sc.path, "count", len(catalog.Sources), "poll_interval", catalog.PollInterval)

	return catalog, nil
}

func (sc *SourceCatalog) Current() Catalog {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.current
}

func (sc *SourceCatalog) Loaded() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.loaded
}

func ParseCatalog(data []byte) (Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if raw.PollIntervalSeconds < 0 {
		return Catalog{}, fmt.Errorf("poll interval must be non-negative")
	}

	catalog := Catalog{
		PollInterval: DefaultPollInterval,
		Sources:      make([]SourceConfig, 0, len(raw.Sources)),
	}
	if raw.PollIntervalSeconds > 0 {
		catalog.PollInterval = time.Duration(raw.PollIntervalSeconds) * time.Second
	}

	seen := make(map[string]bool, len(raw.Sources))
	for i, rs := range raw.Sources {
		name := strings.TrimSpace(rs.Name)
		if name == "" {
			slog.Warn("Skipping source without name", "index", i)
			continue
		}
		if seen[name] {
			slog.Warn("Skipping duplicate source", "source", name, "index", i)
			continue
		}
		seen[name] = true

		catalog.Sources = append(catalog.Sources, rs.toSourceConfig(name))
	}

	return catalog, nil
}

func (rs rawSource) toSourceConfig(name string) SourceConfig {
	kind := SourceKind(strings.ToLower(cmp.Or(rs.Kind, rs.Type, string(SourceKindRSS))))
	if kind == "gnews" {
		kind = SourceKindAPI
	}

	enabled := true
	if rs.Enabled != nil {
		enabled = *rs.Enabled
	}

	return SourceConfig{
		Name:       name,
		Kind:       kind,
		Endpoint:   cmp.Or(rs.Endpoint, rs.RSSURL),
		Params:     rs.Params,
		Credential: cmp.Or(rs.Credential, rs.APIToken),
		Enabled:    enabled,
	}
}

// Validate checks the per-kind requirements of a source.
func (s SourceConfig) Validate() error {
	switch s.Kind {
	case SourceKindRSS:
		if s.Endpoint == "" {
			return fmt.Errorf("endpoint is required for rss source")
		}
	case SourceKindAPI:
		if s.Token() == "" {
			return fmt.Errorf("credential is required for api source")
		}
	default:
		return fmt.Errorf("unknown source kind %q", s.Kind)
	}
	return nil
}
