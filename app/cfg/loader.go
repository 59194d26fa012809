package cfg

import (
	"cmp"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

const (
	StoreSQLite        = "sqlite"
	StoreMongo         = "mongo"
	StoreElasticsearch = "elasticsearch"
	StoreMemory        = "memory"
)

// MaxRetriesLimit bounds the per-source attempt budget so one unreachable
// source cannot stall a cycle for hours.
const MaxRetriesLimit = 10

type rawCfg struct {
	// Sources and polling
	SourcesFile          string        `long:"sources" env:"SOURCES_FILE" default:"./sources.yml" description:"YAML document listing the sources to poll"`
	PollInterval         time.Duration `long:"poll-interval" env:"POLL_INTERVAL" description:"Override of the poll interval from the sources file (e.g. 5m)"`
	RequestTimeout       time.Duration `long:"request-timeout" env:"REQUEST_TIMEOUT" default:"30s" description:"Per-attempt timeout for outbound requests"`
	MaxRetries           int           `long:"max-retries" env:"MAX_RETRIES" default:"3" description:"Total fetch attempts per source and cycle"`
	MaxConcurrentSources int           `long:"max-concurrent-sources" env:"MAX_CONCURRENT_SOURCES" default:"0" description:"Limit on sources polled in parallel (0 = unlimited)"`
	Once                 bool          `long:"once" env:"ONCE" description:"Run a single poll cycle and exit"`

	// Existence oracle / ledger
	Store              string `long:"store" env:"STORE" default:"sqlite" choice:"sqlite" choice:"mongo" choice:"elasticsearch" choice:"memory" description:"Ledger used as the existence oracle"`
	DBPath             string `long:"db-path" env:"DB_PATH" default:"./news.db" description:"SQLite ledger path"`
	MongoURI           string `long:"mongo-uri" env:"MONGO_URI" default:"mongodb://localhost:27017" description:"MongoDB connection URI"`
	MongoDatabase      string `long:"mongo-database" env:"MONGO_DATABASE" default:"news_comb" description:"MongoDB database name"`
	ElasticsearchAddr  string `long:"es-addr" env:"ELASTICSEARCH_ADDR" default:"http://localhost:9200" description:"Elasticsearch address"`
	ElasticsearchIndex string `long:"es-index" env:"ELASTICSEARCH_INDEX" default:"news_items" description:"Elasticsearch index name"`

	// Forwarding
	BackendURL      string `long:"backend-url" env:"BACKEND_URL" description:"Base URL of the persistence backend (optional)"`
	BackendEndpoint string `long:"backend-endpoint" env:"BACKEND_ENDPOINT" default:"/test/save_news" description:"Save endpoint path on the backend"`
	KafkaBrokers    string `long:"kafka-brokers" env:"KAFKA_BROKERS" description:"Comma-separated Kafka brokers for publishing forwarded items (optional)"`
	KafkaTopic      string `long:"kafka-topic" env:"KAFKA_TOPIC" default:"news-items" description:"Kafka topic for forwarded items"`

	// Enrichment and audit
	AuditDir       string  `long:"audit-dir" env:"AUDIT_DIR" description:"Directory for raw/processed JSONL audit logs (optional)"`
	ExtractContent bool    `long:"extract-content" env:"EXTRACT_CONTENT" description:"Backfill missing text and images from article pages"`
	EnrichRPS      float64 `long:"enrich-rps" env:"ENRICH_RPS" default:"2" description:"Rate limit for article page requests"`

	// Status server
	Port         string `long:"port" env:"PORT" default:"9090" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://news.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"News Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses the given arguments; nil means os.Args.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.MaxRetries < 1 || raw.MaxRetries > MaxRetriesLimit {
		return nil, fmt.Errorf("max-retries must be between 1 and %d, got %d", MaxRetriesLimit, raw.MaxRetries)
	}
	if raw.RequestTimeout <= 0 {
		return nil, fmt.Errorf("request-timeout must be positive, got %s", raw.RequestTimeout)
	}
	if raw.MaxConcurrentSources < 0 {
		return nil, fmt.Errorf("max-concurrent-sources must not be negative")
	}
	if raw.PollInterval < 0 {
		return nil, fmt.Errorf("poll-interval must not be negative")
	}

	cfg := &Cfg{
		SourcesFile:          raw.SourcesFile,
		PollInterval:         raw.PollInterval,
		RequestTimeout:       raw.RequestTimeout,
		MaxRetries:           raw.MaxRetries,
		MaxConcurrentSources: raw.MaxConcurrentSources,
		Once:                 raw.Once,
		Store:                raw.Store,
		DBPath:               raw.DBPath,
		MongoURI:             raw.MongoURI,
		MongoDatabase:        raw.MongoDatabase,
		ElasticsearchAddr:    raw.ElasticsearchAddr,
		ElasticsearchIndex:   raw.ElasticsearchIndex,
		BackendURL:           strings.TrimRight(raw.BackendURL, "/"),
		BackendEndpoint:      raw.BackendEndpoint,
		KafkaBrokers:         splitList(raw.KafkaBrokers),
		KafkaTopic:           raw.KafkaTopic,
		AuditDir:             raw.AuditDir,
		ExtractContent:       raw.ExtractContent,
		EnrichRPS:            raw.EnrichRPS,
		Port:                 raw.Port,
		BaseUrl:              raw.BaseUrl,
		APIAccessKey:         raw.APIAccessKey,
		UserAgent:            raw.UserAgent,
		Timezone:             raw.Timezone,
		Debug:                raw.Debug,
		Version:              GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	return cfg, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func applyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	time.Local = loc
	return nil
}
