package cfg

import "time"

type Cfg struct {
	// Sources and polling
	SourcesFile          string
	PollInterval         time.Duration
	RequestTimeout       time.Duration
	MaxRetries           int
	MaxConcurrentSources int
	Once                 bool

	// Existence oracle / ledger
	Store              string
	DBPath             string
	MongoURI           string
	MongoDatabase      string
	ElasticsearchAddr  string
	ElasticsearchIndex string

	// Forwarding
	BackendURL      string
	BackendEndpoint string
	KafkaBrokers    []string
	KafkaTopic      string

	// Enrichment and audit
	AuditDir       string
	ExtractContent bool
	EnrichRPS      float64

	// Status server
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
