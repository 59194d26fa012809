package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/lysyi3m/news-comb/app/feed"
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "header":      {"type": "text", "fields": {"keyword": {"type": "keyword", "ignore_above": 512}}},
      "text":        {"type": "text"},
      "date":        {"type": "date"},
      "hashtags":    {"type": "keyword"},
      "source_name": {"type": "keyword"},
      "url":         {"type": "keyword"},
      "image_url":   {"type": "keyword", "index": false}
    }
  }
}`

// ElasticStore keeps items in an Elasticsearch index keyed by ItemKey.
// Save uses the create API, so a conflicting document id means the item
// already existed.
type ElasticStore struct {
	es    *elasticsearch.Client
	index string
}

var _ Store = (*ElasticStore)(nil)

func NewElasticStore(addr, index string) (*ElasticStore, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &ElasticStore{es: es, index: index}, nil
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (s *ElasticStore) EnsureIndex(ctx context.Context) error {
	res, err := s.es.Indices.Exists([]string{s.index}, s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index failed: %s", res.Status())
	}

	res, err = s.es.Indices.Create(s.index,
		s.es.Indices.Create.WithContext(ctx),
		s.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("create index failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

func (s *ElasticStore) Exists(ctx context.Context, header, source string) (bool, error) {
	res, err := s.es.Exists(s.index, ItemKey(header, source), s.es.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("check document: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("check document failed: %s", res.Status())
	}
}

func (s *ElasticStore) Save(ctx context.Context, item feed.Item) (bool, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.CreateRequest{
		Index:      s.index,
		DocumentID: ItemKey(item.Header, item.SourceName),
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, s.es)
	if err != nil {
		return false, fmt.Errorf("index doc: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusConflict {
		return false, nil
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return false, fmt.Errorf("index doc failed: %s", strings.TrimSpace(string(body)))
	}

	return true, nil
}
