package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/news-comb/app/feed"
)

func sampleItem() feed.Item {
	return feed.Item{
		Header:      "Markets rally",
		Text:        "Stocks rose.",
		PublishedAt: time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
		Hashtags:    []string{"business"},
		SourceName:  "wire",
		URL:         "https://news.example.com/a",
	}
}

func TestHTTPClientSavePayload(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/test/save_news", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(`{"created": true}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.Client(), server.URL+"/", "")

	created, err := client.Save(context.Background(), sampleItem())
	require.NoError(t, err)
	require.True(t, created)

	require.Equal(t, "Markets rally", received["title"])
	require.Equal(t, "Stocks rose.", received["body"])
	require.Equal(t, "wire", received["source"])
	require.Equal(t, []any{"business"}, received["hash_tags"])
	require.Equal(t, "2024-03-04T08:00:00Z", received["published_at"])
	require.Equal(t, "https://news.example.com/a", received["url"])
}

func TestHTTPClientEmptyHashtagsEncodeAsArray(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(`{"created": false}`))
	}))
	defer server.Close()

	item := sampleItem()
	item.Hashtags = nil

	created, err := NewHTTPClient(server.Client(), server.URL, "/custom").Save(context.Background(), item)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, []any{}, received["hash_tags"])
}

func TestHTTPClientFailuresMeanNotCreated(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"created status", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"created": true}`))
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			created, err := NewHTTPClient(server.Client(), server.URL, "").Save(context.Background(), sampleItem())
			require.Error(t, err)
			require.False(t, created)
		})
	}
}

func TestHTTPClientMissingCreatedField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	created, err := NewHTTPClient(server.Client(), server.URL, "").Save(context.Background(), sampleItem())
	require.NoError(t, err)
	require.False(t, created)
}

func TestHTTPClientTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	created, err := NewHTTPClient(&http.Client{Timeout: time.Second}, url, "").Save(context.Background(), sampleItem())
	require.Error(t, err)
	require.False(t, created)
}
