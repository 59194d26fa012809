package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeElastic is a minimal document store speaking the subset of the REST
// API the store uses.
type fakeElastic struct {
	mu      sync.Mutex
	indices map[string]bool
	docs    map[string]json.RawMessage
}

func newFakeElastic() *fakeElastic {
	return &fakeElastic{indices: map[string]bool{}, docs: map[string]json.RawMessage{}}
}

func (f *fakeElastic) hasIndex(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indices[name]
}

func (f *fakeElastic) doc(id string) json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id]
}

func (f *fakeElastic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case r.URL.Path == "/":
		w.Write([]byte(`{"version":{"number":"8.19.0"},"tagline":"You Know, for Search"}`))

	case len(parts) == 1 && r.Method == http.MethodHead:
		if !f.indices[parts[0]] {
			w.WriteHeader(http.StatusNotFound)
		}

	case len(parts) == 1 && r.Method == http.MethodPut:
		f.indices[parts[0]] = true
		w.Write([]byte(`{"acknowledged":true}`))

	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodHead:
		if _, ok := f.docs[parts[2]]; !ok {
			w.WriteHeader(http.StatusNotFound)
		}

	case len(parts) == 3 && parts[1] == "_create":
		if _, ok := f.docs[parts[2]]; ok {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error":{"type":"version_conflict_engine_exception"},"status":409}`))
			return
		}
		var doc json.RawMessage
		json.NewDecoder(r.Body).Decode(&doc)
		f.docs[parts[2]] = doc
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"result":"created"}`))

	default:
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"unexpected request"}`))
	}
}

func TestElasticStoreSaveAndExists(t *testing.T) {
	fake := newFakeElastic()
	server := httptest.NewServer(fake)
	defer server.Close()

	store, err := NewElasticStore(server.URL, "news")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.EnsureIndex(ctx))
	require.True(t, fake.hasIndex("news"))
	require.NoError(t, store.EnsureIndex(ctx))

	item := sampleItem()

	exists, err := store.Exists(ctx, item.Header, item.SourceName)
	require.NoError(t, err)
	require.False(t, exists)

	created, err := store.Save(ctx, item)
	require.NoError(t, err)
	require.True(t, created)

	exists, err = store.Exists(ctx, item.Header, item.SourceName)
	require.NoError(t, err)
	require.True(t, exists)

	created, err = store.Save(ctx, item)
	require.NoError(t, err)
	require.False(t, created)

	var stored map[string]any
	require.NoError(t, json.Unmarshal(fake.doc(ItemKey(item.Header, item.SourceName)), &stored))
	require.Equal(t, "Markets rally", stored["header"])
	require.Equal(t, "wire", stored["source_name"])
}

func TestElasticStoreServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer server.Close()

	store, err := NewElasticStore(server.URL, "news")
	require.NoError(t, err)

	_, err = store.Exists(context.Background(), "h", "s")
	require.Error(t, err)

	created, err := store.Save(context.Background(), sampleItem())
	require.Error(t, err)
	require.False(t, created)
}
