package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const articlePage = `
<!DOCTYPE html>
<html>
<head>
	<title>Test Article</title>
	<meta property="og:image" content="/images/lead.jpg">
</head>
<body>
	<header>
		<h1>Site Header</h1>
		<nav>Navigation</nav>
	</header>
	<main>
		<article>
			<h1>Main Article Title</h1>
			<p>This is the main content of the article. It contains several paragraphs of meaningful text that should be extracted by the readability algorithm.</p>
			<p>This is another paragraph with more content. The readability algorithm should identify this as the main content area and extract it properly.</p>
			<p>Here is some more substantial content to ensure we meet the character threshold. This paragraph adds more context and information that would be valuable to readers.</p>
		</article>
	</main>
	<aside>
		<div>Advertisement</div>
	</aside>
</body>
</html>
`

func newTestExtractor() *ContentExtractor {
	return NewContentExtractor(http.DefaultClient, "news-comb-test", 0, 0)
}

func TestContentExtractorRunValidHTML(t *testing.T) {
	extractor := newTestExtractor()

	result, err := extractor.Run([]byte(articlePage))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(result, "main content of the article") {
		t.Errorf("Expected extracted content to contain main article text")
	}
	if strings.Contains(result, "Advertisement") {
		t.Errorf("Expected extracted content to exclude advertisement")
	}
}

func TestContentExtractorRunEmptyData(t *testing.T) {
	extractor := newTestExtractor()

	for _, data := range [][]byte{nil, {}} {
		result, err := extractor.Run(data)
		if err == nil {
			t.Fatal("Expected error for empty data")
		}
		if result != "" {
			t.Errorf("Expected empty result for empty data")
		}
		if err.Error() != "HTML data is empty" {
			t.Errorf("Expected error message 'HTML data is empty', got '%s'", err.Error())
		}
	}
}

func TestContentExtractorFindImage(t *testing.T) {
	extractor := newTestExtractor()
	base, _ := url.Parse("https://news.example.com/world/story")

	image := extractor.FindImage([]byte(articlePage), base)
	if image != "https://news.example.com/images/lead.jpg" {
		t.Errorf("Expected resolved og:image, got '%s'", image)
	}

	fallback := `<html><body><article><img src="https://cdn.example.com/a.png"></article></body></html>`
	if got := extractor.FindImage([]byte(fallback), base); got != "https://cdn.example.com/a.png" {
		t.Errorf("Expected article image fallback, got '%s'", got)
	}

	if got := extractor.FindImage([]byte(`<html><body><p>none</p></body></html>`), base); got != "" {
		t.Errorf("Expected no image, got '%s'", got)
	}
}

func TestContentExtractorEnrich(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(articlePage))
		}
	}))
	defer server.Close()

	extractor := newTestExtractor()
	item := &Item{Header: "Story", URL: server.URL + "/news/story"}

	if err := extractor.Enrich(context.Background(), item); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(item.Text, "main content of the article") {
		t.Errorf("Expected text to be backfilled, got: %q", item.Text)
	}
	if strings.Contains(item.Text, "<p>") {
		t.Errorf("Expected backfilled text to be tag-free, got: %q", item.Text)
	}
	if item.ImageURL != server.URL+"/images/lead.jpg" {
		t.Errorf("Expected image to be backfilled, got: %q", item.ImageURL)
	}
}

func TestContentExtractorEnrichRespectsRobots(t *testing.T) {
	var pageHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		pageHits.Add(1)
		w.Write([]byte(articlePage))
	}))
	defer server.Close()

	extractor := newTestExtractor()
	item := &Item{URL: server.URL + "/private/story"}

	if err := extractor.Enrich(context.Background(), item); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if pageHits.Load() != 0 {
		t.Errorf("Expected disallowed page not to be fetched, got %d hits", pageHits.Load())
	}
	if item.Text != "" {
		t.Errorf("Expected text to stay empty, got: %q", item.Text)
	}
}

func TestContentExtractorEnrichSkipsCompleteItems(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	extractor := newTestExtractor()

	complete := &Item{URL: server.URL + "/a", Text: "text", ImageURL: "https://example.com/i.png"}
	if err := extractor.Enrich(context.Background(), complete); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	noURL := &Item{}
	if err := extractor.Enrich(context.Background(), noURL); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if hits.Load() != 0 {
		t.Errorf("Expected no requests, got %d", hits.Load())
	}
}

func TestContentExtractorEnrichHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	extractor := newTestExtractor()
	item := &Item{URL: server.URL + "/story"}

	if err := extractor.Enrich(context.Background(), item); err == nil {
		t.Error("Expected error for HTTP 500")
	}
}

func TestContentExtractorEnrichTimesOutOnHungServer(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	extractor := NewContentExtractor(http.DefaultClient, "news-comb-test", 0, 100*time.Millisecond)
	item := &Item{URL: server.URL + "/story"}

	done := make(chan error, 1)
	go func() {
		done <- extractor.Enrich(context.WithoutCancel(context.Background()), item)
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected timeout error from hung server")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Enrich to give up on a hung server")
	}
}

func TestContentExtractorRobotsBodyIsBounded(t *testing.T) {
	var pageHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			w.Write([]byte("# " + strings.Repeat("x", 2*maxRobotsBytes) + "\n"))
			w.Write([]byte("Disallow: /\n"))
			return
		}
		pageHits.Add(1)
		w.Write([]byte(articlePage))
	}))
	defer server.Close()

	extractor := newTestExtractor()
	item := &Item{URL: server.URL + "/news/story"}

	if err := extractor.Enrich(context.Background(), item); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if pageHits.Load() != 1 {
		t.Errorf("Expected rules past the size cap to be ignored, got %d page hits", pageHits.Load())
	}
}
