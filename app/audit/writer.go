package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lysyi3m/news-comb/app/feed"
)

const (
	RawFile       = "raw.jsonl"
	ProcessedFile = "processed.jsonl"
)

type Status string

const (
	StatusStored    Status = "stored"
	StatusDuplicate Status = "duplicate"
	StatusError     Status = "error"
)

type rawRecord struct {
	FetchedAt time.Time     `json:"fetched_at"`
	Source    string        `json:"source"`
	Entry     feed.Snapshot `json:"entry"`
}

type processedRecord struct {
	RecordedAt time.Time `json:"recorded_at"`
	Status     Status    `json:"status"`
	Item       feed.Item `json:"item"`
}

type jsonlFile struct {
	mu   sync.Mutex
	path string
}

// Writer appends audit records to two JSON Lines files. Write failures are
// logged and never reach the caller.
type Writer struct {
	raw       jsonlFile
	processed jsonlFile
	now       func() time.Time
}

func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	return &Writer{
		raw:       jsonlFile{path: filepath.Join(dir, RawFile)},
		processed: jsonlFile{path: filepath.Join(dir, ProcessedFile)},
		now:       time.Now,
	}, nil
}

func (w *Writer) RecordRaw(source string, entries []feed.RawEntry) {
	fetchedAt := w.now().UTC()

	records := make([]any, 0, len(entries))
	for _, entry := range entries {
		records = append(records, rawRecord{
			FetchedAt: fetchedAt,
			Source:    source,
			Entry:     entry.Snapshot(),
		})
	}

	if err := w.raw.append(records...); err != nil {
		slog.Warn("Failed to write raw audit records", "source", source, "error", err)
	}
}

func (w *Writer) RecordProcessed(status Status, item feed.Item) {
	record := processedRecord{
		RecordedAt: w.now().UTC(),
		Status:     status,
		Item:       item,
	}

	if err := w.processed.append(record); err != nil {
		slog.Warn("Failed to write processed audit record", "source", item.SourceName, "error", err)
	}
}

func (f *jsonlFile) append(records ...any) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.path, err)
	}

	if _, err := file.Write(buf.Bytes()); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", f.path, err)
	}

	return file.Close()
}
