package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lysyi3m/news-comb/app/feed"
)

// NewsStore is the local ledger of forwarded items, unique per
// (header, source_name).
type NewsStore struct {
	db *DB
}

func NewNewsStore(db *DB) *NewsStore {
	return &NewsStore{db: db}
}

func (s *NewsStore) Exists(ctx context.Context, header, source string) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM news_items WHERE header = ? AND source_name = ? LIMIT 1`,
		header, source).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check item: %w", err)
	}
	return true, nil
}

// Save inserts the item; created is false when the row already existed.
func (s *NewsStore) Save(ctx context.Context, item feed.Item) (bool, error) {
	hashtags := item.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	encoded, err := json.Marshal(hashtags)
	if err != nil {
		return false, fmt.Errorf("failed to encode hashtags: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO news_items (header, source_name, text, published_at, hashtags, url, image_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (header, source_name) DO NOTHING
	`, item.Header, item.SourceName, item.Text, item.PublishedAt.UTC().Format(time.RFC3339),
		string(encoded), item.URL, item.ImageURL)
	if err != nil {
		return false, fmt.Errorf("failed to store item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

func (s *NewsStore) GetItemCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM news_items`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

// GetRecentItems returns the newest items of a source, newest first.
func (s *NewsStore) GetRecentItems(ctx context.Context, source string, limit int) ([]feed.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT header, source_name, text, published_at, hashtags, url, image_url
		FROM news_items
		WHERE source_name = ?
		ORDER BY published_at DESC, id DESC
		LIMIT ?
	`, source, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []feed.Item
	for rows.Next() {
		var (
			item        feed.Item
			publishedAt string
			hashtags    string
		)
		if err := rows.Scan(&item.Header, &item.SourceName, &item.Text, &publishedAt, &hashtags, &item.URL, &item.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}

		item.PublishedAt, err = time.Parse(time.RFC3339, publishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse published_at %q: %w", publishedAt, err)
		}
		if err := json.Unmarshal([]byte(hashtags), &item.Hashtags); err != nil {
			return nil, fmt.Errorf("failed to decode hashtags: %w", err)
		}

		items = append(items, item)
	}

	return items, rows.Err()
}
