package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/lysyi3m/news-comb/app/feed"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher mirrors new items onto a topic. It never deduplicates, so
// it is only useful behind a primary sink.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

var _ Sink = (*KafkaPublisher)(nil)

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaPublisher{writer: writer, topic: topic}
}

type kafkaNews struct {
	Title     string   `json:"title"`
	Text      string   `json:"text"`
	Timestamp string   `json:"timestamp"`
	Source    string   `json:"source"`
	URL       string   `json:"url,omitempty"`
	Hashtags  []string `json:"hashtags,omitempty"`
}

func (p *KafkaPublisher) Save(ctx context.Context, item feed.Item) (bool, error) {
	payload, err := json.Marshal(kafkaNews{
		Title:     item.Header,
		Text:      item.Text,
		Timestamp: item.PublishedAt.UTC().Format(time.RFC3339),
		Source:    item.SourceName,
		URL:       item.URL,
		Hashtags:  item.Hashtags,
	})
	if err != nil {
		return false, fmt.Errorf("marshal kafka message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ItemKey(item.Header, item.SourceName)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "source", Value: []byte(item.SourceName)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return false, fmt.Errorf("write to topic %s: %w", p.topic, err)
	}

	return true, nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
