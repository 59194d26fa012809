package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/news-comb/app/feed"
)

type stubSink struct {
	created bool
	err     error
	saved   []feed.Item
}

func (s *stubSink) Save(ctx context.Context, item feed.Item) (bool, error) {
	s.saved = append(s.saved, item)
	return s.created, s.err
}

func TestItemKeyStable(t *testing.T) {
	require.Equal(t, ItemKey("a", "b"), ItemKey("a", "b"))
	require.NotEqual(t, ItemKey("a", "b"), ItemKey("a", "c"))
	require.NotEqual(t, ItemKey("a|b", "c"), ItemKey("a", "b|c"))
	require.NotEqual(t, ItemKey("ab", "c"), ItemKey("a", "bc"))
	require.NotEqual(t, ItemKey("", "ab"), ItemKey("ab", ""))
	require.Len(t, ItemKey("a", "b"), 64)
}

func TestChainMirrorsOnlyCreatedItems(t *testing.T) {
	primary := &stubSink{created: true}
	mirror := &stubSink{created: true}
	chain := NewChain(primary, mirror)

	created, err := chain.Save(context.Background(), sampleItem())
	require.NoError(t, err)
	require.True(t, created)
	require.Len(t, mirror.saved, 1)

	primary.created = false
	created, err = chain.Save(context.Background(), sampleItem())
	require.NoError(t, err)
	require.False(t, created)
	require.Len(t, mirror.saved, 1)
}

func TestChainPrimaryErrorSkipsMirrors(t *testing.T) {
	primary := &stubSink{created: true, err: errors.New("backend down")}
	mirror := &stubSink{created: true}

	created, err := NewChain(primary, mirror).Save(context.Background(), sampleItem())
	require.Error(t, err)
	require.False(t, created)
	require.Empty(t, mirror.saved)
}

func TestChainMirrorFailureDoesNotChangeOutcome(t *testing.T) {
	primary := &stubSink{created: true}
	failing := &stubSink{err: errors.New("kafka down")}
	healthy := &stubSink{created: false}

	created, err := NewChain(primary, failing, healthy).Save(context.Background(), sampleItem())
	require.NoError(t, err)
	require.True(t, created)
	require.Len(t, failing.saved, 1)
	require.Len(t, healthy.saved, 1)
}

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherWritesMessage(t *testing.T) {
	writer := &fakeWriter{}
	publisher := &KafkaPublisher{writer: writer, topic: "news"}
	item := sampleItem()

	created, err := publisher.Save(context.Background(), item)
	require.NoError(t, err)
	require.True(t, created)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	require.Equal(t, ItemKey(item.Header, item.SourceName), string(msg.Key))
	require.JSONEq(t, `{
		"title": "Markets rally",
		"text": "Stocks rose.",
		"timestamp": "2024-03-04T08:00:00Z",
		"source": "wire",
		"url": "https://news.example.com/a",
		"hashtags": ["business"]
	}`, string(msg.Value))

	require.NoError(t, publisher.Close())
	require.True(t, writer.closed)
}

func TestKafkaPublisherError(t *testing.T) {
	publisher := &KafkaPublisher{writer: &fakeWriter{err: errors.New("no brokers")}, topic: "news"}

	created, err := publisher.Save(context.Background(), sampleItem())
	require.Error(t, err)
	require.False(t, created)
	require.Contains(t, err.Error(), "news")
}
