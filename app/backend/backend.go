package backend

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"log/slog"

	"github.com/lysyi3m/news-comb/app/feed"
)

// ExistenceOracle answers whether an item with the given header from the
// given source is already known downstream.
type ExistenceOracle interface {
	Exists(ctx context.Context, header, source string) (bool, error)
}

// Sink persists an item. created is false when the item was already known
// or when the outcome is uncertain.
type Sink interface {
	Save(ctx context.Context, item feed.Item) (created bool, err error)
}

// Store is both an oracle and a sink.
type Store interface {
	ExistenceOracle
	Sink
}

// ItemKey is the stable identity of an item in keyed stores. The header is
// length-prefixed so no (header, source) split of the same bytes collides.
func ItemKey(header, source string) string {
	h := sha256.New()
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(header)))
	h.Write(size[:])
	h.Write([]byte(header))
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}

// Chain forwards to a primary sink and, once the primary reports a new
// item, to every mirror. Mirror failures are logged only.
type Chain struct {
	primary Sink
	mirrors []Sink
}

var _ Sink = (*Chain)(nil)

func NewChain(primary Sink, mirrors ...Sink) *Chain {
	return &Chain{primary: primary, mirrors: mirrors}
}

func (c *Chain) Save(ctx context.Context, item feed.Item) (bool, error) {
	created, err := c.primary.Save(ctx, item)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	for _, mirror := range c.mirrors {
		mirrored, err := mirror.Save(ctx, item)
		if err != nil {
			slog.Warn("Mirror sink failed", "source", item.SourceName, "header", item.Header, "error", err)
			continue
		}
		if !mirrored {
			slog.Debug("Mirror sink already had item", "source", item.SourceName, "header", item.Header)
		}
	}

	return true, nil
}
