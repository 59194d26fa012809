package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lysyi3m/news-comb/app/feed"
)

const mongoCollection = "news_items"

type mongoItem struct {
	Header      string    `bson:"header"`
	Text        string    `bson:"text"`
	PublishedAt time.Time `bson:"published_at"`
	Hashtags    []string  `bson:"hashtags"`
	SourceName  string    `bson:"source_name"`
	URL         string    `bson:"url"`
	ImageURL    string    `bson:"image_url,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}

// mongoItems is the part of *mongo.Collection the store reads and writes.
type mongoItems interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// MongoStore keeps items in a collection with a unique (header, source_name)
// index; a duplicate-key error on insert means the item already existed.
type MongoStore struct {
	client *mongo.Client
	items  mongoItems
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(database).Collection(mongoCollection)
	if err := createIndexes(connectCtx, collection); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	return &MongoStore{client: client, items: collection}, nil
}

func createIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "header", Value: 1}, {Key: "source_name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "published_at", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Exists(ctx context.Context, header, source string) (bool, error) {
	err := s.items.FindOne(ctx,
		bson.M{"header": header, "source_name": source},
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up item: %w", err)
	}
	return true, nil
}

func (s *MongoStore) Save(ctx context.Context, item feed.Item) (bool, error) {
	_, err := s.items.InsertOne(ctx, newMongoItem(item, time.Now()))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert item: %w", err)
	}
	return true, nil
}

func newMongoItem(item feed.Item, now time.Time) mongoItem {
	hashtags := item.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	return mongoItem{
		Header:      item.Header,
		Text:        item.Text,
		PublishedAt: item.PublishedAt.UTC(),
		Hashtags:    hashtags,
		SourceName:  item.SourceName,
		URL:         item.URL,
		ImageURL:    item.ImageURL,
		CreatedAt:   now.UTC(),
	}
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
