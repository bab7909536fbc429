package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/webmirror/internal/identity"
	"github.com/IshaanNene/webmirror/internal/types"
)

// artifactDoc is one stored artifact in MongoDB.
type artifactDoc struct {
	HostBucket string    `bson:"host_bucket"`
	PageBucket string    `bson:"page_bucket"`
	Kind       string    `bson:"kind"`
	Content    []byte    `bson:"content"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

// MongoStorage writes artifacts to a MongoDB collection, one document per
// (key, kind). Re-storing replaces the document.
type MongoStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
	count      atomic.Int64
	logger     *slog.Logger
}

// NewMongoStorage creates a new MongoDB storage backend.
func NewMongoStorage(uri, database, collection string, logger *slog.Logger) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "host_bucket", Value: 1}, {Key: "page_bucket", Value: 1}, {Key: "kind", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb create index: %w", err)
	}

	return &MongoStorage{
		client:     client,
		collection: coll,
		logger:     logger.With("component", "mongo_storage"),
	}, nil
}

func (s *MongoStorage) Name() string { return "mongodb" }

func filterFor(key identity.Key, kind identity.Kind) bson.D {
	return bson.D{
		{Key: "host_bucket", Value: key.HostBucket},
		{Key: "page_bucket", Value: key.PageBucket},
		{Key: "kind", Value: string(kind)},
	}
}

func (s *MongoStorage) Store(ctx context.Context, key identity.Key, kind identity.Kind, content []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	doc := artifactDoc{
		HostBucket: key.HostBucket,
		PageBucket: key.PageBucket,
		Kind:       string(kind),
		Content:    content,
		UpdatedAt:  time.Now(),
	}
	_, err := s.collection.ReplaceOne(ctx, filterFor(key, kind), doc, options.Replace().SetUpsert(true))
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Op: "upsert", Path: key.File(kind), Err: err}
	}

	total := s.count.Add(1)
	s.logger.Debug("artifact stored in mongodb", "key", key.String(), "kind", kind, "total", total)
	return nil
}

func (s *MongoStorage) Load(ctx context.Context, key identity.Key, kind identity.Kind) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var doc artifactDoc
	err := s.collection.FindOne(ctx, filterFor(key, kind)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			err = types.ErrNotFound
		}
		return nil, &types.StorageError{Backend: s.Name(), Op: "find", Path: key.File(kind), Err: err}
	}
	return doc.Content, nil
}

func (s *MongoStorage) Close() error {
	s.logger.Info("mongodb storage closing", "total_artifacts", s.count.Load())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// --- Multi-Storage Fan-Out ---

// MultiStorage writes artifacts to multiple backends and loads from the first
// backend that has them.
type MultiStorage struct {
	backends []Storage
	logger   *slog.Logger
}

// NewMultiStorage creates a storage that fans out to multiple backends.
func NewMultiStorage(backends []Storage, logger *slog.Logger) *MultiStorage {
	return &MultiStorage{
		backends: backends,
		logger:   logger.With("component", "multi_storage"),
	}
}

func (s *MultiStorage) Name() string { return "multi" }

func (s *MultiStorage) Store(ctx context.Context, key identity.Key, kind identity.Kind, content []byte) error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Store(ctx, key, kind, content); err != nil {
			s.logger.Error("backend store failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *MultiStorage) Load(ctx context.Context, key identity.Key, kind identity.Kind) ([]byte, error) {
	lastErr := error(&types.StorageError{Backend: s.Name(), Op: "read", Path: key.File(kind), Err: types.ErrNotFound})
	for _, backend := range s.backends {
		data, err := backend.Load(ctx, key, kind)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *MultiStorage) Close() error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
