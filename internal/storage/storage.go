package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/webmirror/internal/config"
	"github.com/IshaanNene/webmirror/internal/identity"
)

// Storage persists and loads the artifacts of mirrored pages.
type Storage interface {
	// Store writes one artifact, replacing any previous content.
	Store(ctx context.Context, key identity.Key, kind identity.Kind, content []byte) error

	// Load reads one artifact. Missing artifacts yield types.ErrNotFound.
	Load(ctx context.Context, key identity.Key, kind identity.Kind) ([]byte, error)

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// New creates the backend selected by cfg.Type.
func New(cfg *config.StorageConfig, logger *slog.Logger) (Storage, error) {
	switch cfg.Type {
	case "file":
		return NewFileStorage(cfg.OutputPath, logger), nil
	case "mongodb":
		return NewMongoStorage(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
	case "multi":
		mongo, err := NewMongoStorage(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
		if err != nil {
			return nil, err
		}
		return NewMultiStorage([]Storage{NewFileStorage(cfg.OutputPath, logger), mongo}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
