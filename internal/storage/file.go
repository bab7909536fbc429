package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/IshaanNene/webmirror/internal/identity"
	"github.com/IshaanNene/webmirror/internal/types"
)

const bytesPerKB = 1000

// FileStorage lays artifacts out as {root}/{hostBucket}/{pageBucket}/{pageBucket}.{ext}.
type FileStorage struct {
	fs     afero.Fs
	root   string
	logger *slog.Logger
}

// NewFileStorage creates a file storage rooted at root on the OS filesystem.
func NewFileStorage(root string, logger *slog.Logger) *FileStorage {
	return NewFileStorageFs(afero.NewOsFs(), root, logger)
}

// NewFileStorageFs creates a file storage on an arbitrary afero filesystem.
func NewFileStorageFs(fsys afero.Fs, root string, logger *slog.Logger) *FileStorage {
	return &FileStorage{
		fs:     fsys,
		root:   root,
		logger: logger.With("component", "file_storage"),
	}
}

func (s *FileStorage) Name() string { return "file" }

// Path returns the on-disk location of an artifact.
func (s *FileStorage) Path(key identity.Key, kind identity.Kind) string {
	return filepath.Join(s.root, filepath.FromSlash(key.File(kind)))
}

// ensureDir creates dir and its parents. Existing directories are not an error.
func (s *FileStorage) ensureDir(dir string) error {
	return s.fs.MkdirAll(dir, 0o755)
}

func (s *FileStorage) Store(ctx context.Context, key identity.Key, kind identity.Kind, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.Path(key, kind)
	if err := s.ensureDir(filepath.Dir(path)); err != nil {
		return &types.StorageError{Backend: s.Name(), Op: "mkdir", Path: path, Err: err}
	}
	if err := afero.WriteFile(s.fs, path, content, 0o644); err != nil {
		return &types.StorageError{Backend: s.Name(), Op: "write", Path: path, Err: err}
	}

	s.logger.Debug("artifact written",
		"path", path,
		"kind", kind,
		"size_kb", fmt.Sprintf("%.1f", float64(len(content))/bytesPerKB),
	)
	return nil
}

func (s *FileStorage) Load(ctx context.Context, key identity.Key, kind identity.Kind) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.Path(key, kind)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = types.ErrNotFound
		}
		return nil, &types.StorageError{Backend: s.Name(), Op: "read", Path: path, Err: err}
	}
	return data, nil
}

func (s *FileStorage) Close() error { return nil }
