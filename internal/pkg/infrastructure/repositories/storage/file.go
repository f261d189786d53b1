package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

type fileStorage struct {
	dir string
	log zerolog.Logger
}

//NewFile returns a Storage that keeps each key in its own file below dir
func NewFile(dir string, log zerolog.Logger) (Storage, error) {
	if dir == "" {
		return nil, errors.New("file storage requires a directory")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}

	log.Info().Str("dir", dir).Msg("using file storage")

	return &fileStorage{dir: dir, log: log}, nil
}

func (fs *fileStorage) path(key string) string {
	return filepath.Join(fs.dir, filepath.Base(key)+".json")
}

func (fs *fileStorage) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(fs.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

//Set writes to a temporary file and renames it over the old document so that
//a reader never observes a partial write
func (fs *fileStorage) Set(ctx context.Context, key string, value []byte) error {
	tmp, err := os.CreateTemp(fs.dir, filepath.Base(key)+".*.tmp")
	if err != nil {
		return err
	}

	if _, err = tmp.Write(value); err == nil {
		err = tmp.Sync()
	}

	if cerr := tmp.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err = os.Rename(tmp.Name(), fs.path(key)); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	fs.log.Debug().Str("key", key).Int("bytes", len(value)).Msg("document written")

	return nil
}

func (fs *fileStorage) Remove(ctx context.Context, key string) error {
	err := os.Remove(fs.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (fs *fileStorage) Close() error {
	return nil
}
