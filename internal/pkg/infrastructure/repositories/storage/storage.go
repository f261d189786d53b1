package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

//ErrNotFound is returned by Get when no document is stored under the key
var ErrNotFound = errors.New("key not found")

//Storage is an interface that abstracts away the durable key-value store that
//holds whole documents. Set always replaces the entire value.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}

//Settings selects and configures a storage backend
type Settings struct {
	Backend       string
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DSN           string
}

//Open creates the backend named by settings.Backend
func Open(ctx context.Context, settings Settings, log zerolog.Logger) (Storage, error) {
	log = log.With().Str("backend", settings.Backend).Logger()

	switch settings.Backend {
	case "", "memory":
		log.Warn().Msg("using in-memory storage, regions will not survive a restart")
		return NewMemory(), nil
	case "file":
		return NewFile(settings.Dir, log)
	case "redis":
		return NewRedis(ctx, settings.RedisAddr, settings.RedisPassword, settings.RedisDB, log)
	case "sqlite":
		return NewSQL(ctx, SQLite, settings.DSN, log)
	case "postgres":
		return NewSQL(ctx, Postgres, settings.DSN, log)
	}

	return nil, fmt.Errorf("unknown storage backend %q", settings.Backend)
}

type memory struct {
	mu   sync.Mutex
	docs map[string][]byte
}

//NewMemory returns a Storage that keeps documents in process memory
func NewMemory() Storage {
	return &memory{docs: map[string][]byte{}}
}

func (m *memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}

	return append([]byte(nil), v...), nil
}

func (m *memory) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[key] = append([]byte(nil), value...)
	return nil
}

func (m *memory) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs, key)
	return nil
}

func (m *memory) Close() error {
	return nil
}
