package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//Dialect describes the differences between the supported SQL databases
type Dialect struct {
	Driver string
	upsert string
	get    string
	remove string
}

var (
	SQLite = Dialect{
		Driver: "sqlite3",
		upsert: `INSERT INTO documents (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		get:    `SELECT value FROM documents WHERE key = ?`,
		remove: `DELETE FROM documents WHERE key = ?`,
	}
	Postgres = Dialect{
		Driver: "postgres",
		upsert: `INSERT INTO documents (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		get:    `SELECT value FROM documents WHERE key = $1`,
		remove: `DELETE FROM documents WHERE key = $1`,
	}
)

const createDocumentsTable string = `CREATE TABLE IF NOT EXISTS documents (key TEXT PRIMARY KEY, value TEXT NOT NULL)`

type sqlStorage struct {
	db      *sql.DB
	dialect Dialect
}

//NewSQL opens dsn with the dialect's driver and creates the documents table
//if it does not exist
func NewSQL(ctx context.Context, dialect Dialect, dsn string, log zerolog.Logger) (Storage, error) {
	if dsn == "" {
		return nil, errors.New("sql storage requires a dsn")
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, err
	}

	if dialect.Driver == SQLite.Driver {
		// an in-memory sqlite database exists per connection
		db.SetMaxOpenConns(1)
	}

	if _, err = db.ExecContext(ctx, createDocumentsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}

	log.Info().Str("driver", dialect.Driver).Msg("using sql storage")

	return &sqlStorage{db: db, dialect: dialect}, nil
}

func (s *sqlStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var value string

	err := s.db.QueryRowContext(ctx, s.dialect.get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return []byte(value), nil
}

func (s *sqlStorage) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, s.dialect.upsert, key, string(value))
	return err
}

func (s *sqlStorage) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, s.dialect.remove, key)
	return err
}

func (s *sqlStorage) Close() error {
	return s.db.Close()
}
