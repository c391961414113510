package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Config struct {
	// Path is the database file. Empty selects a private in-memory database.
	Path string
}

// EnsureDir creates the directory holding path if missing.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func dsn(cfg Config) (string, error) {
	if cfg.Path == "" {
		// Each in-memory database gets its own name so that two stores in one
		// process never share state through the shared cache.
		return fmt.Sprintf("file:reportline-%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString()), nil
	}
	if err := EnsureDir(cfg.Path); err != nil {
		return "", err
	}
	return fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", cfg.Path), nil
}

// Open opens the SQLite database with foreign keys on.
func Open(cfg Config) (*sql.DB, error) {
	source, err := dsn(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite", source)
	if err != nil {
		return nil, err
	}
	// An in-memory database lives only as long as one connection keeps it open.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
