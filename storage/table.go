// Package storage persists the POI table. Every backend loads the whole table
// and saves it with overwrite semantics: there is no incremental write and no
// transaction log.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"poi-map/models"
	"poi-map/utils/errors"
)

// Table is a persisted POI table.
type Table interface {
	// Load returns the persisted rows, or an empty table if the source does
	// not exist yet.
	Load(ctx context.Context) ([]models.POI, error)
	// Save replaces the persisted table with rows.
	Save(ctx context.Context, rows []models.POI) error
	// Close releases any handle held by the backend.
	Close() error
	// Name identifies the backend and its location in logs.
	Name() string
}

// Options configures backends that need more than a location.
type Options struct {
	MongoDatabase   string
	MongoCollection string
}

// Kind is the backend selected for a database location.
type Kind string

const (
	KindParquet Kind = "parquet"
	KindJSONL   Kind = "jsonl"
	KindSQLite  Kind = "sqlite"
	KindMongo   Kind = "mongo"
)

// KindOf picks the backend from a URI scheme or file extension.
func KindOf(database string) (Kind, error) {
	if strings.HasPrefix(database, "mongodb://") || strings.HasPrefix(database, "mongodb+srv://") {
		return KindMongo, nil
	}
	switch strings.ToLower(filepath.Ext(database)) {
	case ".parquet":
		return KindParquet, nil
	case ".jsonl":
		return KindJSONL, nil
	case ".db", ".sqlite", ".sqlite3":
		return KindSQLite, nil
	}
	return "", fmt.Errorf("%w: unsupported database %q (want .parquet, .jsonl, .db/.sqlite or mongodb://)", errors.ErrConfig, database)
}

// Open returns the backend for database.
func Open(ctx context.Context, database string, opts Options) (Table, error) {
	kind, err := KindOf(database)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindParquet:
		return NewParquetTable(database), nil
	case KindJSONL:
		return NewJSONLTable(database), nil
	case KindSQLite:
		return NewSQLiteTable(database), nil
	default:
		return NewMongoTable(ctx, database, opts)
	}
}

func storageErr(op, name string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", errors.ErrStorage, op, name, err)
}

// exists reports whether a table file is present. A directory in its place is
// an error.
func exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("table path is a directory, expected file: %s", path)
	}
	return true, nil
}

// writeAtomic writes a file with the temp-file, fsync, rename pattern so a
// crash never leaves a half written table behind.
func writeAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".poi-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	if err := write(tmp); err != nil {
		return fail(fmt.Errorf("writing rows: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
