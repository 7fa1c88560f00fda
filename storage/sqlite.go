package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"poi-map/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pois (
    position    INTEGER PRIMARY KEY,
    latitude    REAL NOT NULL,
    longitude   REAL NOT NULL,
    category    TEXT NOT NULL,
    date        TEXT NOT NULL,
    title       TEXT NOT NULL,
    description TEXT NOT NULL
);
`

// SQLiteTable stores the table in a single SQLite file. Category lists are
// kept as JSON text; position preserves row order.
type SQLiteTable struct {
	path string
	db   *sql.DB
}

func NewSQLiteTable(path string) *SQLiteTable {
	return &SQLiteTable{path: path}
}

func (t *SQLiteTable) Name() string { return "sqlite:" + t.path }

// open opens the database with safe defaults and creates the schema.
func (t *SQLiteTable) open() error {
	if t.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", t.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}
	t.db = db
	return nil
}

// Load does not create the file when it is missing.
func (t *SQLiteTable) Load(ctx context.Context) ([]models.POI, error) {
	ok, err := exists(t.path)
	if err != nil {
		return nil, storageErr("stat", t.Name(), err)
	}
	if !ok {
		return []models.POI{}, nil
	}
	if err := t.open(); err != nil {
		return nil, storageErr("open", t.Name(), err)
	}

	rows, err := t.db.QueryContext(ctx, `SELECT latitude, longitude, category, date, title, description FROM pois ORDER BY position`)
	if err != nil {
		return nil, storageErr("query", t.Name(), err)
	}
	defer rows.Close()

	out := []models.POI{}
	for rows.Next() {
		var (
			p        models.POI
			category string
			date     string
		)
		if err := rows.Scan(&p.Latitude, &p.Longitude, &category, &date, &p.Title, &p.Description); err != nil {
			return nil, storageErr("scan", t.Name(), err)
		}
		if err := json.Unmarshal([]byte(category), &p.Category); err != nil {
			return nil, storageErr("parse", t.Name(), fmt.Errorf("category of row %d: %w", len(out), err))
		}
		if p.Date, err = models.ParseDate(date); err != nil {
			return nil, storageErr("parse", t.Name(), fmt.Errorf("date of row %d: %w", len(out), err))
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query", t.Name(), err)
	}
	return out, nil
}

// Save replaces every row inside one transaction.
func (t *SQLiteTable) Save(ctx context.Context, rows []models.POI) error {
	if err := t.open(); err != nil {
		return storageErr("open", t.Name(), err)
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin", t.Name(), err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pois`); err != nil {
		return storageErr("truncate", t.Name(), err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO pois (position, latitude, longitude, category, date, title, description) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return storageErr("prepare", t.Name(), err)
	}
	defer stmt.Close()

	for i, p := range rows {
		category, err := json.Marshal(p.Category)
		if err != nil {
			return storageErr("encode", t.Name(), err)
		}
		if _, err := stmt.ExecContext(ctx, i, p.Latitude, p.Longitude, string(category), p.Date.String(), p.Title, p.Description); err != nil {
			return storageErr("insert", t.Name(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit", t.Name(), err)
	}
	return nil
}

func (t *SQLiteTable) Close() error {
	if t.db != nil {
		err := t.db.Close()
		t.db = nil
		return err
	}
	return nil
}
