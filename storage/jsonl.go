package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"poi-map/models"
)

type jsonlRow struct {
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	Category    []string    `json:"category"`
	Date        models.Date `json:"date"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
}

// JSONLTable stores one JSON object per row.
type JSONLTable struct {
	path string
}

func NewJSONLTable(path string) *JSONLTable {
	return &JSONLTable{path: path}
}

func (t *JSONLTable) Name() string { return "jsonl:" + t.path }

// Load fails on the first malformed line; a half readable table is not
// accepted into memory.
func (t *JSONLTable) Load(ctx context.Context) ([]models.POI, error) {
	ok, err := exists(t.path)
	if err != nil {
		return nil, storageErr("stat", t.Name(), err)
	}
	if !ok {
		return []models.POI{}, nil
	}

	f, err := os.Open(t.path)
	if err != nil {
		return nil, storageErr("open", t.Name(), err)
	}
	defer f.Close()

	out := []models.POI{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		var r jsonlRow
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, storageErr("parse", t.Name(), fmt.Errorf("line %d: %w", line, err))
		}
		out = append(out, models.POI{
			Latitude:    r.Latitude,
			Longitude:   r.Longitude,
			Category:    r.Category,
			Date:        r.Date,
			Title:       r.Title,
			Description: r.Description,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, storageErr("scan", t.Name(), err)
	}
	return out, nil
}

func (t *JSONLTable) Save(ctx context.Context, rows []models.POI) error {
	err := writeAtomic(t.path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		enc := json.NewEncoder(bw)
		for _, p := range rows {
			r := jsonlRow{
				Latitude:    p.Latitude,
				Longitude:   p.Longitude,
				Category:    p.Category,
				Date:        p.Date,
				Title:       p.Title,
				Description: p.Description,
			}
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
	if err != nil {
		return storageErr("write", t.Name(), err)
	}
	return nil
}

func (t *JSONLTable) Close() error { return nil }
