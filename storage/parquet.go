package storage

import (
	"context"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"poi-map/models"
)

// parquetRow is the columnar layout: exactly the six POI columns, category as
// a list of strings and date as the DATE logical type.
type parquetRow struct {
	Latitude    float64  `parquet:"latitude"`
	Longitude   float64  `parquet:"longitude"`
	Category    []string `parquet:"category,list"`
	Date        int32    `parquet:"date,date"`
	Title       string   `parquet:"title"`
	Description string   `parquet:"description"`
}

// ParquetTable stores the table in a single Parquet file.
type ParquetTable struct {
	path string
}

func NewParquetTable(path string) *ParquetTable {
	return &ParquetTable{path: path}
}

func (t *ParquetTable) Name() string { return "parquet:" + t.path }

func (t *ParquetTable) Load(ctx context.Context) ([]models.POI, error) {
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
	info, err := f.Stat()
	if err != nil {
		return nil, storageErr("stat", t.Name(), err)
	}

	rows, err := parquet.Read[parquetRow](f, info.Size())
	if err != nil {
		return nil, storageErr("read", t.Name(), err)
	}
	out := make([]models.POI, len(rows))
	for i, r := range rows {
		out[i] = models.POI{
			Latitude:    r.Latitude,
			Longitude:   r.Longitude,
			Category:    r.Category,
			Date:        models.DateFromDays(r.Date),
			Title:       r.Title,
			Description: r.Description,
		}
	}
	return out, nil
}

func (t *ParquetTable) Save(ctx context.Context, rows []models.POI) error {
	out := make([]parquetRow, len(rows))
	for i, p := range rows {
		out[i] = parquetRow{
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
			Category:    p.Category,
			Date:        p.Date.DaysSinceEpoch(),
			Title:       p.Title,
			Description: p.Description,
		}
	}
	err := writeAtomic(t.path, func(w io.Writer) error {
		return parquet.Write(w, out)
	})
	if err != nil {
		return storageErr("write", t.Name(), err)
	}
	return nil
}

func (t *ParquetTable) Close() error { return nil }
