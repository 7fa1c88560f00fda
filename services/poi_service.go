package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"poi-map/metrics"
	"poi-map/models"
	"poi-map/schema"
	"poi-map/storage"
	"poi-map/utils/errors"
)

// ChangeFunc receives a snapshot of the table after every load, add and
// remove. Snapshots arrive one at a time in mutation order; one superseded
// before its delivery started is skipped.
type ChangeFunc func(ctx context.Context, rows []models.POI)

// POIService is the POI store: the single owner of the in-memory table and
// its persisted copy. Every mutation is followed by a full-table overwrite.
type POIService struct {
	mu        sync.RWMutex
	table     storage.Table
	validator *schema.Validator
	logger    *zap.Logger
	rows      []models.POI
	listeners []ChangeFunc
	version   uint64

	notifyMu  sync.Mutex
	delivered uint64
}

func NewPOIService(table storage.Table, validator *schema.Validator, logger *zap.Logger) *POIService {
	return &POIService{
		table:     table,
		validator: validator,
		logger:    logger,
		rows:      []models.POI{},
	}
}

// OnChange registers fn to be called after each successful mutation.
func (s *POIService) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Load replaces the in-memory table with the persisted one. A missing source
// yields an empty table; an unreadable or invalid one is a storage error.
func (s *POIService) Load(ctx context.Context) ([]models.POI, error) {
	rows, err := s.table.Load(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.validator.Validate(rows); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errors.ErrStorage, s.table.Name(), err)
	}
	for i := range rows {
		rows[i].ID = newID()
	}

	s.mu.Lock()
	s.rows = rows
	snapshot, version := s.snapshotLocked(), s.bumpLocked()
	s.mu.Unlock()

	metrics.StoreSize.Set(float64(len(snapshot)))
	s.logger.Info("POI table loaded", zap.String("table", s.table.Name()), zap.Int("rows", len(snapshot)))
	s.notify(ctx, version, snapshot)
	return snapshot, nil
}

// Add validates p and appends it, returning the new row identity. Categories
// are trimmed and lowercased first. An invalid record leaves the store
// unchanged.
func (s *POIService) Add(ctx context.Context, p models.POI) (string, error) {
	p = p.Clone()
	p.Category = normalizeCategories(p.Category)
	if err := s.validator.ValidateOne(p); err != nil {
		metrics.ValidationFailuresTotal.Inc()
		s.logger.Warn("Rejected invalid POI", zap.String("title", p.Title), zap.Error(err))
		return "", err
	}
	p.ID = newID()

	s.mu.Lock()
	s.rows = append(s.rows, p)
	if err := s.persistLocked(ctx); err != nil {
		s.rows = s.rows[:len(s.rows)-1]
		s.mu.Unlock()
		return "", err
	}
	snapshot, version := s.snapshotLocked(), s.bumpLocked()
	s.mu.Unlock()

	metrics.POIsAddedTotal.Inc()
	metrics.StoreSize.Set(float64(len(snapshot)))
	s.logger.Info("Added POI", zap.String("id", p.ID), zap.String("title", p.Title), zap.Int("rows", len(snapshot)))
	s.notify(ctx, version, snapshot)
	return p.ID, nil
}

// Remove deletes the row with the given identity and returns it.
func (s *POIService) Remove(ctx context.Context, id string) (models.POI, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return models.POI{}, fmt.Errorf("%w: id %q", errors.ErrPOINotFound, id)
	}
	return s.removeLocked(ctx, idx)
}

// RemoveAt deletes the row at position i. Positions are re-assigned
// contiguously after every removal.
func (s *POIService) RemoveAt(ctx context.Context, i int) (models.POI, error) {
	s.mu.Lock()
	if i < 0 || i >= len(s.rows) {
		n := len(s.rows)
		s.mu.Unlock()
		return models.POI{}, fmt.Errorf("%w: row %d out of range [0, %d)", errors.ErrPOINotFound, i, n)
	}
	return s.removeLocked(ctx, i)
}

// removeLocked is called with s.mu held and releases it.
func (s *POIService) removeLocked(ctx context.Context, idx int) (models.POI, error) {
	previous := s.rows
	removed := previous[idx]
	rows := make([]models.POI, 0, len(previous)-1)
	rows = append(rows, previous[:idx]...)
	rows = append(rows, previous[idx+1:]...)

	s.rows = rows
	if err := s.persistLocked(ctx); err != nil {
		s.rows = previous
		s.mu.Unlock()
		return models.POI{}, err
	}
	snapshot, version := s.snapshotLocked(), s.bumpLocked()
	s.mu.Unlock()

	metrics.POIsRemovedTotal.Inc()
	metrics.StoreSize.Set(float64(len(snapshot)))
	s.logger.Info("Removed POI", zap.String("id", removed.ID), zap.String("title", removed.Title), zap.Int("rows", len(snapshot)))
	s.notify(ctx, version, snapshot)
	return removed.Clone(), nil
}

// Get returns a copy of the row with the given identity.
func (s *POIService) Get(id string) (models.POI, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return models.POI{}, fmt.Errorf("%w: id %q", errors.ErrPOINotFound, id)
	}
	return s.rows[idx].Clone(), nil
}

// All returns a copy of the table in row order.
func (s *POIService) All() []models.POI {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *POIService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// CategoryCounts tallies every category occurrence across all rows.
func (s *POIService) CategoryCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, row := range s.rows {
		for _, c := range row.Category {
			counts[c]++
		}
	}
	return counts
}

// Close releases the backend.
func (s *POIService) Close() error {
	return s.table.Close()
}

func (s *POIService) persistLocked(ctx context.Context) error {
	if err := s.table.Save(ctx, s.rows); err != nil {
		metrics.PersistFailuresTotal.Inc()
		s.logger.Error("Failed to persist POI table", zap.String("table", s.table.Name()), zap.Error(err))
		return err
	}
	return nil
}

func (s *POIService) indexLocked(id string) int {
	for i, row := range s.rows {
		if row.ID == id {
			return i
		}
	}
	return -1
}

func (s *POIService) snapshotLocked() []models.POI {
	out := make([]models.POI, len(s.rows))
	for i, row := range s.rows {
		out[i] = row.Clone()
	}
	return out
}

func (s *POIService) bumpLocked() uint64 {
	s.version++
	return s.version
}

// notify runs the listeners for the snapshot taken at version. Deliveries
// are serialised and never go backwards, so the last snapshot a listener
// sees is the current table.
func (s *POIService) notify(ctx context.Context, version uint64, rows []models.POI) {
	s.mu.RLock()
	listeners := append([]ChangeFunc(nil), s.listeners...)
	s.mu.RUnlock()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if version <= s.delivered {
		s.logger.Debug("Skipped superseded POI snapshot", zap.Uint64("version", version), zap.Uint64("delivered", s.delivered))
		return
	}
	s.delivered = version
	for _, fn := range listeners {
		fn(ctx, rows)
	}
}

func normalizeCategories(categories []string) []string {
	var out []string
	for _, c := range categories {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
