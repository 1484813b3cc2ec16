// Package settings exposes the business configuration table as typed,
// defaulted lookups behind a load-once snapshot.
package settings

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"airtime/internal/logging"
	"airtime/internal/models"
)

// Source supplies the raw settings rows.
type Source interface {
	AllSettings(ctx context.Context) ([]models.Setting, error)
}

type snapshot struct {
	values     map[string]string
	categories map[string]map[string]string
}

// Store loads every setting on first use and serves reads from memory until
// Invalidate is called. Concurrent first callers wait for a single load.
type Store struct {
	source Source
	logger *zap.Logger

	mu     sync.Mutex
	loaded atomic.Bool
	snap   atomic.Pointer[snapshot]
}

func NewStore(source Source, logger *zap.Logger) *Store {
	s := &Store{source: source, logger: logging.OrNop(logger)}
	s.snap.Store(&snapshot{values: map[string]string{}, categories: map[string]map[string]string{}})
	return s
}

// Load fetches the settings if they are not loaded yet. A failed load leaves
// the gate closed so the next caller retries.
func (s *Store) Load(ctx context.Context) error {
	if s.loaded.Load() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded.Load() {
		return nil
	}

	rows, err := s.source.AllSettings(ctx)
	if err != nil {
		return err
	}

	next := &snapshot{
		values:     make(map[string]string, len(rows)),
		categories: make(map[string]map[string]string),
	}
	for _, row := range rows {
		next.values[row.Key] = row.Value
		cat, ok := next.categories[row.Category]
		if !ok {
			cat = make(map[string]string)
			next.categories[row.Category] = cat
		}
		cat[row.Key] = row.Value
	}

	s.snap.Store(next)
	s.loaded.Store(true)
	s.logger.Info("settings loaded", zap.Int("count", len(rows)))
	return nil
}

// Invalidate drops the loaded state; the next read reloads from the source.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.loaded.Store(false)
	s.mu.Unlock()
	s.logger.Info("settings invalidated")
}

func (s *Store) current(ctx context.Context) *snapshot {
	if err := s.Load(ctx); err != nil {
		s.logger.Warn("settings unavailable, serving defaults", zap.Error(err))
	}
	return s.snap.Load()
}

// Lookup returns the raw value and whether the key exists.
func (s *Store) Lookup(ctx context.Context, key string) (string, bool) {
	v, ok := s.current(ctx).values[key]
	return v, ok
}

// String returns the value of key, or def when it is missing or blank.
func (s *Store) String(ctx context.Context, key, def string) string {
	v, ok := s.Lookup(ctx, key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func (s *Store) Int(ctx context.Context, key string, def int) int {
	v, ok := s.Lookup(ctx, key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		s.logger.Warn("setting is not an integer", zap.String("key", key), zap.String("value", v))
		return def
	}
	return n
}

func (s *Store) Bool(ctx context.Context, key string, def bool) bool {
	v, ok := s.Lookup(ctx, key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		s.logger.Warn("setting is not a boolean", zap.String("key", key), zap.String("value", v))
		return def
	}
	return b
}

func (s *Store) Decimal(ctx context.Context, key string, def decimal.Decimal) decimal.Decimal {
	v, ok := s.Lookup(ctx, key)
	if !ok {
		return def
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		s.logger.Warn("setting is not a decimal", zap.String("key", key), zap.String("value", v))
		return def
	}
	return d
}

// Strings splits a comma separated value, dropping blank items.
func (s *Store) Strings(ctx context.Context, key string, def []string) []string {
	v, ok := s.Lookup(ctx, key)
	if !ok {
		return def
	}
	out := splitList(v)
	if len(out) == 0 {
		return def
	}
	return out
}

// Decimals parses a comma separated list of amounts. Missing keys yield an
// empty list and a malformed item yields an error; callers treat both as a
// configuration problem.
func (s *Store) Decimals(ctx context.Context, key string) ([]decimal.Decimal, error) {
	v, ok := s.Lookup(ctx, key)
	if !ok {
		return nil, nil
	}
	items := splitList(v)
	out := make([]decimal.Decimal, 0, len(items))
	for _, item := range items {
		d, err := decimal.NewFromString(item)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Category returns a copy of every key in the category.
func (s *Store) Category(ctx context.Context, category string) map[string]string {
	src := s.current(ctx).categories[category]
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
