// Package cache provides score record caches: an in-process expiring LRU,
// a Redis-backed cache and a tiered combination of the two.
package cache

import (
	"bytes"
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/pans-scales-server/internal/domain"
)

const (
	defaultMemoryItems = 1024
	defaultMemoryTTL   = 15 * time.Minute
)

// MemoryCache is an in-process LRU with a single TTL for every entry.
type MemoryCache struct {
	lru *expirable.LRU[string, domain.ScoreRecord]
}

// NewMemoryCache creates an LRU holding up to size records for ttl.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = defaultMemoryItems
	}
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	return &MemoryCache{lru: expirable.NewLRU[string, domain.ScoreRecord](size, nil, ttl)}
}

// Get returns a copy of the cached record.
func (m *MemoryCache) Get(_ context.Context, id string) (*domain.ScoreRecord, bool, error) {
	rec, ok := m.lru.Get(id)
	if !ok {
		return nil, false, nil
	}
	rec = cloneRecord(rec)
	return &rec, true, nil
}

// cloneRecord copies the JSON payloads so callers never share the cached bytes.
func cloneRecord(rec domain.ScoreRecord) domain.ScoreRecord {
	rec.Answers = bytes.Clone(rec.Answers)
	rec.Breakdown = bytes.Clone(rec.Breakdown)
	return rec
}

// Set stores a copy of record. The per-call ttl is ignored; entries expire
// after the TTL the cache was created with.
func (m *MemoryCache) Set(_ context.Context, record *domain.ScoreRecord, _ time.Duration) error {
	if record == nil || record.ID == "" {
		return domain.NewValidationError("id", "record ID is required", nil)
	}
	m.lru.Add(record.ID, cloneRecord(*record))
	return nil
}

// Delete removes id from the cache.
func (m *MemoryCache) Delete(_ context.Context, id string) error {
	m.lru.Remove(id)
	return nil
}

// Len returns the number of live entries.
func (m *MemoryCache) Len() int {
	return m.lru.Len()
}
