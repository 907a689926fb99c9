package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pans-scales-server/internal/domain"
)

// TieredCache checks its tiers in order and back-fills faster tiers on a hit
// in a slower one. Tier errors are logged and treated as misses.
type TieredCache struct {
	tiers  []domain.ResultCache
	logger *logrus.Logger
}

// NewTieredCache creates a cache over tiers, fastest first. Nil tiers are skipped.
func NewTieredCache(logger *logrus.Logger, tiers ...domain.ResultCache) *TieredCache {
	t := &TieredCache{logger: logger}
	for _, tier := range tiers {
		if tier != nil {
			t.tiers = append(t.tiers, tier)
		}
	}
	return t
}

// Get implements domain.ResultCache.
func (t *TieredCache) Get(ctx context.Context, id string) (*domain.ScoreRecord, bool, error) {
	for i, tier := range t.tiers {
		rec, ok, err := tier.Get(ctx, id)
		if err != nil {
			t.logger.WithError(err).WithFields(logrus.Fields{"result_id": id, "tier": i}).Warn("Cache tier read failed")
			continue
		}
		if !ok {
			continue
		}
		for j := 0; j < i; j++ {
			if err := t.tiers[j].Set(ctx, rec, 0); err != nil {
				t.logger.WithError(err).WithField("tier", j).Debug("Cache back-fill failed")
			}
		}
		return rec, true, nil
	}
	return nil, false, nil
}

// Set writes record to every tier and returns the last error seen.
func (t *TieredCache) Set(ctx context.Context, record *domain.ScoreRecord, ttl time.Duration) error {
	var lastErr error
	for i, tier := range t.tiers {
		if err := tier.Set(ctx, record, ttl); err != nil {
			t.logger.WithError(err).WithField("tier", i).Warn("Cache tier write failed")
			lastErr = err
		}
	}
	return lastErr
}

// Delete removes id from every tier.
func (t *TieredCache) Delete(ctx context.Context, id string) error {
	var lastErr error
	for _, tier := range t.tiers {
		if err := tier.Delete(ctx, id); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
