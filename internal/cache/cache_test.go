package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pans-scales-server/internal/domain"
)

type mockTier struct {
	mock.Mock
}

func (m *mockTier) Get(ctx context.Context, id string) (*domain.ScoreRecord, bool, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*domain.ScoreRecord)
	return rec, args.Bool(1), args.Error(2)
}

func (m *mockTier) Set(ctx context.Context, record *domain.ScoreRecord, ttl time.Duration) error {
	return m.Called(ctx, record, ttl).Error(0)
}

func (m *mockTier) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func testRecord(id string) *domain.ScoreRecord {
	return &domain.ScoreRecord{
		ID:         id,
		Instrument: domain.CBI,
		Answers:    json.RawMessage(`{"ratings":{}}`),
		Breakdown:  json.RawMessage(`{"total":15}`),
		Total:      15,
		Severity:   "low",
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, time.Minute)

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	rec := testRecord("a")
	require.NoError(t, c.Set(ctx, rec, 0))

	got, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, got)

	got.Severity = "changed"
	again, _, _ := c.Get(ctx, "a")
	assert.Equal(t, "low", again.Severity, "cached value must not alias the caller's copy")

	want := string(again.Breakdown)
	again.Breakdown[0] = 'X'
	again.Answers[0] = 'X'
	fresh, _, _ := c.Get(ctx, "a")
	assert.Equal(t, want, string(fresh.Breakdown))
	assert.NotEqual(t, byte('X'), fresh.Answers[0])

	rec.Breakdown[0] = 'Y'
	fresh, _, _ = c.Get(ctx, "a")
	assert.Equal(t, want, string(fresh.Breakdown), "Set must not keep the caller's bytes")

	require.NoError(t, c.Set(ctx, testRecord("b"), 0))
	require.NoError(t, c.Set(ctx, testRecord("c"), 0))
	assert.Equal(t, 2, c.Len())
	_, ok, _ = c.Get(ctx, "a")
	assert.False(t, ok, "least recently used entry is evicted")

	require.NoError(t, c.Delete(ctx, "b"))
	_, ok, _ = c.Get(ctx, "b")
	assert.False(t, ok)

	assert.Error(t, c.Set(ctx, &domain.ScoreRecord{}, 0))
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, 20*time.Millisecond)
	require.NoError(t, c.Set(ctx, testRecord("a"), 0))

	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestTieredCacheBackfill(t *testing.T) {
	ctx := context.Background()
	fast := NewMemoryCache(10, time.Minute)
	slow := new(mockTier)
	rec := testRecord("r1")

	slow.On("Get", ctx, "r1").Return(rec, true, nil).Once()

	tc := NewTieredCache(quietLogger(), fast, slow)
	got, ok, err := tc.Get(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.ID, got.ID)

	// second read is served by the memory tier
	got, ok, err = tc.Get(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, rec.ID, got.ID)
	slow.AssertExpectations(t)
}

func TestTieredCacheTierErrors(t *testing.T) {
	ctx := context.Background()
	broken := new(mockTier)
	broken.On("Get", ctx, "x").Return(nil, false, errors.New("connection refused"))
	broken.On("Set", ctx, mock.Anything, time.Duration(0)).Return(errors.New("connection refused"))
	broken.On("Delete", ctx, "x").Return(nil)

	mem := NewMemoryCache(10, time.Minute)
	tc := NewTieredCache(quietLogger(), nil, mem, broken)

	_, ok, err := tc.Get(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)

	err = tc.Set(ctx, testRecord("x"), 0)
	assert.Error(t, err)
	_, ok, _ = mem.Get(ctx, "x")
	assert.True(t, ok, "healthy tiers are still written")

	require.NoError(t, tc.Delete(ctx, "x"))
	_, ok, _ = mem.Get(ctx, "x")
	assert.False(t, ok)
	broken.AssertExpectations(t)
}
