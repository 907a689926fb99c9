package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pans-scales-server/internal/database"
	"github.com/pans-scales-server/internal/domain"
)

// generateTestPassword creates a random password for test databases
func generateTestPassword() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(b)
}

func setupTestDB(t *testing.T) (*database.DB, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}
	ctx := context.Background()
	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("PostgreSQL container unavailable: %v", err)
	}

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := domain.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		Database:        "testdb",
		Username:        "testuser",
		Password:        testPassword,
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.NewConnection(ctx, cfg, logger)
	require.NoError(t, err)

	require.NoError(t, database.Migrate(ctx, database.MigrationURL(cfg), "../../migrations", logger))

	cleanup := func() {
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}
	return db, cleanup
}

func testScoreRecord(kind domain.InstrumentKind, subject string, created time.Time) *domain.ScoreRecord {
	return &domain.ScoreRecord{
		ID:         uuid.New().String(),
		Instrument: kind,
		SubjectID:  subject,
		Answers:    json.RawMessage(`{"ratings":{"panic":2}}`),
		Breakdown:  json.RawMessage(`{"total":42,"severity":{"label":"moderate"}}`),
		Total:      42,
		Severity:   "moderate",
		CreatedAt:  created,
	}
}

func TestScoreRecordRepository(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewScoreRecordRepository(db.Pool, logger)
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	first := testScoreRecord(domain.PANS31, "subject-a", base)
	second := testScoreRecord(domain.PANS31, "subject-a", base.Add(time.Hour))
	other := testScoreRecord(domain.CBI, "subject-b", base.Add(2*time.Hour))

	for _, rec := range []*domain.ScoreRecord{first, second, other} {
		require.NoError(t, repo.Save(ctx, rec))
	}

	t.Run("get", func(t *testing.T) {
		got, err := repo.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
		assert.Equal(t, domain.PANS31, got.Instrument)
		assert.Equal(t, 42, got.Total)
		assert.JSONEq(t, string(first.Breakdown), string(got.Breakdown))
		assert.True(t, base.Equal(got.CreatedAt))
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.New().String())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("duplicate id", func(t *testing.T) {
		assert.Error(t, repo.Save(ctx, first))
	})

	t.Run("list filtered newest first", func(t *testing.T) {
		list, err := repo.List(ctx, domain.ResultFilter{Instrument: domain.PANS31, SubjectID: "subject-a"})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID)
		assert.Equal(t, first.ID, list[1].ID)
	})

	t.Run("list paged", func(t *testing.T) {
		list, err := repo.List(ctx, domain.ResultFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, second.ID, list[0].ID)
	})

	t.Run("count", func(t *testing.T) {
		n, err := repo.Count(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		n, err = repo.Count(ctx, domain.CBI)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, other.ID))
		assert.ErrorIs(t, repo.Delete(ctx, other.ID), domain.ErrNotFound)
	})
}
