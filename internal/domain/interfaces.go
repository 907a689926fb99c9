package domain

import (
	"context"
	"io"
	"time"
)

// ResultStore persists computed score records. Implementations are
// collaborators of the scoring service; the engine never depends on them.
type ResultStore interface {
	Save(ctx context.Context, record *ScoreRecord) error
	Get(ctx context.Context, id string) (*ScoreRecord, error)
	List(ctx context.Context, filter ResultFilter) ([]*ScoreRecord, error)
	Count(ctx context.Context, instrument InstrumentKind) (int64, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// ResultArchive is implemented by stores that can export and import records.
type ResultArchive interface {
	ExportJSON(ctx context.Context, w io.Writer) error
	ImportJSON(ctx context.Context, r io.Reader) (imported int, skipped int, err error)
}

// ResultCache caches score records by ID.
type ResultCache interface {
	Get(ctx context.Context, id string) (*ScoreRecord, bool, error)
	Set(ctx context.Context, record *ScoreRecord, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	GetScoringConfig() *ScoringConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
