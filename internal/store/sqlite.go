// Package store provides the SQLite-backed result store used by single-binary
// deployments (MCP server and CLI).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pans-scales-server/internal/domain"
)

// ExportVersion is written into every export document.
const ExportVersion = "1.0"

// maxExportLimit is the maximum number of records exported at once.
const maxExportLimit = 1000000

// SQLiteStore implements domain.ResultStore and domain.ResultArchive using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (and if needed creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets readers proceed while a save is in flight.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s, err := NewSQLiteStoreFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.dbPath = dbPath
	return s, nil
}

// NewSQLiteStoreFromDB wraps an open database handle and ensures the schema exists.
func NewSQLiteStoreFromDB(db *sql.DB) (*SQLiteStore, error) {
	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Path returns the database file path, empty for wrapped handles.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*domain.ScoreRecord, error) {
	rec := &domain.ScoreRecord{}
	var instrument, answers, breakdown string

	err := s.Scan(
		&rec.ID, &instrument, &rec.SubjectID, &answers, &breakdown,
		&rec.Total, &rec.Severity, &rec.Outcome, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Instrument = domain.InstrumentKind(instrument)
	rec.Answers = json.RawMessage(answers)
	rec.Breakdown = json.RawMessage(breakdown)
	return rec, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS score_results (
		id TEXT PRIMARY KEY,
		instrument TEXT NOT NULL,
		subject_id TEXT NOT NULL DEFAULT '',
		answers TEXT NOT NULL,
		breakdown TEXT NOT NULL,
		total INTEGER NOT NULL,
		severity TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_score_results_instrument ON score_results(instrument);
	CREATE INDEX IF NOT EXISTS idx_score_results_subject ON score_results(subject_id);
	CREATE INDEX IF NOT EXISTS idx_score_results_created_at ON score_results(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

const selectColumns = `SELECT id, instrument, subject_id, answers, breakdown,
	total, severity, outcome, created_at FROM score_results`

// Save inserts a new record. Records are immutable; saving an existing ID fails.
func (s *SQLiteStore) Save(ctx context.Context, record *domain.ScoreRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO score_results (
			id, instrument, subject_id, answers, breakdown,
			total, severity, outcome, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		string(record.Instrument),
		record.SubjectID,
		string(record.Answers),
		string(record.Breakdown),
		record.Total,
		record.Severity,
		record.Outcome,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.ScoreRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rec, nil
}

// List returns records matching filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter domain.ResultFilter) ([]*domain.ScoreRecord, error) {
	filter = filter.Normalize()
	return s.list(ctx, filter.Instrument, filter.SubjectID, filter.Limit, filter.Offset)
}

func (s *SQLiteStore) list(ctx context.Context, instrument domain.InstrumentKind, subjectID string, limit, offset int) ([]*domain.ScoreRecord, error) {
	var where []string
	var args []interface{}
	if instrument != "" {
		where = append(where, "instrument = ?")
		args = append(args, string(instrument))
	}
	if subjectID != "" {
		where = append(where, "subject_id = ?")
		args = append(args, subjectID)
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	result := []*domain.ScoreRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Count returns the number of stored records, optionally for one instrument.
func (s *SQLiteStore) Count(ctx context.Context, instrument domain.InstrumentKind) (int64, error) {
	var count int64
	var err error
	if instrument == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM score_results").Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM score_results WHERE instrument = ?", string(instrument)).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return count, nil
}

// Delete removes a record by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM score_results WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("result %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ExportJSON writes every stored record as a versioned export document.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.list(ctx, "", "", maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}

	export := &domain.ScoreRecordExport{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Records:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON reads an export document and inserts records whose ID is not
// already present.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export domain.ScoreRecordExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, rec := range export.Records {
		if rec == nil {
			continue
		}
		_, err := s.Get(ctx, rec.ID)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}

		if err := s.Save(ctx, rec); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
