package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/pans-scales-server/internal/domain"
)

const uniqueViolation = "23505"

const selectScoreColumns = `
	SELECT id, instrument, subject_id, answers, breakdown,
		   total, severity, outcome, created_at
	FROM score_results`

// ScoreRecordRepository persists score records in PostgreSQL.
type ScoreRecordRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewScoreRecordRepository creates a new score record repository
func NewScoreRecordRepository(db *pgxpool.Pool, logger *logrus.Logger) *ScoreRecordRepository {
	return &ScoreRecordRepository{
		db:  db,
		log: logger,
	}
}

// Save inserts a new score record.
func (r *ScoreRecordRepository) Save(ctx context.Context, record *domain.ScoreRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO score_results (
			id, instrument, subject_id, answers, breakdown,
			total, severity, outcome, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := r.db.Exec(ctx, query,
		record.ID,
		string(record.Instrument),
		record.SubjectID,
		[]byte(record.Answers),
		[]byte(record.Breakdown),
		record.Total,
		record.Severity,
		record.Outcome,
		record.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("result %s already exists: %w", record.ID, err)
		}
		r.log.WithFields(logrus.Fields{
			"result_id":  record.ID,
			"instrument": record.Instrument,
			"error":      err,
		}).Error("Failed to save score record")
		return fmt.Errorf("saving score record: %w", err)
	}

	r.log.WithFields(logrus.Fields(record.LogFields())).Debug("Score record saved")
	return nil
}

// Get retrieves a score record by its ID
func (r *ScoreRecordRepository) Get(ctx context.Context, id string) (*domain.ScoreRecord, error) {
	record, err := scanScoreRecord(r.db.QueryRow(ctx, selectScoreColumns+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("result %s: %w", id, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"result_id": id,
			"error":     err,
		}).Error("Failed to get score record")
		return nil, fmt.Errorf("getting score record: %w", err)
	}
	return record, nil
}

// List returns records matching filter, newest first.
func (r *ScoreRecordRepository) List(ctx context.Context, filter domain.ResultFilter) ([]*domain.ScoreRecord, error) {
	filter = filter.Normalize()

	var where []string
	var args []interface{}
	if filter.Instrument != "" {
		args = append(args, string(filter.Instrument))
		where = append(where, fmt.Sprintf("instrument = $%d", len(args)))
	}
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		where = append(where, fmt.Sprintf("subject_id = $%d", len(args)))
	}

	query := selectScoreColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing score records: %w", err)
	}
	defer rows.Close()

	records := []*domain.ScoreRecord{}
	for rows.Next() {
		record, err := scanScoreRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning score record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating score records: %w", err)
	}
	return records, nil
}

// Count returns the number of stored records, optionally for one instrument.
func (r *ScoreRecordRepository) Count(ctx context.Context, instrument domain.InstrumentKind) (int64, error) {
	var count int64
	var err error
	if instrument == "" {
		err = r.db.QueryRow(ctx, "SELECT COUNT(*) FROM score_results").Scan(&count)
	} else {
		err = r.db.QueryRow(ctx, "SELECT COUNT(*) FROM score_results WHERE instrument = $1", string(instrument)).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("counting score records: %w", err)
	}
	return count, nil
}

// Delete removes a score record
func (r *ScoreRecordRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, "DELETE FROM score_results WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting score record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("result %s: %w", id, domain.ErrNotFound)
	}

	r.log.WithField("result_id", id).Info("Score record deleted")
	return nil
}

// Close is a no-op; the pool belongs to database.DB.
func (r *ScoreRecordRepository) Close() error {
	return nil
}

func scanScoreRecord(row pgx.Row) (*domain.ScoreRecord, error) {
	var record domain.ScoreRecord
	var instrument string
	var answers, breakdown []byte

	err := row.Scan(
		&record.ID,
		&instrument,
		&record.SubjectID,
		&answers,
		&breakdown,
		&record.Total,
		&record.Severity,
		&record.Outcome,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Instrument = domain.InstrumentKind(instrument)
	record.Answers = answers
	record.Breakdown = breakdown
	record.CreatedAt = record.CreatedAt.UTC()
	return &record, nil
}
