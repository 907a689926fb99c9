package domain

import (
	"encoding/json"
	"time"
)

// ScoreRecord is a persisted scoring run: the answer snapshot and the breakdown
// computed from it. Breakdown is stored as the engine's JSON encoding so the
// record does not depend on the engine's Go types.
type ScoreRecord struct {
	ID         string          `json:"id"`
	Instrument InstrumentKind  `json:"instrument"`
	SubjectID  string          `json:"subject_id,omitempty"`
	Answers    json.RawMessage `json:"answers"`
	Breakdown  json.RawMessage `json:"breakdown"`
	Total      int             `json:"total"`
	Severity   string          `json:"severity,omitempty"`
	Outcome    string          `json:"outcome,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Validate checks that the record can be persisted.
func (r *ScoreRecord) Validate() error {
	if r.ID == "" {
		return NewValidationError("id", "record ID is required", r.ID)
	}
	if !r.Instrument.IsValid() {
		return NewValidationError("instrument", "unknown instrument", r.Instrument)
	}
	if len(r.Breakdown) == 0 {
		return NewValidationError("breakdown", "breakdown is required", nil)
	}
	return nil
}

// LogFields returns structured logging fields for audit trails.
// Answers are deliberately excluded.
func (r *ScoreRecord) LogFields() map[string]any {
	return map[string]any{
		"result_id":  r.ID,
		"instrument": string(r.Instrument),
		"subject_id": r.SubjectID,
		"total":      r.Total,
		"severity":   r.Severity,
		"outcome":    r.Outcome,
	}
}

// Result listing limits.
const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// ResultFilter narrows ListResults queries.
type ResultFilter struct {
	Instrument InstrumentKind
	SubjectID  string
	Limit      int
	Offset     int
}

// Normalize applies the default and maximum page size and clamps a negative offset.
func (f ResultFilter) Normalize() ResultFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// ScoreRecordExport is the JSON export document for stored results.
type ScoreRecordExport struct {
	Version    string         `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Count      int            `json:"count"`
	Records    []*ScoreRecord `json:"records"`
}

// SaveStatus reports the outcome of the best-effort persistence attempt.
// A failed save never invalidates the computed result.
type SaveStatus struct {
	Attempted bool   `json:"attempted"`
	Saved     bool   `json:"saved"`
	ID        string `json:"id,omitempty"`
	Error     string `json:"error,omitempty"`
}
