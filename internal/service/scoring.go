package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/pans-scales-server/internal/domain"
	"github.com/pans-scales-server/pkg/scales"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultSaveTimeout = 5 * time.Second
	DefaultCacheTTL    = 15 * time.Minute
)

// BreakerConfig configures the circuit breaker guarding result persistence.
type BreakerConfig struct {
	MaxRequests      uint32        `json:"max_requests"`
	Interval         time.Duration `json:"interval"`
	Timeout          time.Duration `json:"timeout"`
	FailureThreshold uint32        `json:"failure_threshold"`
}

// DefaultBreakerConfig returns the breaker settings used when none are given.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Options wires the optional collaborators of a ScoringService. A nil Store
// disables persistence; a nil Cache disables result caching.
type Options struct {
	Store       domain.ResultStore
	Cache       domain.ResultCache
	SaveTimeout time.Duration
	CacheTTL    time.Duration
	Breaker     BreakerConfig
}

// ScoreRequest is a raw scoring request as received by a transport.
type ScoreRequest struct {
	Instrument domain.InstrumentKind `json:"instrument"`
	Answers    json.RawMessage       `json:"answers"`
	SubjectID  string                `json:"subject_id,omitempty"`
	Persist    bool                  `json:"persist"`
}

// ScoreResponse carries the computed breakdown and the persistence outcome.
type ScoreResponse struct {
	ResultID   string                `json:"result_id,omitempty"`
	Instrument domain.InstrumentKind `json:"instrument"`
	Summary    scales.Summary        `json:"summary"`
	Breakdown  scales.Breakdown      `json:"breakdown"`
	Save       domain.SaveStatus     `json:"save"`
	ComputedAt time.Time             `json:"computed_at"`
}

// ScoringService computes instrument scores and records them.
type ScoringService struct {
	logger      *logrus.Logger
	engine      *scales.Engine
	store       domain.ResultStore
	cache       domain.ResultCache
	breaker     *gobreaker.CircuitBreaker
	saveTimeout time.Duration
	cacheTTL    time.Duration
}

// NewScoringService creates a new scoring service
func NewScoringService(logger *logrus.Logger, engine *scales.Engine, opts Options) *ScoringService {
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = DefaultSaveTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Breaker == (BreakerConfig{}) {
		opts.Breaker = DefaultBreakerConfig()
	}

	threshold := opts.Breaker.FailureThreshold
	settings := gobreaker.Settings{
		Name:        "result-store",
		MaxRequests: opts.Breaker.MaxRequests,
		Interval:    opts.Breaker.Interval,
		Timeout:     opts.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &ScoringService{
		logger:      logger,
		engine:      engine,
		store:       opts.Store,
		cache:       opts.Cache,
		breaker:     gobreaker.NewCircuitBreaker(settings),
		saveTimeout: opts.SaveTimeout,
		cacheTTL:    opts.CacheTTL,
	}
}

// DecodeForm strictly decodes raw answers into the form type of kind.
// Unknown fields are reported as ErrUnknownItem.
func DecodeForm(kind domain.InstrumentKind, raw json.RawMessage) (scales.Form, error) {
	form, err := scales.NewForm(kind)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &domain.IncompleteInputError{Instrument: kind, Missing: []string{"answers"}}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(form); err != nil {
		if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownItem, field)
		}
		return nil, domain.NewValidationError("answers", err.Error(), nil)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, domain.NewValidationError("answers", "unexpected data after the answers document", nil)
	}
	return form, nil
}

// Score decodes and scores a raw request.
func (s *ScoringService) Score(ctx context.Context, req ScoreRequest) (*ScoreResponse, error) {
	kind, err := domain.ParseInstrumentKind(string(req.Instrument))
	if err != nil {
		return nil, err
	}
	form, err := DecodeForm(kind, req.Answers)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"instrument": kind,
			"error":      err.Error(),
		}).Debug("Rejected scoring request")
		return nil, err
	}
	return s.ScoreForm(ctx, form, req.SubjectID, req.Persist)
}

// ScoreForm scores an already decoded form. When persist is set the record
// is saved; a failed save is reported in the response, never as an error.
func (s *ScoringService) ScoreForm(ctx context.Context, form scales.Form, subjectID string, persist bool) (*ScoreResponse, error) {
	startTime := time.Now()

	breakdown, err := s.engine.Compute(form)
	if err != nil {
		return nil, err
	}

	summary := breakdown.Summary()
	resp := &ScoreResponse{
		Instrument: breakdown.Instrument(),
		Summary:    summary,
		Breakdown:  breakdown,
		ComputedAt: time.Now().UTC(),
	}

	s.logger.WithFields(logrus.Fields{
		"instrument":      resp.Instrument,
		"total":           summary.Total,
		"severity":        summary.Severity,
		"outcome":         summary.Outcome,
		"processing_time": time.Since(startTime),
	}).Info("Scoring completed")

	if persist {
		resp.Save = s.persist(ctx, form, resp, subjectID)
		if resp.Save.Saved {
			resp.ResultID = resp.Save.ID
		}
	}
	return resp, nil
}

func (s *ScoringService) persist(ctx context.Context, form scales.Form, resp *ScoreResponse, subjectID string) domain.SaveStatus {
	if s.store == nil {
		return domain.SaveStatus{}
	}
	status := domain.SaveStatus{Attempted: true}

	answers, err := json.Marshal(form)
	if err != nil {
		status.Error = fmt.Errorf("%w: encode answers: %v", domain.ErrPersistence, err).Error()
		return status
	}
	breakdown, err := json.Marshal(resp.Breakdown)
	if err != nil {
		status.Error = fmt.Errorf("%w: encode breakdown: %v", domain.ErrPersistence, err).Error()
		return status
	}

	record := &domain.ScoreRecord{
		ID:         uuid.New().String(),
		Instrument: resp.Instrument,
		SubjectID:  subjectID,
		Answers:    answers,
		Breakdown:  breakdown,
		Total:      resp.Summary.Total,
		Severity:   resp.Summary.Severity,
		Outcome:    resp.Summary.Outcome,
		CreatedAt:  resp.ComputedAt,
	}

	saveCtx, cancel := context.WithTimeout(ctx, s.saveTimeout)
	defer cancel()

	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.store.Save(saveCtx, record)
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"instrument": record.Instrument,
			"result_id":  record.ID,
			"error":      err.Error(),
		}).Warn("Failed to persist score, returning unsaved result")
		status.Error = fmt.Errorf("%w: %v", domain.ErrPersistence, err).Error()
		return status
	}

	status.Saved = true
	status.ID = record.ID
	s.logger.WithFields(logrus.Fields(record.LogFields())).Info("Score persisted")

	if s.cache != nil {
		if err := s.cache.Set(ctx, record, s.cacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache score record")
		}
	}
	return status
}

// GetResult returns a stored record, consulting the cache first.
func (s *ScoringService) GetResult(ctx context.Context, id string) (*domain.ScoreRecord, error) {
	if id == "" {
		return nil, domain.NewValidationError("id", "result ID is required", id)
	}

	if s.cache != nil {
		record, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.WithError(err).Warn("Cache lookup failed")
		} else if ok {
			return record, nil
		}
	}

	if s.store == nil {
		return nil, fmt.Errorf("result %s: %w", id, domain.ErrNotFound)
	}
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, record, s.cacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache score record")
		}
	}
	return record, nil
}

// ListResults returns stored records, newest first.
func (s *ScoringService) ListResults(ctx context.Context, filter domain.ResultFilter) ([]*domain.ScoreRecord, error) {
	if filter.Instrument != "" && !filter.Instrument.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownInstrument, filter.Instrument)
	}
	if s.store == nil {
		return []*domain.ScoreRecord{}, nil
	}
	return s.store.List(ctx, filter.Normalize())
}

// DeleteResult removes a stored record and evicts it from the cache.
func (s *ScoringService) DeleteResult(ctx context.Context, id string) error {
	if s.store == nil {
		return fmt.Errorf("result %s: %w", id, domain.ErrNotFound)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, id); err != nil {
			s.logger.WithError(err).Warn("Failed to evict score record")
		}
	}
	return nil
}

// Instruments lists every supported instrument.
func (s *ScoringService) Instruments() []scales.InstrumentInfo {
	return s.engine.Instruments()
}

// Describe returns metadata for one instrument.
func (s *ScoringService) Describe(kind domain.InstrumentKind) (scales.InstrumentInfo, error) {
	if !kind.IsValid() {
		return scales.InstrumentInfo{}, fmt.Errorf("%w: %q", domain.ErrUnknownInstrument, kind)
	}
	return s.engine.Describe(kind), nil
}

// PersistenceEnabled reports whether a result store is configured.
func (s *ScoringService) PersistenceEnabled() bool {
	return s.store != nil
}

// BreakerState returns the persistence breaker state for health reporting.
func (s *ScoringService) BreakerState() string {
	return s.breaker.State().String()
}

// IsInputError reports whether err was caused by the caller's answers rather
// than by the service.
func IsInputError(err error) bool {
	var ve *domain.ValidationError
	return errors.Is(err, domain.ErrIncompleteInput) ||
		errors.Is(err, domain.ErrRatingOutOfRange) ||
		errors.Is(err, domain.ErrUnknownItem) ||
		errors.Is(err, domain.ErrInvalidResponse) ||
		errors.Is(err, domain.ErrUnknownInstrument) ||
		errors.As(err, &ve)
}
