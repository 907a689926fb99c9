package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pans-scales-server/internal/domain"
	"github.com/pans-scales-server/internal/middleware"
	"github.com/pans-scales-server/internal/service"
)

// scoreBody is the request body of POST /instruments/:kind/score.
type scoreBody struct {
	Answers   json.RawMessage `json:"answers" binding:"required"`
	SubjectID string          `json:"subject_id" binding:"max=255"`
	Persist   *bool           `json:"persist"`
}

func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	deps := gin.H{}
	for name, check := range s.checks {
		if err := check.Health(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = err.Error()
			continue
		}
		deps[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":       state,
		"timestamp":    time.Now().UTC(),
		"version":      Version,
		"persistence":  s.service.PersistenceEnabled(),
		"breaker":      s.service.BreakerState(),
		"dependencies": deps,
	})
}

func (s *Server) handleListInstruments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"instruments": s.service.Instruments()})
}

func (s *Server) handleDescribeInstrument(c *gin.Context) {
	info, err := s.service.Describe(domain.InstrumentKind(c.Param("kind")))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleScore(c *gin.Context) {
	var body scoreBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeError(c, domain.NewValidationError("body", err.Error(), nil))
		return
	}

	persist := s.service.PersistenceEnabled()
	if body.Persist != nil {
		persist = *body.Persist
	}

	resp, err := s.service.Score(c.Request.Context(), service.ScoreRequest{
		Instrument: domain.InstrumentKind(c.Param("kind")),
		Answers:    body.Answers,
		SubjectID:  body.SubjectID,
		Persist:    persist,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	status := http.StatusOK
	if resp.Save.Saved {
		status = http.StatusCreated
		c.Header("Location", "/api/v1/results/"+resp.ResultID)
	}
	c.JSON(status, resp)
}

func (s *Server) handleGetResult(c *gin.Context) {
	record, err := s.service.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleListResults(c *gin.Context) {
	filter := domain.ResultFilter{
		Instrument: domain.InstrumentKind(c.Query("instrument")),
		SubjectID:  c.Query("subject_id"),
	}
	var err error
	if filter.Limit, err = intQuery(c, "limit"); err != nil {
		s.writeError(c, err)
		return
	}
	if filter.Offset, err = intQuery(c, "offset"); err != nil {
		s.writeError(c, err)
		return
	}
	filter = filter.Normalize()

	records, err := s.service.ListResults(c.Request.Context(), filter)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"results": records,
		"count":   len(records),
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

func (s *Server) handleDeleteResult(c *gin.Context) {
	if err := s.service.DeleteResult(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(name, "must be a non-negative integer", raw)
	}
	return n, nil
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownInstrument):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrIncompleteInput),
		errors.Is(err, domain.ErrRatingOutOfRange),
		errors.Is(err, domain.ErrUnknownItem),
		errors.Is(err, domain.ErrInvalidResponse):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ve):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	correlationID := c.GetString(middleware.CorrelationIDKey)

	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.WithFields(logrus.Fields{
			"correlation_id": correlationID,
			"path":           c.FullPath(),
			"error":          err.Error(),
		}).Error("Request failed")
		message = "internal server error"
	}

	apiErr := domain.NewAPIError(domain.ErrorCode(err), message, "", correlationID)

	var incomplete *domain.IncompleteInputError
	var rangeErr *domain.RangeError
	switch {
	case errors.As(err, &incomplete):
		c.AbortWithStatusJSON(status, gin.H{"error": apiErr, "missing": incomplete.Missing})
	case errors.As(err, &rangeErr):
		c.AbortWithStatusJSON(status, gin.H{"error": apiErr, "field": rangeErr})
	default:
		c.AbortWithStatusJSON(status, gin.H{"error": apiErr})
	}
}
