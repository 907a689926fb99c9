package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pans-scales-server/internal/domain"
	"github.com/pans-scales-server/internal/service"
	"github.com/pans-scales-server/pkg/scales"
)

// SymptomScaleInput is the input of score_symptom_scale.
type SymptomScaleInput struct {
	Answers   scales.SymptomScaleForm `json:"answers" jsonschema:"ratings keyed by item, each with before, after and current values 0-5"`
	SubjectID string                  `json:"subject_id,omitempty" jsonschema:"optional pseudonymous subject identifier"`
	Persist   *bool                   `json:"persist,omitempty" jsonschema:"save the result; defaults to the server setting"`
}

// DiagnosticInput is the input of score_diagnostic_criteria.
type DiagnosticInput struct {
	Answers   scales.DiagnosticForm `json:"answers" jsonschema:"criterion responses yes, no or unknown; present criteria may carry a severity 0-4"`
	SubjectID string                `json:"subject_id,omitempty" jsonschema:"optional pseudonymous subject identifier"`
	Persist   *bool                 `json:"persist,omitempty" jsonschema:"save the result; defaults to the server setting"`
}

// PANS31Input is the input of score_pans31.
type PANS31Input struct {
	Answers   scales.PANS31Form `json:"answers" jsonschema:"ratings keyed by item, 0-4"`
	SubjectID string            `json:"subject_id,omitempty" jsonschema:"optional pseudonymous subject identifier"`
	Persist   *bool             `json:"persist,omitempty" jsonschema:"save the result; defaults to the server setting"`
}

// PTECInput is the input of score_ptec.
type PTECInput struct {
	Answers   scales.PTECForm `json:"answers" jsonschema:"ratings keyed by item, 0-3"`
	SubjectID string          `json:"subject_id,omitempty" jsonschema:"optional pseudonymous subject identifier"`
	Persist   *bool           `json:"persist,omitempty" jsonschema:"save the result; defaults to the server setting"`
}

// CBIInput is the input of score_cbi.
type CBIInput struct {
	Answers   scales.CBIForm `json:"answers" jsonschema:"ratings keyed by item, 0-4"`
	SubjectID string         `json:"subject_id,omitempty" jsonschema:"optional pseudonymous subject identifier"`
	Persist   *bool          `json:"persist,omitempty" jsonschema:"save the result; defaults to the server setting"`
}

// ListInstrumentsInput is the input of list_instruments.
type ListInstrumentsInput struct {
	Kind string `json:"kind,omitempty" jsonschema:"instrument to describe; omit to list all"`
}

// GetResultInput is the input of get_result.
type GetResultInput struct {
	ID string `json:"id" jsonschema:"result ID returned by a scoring tool"`
}

// ListResultsInput is the input of list_results.
type ListResultsInput struct {
	Instrument string `json:"instrument,omitempty" jsonschema:"only results of this instrument"`
	SubjectID  string `json:"subject_id,omitempty" jsonschema:"only results for this subject"`
	Limit      int    `json:"limit,omitempty" jsonschema:"page size, default 50"`
	Offset     int    `json:"offset,omitempty" jsonschema:"results to skip"`
}

func (s *Server) handleScoreSymptomScale(ctx context.Context, req *mcp.CallToolRequest, in SymptomScaleInput) (*mcp.CallToolResult, any, error) {
	return s.score(ctx, ToolScoreSymptomScale, &in.Answers, in.SubjectID, in.Persist)
}

func (s *Server) handleScoreDiagnostic(ctx context.Context, req *mcp.CallToolRequest, in DiagnosticInput) (*mcp.CallToolResult, any, error) {
	return s.score(ctx, ToolScoreDiagnosticCriteria, &in.Answers, in.SubjectID, in.Persist)
}

func (s *Server) handleScorePANS31(ctx context.Context, req *mcp.CallToolRequest, in PANS31Input) (*mcp.CallToolResult, any, error) {
	return s.score(ctx, ToolScorePANS31, &in.Answers, in.SubjectID, in.Persist)
}

func (s *Server) handleScorePTEC(ctx context.Context, req *mcp.CallToolRequest, in PTECInput) (*mcp.CallToolResult, any, error) {
	return s.score(ctx, ToolScorePTEC, &in.Answers, in.SubjectID, in.Persist)
}

func (s *Server) handleScoreCBI(ctx context.Context, req *mcp.CallToolRequest, in CBIInput) (*mcp.CallToolResult, any, error) {
	return s.score(ctx, ToolScoreCBI, &in.Answers, in.SubjectID, in.Persist)
}

func (s *Server) score(ctx context.Context, tool string, form scales.Form, subjectID string, persist *bool) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", tool).Info("Tool invoked")

	save := s.persistDefault
	if persist != nil {
		save = *persist
	}

	resp, err := s.service.ScoreForm(ctx, form, subjectID, save)
	if err != nil {
		if service.IsInputError(err) {
			return s.errorResult(tool, err), nil, nil
		}
		return nil, nil, err
	}
	return jsonResult(resp)
}

func (s *Server) handleListInstruments(ctx context.Context, req *mcp.CallToolRequest, in ListInstrumentsInput) (*mcp.CallToolResult, any, error) {
	if in.Kind == "" {
		return jsonResult(map[string]any{"instruments": s.service.Instruments()})
	}
	info, err := s.service.Describe(domain.InstrumentKind(in.Kind))
	if err != nil {
		return s.errorResult(ToolListInstruments, err), nil, nil
	}
	return jsonResult(info)
}

func (s *Server) handleGetResult(ctx context.Context, req *mcp.CallToolRequest, in GetResultInput) (*mcp.CallToolResult, any, error) {
	record, err := s.service.GetResult(ctx, in.ID)
	if err != nil {
		if service.IsInputError(err) || domain.ErrorCode(err) == domain.ErrCodeNotFound {
			return s.errorResult(ToolGetResult, err), nil, nil
		}
		return nil, nil, err
	}
	return jsonResult(record)
}

func (s *Server) handleListResults(ctx context.Context, req *mcp.CallToolRequest, in ListResultsInput) (*mcp.CallToolResult, any, error) {
	records, err := s.service.ListResults(ctx, domain.ResultFilter{
		Instrument: domain.InstrumentKind(in.Instrument),
		SubjectID:  in.SubjectID,
		Limit:      in.Limit,
		Offset:     in.Offset,
	})
	if err != nil {
		if service.IsInputError(err) {
			return s.errorResult(ToolListResults, err), nil, nil
		}
		return nil, nil, err
	}
	return jsonResult(map[string]any{"results": records, "count": len(records)})
}
