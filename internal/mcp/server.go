// Package mcp exposes the scoring service as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/pans-scales-server/internal/domain"
	"github.com/pans-scales-server/internal/service"
	"github.com/pans-scales-server/pkg/scales"
)

// Tool names.
const (
	ToolScoreSymptomScale       = "score_symptom_scale"
	ToolScoreDiagnosticCriteria = "score_diagnostic_criteria"
	ToolScorePANS31             = "score_pans31"
	ToolScorePTEC               = "score_ptec"
	ToolScoreCBI                = "score_cbi"
	ToolListInstruments         = "list_instruments"
	ToolGetResult               = "get_result"
	ToolListResults             = "list_results"
)

// ServerOptions names the server and sets whether scores are saved when a
// call does not say.
type ServerOptions struct {
	Name           string
	Version        string
	PersistDefault bool
}

// Server registers one tool per instrument plus result lookups.
type Server struct {
	mcpServer      *mcp.Server
	service        *service.ScoringService
	logger         *logrus.Logger
	persistDefault bool
	tools          []*mcp.Tool
}

// NewServer creates an MCP server backed by svc.
func NewServer(svc *service.ScoringService, logger *logrus.Logger, opts ServerOptions) *Server {
	if opts.Name == "" {
		opts.Name = "pans-scales-server"
	}
	if opts.Version == "" {
		opts.Version = "v1.0.0"
	}

	s := &Server{
		mcpServer:      mcp.NewServer(&mcp.Implementation{Name: opts.Name, Version: opts.Version}, nil),
		service:        svc,
		logger:         logger,
		persistDefault: opts.PersistDefault,
	}
	s.registerTools()
	return s
}

// Run serves the protocol over stdin/stdout until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.WithField("tool_count", len(s.tools)).Info("Starting MCP server on stdio")
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

// ToolNames lists the registered tools in registration order.
func (s *Server) ToolNames() []string {
	names := make([]string, len(s.tools))
	for i, t := range s.tools {
		names[i] = t.Name
	}
	return names
}

// ToolDescription returns the description of a registered tool.
func (s *Server) ToolDescription(name string) (string, bool) {
	for _, t := range s.tools {
		if t.Name == name {
			return t.Description, true
		}
	}
	return "", false
}

func (s *Server) registerTools() {
	addTool(s, &mcp.Tool{
		Name:        ToolScoreSymptomScale,
		Description: symptomScaleDescription(),
	}, s.handleScoreSymptomScale)
	addTool(s, &mcp.Tool{
		Name:        ToolScoreDiagnosticCriteria,
		Description: diagnosticDescription(),
	}, s.handleScoreDiagnostic)
	addTool(s, &mcp.Tool{
		Name:        ToolScorePANS31,
		Description: pans31Description(),
	}, s.handleScorePANS31)
	addTool(s, &mcp.Tool{
		Name:        ToolScorePTEC,
		Description: ptecDescription(),
	}, s.handleScorePTEC)
	addTool(s, &mcp.Tool{
		Name:        ToolScoreCBI,
		Description: cbiDescription(),
	}, s.handleScoreCBI)
	addTool(s, &mcp.Tool{
		Name:        ToolListInstruments,
		Description: "List the supported instruments with their items, rating range, maximum total and severity bands. Pass kind to describe a single instrument.",
	}, s.handleListInstruments)
	addTool(s, &mcp.Tool{
		Name:        ToolGetResult,
		Description: "Fetch a previously saved score by result ID.",
	}, s.handleGetResult)
	addTool(s, &mcp.Tool{
		Name:        ToolListResults,
		Description: "List saved scores, newest first, optionally filtered by instrument and subject.",
	}, s.handleListResults)

	s.logger.WithField("tool_count", len(s.tools)).Info("Successfully registered all tools")
}

func addTool[In any](s *Server, tool *mcp.Tool, h mcp.ToolHandlerFor[In, any]) {
	mcp.AddTool(s.mcpServer, tool, h)
	s.tools = append(s.tools, tool)
	s.logger.WithField("tool_name", tool.Name).Debug("Registered MCP tool")
}

// Scoring tool descriptions are built from the catalogs so the advertised
// rating ranges always match what the engine accepts.

func symptomScaleDescription() string {
	cat := scales.SymptomScaleCatalog
	return fmt.Sprintf("Score the PANS symptom scale: %d items rated 0-%d for the before, after and current windows. "+
		"Returns per-window primary, associated and functional components, total (0-%d) and severity band.",
		len(cat.Items), cat.Scale.Max, scales.SymptomScaleMaxTotal)
}

func diagnosticDescription() string {
	return fmt.Sprintf("Evaluate the PANS diagnostic criteria checklist: gates and criteria answered yes, no or unknown; "+
		"present criteria may carry a severity 0-%d. Returns criteria counts, which diagnostic formula is met, "+
		"the outcome and a 0-%d confidence breakdown.",
		domain.CriterionSeverity.Max, int(scales.ConfidenceMax))
}

func pans31Description() string {
	cat := scales.PANS31Catalog
	return fmt.Sprintf("Score the %d-item PANS rating scale (0-%d per item). Returns category subtotals, total (0-%d), "+
		"severity band and items rated %d or higher.",
		len(cat.Items), cat.Scale.Max, cat.MaxTotal(), scales.HighSeverityRating)
}

func ptecDescription() string {
	cat := scales.PTECCatalog
	return fmt.Sprintf("Score the PTEC treatment evaluation checklist (%d items rated 0-%d). Returns %d category subtotals, "+
		"total (0-%d) and severity band.",
		len(cat.Items), cat.Scale.Max, len(scales.PTECCategories), cat.MaxTotal())
}

func cbiDescription() string {
	cat := scales.CBICatalog
	return fmt.Sprintf("Score the Caregiver Burden Inventory (%d items rated 0-%d). Returns %d subscale scores, total (0-%d), "+
		"severity band, respite recommendation and normative comparison.",
		len(cat.Items), cat.Scale.Max, len(scales.CBISubscales), cat.MaxTotal())
}

// jsonResult renders v as the text content of a tool result.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

// errorResult reports a caller error as a tool-level error so the client
// can correct its input.
func (s *Server) errorResult(tool string, err error) *mcp.CallToolResult {
	s.logger.WithFields(logrus.Fields{
		"tool":  tool,
		"error": err.Error(),
	}).Warn("Tool call rejected")

	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: err.Error()},
		},
	}
}
