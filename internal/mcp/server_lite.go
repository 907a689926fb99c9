package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/pans-scales-server/internal/cache"
	"github.com/pans-scales-server/internal/config"
	"github.com/pans-scales-server/internal/service"
	"github.com/pans-scales-server/internal/store"
	"github.com/pans-scales-server/pkg/scales"
)

// ToolExportResults writes every stored result to a JSON file.
const ToolExportResults = "export_results"

// LiteServer is a standalone MCP server that keeps results in a local
// SQLite file and caches them in memory. It needs no external services.
type LiteServer struct {
	*Server
	config *config.LiteConfig
	store  *store.SQLiteStore
}

// ExportResultsInput is the input of export_results.
type ExportResultsInput struct {
	FileName string `json:"file_name,omitempty" jsonschema:"file name inside the export directory; defaults to a timestamped name"`
}

// NewLiteServer creates the data directory, opens the results database and
// registers all tools.
func NewLiteServer(cfg *config.LiteConfig, logger *logrus.Logger, version string) (*LiteServer, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	resultStore, err := store.NewSQLiteStore(cfg.ResultsDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open results store: %w", err)
	}

	engine, err := scales.NewEngine()
	if err != nil {
		resultStore.Close()
		return nil, fmt.Errorf("failed to create scoring engine: %w", err)
	}

	svc := service.NewScoringService(logger, engine, service.Options{
		Store:       resultStore,
		Cache:       cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL),
		SaveTimeout: cfg.SaveTimeout,
		CacheTTL:    cfg.CacheTTL,
	})

	s := &LiteServer{
		Server: NewServer(svc, logger, ServerOptions{
			Name:           "pans-scales-server-lite",
			Version:        version,
			PersistDefault: cfg.Persist,
		}),
		config: cfg,
		store:  resultStore,
	}

	addTool(s.Server, &mcp.Tool{
		Name:        ToolExportResults,
		Description: "Export all stored results to a JSON file in the data directory.",
	}, s.handleExportResults)

	logger.WithFields(logrus.Fields{
		"data_dir": cfg.DataDir,
		"persist":  cfg.Persist,
	}).Info("Lite server initialized")
	return s, nil
}

func (s *LiteServer) handleExportResults(ctx context.Context, req *mcp.CallToolRequest, in ExportResultsInput) (*mcp.CallToolResult, any, error) {
	name := in.FileName
	if name == "" {
		name = fmt.Sprintf("results-%s.json", time.Now().UTC().Format("20060102-150405"))
	}
	if filepath.Base(name) != name || filepath.Ext(name) != ".json" {
		return s.errorResult(ToolExportResults, fmt.Errorf("file_name must be a plain .json file name, got %q", name)), nil, nil
	}

	path, err := s.ExportTo(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{"path": path})
}

// ExportTo writes the export document to name inside the export directory.
func (s *LiteServer) ExportTo(ctx context.Context, name string) (string, error) {
	path := filepath.Join(s.config.ExportDir(), name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if err := s.store.ExportJSON(ctx, f); err != nil {
		return "", err
	}
	s.logger.WithField("path", path).Info("Exported results")
	return path, nil
}

// Close releases the results database.
func (s *LiteServer) Close() error {
	return s.store.Close()
}
