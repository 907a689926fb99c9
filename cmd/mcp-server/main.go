// Package main provides the standalone MCP server. It requires no external
// services: results are kept in SQLite under the data directory.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pans-scales-server/internal/config"
	"github.com/pans-scales-server/internal/mcp"
)

const version = "1.0.0"

func main() {
	// Load lightweight configuration
	cfg := config.LoadLiteConfig()

	logger, err := config.NewLogger(cfg.LoggingConfig())
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	logger.WithField("data_dir", cfg.DataDir).Info("Starting PANS scales MCP server")

	server, err := mcp.NewLiteServer(cfg, logger, version)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}
	defer server.Close()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Run(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("PANS scales MCP server stopped")
}
