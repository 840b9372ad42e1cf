package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/ledgerguard/copilot/internal/adapters/mcp"
	"github.com/ledgerguard/copilot/internal/bootstrap"
	"github.com/ledgerguard/copilot/internal/config"
	"github.com/ledgerguard/copilot/internal/observability/logging"
)

const (
	serviceName = "mcp"
	version     = "0.1.0"
)

func main() {
	cfg := config.Load()
	// Stdout carries the protocol stream; logs go to stderr.
	logger := logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, nil)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	ownerID := os.Getenv("MCP_OWNER_ID")
	if ownerID == "" {
		ownerID = "default"
	}

	srv := mcpadapter.NewServer(app.Gateway, version, ownerID, logger)
	logger.Info("mcp server serving on stdio", "owner", ownerID)
	if err := srv.ServeStdio(); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
