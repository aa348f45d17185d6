package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/a3tai/mcp-template-mapper/internal/apiserver"
	"github.com/a3tai/mcp-template-mapper/internal/config"
)

// setupLogging configures the process and gin loggers for a log level
func setupLogging(cfg *config.ServerConfig) {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if cfg.IsDebug() {
		gin.SetMode(gin.DebugMode)
		return
	}
	gin.SetMode(gin.ReleaseMode)
	if cfg.LogLevel == "error" {
		gin.DefaultWriter = io.Discard
	}
}

func run(ctx context.Context, cfg *config.ServerConfig) error {
	store, err := apiserver.OpenStore(ctx, apiserver.StoreConfig{Path: cfg.DBPath})
	if err != nil {
		return err
	}
	defer store.Close()

	log.Printf("Templates database: %s", cfg.DBPath)
	return apiserver.NewServer(store, cfg.MaxFileSize).Run(ctx, cfg.Address())
}

func main() {
	cfg, err := config.LoadServerFromArgs(os.Args[1:])
	if errors.Is(err, config.ErrHelpRequested) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	setupLogging(cfg)
	if cfg.IsDebug() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Printf("Server error: %v", err)
		stop()
		os.Exit(1)
	}
	log.Println("Server stopped successfully")
}
