package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calebreed/parley/internal/config"
	"github.com/calebreed/parley/internal/server"
	"github.com/calebreed/parley/internal/storage/sqlite"
	"github.com/calebreed/parley/internal/tools"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Parley API server",
	Long: `Start the Parley HTTP server with REST API and WebSocket support.

Endpoints are under /api. Functions backed by configured tool servers run
server-side; the rest are returned to the caller to answer via the
function-result endpoint.

Examples:
  parley serve
  parley serve --port 9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Open storage
	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	// Start configured tool servers
	registry := tools.NewRegistry()
	defer registry.Close()

	for name, toolCfg := range cfg.Tools {
		if err := registry.Register(name, toolCfg); err != nil {
			log.Printf("Warning: failed to start tool server %s: %v", name, err)
		}
	}

	if registry.HasFunctions() {
		log.Printf("Functions: %v", registry.FunctionNames())
	} else {
		log.Println("Functions: none (callers declare their own)")
	}

	if portFlag > 0 {
		cfg.Server.Port = portFlag
	}

	// Create and start server
	srv := server.New(cfg, store, registry)

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		srv.Shutdown(context.Background())
	}()

	return srv.Start()
}
