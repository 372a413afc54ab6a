package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yshimizu/kabuscan/internal/api"
	"github.com/yshimizu/kabuscan/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the HTTP API server.

Endpoints:
  GET /health        - Health check
  GET /api/scan      - Run a scan, streamed as newline-delimited JSON
  GET /api/scan/ws   - Run a scan, streamed over WebSocket

Example:
  go run ./cmd/kabuscan api
  go run ./cmd/kabuscan api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	cfg, log, orchestrator, err := buildScanner()
	if err != nil {
		return err
	}

	if apiPort != "" {
		cfg.Port = apiPort
	}

	scanHandler := handlers.NewScanHandler(orchestrator, cfg.Scan, log)
	router := api.NewRouter(scanHandler, log)
	server := api.New(cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
