package commands

import (
	"fmt"

	"github.com/yshimizu/kabuscan/internal/external/jquants"
	"github.com/yshimizu/kabuscan/internal/scan"
	"github.com/yshimizu/kabuscan/internal/snapshot"
	"github.com/yshimizu/kabuscan/pkg/config"
	"github.com/yshimizu/kabuscan/pkg/httputil"
	"github.com/yshimizu/kabuscan/pkg/logger"
)

// buildScanner wires the scan pipeline from configuration: one rate-limited
// HTTP client shared by the market-data client, the trading-day resolver
// fed by it, and the orchestrator on top.
func buildScanner() (*config.Config, *logger.Logger, *scan.Orchestrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	httpClient := httputil.New(log)
	if cfg.JQuants.RateLimit > 0 {
		httpClient = httpClient.WithRateLimit(cfg.JQuants.RateLimit)
	}

	client := jquants.NewClient(cfg.JQuants, httpClient, log)
	resolver := snapshot.NewResolver(client, log, cfg.Scan.ProbeDelay)
	orchestrator := scan.New(client, client, resolver, log)

	return cfg, log, orchestrator, nil
}
