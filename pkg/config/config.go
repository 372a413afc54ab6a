package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// External API
	JQuants JQuantsConfig

	// Scan defaults
	Scan ScanConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// JQuantsConfig holds J-Quants API configuration
type JQuantsConfig struct {
	RefreshToken string
	BaseURL      string
	RateLimit    float64 // requests per second, 0 disables pacing
}

// ScanConfig holds default parameters for a stop-high scan.
// Every one of these is overridable per invocation; none is a hard constant.
type ScanConfig struct {
	MinPrice      float64
	MaxPrice      float64
	MaxStocks     int // 0 means no cap
	Threshold     float64
	Delay         time.Duration // pause between instrument scans
	ProbeDelay    time.Duration // pause between trading-day probes
	LookbackDays  int           // trading-day resolution window
	HistoryMonths int           // per-instrument history window
	FailureBudget int
	Segments      []string // market-segment allow-list (substring match)
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		JQuants: JQuantsConfig{
			RefreshToken: getEnv("JQUANTS_REFRESH_TOKEN", ""),
			BaseURL:      getEnv("JQUANTS_BASE_URL", "https://api.jquants.com/v1"),
			RateLimit:    getEnvAsFloat("JQUANTS_RATE_LIMIT", 5),
		},

		Scan: ScanConfig{
			MinPrice:      getEnvAsFloat("SCAN_MIN_PRICE", 100),
			MaxPrice:      getEnvAsFloat("SCAN_MAX_PRICE", 600),
			MaxStocks:     getEnvAsInt("SCAN_MAX_STOCKS", 0),
			Threshold:     getEnvAsFloat("SCAN_THRESHOLD", 0.13),
			Delay:         getEnvAsDuration("SCAN_DELAY", "600ms"),
			ProbeDelay:    getEnvAsDuration("SCAN_PROBE_DELAY", "200ms"),
			LookbackDays:  getEnvAsInt("SCAN_LOOKBACK_DAYS", 10),
			HistoryMonths: getEnvAsInt("SCAN_HISTORY_MONTHS", 3),
			FailureBudget: getEnvAsInt("SCAN_FAILURE_BUDGET", 10),
			Segments:      getEnvAsList("SCAN_SEGMENTS", []string{"プライム", "スタンダード", "グロース"}),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Scan.MinPrice > c.Scan.MaxPrice {
		return fmt.Errorf("SCAN_MIN_PRICE (%v) must not exceed SCAN_MAX_PRICE (%v)",
			c.Scan.MinPrice, c.Scan.MaxPrice)
	}

	if c.Scan.Threshold <= 0 {
		return fmt.Errorf("SCAN_THRESHOLD must be positive")
	}

	if c.Scan.LookbackDays < 1 {
		return fmt.Errorf("SCAN_LOOKBACK_DAYS must be at least 1")
	}

	// The refresh token is deliberately not validated here: commands that
	// never touch the API must still be able to load config. The client
	// reports a missing credential as a structural scan failure instead.
	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
