// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/aristath/alphapulse/internal/modules/marketdata"
	"github.com/aristath/alphapulse/internal/modules/simulation"
	"github.com/aristath/alphapulse/internal/utils"
)

// DefaultSeed makes runs reproducible unless SIM_SEED says otherwise.
const DefaultSeed uint64 = 42

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	Simulation SimulationConfig

	MarketDataPeriod string
	PriceCacheTTL    time.Duration
	ReportTTL        time.Duration
	Watchlist        []string

	PriceRefreshSchedule string
	CacheCleanupSchedule string
	MaintenanceSchedule  string

	R2 R2Config
}

// SimulationConfig holds engine defaults applied to every request.
type SimulationConfig struct {
	Iterations        int
	HorizonDays       int
	Confidence        float64
	InitialInvestment float64
	PeriodsPerYear    int
	Workers           int
	SamplePaths       int
	MaxTensorCells    int
	MemoryFraction    float64
	Seed              *uint64 // nil draws a fresh seed per run (SIM_SEED=random)
}

// R2Config holds the optional Cloudflare R2 report archive settings.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	RetentionDays   int
}

// Enabled reports whether any R2 setting is present.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" || c.AccessKeyID != "" || c.SecretAccessKey != "" || c.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ALPHAPULSE_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	seed, err := seedFromEnv("SIM_SEED", DefaultSeed)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		Simulation: SimulationConfig{
			Iterations:        getEnvAsInt("SIM_ITERATIONS", simulation.DefaultIterations),
			HorizonDays:       getEnvAsInt("SIM_HORIZON_DAYS", simulation.DefaultHorizonDays),
			Confidence:        getEnvAsFloat("SIM_CONFIDENCE", simulation.DefaultConfidence),
			InitialInvestment: getEnvAsFloat("SIM_INITIAL_INVESTMENT", simulation.DefaultInitialInvestment),
			PeriodsPerYear:    getEnvAsInt("SIM_PERIODS_PER_YEAR", simulation.DefaultPeriodsPerYear),
			Workers:           getEnvAsInt("SIM_WORKERS", 0),
			SamplePaths:       getEnvAsInt("SIM_SAMPLE_PATHS", simulation.DefaultSamplePaths),
			MaxTensorCells:    getEnvAsInt("SIM_MAX_TENSOR_CELLS", simulation.DefaultMaxTensorCells),
			MemoryFraction:    getEnvAsFloat("SIM_MEMORY_FRACTION", 0.5),
			Seed:              seed,
		},
		MarketDataPeriod:     getEnv("MARKET_DATA_PERIOD", marketdata.DefaultPeriod),
		PriceCacheTTL:        getEnvAsDuration("PRICE_CACHE_TTL", time.Hour),
		ReportTTL:            getEnvAsDuration("REPORT_TTL", 24*time.Hour),
		Watchlist:            utils.ParseSymbols(getEnv("WATCHLIST", "")),
		PriceRefreshSchedule: getEnv("PRICE_REFRESH_SCHEDULE", "30 22 * * 1-5"),
		CacheCleanupSchedule: getEnv("CACHE_CLEANUP_SCHEDULE", "@every 1h"),
		MaintenanceSchedule:  getEnv("MAINTENANCE_SCHEDULE", "0 3 * * *"),
		R2: R2Config{
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("R2_BUCKET", ""),
			RetentionDays:   getEnvAsInt("R2_RETENTION_DAYS", 90),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// EngineConfig converts the simulation settings into engine defaults.
func (c *Config) EngineConfig() simulation.Config {
	cfg := simulation.DefaultConfig()
	cfg.Iterations = c.Simulation.Iterations
	cfg.HorizonDays = c.Simulation.HorizonDays
	cfg.ConfidenceLevel = c.Simulation.Confidence
	cfg.InitialInvestment = c.Simulation.InitialInvestment
	cfg.PeriodsPerYear = c.Simulation.PeriodsPerYear
	cfg.Workers = c.Simulation.Workers
	cfg.SamplePaths = c.Simulation.SamplePaths
	cfg.MaxTensorCells = c.Simulation.MaxTensorCells
	if c.Simulation.Seed != nil {
		seed := *c.Simulation.Seed
		cfg.Seed = &seed
	}
	return cfg
}

// Validate checks that every setting is usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if err := c.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("invalid simulation settings: %w", err)
	}
	if !(c.Simulation.MemoryFraction > 0 && c.Simulation.MemoryFraction <= 1) {
		return fmt.Errorf("SIM_MEMORY_FRACTION must be in (0, 1], got %v", c.Simulation.MemoryFraction)
	}
	if _, err := marketdata.PeriodStart(c.MarketDataPeriod, time.Now()); err != nil {
		return fmt.Errorf("invalid MARKET_DATA_PERIOD: %w", err)
	}
	if c.PriceCacheTTL < 0 || c.ReportTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive (PRICE_CACHE_TTL=%s, REPORT_TTL=%s)", c.PriceCacheTTL, c.ReportTTL)
	}

	for name, schedule := range map[string]string{
		"PRICE_REFRESH_SCHEDULE": c.PriceRefreshSchedule,
		"CACHE_CLEANUP_SCHEDULE": c.CacheCleanupSchedule,
		"MAINTENANCE_SCHEDULE":   c.MaintenanceSchedule,
	} {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, schedule, err)
		}
	}

	if c.R2.Enabled() && (c.R2.AccountID == "" || c.R2.AccessKeyID == "" || c.R2.SecretAccessKey == "" || c.R2.Bucket == "") {
		return fmt.Errorf("R2 archive needs R2_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and R2_BUCKET")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// seedFromEnv returns nil for "random". A malformed value is an error
// rather than a silent default.
func seedFromEnv(key string, defaultValue uint64) (*uint64, error) {
	value := os.Getenv(key)
	switch value {
	case "":
		return &defaultValue, nil
	case "random":
		return nil, nil
	}
	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return &v, nil
}
