package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"local"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Database settings
	Database DatabaseConfig

	// Segment mapping settings
	Mapping MappingConfig

	// Benchmark defaults for the bench CLI
	Bench BenchConfig
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"courses"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"courses"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// MappingConfig holds segment mapper settings
type MappingConfig struct {
	// RadiusMeters is the proximity threshold for the spatial candidate query
	RadiusMeters float64 `env:"MAPPING_RADIUS_METERS" envDefault:"50"`
	// CandidateLimit caps the spatial query result size
	CandidateLimit int `env:"MAPPING_CANDIDATE_LIMIT" envDefault:"100"`
}

// BenchConfig holds defaults for benchmark runs
type BenchConfig struct {
	// DataSizes is the comma-separated size sweep
	DataSizes []int `env:"BENCH_DATA_SIZES" envDefault:"100,500,1000" envSeparator:","`
	// WarmupRuns is the number of discarded runs before each measurement
	WarmupRuns int `env:"BENCH_WARMUP_RUNS" envDefault:"1"`
	// LogFile is the JSONL run log appended after each bench run
	LogFile string `env:"BENCH_LOG_FILE" envDefault:"docs/bench/segment_bench_log.jsonl"`
}

// NewConfig loads configuration from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("db_host", cfg.Database.Host),
		slog.String("db_name", cfg.Database.Database),
	)

	return cfg, nil
}
