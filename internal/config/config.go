package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the importer
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Import   ImportConfig   `yaml:"import"`
	Worker   WorkerConfig   `yaml:"worker"`
	Extracts ExtractsConfig `yaml:"extracts"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig holds the job queue and status cache connection
type RedisConfig struct {
	URL            string `yaml:"url"`
	StatusTTLHours int    `yaml:"status_ttl_hours"`
}

func (c RedisConfig) StatusTTL() time.Duration {
	return time.Duration(c.StatusTTLHours) * time.Hour
}

// ImportConfig tunes the row loop
type ImportConfig struct {
	ChunkSize        int    `yaml:"chunk_size"`
	TxTimeoutSeconds int    `yaml:"tx_timeout_seconds"`
	StagingDir       string `yaml:"staging_dir"`
	ReportsDir       string `yaml:"reports_dir"`
}

func (c ImportConfig) TxTimeout() time.Duration {
	return time.Duration(c.TxTimeoutSeconds) * time.Second
}

// WorkerConfig tunes the queue consumer
type WorkerConfig struct {
	Concurrency        int `yaml:"concurrency"`
	MaxAttempts        int `yaml:"max_attempts"`
	BackoffBaseSeconds int `yaml:"backoff_base_seconds"`
	BackoffMaxSeconds  int `yaml:"backoff_max_seconds"`
	PollSeconds        int `yaml:"poll_seconds"`
	LockTTLSeconds     int `yaml:"lock_ttl_seconds"`
}

func (c WorkerConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseSeconds) * time.Second
}

func (c WorkerConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxSeconds) * time.Second
}

func (c WorkerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds) * time.Second
}

func (c WorkerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// ExtractsConfig locates daily court extracts in S3
type ExtractsConfig struct {
	S3Bucket      string `yaml:"s3_bucket"`
	S3Prefix      string `yaml:"s3_prefix"`
	S3Region      string `yaml:"s3_region"`
	AWSProfile    string `yaml:"aws_profile"`
	ReportsPrefix string `yaml:"reports_prefix"`
}

// GetAWSProfile returns the AWS profile, checking env var first
func (c ExtractsConfig) GetAWSProfile() string {
	if p := os.Getenv("AWS_PROFILE"); p != "" {
		return p
	}
	return c.AWSProfile
}

// LoggingConfig selects the log level and encoder ("json" or "console")
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file and applies defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a config with only defaults set
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetimeMinutes == 0 {
		c.Database.ConnMaxLifetimeMinutes = 30
	}
	if c.Redis.StatusTTLHours == 0 {
		c.Redis.StatusTTLHours = 24
	}
	if c.Import.ChunkSize == 0 {
		c.Import.ChunkSize = 100
	}
	if c.Import.TxTimeoutSeconds == 0 {
		c.Import.TxTimeoutSeconds = 30
	}
	if c.Import.StagingDir == "" {
		c.Import.StagingDir = "./data/staging"
	}
	if c.Import.ReportsDir == "" {
		c.Import.ReportsDir = "./data/reports"
	}
	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = 2
	}
	if c.Worker.MaxAttempts == 0 {
		c.Worker.MaxAttempts = 3
	}
	if c.Worker.BackoffBaseSeconds == 0 {
		c.Worker.BackoffBaseSeconds = 2
	}
	if c.Worker.BackoffMaxSeconds == 0 {
		c.Worker.BackoffMaxSeconds = 60
	}
	if c.Worker.PollSeconds == 0 {
		c.Worker.PollSeconds = 5
	}
	if c.Worker.LockTTLSeconds == 0 {
		c.Worker.LockTTLSeconds = 600
	}
	if c.Extracts.S3Region == "" {
		c.Extracts.S3Region = "us-east-1"
	}
	if c.Extracts.ReportsPrefix == "" {
		c.Extracts.ReportsPrefix = "reports/"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// LoadFromEnv loads .env, then the config file if it exists, then applies
// environment overrides
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("CASELOAD_S3_BUCKET"); v != "" {
		cfg.Extracts.S3Bucket = v
	}
	if v := os.Getenv("CASELOAD_S3_PREFIX"); v != "" {
		cfg.Extracts.S3Prefix = v
	}
	if v := os.Getenv("CASELOAD_STAGING_DIR"); v != "" {
		cfg.Import.StagingDir = v
	}
	if v := os.Getenv("CASELOAD_WORKER_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("CASELOAD_WORKER_CONCURRENCY: invalid value %q", v)
		}
		cfg.Worker.Concurrency = n
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	if c.Import.ChunkSize < 1 {
		return fmt.Errorf("import.chunk_size must be positive")
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker.concurrency must be positive")
	}
	if c.Worker.MaxAttempts < 1 {
		return fmt.Errorf("worker.max_attempts must be positive")
	}
	return nil
}
