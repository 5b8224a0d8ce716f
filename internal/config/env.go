package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom log forwarding configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// PageConfig defines the default page geometry for compose jobs.
type PageConfig struct {
	Size    string  // letter|legal|a4|a5
	Margin  float64 // points, applied on all sides
	MaxEdge int     // max pixel edge of embedded images, 0 = unbounded
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
	RedisURL     string
	Stream       string
	Group        string
	PollInterval time.Duration
}

// WorkerConfig defines dispatcher behavior and limits.
type WorkerConfig struct {
	Concurrency    int
	JobTimeout     time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	ReportTTL      time.Duration
	JanitorMaxAge  time.Duration
}

// StorageConfig defines the S3 result sink.
type StorageConfig struct {
	Bucket     string
	Prefix     string
	Region     string
	AccessKey  string
	SecretKey  string
	Passphrase string // optional, encrypts uploaded PDFs when set
}

// ServerConfig defines the HTTP service.
type ServerConfig struct {
	Port      string
	OutputDir string
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Page    PageConfig
	Queue   QueueConfig
	Worker  WorkerConfig
	Storage StorageConfig
	Server  ServerConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", ""),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pagepress",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Page = PageConfig{
		Size:    getEnv("PAGE_SIZE", "letter"),
		Margin:  parseFloat(getEnv("PAGE_MARGIN", "20"), 20),
		MaxEdge: parseInt(getEnv("IMAGE_MAX_EDGE", "4096"), 4096),
	}

	cfg.Queue = QueueConfig{
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		Stream:       getEnv("QUEUE_STREAM", "jobs:compose"),
		Group:        getEnv("QUEUE_GROUP", "workers:compose"),
		PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "200ms"), 200*time.Millisecond),
	}

	cfg.Worker = WorkerConfig{
		Concurrency:    parseInt(getEnv("WORKER_CONCURRENCY", "2"), 2),
		JobTimeout:     parseDuration(getEnv("JOB_TIMEOUT", "5m"), 5*time.Minute),
		MaxAttempts:    parseInt(getEnv("JOB_MAX_ATTEMPTS", "3"), 3),
		RetryBaseDelay: parseDuration(getEnv("RETRY_BASE_DELAY", "5s"), 5*time.Second),
		ReportTTL:      parseDuration(getEnv("REPORT_TTL", "168h"), 7*24*time.Hour),
		JanitorMaxAge:  parseDuration(getEnv("JANITOR_MAX_AGE", "1h"), time.Hour),
	}

	cfg.Storage = StorageConfig{
		Bucket:     getEnv("AWS_S3_BUCKET", ""),
		Prefix:     getEnv("AWS_S3_PREFIX", "composed"),
		Region:     getEnv("AWS_REGION", ""),
		AccessKey:  getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		Passphrase: getEnv("RESULT_PASSPHRASE", ""),
	}

	cfg.Server = ServerConfig{
		Port:      getEnv("PORT", "8080"),
		OutputDir: getEnv("OUTPUT_DIR", "output"),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
