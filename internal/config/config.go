package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseURL     string
	DataDir         string
	ModelPath       string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	MaxPageSize int

	// Artifact cache invalidation.
	ArtifactMaxAge        time.Duration // 0 disables age-based expiry
	ArtifactWatchDatabase bool

	// Audit events are published only when brokers are configured.
	KafkaBrokers    []string
	KafkaAuditTopic string
}

// AuditEnabled reports whether audit events should be published to Kafka.
func (c *Config) AuditEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	maxAge, err := parseArtifactMaxAge()
	if err != nil {
		return nil, err
	}

	maxPageSize, err := parseMaxPageSize()
	if err != nil {
		return nil, err
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	cfg := &Config{
		DatabaseURL:     databaseURL,
		DataDir:         sharedcfg.EnvOrDefault("DATA_DIR", "./data"),
		ModelPath:       sharedcfg.EnvOrDefault("MODEL_PATH", "model.json"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		MaxPageSize:     maxPageSize,

		ArtifactMaxAge:        maxAge,
		ArtifactWatchDatabase: os.Getenv("ARTIFACT_WATCH_DATABASE") == "true",

		KafkaBrokers:    brokers,
		KafkaAuditTopic: sharedcfg.EnvOrDefault("KAFKA_AUDIT_TOPIC", "collision-api-audit"),
	}

	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR must not be empty")
	}
	if cfg.AuditEnabled() && cfg.KafkaAuditTopic == "" {
		return nil, errors.New("KAFKA_AUDIT_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parseArtifactMaxAge() (time.Duration, error) {
	s := sharedcfg.EnvOrDefault("ARTIFACT_MAX_AGE", "0")
	if s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid ARTIFACT_MAX_AGE %q", s)
	}
	return d, nil
}

func parseMaxPageSize() (int, error) {
	s := sharedcfg.EnvOrDefault("MAX_PAGE_SIZE", "1000")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 100000 {
		return 0, fmt.Errorf("invalid MAX_PAGE_SIZE %q: must be between 1 and 100000", s)
	}
	return n, nil
}
