package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// NetworkPath points at the JSON network snapshot assessed by this instance.
	NetworkPath string
	// ModelPath points at the model configuration file (YAML, JSON or TOML).
	ModelPath     string
	AssessWorkers int
	// AssessCacheSize bounds the on-demand assessment cache; 0 disables it.
	AssessCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	workers, err := parseAssessWorkers()
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseAssessCacheSize()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "weather-events"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "outage-assessments"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "storm-outage-risk"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		NetworkPath:     sharedcfg.EnvOrDefault("NETWORK_PATH", "network.json"),
		ModelPath:       sharedcfg.EnvOrDefault("MODEL_CONFIG", "model.yaml"),
		AssessWorkers:   workers,
		AssessCacheSize: cacheSize,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.NetworkPath == "" {
		return nil, errors.New("NETWORK_PATH is required")
	}
	if cfg.ModelPath == "" {
		return nil, errors.New("MODEL_CONFIG is required")
	}

	return cfg, nil
}

const maxAssessWorkers = 64

func parseAssessWorkers() (int, error) {
	s := sharedcfg.EnvOrDefault("ASSESS_WORKERS", "4")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxAssessWorkers {
		return 0, fmt.Errorf("invalid ASSESS_WORKERS %q: must be 1..%d", s, maxAssessWorkers)
	}
	return n, nil
}

func parseAssessCacheSize() (int, error) {
	s := sharedcfg.EnvOrDefault("ASSESS_CACHE_SIZE", "256")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid ASSESS_CACHE_SIZE %q: must be a non-negative integer", s)
	}
	return n, nil
}
