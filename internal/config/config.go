package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// KafkaConfig defines broker connectivity for the ingest pipeline.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	GroupID  string   `yaml:"group_id"`
	ClientID string   `yaml:"client_id"`
}

// SimulatorConfig defines the synthetic sensor publisher.
type SimulatorConfig struct {
	Interval time.Duration `yaml:"interval"`
	Devices  []string      `yaml:"devices"`
}

// Config defines service configuration. Environment variables provide
// defaults; FLEET_CONFIG may point at a YAML file that overrides them.
type Config struct {
	HTTPAddr    string          `yaml:"http_addr"`
	DatabaseURL string          `yaml:"database_url"`
	Kafka       KafkaConfig     `yaml:"kafka"`
	Simulator   SimulatorConfig `yaml:"simulator"`
}

// Load builds configuration from env and the optional YAML file.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:    getenvDefault("FLEET_HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("FLEET_DATABASE_URL"),
		Kafka: KafkaConfig{
			Brokers:  splitCSV(getenvDefault("FLEET_KAFKA_BROKERS", "localhost:9092")),
			Topic:    getenvDefault("FLEET_KAFKA_TOPIC", "vehicle-sensor-data"),
			GroupID:  getenvDefault("FLEET_KAFKA_GROUP_ID", "fleet-telemetry-cloud"),
			ClientID: getenvDefault("FLEET_KAFKA_CLIENT_ID", "fleet-telemetry-cloud"),
		},
		Simulator: SimulatorConfig{
			Interval: getenvDurationDefault("FLEET_SIMULATOR_INTERVAL", 5*time.Second),
			Devices:  splitCSV(os.Getenv("FLEET_SIMULATOR_DEVICES")),
		},
	}

	if path := os.Getenv("FLEET_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks required fields.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: http addr required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("config: kafka brokers required")
	}
	if c.Kafka.Topic == "" {
		return errors.New("config: kafka topic required")
	}
	if c.Kafka.GroupID == "" {
		return errors.New("config: kafka group id required")
	}
	if c.Simulator.Interval <= 0 {
		return errors.New("config: simulator interval must be positive")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDurationDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
