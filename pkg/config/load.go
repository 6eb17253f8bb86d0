package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from a byte slice.
func LoadFromBytes(data []byte) (*Config, error) {
	var config Config

	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvironmentOverrides(&config)

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns a configuration with every default applied, suitable
// for running against the in-memory store and mock engine.
func Default() *Config {
	config := &Config{}
	applyEnvironmentOverrides(config)
	if err := validateConfig(config); err != nil {
		// Zero config validates; this is unreachable.
		panic(err)
	}
	return config
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func applyEnvironmentOverrides(config *Config) {
	// Postgres DSN override, shared by both postgres-backed stores
	if dsn := os.Getenv("POSTGRES_URL"); dsn != "" {
		if config.Memory.Postgres.DSN == "" {
			config.Memory.Postgres.DSN = dsn
		}
		if config.Memory.PgVector.ConnectionString == "" {
			config.Memory.PgVector.ConnectionString = dsn
		}
	}

	// SQLite path override
	if path := os.Getenv("OPSMIND_SQLITE_PATH"); path != "" {
		config.Memory.SQLite.Path = path
	}

	// OpenAI API key override
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Generation.OpenAI.APIKey = apiKey
	}

	// Listen address override
	if addr := os.Getenv("OPSMIND_ADDR"); addr != "" {
		config.Server.Addr = addr
	}
}

// validateConfig validates the configuration and applies defaults.
func validateConfig(config *Config) error {
	// Validate memory configuration
	switch strings.ToLower(config.Memory.Type) {
	case "inmem", "":
		// In-memory store needs nothing else
	case "sqlite":
		if config.Memory.SQLite.Path == "" {
			config.Memory.SQLite.Path = "./data/opsmind.db"
		}
	case "boltdb":
		if config.Memory.BoltDB.Path == "" {
			config.Memory.BoltDB.Path = "./data/opsmind.bolt.db"
		}
	case "postgres":
		if config.Memory.Postgres.DSN == "" {
			return fmt.Errorf("postgres DSN is required for postgres memory type")
		}
	case "pgvector":
		if config.Memory.PgVector.ConnectionString == "" {
			return fmt.Errorf("connection string is required for pgvector memory type")
		}
		if config.Memory.PgVector.TableName == "" {
			config.Memory.PgVector.TableName = "memory_vectors"
		}
		if config.Memory.PgVector.Dimensions <= 0 {
			config.Memory.PgVector.Dimensions = 1536
		}
		if config.Memory.PgVector.DistanceMetric == "" {
			config.Memory.PgVector.DistanceMetric = "cosine"
		} else {
			metric := strings.ToLower(config.Memory.PgVector.DistanceMetric)
			if metric != "cosine" && metric != "euclidean" && metric != "dot" {
				return fmt.Errorf("unsupported distance metric for pgvector: %s (must be cosine, euclidean, or dot)",
					config.Memory.PgVector.DistanceMetric)
			}
		}
	case "chromem":
		if config.Memory.Chromem.Collection == "" {
			config.Memory.Chromem.Collection = "memories"
		}
	default:
		return fmt.Errorf("unsupported memory store type: %s", config.Memory.Type)
	}

	if config.Memory.RetrievalLimit <= 0 {
		config.Memory.RetrievalLimit = 5
	}

	// Validate generation configuration
	switch strings.ToLower(config.Generation.Provider) {
	case "openai":
		// API key can be provided via environment variable, so we don't
		// explicitly check for it here. But validate model settings.
		if config.Generation.OpenAI.Model == "" {
			config.Generation.OpenAI.Model = "gpt-4o"
		}
		if config.Generation.OpenAI.EmbeddingModel == "" {
			config.Generation.OpenAI.EmbeddingModel = "text-embedding-3-small"
		}
	case "mock", "":
		// Mock engine doesn't require additional validation
	default:
		return fmt.Errorf("unsupported generation provider: %s", config.Generation.Provider)
	}

	// Zero means unset; the original default temperature applies.
	if config.Generation.OpenAI.Temperature <= 0 || config.Generation.OpenAI.Temperature > 1.0 {
		config.Generation.OpenAI.Temperature = 0.7
	}
	if config.Generation.MaxRetries <= 0 {
		config.Generation.MaxRetries = 3
	}
	if config.Generation.RetryBackoff <= 0 {
		config.Generation.RetryBackoff = Duration(200 * time.Millisecond)
	}

	// Logging defaults
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}

	// Server defaults
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.MetricsNamespace == "" {
		config.Server.MetricsNamespace = "opsmind"
	}
	if config.Server.ShutdownTimeout <= 0 {
		config.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	return nil
}
