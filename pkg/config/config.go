package config

// Config represents the top-level configuration for the OpsMind library.
type Config struct {
	// Memory configures the memory store
	Memory MemoryConfig `yaml:"memory"`

	// Generation configures the generation engine (LLM)
	Generation GenerationConfig `yaml:"generation"`

	// Scripting configures the Lua hook engine
	Scripting ScriptingConfig `yaml:"scripting"`

	// Server configures the HTTP front end
	Server ServerConfig `yaml:"server"`

	// Logging configures the logging behavior
	Logging LoggingConfig `yaml:"logging"`
}

// MemoryConfig configures the memory store.
type MemoryConfig struct {
	// Type specifies the store backend
	// ("inmem", "sqlite", "boltdb", "postgres", "pgvector", "chromem")
	Type string `yaml:"type"`

	// RetrievalLimit is the number of memories recalled per request
	RetrievalLimit int `yaml:"retrieval_limit"`

	// SQLite configures the SQLite store
	SQLite SQLiteConfig `yaml:"sqlite"`

	// BoltDB configures the BoltDB store
	BoltDB BoltDBConfig `yaml:"boltdb"`

	// Postgres configures the PostgreSQL store
	Postgres PostgresConfig `yaml:"postgres"`

	// PgVector configures the PostgreSQL pgvector store
	PgVector PgVectorConfig `yaml:"pgvector"`

	// Chromem configures the chromem-go vector store
	Chromem ChromemConfig `yaml:"chromem"`
}

// SQLiteConfig configures SQLite-backed memory storage.
type SQLiteConfig struct {
	// Path is the database file path
	Path string `yaml:"path"`
}

// BoltDBConfig configures BoltDB-backed memory storage.
type BoltDBConfig struct {
	// Path is the database file path
	Path string `yaml:"path"`
}

// PostgresConfig configures PostgreSQL-backed memory storage.
type PostgresConfig struct {
	// DSN is the data source name (connection string)
	DSN string `yaml:"dsn"`

	// MigrationsPath points at the golang-migrate SQL directory used to
	// create the schema on startup (empty disables automatic migration)
	MigrationsPath string `yaml:"migrations_path"`
}

// PgVectorConfig configures PostgreSQL with the pgvector extension.
type PgVectorConfig struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string `yaml:"connection_string"`

	// TableName is the name of the table to use
	TableName string `yaml:"table_name"`

	// Dimensions specifies the embedding dimensions
	Dimensions int `yaml:"dimensions"`

	// DistanceMetric is the distance metric to use (cosine, euclidean, dot)
	DistanceMetric string `yaml:"distance_metric"`
}

// ChromemConfig configures chromem-go vector storage.
type ChromemConfig struct {
	// Collection is the collection name to use
	Collection string `yaml:"collection"`

	// StoragePath is the path for on-disk persistent storage
	// (if empty, in-memory is used)
	StoragePath string `yaml:"storage_path"`
}

// GenerationConfig configures the generation engine (LLM).
type GenerationConfig struct {
	// Provider is the LLM provider ("openai", "mock")
	Provider string `yaml:"provider"`

	// OpenAI configures OpenAI integration
	OpenAI OpenAIConfig `yaml:"openai"`

	// MaxRetries bounds retries of transient generation failures
	MaxRetries int `yaml:"max_retries"`

	// RetryBackoff is the initial backoff between retries; it doubles
	// on each subsequent attempt
	RetryBackoff Duration `yaml:"retry_backoff"`
}

// OpenAIConfig configures OpenAI integration.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key
	APIKey string `yaml:"api_key"`

	// Model is the OpenAI model to use for chat/completion
	Model string `yaml:"model"`

	// EmbeddingModel is the model to use for generating embeddings
	EmbeddingModel string `yaml:"embedding_model"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls randomness in generation (0.0-1.0)
	Temperature float64 `yaml:"temperature"`
}

// ScriptingConfig configures the Lua hook engine.
type ScriptingConfig struct {
	// Paths is a list of directories containing Lua scripts
	Paths []string `yaml:"paths"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080"
	Addr string `yaml:"addr"`

	// MetricsNamespace is the prometheus namespace for instruments
	MetricsNamespace string `yaml:"metrics_namespace"`

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level is the logging level ("debug", "info", "warn", "error")
	Level string `yaml:"level"`

	// Format is the output format ("text", "json")
	Format string `yaml:"format"`
}
