package opsmind

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opsmind/opsmind/pkg/config"
	"github.com/opsmind/opsmind/pkg/gen"
	"github.com/opsmind/opsmind/pkg/gen/adapters/mock"
	"github.com/opsmind/opsmind/pkg/gen/adapters/openai"
	"github.com/opsmind/opsmind/pkg/log"
	"github.com/opsmind/opsmind/pkg/mem/manager"
	"github.com/opsmind/opsmind/pkg/mem/store"
	"github.com/opsmind/opsmind/pkg/mem/store/adapters/boltdb"
	"github.com/opsmind/opsmind/pkg/mem/store/adapters/chromem"
	"github.com/opsmind/opsmind/pkg/mem/store/adapters/inmem"
	"github.com/opsmind/opsmind/pkg/mem/store/adapters/pgvector"
	"github.com/opsmind/opsmind/pkg/mem/store/adapters/postgres"
	"github.com/opsmind/opsmind/pkg/mem/store/adapters/sqlite"
	"github.com/opsmind/opsmind/pkg/scripting"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	chromemgo "github.com/philippgille/chromem-go"
	bolt "go.etcd.io/bbolt"
)

// NewFromConfigFile creates an Assistant from a YAML configuration
// file. This is a convenience function that handles all component
// initialization.
func NewFromConfigFile(configPath string) (*AssistantImpl, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewFromConfig(cfg)
}

// NewFromConfig creates an Assistant from an already loaded
// configuration.
func NewFromConfig(cfg *config.Config) (*AssistantImpl, error) {
	engine, err := initGenEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generation engine: %w", err)
	}

	memStore, err := initMemStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory store: %w", err)
	}

	scriptEngine, err := initScriptEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scripting engine: %w", err)
	}

	memManager := manager.NewManager(
		memStore,
		engine,
		scriptEngine,
		manager.DefaultConfig(),
	)

	var genOpts []gen.Option
	if cfg.Generation.OpenAI.Model != "" {
		genOpts = append(genOpts, gen.WithModel(cfg.Generation.OpenAI.Model))
	}
	if cfg.Generation.OpenAI.Temperature > 0 {
		genOpts = append(genOpts, gen.WithTemperature(cfg.Generation.OpenAI.Temperature))
	}
	if cfg.Generation.OpenAI.MaxTokens > 0 {
		genOpts = append(genOpts, gen.WithMaxTokens(cfg.Generation.OpenAI.MaxTokens))
	}

	assistantCfg := Config{
		RetrievalLimit: cfg.Memory.RetrievalLimit,
		MaxRetries:     cfg.Generation.MaxRetries,
		RetryBackoff:   cfg.Generation.RetryBackoff.Std(),
		GenOptions:     genOpts,
	}

	assistant := New(memManager, engine, assistantCfg)

	log.Info("Assistant initialized from config",
		"memory_type", cfg.Memory.Type,
		"generation_provider", cfg.Generation.Provider,
		"retrieval_limit", cfg.Memory.RetrievalLimit,
	)

	return assistant, nil
}

// initMemStore initializes the memory store backend named by the
// configuration.
func initMemStore(cfg *config.Config) (store.Store, error) {
	storeType := strings.ToLower(cfg.Memory.Type)
	log.Info("Initializing memory store", "type", storeType)

	switch storeType {
	case "inmem", "":
		return inmem.NewInMemStore(), nil

	case "sqlite":
		dbPath := cfg.Memory.SQLite.Path
		if dbPath == "" {
			dbPath = "./data/opsmind.db"
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for SQLite DB: %w", err)
		}

		log.Info("Using SQLite memory store", "path", dbPath)
		db, err := sql.Open("sqlite3", dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		return sqlite.NewSQLiteStore(db)

	case "boltdb":
		dbPath := cfg.Memory.BoltDB.Path
		if dbPath == "" {
			dbPath = "./data/opsmind.bolt.db"
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for BoltDB: %w", err)
		}

		log.Info("Using BoltDB memory store", "path", dbPath)
		db, err := bolt.Open(dbPath, 0600, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to open BoltDB database: %w", err)
		}

		boltStore := boltdb.NewBoltStore(db)
		if err := boltStore.Initialize(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to initialize BoltDB store: %w", err)
		}
		return boltStore, nil

	case "postgres":
		dsn := cfg.Memory.Postgres.DSN
		if dsn == "" {
			dsn = os.Getenv("POSTGRES_URL")
			if dsn == "" {
				return nil, fmt.Errorf("PostgreSQL connection string not provided")
			}
		}

		log.Info("Using PostgreSQL memory store")
		db, err := sqlx.Connect("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}

		if cfg.Memory.Postgres.MigrationsPath != "" {
			if err := postgres.Migrate(db, cfg.Memory.Postgres.MigrationsPath); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		return postgres.NewPostgresStore(db), nil

	case "pgvector":
		connStr := cfg.Memory.PgVector.ConnectionString
		if strings.Contains(connStr, "${POSTGRES_URL}") {
			connStr = strings.Replace(connStr, "${POSTGRES_URL}", os.Getenv("POSTGRES_URL"), 1)
		}
		if connStr == "" {
			connStr = os.Getenv("POSTGRES_URL")
			if connStr == "" {
				return nil, fmt.Errorf("PostgreSQL connection string not provided")
			}
		}

		pgvectorCfg := pgvector.Config{
			ConnectionString: connStr,
			TableName:        cfg.Memory.PgVector.TableName,
			DimensionSize:    cfg.Memory.PgVector.Dimensions,
			DistanceMetric:   cfg.Memory.PgVector.DistanceMetric,
		}

		log.Info("Using PostgreSQL pgvector memory store",
			"table", pgvectorCfg.TableName,
			"dimensions", pgvectorCfg.DimensionSize,
			"distance_metric", pgvectorCfg.DistanceMetric)

		return pgvector.NewPgvectorAdapter(context.Background(), pgvectorCfg)

	case "chromem":
		collection := cfg.Memory.Chromem.Collection
		if collection == "" {
			collection = "memories"
		}

		var db *chromemgo.DB
		if path := cfg.Memory.Chromem.StoragePath; path != "" {
			var err error
			db, err = chromemgo.NewPersistentDB(path, false)
			if err != nil {
				return nil, fmt.Errorf("failed to open persistent chromem DB: %w", err)
			}
			log.Info("Using persistent chromem memory store", "path", path, "collection", collection)
		} else {
			db = chromemgo.NewDB()
			log.Info("Using in-memory chromem memory store", "collection", collection)
		}

		return chromem.NewChromemAdapter(db, collection)

	default:
		return nil, fmt.Errorf("unsupported memory store type: %s", storeType)
	}
}

// initGenEngine initializes the generation engine based on
// configuration.
func initGenEngine(cfg *config.Config) (gen.Engine, error) {
	provider := strings.ToLower(cfg.Generation.Provider)
	log.Info("Initializing generation engine", "provider", provider)

	switch provider {
	case "openai":
		apiKey := cfg.Generation.OpenAI.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key not provided")
		}

		openaiCfg := openai.Config{
			APIKey:         apiKey,
			ChatModel:      cfg.Generation.OpenAI.Model,
			EmbeddingModel: cfg.Generation.OpenAI.EmbeddingModel,
		}

		log.Info("Using OpenAI generation engine",
			"chat_model", openaiCfg.ChatModel,
			"embedding_model", openaiCfg.EmbeddingModel)

		return openai.NewOpenAIAdapter(openaiCfg)

	case "mock", "":
		log.Info("Using mock generation engine")
		return mock.NewMockEngine(
			mock.WithDefaultResponse("Reviewed the request against past infrastructure work; see runbook for details."),
		), nil

	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", provider)
	}
}

// initScriptEngine initializes the Lua hook engine. Hook scripts are
// optional; an empty path list yields an engine with no hooks loaded.
func initScriptEngine(cfg *config.Config) (scripting.Engine, error) {
	scriptEngine, err := scripting.NewLuaEngine(scripting.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Lua engine: %w", err)
	}

	for _, basePath := range cfg.Scripting.Paths {
		absPath, err := filepath.Abs(basePath)
		if err != nil {
			log.Warn("Failed to resolve script path", "path", basePath, "error", err)
			continue
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			log.Debug("Scripts directory not found", "path", absPath)
			continue
		}
		if err := scriptEngine.LoadScriptDir(absPath); err != nil {
			log.Warn("Failed to load scripts", "path", absPath, "error", err)
			continue
		}
		log.Info("Loaded scripts", "path", absPath)
	}

	return scriptEngine, nil
}
