package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/toxnroot/trans-invoice-v3/ledger"
	"github.com/toxnroot/trans-invoice-v3/store"
	"github.com/toxnroot/trans-invoice-v3/store/memory"
	"github.com/toxnroot/trans-invoice-v3/store/mongostore"
	"github.com/toxnroot/trans-invoice-v3/store/sqlstore"
	"github.com/toxnroot/trans-invoice-v3/suggest"
	"github.com/toxnroot/trans-invoice-v3/suggest/redisset"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	StoreDriver   string `envconfig:"STORE_DRIVER" default:"postgres"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	MongoURI      string `envconfig:"MONGO_URI"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"invoices"`
	RedisAddress  string `envconfig:"REDIS_ADDRESS"`

	JWTSecret string        `envconfig:"JWT_SECRET"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`

	OpenAIAPIKey  string        `envconfig:"OPENAI_API_KEY"`
	OpenAIModel   string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAITimeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"5s"`

	ProductWriteMode   string `envconfig:"PRODUCT_WRITE_MODE" default:"overwrite"`
	EnforceInvoiceLock bool   `envconfig:"ENFORCE_INVOICE_LOCK" default:"false"`
	TxMaxAttempts      int    `envconfig:"TX_MAX_ATTEMPTS" default:"5"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

func LoadConfig() (*Config, error) {
	godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverSQLite:
		if c.DatabaseURL == "" && c.StoreDriver == DriverPostgres {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if _, err := ledger.ParseProductWriteMode(c.ProductWriteMode); err != nil {
		return fmt.Errorf("invalid PRODUCT_WRITE_MODE: %w", err)
	}
	if c.TxMaxAttempts < 1 {
		return fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1, got %d", c.TxMaxAttempts)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// RequireJWTSecret is checked by commands that sign or verify tokens.
func (c *Config) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// InitStore opens and migrates the configured document store.
func InitStore(ctx context.Context, cfg *Config) (store.Store, error) {
	var s store.Store

	switch cfg.StoreDriver {
	case DriverPostgres, DriverSQLite:
		db, err := openGorm(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s = sqlstore.New(db)
	case DriverMongo:
		ms, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		s = ms
	case DriverMemory:
		s = memory.New()
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func openGorm(cfg *Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}

	if cfg.StoreDriver == DriverPostgres {
		return gorm.Open(postgres.Open(cfg.DatabaseURL), gcfg)
	}

	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = "invoices.db"
	}
	db, err := gorm.Open(sqlite.Open(dsn), gcfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; one connection also keeps ":memory:" a
	// single database.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// InitSuggestionStore returns a Redis-backed store when REDIS_ADDRESS is
// set, or nil to keep suggestion lists in the document store.
func InitSuggestionStore(ctx context.Context, cfg *Config) (*redisset.Store, error) {
	if cfg.RedisAddress == "" {
		return nil, nil
	}
	rs, err := redisset.Connect(ctx, cfg.RedisAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rs, nil
}

// InitCompleter wires the OpenAI completer when a key is configured. The
// result always falls back to local substring matching.
func InitCompleter(cfg *Config, log logrus.FieldLogger) suggest.Completer {
	if cfg.OpenAIAPIKey == "" {
		return suggest.WithFallback(nil, log)
	}
	client := openai.NewClient(cfg.OpenAIAPIKey)
	return suggest.WithFallback(suggest.NewOpenAICompleter(client, cfg.OpenAIModel, cfg.OpenAITimeout), log)
}

// NewService builds the ledger on s with the configured options.
func NewService(cfg *Config, s store.Store, suggestions *redisset.Store, log logrus.FieldLogger) (*ledger.Service, error) {
	mode, err := ledger.ParseProductWriteMode(cfg.ProductWriteMode)
	if err != nil {
		return nil, err
	}
	opts := []ledger.Option{
		ledger.WithLogger(log.WithField("component", "ledger")),
		ledger.WithProductWriteMode(mode),
	}
	if suggestions != nil {
		opts = append(opts, ledger.WithSuggestionStore(suggestions))
	}
	return ledger.New(s, opts...), nil
}
