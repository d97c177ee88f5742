package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"go-pipeline/internal/config"

	_ "github.com/lib/pq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

//go:embed schema.sql
var schema string

// PostgresDB is the system of record for stages, deals and their children.
type PostgresDB struct {
	DB  *sql.DB
	DSN string
}

// Open connects to dsn, pings it and applies the schema.
func Open(ctx context.Context, dsn string) (*PostgresDB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("database url is empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresDB{DB: db, DSN: dsn}, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// NewPostgres creates the Postgres connection with lifecycle management
func NewPostgres(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*PostgresDB, error) {
	pg, err := Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to Postgres")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing Postgres connection")
			return pg.DB.Close()
		},
	})
	return pg, nil
}
