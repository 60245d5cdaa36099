package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/onionparts/internal/config"
)

//go:embed schema.sql
var schema string

func Connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

// Migrate applies the embedded schema. Every statement is idempotent so it
// runs on each start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// SetAdminPassword stores the bcrypt hash claim_admin compares against.
func SetAdminPassword(ctx context.Context, pool *pgxpool.Pool, password string) error {
	query := `
		INSERT INTO app_settings (key, value)
		VALUES ('admin_password', crypt($1, gen_salt('bf')))
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := pool.Exec(ctx, query, password); err != nil {
		return fmt.Errorf("storing admin password: %w", err)
	}
	return nil
}
