package database

import (
	"context"
	"fmt"
	"time"

	"slotbook/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresDB is the global PostgreSQL handle, set by InitPostgres.
var PostgresDB *sqlx.DB

// InitPostgres opens the PostgreSQL pool described by POSTGRES_DSN.
func InitPostgres(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", config.AppConfig.PostgresDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	PostgresDB = db
	zap.L().Info("Connected to PostgreSQL")
	return nil
}
