package main

// Apply the embedded goose migrations to DATABASE_URL:
//   go run ./cmd/migrate -timeout 2m

import (
	"context"
	"flag"
	"os"
	"time"

	"docsec-backend/internal/shared/config"
	"docsec-backend/internal/shared/storage/db"
	"docsec-backend/internal/shared/telemetry"
)

func main() {
	timeout := flag.Duration("timeout", time.Minute, "Overall migration timeout")
	flag.Parse()

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		telemetry.Error("migrate.no_database", map[string]any{"hint": "set DATABASE_URL"})
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultOptions(db.RoleMigrate)))
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"err": err.Error()})
		os.Exit(1)
	}
	defer sqlDB.Close()

	start := time.Now()
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"err": err.Error()})
		sqlDB.Close()
		os.Exit(1)
	}
	telemetry.Info("migrate.done", map[string]any{"duration_ms": time.Since(start).Milliseconds()})
}
