package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver

	"docsec-backend/internal/shared/telemetry"
)

// Role names the process that owns a pool. Each role has its own defaults.
type Role string

const (
	// RoleServer is the API process: documents and analyses repositories.
	RoleServer Role = "server"
	// RoleMigrate is cmd/migrate, which only needs one connection.
	RoleMigrate Role = "migrate"
)

// Options controls database pool and connectivity behavior.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var roleDefaults = map[Role]Options{
	RoleServer: {
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	},
	RoleMigrate: {
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	},
}

// DefaultOptions returns the pool defaults for role. Unknown roles get the
// server defaults.
func DefaultOptions(role Role) Options {
	if opts, ok := roleDefaults[role]; ok {
		return opts
	}
	return roleDefaults[RoleServer]
}

// envOverrides maps DB_* variables onto Options fields.
var envOverrides = []struct {
	key   string
	apply func(*Options, string) error
}{
	{"DB_MAX_OPEN_CONNS", func(o *Options, raw string) error { return parseInt(raw, &o.MaxOpenConns) }},
	{"DB_MAX_IDLE_CONNS", func(o *Options, raw string) error { return parseInt(raw, &o.MaxIdleConns) }},
	{"DB_CONN_MAX_LIFETIME", func(o *Options, raw string) error { return parseDuration(raw, &o.ConnMaxLifetime) }},
	{"DB_CONN_MAX_IDLE_TIME", func(o *Options, raw string) error { return parseDuration(raw, &o.ConnMaxIdleTime) }},
	{"DB_PING_TIMEOUT", func(o *Options, raw string) error { return parseDuration(raw, &o.PingTimeout) }},
}

// OptionsFromEnv overrides defaults with DB_* env vars. Invalid values are
// logged and ignored.
func OptionsFromEnv(defaults Options) Options {
	opts := defaults
	for _, o := range envOverrides {
		raw := strings.TrimSpace(os.Getenv(o.key))
		if raw == "" {
			continue
		}
		if err := o.apply(&opts, raw); err != nil {
			telemetry.Warn("db.env_invalid", map[string]any{"key": o.key, "err": err})
		}
	}
	return opts
}

// Connect opens a pgx-backed *sql.DB and pings it within opts.PingTimeout.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	sqlDB, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	applyOptions(sqlDB, opts)

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logPoolStats(sqlDB, "db.init")
	return sqlDB, nil
}

var (
	openDB = sql.Open

	shared struct {
		sync.Mutex
		db *sql.DB
	}
)

// GetSingleton returns the process-wide pool, connecting on first use.
// Concurrent callers wait for the connecting one; a failed connect is not
// cached, so the next call tries again.
func GetSingleton(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	shared.Lock()
	defer shared.Unlock()
	if shared.db != nil {
		return shared.db, nil
	}
	sqlDB, err := Connect(ctx, databaseURL, opts)
	if err != nil {
		return nil, err
	}
	shared.db = sqlDB
	return sqlDB, nil
}

func applyOptions(sqlDB *sql.DB, opts Options) {
	fallback := roleDefaults[RoleServer]
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = fallback.MaxOpenConns
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = fallback.MaxIdleConns
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = fallback.ConnMaxLifetime
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	if opts.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}

func logPoolStats(sqlDB *sql.DB, label string) {
	stats := sqlDB.Stats()
	telemetry.Info(label, map[string]any{
		"open":     stats.OpenConnections,
		"idle":     stats.Idle,
		"max_open": stats.MaxOpenConnections,
	})
}

func parseInt(raw string, dst *int) error {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func parseDuration(raw string, dst *time.Duration) error {
	v, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
