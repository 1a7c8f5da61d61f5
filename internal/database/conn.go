package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/tursodatabase/go-libsql"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/metrics"
)

// DBManager is the relational store.Backend. It owns a single database
// handle and a cache of prepared statements.
type DBManager struct {
	config *Config
	db     *sql.DB

	stmtMu    sync.RWMutex
	stmtCache map[string]*sql.Stmt

	closeOnce sync.Once
	closeErr  error
}

// NewDBManager opens the configured database and applies the schema.
func NewDBManager(config *Config) (*DBManager, error) {
	if config == nil {
		config = NewConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverSQLite
	}

	dsn, err := dataSourceName(config)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(config.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connector: %w", err)
	}

	manager := &DBManager{
		config:    config,
		db:        db,
		stmtCache: make(map[string]*sql.Stmt),
	}

	if err := manager.initialize(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Apply connection pool tuning from config
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxIdleSec > 0 {
		db.SetConnMaxIdleTime(time.Duration(config.ConnMaxIdleSec) * time.Second)
	}
	if config.ConnMaxLifeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(config.ConnMaxLifeSec) * time.Second)
	}

	// Observe initial pool stats
	inUse, idle := manager.PoolStats()
	metrics.Default().ObservePoolStats(inUse, idle)
	return manager, nil
}

// dataSourceName builds the driver-specific DSN for config.
func dataSourceName(config *Config) (string, error) {
	if strings.TrimSpace(config.URL) == "" {
		return "", errors.New("database URL cannot be empty")
	}
	switch config.Driver {
	case DriverSQLite:
		return sqliteDSN(config.URL)
	case DriverLibSQL:
		return libsqlDSN(config.URL, config.AuthToken), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q (expected %s or %s)", config.Driver, DriverSQLite, DriverLibSQL)
	}
}

// sqliteDSN turns a plain path into a file: URI with WAL and a busy timeout.
// In-memory URIs are passed through untouched.
func sqliteDSN(raw string) (string, error) {
	if strings.Contains(raw, "mode=memory") || raw == ":memory:" {
		return raw, nil
	}
	path := strings.TrimPrefix(raw, "file:")
	query := ""
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path, query = path[:i], path[i+1:]
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}
	params := []string{"_pragma=busy_timeout(5000)", "_pragma=journal_mode(WAL)"}
	if query != "" {
		params = append([]string{query}, params...)
	}
	return "file:" + path + "?" + strings.Join(params, "&"), nil
}

// libsqlDSN appends the auth token to remote URLs.
func libsqlDSN(dbURL, authToken string) string {
	if strings.HasPrefix(dbURL, "file:") || authToken == "" {
		return dbURL
	}
	// Build URL safely and append/override the authToken parameter
	if u, perr := url.Parse(dbURL); perr == nil {
		q := u.Query()
		q.Set("authToken", authToken)
		u.RawQuery = q.Encode()
		return u.String()
	}
	// Fallback: naive append with encoding
	if strings.Contains(dbURL, "?") {
		return dbURL + "&authToken=" + url.QueryEscape(authToken)
	}
	return dbURL + "?authToken=" + url.QueryEscape(authToken)
}

// initialize creates tables and indexes if they don't exist
func (dm *DBManager) initialize(ctx context.Context) error {
	done := metrics.TimeOp("db_initialize")
	success := false
	defer func() { done(success) }()
	tx, err := dm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for initialization: %w", err)
	}
	defer tx.Rollback()

	for _, statement := range schema() {
		_, err := tx.ExecContext(ctx, statement)
		if err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// Name implements store.Namer.
func (dm *DBManager) Name() string { return dm.config.Driver }

// Location implements store.Locator. Query parameters are dropped because
// they may carry an auth token.
func (dm *DBManager) Location() string {
	if i := strings.IndexByte(dm.config.URL, '?'); i >= 0 {
		return dm.config.URL[:i]
	}
	return dm.config.URL
}

// Ping implements store.Pinger.
func (dm *DBManager) Ping(ctx context.Context) error {
	return dm.db.PingContext(ctx)
}

// PoolStats returns current connection pool usage.
func (dm *DBManager) PoolStats() (inUse, idle int) {
	stats := dm.db.Stats()
	return stats.InUse, stats.Idle
}

// Close releases cached statements and the database handle.
func (dm *DBManager) Close() error {
	dm.closeOnce.Do(func() {
		var errs error
		dm.stmtMu.Lock()
		for sqlText, stmt := range dm.stmtCache {
			errs = multierr.Append(errs, stmt.Close())
			delete(dm.stmtCache, sqlText)
		}
		dm.stmtMu.Unlock()
		dm.closeErr = multierr.Append(errs, dm.db.Close())
	})
	return dm.closeErr
}
