// Package config loads process settings from the environment and opens the
// configured persistence backend.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/database"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/docstore"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/graphdb"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/search"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/store"
)

// Backend names accepted by MEMORY_BACKEND.
const (
	BackendSQLite = "sqlite"
	BackendLibSQL = "libsql"
	BackendJSON   = "json"
	BackendNeo4j  = "neo4j"
)

// Transport names accepted by TRANSPORT.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// Neo4j holds the graph database connection settings.
type Neo4j struct {
	URI      string `env:"URI"`
	Username string `env:"USERNAME" envDefault:"neo4j"`
	Password string `env:"PASSWORD"`
	Database string `env:"DATABASE"`
}

// Pool tunes the database/sql connection pool.
type Pool struct {
	MaxOpenConns   int `env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns   int `env:"DB_MAX_IDLE_CONNS"`
	ConnMaxIdleSec int `env:"DB_CONN_MAX_IDLE_SEC"`
	ConnMaxLifeSec int `env:"DB_CONN_MAX_LIFETIME_SEC"`
}

// Config is the full process configuration.
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"`

	Backend         string `env:"MEMORY_BACKEND" envDefault:"sqlite"`
	DBPath          string `env:"MCP_MEMORY_DB_PATH" envDefault:"./memory.db"`
	FilePath        string `env:"MCP_MEMORY_FILE" envDefault:"./memory.json"`
	LibSQLURL       string `env:"LIBSQL_URL"`
	LibSQLAuthToken string `env:"LIBSQL_AUTH_TOKEN"`
	Neo4j           Neo4j  `envPrefix:"NEO4J_"`
	Pool            Pool

	SearchMode string `env:"MEMORY_SEARCH_MODE" envDefault:"independent"`

	Transport   string `env:"TRANSPORT" envDefault:"stdio"`
	Addr        string `env:"ADDR" envDefault:":8080"`
	SSEEndpoint string `env:"SSE_ENDPOINT" envDefault:"/sse"`
	ViewsAddr   string `env:"MEMORY_VIEWS_ADDR"`

	MetricsEnabled bool   `env:"METRICS_PROMETHEUS"`
	MetricsAddr    string `env:"METRICS_ADDR"`
}

// Load reads envFile (if it exists) into the process environment and then
// parses the environment. An empty envFile means ".env".
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if strings.TrimSpace(c.DBPath) == "" {
			return errors.New("MCP_MEMORY_DB_PATH cannot be empty for the sqlite backend")
		}
	case BackendLibSQL:
		if strings.TrimSpace(c.LibSQLURL) == "" && strings.TrimSpace(c.DBPath) == "" {
			return errors.New("LIBSQL_URL or MCP_MEMORY_DB_PATH is required for the libsql backend")
		}
	case BackendJSON:
		if strings.TrimSpace(c.FilePath) == "" {
			return errors.New("MCP_MEMORY_FILE cannot be empty for the json backend")
		}
	case BackendNeo4j:
		if strings.TrimSpace(c.Neo4j.URI) == "" {
			return errors.New("NEO4J_URI is required for the neo4j backend")
		}
	default:
		return fmt.Errorf("unknown backend %q (expected %s, %s, %s or %s)",
			c.Backend, BackendSQLite, BackendLibSQL, BackendJSON, BackendNeo4j)
	}
	if _, err := search.ParseMode(c.SearchMode); err != nil {
		return err
	}
	switch c.Transport {
	case TransportStdio, TransportSSE:
	default:
		return fmt.Errorf("unknown transport: %s (expected: stdio or sse)", c.Transport)
	}
	return nil
}

// libsqlURL returns the libsql URL, deriving a local file: URL from DBPath
// when LIBSQL_URL is unset.
func (c *Config) libsqlURL() string {
	if c.LibSQLURL != "" {
		return c.LibSQLURL
	}
	if strings.HasPrefix(c.DBPath, "file:") {
		return c.DBPath
	}
	return "file:" + c.DBPath
}

// Open validates c and opens the configured backend.
func Open(ctx context.Context, c *Config, logger *zap.Logger) (store.Backend, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		backend store.Backend
		err     error
		target  string
	)
	switch c.Backend {
	case BackendSQLite, BackendLibSQL:
		dbc := &database.Config{
			Driver:         database.DriverSQLite,
			URL:            c.DBPath,
			MaxOpenConns:   c.Pool.MaxOpenConns,
			MaxIdleConns:   c.Pool.MaxIdleConns,
			ConnMaxIdleSec: c.Pool.ConnMaxIdleSec,
			ConnMaxLifeSec: c.Pool.ConnMaxLifeSec,
		}
		if c.Backend == BackendLibSQL {
			dbc.Driver = database.DriverLibSQL
			dbc.URL = c.libsqlURL()
			dbc.AuthToken = c.LibSQLAuthToken
		}
		target = dbc.URL
		backend, err = database.NewDBManager(dbc)
	case BackendJSON:
		target = c.FilePath
		backend, err = docstore.Open(c.FilePath)
	case BackendNeo4j:
		target = c.Neo4j.URI
		backend, err = graphdb.Open(ctx, graphdb.Config{
			URI:      c.Neo4j.URI,
			Username: c.Neo4j.Username,
			Password: c.Neo4j.Password,
			Database: c.Neo4j.Database,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", c.Backend, err)
	}
	logger.Info("opened backend", zap.String("backend", c.Backend), zap.String("target", redact(target)))
	return backend, nil
}

// NewStore opens the backend and wraps it in a store using the configured
// search mode.
func NewStore(ctx context.Context, c *Config, logger *zap.Logger) (*store.Store, error) {
	backend, err := Open(ctx, c, logger)
	if err != nil {
		return nil, err
	}
	mode, _ := search.ParseMode(c.SearchMode)
	opts := []store.Option{store.WithSearchStrategy(search.New(mode))}
	if logger != nil {
		opts = append(opts, store.WithLogger(logger))
	}
	return store.New(backend, opts...), nil
}

// redact drops query strings, which may carry an auth token.
func redact(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}
