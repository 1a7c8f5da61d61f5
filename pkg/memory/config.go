package memory

import (
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/config"
)

// Backend names accepted by Config.Backend.
const (
	BackendSQLite = config.BackendSQLite
	BackendLibSQL = config.BackendLibSQL
	BackendJSON   = config.BackendJSON
	BackendNeo4j  = config.BackendNeo4j
)

// Config exposes a stable wrapper for storage configuration in package mode.
// Zero values take the same defaults as the server.
type Config struct {
	Backend string
	// DBPath is the sqlite file, or the local libsql file when LibSQLURL is empty.
	DBPath    string
	LibSQLURL string
	AuthToken string
	// FilePath is the JSON document used by the json backend.
	FilePath string

	Neo4jURI      string
	Neo4jUsername string
	Neo4jPassword string
	Neo4jDatabase string

	// SearchMode is "independent" (default) or "incident".
	SearchMode string

	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxIdleSec int
	ConnMaxLifeSec int
}

func (c *Config) toInternal() *config.Config {
	out := &config.Config{
		Backend:         c.Backend,
		DBPath:          c.DBPath,
		FilePath:        c.FilePath,
		LibSQLURL:       c.LibSQLURL,
		LibSQLAuthToken: c.AuthToken,
		Neo4j: config.Neo4j{
			URI:      c.Neo4jURI,
			Username: c.Neo4jUsername,
			Password: c.Neo4jPassword,
			Database: c.Neo4jDatabase,
		},
		Pool: config.Pool{
			MaxOpenConns:   c.MaxOpenConns,
			MaxIdleConns:   c.MaxIdleConns,
			ConnMaxIdleSec: c.ConnMaxIdleSec,
			ConnMaxLifeSec: c.ConnMaxLifeSec,
		},
		SearchMode: c.SearchMode,
		Transport:  config.TransportStdio,
	}
	if out.Backend == "" {
		out.Backend = BackendSQLite
	}
	if out.DBPath == "" {
		out.DBPath = "./memory.db"
	}
	if out.FilePath == "" {
		out.FilePath = "./memory.json"
	}
	return out
}
