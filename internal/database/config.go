package database

// Supported database/sql driver names.
const (
	DriverSQLite = "sqlite"
	DriverLibSQL = "libsql"
)

// Config holds the database configuration
type Config struct {
	// Driver is DriverSQLite (pure Go) or DriverLibSQL.
	Driver string
	// URL is a file path or file: URI for sqlite, and a file: or remote
	// libsql:// / https:// URL for libsql.
	URL       string
	AuthToken string

	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxIdleSec int
	ConnMaxLifeSec int
}

// NewConfig returns a Config for the default local SQLite file.
func NewConfig() *Config {
	return &Config{
		Driver: DriverSQLite,
		URL:    "./memory.db",
	}
}
