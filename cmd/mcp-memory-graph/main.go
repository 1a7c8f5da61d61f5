// Command mcp-memory-graph serves a persistent knowledge graph over MCP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/config"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/logger"
)

// app carries state shared by subcommands once PersistentPreRunE has run.
type app struct {
	envFile string
	flags   config.Config
	cfg     *config.Config
	logger  *zap.Logger
}

// applyFlags copies explicitly set flags over the environment.
func (a *app) applyFlags(cmd *cobra.Command) {
	overrides := []struct {
		name string
		dst  *string
		src  string
	}{
		{"backend", &a.cfg.Backend, a.flags.Backend},
		{"db-path", &a.cfg.DBPath, a.flags.DBPath},
		{"file", &a.cfg.FilePath, a.flags.FilePath},
		{"libsql-url", &a.cfg.LibSQLURL, a.flags.LibSQLURL},
		{"auth-token", &a.cfg.LibSQLAuthToken, a.flags.LibSQLAuthToken},
		{"search-mode", &a.cfg.SearchMode, a.flags.SearchMode},
		{"transport", &a.cfg.Transport, a.flags.Transport},
		{"addr", &a.cfg.Addr, a.flags.Addr},
		{"sse-endpoint", &a.cfg.SSEEndpoint, a.flags.SSEEndpoint},
		{"views-addr", &a.cfg.ViewsAddr, a.flags.ViewsAddr},
		{"log-level", &a.cfg.LogLevel, a.flags.LogLevel},
	}
	for _, o := range overrides {
		if cmd.Flags().Changed(o.name) {
			*o.dst = o.src
		}
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "mcp-memory-graph",
		Short:         "Persistent knowledge graph memory for MCP clients",
		Version:       fmt.Sprintf("%s (%s, built %s)", buildinfo.Version, buildinfo.Revision, buildinfo.BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.envFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.applyFlags(cmd)
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			a.logger, err = logger.New(a.cfg.Env, a.cfg.LogLevel)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, a)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")
	pf.StringVar(&a.flags.Backend, "backend", config.BackendSQLite, "Storage backend: sqlite, libsql, json or neo4j")
	pf.StringVar(&a.flags.DBPath, "db-path", "./memory.db", "Database file for the sqlite and local libsql backends")
	pf.StringVar(&a.flags.FilePath, "file", "./memory.json", "Document file for the json backend")
	pf.StringVar(&a.flags.LibSQLURL, "libsql-url", "", "libSQL database URL (overrides --db-path)")
	pf.StringVar(&a.flags.LibSQLAuthToken, "auth-token", "", "Authentication token for remote libSQL databases")
	pf.StringVar(&a.flags.SearchMode, "search-mode", "independent", "Search matching: independent or incident")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, a)
		},
	}
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		f := c.Flags()
		f.StringVar(&a.flags.Transport, "transport", config.TransportStdio, "Transport to use: stdio or sse")
		f.StringVar(&a.flags.Addr, "addr", ":8080", "Address to listen on when using SSE transport")
		f.StringVar(&a.flags.SSEEndpoint, "sse-endpoint", "/sse", "SSE endpoint path when using SSE transport")
		f.StringVar(&a.flags.ViewsAddr, "views-addr", "", "Address for the read-only HTTP views (disabled when empty)")
	}

	rootCmd.AddCommand(serveCmd, newStatsCmd(a), newDumpCmd(a))
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
