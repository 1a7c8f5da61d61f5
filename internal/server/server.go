package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/metrics"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/store"
)

// Name is the implementation name reported to MCP clients.
const Name = "mcp-memory-graph-go"

const poolStatsInterval = 5 * time.Second

// MCPServer handles MCP protocol communication
type MCPServer struct {
	server *mcp.Server
	store  *store.Store
	logger *zap.Logger
}

// NewMCPServer creates a new MCP server
func NewMCPServer(st *store.Store, logger *zap.Logger) *MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    Name,
		Version: buildinfo.Version,
	}, nil)

	mcpServer := &MCPServer{
		server: server,
		store:  st,
		logger: logger,
	}
	mcpServer.setupToolHandlers()
	mcpServer.setupResources()
	return mcpServer
}

// reportPoolStats publishes connection pool gauges until ctx is done.
func (s *MCPServer) reportPoolStats(ctx context.Context) {
	ticker := time.NewTicker(poolStatsInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if inUse, idle, ok := s.store.PoolStats(); ok {
					metrics.Default().ObservePoolStats(inUse, idle)
				}
			}
		}
	}()
}

// Run starts the MCP server with stdio transport
func (s *MCPServer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.reportPoolStats(ctx)
	s.logger.Info("stdio MCP server started", zap.String("backend", s.store.BackendName()))
	transport := mcp.NewStdioTransport()
	return s.server.Run(ctx, transport)
}

// Handler returns the SSE handler serving this server.
func (s *MCPServer) Handler() http.Handler {
	return mcp.NewSSEHandler(func(r *http.Request) *mcp.Server { return s.server })
}

// RunSSE starts the MCP server over SSE at the given address and endpoint
// and returns once ctx is done and the listener has shut down.
func (s *MCPServer) RunSSE(ctx context.Context, addr string, endpoint string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeSSE(ctx, ln, endpoint)
}

// ServeSSE is RunSSE on an existing listener.
func (s *MCPServer) ServeSSE(ctx context.Context, ln net.Listener, endpoint string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.reportPoolStats(ctx)

	mux := http.NewServeMux()
	mux.Handle(endpoint, s.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			// open SSE streams do not drain on their own
			_ = srv.Close()
		}
	}()

	s.logger.Info("SSE MCP server listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("endpoint", endpoint),
		zap.String("backend", s.store.BackendName()))
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-shutdownDone
		return nil
	}
	return err
}
