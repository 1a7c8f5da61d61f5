package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/config"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/metrics"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/server"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/viewapi"
)

func runServe(cmd *cobra.Command, a *app) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := a.logger
	cfg := a.cfg

	st, err := config.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open memory store", zap.Error(err))
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			log.Error("error closing memory store", zap.Error(cerr))
			err = multierr.Append(err, cerr)
		}
	}()

	if cfg.MetricsEnabled {
		if err := metrics.Init(ctx, cfg.MetricsAddr); err != nil {
			return err
		}
	}

	srv := server.NewMCPServer(st, log)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// the MCP session ending stops the whole process
		defer cancel()
		var err error
		switch cfg.Transport {
		case config.TransportSSE:
			err = srv.RunSSE(gctx, cfg.Addr, cfg.SSEEndpoint)
		default:
			err = srv.Run(gctx)
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.ViewsAddr != "" {
		// stdout belongs to the stdio transport
		gin.DefaultWriter = os.Stderr
		gin.DefaultErrorWriter = os.Stderr
		if cfg.Env == "production" {
			gin.SetMode(gin.ReleaseMode)
		}
		ln, err := net.Listen("tcp", cfg.ViewsAddr)
		if err != nil {
			cancel()
			return multierr.Append(err, g.Wait())
		}
		router := viewapi.NewRouter(st, log)
		g.Go(func() error { return viewapi.Serve(gctx, ln, router, log) })
	}

	log.Info("MCP memory server started",
		zap.String("transport", cfg.Transport),
		zap.String("backend", st.BackendName()))
	err = g.Wait()
	log.Info("server stopped")
	return err
}
