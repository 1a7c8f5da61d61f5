// Package viewapi serves read-only JSON projections of the knowledge graph
// for a status dashboard.
package viewapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/metrics"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/store"
)

// NewRouter builds the gin engine. Prometheus metrics are mounted on
// /metrics when the recorder is enabled.
func NewRouter(st *store.Store, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		if err := st.Ping(c.Request.Context()); err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": st.BackendName()})
	})

	if h := metrics.Handler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	api := router.Group("/api")
	{
		api.GET("/graph", func(c *gin.Context) {
			g, err := st.ReadGraph(c.Request.Context())
			if err != nil {
				writeError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, g)
		})

		api.GET("/entities", func(c *gin.Context) {
			g, err := st.ReadGraph(c.Request.Context())
			if err != nil {
				writeError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, g.Entities)
		})

		api.GET("/relations", func(c *gin.Context) {
			g, err := st.ReadGraph(c.Request.Context())
			if err != nil {
				writeError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, g.Relations)
		})

		api.GET("/stats", func(c *gin.Context) {
			stats, err := st.Stats(c.Request.Context())
			if err != nil {
				writeError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, stats)
		})

		api.GET("/search", func(c *gin.Context) {
			g, err := st.SearchNodes(c.Request.Context(), c.Query("q"))
			if err != nil {
				writeError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, g)
		})
	}

	return router
}

func writeError(c *gin.Context, log *zap.Logger, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrNotInitialized) {
		status = http.StatusServiceUnavailable
	}
	log.Error("view request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(status, gin.H{"error": err.Error()})
}

// Serve runs the views on ln until ctx is done.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(shutdownCtx)
	}()

	log.Info("views server listening", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-shutdownErr
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Debug("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
