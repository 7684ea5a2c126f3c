// internal/api/api.go
// HTTP surface of the hub: the WebSocket endpoint plus health, metrics and
// client listing.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/erilali/wshub/internal/hub"
	"github.com/erilali/wshub/internal/logger"
	"github.com/erilali/wshub/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
)

const (
	version           = "1.0.0"
	readHeaderTimeout = 10 * time.Second
)

// NewRouter builds the gin engine. nc may be nil when the event feed is off.
func NewRouter(h *hub.Hub, nc *nats.Conn, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/ws", func(c *gin.Context) {
		h.ServeWs(c.Writer, c.Request)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"clients": h.Len(),
			"nats":    hub.NATSStatus(nc),
			"version": version,
		})
	})

	r.GET("/metrics", gin.WrapF(metrics.Handler(h.Stats)))

	api := r.Group("/api")
	{
		api.GET("/clients", func(c *gin.Context) {
			stats := h.Stats()
			c.JSON(http.StatusOK, gin.H{
				"count":       stats.Clients,
				"max_clients": stats.MaxClients,
				"clients":     h.Clients(),
			})
		})
	}

	return r
}

// StartServer serves the router on addr until ctx is cancelled, then shuts
// down the HTTP server and the hub.
func StartServer(ctx context.Context, addr string, shutdownTimeout time.Duration, h *hub.Hub, nc *nats.Conn, log *logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(h, nc, log),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	hubDone := make(chan error, 1)
	go func() {
		hubDone <- h.Run(ctx, shutdownTimeout)
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Server started at %s", addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown: %v", err)
	}
	return <-hubDone
}

// requestLogger logs each request through the component logger.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(map[string]interface{}{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"remote":  c.ClientIP(),
		}).Debug("request")
	}
}
