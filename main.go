// main.go
// Application entry point: loads configuration, initializes the logger and
// starts the broadcast hub server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/erilali/wshub/internal/api"
	"github.com/erilali/wshub/internal/config"
	"github.com/erilali/wshub/internal/hub"
	"github.com/erilali/wshub/internal/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.DefaultPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(cfg.Log)
	serverLogger := logger.NewLogger("server")
	serverLogger.WithFields(map[string]interface{}{
		"config":      configPath,
		"addr":        cfg.Server.Addr,
		"max_clients": cfg.Hub.MaxClients,
		"level":       cfg.Log.Level,
	}).Info("Logger initialized with configuration")

	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	natsLogger := logger.NewLogger("nats")
	nc := hub.ConnectNATS(cfg.NATS.URL, natsLogger)
	if nc != nil {
		defer nc.Drain() //nolint:errcheck
	}
	publisher := hub.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix, natsLogger)

	h := hub.NewHub(cfg.Hub.Options(), publisher, logger.NewLogger("hub"))

	if _, err := os.Stat(configPath); err == nil {
		go func() {
			err := config.Watch(ctx, configPath, logger.NewLogger("config"), func(next *config.Config) {
				h.SetLimits(next.Hub.MaxClients, next.Hub.SendTimeout)
			})
			if err != nil {
				serverLogger.Errorf("Config watcher stopped: %v", err)
			}
		}()
	}

	if err := api.StartServer(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout, h, nc, serverLogger); err != nil {
		serverLogger.Fatalf("Server error: %v", err)
	}
	serverLogger.Info("Server stopped")
}
