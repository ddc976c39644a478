package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trueequity/backend/internal/api"
	"github.com/trueequity/backend/internal/api/handlers"
	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the read-only query API",
	Long: `Start the HTTP query API and the refresh event stream.

Endpoints:
  GET /health
  GET /api/stocks/{symbol}
  GET /api/stocks/{symbol}/prices?days=30
  GET /api/scores/{symbol}
  GET /api/rsi/{symbol}?timeframe=1d
  GET /api/data/quality
  GET /api/data/universe
  GET /ws/events            (websocket)

With --with-scheduler the refresh jobs run in the same process and
their events stream to /ws/events.

Example:
  go run ./cmd/trueequity api
  go run ./cmd/trueequity api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "also run the refresh scheduler")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== trueequity API server ===")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, sched, err := initScheduler(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	log := a.log
	log.WithFields(map[string]interface{}{
		"port": a.cfg.Port,
		"env":  a.cfg.Env,
	}).Info("Initializing API server")

	// Handlers
	cache := redis.NewCache(a.redis, "trueequity")
	hub := handlers.NewEventHub(log)
	defer hub.Close()
	a.ingest.WithEventSink(hub)

	router := api.NewRouter(api.Handlers{
		Stock:  handlers.NewStockHandler(a.store, cache, contracts.SystemClock, log),
		RSI:    handlers.NewRSIHandler(a.technical, cache, log),
		Data:   handlers.NewDataHandler(a.quality, a.universe, contracts.SystemClock, log),
		Events: hub,
	}, log)

	server := api.New(a.cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	if apiWithScheduler {
		sched.Start()
		defer sched.Stop()
	}

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
