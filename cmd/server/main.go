/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Shelfline Lending Engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Load policy config (JSON file or shipped defaults)
  4. Wire the engine, handler, router, and sweep scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: lending.db)
           Use ":memory:" for in-memory database
  -config  Policy config JSON path (default: built-in tiers and rules)
  -sweep   Sweep interval for hold expiry / due-soon scans (default: 1h)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweep scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/lending.db"

  # Run with custom tier thresholds
  ./server -config="./config/tiers.json"

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - factory/policy.go: Config JSON parsing
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shelfline/lending-engine/api"
	"github.com/shelfline/lending-engine/factory"
	"github.com/shelfline/lending-engine/lending"
	"github.com/shelfline/lending-engine/score"
	"github.com/shelfline/lending-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "lending.db", "SQLite database path")
	configPath := flag.String("config", "", "policy config JSON path (empty = defaults)")
	sweepEvery := flag.Duration("sweep", time.Hour, "sweep interval for hold expiry and due-soon scans")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Load config
	cfg := lending.DefaultConfig()
	if *configPath != "" {
		raw, err := os.ReadFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to read config %s: %v", *configPath, err)
		}
		cfg, err = factory.NewConfigFactory().ParseConfig(string(raw))
		if err != nil {
			log.Fatalf("Invalid config %s: %v", *configPath, err)
		}
		log.Printf("Loaded policy config from %s", *configPath)
	}

	// Wire the engine
	scores := score.NewLedger(store)
	svc := lending.NewService(store, scores, cfg)
	svc.Identity = store

	// Initialize handler and router
	handler := api.NewHandler(svc, store, scores)
	router := api.NewRouter(handler)

	// Start the background sweeps
	scheduler := api.NewSweepScheduler(svc)
	scheduler.CheckInterval = *sweepEvery
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
