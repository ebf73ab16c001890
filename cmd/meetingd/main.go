// Package main is the entry point for the roundsync meeting server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roundtable-labs/roundsync/config"
	"github.com/roundtable-labs/roundsync/internal/events"
	"github.com/roundtable-labs/roundsync/internal/orchestrator"
	"github.com/roundtable-labs/roundsync/internal/redisx"
	"github.com/roundtable-labs/roundsync/internal/scenario"
	"github.com/roundtable-labs/roundsync/internal/server"
	"github.com/roundtable-labs/roundsync/internal/store"
)

const (
	version         = "0.3.1"
	shutdownTimeout = 5 * time.Second
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting roundsync meeting server v%s", version)

	cfg := config.Load()
	log.Printf("Configuration loaded - DataStore: %s, Scenario: %s", cfg.DataStoreDSN, cfg.ScenarioPath)

	sc, err := scenario.Load(cfg.ScenarioPath)
	if err != nil {
		log.Fatalf("Failed to load scenario: %v", err)
	}
	log.Printf("Loaded scenario %q with %d agents", sc.Name, len(sc.Agents))

	st, err := store.Open(cfg.DataStoreDSN)
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	defer st.Close()

	redisClient, err := redisx.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	if redisClient == nil {
		log.Println("Redis disabled (REDIS_ADDR not set); event fan-out is process-local")
	} else {
		defer redisClient.Close()
	}

	bus := events.NewBus(events.Options{Client: redisClient, Channel: cfg.EventsChannel})
	orch := orchestrator.New(st, bus, sc)

	srv, err := server.NewServer(st, bus, orch, server.Options{APIToken: cfg.APIToken})
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}

	httpSrv := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     srv.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on :%s", cfg.ServerPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server stopped")
}
