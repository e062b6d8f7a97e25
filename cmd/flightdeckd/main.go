package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/xiaot623/gogo/flightdeck/internal/adapter/statusbus"
	"github.com/xiaot623/gogo/flightdeck/internal/config"
	"github.com/xiaot623/gogo/flightdeck/internal/hub"
	"github.com/xiaot623/gogo/flightdeck/internal/policy"
	"github.com/xiaot623/gogo/flightdeck/internal/repository"
	"github.com/xiaot623/gogo/flightdeck/internal/service"
	server "github.com/xiaot623/gogo/flightdeck/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.SetLevel(cfg.Level())
	log.SetHeader("${time_rfc3339} ${level}")

	log.Infof("Starting flightdeck...")
	log.Infof("HTTP Port: %d", cfg.HTTPPort)
	log.Infof("Database: %s", cfg.DatabaseURL)
	log.Infof("Replay worker: every %s, batch %d", cfg.ReplayWorkerInterval, cfg.ReplayWorkerBatch)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize policy engine
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	policyContent := policy.DefaultPolicy
	if cfg.PolicyFile != "" {
		raw, err := os.ReadFile(cfg.PolicyFile)
		if err != nil {
			log.Fatalf("Failed to read policy file: %v", err)
		}
		policyContent = string(raw)
		log.Infof("Replay policy: %s", cfg.PolicyFile)
	}
	policyEngine, err := policy.NewEngine(ctx, policyContent)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}
	if cfg.PolicyFile != "" {
		go func() {
			if err := policy.WatchFile(ctx, policyEngine, cfg.PolicyFile); err != nil {
				log.Warnf("Policy hot reload disabled: %v", err)
			}
		}()
	}

	// Initialize hub
	statusHub := hub.NewHub()
	go statusHub.Run(ctx)

	var notifier service.Notifier = statusHub
	if cfg.NATSURL != "" {
		publisher, nc, err := statusbus.Connect(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			log.Fatalf("Failed to initialize nats: %v", err)
		}
		defer nc.Drain()
		notifier = statusbus.Fanout{statusHub, publisher}
		log.Infof("Publishing replay status on %s.>", cfg.NATSSubject)
	}

	// Initialize service and background worker
	svc := service.New(db, notifier, cfg, policyEngine)
	go svc.RunReplayWorker(ctx)

	e := server.NewServer(svc, statusHub, cfg)
	e.HidePort = true

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Infof("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infof("Shutting down flightdeck...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Failed to shutdown server gracefully: %v", err)
	}
	stop()

	log.Infof("Flightdeck stopped")
}
