package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AllienNova/scaiflutter/internal/analysis"
	"github.com/AllienNova/scaiflutter/internal/audit"
	"github.com/AllienNova/scaiflutter/internal/config"
	"github.com/AllienNova/scaiflutter/internal/httpapi"
	"github.com/AllienNova/scaiflutter/internal/lifecycle"
	"github.com/AllienNova/scaiflutter/internal/notify"
	"github.com/AllienNova/scaiflutter/internal/observability"
	"github.com/AllienNova/scaiflutter/internal/scoring"
	"github.com/AllienNova/scaiflutter/internal/session"
	"github.com/AllienNova/scaiflutter/internal/telephony"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	trail, err := audit.NewStore(ctx, cfg.DatabaseURL, cfg.AuditMaxRecords)
	if err != nil {
		log.Fatalf("audit store init failed: %v", err)
	}
	defer trail.Close()

	var scorer scoring.Scorer
	scoringMode := strings.ToLower(strings.TrimSpace(cfg.ScoringMode))
	if scoringMode == "" {
		scoringMode = "auto"
	}

	newHTTPScorer := func() scoring.Scorer {
		return scoring.NewHTTPScorer(scoring.HTTPScorerConfig{
			URL:         cfg.ScoringURL,
			MaxAttempts: cfg.ScoringMaxRetries,
			Timeout:     cfg.ScoringTimeout,
		})
	}

	switch scoringMode {
	case "http":
		scorer = newHTTPScorer()
		log.Printf("scoring backend: http (%s)", cfg.ScoringURL)
	case "heuristic":
		scorer = scoring.NewHeuristicScorer()
		log.Printf("scoring backend: heuristic")
	case "auto":
		if cfg.ScoringURL != "" {
			scorer = scoring.NewFailoverScorer(newHTTPScorer(), scoring.NewHeuristicScorer())
			log.Printf("scoring backend: http (%s) with heuristic failover", cfg.ScoringURL)
		} else {
			scorer = scoring.NewHeuristicScorer()
			log.Printf("scoring backend: heuristic (no SCORING_URL set)")
		}
	default:
		log.Fatalf("invalid SCORING_MODE: %q (expected auto|http|heuristic)", cfg.ScoringMode)
	}

	adapter := scoring.NewAdapter(scorer, cfg.ScoringTimeout)

	registry := session.NewRegistry(cfg.RetentionWindow)
	hub := notify.NewHub(cfg.EventBufferSize)
	registry.SetUpdateHook(func(snap session.Snapshot) {
		hub.Publish(snap)
		metrics.OpenSessions.Set(float64(registry.OpenCount()))
	})

	service := analysis.NewService(registry, adapter, trail, metrics)

	classifier := telephony.NewClassifier(cfg.EventBufferSize)
	coordinator := lifecycle.New(service, classifier.Events())
	coordinator.SetEventHook(func(kind telephony.EventKind) {
		metrics.SessionEvents.WithLabelValues("signal_" + string(kind)).Inc()
	})

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	go coordinator.Run(runCtx)
	registry.StartJanitor(runCtx, cfg.JanitorInterval, func(count int) {
		metrics.SessionEvents.WithLabelValues("evicted").Add(float64(count))
	})

	api := httpapi.New(cfg, service, classifier, trail, hub, metrics)
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
