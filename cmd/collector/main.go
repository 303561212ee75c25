package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/learntrack/internal/batch"
	"example.com/learntrack/internal/config"
	spg "example.com/learntrack/internal/storage/postgres"
	transport "example.com/learntrack/internal/transport/http"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.Printf("config: port=%s events=%s privacy=%s", cfg.CollectorPort, cfg.Endpoint, cfg.PrivacyEndpoint)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := spg.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	log.Printf("db: connected")

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migration: %v", err)
	}
	log.Printf("db: migrations applied")

	writer := spg.NewWriter(db)
	batcher := batch.NewBatcher(writer, cfg.MaxQueueSize, cfg.BatchSize, cfg.FlushInterval, cfg.EnableDebug)
	batcher.Start(ctx)
	log.Printf("batch: started (queue=%d batch=%d interval=%s)", cfg.MaxQueueSize, cfg.BatchSize, cfg.FlushInterval)

	deps := &transport.ServerDeps{
		Cfg:     cfg,
		Consent: config.ParseConsent(cfg.CollectorConsent),
		Queue:   batcher,
		DB:      db,
		Now:     func() time.Time { return time.Now().UTC() },
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", deps.Router())

	srv := &http.Server{
		Addr:              ":" + cfg.CollectorPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s", cfg.CollectorPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)

	batcher.Stop()
	for batcher.Len() > 0 {
		if err := batcher.Flush(shutdownCtx); err != nil {
			log.Printf("shutdown: %d events not stored: %v", batcher.Len(), err)
			break
		}
	}
	batcher.Wait()
}
