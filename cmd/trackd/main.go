package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/learntrack/internal/config"
	"example.com/learntrack/internal/device"
	"example.com/learntrack/internal/domain"
	"example.com/learntrack/internal/session"
	"example.com/learntrack/internal/tracker"
	transport "example.com/learntrack/internal/transport/http"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.Printf("config: base=%s sink=%s batch=%d interval=%s", cfg.BaseURL, cfg.Sink, cfg.BatchSize, cfg.FlushInterval)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := transport.NewClient(cfg.BaseURL, cfg.Endpoint, cfg.PrivacyEndpoint, nil, cfg.HTTPTimeout)
	if err != nil {
		log.Fatalf("http client: %v", err)
	}
	if tok := os.Getenv("TELEMETRY_CSRF_TOKEN"); tok != "" {
		client.SetCookie(&http.Cookie{Name: transport.CSRFCookie, Value: tok})
	}

	sender, closeSink, err := newSink(ctx, cfg, client)
	if err != nil {
		log.Fatalf("sink: %v", err)
	}
	defer closeSink()

	var store session.Store = session.NewMemoryStore()
	if cfg.RedisAddr != "" {
		rs, err := session.NewRedisStore(ctx, cfg.RedisAddr, 0)
		if err != nil {
			log.Printf("redis: %v; returning visitors are not detected", err)
		} else {
			defer rs.Close()
			store = rs
			log.Printf("redis: connected %s", cfg.RedisAddr)
		}
	}

	visitor := cfg.Visitor
	if visitor == "" {
		visitor, _ = os.Hostname()
	}

	src := device.NewHostSource("trackd", version)
	tr := tracker.New(tracker.Options{
		Config:       cfg,
		Sender:       sender,
		Consent:      client,
		Device:       src,
		Page:         tracker.NewStaticPage(domain.PageInfo{URL: "app://trackd/", Title: "trackd"}),
		SessionStore: store,
		Visitor:      visitor,
	})
	tr.Start(ctx)
	log.Printf("tracker: started session=%s", tr.SessionID())

	metrics := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("metrics: listening on %s", cfg.MetricsAddr)
		if err := metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server: %v", err)
		}
	}()

	go func() {
		if err := runCommands(ctx, os.Stdin, tr); err != nil && ctx.Err() == nil {
			log.Printf("stdin: %v", err)
		}
		cancel()
	}()

	<-ctx.Done()
	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	tr.Destroy(shutdownCtx)
	log.Printf("tracker: destroyed, %d events left unsent", tr.QueueLen())
	_ = metrics.Shutdown(shutdownCtx)
}
