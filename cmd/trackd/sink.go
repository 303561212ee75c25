package main

import (
	"context"
	"fmt"
	"log"

	"example.com/learntrack/internal/batch"
	"example.com/learntrack/internal/config"
	spg "example.com/learntrack/internal/storage/postgres"
	transport "example.com/learntrack/internal/transport/http"
	"example.com/learntrack/internal/transport/otelsink"
)

const serviceName = "learntrack-trackd"

// newSink builds the batch destination selected by cfg.Sink. The returned func releases
// its resources and must run after the tracker is destroyed.
func newSink(ctx context.Context, cfg config.Config, client *transport.Client) (batch.Sender, func(), error) {
	switch cfg.Sink {
	case config.SinkHTTP:
		return client, func() {}, nil

	case config.SinkPostgres:
		db, err := spg.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migration: %w", err)
		}
		log.Printf("sink: postgres")
		return spg.NewWriter(db), db.Close, nil

	case config.SinkOTel:
		lp, err := otelsink.NewProvider(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("sink: otel endpoint=%q", cfg.OTLPEndpoint)
		return otelsink.NewSink(lp), func() {
			if err := lp.Shutdown(context.Background()); err != nil {
				log.Printf("sink: otel shutdown: %v", err)
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}
