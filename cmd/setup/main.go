// Command setup runs the enrichment and indexing pipeline for one
// vocabulary: it ingests concept and mapping dumps, resolves mapped-concept
// labels, and imports suggestion documents into the Typesense backend.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gbv/typesense-suggest-backend/pkg/config"
	"github.com/gbv/typesense-suggest-backend/pkg/db"
	"github.com/gbv/typesense-suggest-backend/pkg/download"
	"github.com/gbv/typesense-suggest-backend/pkg/pipeline"
	"github.com/gbv/typesense-suggest-backend/pkg/typesense"
)

func main() {
	configFlag := flag.String("config", "config.yaml", "Path to configuration file")
	vocFlag := flag.String("voc", "http://bartoc.org/en/node/18785", "URI of the vocabulary to index")
	downloadFlag := flag.String("download", "", "Concept dump URL, overriding the configured one")
	flag.Parse()

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		slog.Error("failed to load configuration", "path", *configFlag, "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	if err := os.MkdirAll(cfg.Cache, 0o755); err != nil {
		log.Error("failed to create cache directory", "path", cfg.Cache, "error", err)
		os.Exit(1)
	}

	conn, err := db.Open(cfg.Database)
	if err != nil {
		log.Error("failed to open database", "path", cfg.Database, "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	p := &pipeline.Pipeline{
		Config:     cfg,
		Log:        log,
		Downloader: download.New(),
		Store: typesense.New(typesense.Config{
			URL:     cfg.Typesense.URL,
			APIKey:  cfg.Typesense.APIKey,
			Timeout: time.Duration(cfg.Typesense.TimeoutSecs) * time.Second,
		}),
		DB: conn,
	}

	result, err := p.Run(ctx, *vocFlag, *downloadFlag)
	if err != nil {
		log.Error("pipeline failed", "error", err)
		os.Exit(1)
	}
	log.Info("pipeline finished",
		"run", result.RunID,
		"concepts", result.Concepts,
		"documents", result.Documents,
		"loaded", result.Stats.Loaded,
		"cached", result.Stats.Cached,
		"failed", result.Stats.Failed,
		"incompatible", result.Stats.Incompatible,
	)
}
