// Command server serves the read-only suggestion query endpoint backed by
// the Typesense index and the scheme registrations written by setup runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gbv/typesense-suggest-backend/pkg/config"
	"github.com/gbv/typesense-suggest-backend/pkg/db"
	"github.com/gbv/typesense-suggest-backend/pkg/server"
	"github.com/gbv/typesense-suggest-backend/pkg/typesense"
)

func main() {
	configFlag := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		slog.Error("failed to load configuration", "path", *configFlag, "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	// Load registered schemes written by setup runs.
	conn, err := db.Open(cfg.Database)
	if err != nil {
		log.Error("failed to open database", "path", cfg.Database, "error", err)
		os.Exit(1)
	}
	schemes, err := db.ListSchemes(conn)
	conn.Close()
	if err != nil {
		log.Error("failed to load registered schemes", "error", err)
		os.Exit(1)
	}
	log.Info("loaded registered schemes", "count", len(schemes))

	store := typesense.New(typesense.Config{
		URL:     cfg.Typesense.URL,
		APIKey:  cfg.Typesense.APIKey,
		Timeout: time.Duration(cfg.Typesense.TimeoutSecs) * time.Second,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: server.New(schemes, store, log).Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("now listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}
