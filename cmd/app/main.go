package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/dococr/internal/ai"
	cfgpkg "github.com/local/dococr/internal/config"
	"github.com/local/dococr/internal/imageenc"
	logpkg "github.com/local/dococr/internal/logger"
	mpkg "github.com/local/dococr/internal/metrics"
	"github.com/local/dococr/internal/ocr"
	"github.com/local/dococr/internal/statuscheck"
	web "github.com/local/dococr/internal/web"
)

func main() {
	cfg, err := cfgpkg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if err := logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
	}
	defer logpkg.Close()

	mpkg.Init()

	// One client for the whole process, shared read-only by all requests.
	provider := cfg.AI.Active()
	client, err := ai.NewForEngine(cfg.AI.Engine, provider.APIKey, provider.BaseURL, &http.Client{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build ai client")
	}
	if provider.APIKey == "" {
		log.Warn().Str("engine", client.Name()).Msg("no API key configured; requests will fail authentication")
	}

	extractor := ocr.New(client, provider.Model,
		ocr.WithEncoder(imageenc.NewEncoder(cfg.AI.JPEGQuality)),
		ocr.WithTimeout(cfg.AI.RequestTimeout),
	)

	mux := http.NewServeMux()
	web.New(extractor, web.Options{MaxUploadMB: cfg.Web.MaxUploadMB, MaxPixels: cfg.AI.MaxPixels}).RegisterRoutes(mux)
	mux.Handle("/metrics", mpkg.Handler())

	checker := statuscheck.New(statuscheck.Options{
		Engine:  cfg.AI.Engine,
		APIKey:  provider.APIKey,
		BaseURL: provider.BaseURL,
		Model:   provider.Model,
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(checker.Summary(r.Context()))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Web.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("engine", client.Name()).
			Str("model", provider.Model).
			Dur("request_timeout", cfg.AI.RequestTimeout).
			Msgf("HTTP server listening on :%s", cfg.Web.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info().Msg("shutdown complete")
}
