package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/TimurManjosov/goexperiment/internal/api"
	"github.com/TimurManjosov/goexperiment/internal/config"
	"github.com/TimurManjosov/goexperiment/internal/decision"
	"github.com/TimurManjosov/goexperiment/internal/logging"
	"github.com/TimurManjosov/goexperiment/internal/sdk"
	"github.com/TimurManjosov/goexperiment/internal/snapshot"
	"github.com/TimurManjosov/goexperiment/internal/telemetry"
	"github.com/TimurManjosov/goexperiment/internal/userprofile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "json", os.Stderr).Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	telemetry.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.OTLPEndpoint, "goexperiment")
	if err != nil {
		log.Fatal().Err(err).Msg("tracing")
	}
	defer func() {
		ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctxShut); err != nil {
			log.Error().Err(err).Msg("tracing shutdown")
		}
	}()

	// initial snapshot
	holder := snapshot.NewHolder()
	snap, err := snapshot.BuildFromFile(cfg.DatafilePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatafilePath).Msg("load datafile")
	}
	holder.Update(snap)
	log.Info().Str("etag", snap.ETag).Str("revision", snap.Revision).
		Int("experiments", snap.Experiments).Int("features", snap.Features).Msg("snapshot loaded")

	store, err := userprofile.NewStore(ctx, userprofile.Options{
		Type:     cfg.ProfileStore,
		DSN:      cfg.DatabaseDSN,
		RedisURL: cfg.RedisURL,
		TTL:      cfg.ProfileTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.ProfileStore).Msg("profile store")
	}
	opts := []sdk.Option{
		sdk.WithLogger(log),
		sdk.WithErrorHandler(profileErrorHandler(log)),
	}
	if store != nil {
		defer store.Close()
		opts = append(opts, sdk.WithUserProfileService(userprofile.WithTimeout(store, cfg.ProfileStoreTimeout)))
	}
	log.Info().Str("store", cfg.ProfileStore).Msg("profile store ready")

	srvAPI := api.NewServer(sdk.New(holder, opts...), holder, api.Options{
		AdminAPIKey:    cfg.AdminAPIKey,
		RateLimitPerIP: cfg.RateLimitPerIP,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  60 * time.Second,
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metrics := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range []*http.Server{srv, metrics} {
		g.Go(func() error {
			log.Info().Str("addr", s.Addr).Msg("listening")
			if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Join(srv.Shutdown(ctxShut), metrics.Shutdown(ctxShut))
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server")
	}
	log.Info().Msg("stopped")
}

// profileErrorHandler logs recovered profile store failures and counts them.
func profileErrorHandler(log zerolog.Logger) decision.ErrorHandler {
	return decision.ErrorHandlerFunc(func(err error) {
		telemetry.ProfileStoreErrors.Inc()
		log.Error().Err(err).Msg("user profile store")
	})
}
