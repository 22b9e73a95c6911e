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

	"github.com/DoyleJ11/spot-battle-backend/internal/config"
	"github.com/DoyleJ11/spot-battle-backend/internal/httpapi"
	"github.com/DoyleJ11/spot-battle-backend/internal/hub"
	"github.com/DoyleJ11/spot-battle-backend/internal/logging"
	"github.com/DoyleJ11/spot-battle-backend/internal/places"
	"github.com/DoyleJ11/spot-battle-backend/internal/room"
	"github.com/DoyleJ11/spot-battle-backend/internal/store"
	"github.com/DoyleJ11/spot-battle-backend/internal/ws"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := room.Options{
		MaxMembers:    cfg.MaxMembers,
		LookupTimeout: cfg.PlacesTimeout,
		StoreTimeout:  cfg.StoreTimeout,
		Logger:        log,
	}
	deps := httpapi.Deps{
		WS: ws.Options{
			OriginPatterns: cfg.OriginPatterns,
			OutboxSize:     cfg.OutboxSize,
			WriteTimeout:   cfg.WriteTimeout,
			IdleTimeout:    cfg.IdleTimeout,
			Logger:         log.Named("ws"),
		},
		Logger: log.Named("http"),
	}

	if cfg.PlacesAPIKey != "" {
		opts.Finder = places.NewClient(places.Config{
			APIKey:   cfg.PlacesAPIKey,
			BaseURL:  cfg.PlacesBaseURL,
			Language: cfg.PlacesLanguage,
			Limit:    cfg.PlacesLimit,
			Timeout:  cfg.PlacesTimeout,
		}, log.Named("places"))
	} else {
		log.Warn("GOOGLE_PLACES_API_KEY not set, games start without a spot")
	}

	if cfg.DatabaseURL != "" {
		openCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
		pg, err := store.OpenPostgres(openCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			return err
		}
		defer pg.Close()
		opts.Recorder = pg
		deps.History = pg
		log.Info("match archive enabled")
	}

	h := hub.NewHub(ctx, opts)
	deps.Hub = h
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		h.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
