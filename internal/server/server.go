/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server assembles the HTTP server and all supporting services.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/skald_overlay/internal/api"
	"github.com/friendsincode/skald_overlay/internal/cache"
	"github.com/friendsincode/skald_overlay/internal/config"
	"github.com/friendsincode/skald_overlay/internal/db"
	"github.com/friendsincode/skald_overlay/internal/events"
	"github.com/friendsincode/skald_overlay/internal/hub"
	"github.com/friendsincode/skald_overlay/internal/media"
	"github.com/friendsincode/skald_overlay/internal/scheduler"
	"github.com/friendsincode/skald_overlay/internal/store"
	"github.com/friendsincode/skald_overlay/internal/telemetry"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db        *gorm.DB
	store     *store.Store
	cache     *cache.Cache
	bus       *events.Bus
	hub       *hub.Hub
	scheduler *scheduler.Scheduler
	purger    *scheduler.Purger
	api       *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("skald-overlay-api"))
	router.Use(telemetry.MetricsMiddleware)
	// Skip timeout for WebSocket and media streaming connections
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			if strings.HasPrefix(r.URL.Path, "/overlay/media/") {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       0,
		// WriteTimeout stays 0 so media streaming manages its own pacing; the
		// middleware timeout covers the rest.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")

		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database
	s.store = store.New(database)
	s.DeferClose(func() error { return db.Close(database) })

	if err := os.MkdirAll(s.cfg.MediaRoot, 0755); err != nil {
		return fmt.Errorf("failed to create media directory %s: %w", s.cfg.MediaRoot, err)
	}
	s.logger.Info().Str("path", s.cfg.MediaRoot).Msg("media directory ready")

	if s.cfg.RedisAddr != "" {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		entityCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
			s.cache = cache.Disabled(s.logger)
		} else {
			s.cache = entityCache
			s.DeferClose(func() error { return s.cache.Close() })
		}
	} else {
		s.cache = cache.Disabled(s.logger)
	}

	apiURL := s.cfg.APIURL
	if apiURL == "" {
		apiURL = fmt.Sprintf("http://%s:%d", s.cfg.HTTPBind, s.cfg.HTTPPort)
	}
	urls := media.NewURLBuilder(apiURL)
	streamer := media.NewStreamer(s.cfg.MediaRoot, s.logger)

	s.hub = hub.New(s.store, s.bus, s.logger)
	s.scheduler = scheduler.New(s.store, s.hub, s.bus, urls, s.logger, scheduler.TunablesFromConfig(s.cfg))
	s.hub.SetDispatcher(s.scheduler)
	s.DeferClose(func() error { s.scheduler.Close(); return nil })

	s.purger = scheduler.NewPurger(s.store, s.logger, s.cfg.PlaybackJobRetention)

	s.api = api.New(s.store, s.cache, s.hub, s.scheduler, streamer, urls, s.cfg, s.logger)

	return nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.scheduler.Bootstrap(ctx); err != nil {
			s.logger.Error().Err(err).Msg("scheduler bootstrap failed")
		}
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.purger.Run(ctx)
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

// HTTPServer exposes the configured http.Server for the caller to run.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}
