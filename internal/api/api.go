/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/skald_overlay/internal/auth"
	"github.com/friendsincode/skald_overlay/internal/cache"
	"github.com/friendsincode/skald_overlay/internal/config"
	"github.com/friendsincode/skald_overlay/internal/hub"
	"github.com/friendsincode/skald_overlay/internal/media"
	"github.com/friendsincode/skald_overlay/internal/models"
	"github.com/friendsincode/skald_overlay/internal/scheduler"
	"github.com/friendsincode/skald_overlay/internal/store"
)

// API exposes HTTP handlers.
type API struct {
	store     *store.Store
	cache     *cache.Cache
	hub       *hub.Hub
	scheduler *scheduler.Scheduler
	streamer  *media.Streamer
	urls      *media.URLBuilder
	cfg       *config.Config
	jwtSecret []byte
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(st *store.Store, c *cache.Cache, h *hub.Hub, sched *scheduler.Scheduler, streamer *media.Streamer, urls *media.URLBuilder, cfg *config.Config, logger zerolog.Logger) *API {
	return &API{
		store:     st,
		cache:     c,
		hub:       h,
		scheduler: sched,
		streamer:  streamer,
		urls:      urls,
		cfg:       cfg,
		jwtSecret: []byte(cfg.JWTSigningKey),
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts all endpoints.
func (a *API) Routes(r chi.Router) {
	r.Route("/overlay", func(r chi.Router) {
		r.Post("/pair/consume", a.handlePairConsume)
		r.Get("/config", a.handleOverlayConfig)
		r.Get("/media/{assetID}", a.handleMediaStream)
		r.Get("/ws", a.hub.HandleWebSocket)
	})

	r.Route("/ingest", func(r chi.Router) {
		r.Use(a.producerAuth)
		r.Post("/jobs", a.handleJobCreate)
		r.Post("/pairing-codes", a.handlePairingCodeCreate)
		r.Route("/guilds/{guildID}", func(r chi.Router) {
			r.Get("/queue", a.handleGuildQueue)
			r.Post("/stop", a.handleGuildStop)
		})
	})
}

// overlayClient resolves the overlay token carried in the query string or an
// Authorization bearer header. The cache absorbs handshake storms; revoked
// tokens age out of it within its TTL.
func (a *API) overlayClient(r *http.Request) (*models.OverlayClient, string) {
	token := r.URL.Query().Get("auth.token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		header := r.Header.Get("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if token == "" {
		return nil, "missing_token"
	}

	hash := auth.HashToken(token)

	if cached, ok := a.cache.GetOverlayClient(r.Context(), hash); ok {
		return &models.OverlayClient{
			ID:      cached.ID,
			GuildID: cached.GuildID,
			Label:   cached.Label,
		}, ""
	}

	client, err := a.store.FindOverlayClientByTokenHash(r.Context(), hash)
	if err != nil {
		a.logger.Error().Err(err).Msg("overlay token lookup failed")
		return nil, "auth_error"
	}
	if client == nil {
		return nil, "invalid_token"
	}

	a.cache.SetOverlayClient(r.Context(), hash, cache.CachedOverlayClient{
		ID:      client.ID,
		GuildID: client.GuildID,
		Label:   client.Label,
	})
	return client, ""
}

// guildPolicy returns duration defaults for a guild, cached.
func (a *API) guildPolicy(r *http.Request, guildID string) (*cache.CachedGuildPolicy, error) {
	if policy, ok := a.cache.GetGuildPolicy(r.Context(), guildID); ok {
		return policy, nil
	}

	guild, err := a.store.EnsureGuild(r.Context(), guildID, a.cfg.DefaultDurationSec)
	if err != nil {
		return nil, err
	}

	policy := cache.CachedGuildPolicy{
		DefaultMediaTime: guild.DefaultMediaTime,
		MaxMediaTime:     guild.MaxMediaTime,
		ShowTextDefault:  guild.ShowTextDefault,
	}
	a.cache.SetGuildPolicy(r.Context(), guildID, policy)
	return &policy, nil
}

// jobView is the external shape of a playback job.
type jobView struct {
	ID              string     `json:"id"`
	GuildID         string     `json:"guildId"`
	MediaAssetID    *string    `json:"mediaAssetId,omitempty"`
	Status          string     `json:"status"`
	Priority        int        `json:"priority"`
	DurationSec     int        `json:"durationSec"`
	ResumeOffsetSec int        `json:"resumeOffsetSec,omitempty"`
	SubmissionDate  time.Time  `json:"submissionDate"`
	ExecutionDate   time.Time  `json:"executionDate"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
	ResumesAfter    *string    `json:"resumesAfterJobId,omitempty"`
}

func toJobView(j models.PlaybackJob) jobView {
	return jobView{
		ID:              j.ID,
		GuildID:         j.GuildID,
		MediaAssetID:    j.MediaAssetID,
		Status:          string(j.Status),
		Priority:        j.Priority,
		DurationSec:     j.DurationSec,
		ResumeOffsetSec: j.ResumeOffsetSec,
		SubmissionDate:  j.SubmissionDate,
		ExecutionDate:   j.ExecutionDate,
		StartedAt:       j.StartedAt,
		FinishedAt:      j.FinishedAt,
		ResumesAfter:    j.ResumesAfterJobID,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
