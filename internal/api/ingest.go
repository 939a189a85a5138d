/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/friendsincode/skald_overlay/internal/auth"
	"github.com/friendsincode/skald_overlay/internal/store"
	"github.com/go-chi/chi/v5"
)

type producerClaimsKey struct{}

// producerAuth gates the ingest API behind producer JWTs. With no signing key
// configured (development) requests pass through unauthenticated.
func (a *API) producerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.IngestEnabled {
			writeError(w, http.StatusServiceUnavailable, "ingest_api_disabled")
			return
		}

		if len(a.jwtSecret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		claims, err := auth.Parse(a.jwtSecret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), producerClaimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// producerAllowed checks guild scope for the authenticated producer.
func producerAllowed(r *http.Request, guildID string) bool {
	claims, ok := r.Context().Value(producerClaimsKey{}).(*auth.ProducerClaims)
	if !ok {
		// No auth configured.
		return true
	}
	return claims.AllowsGuild(guildID)
}

type jobCreateRequest struct {
	GuildID      string  `json:"guildId"`
	MediaAssetID *string `json:"mediaAssetId,omitempty"`
	Text         string  `json:"text,omitempty"`
	ShowText     bool    `json:"showText,omitempty"`
	AuthorName   *string `json:"authorName,omitempty"`
	AuthorImage  *string `json:"authorImage,omitempty"`
	DurationSec  *int    `json:"durationSec,omitempty"`
	Priority     int     `json:"priority,omitempty"`
}

// handleJobCreate enqueues a playback job. Duration defaults to the guild's
// default media time and is capped by its maximum.
func (a *API) handleJobCreate(w http.ResponseWriter, r *http.Request) {
	var req jobCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.GuildID == "" {
		writeError(w, http.StatusBadRequest, "guild_id_required")
		return
	}
	if !producerAllowed(r, req.GuildID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if req.MediaAssetID == nil && req.Text == "" {
		writeError(w, http.StatusBadRequest, "empty_job")
		return
	}
	if req.Priority < 0 {
		writeError(w, http.StatusBadRequest, "invalid_priority")
		return
	}

	policy, err := a.guildPolicy(r, req.GuildID)
	if err != nil {
		a.logger.Error().Err(err).Str("guild", req.GuildID).Msg("guild policy load failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	duration := policy.DefaultMediaTime
	if duration < 1 {
		duration = a.cfg.DefaultDurationSec
	}
	if req.DurationSec != nil {
		if *req.DurationSec < 1 {
			writeError(w, http.StatusBadRequest, "invalid_duration")
			return
		}
		duration = *req.DurationSec
	}
	if policy.MaxMediaTime != nil && duration > *policy.MaxMediaTime {
		duration = *policy.MaxMediaTime
	}

	if req.MediaAssetID != nil {
		asset, err := a.store.GetMediaAsset(r.Context(), *req.MediaAssetID)
		if err != nil {
			a.logger.Error().Err(err).Msg("asset lookup failed")
			writeError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if asset == nil {
			writeError(w, http.StatusNotFound, "media_not_found")
			return
		}
	}

	job, err := a.store.CreateJob(r.Context(), store.CreateJobArgs{
		GuildID:      req.GuildID,
		MediaAssetID: req.MediaAssetID,
		Text:         req.Text,
		ShowText:     req.ShowText,
		AuthorName:   req.AuthorName,
		AuthorImage:  req.AuthorImage,
		DurationSec:  duration,
		Priority:     req.Priority,
	})
	if err != nil {
		a.logger.Error().Err(err).Str("guild", req.GuildID).Msg("job create failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	a.scheduler.OnJobEnqueued(req.GuildID)

	writeJSON(w, http.StatusCreated, toJobView(*job))
}

type queueResponse struct {
	Playing *jobView  `json:"playing,omitempty"`
	Pending []jobView `json:"pending"`
}

// handleGuildQueue returns the current playback state and the root queue in
// dispatch order.
func (a *API) handleGuildQueue(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	if !producerAllowed(r, guildID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	playing, err := a.store.FindActivePlayingJob(r.Context(), guildID)
	if err != nil {
		a.logger.Error().Err(err).Str("guild", guildID).Msg("queue load failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	roots, err := a.store.ListPendingRoots(r.Context(), guildID)
	if err != nil {
		a.logger.Error().Err(err).Str("guild", guildID).Msg("queue load failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	resp := queueResponse{Pending: make([]jobView, 0, len(roots))}
	if playing != nil {
		v := toJobView(*playing)
		resp.Playing = &v
	}
	for _, root := range roots {
		resp.Pending = append(resp.Pending, toJobView(root))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGuildStop stops current playback for a guild. Asynchronous; the queue
// keeps draining afterwards.
func (a *API) handleGuildStop(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	if !producerAllowed(r, guildID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	a.scheduler.OnManualStop(guildID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type pairingCodeRequest struct {
	GuildID string `json:"guildId"`
	Label   string `json:"label"`
}

type pairingCodeResponse struct {
	Code      string    `json:"code"`
	GuildID   string    `json:"guildId"`
	Label     string    `json:"label"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// handlePairingCodeCreate issues a one-shot pairing code for an overlay.
func (a *API) handlePairingCodeCreate(w http.ResponseWriter, r *http.Request) {
	var req pairingCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.GuildID == "" {
		writeError(w, http.StatusBadRequest, "guild_id_required")
		return
	}
	if req.Label == "" {
		req.Label = "default"
	}
	if !producerAllowed(r, req.GuildID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	code, err := auth.GeneratePairingCode(req.GuildID, req.Label, a.cfg.PairingCodeTTL)
	if err != nil {
		a.logger.Error().Err(err).Msg("pairing code generation failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if err := a.store.CreatePairingCode(r.Context(), code); err != nil {
		a.logger.Error().Err(err).Msg("pairing code create failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusCreated, pairingCodeResponse{
		Code:      code.Code,
		GuildID:   code.GuildID,
		Label:     code.Label,
		ExpiresAt: code.ExpiresAt,
	})
}

func decodeJSON(r *http.Request, dest any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}
