/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"os"
	"time"

	"github.com/friendsincode/skald_overlay/internal/auth"
	"github.com/friendsincode/skald_overlay/internal/hub"
	"github.com/friendsincode/skald_overlay/internal/media"
	"github.com/go-chi/chi/v5"
)

type pairConsumeRequest struct {
	Code        string  `json:"code"`
	AuthorName  *string `json:"authorName,omitempty"`
	AuthorImage *string `json:"authorImage,omitempty"`
}

type pairConsumeResponse struct {
	Token    string `json:"token"`
	ClientID string `json:"clientId"`
	GuildID  string `json:"guildId"`
	Label    string `json:"label"`
}

// handlePairConsume exchanges a one-shot pairing code for an overlay token.
// Consuming a code revokes earlier pairings with the same guild and label.
func (a *API) handlePairConsume(w http.ResponseWriter, r *http.Request) {
	var req pairConsumeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code_required")
		return
	}

	now := time.Now().UTC()
	code, err := a.store.ConsumePairingCode(r.Context(), req.Code, now)
	if err != nil {
		a.logger.Error().Err(err).Msg("pairing code consume failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if code == nil {
		writeError(w, http.StatusNotFound, "pairing_code_invalid")
		return
	}

	if _, err := a.store.RevokeOverlayClients(r.Context(), code.GuildID, code.Label, now); err != nil {
		a.logger.Error().Err(err).Msg("pairing revoke failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	token, client, err := auth.GenerateOverlayToken(code.GuildID, code.Label)
	if err != nil {
		a.logger.Error().Err(err).Msg("token generation failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	client.AuthorName = req.AuthorName
	client.AuthorImage = req.AuthorImage

	if _, err := a.store.EnsureGuild(r.Context(), code.GuildID, a.cfg.DefaultDurationSec); err != nil {
		a.logger.Error().Err(err).Msg("guild ensure failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if err := a.store.CreateOverlayClient(r.Context(), client); err != nil {
		a.logger.Error().Err(err).Msg("overlay client create failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	a.logger.Info().
		Str("guild", code.GuildID).
		Str("label", code.Label).
		Str("client", client.ID).
		Msg("overlay paired")

	writeJSON(w, http.StatusCreated, pairConsumeResponse{
		Token:    token,
		ClientID: client.ID,
		GuildID:  code.GuildID,
		Label:    code.Label,
	})
}

type overlayConfigResponse struct {
	GuildID          string `json:"guildId"`
	ClientID         string `json:"clientId"`
	Label            string `json:"label"`
	ProtocolVersion  string `json:"protocolVersion"`
	ShowTextDefault  bool   `json:"showTextDefault"`
	DefaultMediaTime int    `json:"defaultMediaTime"`
	MaxMediaTime     *int   `json:"maxMediaTime,omitempty"`
}

// handleOverlayConfig returns the authenticated overlay's guild policy.
func (a *API) handleOverlayConfig(w http.ResponseWriter, r *http.Request) {
	client, errCode := a.overlayClient(r)
	if client == nil {
		status := http.StatusUnauthorized
		if errCode == "auth_error" {
			status = http.StatusInternalServerError
		}
		writeError(w, status, errCode)
		return
	}

	policy, err := a.guildPolicy(r, client.GuildID)
	if err != nil {
		a.logger.Error().Err(err).Str("guild", client.GuildID).Msg("guild policy load failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, overlayConfigResponse{
		GuildID:          client.GuildID,
		ClientID:         client.ID,
		Label:            client.Label,
		ProtocolVersion:  hub.ProtocolVersion,
		ShowTextDefault:  policy.ShowTextDefault,
		DefaultMediaTime: policy.DefaultMediaTime,
		MaxMediaTime:     policy.MaxMediaTime,
	})
}

// handleMediaStream serves asset bytes with range support. Only assets
// referenced by the overlay's guild are served.
func (a *API) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	client, errCode := a.overlayClient(r)
	if client == nil {
		status := http.StatusUnauthorized
		if errCode == "auth_error" {
			status = http.StatusInternalServerError
		}
		writeError(w, status, errCode)
		return
	}

	assetID := chi.URLParam(r, "assetID")
	asset, err := a.store.GetMediaAsset(r.Context(), assetID)
	if err != nil {
		a.logger.Error().Err(err).Str("asset", assetID).Msg("asset lookup failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if asset == nil || !asset.IsReady() {
		writeError(w, http.StatusNotFound, "media_not_found")
		return
	}

	referenced, err := a.store.AssetReferencedByGuild(r.Context(), client.GuildID, assetID)
	if err != nil {
		a.logger.Error().Err(err).Str("asset", assetID).Msg("asset reference check failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if !referenced {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	f, size, err := a.streamer.Open(asset.StoragePath)
	if err != nil {
		if os.IsNotExist(err) || err == media.ErrOutsideRoot {
			writeError(w, http.StatusNotFound, "media_not_found_on_disk")
			return
		}
		a.logger.Error().Err(err).Str("asset", assetID).Msg("asset open failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	defer f.Close()

	if err := a.store.TouchMediaAccess(r.Context(), assetID, time.Now().UTC()); err != nil {
		a.logger.Warn().Err(err).Str("asset", assetID).Msg("media access touch failed")
	}

	a.streamer.Serve(w, r, f, size, asset.Mime)
}
