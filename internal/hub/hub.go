/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package hub manages overlay WebSocket rooms, one per guild. The hub owns
// connection lifecycle and fan-out; playback decisions are delegated to the
// Dispatcher.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/friendsincode/skald_overlay/internal/auth"
	"github.com/friendsincode/skald_overlay/internal/events"
	"github.com/friendsincode/skald_overlay/internal/store"
	"github.com/friendsincode/skald_overlay/internal/telemetry"
	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"
)

// Dispatcher reacts to overlay activity. Implemented by the scheduler and
// injected after construction to avoid a dependency cycle.
type Dispatcher interface {
	OnJobEnqueued(guildID string)
	OnPlaybackState(guildID, jobID, state string, remainingMs *int64)
	OnPlaybackStopped(guildID, jobID, reason string)
	OnPlaybackError(guildID, jobID string)
	OnManualStop(guildID string)
	TriggerMeme(guildID, itemID string)
}

const sendBuffer = 32

// Hub tracks connected overlay sessions grouped by guild.
type Hub struct {
	store  *store.Store
	bus    *events.Bus
	logger zerolog.Logger

	dispatcher Dispatcher

	mu    sync.RWMutex
	rooms map[string]map[*session]struct{}
}

type session struct {
	clientID string
	guildID  string
	label    string
	send     chan []byte
}

// New creates the hub. Call SetDispatcher before serving connections.
func New(st *store.Store, bus *events.Bus, logger zerolog.Logger) *Hub {
	return &Hub{
		store:  st,
		bus:    bus,
		logger: logger.With().Str("component", "hub").Logger(),
		rooms:  make(map[string]map[*session]struct{}),
	}
}

// SetDispatcher wires the playback dispatcher.
func (h *Hub) SetDispatcher(d Dispatcher) {
	h.dispatcher = d
}

// HandleWebSocket authenticates and serves one overlay connection.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("auth.token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		writeAuthError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	client, err := h.store.FindOverlayClientByTokenHash(r.Context(), auth.HashToken(token))
	if err != nil {
		h.logger.Error().Err(err).Msg("overlay auth lookup failed")
		writeAuthError(w, http.StatusInternalServerError, "auth_error")
		return
	}
	if client == nil {
		writeAuthError(w, http.StatusUnauthorized, "invalid_token")
		return
	}

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	sess := &session{
		clientID: client.ID,
		guildID:  client.GuildID,
		label:    client.Label,
		send:     make(chan []byte, sendBuffer),
	}

	h.join(sess)
	defer h.leave(sess)

	now := time.Now().UTC()
	if err := h.store.TouchOverlayClientSeen(r.Context(), client.ID, now); err != nil {
		h.logger.Warn().Err(err).Str("client", client.ID).Msg("last seen update failed")
	}

	h.logger.Debug().
		Str("guild", sess.guildID).
		Str("client", sess.clientID).
		Str("label", sess.label).
		Msg("overlay connected")

	// A fresh overlay may unblock a queue that had nowhere to play.
	if h.dispatcher != nil {
		h.dispatcher.OnJobEnqueued(sess.guildID)
	}

	ctx := r.Context()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.readLoop(ctx, conn, sess)
	}()

	pingTicker := time.NewTicker(15 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return

		case <-done:
			conn.Close(ws.StatusNormalClosure, "client disconnected")
			return

		case <-pingTicker.C:
			frame, _ := json.Marshal(Envelope{Type: TypeHeartbeat})
			if err := conn.Write(ctx, ws.MessageText, frame); err != nil {
				h.logger.Debug().Err(err).Str("client", sess.clientID).Msg("heartbeat write failed")
				conn.Close(ws.StatusInternalError, "write failed")
				return
			}

		case frame := <-sess.send:
			if err := conn.Write(ctx, ws.MessageText, frame); err != nil {
				h.logger.Debug().Err(err).Str("client", sess.clientID).Msg("websocket write failed")
				conn.Close(ws.StatusInternalError, "write failed")
				return
			}
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, conn *ws.Conn, sess *session) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ws.CloseStatus(err) == ws.StatusNormalClosure {
				return
			}
			h.logger.Debug().Err(err).Str("client", sess.clientID).Msg("websocket read error")
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.logger.Warn().Err(err).Str("client", sess.clientID).Msg("invalid websocket message")
			continue
		}
		h.route(ctx, sess, env)
	}
}

func (h *Hub) route(ctx context.Context, sess *session, env Envelope) {
	switch env.Type {
	case TypeHeartbeat:
		if err := h.store.TouchOverlayClientSeen(ctx, sess.clientID, time.Now().UTC()); err != nil {
			h.logger.Warn().Err(err).Str("client", sess.clientID).Msg("last seen update failed")
		}

	case TypePlaybackState:
		var msg playbackStateMsg
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			h.logger.Warn().Err(err).Str("client", sess.clientID).Msg("bad playback-state payload")
			return
		}
		if h.dispatcher != nil {
			h.dispatcher.OnPlaybackState(sess.guildID, msg.JobID, msg.State, msg.RemainingMs)
		}

	case TypeStop:
		var msg stopMsg
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &msg); err != nil {
				h.logger.Warn().Err(err).Str("client", sess.clientID).Msg("bad stop payload")
				return
			}
		}
		if h.dispatcher == nil {
			return
		}
		// Older overlays send the sentinel in jobId, newer ones in reason.
		if msg.Reason == "manual-stop" || msg.JobID == "manual-stop" {
			h.dispatcher.OnManualStop(sess.guildID)
			return
		}
		h.dispatcher.OnPlaybackStopped(sess.guildID, msg.JobID, msg.Reason)

	case TypeMemeTrigger:
		var msg memeTriggerMsg
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			h.logger.Warn().Err(err).Str("client", sess.clientID).Msg("bad meme-trigger payload")
			return
		}
		if h.dispatcher != nil {
			h.dispatcher.TriggerMeme(sess.guildID, msg.ItemID)
		}

	case TypeError:
		var msg errorMsg
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &msg); err != nil {
				h.logger.Warn().Err(err).Str("client", sess.clientID).Msg("bad error payload")
				return
			}
		}
		h.logger.Warn().
			Str("guild", sess.guildID).
			Str("client", sess.clientID).
			Str("job", msg.JobID).
			Str("code", msg.Code).
			Str("message", msg.Message).
			Msg("overlay reported playback error")
		if h.dispatcher != nil {
			h.dispatcher.OnPlaybackError(sess.guildID, msg.JobID)
		}

	default:
		h.logger.Warn().Str("type", env.Type).Str("client", sess.clientID).Msg("unknown message type")
	}
}

func (h *Hub) join(sess *session) {
	h.mu.Lock()
	room := h.rooms[sess.guildID]
	if room == nil {
		room = make(map[*session]struct{})
		h.rooms[sess.guildID] = room
	}
	room[sess] = struct{}{}
	h.mu.Unlock()

	telemetry.OverlayConnections.Inc()
	h.bus.Publish(events.EventOverlayConnect, events.Payload{
		"guild_id":  sess.guildID,
		"client_id": sess.clientID,
	})
	h.broadcastPeers(sess.guildID)
}

func (h *Hub) leave(sess *session) {
	h.mu.Lock()
	room := h.rooms[sess.guildID]
	delete(room, sess)
	empty := len(room) == 0
	if empty {
		delete(h.rooms, sess.guildID)
	}
	h.mu.Unlock()

	telemetry.OverlayConnections.Dec()
	h.bus.Publish(events.EventOverlayDisconnect, events.Payload{
		"guild_id":  sess.guildID,
		"client_id": sess.clientID,
	})

	if empty {
		// Nothing can play in an empty room; drop the advisory lease so the
		// next overlay to join dispatches immediately.
		if err := h.store.UpsertGuildBusyUntil(context.Background(), sess.guildID, nil); err != nil {
			h.logger.Warn().Err(err).Str("guild", sess.guildID).Msg("busy lease clear failed")
		}
		return
	}
	h.broadcastPeers(sess.guildID)
}

// RoomSize returns the number of connected sessions for the guild.
func (h *Hub) RoomSize(guildID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[guildID])
}

// Peers lists the room membership, one entry per client id, sorted by label
// then client id.
func (h *Hub) Peers(guildID string) []Peer {
	h.mu.RLock()
	seen := make(map[string]Peer)
	for sess := range h.rooms[guildID] {
		if _, ok := seen[sess.clientID]; !ok {
			seen[sess.clientID] = Peer{ClientID: sess.clientID, Label: sess.label}
		}
	}
	h.mu.RUnlock()

	peers := make([]Peer, 0, len(seen))
	for _, p := range seen {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool {
		if peers[i].Label != peers[j].Label {
			return peers[i].Label < peers[j].Label
		}
		return peers[i].ClientID < peers[j].ClientID
	})
	return peers
}

// SendPlay broadcasts a play event to the guild's room.
func (h *Hub) SendPlay(guildID string, ev PlayEvent) {
	h.broadcast(guildID, TypePlay, ev)
}

// SendStop broadcasts a stop event to the guild's room.
func (h *Hub) SendStop(guildID, jobID, reason string) {
	h.broadcast(guildID, TypeStop, StopEvent{JobID: jobID, Reason: reason})
}

func (h *Hub) broadcastPeers(guildID string) {
	h.broadcast(guildID, TypePeers, PeersEvent{GuildID: guildID, Peers: h.Peers(guildID)})
}

func (h *Hub) broadcast(guildID, msgType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("payload marshal failed")
		return
	}
	frame, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("envelope marshal failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sess := range h.rooms[guildID] {
		select {
		case sess.send <- frame:
		default:
			h.logger.Warn().Str("client", sess.clientID).Msg("send buffer full, dropping message")
		}
	}
}

func writeAuthError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": code})
}
