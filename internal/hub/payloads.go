/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package hub

import (
	"encoding/json"

	"github.com/friendsincode/skald_overlay/internal/richtext"
)

// ProtocolVersion is the semver of the overlay wire protocol.
const ProtocolVersion = "1.0.0"

// Message types on the overlay socket.
const (
	TypePlay          = "overlay:play"
	TypeStop          = "overlay:stop"
	TypePeers         = "overlay:peers"
	TypeHeartbeat     = "overlay:heartbeat"
	TypePlaybackState = "overlay:playback-state"
	TypeMemeTrigger   = "overlay:meme-trigger"
	TypeError         = "overlay:error"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PlayEvent instructs overlays to start rendering a job.
type PlayEvent struct {
	JobID          string      `json:"jobId"`
	GuildID        string      `json:"guildId"`
	DurationSec    int         `json:"durationSec"`
	StartOffsetSec int         `json:"startOffsetSec,omitempty"`
	Priority       int         `json:"priority,omitempty"`
	Media          *PlayMedia  `json:"media,omitempty"`
	Text           *PlayText   `json:"text,omitempty"`
	Author         *PlayAuthor `json:"author,omitempty"`
}

// PlayMedia describes the asset to render, with a streamable URL.
type PlayMedia struct {
	AssetID    string `json:"assetId"`
	URL        string `json:"url"`
	Kind       string `json:"kind"`
	Mime       string `json:"mime,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	IsVertical bool   `json:"isVertical,omitempty"`
}

// PlayText carries the caption or structured card shown with the job.
type PlayText struct {
	Body  string              `json:"body,omitempty"`
	Tweet *richtext.TweetCard `json:"tweet,omitempty"`
}

// PlayAuthor attributes the job to its submitter.
type PlayAuthor struct {
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

// StopEvent tells overlays to tear down the named job, or everything when the
// job id is empty.
type StopEvent struct {
	JobID  string `json:"jobId,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Peer is one connected overlay as seen by the others.
type Peer struct {
	ClientID string `json:"clientId"`
	Label    string `json:"label"`
}

// PeersEvent is broadcast whenever room membership changes.
type PeersEvent struct {
	GuildID string `json:"guildId"`
	Peers   []Peer `json:"peers"`
}

// playbackStateMsg is the overlay's periodic progress report.
type playbackStateMsg struct {
	JobID       string `json:"jobId"`
	State       string `json:"state"`
	RemainingMs *int64 `json:"remainingMs,omitempty"`
}

// stopMsg is the overlay-initiated stop. Reason "manual-stop" marks an
// operator action rather than natural playback end.
type stopMsg struct {
	JobID  string `json:"jobId,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// memeTriggerMsg asks the dispatcher to enqueue a meme board item.
type memeTriggerMsg struct {
	ItemID string `json:"itemId"`
}

// errorMsg reports a client-side playback failure.
type errorMsg struct {
	JobID   string `json:"jobId,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
