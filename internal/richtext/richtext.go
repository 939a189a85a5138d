/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package richtext encodes structured overlay payloads (tweet cards, media
// hints) into a single opaque text column. Plain strings pass through
// untouched, so producers that know nothing about the format keep working.
package richtext

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// sentinel marks an encoded payload. Anything else decodes as plain text.
const sentinel = "ovl1:"

// Kind tags the payload variant.
type Kind string

const (
	KindPlain Kind = "plain"
	KindTweet Kind = "tweet"
	KindMedia Kind = "media"
)

// TweetCard is the structured card forwarded verbatim to overlays.
type TweetCard struct {
	AuthorName   string `json:"authorName,omitempty"`
	AuthorHandle string `json:"authorHandle,omitempty"`
	AuthorImage  string `json:"authorImage,omitempty"`
	Body         string `json:"body,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	LikeCount    int    `json:"likeCount,omitempty"`
	RetweetCount int    `json:"retweetCount,omitempty"`
}

// Payload is the tagged rich text variant.
type Payload struct {
	Kind  Kind       `json:"kind"`
	Text  string     `json:"text,omitempty"`
	Tweet *TweetCard `json:"tweet,omitempty"`

	// StartOffsetSec carries a legacy media start offset for non-image
	// assets; the dispatcher adopts it when the job itself has none.
	StartOffsetSec int `json:"startOffsetSec,omitempty"`
}

// Encode serializes the payload into its sentinel-prefixed text form. Plain
// payloads without extras encode as their bare text so round-trips stay
// human-readable.
func Encode(p Payload) (string, error) {
	if p.Kind == "" {
		p.Kind = KindPlain
	}
	if p.Kind == KindPlain && p.Tweet == nil && p.StartOffsetSec == 0 {
		return p.Text, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return sentinel + base64.StdEncoding.EncodeToString(raw), nil
}

// Decode parses a text column value. Strings without the sentinel prefix, and
// malformed encoded blobs, decode as plain text.
func Decode(s string) Payload {
	if !strings.HasPrefix(s, sentinel) {
		return Payload{Kind: KindPlain, Text: s}
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, sentinel))
	if err != nil {
		return Payload{Kind: KindPlain, Text: s}
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{Kind: KindPlain, Text: s}
	}
	if p.Kind == "" {
		p.Kind = KindPlain
	}
	return p
}

// DisplayText returns the text an overlay should render for the payload.
func (p Payload) DisplayText() string {
	if p.Kind == KindTweet && p.Tweet != nil {
		return p.Tweet.Body
	}
	return p.Text
}
