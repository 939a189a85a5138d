/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package media builds playback URLs and streams asset files with HTTP range
// support.
package media

import (
	"fmt"
	"strings"
)

// URLBuilder renders absolute media URLs for overlay clients.
type URLBuilder struct {
	base string
}

// NewURLBuilder creates a builder rooted at the public API base URL.
func NewURLBuilder(base string) *URLBuilder {
	return &URLBuilder{base: strings.TrimRight(base, "/")}
}

// PlaybackURL returns the streaming URL for an asset. A non-zero start offset
// is carried both as a query parameter for the player and as a media fragment
// for plain <video> elements.
func (b *URLBuilder) PlaybackURL(assetID string, startOffsetSec int) string {
	url := fmt.Sprintf("%s/overlay/media/%s", b.base, assetID)
	if startOffsetSec > 0 {
		url = fmt.Sprintf("%s?startOffsetSec=%d#t=%d", url, startOffsetSec, startOffsetSec)
	}
	return url
}
