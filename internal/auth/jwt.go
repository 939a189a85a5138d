/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ProducerClaims identify an ingest producer and the guilds it may submit to.
// An empty guild list grants access to every guild.
type ProducerClaims struct {
	ProducerID string   `json:"pid"`
	Guilds     []string `json:"guilds,omitempty"`
	jwt.RegisteredClaims
}

// AllowsGuild reports whether the producer may act on the guild.
func (c *ProducerClaims) AllowsGuild(guildID string) bool {
	if len(c.Guilds) == 0 {
		return true
	}
	for _, g := range c.Guilds {
		if g == guildID {
			return true
		}
	}
	return false
}

// Issue creates a producer JWT token string.
func Issue(secret []byte, claims ProducerClaims, ttl time.Duration) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		Subject:   claims.ProducerID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Parse validates a producer token string.
func Parse(secret []byte, token string) (*ProducerClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &ProducerClaims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*ProducerClaims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}
