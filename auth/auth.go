// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package auth provides bearer-token helpers for transport handshakes.
package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrUnauthorized is the error for a handshake token that the peer rejects.
// Nothing in this module returns it: WebSocketClientTransport reports a
// rejected handshake as a connection failure carrying the HTTP status.
var ErrUnauthorized = errors.New("unauthorized")

// StaticTokenSource returns a TokenSource for a fixed bearer token. If raw
// parses as a JWT, the token's expiry is taken from its "exp" claim, so
// wrapping the result in [oauth2.ReuseTokenSource] refreshes correctly.
// The JWT signature is not verified; verification is the server's job.
func StaticTokenSource(raw string) oauth2.TokenSource {
	token := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	if parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{}); err == nil {
		if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
			token.Expiry = exp.Time
		}
	}
	return oauth2.StaticTokenSource(token)
}

// A TokenStore persists tokens across process restarts, so a refreshed
// token survives the client that refreshed it.
type TokenStore interface {
	Save(context.Context, *oauth2.Token) error
}

type persistentTokenSource struct {
	wrapped oauth2.TokenSource
	store   TokenStore
	ctx     context.Context
}

// NewPersistentTokenSource returns a TokenSource that saves the token to
// store after every successful Token call. It is useful when wrapping a
// source that refreshes expired tokens. The passed context is used for
// Save calls.
func NewPersistentTokenSource(ctx context.Context, wrapped oauth2.TokenSource, store TokenStore) oauth2.TokenSource {
	return &persistentTokenSource{
		wrapped: wrapped,
		store:   store,
		ctx:     ctx,
	}
}

func (t *persistentTokenSource) Token() (*oauth2.Token, error) {
	token, err := t.wrapped.Token()
	if err != nil {
		return nil, err
	}
	if err := t.store.Save(t.ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}
