// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

func TestStaticTokenSourceJWTExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "client-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatal(err)
	}

	token, err := StaticTokenSource(raw).Token()
	if err != nil {
		t.Fatal(err)
	}
	if token.AccessToken != raw {
		t.Errorf("AccessToken = %q, want the raw token", token.AccessToken)
	}
	if !token.Expiry.Equal(exp) {
		t.Errorf("Expiry = %v, want %v", token.Expiry, exp)
	}
}

func TestStaticTokenSourceOpaque(t *testing.T) {
	token, err := StaticTokenSource("not-a-jwt").Token()
	if err != nil {
		t.Fatal(err)
	}
	if !token.Expiry.IsZero() {
		t.Errorf("Expiry = %v, want zero for an opaque token", token.Expiry)
	}
}

type memStore struct {
	saved []*oauth2.Token
}

func (s *memStore) Save(_ context.Context, tok *oauth2.Token) error {
	s.saved = append(s.saved, tok)
	return nil
}

func TestPersistentTokenSource(t *testing.T) {
	store := &memStore{}
	src := NewPersistentTokenSource(context.Background(), StaticTokenSource("tok"), store)
	if _, err := src.Token(); err != nil {
		t.Fatal(err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved %d tokens, want 1", len(store.saved))
	}
	if store.saved[0].AccessToken != "tok" {
		t.Errorf("saved token = %q, want %q", store.saved[0].AccessToken, "tok")
	}
}
