// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier checks an ID token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (subject string, err error)
}

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid id token")

// JWKSVerifier verifies RS256 tokens against a JSON Web Key Set.
type JWKSVerifier struct {
	jwks keyfunc.Keyfunc
}

// NewJWKSVerifier fetches and caches keys from jwksURL. Keys refresh in the
// background for the life of ctx.
func NewJWKSVerifier(ctx context.Context, jwksURL string) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}
	return &JWKSVerifier{jwks: jwks}, nil
}

// NewStaticJWKSVerifier verifies against a fixed key set document.
func NewStaticJWKSVerifier(raw json.RawMessage) (*JWKSVerifier, error) {
	jwks, err := keyfunc.NewJWKSetJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}
	return &JWKSVerifier{jwks: jwks}, nil
}

// Verify implements TokenVerifier.
func (v *JWKSVerifier) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	// SECURITY: Pin the algorithm so an HS256 token can't be verified with
	// the public key as an HMAC secret.
	parsed, err := jwt.ParseWithClaims(token, &claims, v.jwks.Keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
