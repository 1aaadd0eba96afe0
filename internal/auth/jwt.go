// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// DefaultIdentityClaims are the claims searched, in order, for the user id.
var DefaultIdentityClaims = []string{"id", "sub"}

var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// JWTVerifier verifies HMAC-signed JWTs.
type JWTVerifier struct {
	secret []byte
	claims []string
	parser *jwt.Parser
}

type jwtOptions struct {
	leeway time.Duration
	issuer string
	claims []string
}

// JWTOption configures a JWTVerifier.
type JWTOption func(*jwtOptions)

// WithLeeway tolerates clock skew when checking exp, nbf and iat.
func WithLeeway(d time.Duration) JWTOption {
	return func(o *jwtOptions) {
		o.leeway = d
	}
}

// WithIssuer requires the iss claim to equal issuer.
func WithIssuer(issuer string) JWTOption {
	return func(o *jwtOptions) {
		o.issuer = issuer
	}
}

// WithIdentityClaims overrides the claims searched for the user id.
func WithIdentityClaims(names ...string) JWTOption {
	return func(o *jwtOptions) {
		if len(names) > 0 {
			o.claims = names
		}
	}
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
func NewJWTVerifier(secret []byte, opts ...JWTOption) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, oops.Code(CodeVerifierUnavailable).Errorf("jwt secret is required")
	}
	o := jwtOptions{claims: DefaultIdentityClaims}
	for _, opt := range opts {
		opt(&o)
	}

	parserOpts := []jwt.ParserOption{jwt.WithValidMethods(hmacMethods)}
	if o.leeway > 0 {
		parserOpts = append(parserOpts, jwt.WithLeeway(o.leeway))
	}
	if o.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(o.issuer))
	}

	return &JWTVerifier{
		secret: append([]byte(nil), secret...),
		claims: o.claims,
		parser: jwt.NewParser(parserOpts...),
	}, nil
}

// Verify parses and validates credential and returns its user id.
// A leading "Bearer " is tolerated.
func (v *JWTVerifier) Verify(ctx context.Context, credential string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", ErrVerifierUnavailable(err)
	}
	credential = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(credential), "Bearer "))
	if credential == "" {
		return "", ErrMissingCredential()
	}

	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(credential, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", ErrInvalidCredential(parseFailureReason(err), err)
	}

	for _, name := range v.claims {
		if id, ok := claims[name].(string); ok && id != "" {
			return id, nil
		}
	}
	return "", ErrInvalidCredential("no identity claim", nil)
}

func parseFailureReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "not valid yet"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "bad signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unverifiable"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "wrong issuer"
	default:
		return "rejected"
	}
}

// IssueToken signs an HS256 token for userID valid for ttl. It carries both
// the id and sub claims. Used by the token command and tests.
func IssueToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"id":  userID,
		"sub": userID,
		"iat": now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", oops.With("user_id", userID).Wrapf(err, "sign token")
	}
	return signed, nil
}
