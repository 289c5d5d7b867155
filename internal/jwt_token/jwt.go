// Package jwttoken issues and checks the HS256 bearer tokens that upstream
// enrichment services present on webhook deliveries.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"mailscout/internal/platform/middleware"
	"mailscout/pkg/platform/httputil"
)

// Issuer and audience stamped on every token.
const (
	Issuer   = "mailscout"
	Audience = "mailscout-webhook"
)

// Claims represents the JWT claims of a webhook token.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTService handles JWT creation and validation
type JWTService struct {
	signingKey []byte
}

func NewJWTService(signingKey string) *JWTService {
	return &JWTService{signingKey: []byte(signingKey)}
}

// GenerateToken signs a token for subject. A non-positive expiresIn issues a
// token without expiry.
func (s *JWTService) GenerateToken(subject string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   Issuer,
			Audience: []string{Audience},
			ID:       uuid.NewString(),
		},
	}
	if expiresIn > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(expiresIn))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// ValidateToken checks signature, issuer, audience and expiry.
func (s *JWTService) ValidateToken(tokenString string) (*middleware.Principal, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, httputil.Wrap(err, httputil.CodeUnauthorized, "token has expired")
		}
		return nil, httputil.Wrap(err, httputil.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, httputil.NewError(httputil.CodeUnauthorized, "invalid token claims")
	}
	return &middleware.Principal{Subject: claims.Subject, TokenID: claims.ID}, nil
}
