package jwttoken

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailscout/pkg/platform/httputil"
)

var jwtService = NewJWTService("test-signing-key")

func unauthorizedMessage(t *testing.T, err error) string {
	t.Helper()
	var he *httputil.Error
	require.True(t, errors.As(err, &he))
	assert.Equal(t, httputil.CodeUnauthorized, he.Code)
	return he.Message
}

func Test_GenerateToken(t *testing.T) {
	token, err := jwtService.GenerateToken("signalhire", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	p, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "signalhire", p.Subject)
	assert.NotEmpty(t, p.TokenID)
}

func Test_GenerateToken_NoExpiry(t *testing.T) {
	token, err := jwtService.GenerateToken("signalhire", 0)
	require.NoError(t, err)
	_, err = jwtService.ValidateToken(token)
	require.NoError(t, err)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	assert.Equal(t, "invalid token", unauthorizedMessage(t, err))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	token, err := NewJWTService("other-key").GenerateToken("signalhire", time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assert.Equal(t, "invalid token", unauthorizedMessage(t, err))
}

func Test_ValidateToken_Expired(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    Issuer,
		Audience:  []string{Audience},
		IssuedAt:  jwt.NewNumericDate(past),
		ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
	}}).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assert.Equal(t, "token has expired", unauthorizedMessage(t, err))
}

func Test_ValidateToken_WrongAudience(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:   Issuer,
		Audience: []string{"someone-else"},
	}}).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assert.Equal(t, "invalid token", unauthorizedMessage(t, err))
}
