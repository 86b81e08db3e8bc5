package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	cfg := &TokenConfig{Secret: []byte("s3cret"), Issuer: "novel-movie"}

	token, err := GenerateToken("user-1", "ada@example.com", "admin", cfg)
	require.NoError(t, err)

	claims, err := ParseToken(token, cfg)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.WithinDuration(t, time.Now().Add(DefaultExpiration), claims.ExpiresAt.Time, time.Minute)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("user-1", "a@b.c", "user", &TokenConfig{Secret: []byte("one")})
	require.NoError(t, err)

	_, err = ParseToken(token, &TokenConfig{Secret: []byte("two")})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	cfg := &TokenConfig{Secret: []byte("s3cret"), Expiration: -time.Minute}
	// negative expiration falls back to the default, so build an expired token by hand
	claims := Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
	require.NoError(t, err)

	_, err = ParseToken(token, cfg)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateRequiresSecret(t *testing.T) {
	_, err := GenerateToken("u", "e", "user", &TokenConfig{})
	assert.Error(t, err)
	_, err = ParseToken("x.y.z", nil)
	assert.Error(t, err)
}

func TestGenerateSecureKey(t *testing.T) {
	a, err := GenerateSecureKey(32)
	require.NoError(t, err)
	b, err := GenerateSecureKey(32)
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
