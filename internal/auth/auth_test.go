package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifyTokenUserIDClaim(t *testing.T) {
	v := NewVerifier("secret")
	token := signedToken(t, "secret", jwt.MapClaims{"user_id": float64(42)})

	userID, err := v.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, 42, userID)
}

func TestVerifyTokenStringUserID(t *testing.T) {
	v := NewVerifier("secret")
	token := signedToken(t, "secret", jwt.MapClaims{"user_id": "7"})

	userID, err := v.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, 7, userID)
}

func TestVerifyTokenSubjectFallback(t *testing.T) {
	v := NewVerifier("secret")
	token := signedToken(t, "secret", jwt.MapClaims{"sub": "13"})

	userID, err := v.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, 13, userID)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	v := NewVerifier("secret")
	token := signedToken(t, "other-secret", jwt.MapClaims{"user_id": float64(42)})

	_, err := v.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	v := NewVerifier("secret")
	token := signedToken(t, "secret", jwt.MapClaims{
		"user_id": float64(42),
		"exp":     time.Now().Add(-time.Minute).Unix(),
	})

	_, err := v.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsMissingUserID(t *testing.T) {
	v := NewVerifier("secret")
	token := signedToken(t, "secret", jwt.MapClaims{"name": "nobody"})

	_, err := v.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	v := NewVerifier("secret")

	_, err := v.VerifyToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
