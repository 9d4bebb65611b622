package auth

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier validates HMAC-signed access tokens issued by the auth service and
// extracts the subject user id.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// VerifyToken parses and validates an access token and returns the user id.
func (v *Verifier) VerifyToken(token string) (int, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}

	// Tokens carry the user id either as a numeric user_id claim or in sub.
	if raw, ok := claims["user_id"]; ok {
		if id, ok := asUserID(raw); ok {
			return id, nil
		}
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		if id, err := strconv.Atoi(sub); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, ErrInvalidToken
}

func asUserID(raw any) (int, bool) {
	switch v := raw.(type) {
	case float64:
		if v > 0 {
			return int(v), true
		}
	case string:
		if id, err := strconv.Atoi(v); err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}
