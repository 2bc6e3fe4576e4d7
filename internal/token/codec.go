// Package token signs and verifies bearer session tokens.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"task-server/internal/apperr"
)

// Claims is the verified content of a session token.
type Claims struct {
	SubjectID string
	IssuedAt  time.Time
}

// Codec is a stateless signer/verifier. The secret and TTL are fixed at
// construction and never change afterwards.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	return &Codec{secret: []byte(secret), ttl: ttl}
}

// Issue produces a signed token for the subject, valid for the configured
// TTL. The jti claim keeps tokens issued within the same second distinct, so
// two logins never share a revocation handle.
func (c *Codec) Issue(subjectID string) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subjectID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		ID:        uuid.NewString(),
	})

	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded claims. Any
// failure surfaces as apperr.ErrInvalidToken.
func (c *Codec) Verify(tokenString string) (Claims, error) {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", apperr.ErrInvalidToken, err)
	}
	if !tok.Valid || claims.Subject == "" || claims.IssuedAt == nil {
		return Claims{}, apperr.ErrInvalidToken
	}

	return Claims{
		SubjectID: claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
	}, nil
}
