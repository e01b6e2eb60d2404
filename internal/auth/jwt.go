// Package auth protects the dialer's admin API with short-lived JWT access
// tokens. The dialer is single-tenant: there are operators, nothing else.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	jwt.RegisteredClaims

	Operator string `json:"operator"`
}

type Manager struct {
	secret   []byte
	issuer   string
	tokenTTL time.Duration
}

func NewManager(secret, issuer string, tokenTTL time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 15 * time.Minute
	}
	return &Manager{secret: []byte(secret), issuer: issuer, tokenTTL: tokenTTL}, nil
}

// Issue mints an operator token.
func (m *Manager) Issue(now time.Time, operator string) (string, error) {
	if operator == "" {
		return "", errors.New("auth: operator is required")
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
			ID:        uuid.NewString(),
		},
		Operator: operator,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

// Verify parses and validates an operator token.
func (m *Manager) Verify(tokenString string, now time.Time) (Claims, error) {
	var claims Claims

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second), // clock skew tolerance
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}

	if claims.Operator == "" {
		return Claims{}, errors.New("auth: operator missing")
	}
	return claims, nil
}
