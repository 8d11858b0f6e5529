// Package auth issues and validates the single bearer token the API
// server accepts on its control endpoints. There is no user model: the
// engine has exactly one operator, authenticated against a secret
// supplied at startup rather than a credentials table, so this package
// carries no registration/session/refresh-token machinery.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenDuration is how long an issued operator token stays
// valid before the holder must request a fresh one.
const AccessTokenDuration = 12 * time.Hour

// ErrInvalidToken is returned for any token that fails signature
// verification, has expired, or carries an unexpected claim shape.
var ErrInvalidToken = fmt.Errorf("auth: invalid token")

// Claims is the operator token's payload.
type Claims struct {
	Subject string `json:"sub"`
	Exp     int64  `json:"exp"`
	Iat     int64  `json:"iat"`
}

// Service signs and verifies operator tokens with an HMAC secret
// supplied from configuration (APIConfig.OperatorToken).
type Service struct {
	secret      []byte
	tokenExpiry time.Duration
}

// New constructs a Service. secret must be non-empty; the operator
// surface refuses to start without one rather than silently running
// unauthenticated.
func New(secret string, tokenExpiry time.Duration) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: operator token secret must not be empty")
	}
	if tokenExpiry <= 0 {
		tokenExpiry = AccessTokenDuration
	}
	return &Service{secret: []byte(secret), tokenExpiry: tokenExpiry}, nil
}

// IssueOperatorToken mints a fresh signed token for the single
// operator identity. Called once at startup; the engine has no login
// endpoint to call it again from, so the operator pastes the logged
// value into their dashboard client for the life of the process.
func (s *Service) IssueOperatorToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": "operator",
		"exp": now.Add(s.tokenExpiry).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate verifies a token's signature and expiry and returns its
// claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	exp, _ := claims["exp"].(float64)
	iat, _ := claims["iat"].(float64)
	if sub != "operator" {
		return nil, ErrInvalidToken
	}
	return &Claims{Subject: sub, Exp: int64(exp), Iat: int64(iat)}, nil
}
