// Package auth provides JWT token issuance and password hashing for the
// HTTP surface. Permission semantics beyond authenticated identity are out
// of scope; the engine only ever sees user ids.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Service issues and validates JWT tokens.
type Service struct {
	secret   string
	tokenTTL time.Duration
}

// NewService creates an auth service with the given signing secret and TTL.
func NewService(secret string, tokenTTL time.Duration) *Service {
	return &Service{secret: secret, tokenTTL: tokenTTL}
}

// GenerateToken issues a token for the given user identity.
func (s *Service) GenerateToken(userID, email string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"exp":     now.Add(s.tokenTTL).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// ValidateToken validates a token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Pin the signing method to prevent algorithm confusion.
		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
