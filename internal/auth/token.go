package auth

import (
	"fmt"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rookgm/storefront/internal/models"
	"time"
)

// lifetime of cart session
const tokenTTL = 30 * 24 * time.Hour

// sessionClaims is claims of cart session token
type sessionClaims struct {
	jwt.RegisteredClaims
	Session string `json:"sid"`
}

// AuthToken signs and verifies cart session tokens with HS256
type AuthToken struct {
	key []byte
	ttl time.Duration
}

// NewAuthToken creates new AuthToken instance
func NewAuthToken(key []byte) *AuthToken {
	return &AuthToken{
		key: key,
		ttl: tokenTTL,
	}
}

// CreateToken creates signed token for cart session
func (at *AuthToken) CreateToken(session string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(at.ttl)),
		},
		Session: session,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(at.key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrTokenCreation, err)
	}
	return token, nil
}

// VerifyToken checks token signature and expiry and returns its payload
func (at *AuthToken) VerifyToken(tokenString string) (*models.TokenPayload, error) {
	claims := &sessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return at.key, nil
	})
	if err != nil || !token.Valid || claims.Session == "" {
		return nil, models.ErrInvalidToken
	}

	return &models.TokenPayload{Session: claims.Session}, nil
}
