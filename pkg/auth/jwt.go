package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mehdidhammou/ai-connect-four/pkg/uid"
)

const bridgeIssuer = "ai-connect-four-bridge"

// Claims identify a renderer allowed to drive the local session.
type Claims struct {
	Renderer string `json:"renderer"`
	jwt.RegisteredClaims
}

// GenerateBridgeToken signs a token for a renderer. ttl <= 0 means no expiry.
func GenerateBridgeToken(secret, renderer string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("bridge secret is empty")
	}

	now := time.Now()
	claims := &Claims{
		Renderer: renderer,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uid.GenerateTokenID(),
			Issuer:   bridgeIssuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateBridgeToken validates a renderer token and returns the claims
func ValidateBridgeToken(secret, tokenString string) (*Claims, error) {
	if secret == "" {
		return nil, errors.New("bridge secret is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(bridgeIssuer))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
