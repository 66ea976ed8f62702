package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const adminSubject = "admin"

type adminClaims struct {
	jwt.RegisteredClaims
}

// GenerateAdminToken creates a signed JWT granting access to the admin API.
func GenerateAdminToken(secret string, ttl time.Duration) (string, error) {
	claims := &adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminSubject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseAdminToken validates the token and its admin subject.
func ParseAdminToken(secret, tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &adminClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}

	claims, ok := token.Claims.(*adminClaims)
	if !ok || !token.Valid || claims.Subject != adminSubject {
		return jwt.ErrTokenInvalidClaims
	}

	return nil
}
