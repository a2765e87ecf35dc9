// Package auth issues and verifies the HS256 access tokens carried in the
// access_token metadata of every authenticated call. The user ID travels in
// the standard subject claim.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/filekeeper/internal/common"
)

// Issuer is the iss claim of every token; tokens from anyone else are rejected.
const Issuer = "filekeeper"

// IssueAccessToken signs a token for userID that expires after ttl.
func IssueAccessToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    Issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyAccessToken returns the user a valid token was issued to. Expired
// tokens yield common.ErrTokenExpired; every other failure, including a
// missing subject, yields common.ErrInvalidToken.
func VerifyAccessToken(token string, secret []byte) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", common.ErrTokenExpired
	case err != nil, claims.Subject == "":
		return "", common.ErrInvalidToken
	}
	return claims.Subject, nil
}
