// Package security provides JWT token utilities
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	TokenTypeViewer = "viewer"
	TokenTypeAdmin  = "admin_auth"

	RoleAdmin = "admin"
)

var ErrInvalidToken = errors.New("invalid token")

// ValidateJWT validates an HS256 token and returns the claims. Tokens
// signed with any other algorithm are rejected.
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	if tokenString == "" || jwtSecret == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// SubjectFromClaims returns the "sub" claim, or "" when it is missing.
func SubjectFromClaims(claims jwt.MapClaims) string {
	sub, _ := claims["sub"].(string)
	return sub
}

// RoleFromClaims returns the "role" claim, or "" when it is missing.
func RoleFromClaims(claims jwt.MapClaims) string {
	role, _ := claims["role"].(string)
	return role
}

// GenerateViewerToken creates a viewer token whose subject is the user id.
func GenerateViewerToken(userID, jwtSecret string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("viewer token requires a user id")
	}
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  userID,
		"type": TokenTypeViewer,
		"jti":  GenerateULID(),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return sign(claims, jwtSecret)
}

// GenerateAdminToken creates an admin token.
func GenerateAdminToken(jwtSecret string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"role": RoleAdmin,
		"type": TokenTypeAdmin,
		"jti":  GenerateULID(),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return sign(claims, jwtSecret)
}

func sign(claims jwt.MapClaims, jwtSecret string) (string, error) {
	if jwtSecret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}
