// Package auth verifies dashboard logins and issues short-lived signed
// tokens. Passwords are checked with bcrypt against the stored hash; tokens
// are HMAC-SHA256 JWTs carrying the username and an absolute expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"spendview/internal/core"
	"spendview/internal/storage"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the lookup the gate needs from the storage layer.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*storage.User, error)
}

type Authenticator struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
}

func NewAuthenticator(users UserStore, secret []byte, ttl time.Duration) *Authenticator {
	return &Authenticator{users: users, secret: secret, ttl: ttl}
}

// Authenticate checks the username/password pair and returns a signed token
// with its expiry. An absent user and a wrong password are indistinguishable
// to the caller; storage failures come back as ErrBackendUnavailable with
// the detail kept in the log only.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (string, time.Time, error) {
	user, err := a.users.GetUserByUsername(ctx, username)
	if errors.Is(err, core.ErrNotFound) {
		return "", time.Time{}, core.ErrInvalidCredentials
	}
	if err != nil {
		slog.ErrorContext(ctx, "User lookup failed", "username", username, "error", err)
		return "", time.Time{}, core.ErrBackendUnavailable
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, core.ErrInvalidCredentials
	}

	now := time.Now()
	expiresAt := now.Add(a.ttl)
	claims := jwt.MapClaims{
		"sub": user.Username,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		slog.ErrorContext(ctx, "Token signing failed", "username", username, "error", err)
		return "", time.Time{}, core.ErrBackendUnavailable
	}

	slog.InfoContext(ctx, "Login succeeded", "username", username, "expires_at", expiresAt)
	return token, expiresAt, nil
}

// Verify parses and validates a token, returning the username it carries.
// Expired, malformed, or foreign-signed tokens are all invalid.
func (a *Authenticator) Verify(tokenString string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return "", core.ErrInvalidCredentials
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", core.ErrInvalidCredentials
	}
	return sub, nil
}

// HashPassword produces a bcrypt hash for user provisioning.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
