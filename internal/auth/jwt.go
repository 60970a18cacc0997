// Package auth resolves the calling identity from bearer tokens minted by the
// external auth collaborator.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

// ErrUnauthenticated is returned when no valid identity accompanies a request.
var ErrUnauthenticated = errors.New("unauthenticated")

type Claims struct {
	Role string `json:"role"`

	jwt.RegisteredClaims
}

type JWT struct {
	Secret   []byte
	TokenTTL time.Duration
}

// Sign mints a token for id. Only the CLI uses it; production tokens come
// from the auth service sharing the secret.
func (j JWT) Sign(id model.Identity) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(j.TokenTTL)
	claims := Claims{
		Role: id.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Username,
			ID:        uuid.NewString(),
			Issuer:    "eventhub",
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, expiresAt, nil
}

// Verify parses token and returns the identity it carries.
func (j JWT) Verify(token string) (model.Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return j.Secret, nil
	})
	if err != nil {
		return model.Identity{}, err
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || c.Subject == "" {
		return model.Identity{}, errors.New("invalid token")
	}
	role, ok := model.ParseRole(c.Role)
	if !ok {
		return model.Identity{}, errors.New("invalid role claim")
	}
	return model.Identity{Username: c.Subject, Role: role}, nil
}
