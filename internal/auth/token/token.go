// Package token signs and verifies the HS256 access and refresh tokens.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var ErrInvalid = errors.New("token invalid")

// Subject is what a token says about its user.
type Subject struct {
	UserID    uuid.UUID
	Role      string
	ProfileID *uuid.UUID
}

// Issuer holds the two secrets; access and refresh tokens never share one.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// Pair is a freshly issued access and refresh token.
type Pair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

func (i *Issuer) Issue(sub Subject) (Pair, error) {
	access, err := i.sign(sub, TypeAccess, i.accessTTL, i.accessSecret)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.sign(sub, TypeRefresh, i.refreshTTL, i.refreshSecret)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(i.accessTTL.Seconds())}, nil
}

func (i *Issuer) sign(sub Subject, tokenType string, ttl time.Duration, secret []byte) (string, error) {
	now := i.now()
	claims := jwt.MapClaims{
		"sub":  sub.UserID.String(),
		"type": tokenType,
		"role": sub.Role,
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
	}
	if sub.ProfileID != nil {
		claims["profile_id"] = sub.ProfileID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseRefresh verifies a refresh token and returns its user id. Role and
// profile are re-read from the database by the caller.
func (i *Issuer) ParseRefresh(raw string) (uuid.UUID, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return i.refreshSecret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return uuid.Nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalid
	}
	if tokenType, _ := claims["type"].(string); tokenType != TypeRefresh {
		return uuid.Nil, ErrInvalid
	}
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrInvalid
	}
	return id, nil
}

func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }
