// Package auth issues and validates bearer tokens and hashes passwords.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"postflow/internal/model"
)

var (
	ErrTokenMissing = errors.New("auth: token missing")
	ErrTokenInvalid = errors.New("auth: token invalid")
	ErrTokenExpired = errors.New("auth: token expired")
)

// Claims is the payload of an access token.
type Claims struct {
	UserID   string     `json:"userId"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
	Approved bool       `json:"approved"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token holder is an admin.
func (c *Claims) IsAdmin() bool { return c.Role == model.RoleAdmin }

// TokenManager signs HS256 access tokens with a shared secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for u.
func (m *TokenManager) Issue(u *model.User) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:   u.ID,
		Email:    u.Email,
		Role:     u.Role,
		Approved: u.Approved,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Parse validates raw and returns its claims. Errors are one of ErrTokenMissing,
// ErrTokenExpired or ErrTokenInvalid.
func (m *TokenManager) Parse(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrTokenMissing
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// RandomToken returns 32 random bytes hex encoded, used for email
// verification and password reset links.
func RandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: random token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
