package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long an issued session token stays valid.
const TokenTTL = 12 * time.Hour

// ErrInvalidToken covers every verification failure: malformed or tampered
// tokens, expired tokens, and sessions strict verification no longer trusts.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the signed token payload. The registered claims carry the grant
// id as jti and the tenant as issuer; App duplicates the tenant inside the
// custom payload so decoded claims are self-contained.
type Claims struct {
	UserID string `json:"id"`
	Login  string `json:"login,omitempty"`
	Email  string `json:"email,omitempty"`
	App    string `json:"app"`
	jwt.RegisteredClaims
}

// TokenID returns the grant id the token was issued under.
func (c Claims) TokenID() string {
	return c.RegisteredClaims.ID
}

// GenerateToken signs an HS256 token for the given identity and grant.
func GenerateToken(secret []byte, userID, login, email, tenant, tokenID string, ttl time.Duration) (string, error) {
	const op = "auth.GenerateToken"

	now := time.Now()
	claims := Claims{
		UserID: userID,
		Login:  login,
		Email:  email,
		App:    tenant,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tenant,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// ParseToken checks the signature and the registered expiry claim and returns
// the decoded claims. Any structural, signature or expiry failure comes back
// as ErrInvalidToken.
func ParseToken(secret []byte, tokenStr string) (Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	return *claims, nil
}
