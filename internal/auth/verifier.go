package auth

import (
	"context"
	"errors"
	"fmt"

	"user_service/internal/storage"
)

// Mode selects the verification strategy for one request.
type Mode string

const (
	ModeLight  Mode = "light"
	ModeStrict Mode = "strict"
)

// ParseMode maps an inbound signal to a Mode. Light verification is an
// explicit opt-in; everything else, including garbage, means strict.
func ParseMode(s string) Mode {
	if s == string(ModeLight) {
		return ModeLight
	}
	return ModeStrict
}

// Verifier turns a bearer token into validated claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// LightVerifier checks signature and expiry only. It never touches storage,
// so it cannot detect server-side revocation.
type LightVerifier struct {
	secret []byte
}

func NewLightVerifier(secret []byte) *LightVerifier {
	return &LightVerifier{secret: secret}
}

func (v *LightVerifier) Verify(ctx context.Context, token string) (Claims, error) {
	return ParseToken(v.secret, token)
}

// StrictVerifier composes LightVerifier with a storage round trip: the
// decoded grant id must still be present on the user's record. A grant
// removed from the record invalidates the token here while light
// verification keeps accepting it until expiry.
type StrictVerifier struct {
	light *LightVerifier
	store storage.Storage
}

func NewStrictVerifier(secret []byte, store storage.Storage) *StrictVerifier {
	return &StrictVerifier{
		light: NewLightVerifier(secret),
		store: store,
	}
}

func (v *StrictVerifier) Verify(ctx context.Context, token string) (Claims, error) {
	const op = "auth.StrictVerifier.Verify"

	claims, err := v.light.Verify(ctx, token)
	if err != nil {
		return Claims{}, err
	}

	rec, err := v.store.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Claims{}, ErrInvalidToken
		}
		return Claims{}, fmt.Errorf("%s: %w", op, err)
	}

	if !rec.HasToken(claims.TokenID()) {
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}

// ChooseVerifier picks the strategy for the requested mode; strict is the
// safe default.
func ChooseVerifier(mode Mode, secret []byte, store storage.Storage) Verifier {
	if mode == ModeLight {
		return NewLightVerifier(secret)
	}
	return NewStrictVerifier(secret, store)
}
