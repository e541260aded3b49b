// Package identity wraps a single user record for the duration of one
// operation: it normalizes raw input into canonical form, owns password
// hashing and verification, and mutates the token lifecycle. The store
// keeps the persisted truth; a Model is a transient view over exactly one
// record.
package identity

import (
	"fmt"
	"time"

	"user_service/internal/auth"
	"user_service/internal/models"

	"github.com/gofrs/uuid"
)

// RawInput is a not-yet-persisted creation payload. Password is plaintext.
type RawInput struct {
	Login    string
	Email    string
	Password string
	Name     string
	Surname  string
}

// Model binds one UserRecord with a mandatory construction mode. The mode is
// never inferred: treating a stored hash as plaintext double-hashes it, and
// treating plaintext as a hash lets it leak into storage.
type Model struct {
	rec       models.UserRecord
	tenant    string
	hashed    bool   // construction mode: true when the password is already a hash
	plaintext string // raw mode only

	hash string // memoized; computed at most once
}

// FromRawInput builds a model around a creation payload. The password will be
// hashed lazily, exactly once, on first resolution.
func FromRawInput(in RawInput, tenant string) *Model {
	return &Model{
		rec: models.UserRecord{
			Tenant:     tenant,
			Login:      in.Login,
			Email:      in.Email,
			Name:       in.Name,
			Surname:    in.Surname,
			RecordKind: models.RecordKindUser,
		},
		tenant:    tenant,
		plaintext: in.Password,
	}
}

// FromStoredRecord builds a model around a record loaded from the store. The
// password field is taken to be a hash and passes through unchanged.
func FromStoredRecord(rec models.UserRecord) *Model {
	return &Model{
		rec:    rec.Clone(),
		tenant: rec.Tenant,
		hashed: true,
		hash:   rec.PasswordHash,
	}
}

// Tenant returns the partition the model belongs to.
func (m *Model) Tenant() string {
	return m.tenant
}

// ResolvedID returns the record id, assigning a fresh opaque one on first
// access if the record has none. Assignment happens exactly once per model.
func (m *Model) ResolvedID() (string, error) {
	const op = "identity.ResolvedID"

	if m.rec.ID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		m.rec.ID = id.String()
	}
	return m.rec.ID, nil
}

// ResolvedPassword returns the stored hash in stored mode; in raw mode it
// computes the bcrypt hash of the plaintext on first access and caches it.
func (m *Model) ResolvedPassword() (string, error) {
	const op = "identity.ResolvedPassword"

	if m.hashed {
		return m.hash, nil
	}
	if m.hash == "" {
		hash, err := auth.HashPassword(m.plaintext)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		m.hash = hash
	}
	return m.hash, nil
}

// VerifyPassword compares a candidate against the stored hash. A raw-mode
// model has nothing to verify against and always reports true; it only ever
// exists inside creation flows.
func (m *Model) VerifyPassword(candidate string) bool {
	if !m.hashed {
		return true
	}
	return auth.CheckPasswordHash(m.hash, candidate)
}

// IssueToken appends a fresh 12-hour grant to the record and returns the
// signed token for it. Grants that have already expired are dropped first.
// The mutation is in-memory only; the caller must persist the record for the
// grant to survive.
func (m *Model) IssueToken(secret []byte) (string, error) {
	const op = "identity.IssueToken"

	id, err := m.ResolvedID()
	if err != nil {
		return "", err
	}

	tokenID, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	signed, err := auth.GenerateToken(secret, id, m.rec.Login, m.rec.Email, m.tenant, tokenID.String(), auth.TokenTTL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()
	m.rec.Tokens = pruneExpired(m.rec.Tokens, now)
	m.rec.Tokens = append(m.rec.Tokens, models.TokenGrant{
		TokenID:   tokenID.String(),
		ExpiresAt: now.Add(auth.TokenTTL).UnixMilli(),
	})

	return signed, nil
}

// Record materializes the full canonical record, forcing the lazy id and
// password resolution. The result is what both create and update writes
// persist.
func (m *Model) Record() (models.UserRecord, error) {
	id, err := m.ResolvedID()
	if err != nil {
		return models.UserRecord{}, err
	}
	hash, err := m.ResolvedPassword()
	if err != nil {
		return models.UserRecord{}, err
	}

	rec := m.rec.Clone()
	rec.ID = id
	rec.Tenant = m.tenant
	rec.PasswordHash = hash
	if rec.RecordKind == "" {
		rec.RecordKind = models.RecordKindUser
	}
	return rec, nil
}

// PublicView returns the externally visible fields only; the password hash
// and the password history never leave the model through here.
func (m *Model) PublicView() (models.PublicProfile, error) {
	rec, err := m.Record()
	if err != nil {
		return models.PublicProfile{}, err
	}
	return models.PublicProfile{
		Tenant:     rec.Tenant,
		ID:         rec.ID,
		Login:      rec.Login,
		Email:      rec.Email,
		Name:       rec.Name,
		Surname:    rec.Surname,
		RecordKind: rec.RecordKind,
		Tokens:     rec.Tokens,
	}, nil
}

func pruneExpired(grants []models.TokenGrant, now time.Time) []models.TokenGrant {
	cutoff := now.UnixMilli()
	kept := grants[:0]
	for _, g := range grants {
		if g.ExpiresAt > cutoff {
			kept = append(kept, g)
		}
	}
	return kept
}
