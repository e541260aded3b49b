package storage

import (
	"context"
	"errors"

	"user_service/internal/models"
)

var (
	// ErrNotFound means no record matched within the store's tenant.
	ErrNotFound = errors.New("record not found")
	// ErrConflict means create would violate login/email uniqueness.
	ErrConflict = errors.New("record already exists")
	// ErrUnavailable wraps persistence faults (timeouts, connectivity).
	// It is never folded into ErrNotFound; retrying is the caller's policy.
	ErrUnavailable = errors.New("storage unavailable")
)

// Query selects a record by one of its primary fields. FindByPrimaryFields
// consults them in strict priority order: ID, then Email, then Login.
type Query struct {
	ID    string
	Login string
	Email string
}

// Storage is the tenant-scoped record store capability. Both backends must be
// indistinguishable through this interface: same uniqueness enforcement, same
// NotFound/Conflict conditions. The interface is safe for concurrent use.
type Storage interface {
	FindByID(ctx context.Context, id string) (models.UserRecord, error)
	FindByLogin(ctx context.Context, login string) (models.UserRecord, error)
	FindByEmail(ctx context.Context, email string) (models.UserRecord, error)

	// FindByPrimaryFields returns the record matched by the first populated
	// query field (id, email, login). An empty query yields ErrNotFound.
	FindByPrimaryFields(ctx context.Context, q Query) (models.UserRecord, error)

	// Exists reports whether FindByPrimaryFields would succeed for q.
	Exists(ctx context.Context, q Query) (bool, error)

	// Create persists a new record. Returns ErrConflict if the login or the
	// email is already taken within the tenant; nothing is written then.
	Create(ctx context.Context, rec models.UserRecord) (models.UserRecord, error)

	// Update merges the populated fields of rec into the stored record.
	// Tenant and ID never change. Uniqueness is not re-checked; callers must
	// not pass protected fields they have not validated.
	Update(ctx context.Context, id string, rec models.UserRecord) (models.UserRecord, error)

	// Delete removes the record if present. The result is true regardless of
	// whether a record existed.
	Delete(ctx context.Context, id string) (bool, error)

	// TenantID returns the partition this store instance is scoped to.
	TenantID() string
}

// mergeRecord applies the update semantics shared by both backends: non-empty
// scalar fields replace stored ones, non-nil slices replace stored slices
// (an empty non-nil slice clears), and tenant/id are left untouched.
func mergeRecord(stored models.UserRecord, patch models.UserRecord) models.UserRecord {
	out := stored.Clone()
	if patch.Login != "" {
		out.Login = patch.Login
	}
	if patch.Email != "" {
		out.Email = patch.Email
	}
	if patch.PasswordHash != "" {
		out.PasswordHash = patch.PasswordHash
	}
	if patch.Name != "" {
		out.Name = patch.Name
	}
	if patch.Surname != "" {
		out.Surname = patch.Surname
	}
	if patch.RecordKind != "" {
		out.RecordKind = patch.RecordKind
	}
	if patch.Tokens != nil {
		out.Tokens = make([]models.TokenGrant, len(patch.Tokens))
		copy(out.Tokens, patch.Tokens)
	}
	if patch.OldPasswords != nil {
		out.OldPasswords = make([]models.PasswordHistoryEntry, len(patch.OldPasswords))
		copy(out.OldPasswords, patch.OldPasswords)
	}
	return out
}
