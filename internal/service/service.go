package service

import (
	"context"
	"errors"
	"fmt"

	"user_service/internal/auth"
	"user_service/internal/identity"
	"user_service/internal/models"
	"user_service/internal/storage"
)

var (
	// ErrInvalidCredentials means the password did not match the record.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized means the bearer token is invalid, expired or revoked.
	ErrUnauthorized = errors.New("unauthorized")
)

// Credentials identifies a record by any primary field plus the password.
type Credentials struct {
	ID       string `json:"id"`
	Login    string `json:"login"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfilePatch carries a profile update. Only Name, Surname and Password are
// honored; the immutable and server-owned fields a client may send anyway
// are dropped silently, not rejected.
type ProfilePatch struct {
	ID           string                        `json:"id"`
	Login        string                        `json:"login"`
	Email        string                        `json:"email"`
	Tenant       string                        `json:"tenant"`
	Name         string                        `json:"name"`
	Surname      string                        `json:"surname"`
	Password     string                        `json:"password"`
	Tokens       []models.TokenGrant           `json:"tokens"`
	OldPasswords []models.PasswordHistoryEntry `json:"old_passwords"`
}

// Directory is the orchestration contract the transport layer consumes: the
// five directory operations over already-decoded requests.
type Directory interface {
	CreateUser(ctx context.Context, in identity.RawInput) (models.PublicProfile, error)
	IssueToken(ctx context.Context, creds Credentials) (string, error)
	VerifyToken(ctx context.Context, token string, mode auth.Mode) (auth.Claims, error)
	ReadProfile(ctx context.Context, token string) (models.PublicProfile, error)
	UpdateProfile(ctx context.Context, token string, patch ProfilePatch) (models.PublicProfile, error)
}

// Service composes the record store, the identity model and the verification
// strategies into the five directory operations. All failures are the typed
// values of this package and the storage package; nothing is retried here.
type Service struct {
	storage   storage.Storage
	jwtSecret []byte
}

func NewService(st storage.Storage, jwtSecret []byte) *Service {
	return &Service{
		storage:   st,
		jwtSecret: jwtSecret,
	}
}

// CreateUser normalizes the raw input and persists a new record. A taken
// login or email within the tenant yields storage.ErrConflict.
func (s *Service) CreateUser(ctx context.Context, in identity.RawInput) (models.PublicProfile, error) {
	const op = "service.CreateUser"

	model := identity.FromRawInput(in, s.storage.TenantID())

	rec, err := model.Record()
	if err != nil {
		return models.PublicProfile{}, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.storage.Create(ctx, rec); err != nil {
		return models.PublicProfile{}, err
	}

	return model.PublicView()
}

// IssueToken authenticates the credentials, appends a new grant to the record
// and persists it, then returns the signed token.
func (s *Service) IssueToken(ctx context.Context, creds Credentials) (string, error) {
	const op = "service.IssueToken"

	rec, err := s.storage.FindByPrimaryFields(ctx, storage.Query{
		ID:    creds.ID,
		Login: creds.Login,
		Email: creds.Email,
	})
	if err != nil {
		return "", err
	}

	model := identity.FromStoredRecord(rec)
	if !model.VerifyPassword(creds.Password) {
		return "", ErrInvalidCredentials
	}

	token, err := model.IssueToken(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	updated, err := model.Record()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.storage.Update(ctx, updated.ID, updated); err != nil {
		return "", err
	}

	return token, nil
}

// VerifyToken validates the bearer token with the strategy the mode selects
// and returns the decoded claims.
func (s *Service) VerifyToken(ctx context.Context, token string, mode auth.Mode) (auth.Claims, error) {
	verifier := auth.ChooseVerifier(mode, s.jwtSecret, s.storage)

	claims, err := verifier.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return auth.Claims{}, ErrUnauthorized
		}
		return auth.Claims{}, err
	}
	return claims, nil
}

// ReadProfile verifies the token strictly and returns the public view of the
// record it belongs to.
func (s *Service) ReadProfile(ctx context.Context, token string) (models.PublicProfile, error) {
	claims, err := s.VerifyToken(ctx, token, auth.ModeStrict)
	if err != nil {
		return models.PublicProfile{}, err
	}

	rec, err := s.storage.FindByID(ctx, claims.UserID)
	if err != nil {
		return models.PublicProfile{}, err
	}

	return identity.FromStoredRecord(rec).PublicView()
}

// UpdateProfile verifies the token strictly, merges the allowed patch fields
// into the record and persists it. A plaintext password in the patch is
// hashed before it is written; a patch without one leaves the stored hash
// untouched.
func (s *Service) UpdateProfile(ctx context.Context, token string, patch ProfilePatch) (models.PublicProfile, error) {
	const op = "service.UpdateProfile"

	claims, err := s.VerifyToken(ctx, token, auth.ModeStrict)
	if err != nil {
		return models.PublicProfile{}, err
	}

	if _, err := s.storage.FindByID(ctx, claims.UserID); err != nil {
		return models.PublicProfile{}, err
	}

	upd := models.UserRecord{
		Name:    patch.Name,
		Surname: patch.Surname,
	}
	if patch.Password != "" {
		hash, err := auth.HashPassword(patch.Password)
		if err != nil {
			return models.PublicProfile{}, fmt.Errorf("%s: %w", op, err)
		}
		upd.PasswordHash = hash
	}

	updated, err := s.storage.Update(ctx, claims.UserID, upd)
	if err != nil {
		return models.PublicProfile{}, err
	}

	return identity.FromStoredRecord(updated).PublicView()
}
