package auth_test

import (
	"context"
	"testing"
	"time"

	"user_service/internal/auth"
	"user_service/internal/models"
	"user_service/internal/storage"

	"github.com/stretchr/testify/require"
)

var testSecret = []byte("verifier-secret")

// seedToken creates a record with one grant in the store and returns the
// signed token for that grant.
func seedToken(t *testing.T, st storage.Storage) (models.UserRecord, string) {
	t.Helper()

	rec := models.UserRecord{
		Tenant:       st.TenantID(),
		ID:           "u1",
		Login:        "alice",
		Email:        "a@x.com",
		PasswordHash: "hash",
		RecordKind:   models.RecordKindUser,
		Tokens: []models.TokenGrant{
			{TokenID: "grant-1", ExpiresAt: time.Now().Add(auth.TokenTTL).UnixMilli()},
		},
	}
	_, err := st.Create(context.Background(), rec)
	require.NoError(t, err)

	tok, err := auth.GenerateToken(testSecret, rec.ID, rec.Login, rec.Email, rec.Tenant, "grant-1", auth.TokenTTL)
	require.NoError(t, err)
	return rec, tok
}

func TestLightVerifier_AcceptsWithoutStore(t *testing.T) {
	t.Parallel()

	tok, err := auth.GenerateToken(testSecret, "u1", "alice", "a@x.com", "app1", "grant-1", auth.TokenTTL)
	require.NoError(t, err)

	claims, err := auth.NewLightVerifier(testSecret).Verify(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, "alice", claims.Login)
}

func TestLightVerifier_RejectsTampered(t *testing.T) {
	t.Parallel()

	tok, err := auth.GenerateToken(testSecret, "u1", "", "", "app1", "g1", auth.TokenTTL)
	require.NoError(t, err)

	_, err = auth.NewLightVerifier(testSecret).Verify(context.Background(), tok+"x")
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestStrictVerifier_AcceptsActiveGrant(t *testing.T) {
	t.Parallel()

	st := storage.NewTransientStore("app1")
	rec, tok := seedToken(t, st)

	claims, err := auth.NewStrictVerifier(testSecret, st).Verify(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, rec.ID, claims.UserID)
	require.Equal(t, "grant-1", claims.TokenID())
}

func TestStrictVerifier_RejectsUnknownUser(t *testing.T) {
	t.Parallel()

	st := storage.NewTransientStore("app1")
	tok, err := auth.GenerateToken(testSecret, "ghost", "", "", "app1", "g1", auth.TokenTTL)
	require.NoError(t, err)

	_, err = auth.NewStrictVerifier(testSecret, st).Verify(context.Background(), tok)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestStrictVerifier_RejectsRevokedGrant(t *testing.T) {
	t.Parallel()

	st := storage.NewTransientStore("app1")
	rec, tok := seedToken(t, st)

	// Revoke server-side: empty the grant list and persist.
	_, err := st.Update(context.Background(), rec.ID, models.UserRecord{Tokens: []models.TokenGrant{}})
	require.NoError(t, err)

	_, err = auth.NewStrictVerifier(testSecret, st).Verify(context.Background(), tok)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	// The same token still passes stateless verification; that asymmetry is
	// the light/strict trade-off.
	claims, err := auth.NewLightVerifier(testSecret).Verify(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, rec.ID, claims.UserID)
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	require.Equal(t, auth.ModeLight, auth.ParseMode("light"))
	require.Equal(t, auth.ModeStrict, auth.ParseMode("strict"))
	require.Equal(t, auth.ModeStrict, auth.ParseMode(""))
	require.Equal(t, auth.ModeStrict, auth.ParseMode("LIGHT"))
	require.Equal(t, auth.ModeStrict, auth.ParseMode("garbage"))
}

func TestChooseVerifier(t *testing.T) {
	t.Parallel()

	st := storage.NewTransientStore("app1")

	require.IsType(t, &auth.LightVerifier{}, auth.ChooseVerifier(auth.ModeLight, testSecret, st))
	require.IsType(t, &auth.StrictVerifier{}, auth.ChooseVerifier(auth.ModeStrict, testSecret, st))
	require.IsType(t, &auth.StrictVerifier{}, auth.ChooseVerifier(auth.Mode("other"), testSecret, st))
}
