package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"user_service/internal/metrics"
	"user_service/internal/service"
	"user_service/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// promauto registers on the default registry, so the collectors are created
// once for the whole package.
var testMetrics = metrics.NewMetrics()

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter() (*gin.Engine, *storage.TransientStore) {
	st := storage.NewTransientStore("app1")
	srvc := service.NewService(st, []byte("handler-secret"))
	lgr := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(srvc, lgr, testMetrics, 5*time.Second)
	return h.InitRoutes(), st
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createUserBody() map[string]string {
	return map[string]string{
		"login":    "alice",
		"email":    "a@x.com",
		"password": "pw",
		"name":     "Alice",
	}
}

func TestCreateUser_Created(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, http.MethodPost, "/users", createUserBody(), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "alice", got["login"])
	require.Equal(t, "app1", got["tenant"])
	require.NotEmpty(t, got["id"])
	require.NotContains(t, got, "password_hash")
	require.NotContains(t, got, "old_passwords")
}

func TestCreateUser_DuplicateConflicts(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, http.MethodPost, "/users", createUserBody(), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/users", createUserBody(), nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateUser_InvalidEmail(t *testing.T) {
	router, _ := newTestRouter()

	body := createUserBody()
	body["email"] = "not-an-email"
	w := doJSON(t, router, http.MethodPost, "/users", body, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func issueToken(t *testing.T, router *gin.Engine) string {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/users", createUserBody(), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/tokens", map[string]string{
		"login":    "alice",
		"password": "pw",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestIssueToken_WrongPassword(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, http.MethodPost, "/users", createUserBody(), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/tokens", map[string]string{
		"login":    "alice",
		"password": "wrong",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVerifyToken_StrictAndLight(t *testing.T) {
	router, st := newTestRouter()
	token := issueToken(t, router)
	authz := map[string]string{"Authorization": "Bearer " + token}

	w := doJSON(t, router, http.MethodGet, "/tokens/verify", nil, authz)
	require.Equal(t, http.StatusOK, w.Code)

	var claims struct {
		ID    string `json:"id"`
		Login string `json:"login"`
		App   string `json:"app"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &claims))
	require.Equal(t, "alice", claims.Login)
	require.Equal(t, "app1", claims.App)

	// Delete the record: strict now fails, light still passes.
	_, err := st.Delete(context.Background(), claims.ID)
	require.NoError(t, err)

	w = doJSON(t, router, http.MethodGet, "/tokens/verify", nil, authz)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodGet, "/tokens/verify?mode=light", nil, authz)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestReadProfile(t *testing.T) {
	router, _ := newTestRouter()
	token := issueToken(t, router)

	w := doJSON(t, router, http.MethodGet, "/users/me", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "alice", got["login"])
	require.NotContains(t, got, "password_hash")
}

func TestReadProfile_MissingToken(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, http.MethodGet, "/users/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateProfile(t *testing.T) {
	router, _ := newTestRouter()
	token := issueToken(t, router)

	w := doJSON(t, router, http.MethodPatch, "/users/me", map[string]string{
		"id":   "other-id",
		"name": "Bob",
	}, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "Bob", got["name"])
	require.Equal(t, "alice", got["login"])
	require.NotEqual(t, "other-id", got["id"])
}
