package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/glowmart/backend-glow/internal/common"
)

func newTestIssuer(t *testing.T, now time.Time) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(Config{
		Secret:    "0123456789abcdef0123456789abcdef",
		Issuer:    "glowmart",
		Audience:  "glow-frontend",
		AccessTTL: 15 * time.Minute,
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)
	return issuer
}

func TestSignParseRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, now)
	userID := uuid.New()

	raw, expiry, err := issuer.Sign(userID, []string{"admin"})
	require.NoError(t, err)
	require.Equal(t, now.Add(15*time.Minute), expiry)

	subject, roles, err := issuer.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, userID.String(), subject)
	require.Equal(t, []string{"admin"}, roles)
}

func TestParseRejectsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, now)
	raw, _, err := issuer.Sign(uuid.New(), nil)
	require.NoError(t, err)

	late := newTestIssuer(t, now.Add(time.Hour))
	_, _, err = late.Parse(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, now)
	raw, _, err := issuer.Sign(uuid.New(), nil)
	require.NoError(t, err)

	other, err := NewIssuer(Config{
		Secret: "another-secret-entirely-32-bytes",
		Now:    func() time.Time { return now },
	})
	require.NoError(t, err)
	_, _, err = other.Parse(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireAuth(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, now)
	mw := Middleware{Issuer: issuer}
	userID := uuid.New()

	var gotUser string
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = common.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	raw, _, err := issuer.Sign(userID, nil)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, userID.String(), gotUser)
}

func TestRequireRole(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, now)
	mw := Middleware{Issuer: issuer}

	handler := mw.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	customer, _, err := issuer.Sign(uuid.New(), []string{"customer"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/admin/products", nil)
	req.Header.Set("Authorization", "Bearer "+customer)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	admin, _, err := issuer.Sign(uuid.New(), []string{"customer", "admin"})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/admin/products", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthenticatePassesAnonymous(t *testing.T) {
	mw := Middleware{Issuer: newTestIssuer(t, time.Now())}
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := common.UserID(r.Context())
		require.False(t, ok)
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("glow-secret")
	require.NoError(t, err)
	require.NoError(t, VerifyPassword("glow-secret", hash))
	require.ErrorIs(t, VerifyPassword("wrong", hash), ErrPasswordMismatch)
}
