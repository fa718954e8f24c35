package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onyxia-store/onyxia/pkg/auth"
	"github.com/onyxia-store/onyxia/pkg/cache"
	"github.com/onyxia-store/onyxia/pkg/logger"
	"github.com/onyxia-store/onyxia/pkg/middleware"
	"github.com/onyxia-store/onyxia/pkg/session"
)

func init() { logger.Discard() }

func protected(t *testing.T, iss *auth.Issuer, bl auth.Blacklist, mgr *session.Manager) http.Handler {
	t.Helper()
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := auth.AdminFromCtx(r.Context())
		if a == nil {
			t.Error("admin missing from context")
		}
		w.WriteHeader(http.StatusOK)
	})
	return mgr.Middleware()(middleware.RequireAdmin(iss, bl)(final))
}

func TestRequireAdmin_StatusCodes(t *testing.T) {
	store := cache.NewMemory()
	iss := auth.NewIssuer("secret", time.Hour)
	bl := auth.NewBlacklist(store)
	mgr := session.NewManager(store, session.Options{CookieName: "sid", TTL: time.Hour, Path: "/"})
	h := protected(t, iss, bl, mgr)

	good, _, err := iss.Issue("admin")
	require.NoError(t, err)
	revoked, revokedClaims, _ := iss.Issue("admin")
	require.NoError(t, bl.Revoke(context.Background(), revoked, revokedClaims.ExpiresAt.Time))

	forged, _, _ := auth.NewIssuer("other", time.Hour).Issue("admin")

	cases := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"valid", good, http.StatusOK},
		{"revoked", revoked, http.StatusUnauthorized},
		{"forged", forged, http.StatusForbidden},
		{"garbage", "abc", http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/verify", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRequireAdmin_SessionCookie(t *testing.T) {
	store := cache.NewMemory()
	mgr := session.NewManager(store, session.Options{CookieName: "sid", TTL: time.Hour, Path: "/"})
	h := protected(t, auth.NewIssuer("secret", time.Hour), auth.NewBlacklist(store), mgr)

	login := httptest.NewRequest(http.MethodPost, "/login", nil)
	sess := mgr.Load(login)
	sess.Set(middleware.SessionAdminKey, "admin")
	rec := httptest.NewRecorder()
	require.NoError(t, sess.Save(login.Context(), rec))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/verify", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecovery(t *testing.T) {
	h := middleware.Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal Server Error")
}

func TestLimiter(t *testing.T) {
	l := middleware.NewLimiter(2, time.Minute)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := middleware.CORS(middleware.CORSOptions{
		AllowedOrigins: []string{"https://shop.example"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Authorization"},
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
