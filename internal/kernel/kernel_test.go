package kernel_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onyxia-store/onyxia/app/services"
	_ "github.com/onyxia-store/onyxia/database/migrations"
	"github.com/onyxia-store/onyxia/database/seeders"
	"github.com/onyxia-store/onyxia/internal/kernel"
	"github.com/onyxia-store/onyxia/pkg/auth"
	"github.com/onyxia-store/onyxia/pkg/cache"
	"github.com/onyxia-store/onyxia/pkg/database"
	"github.com/onyxia-store/onyxia/pkg/logger"
	"github.com/onyxia-store/onyxia/pkg/mail"
	"github.com/onyxia-store/onyxia/pkg/migration"
	"github.com/onyxia-store/onyxia/pkg/session"
	"github.com/onyxia-store/onyxia/pkg/storage"
	"github.com/onyxia-store/onyxia/pkg/testkit"
	"github.com/onyxia-store/onyxia/pkg/ws"
)

func TestMain(m *testing.M) {
	logger.Discard()
	os.Exit(m.Run())
}

type harness struct {
	kernel  *kernel.Kernel
	handler http.Handler
	token   string
	outbox  *mail.Outbox
	static  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	_, err = migration.New(db, io.Discard).Run()
	require.NoError(t, err)
	require.NoError(t, seeders.SeedProducts(db))

	static := t.TempDir()
	for name, body := range map[string]string{
		"index_new.html": "<h1>Onyxia</h1>",
		"admin.html":     "<h1>Dashboard</h1>",
		"login.html":     "<form>login</form>",
		"shop.html":      "<h1>Shop</h1>",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(static, name), []byte(body), 0o644))
	}

	store := cache.NewMemory()
	issuer := auth.NewIssuer("kernel-test-secret", time.Hour)
	outbox := &mail.Outbox{}

	k, err := kernel.NewHTTPKernel(kernel.Options{
		DB:          db,
		Cache:       store,
		Issuer:      issuer,
		Credentials: services.AdminCredentials{Username: "admin", Password: "secret"},
		Disk:        storage.NewLocal(t.TempDir(), "http://localhost/storage"),
		Mailer:      outbox,
		AdminEmail:  "owner@onyxia.test",
		Session:     session.DefaultOptions(),
		Workers:     2,
		StaticDir:   static,
		IndexFile:   "index_new.html",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = k.Shutdown(ctx)
	})

	token, _, err := issuer.Issue("admin")
	require.NoError(t, err)

	return &harness{kernel: k, handler: k.Handler(), token: token, outbox: outbox, static: static}
}

func (h *harness) do(method, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestAPIScenarios(t *testing.T) {
	h := newHarness(t)
	testkit.RunDir(t, h.handler, "testdata/api", map[string]string{"token": h.token})
}

func TestAdminLoginVerifyLogout(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/admin/login",
		strings.NewReader(`{"username":"admin","password":"secret"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := testkit.DecodeJSON[map[string]string](t, rec.Body.Bytes())["token"]
	require.NotEmpty(t, token)

	rec = h.do(http.MethodGet, "/api/admin/verify", nil, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	testkit.AssertJSONEqual(t, `{"valid":true}`, rec.Body.Bytes())

	rec = h.do(http.MethodPost, "/api/admin/logout", nil, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	testkit.AssertJSONEqual(t, `{"success":true}`, rec.Body.Bytes())

	rec = h.do(http.MethodGet, "/api/admin/verify", nil, bearer(token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Token has been revoked")

	// Other tokens stay valid.
	rec = h.do(http.MethodGet, "/api/admin/verify", nil, bearer(h.token))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginSetsSessionCookieForAdminPages(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/admin/login",
		strings.NewReader(`{"username":"admin","password":"secret"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "onyxia_session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "login should set the session cookie")

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(cookie)
	page := httptest.NewRecorder()
	h.handler.ServeHTTP(page, req)
	assert.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "Dashboard")
}

func TestLoginIssuesNewSessionID(t *testing.T) {
	h := newHarness(t)
	login := func(prev *http.Cookie) *http.Cookie {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/login",
			strings.NewReader(`{"username":"admin","password":"secret"}`))
		req.Header.Set("Content-Type", "application/json")
		if prev != nil {
			req.AddCookie(prev)
		}
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		for _, c := range rec.Result().Cookies() {
			if c.Name == "onyxia_session" {
				return c
			}
		}
		t.Fatal("login should set the session cookie")
		return nil
	}

	first := login(nil)
	second := login(first)
	assert.NotEqual(t, first.Value, second.Value)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(first)
	page := httptest.NewRecorder()
	h.handler.ServeHTTP(page, req)
	assert.Equal(t, http.StatusFound, page.Code, "the pre-login id must not open admin pages")

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(second)
	page = httptest.NewRecorder()
	h.handler.ServeHTTP(page, req)
	assert.Equal(t, http.StatusOK, page.Code)
}

func TestStaticPages(t *testing.T) {
	h := newHarness(t)

	t.Run("index at root", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Onyxia")
	})

	t.Run("plain page", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/shop.html", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Shop")
	})

	t.Run("missing page", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/nope.html", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Not found", rec.Body.String())
	})

	t.Run("traversal", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/../go.mod", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("admin redirects anonymous visitors", func(t *testing.T) {
		for _, p := range []string{"/admin", "/admin.html"} {
			rec := h.do(http.MethodGet, p, nil, nil)
			assert.Equal(t, http.StatusFound, rec.Code, p)
			assert.Equal(t, "/login.html?reason=Unauthorized", rec.Header().Get("Location"), p)
		}
	})

	t.Run("admin with a forged token", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/admin", nil, bearer("forged"))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), "reason=Invalid+or+expired+token")
	})

	t.Run("admin with a token", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/admin", nil, bearer(h.token))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Dashboard")
	})
}

// 1x1 transparent PNG.
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func multipartImage(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploads(t *testing.T) {
	h := newHarness(t)

	t.Run("requires admin", func(t *testing.T) {
		body, ct := multipartImage(t, "ring.png", pngPixel)
		rec := h.do(http.MethodPost, "/api/uploads", body, map[string]string{"Content-Type": ct})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("stores a png and serves it back", func(t *testing.T) {
		body, ct := multipartImage(t, "ring.png", pngPixel)
		headers := bearer(h.token)
		headers["Content-Type"] = ct
		rec := h.do(http.MethodPost, "/api/uploads", body, headers)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		out := testkit.DecodeJSON[map[string]string](t, rec.Body.Bytes())
		assert.True(t, strings.HasPrefix(out["path"], "products/"), out["path"])
		assert.True(t, strings.HasSuffix(out["path"], ".png"), out["path"])
		assert.Equal(t, "http://localhost/storage/"+out["path"], out["url"])

		got := h.do(http.MethodGet, "/storage/"+out["path"], nil, nil)
		assert.Equal(t, http.StatusOK, got.Code)
		assert.Equal(t, pngPixel, got.Body.Bytes())
	})

	t.Run("rejects non-images", func(t *testing.T) {
		body, ct := multipartImage(t, "notes.png", []byte("just some text, not an image"))
		headers := bearer(h.token)
		headers["Content-Type"] = ct
		rec := h.do(http.MethodPost, "/api/uploads", body, headers)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestOrderCreatedMailsTheAdmin(t *testing.T) {
	h := newHarness(t)

	body, err := os.ReadFile("testdata/api/order_store_req.json")
	require.NoError(t, err)
	rec := h.do(http.MethodPost, "/api/orders", bytes.NewReader(body), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool { return len(h.outbox.Sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
	msg := h.outbox.Sent()[0]
	assert.Equal(t, []string{"owner@onyxia.test"}, msg.Recipients())
	assert.Equal(t, "New order #1 from Amira Haddad (4240.00)", msg.GetSubject())
	assert.Contains(t, msg.GetBody(), "Pearl Drops")
}

func TestOrderFeedBroadcastsNewOrders(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.kernel.Run(ctx)

	srv := httptest.NewServer(h.handler)
	defer srv.Close()

	feedURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/admin/orders/feed"

	_, resp, err := websocket.DefaultDialer.Dial(feedURL, nil)
	require.Error(t, err, "anonymous clients must not reach the feed")
	if resp != nil {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	_, resp, err = websocket.DefaultDialer.Dial(feedURL, http.Header{
		"Authorization": {"Bearer " + h.token},
		"Origin":        {"https://elsewhere.example"},
	})
	require.Error(t, err, "pages from other origins must not open the feed")
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	conn, _, err := websocket.DefaultDialer.Dial(feedURL, http.Header{"Authorization": {"Bearer " + h.token}})
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.kernel.Hub().ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	body, err := os.ReadFile("testdata/api/order_store_req.json")
	require.NoError(t, err)
	res, err := srv.Client().Post(srv.URL+"/api/orders", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var env ws.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, services.EventOrderCreated, env.Type)
	testkit.AssertJSONBody(t, &testkit.Scenario{Name: "feed"},
		[]byte(`{"id":1,"customerName":"Amira Haddad","total":4240}`), env.Data)
}

func TestRouteTableNamesEveryEndpoint(t *testing.T) {
	h := newHarness(t)

	names := map[string]bool{}
	for _, r := range h.kernel.Router().Routes() {
		names[r.Name] = true
	}
	for _, want := range []string{
		"admin.login", "admin.verify", "admin.logout",
		"products.index", "products.home", "products.show",
		"products.store", "products.update", "products.destroy",
		"orders.store", "orders.index", "orders.update", "orders.destroy",
		"uploads.store", "orders.feed", "graphql", "health", "metrics", "static",
	} {
		assert.True(t, names[want], "route %q is not registered", want)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodGet, "/api/products", nil, nil)

	rec := h.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "onyxia_")
}

func TestHousekeepingSchedule(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, []string{"cache.sweep  [5m0s]", "ratelimit.prune  [1m0s]"}, h.kernel.Schedule())
}
