package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onyxia-store/onyxia/pkg/cache"
	"github.com/onyxia-store/onyxia/pkg/session"
)

func opts() session.Options {
	return session.Options{CookieName: "sid", TTL: time.Hour, HTTPOnly: true, Path: "/"}
}

func TestSession_SaveAndReload(t *testing.T) {
	mgr := session.NewManager(cache.NewMemory(), opts())

	var cookie *http.Cookie
	h := mgr.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromCtx(r)
		if !sess.IsNew() {
			t.Error("first request should get a fresh session")
		}
		sess.Set("admin", "alice")
		if err := sess.Save(r.Context(), w); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected session cookie")
	}

	var got string
	h2 := mgr.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = session.FromCtx(r).GetString("admin")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	h2.ServeHTTP(httptest.NewRecorder(), req)

	if got != "alice" {
		t.Errorf("expected admin=alice, got %q", got)
	}
}

func TestSession_UnknownCookieIsNotAdopted(t *testing.T) {
	mgr := session.NewManager(cache.NewMemory(), opts())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "attacker-chosen"})
	sess := mgr.Load(req)

	if sess.ID() == "attacker-chosen" || !sess.IsNew() {
		t.Errorf("unknown session id must be replaced, got %q", sess.ID())
	}
}

func TestSession_InvalidateExpiresCookie(t *testing.T) {
	store := cache.NewMemory()
	mgr := session.NewManager(store, opts())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess := mgr.Load(req)
	sess.Set("admin", "alice")
	_ = sess.Save(req.Context(), httptest.NewRecorder())

	sess.Invalidate()
	rec := httptest.NewRecorder()
	if err := sess.Save(req.Context(), rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if store.Len() != 0 {
		t.Error("stored session should be deleted")
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("expected an expiring cookie, got %+v", cookies)
	}
}

func TestSession_RegenerateDropsOldID(t *testing.T) {
	store := cache.NewMemory()
	mgr := session.NewManager(store, opts())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess := mgr.Load(req)
	sess.Set("cart", "3 items")
	if err := sess.Save(req.Context(), httptest.NewRecorder()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	oldID := sess.ID()

	sess.Regenerate()
	sess.Set("admin", "alice")
	rec := httptest.NewRecorder()
	if err := sess.Save(req.Context(), rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if sess.ID() == oldID {
		t.Fatal("expected a new session id")
	}
	if store.Len() != 1 {
		t.Errorf("expected only the new session stored, got %d entries", store.Len())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != sess.ID() {
		t.Errorf("expected cookie for the new id, got %+v", cookies)
	}

	stale := httptest.NewRequest(http.MethodGet, "/", nil)
	stale.AddCookie(&http.Cookie{Name: "sid", Value: oldID})
	if again := mgr.Load(stale); !again.IsNew() || again.ID() == oldID {
		t.Errorf("old id should no longer load, got %q", again.ID())
	}
	if v, _ := sess.GetString("cart"); v != "3 items" {
		t.Errorf("data should carry over, got %q", v)
	}
}
