// Package session provides cookie sessions whose data lives in a cache.Store.
//
//	mgr := session.NewManager(store, session.DefaultOptions())
//	r.Use(mgr.Middleware())
//
//	sess := session.FromCtx(r)
//	sess.Set("admin", "alice")
//	_ = sess.Save(r.Context(), w)
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/onyxia-store/onyxia/config"
	"github.com/onyxia-store/onyxia/pkg/cache"
)

type Options struct {
	CookieName string
	TTL        time.Duration
	HTTPOnly   bool
	Secure     bool
	SameSite   http.SameSite
	Path       string
}

// DefaultOptions matches the admin token lifetime and sets Secure in production.
func DefaultOptions() Options {
	return Options{
		CookieName: "onyxia_session",
		TTL:        config.TokenTTL(),
		HTTPOnly:   true,
		Secure:     config.IsProduction(),
		SameSite:   http.SameSiteLaxMode,
		Path:       "/",
	}
}

// Manager loads and stores sessions.
type Manager struct {
	store cache.Store
	opts  Options
}

func NewManager(store cache.Store, opts Options) *Manager {
	return &Manager{store: store, opts: opts}
}

func storeKey(id string) string { return "session:" + id }

// Session is the per-request handle.
type Session struct {
	id      string
	data    map[string]interface{}
	mgr     *Manager
	changed bool
	fresh   bool
	dead    bool
	stale   []string
}

func (s *Session) ID() string { return s.id }

// IsNew reports whether no stored session matched the request cookie.
func (s *Session) IsNew() bool { return s.fresh }

func (s *Session) Set(key string, value interface{}) {
	s.data[key] = value
	s.changed = true
}

func (s *Session) Get(key string) (interface{}, bool) {
	v, ok := s.data[key]
	return v, ok
}

func (s *Session) GetString(key string) (string, bool) {
	v, ok := s.data[key].(string)
	return v, ok
}

func (s *Session) Delete(key string) {
	delete(s.data, key)
	s.changed = true
}

// Invalidate clears the data. The next Save removes the stored session and
// expires the cookie.
func (s *Session) Invalidate() {
	s.data = map[string]interface{}{}
	s.dead = true
	s.changed = true
}

// Regenerate moves the data to a new id. The old id stops working at the next
// Save. Call it whenever the session gains privileges.
func (s *Session) Regenerate() {
	if !s.fresh {
		s.stale = append(s.stale, s.id)
	}
	s.id = uuid.NewString()
	s.changed = true
}

// Save persists a modified session and writes the cookie.
func (s *Session) Save(ctx context.Context, w http.ResponseWriter) error {
	if !s.changed {
		return nil
	}
	opts := s.mgr.opts

	if s.dead {
		if err := s.mgr.store.Del(ctx, storeKey(s.id)); err != nil {
			return fmt.Errorf("session: delete: %w", err)
		}
		http.SetCookie(w, &http.Cookie{
			Name:     opts.CookieName,
			Value:    "",
			Path:     opts.Path,
			MaxAge:   -1,
			HttpOnly: opts.HTTPOnly,
			Secure:   opts.Secure,
			SameSite: opts.SameSite,
		})
		s.changed = false
		return nil
	}

	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	if err := s.mgr.store.Set(ctx, storeKey(s.id), raw, opts.TTL); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	if len(s.stale) > 0 {
		keys := make([]string, len(s.stale))
		for i, id := range s.stale {
			keys[i] = storeKey(id)
		}
		if err := s.mgr.store.Del(ctx, keys...); err != nil {
			return fmt.Errorf("session: drop old id: %w", err)
		}
		s.stale = nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     opts.CookieName,
		Value:    s.id,
		Path:     opts.Path,
		MaxAge:   int(opts.TTL.Seconds()),
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
	s.changed = false
	s.fresh = false
	return nil
}

// Load returns the session referenced by the request cookie, or a fresh one.
func (m *Manager) Load(r *http.Request) *Session {
	sess := &Session{mgr: m, data: map[string]interface{}{}}

	if c, err := r.Cookie(m.opts.CookieName); err == nil && c.Value != "" {
		var data map[string]interface{}
		if cache.GetJSON(r.Context(), m.store, storeKey(c.Value), &data) {
			sess.id = c.Value
			sess.data = data
			return sess
		}
	}

	// unknown or missing cookie: never adopt a client-chosen id
	sess.id = uuid.NewString()
	sess.fresh = true
	return sess
}

type ctxKey struct{}

// Middleware loads the session for every request. Handlers read it back with
// FromCtx.
func (m *Manager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := m.Load(r)
			ctx := context.WithValue(r.Context(), ctxKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromCtx returns the session stored by Middleware, or nil.
func FromCtx(r *http.Request) *Session {
	s, _ := r.Context().Value(ctxKey{}).(*Session)
	return s
}
