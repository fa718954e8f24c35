// Package adminguard protects admin pages: every page load except the login
// page verifies the stored token and sends the browser to login.html when
// verification fails for any reason.
package adminguard

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"path"
	"sync"

	"github.com/onyxia-store/onyxia/pkg/apiclient"
	"github.com/onyxia-store/onyxia/pkg/kvstore"
	"github.com/onyxia-store/onyxia/pkg/logger"
)

const (
	LoginPage = "login.html"
	AdminPage = "admin.html"
)

// Human readable reasons passed to the login page.
const (
	ReasonMissing  = "Please log in to continue."
	ReasonExpired  = "Your session has expired. Please log in again."
	ReasonNetwork  = "Could not reach the server to verify your session."
	ReasonRejected = "Session verification failed."
)

type State int

const (
	Unverified State = iota
	Verified
)

func (s State) String() string {
	if s == Verified {
		return "verified"
	}
	return "unverified"
}

// Navigator performs browser redirects.
type Navigator interface {
	Navigate(to string)
}

type NavigatorFunc func(string)

func (f NavigatorFunc) Navigate(to string) { f(to) }

type Guard struct {
	store kvstore.Store
	api   *apiclient.Client
	nav   Navigator
	log   *slog.Logger

	mu    sync.Mutex
	state State
}

func New(store kvstore.Store, api *apiclient.Client, nav Navigator) *Guard {
	return &Guard{
		store: store,
		api:   api,
		nav:   nav,
		log:   logger.L.With("component", "adminguard"),
	}
}

func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Guard) setState(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

// IsLoginPage reports whether page is exempt from the guard.
func IsLoginPage(page string) bool {
	if u, err := url.Parse(page); err == nil {
		page = u.Path
	}
	return path.Base(page) == LoginPage
}

// Check verifies the stored token for page. It returns true when the page may
// render; otherwise the credential is cleared and the browser redirected.
func (g *Guard) Check(ctx context.Context, page string) bool {
	if IsLoginPage(page) {
		return true
	}

	token, err := kvstore.AdminToken(g.store)
	if err != nil || token == "" {
		g.reject(ReasonMissing, err)
		return false
	}

	g.api.SetToken(token)
	if err := g.api.Verify(ctx); err != nil {
		g.reject(reasonFor(err), err)
		return false
	}

	g.setState(Verified)
	return true
}

func reasonFor(err error) string {
	var ne *apiclient.NetworkError
	switch {
	case errors.Is(err, apiclient.ErrAuthExpired):
		return ReasonExpired
	case errors.As(err, &ne):
		return ReasonNetwork
	default:
		return ReasonRejected
	}
}

func (g *Guard) reject(reason string, cause error) {
	if cause != nil {
		g.log.Warn("admin verification failed", "reason", reason, "error", cause)
	}
	g.forget()
	g.nav.Navigate(LoginPage + "?reason=" + url.QueryEscape(reason))
}

func (g *Guard) forget() {
	if err := kvstore.ClearAdminToken(g.store); err != nil {
		g.log.Error("clearing admin token", "error", err)
	}
	g.api.SetToken("")
	g.setState(Unverified)
}

// Login stores the issued token and opens the admin page.
func (g *Guard) Login(ctx context.Context, username, password string) error {
	token, err := g.api.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := g.store.Set(kvstore.KeyAdminToken, token); err != nil {
		return err
	}
	g.setState(Verified)
	g.nav.Navigate(AdminPage)
	return nil
}

// Logout asks the server to revoke the token. Failures are logged only; the
// local credential is always cleared.
func (g *Guard) Logout(ctx context.Context) {
	if token, _ := kvstore.AdminToken(g.store); token != "" {
		g.api.SetToken(token)
		if err := g.api.Logout(ctx); err != nil {
			g.log.Warn("server side logout failed", "error", err)
		}
	}
	g.forget()
	g.nav.Navigate(LoginPage)
}
