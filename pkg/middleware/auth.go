package middleware

import (
	"net/http"

	"github.com/onyxia-store/onyxia/pkg/auth"
	"github.com/onyxia-store/onyxia/pkg/ctx"
	"github.com/onyxia-store/onyxia/pkg/logger"
	"github.com/onyxia-store/onyxia/pkg/response"
	"github.com/onyxia-store/onyxia/pkg/session"
)

// SessionAdminKey is the session value holding the logged-in admin username.
const SessionAdminKey = "admin"

// AuthFailure describes why Authenticate rejected a request.
type AuthFailure struct {
	Status  int
	Message string
}

// Authenticate resolves the admin behind r from a bearer token or, when no
// token is sent, from the cookie session.
//
//	no bearer token and no admin session -> 401
//	revoked token                         -> 401
//	bad signature or expired token        -> 403
//	blacklist unreachable                 -> 503
//
// Session lookup needs session.Manager.Middleware earlier in the chain.
func Authenticate(r *http.Request, iss *auth.Issuer, bl auth.Blacklist) (*auth.Admin, *AuthFailure) {
	token := ctx.BearerToken(r)

	if token == "" {
		if sess := session.FromCtx(r); sess != nil {
			if name, ok := sess.GetString(SessionAdminKey); ok && name != "" {
				return &auth.Admin{Username: name}, nil
			}
		}
		return nil, &AuthFailure{http.StatusUnauthorized, "Unauthorized"}
	}

	revoked, err := bl.IsRevoked(r.Context(), token)
	if err != nil {
		logger.WithCtx(r.Context()).Error("blacklist lookup failed", "error", err)
		return nil, &AuthFailure{http.StatusServiceUnavailable, "Authentication temporarily unavailable"}
	}
	if revoked {
		return nil, &AuthFailure{http.StatusUnauthorized, "Token has been revoked"}
	}

	claims, err := iss.Parse(token)
	if err != nil {
		return nil, &AuthFailure{http.StatusForbidden, "Invalid or expired token"}
	}
	return &auth.Admin{Username: claims.Username, Token: token, Claims: claims}, nil
}

// RequireAdmin guards admin API endpoints and stores the admin in the request
// context. Failures are written as JSON.
func RequireAdmin(iss *auth.Issuer, bl auth.Blacklist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin, fail := Authenticate(r, iss, bl)
			if fail != nil {
				response.Error(w, fail.Status, fail.Message)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAdmin(r.Context(), admin)))
		})
	}
}
