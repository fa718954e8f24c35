package controllers

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/onyxia-store/onyxia/pkg/auth"
	"github.com/onyxia-store/onyxia/pkg/ctx"
	"github.com/onyxia-store/onyxia/pkg/middleware"
)

// StaticController serves the storefront pages. Every path starting with
// /admin (admin.html included) needs the admin session or bearer token.
type StaticController struct {
	root      string
	index     string
	issuer    *auth.Issuer
	blacklist auth.Blacklist
}

func NewStaticController(root, index string, iss *auth.Issuer, bl auth.Blacklist) *StaticController {
	return &StaticController{root: root, index: index, issuer: iss, blacklist: bl}
}

// Serve resolves any GET that no API route claimed.
func (sc *StaticController) Serve(c *ctx.Context) {
	p := c.R.URL.Path

	switch {
	case p == "/":
		sc.file(c, sc.index)
	case strings.HasPrefix(p, "/admin"):
		if _, fail := middleware.Authenticate(c.R, sc.issuer, sc.blacklist); fail != nil {
			c.Redirect(http.StatusFound, "/login.html?reason="+url.QueryEscape(fail.Message))
			return
		}
		if p == "/admin" || p == "/admin/" {
			sc.file(c, "admin.html")
			return
		}
		sc.file(c, strings.TrimPrefix(p, "/"))
	default:
		sc.file(c, strings.TrimPrefix(p, "/"))
	}
}

// file serves rel from the static root. Anything outside the root, any
// directory and any missing file is a plain 404.
func (sc *StaticController) file(c *ctx.Context, rel string) {
	full, ok := sc.resolve(rel)
	if !ok {
		notFound(c)
		return
	}
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		notFound(c)
		return
	}
	c.File(full)
}

func (sc *StaticController) resolve(rel string) (string, bool) {
	rel = strings.ReplaceAll(rel, "\\", "/")
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", false
		}
	}
	root, err := filepath.Abs(sc.root)
	if err != nil {
		return "", false
	}
	full := filepath.Join(root, filepath.FromSlash(rel))
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

func notFound(c *ctx.Context) {
	c.W.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.W.WriteHeader(http.StatusNotFound)
	_, _ = c.W.Write([]byte("Not found"))
}
