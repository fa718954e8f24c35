package controllers

import (
	"errors"
	"net/http"

	"github.com/onyxia-store/onyxia/app/services"
	"github.com/onyxia-store/onyxia/pkg/auth"
	"github.com/onyxia-store/onyxia/pkg/ctx"
	"github.com/onyxia-store/onyxia/pkg/logger"
	"github.com/onyxia-store/onyxia/pkg/middleware"
	"github.com/onyxia-store/onyxia/pkg/session"
)

type AuthController struct {
	service *services.AuthService
}

func NewAuthController(s *services.AuthService) *AuthController {
	return &AuthController{service: s}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login answers {token} or 401 {error}. When a cookie session is active the
// admin is remembered there too, for the static /admin pages.
func (ac *AuthController) Login(c *ctx.Context) {
	var body loginRequest
	if !c.BindJSON(&body) {
		return
	}

	token, _, err := ac.service.Login(c.Context(), body.Username, body.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		logger.WithCtx(c.Context()).Error("issuing admin token", "error", err)
		c.Error(http.StatusInternalServerError, "Could not sign in")
		return
	}

	if sess := session.FromCtx(c.R); sess != nil {
		sess.Regenerate()
		sess.Set(middleware.SessionAdminKey, body.Username)
		if err := sess.Save(c.Context(), c.W); err != nil {
			logger.WithCtx(c.Context()).Warn("saving admin session", "error", err)
		}
	}
	c.OK(map[string]string{"token": token})
}

// Verify runs behind RequireAdmin, so reaching it means the credential is good.
func (ac *AuthController) Verify(c *ctx.Context) {
	c.OK(map[string]bool{"valid": true})
}

func (ac *AuthController) Logout(c *ctx.Context) {
	if err := ac.service.Logout(c.Context(), auth.AdminFromCtx(c.Context())); err != nil {
		logger.WithCtx(c.Context()).Error("admin logout", "error", err)
		c.Error(http.StatusServiceUnavailable, "Could not revoke token")
		return
	}
	if sess := session.FromCtx(c.R); sess != nil {
		sess.Invalidate()
		if err := sess.Save(c.Context(), c.W); err != nil {
			logger.WithCtx(c.Context()).Warn("dropping admin session", "error", err)
		}
	}
	c.OK(map[string]bool{"success": true})
}
