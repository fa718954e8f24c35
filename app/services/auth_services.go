package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onyxia-store/onyxia/config"
	"github.com/onyxia-store/onyxia/pkg/auth"
	"github.com/onyxia-store/onyxia/pkg/logger"
	"github.com/onyxia-store/onyxia/pkg/metrics"
)

var ErrInvalidCredentials = errors.New("services: invalid credentials")

// AdminCredentials is the single configured admin account. PasswordHash, a
// bcrypt hash, wins over the plain Password when set.
type AdminCredentials struct {
	Username     string
	Password     string
	PasswordHash string
}

func CredentialsFromConfig() AdminCredentials {
	return AdminCredentials{
		Username:     config.AdminUsername(),
		Password:     config.AdminPassword(),
		PasswordHash: config.AdminPasswordHash(),
	}
}

type AuthService struct {
	issuer    *auth.Issuer
	blacklist auth.Blacklist
	creds     AdminCredentials
}

func NewAuthService(iss *auth.Issuer, bl auth.Blacklist, creds AdminCredentials) *AuthService {
	return &AuthService{issuer: iss, blacklist: bl, creds: creds}
}

func (s *AuthService) Issuer() *auth.Issuer       { return s.issuer }
func (s *AuthService) Blacklist() auth.Blacklist { return s.blacklist }

func (s *AuthService) checkPassword(password string) bool {
	if s.creds.PasswordHash != "" {
		return auth.CheckPassword(s.creds.PasswordHash, password)
	}
	return auth.SecureEqual(s.creds.Password, password)
}

// Login returns a signed token for the configured admin.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *auth.Claims, error) {
	// evaluate both so timing does not reveal which one failed
	userOK := auth.SecureEqual(s.creds.Username, username)
	passOK := s.checkPassword(password)
	if !userOK || !passOK {
		metrics.RecordLogin(false)
		logger.WithCtx(ctx).Warn("admin login rejected", "username", username)
		return "", nil, ErrInvalidCredentials
	}

	token, claims, err := s.issuer.Issue(username)
	if err != nil {
		return "", nil, err
	}
	metrics.RecordLogin(true)
	logger.WithCtx(ctx).Info("admin logged in", "username", username, "jti", claims.ID)
	return token, claims, nil
}

// Logout revokes the bearer token of admin until it would have expired.
// Cookie-only sessions carry no token and need no revocation.
func (s *AuthService) Logout(ctx context.Context, admin *auth.Admin) error {
	if admin == nil || admin.Token == "" {
		return nil
	}
	until := time.Now().Add(s.issuer.TTL())
	if admin.Claims != nil && admin.Claims.ExpiresAt != nil {
		until = admin.Claims.ExpiresAt.Time
	}
	if err := s.blacklist.Revoke(ctx, admin.Token, until); err != nil {
		return fmt.Errorf("services: revoke token: %w", err)
	}
	metrics.TokensRevoked.Inc()
	logger.WithCtx(ctx).Info("admin logged out", "username", admin.Username)
	return nil
}
