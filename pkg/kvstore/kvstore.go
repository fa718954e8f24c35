// Package kvstore is the persistent per-visitor key/value store the
// storefront keeps its cart, checkout snapshot, language and admin token in.
// Values are strings; writes can fail with a quota error.
package kvstore

import (
	"errors"
	"fmt"
)

// Well-known keys.
const (
	KeyCart          = "cart"
	KeyCartTimestamp = "cartTimestamp"
	KeyLanguage      = "language"
	KeyAdminToken    = "adminToken"
	KeyOrderSummary  = "orderSummary"

	// legacyAdminToken is read once and migrated to KeyAdminToken.
	legacyAdminToken = "token"
)

// DefaultQuota mirrors the usual browser storage budget.
const DefaultQuota = 5 * 1024 * 1024

// ErrQuotaExceeded is matched with errors.Is on any *QuotaError.
var ErrQuotaExceeded = errors.New("kvstore: quota exceeded")

// QuotaError reports a write that would push the store past its budget.
type QuotaError struct {
	Key   string
	Size  int
	Limit int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("kvstore: writing %q would use %d of %d bytes", e.Key, e.Size, e.Limit)
}

func (e *QuotaError) Is(target error) bool { return target == ErrQuotaExceeded }

// Store is implemented by Memory and DiskStore. Get reports absence with
// ok == false and a nil error.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// AdminToken returns the stored admin token, migrating a value found under
// the legacy "token" key.
func AdminToken(s Store) (string, error) {
	tok, ok, err := s.Get(KeyAdminToken)
	if err != nil {
		return "", err
	}
	if ok && tok != "" {
		return tok, nil
	}

	legacy, ok, err := s.Get(legacyAdminToken)
	if err != nil || !ok || legacy == "" {
		return "", err
	}
	if err := s.Set(KeyAdminToken, legacy); err != nil {
		return "", err
	}
	_ = s.Remove(legacyAdminToken)
	return legacy, nil
}

// ClearAdminToken removes both the canonical and the legacy key.
func ClearAdminToken(s Store) error {
	if err := s.Remove(KeyAdminToken); err != nil {
		return err
	}
	return s.Remove(legacyAdminToken)
}

// Language returns the preferred UI language, "en" by default.
func Language(s Store) string {
	lang, ok, err := s.Get(KeyLanguage)
	if err != nil || !ok || lang == "" {
		return "en"
	}
	return lang
}

func SetLanguage(s Store, lang string) error { return s.Set(KeyLanguage, lang) }
