package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrAuthExpired matches any HTTPError with status 401 or 403.
var ErrAuthExpired = errors.New("apiclient: authentication expired or invalid")

// NetworkError means the request never produced a response.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("apiclient: %s %s: network error: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Body is the parsed JSON body when the
// server sent JSON and the raw text otherwise.
type HTTPError struct {
	Status  int
	Body    interface{}
	Message string
	// Fields holds per-field validation messages from a 422 envelope.
	Fields map[string]string
}

// Detail is Message followed by the field messages, sorted by field.
func (e *HTTPError) Detail() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("apiclient: status %d: %s", e.Status, e.Message)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrAuthExpired && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// MalformedResponseError is a 2xx response whose body is not the expected JSON.
type MalformedResponseError struct {
	Status int
	Body   string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("apiclient: status %d: malformed response body: %v", e.Status, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

const maxSnippet = 200

func newHTTPError(status int, raw []byte) *HTTPError {
	e := &HTTPError{Status: status}

	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		e.Body = parsed
		if m, ok := parsed.(map[string]interface{}); ok {
			for _, key := range []string{"message", "error"} {
				if s, ok := m[key].(string); ok && s != "" {
					e.Message = s
					break
				}
			}
			if fields, ok := m["errors"].(map[string]interface{}); ok {
				e.Fields = make(map[string]string, len(fields))
				for k, v := range fields {
					e.Fields[k] = fmt.Sprint(v)
				}
			}
		}
	} else if text := strings.TrimSpace(string(raw)); text != "" {
		e.Body = text
		e.Message = snippet(text)
	}

	if e.Message == "" {
		e.Message = fmt.Sprintf("API request failed with status %d", status)
	}
	return e
}

func snippet(s string) string {
	if len(s) <= maxSnippet {
		return s
	}
	return s[:maxSnippet] + "…"
}
