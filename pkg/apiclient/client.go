// Package apiclient is the typed client for the storefront and admin REST
// API. Every call returns the decoded body on 2xx or one of *NetworkError,
// *HTTPError or *MalformedResponseError.
//
//	c := apiclient.New(apiclient.ResolveBaseURL(src, apiclient.DevProductAPI))
//	products, err := c.ListProducts(ctx)
//	if errors.Is(err, apiclient.ErrAuthExpired) { ... }
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	gohttp "net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	onyxhttp "github.com/onyxia-store/onyxia/pkg/http"
)

const (
	DefaultTimeout       = 10 * time.Second
	DefaultFallbackDelay = 300 * time.Millisecond
	DefaultRetryWait     = 200 * time.Millisecond
)

// ID accepts both JSON numbers and strings; SQL backends emit numbers while
// cart lines carry strings.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("apiclient: id must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Uint parses a numeric id.
func (id ID) Uint() (uint64, error) { return strconv.ParseUint(string(id), 10, 64) }

type Client struct {
	http          *onyxhttp.Client
	timeout       time.Duration
	fallbackDelay time.Duration
	getAttempts   int
	retryWait     time.Duration

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

// WithHTTPClient replaces the underlying transport, mostly for tests.
func WithHTTPClient(hc *gohttp.Client) Option {
	return func(c *Client) { c.http = onyxhttp.NewClient(c.http.BaseURL(), hc) }
}

func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

func WithFallbackDelay(d time.Duration) Option { return func(c *Client) { c.fallbackDelay = d } }

// WithRetry sets how many times a GET is attempted when the transport fails.
// Writes are never retried.
func WithRetry(attempts int, wait time.Duration) Option {
	return func(c *Client) { c.getAttempts, c.retryWait = attempts, wait }
}

func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// New builds a client for baseURL, the API origin without the /api prefix.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http:          onyxhttp.NewClient(strings.TrimRight(baseURL, "/")+"/api", nil),
		timeout:       DefaultTimeout,
		fallbackDelay: DefaultFallbackDelay,
		getAttempts:   2,
		retryWait:     DefaultRetryWait,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetToken sets the bearer credential sent with every call.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do sends one request and decodes a 2xx body into out. A nil out discards
// the body.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var req *onyxhttp.Request
	switch method {
	case gohttp.MethodPost:
		req = c.http.Post(path)
	case gohttp.MethodPut:
		req = c.http.Put(path)
	case gohttp.MethodDelete:
		req = c.http.Delete(path)
	default:
		req = c.http.Get(path).Retry(c.getAttempts, c.retryWait)
	}
	if body != nil {
		req.Body(body)
	}

	resp, err := req.WithContext(ctx).Timeout(c.timeout).Bearer(c.Token()).Send()
	if err != nil {
		return &NetworkError{Method: method, URL: req.URL(), Err: err}
	}
	if !resp.OK() {
		return newHTTPError(resp.StatusCode, resp.Raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Raw, out); err != nil {
		return &MalformedResponseError{Status: resp.StatusCode, Body: snippet(resp.Text()), Err: err}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
