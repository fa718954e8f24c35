// Package testkit holds test doubles shared by the package tests: a routing
// http.RoundTripper and JSON assertions.
package testkit

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
)

// ErrConnRefused simulates a transport-level failure.
var ErrConnRefused = errors.New("testkit: connection refused")

// Responder produces the reply for one matched request.
type Responder func(*http.Request) (*http.Response, error)

type route struct {
	method string
	path   string
	fn     Responder
	calls  int
}

// MockTransport routes requests by method and URL path to canned responders.
// Unmatched requests fail with an error naming the request.
//
//	mt := testkit.NewMockTransport().
//	    On("GET", "/api/products/home", 500, `{"message":"boom"}`).
//	    On("GET", "/api/products", 200, `[...]`)
//	client := apiclient.New(base, apiclient.WithHTTPClient(mt.Client()))
type MockTransport struct {
	mu     sync.Mutex
	routes []*route
	seen   []string
}

func NewMockTransport() *MockTransport { return &MockTransport{} }

// On registers a fixed JSON reply.
func (m *MockTransport) On(method, path string, status int, body string) *MockTransport {
	return m.Handle(method, path, func(*http.Request) (*http.Response, error) {
		return JSONResponse(status, body), nil
	})
}

// Fail makes matching requests return err from the transport.
func (m *MockTransport) Fail(method, path string, err error) *MockTransport {
	return m.Handle(method, path, func(*http.Request) (*http.Response, error) { return nil, err })
}

func (m *MockTransport) Handle(method, path string, fn Responder) *MockTransport {
	m.mu.Lock()
	m.routes = append(m.routes, &route{method: strings.ToUpper(method), path: path, fn: fn})
	m.mu.Unlock()
	return m
}

func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.seen = append(m.seen, req.Method+" "+req.URL.Path)
	var match *route
	for _, r := range m.routes {
		if r.method == req.Method && r.path == req.URL.Path {
			match = r
			r.calls++
			break
		}
	}
	m.mu.Unlock()

	if match == nil {
		return nil, fmt.Errorf("testkit: no mock for %s %s", req.Method, req.URL)
	}
	resp, err := match.fn(req)
	if resp != nil {
		resp.Request = req
	}
	return resp, err
}

// Client returns an *http.Client using this transport.
func (m *MockTransport) Client() *http.Client { return &http.Client{Transport: m} }

// Calls lists "METHOD /path" for every request seen, in order.
func (m *MockTransport) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.seen...)
}

// AssertAllCalled fails t for each registered route that never matched.
func (m *MockTransport) AssertAllCalled(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.routes {
		if r.calls == 0 {
			t.Errorf("testkit: mock %s %s was never called", r.method, r.path)
		}
	}
}

// JSONResponse builds a response with a JSON content type.
func JSONResponse(status int, body string) *http.Response {
	return RawResponse(status, "application/json", body)
}

// RawResponse builds a response with an arbitrary content type.
func RawResponse(status int, contentType, body string) *http.Response {
	h := make(http.Header)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}
