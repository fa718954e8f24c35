package http_test

import (
	"context"
	"encoding/json"
	gohttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	onyxhttp "github.com/onyxia-store/onyxia/pkg/http"
	"github.com/onyxia-store/onyxia/pkg/logger"
	"github.com/onyxia-store/onyxia/pkg/testkit"
)

func init() { logger.Discard() }

func TestSend_JSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(gohttp.StatusUnauthorized)
			return
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["name"]})
	}))
	defer srv.Close()

	c := onyxhttp.NewClient(srv.URL+"/", srv.Client())
	resp, err := c.Post("/echo").Bearer("tok").Body(map[string]string{"name": "ring"}).Send()
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, resp.Headers.Get("Content-Type"))
	}
	var out map[string]string
	if err := resp.JSON(&out); err != nil || out["echo"] != "ring" {
		t.Errorf("body = %v, %v", out, err)
	}
}

func TestSend_ErrorStatusIsNotAnError(t *testing.T) {
	mt := testkit.NewMockTransport().On("GET", "/missing", 404, `{"message":"gone"}`)
	c := onyxhttp.NewClient("http://api.test", mt.Client())

	resp, err := c.Get("/missing").Send()
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if resp.OK() || resp.StatusCode != 404 {
		t.Error("404 must not be OK")
	}
}

func TestSend_RetriesTransportFailures(t *testing.T) {
	var calls atomic.Int32
	mt := testkit.NewMockTransport().Handle("GET", "/flaky", func(*gohttp.Request) (*gohttp.Response, error) {
		if calls.Add(1) < 3 {
			return nil, testkit.ErrConnRefused
		}
		return testkit.JSONResponse(200, `[]`), nil
	})
	c := onyxhttp.NewClient("http://api.test", mt.Client())

	resp, err := c.Get("/flaky").Retry(3, time.Millisecond).Send()
	if err != nil || !resp.OK() {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestSend_HonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := onyxhttp.NewClient(srv.URL, srv.Client()).Get("/slow").WithContext(ctx).Send()
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
}

func TestSend_Timeout(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := onyxhttp.NewClient(srv.URL, srv.Client()).Get("/slow").Timeout(30 * time.Millisecond).Send()
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("timeout not enforced, took %s", time.Since(start))
	}
}
