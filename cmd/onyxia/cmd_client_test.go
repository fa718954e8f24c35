package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onyxia-store/onyxia/pkg/logger"
)

func init() { logger.Discard() }

// fakeAdminAPI accepts admin/secret and knows a single order.
type fakeAdminAPI struct {
	mu      sync.Mutex
	revoked    map[string]bool
	status     string
	lastUpdate map[string]interface{}
}

func (f *fakeAdminAPI) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return tok == "tok-1" && !f.revoked[tok]
}

func (f *fakeAdminAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/admin/login":
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["username"] != "admin" || in["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"tok-1"}`))
		return
	case !f.authorized(r):
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":401,"message":"Unauthorized"}`))
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/products":
		var in map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&in)
		if price, _ := in["price"].(float64); price <= 0 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"status":422,"message":"Validation failed","errors":{"price":"The price must be greater than 0."}}`))
			return
		}
		in["id"] = 9
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(in)
	case r.Method == http.MethodGet && r.URL.Path == "/api/products/9":
		_, _ = w.Write([]byte(`{"id":9,"name":"Opal Ring","description":"Fire opal","price":4200,"display_home":false}`))
	case r.Method == http.MethodPut && r.URL.Path == "/api/products/9":
		var in map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		f.lastUpdate = in
		f.mu.Unlock()
		in["id"] = 9
		_ = json.NewEncoder(w).Encode(in)
	case r.Method == http.MethodDelete && r.URL.Path == "/api/products/9":
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/products/"):
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":404,"message":"Product not found"}`))
	case r.URL.Path == "/api/admin/verify":
		_, _ = w.Write([]byte(`{"valid":true}`))
	case r.URL.Path == "/api/admin/logout":
		f.mu.Lock()
		f.revoked["tok-1"] = true
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"success":true}`))
	case r.Method == http.MethodGet && r.URL.Path == "/api/orders":
		_, _ = w.Write([]byte(`[{"id":7,"customerName":"Amira Haddad","city":"Oran","deliveryType":"home","total":4240,"status":"` + f.status + `"}]`))
	case r.Method == http.MethodPut && r.URL.Path == "/api/orders/7":
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.status = in["status"]
		_, _ = w.Write([]byte(`{"id":7,"status":"` + f.status + `"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestAdminSessionCommands(t *testing.T) {
	api := &fakeAdminAPI{revoked: map[string]bool{}, status: "pending"}
	srv := httptest.NewServer(api)
	defer srv.Close()
	state := t.TempDir()
	common := []string{"--api", srv.URL, "--state", state}

	_, err := runCLI(t, "", append([]string{"orders:list"}, common...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log in")

	_, err = runCLI(t, "", append([]string{"admin:login", "--password", "wrong"}, common...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")

	out, err := runCLI(t, "secret\n", append([]string{"admin:login", "--password", ""}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as admin")

	out, err = runCLI(t, "", append([]string{"orders:list"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Amira Haddad")
	assert.Contains(t, out, "4240.00")

	out, err = runCLI(t, "", append([]string{"orders:status", "7", "shipped"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, "order #7 is now shipped\n", out)

	_, err = runCLI(t, "", append([]string{"admin:logout"}, common...)...)
	require.NoError(t, err)

	_, err = runCLI(t, "", append([]string{"orders:list"}, common...)...)
	require.Error(t, err)
}

func TestProductCommands(t *testing.T) {
	api := &fakeAdminAPI{revoked: map[string]bool{}, status: "pending"}
	srv := httptest.NewServer(api)
	defer srv.Close()
	common := []string{"--api", srv.URL, "--state", t.TempDir()}

	_, err := runCLI(t, "", append([]string{"products:delete", "9"}, common...)...)
	require.Error(t, err)

	_, err = runCLI(t, "secret\n", append([]string{"admin:login", "--password", ""}, common...)...)
	require.NoError(t, err)

	_, err = runCLI(t, "", append([]string{"products:create"}, common...)...)
	require.Error(t, err)
	assert.Equal(t, "Validation failed (price: The price must be greater than 0.)", err.Error())

	out, err := runCLI(t, "", append([]string{"products:create", "--name", "Opal Ring", "--price", "4200"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, "product #9 created: Opal Ring (4200.00)\n", out)

	out, err = runCLI(t, "", append([]string{"products:update", "9", "--price", "3900", "--home", "--position", "4"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, "product #9 updated: Opal Ring (3900.00)\n", out)
	api.mu.Lock()
	assert.Equal(t, "Fire opal", api.lastUpdate["description"])
	assert.Equal(t, true, api.lastUpdate["display_home"])
	assert.Equal(t, 4.0, api.lastUpdate["home_position"])
	api.mu.Unlock()

	out, err = runCLI(t, "", append([]string{"products:delete", "9"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, "product #9 deleted\n", out)

	_, err = runCLI(t, "", append([]string{"products:delete", "12"}, common...)...)
	require.Error(t, err)
	assert.Equal(t, "Product not found", err.Error())
}
