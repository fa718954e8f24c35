package testkit

// Scenario files drive end-to-end API tests. Each JSON file describes one
// request and the response it must produce:
//
//	testdata/api/
//	  05_product_store.json        ← scenario
//	  product_store_req.json       ← request body
//	  product_store_res.json       ← expected response (subset match)
//
// Scenarios in a directory run in file-name order against one handler, so
// later files may depend on state created by earlier ones.
//
//	testkit.RunDir(t, k.Handler(), "testdata/api", map[string]string{"token": tok})

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Scenario describes a single REST API test case loaded from a JSON file.
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	RequestMethod   string            `json:"requestMethod"`
	RequestURL      string            `json:"requestUrl"`
	RequestFileName string            `json:"requestFileName"`
	RequestBody     json.RawMessage   `json:"requestBody"`
	Headers         map[string]string `json:"headers"`

	// The expected body is a subset: keys absent from it are not checked.
	ResponseFileName string          `json:"responseFileName"`
	ResponseBody     json.RawMessage `json:"responseBody"`
	ExpectedCode     int             `json:"expectedCode"`

	dir string
}

// LoadScenario reads and validates a scenario from a JSON file.
func LoadScenario(path string) (*Scenario, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("testkit: resolve path %q: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("testkit: read %q: %w", abs, err)
	}

	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("testkit: parse %q: %w", abs, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("testkit: invalid scenario %q: %w", abs, err)
	}
	s.dir = filepath.Dir(abs)
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.RequestURL == "" {
		return fmt.Errorf("requestUrl is required")
	}
	if s.ExpectedCode == 0 {
		return fmt.Errorf("expectedCode is required")
	}
	if s.RequestMethod == "" {
		s.RequestMethod = http.MethodGet
	}
	return nil
}

// LoadAllFromDir loads every *.json file in dir that carries a requestUrl.
// Body fixtures sitting next to the scenarios are skipped.
func LoadAllFromDir(dir string) ([]*Scenario, []error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil || len(entries) == 0 {
		return nil, []error{fmt.Errorf("testkit: no scenario files found in %q", dir)}
	}
	sort.Strings(entries)

	var (
		scenarios []*Scenario
		errs      []error
	)
	for _, path := range entries {
		if !isScenarioFile(path) {
			continue
		}
		s, err := LoadScenario(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, errs
}

func isScenarioFile(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	var head struct {
		RequestURL string `json:"requestUrl"`
	}
	if json.Unmarshal(data, &head) != nil {
		return false
	}
	return head.RequestURL != ""
}

func (s *Scenario) resolve(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}

func (s *Scenario) requestBody() ([]byte, error) {
	if p := s.resolve(s.RequestFileName); p != "" {
		return os.ReadFile(p)
	}
	if len(s.RequestBody) > 0 {
		return s.RequestBody, nil
	}
	return nil, nil
}

func (s *Scenario) expectedBody() ([]byte, error) {
	if p := s.resolve(s.ResponseFileName); p != "" {
		return os.ReadFile(p)
	}
	return s.ResponseBody, nil
}

// Run executes a single scenario file against handler.
func Run(t *testing.T, handler http.Handler, path string, vars map[string]string) {
	t.Helper()
	s, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("testkit: load scenario %q: %v", path, err)
	}
	t.Run(s.Name, func(t *testing.T) {
		runScenario(t, handler, s, vars)
	})
}

// RunDir runs every scenario in dir as a subtest, in file-name order.
// {{name}} placeholders in the URL, headers and bodies are replaced from vars.
func RunDir(t *testing.T, handler http.Handler, dir string, vars map[string]string) {
	t.Helper()
	scenarios, errs := LoadAllFromDir(dir)
	for _, err := range errs {
		t.Errorf("%v", err)
	}
	for _, s := range scenarios {
		s := s
		t.Run(s.Name, func(t *testing.T) {
			runScenario(t, handler, s, vars)
		})
	}
}

func runScenario(t *testing.T, handler http.Handler, s *Scenario, vars map[string]string) {
	t.Helper()
	sub := substituter(vars)

	var reqBody io.Reader
	raw, err := s.requestBody()
	if err != nil {
		t.Fatalf("[%s] read request body: %v", s.Name, err)
	}
	if len(raw) > 0 {
		reqBody = bytes.NewReader([]byte(sub.Replace(string(raw))))
	}

	req := httptest.NewRequest(strings.ToUpper(s.RequestMethod), sub.Replace(s.RequestURL), reqBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range s.Headers {
		req.Header.Set(k, sub.Replace(v))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	AssertStatusCode(t, s, rec.Code)

	expected, err := s.expectedBody()
	if err != nil {
		t.Errorf("[%s] read expected body: %v", s.Name, err)
		return
	}
	if len(expected) > 0 {
		AssertJSONBody(t, s, []byte(sub.Replace(string(expected))), rec.Body.Bytes())
	}
}

func substituter(vars map[string]string) *strings.Replacer {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...)
}
