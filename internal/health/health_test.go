package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func readyz(t *testing.T, h *Handler) (int, result) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode readyz body: %v", err)
	}
	return rec.Code, body
}

func TestHealthzAlwaysOK(t *testing.T) {
	rec := httptest.NewRecorder()
	New().Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want JSON", ct)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestReadyzChecks(t *testing.T) {
	pass := func(context.Context) error { return nil }
	storeDown := func(context.Context) error { return errors.New("database is locked") }
	llmDown := func(context.Context) error { return errors.New("no healthy backend") }

	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name: "store and llm healthy",
			checkers: []Checker{
				{Name: "store", Check: pass},
				{Name: "llm", Check: pass},
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"store": "ok", "llm": "ok"},
		},
		{
			name: "store down fails readiness",
			checkers: []Checker{
				{Name: "store", Check: storeDown},
				{Name: "llm", Check: pass},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"store": "fail: database is locked", "llm": "ok"},
		},
		{
			name: "everything down",
			checkers: []Checker{
				{Name: "store", Check: storeDown},
				{Name: "llm", Check: llmDown},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{
				"store": "fail: database is locked",
				"llm":   "fail: no healthy backend",
			},
		},
		{
			name:       "no checkers is trivially ready",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := readyz(t, New(tt.checkers...))
			if code != tt.wantCode {
				t.Errorf("status code = %d, want %d", code, tt.wantCode)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			for name, want := range tt.wantChecks {
				if got := body.Checks[name]; got != want {
					t.Errorf("check %s = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestStoreChecker(t *testing.T) {
	_, body := readyz(t, New(StoreChecker(func(context.Context) error { return nil })))
	if body.Checks["store"] != "ok" {
		t.Errorf("store check = %q, want ok", body.Checks["store"])
	}

	code, body := readyz(t, New(StoreChecker(func(context.Context) error {
		return errors.New("ping: connection refused")
	})))
	if code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if body.Checks["store"] != "fail: ping: connection refused" {
		t.Errorf("store check = %q", body.Checks["store"])
	}
}

func TestProviderChecker(t *testing.T) {
	// A deployment without cognition stays ready; agents fall back.
	if _, body := readyz(t, New(ProviderChecker(false, nil))); body.Status != "ok" {
		t.Errorf("unconfigured provider: status = %q, want ok", body.Status)
	}

	// Configured but never constructed means misconfiguration.
	code, body := readyz(t, New(ProviderChecker(true, nil)))
	if code != http.StatusServiceUnavailable || body.Status != "fail" {
		t.Errorf("missing provider: code = %d status = %q, want 503 fail", code, body.Status)
	}
}

func TestRegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	New(Checker{Name: "store", Check: func(context.Context) error { return nil }}).Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestReadyzHonorsCancelledRequest(t *testing.T) {
	h := New(Checker{Name: "store", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
