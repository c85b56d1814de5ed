package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/thereceipt/print-gateway/internal/config"
)

const testAdminToken = "test-token-0123456789abcdef"

func setAdminToken(t *testing.T) {
	t.Helper()
	t.Setenv("ADMIN_TOKEN", testAdminToken)
}

func TestAdminRejectsMissingToken(t *testing.T) {
	setAdminToken(t)
	s, _, _ := newTestServer(t, testPrinter())

	paths := []string{
		"/admin/status",
		"/api/printers",
		"/api/printers/front",
		"/api/printers/reload",
	}
	for _, path := range paths {
		w := doRequest(s, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token: status = %d, want 401", path, w.Code)
		}
	}
}

func TestAdminRejectsWrongToken(t *testing.T) {
	setAdminToken(t)
	s, _, _ := newTestServer(t, testPrinter())

	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/admin/status?token=wrong", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAdminDisabledWithoutEnv(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "")
	s, _, _ := newTestServer(t, testPrinter())

	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/admin/status?token=anything", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 when ADMIN_TOKEN unset", w.Code)
	}
}

func TestAdminRejectsShortToken(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "short")
	s, _, _ := newTestServer(t, testPrinter())

	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/admin/status?token=short", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for short token", w.Code)
	}
}

func TestAdminStatus(t *testing.T) {
	setAdminToken(t)
	s, _, _ := newTestServer(t, testPrinter())

	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/admin/status?token="+testAdminToken, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Success bool `json:"success"`
		Service struct {
			Name               string `json:"name"`
			Version            string `json:"version"`
			PrintersConfigured int    `json:"printers_configured"`
		} `json:"service"`
		System struct {
			PID int `json:"pid"`
		} `json:"system"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Service.Name != "print-gateway" || resp.Service.Version != "test" {
		t.Errorf("unexpected service block: %+v", resp.Service)
	}
	if resp.Service.PrintersConfigured != 1 {
		t.Errorf("printers_configured = %d, want 1", resp.Service.PrintersConfigured)
	}
	if resp.System.PID <= 0 {
		t.Errorf("pid = %d", resp.System.PID)
	}
}

func TestListPrinters(t *testing.T) {
	setAdminToken(t)
	s, _, _ := newTestServer(t, testPrinter())

	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/printers?token="+testAdminToken, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Success  bool             `json:"success"`
		Printers []config.Printer `json:"printers"`
		Total    int              `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Total != 1 || len(resp.Printers) != 1 {
		t.Fatalf("unexpected list response: %+v", resp)
	}
	if resp.Printers[0].ID != "front" {
		t.Errorf("unexpected printer: %+v", resp.Printers[0])
	}
}

func TestGetPrinter(t *testing.T) {
	setAdminToken(t)
	s, _, _ := newTestServer(t, testPrinter())

	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/printers/front?token="+testAdminToken, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	w = doRequest(s, httptest.NewRequest(http.MethodGet, "/api/printers/ghost?token="+testAdminToken, nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown printer status = %d, want 404", w.Code)
	}
}

func TestCreatePrinter(t *testing.T) {
	setAdminToken(t)
	s, _, _ := newTestServer(t, testPrinter())

	body := `{"id":"bar","name":"Bar","backend":{"type":"tcp9100","host":"10.0.0.7","port":9100}}`
	req := httptest.NewRequest(http.MethodPost, "/api/printers?token="+testAdminToken, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := doRequest(s, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	// Visible to the dispatch path immediately.
	p, ok := s.store.Get("bar")
	if !ok || p.Backend.Host != "10.0.0.7" {
		t.Errorf("created printer not published: %+v ok=%v", p, ok)
	}

	// And persisted to disk.
	cfg, err := config.Load(s.configPath)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if len(cfg.Printers) != 2 {
		t.Errorf("persisted printers = %d, want 2", len(cfg.Printers))
	}
}

func TestCreatePrinterValidation(t *testing.T) {
	setAdminToken(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing id", `{"name":"X","backend":{"type":"tcp9100"}}`, http.StatusBadRequest},
		{"missing name", `{"id":"x","backend":{"type":"tcp9100"}}`, http.StatusBadRequest},
		{"malformed json", `{`, http.StatusBadRequest},
		{"duplicate id", `{"id":"front","name":"Dup","backend":{"type":"tcp9100"}}`, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestServer(t, testPrinter())

			req := httptest.NewRequest(http.MethodPost, "/api/printers?token="+testAdminToken, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			if w := doRequest(s, req); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestUpdatePrinter(t *testing.T) {
	setAdminToken(t)
	s, _, _ := newTestServer(t, testPrinter())

	body := `{"name":"Renamed"}`
	req := httptest.NewRequest(http.MethodPut, "/api/printers/front?token="+testAdminToken, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := doRequest(s, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	p, _ := s.store.Get("front")
	if p.Name != "Renamed" {
		t.Errorf("name = %q, want Renamed", p.Name)
	}
	// Partial update leaves the backend untouched.
	if p.Backend.Host != "192.168.1.50" {
		t.Errorf("backend changed unexpectedly: %+v", p.Backend)
	}
}

func TestUpdateUnknownPrinter(t *testing.T) {
	setAdminToken(t)
	s, _, _ := newTestServer(t, testPrinter())

	req := httptest.NewRequest(http.MethodPut, "/api/printers/ghost?token="+testAdminToken, strings.NewReader(`{"name":"X"}`))
	req.Header.Set("Content-Type", "application/json")

	if w := doRequest(s, req); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDeletePrinter(t *testing.T) {
	setAdminToken(t)
	s, _, _ := newTestServer(t, testPrinter())

	w := doRequest(s, httptest.NewRequest(http.MethodDelete, "/api/printers/front?token="+testAdminToken, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	if _, ok := s.store.Get("front"); ok {
		t.Error("deleted printer still published")
	}

	w = doRequest(s, httptest.NewRequest(http.MethodDelete, "/api/printers/front?token="+testAdminToken, nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestReloadPrinters(t *testing.T) {
	setAdminToken(t)
	s, _, _ := newTestServer(t, testPrinter())

	// Change the file behind the server's back, then reload.
	added := testPrinter()
	added.ID = "kitchen"
	cfg := &config.Config{Printers: []config.Printer{testPrinter(), added}}
	if err := config.Save(s.configPath, cfg); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/printers/reload?token="+testAdminToken, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if s.store.Len() != 2 {
		t.Errorf("store size after reload = %d, want 2", s.store.Len())
	}
}
