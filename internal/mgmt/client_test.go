package mgmt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckHost_Allowlist(t *testing.T) {
	allowed := []string{"api.provider.example"}

	if err := checkHost("https://api.provider.example", allowed); err != nil {
		t.Fatalf("allowlisted host rejected: %v", err)
	}
	for _, bad := range []string{
		"https://evil.example",
		"http://api.provider.example", // https only
		"https://api.provider.example.evil.example",
		"not a url",
		"",
	} {
		if err := checkHost(bad, allowed); !errors.Is(err, ErrHostNotAllowed) {
			t.Fatalf("expected ErrHostNotAllowed for %q, got %v", bad, err)
		}
	}
}

func TestPatchAuthConfig_SendsPatchAndBearer(t *testing.T) {
	var gotAuth string
	var gotPatch map[string]string
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotPatch)
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(Config{
		BaseURL:      srv.URL,
		ProjectRef:   "proj-1",
		Token:        "secret-token",
		AllowedHosts: []string{"127.0.0.1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	c.http = srv.Client()

	status, err := c.PatchAuthConfig(context.Background(), map[string]string{"mailer_subjects_confirmation": "Hi"})
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotPatch["mailer_subjects_confirmation"] != "Hi" {
		t.Fatalf("patch = %v", gotPatch)
	}
}

func TestPatchAuthConfig_UpstreamError(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, AllowedHosts: []string{"127.0.0.1"}})
	if err != nil {
		t.Fatal(err)
	}
	c.http = srv.Client()

	_, err = c.PatchAuthConfig(context.Background(), map[string]string{"k": "v"})
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusBadGateway {
		t.Fatalf("expected UpstreamError 502, got %v", err)
	}
}
