package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"facilitysync/internal/auth"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenCommandIssuesParsableToken(t *testing.T) {
	out, err := execute(t, "token", "--secret", "s3cret", "--subject", "ops", "--role", "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	claims, err := auth.ParseToken([]byte("s3cret"), strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.Sub != "ops" || claims.Role != "admin" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenCommandRejectsUnknownRole(t *testing.T) {
	_, err := execute(t, "token", "--secret", "s3cret", "--subject", "ops", "--role", "root")
	if err == nil || !strings.Contains(err.Error(), "--role") {
		t.Fatalf("expected role error, got %v", err)
	}
}

func TestSyncCyclesWaitsForJob(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer op-token" {
			t.Errorf("unexpected authorization header %q", r.Header.Get("Authorization"))
		}
		switch r.URL.Path {
		case "/sync/cycles/nsls2":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id": "job-7", "action": "synchronize_cycles", "processing_status": "pending",
				"sync_parameters": map[string]string{"facility": "nsls2"},
			})
		case "/jobs/check-status/job-7":
			_ = json.NewEncoder(w).Encode(map[string]any{"job_id": "job-7", "status": "succeeded"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	out, err := execute(t, "--url", server.URL, "--token", "op-token", "sync", "cycles", "nsls2", "--wait")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "job-7") || !strings.Contains(out, "succeeded") {
		t.Fatalf("unexpected output %q", out)
	}
	if len(paths) != 2 {
		t.Fatalf("expected sync and one status poll, got %v", paths)
	}
}

func TestSyncUpdateCyclesPassesCycle(t *testing.T) {
	var rawQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "job-8", "processing_status": "pending"})
	}))
	defer server.Close()

	if _, err := execute(t, "--url", server.URL, "sync", "update-cycles", "nsls2", "--cycle", "2024-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rawQuery != "cycle=2024-1" {
		t.Fatalf("unexpected query %q", rawQuery)
	}
}

func TestStatusReportsFailedJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"job_id": "job-9", "status": "failed", "error": "facility \"als\" could not be resolved"})
	}))
	defer server.Close()

	out, err := execute(t, "--url", server.URL, "status", "job-9")
	if err == nil {
		t.Fatal("expected failed job to return an error")
	}
	if !strings.Contains(out, "could not be resolved") {
		t.Fatalf("expected job error in output, got %q", out)
	}
}

func TestAPIErrorCarriesCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": "UNKNOWN_FACILITY", "error": "Unknown facility \"als\""})
	}))
	defer server.Close()

	_, err := execute(t, "--url", server.URL, "sync", "cycles", "als")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Code != "UNKNOWN_FACILITY" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}
