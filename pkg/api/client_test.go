package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConnectionStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("siteId"); got != "default" {
			t.Fatalf("siteId query = %q, want %q", got, "default")
		}
		json.NewEncoder(w).Encode(ConnectionStatus{Internet: "OK", UpdateSite: "OK"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	status, err := c.ConnectionStatus("default")
	if err != nil {
		t.Fatalf("ConnectionStatus: %v", err)
	}
	if status.Internet != "OK" || status.UpdateSite != "OK" {
		t.Fatalf("status = %+v, want both OK", status)
	}
}

func TestUpgradeReturnsJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		json.NewEncoder(w).Encode(map[string]int64{"jobId": 42})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	jobID, err := c.Upgrade("default", "git")
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if jobID != 42 {
		t.Fatalf("jobID = %d, want 42", jobID)
	}
}

func TestDecodeJSONErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.ConnectionStatus(""); err == nil {
		t.Fatal("expected an error on a 500 response")
	}
}
