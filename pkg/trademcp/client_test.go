package trademcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:9464/"
	c := NewClient(baseURL)

	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.baseURL != "http://localhost:9464" {
		t.Errorf("expected baseURL without the trailing slash, got %q", c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func newOpsStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("GET /api/tools", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"name":"get_account_info","description":"d","read_only":true,"destructive":false}]`))
	})
	mux.HandleFunc("GET /api/journal", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") != "accepted" || r.URL.Query().Get("limit") != "5" {
			http.Error(w, `{"error":"unexpected query"}`, http.StatusBadRequest)
			return
		}
		w.Write([]byte(`[{"id":7,"reference":"abc","tool":"place_market_order","order_class":"simple",` +
			`"symbol":"AAPL","status":"accepted","order_ids":["o-1"],"created_at":"2024-03-01T15:04:05Z"}]`))
	})
	mux.HandleFunc("GET /api/journal/{reference}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"journal entry not found"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	srv := newOpsStub(t)
	c := NewClient(srv.URL)
	ctx := context.Background()

	ok, err := c.Healthy(ctx)
	if err != nil || !ok {
		t.Errorf("Healthy() = %v, %v", ok, err)
	}

	tools, err := c.Tools(ctx)
	if err != nil || len(tools) != 1 || !tools[0].ReadOnly {
		t.Errorf("Tools() = %+v, %v", tools, err)
	}

	entries, err := c.Journal(ctx, JournalFilter{Status: "accepted", Limit: 5})
	if err != nil {
		t.Fatalf("Journal: %v", err)
	}
	want := time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC)
	if len(entries) != 1 || entries[0].ID != 7 || entries[0].OrderIDs[0] != "o-1" || !entries[0].CreatedAt.Equal(want) {
		t.Errorf("Journal() = %+v", entries)
	}

	if _, err := c.JournalEntry(ctx, "missing"); err == nil {
		t.Error("JournalEntry() of a missing reference returned no error")
	}
}

func TestClientUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	if _, err := c.Healthy(context.Background()); err == nil {
		t.Error("Healthy() against a closed port returned no error")
	}
}
