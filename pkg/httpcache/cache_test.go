package httpcache

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTransportCachesGET(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	store := NewMemory(time.Minute, discardLogger())
	httpClient := srv.Client()
	transport := NewTransport(store, func(_ context.Context, req *http.Request) (*http.Response, error) {
		return httpClient.Do(req)
	}, discardLogger())

	for i := 0; i < 3; i++ {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/resource/Lead", http.NoBody)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := transport.Do(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if string(body) != `{"data":[]}` {
			t.Fatalf("body = %s", body)
		}
		if i > 0 && resp.Header.Get("X-From-Cache") != "true" {
			t.Errorf("request %d not served from cache", i)
		}
	}

	if calls != 1 {
		t.Errorf("origin hit %d times, want 1", calls)
	}
}

func TestTransportSkipsWrites(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	store := NewMemory(time.Minute, discardLogger())
	httpClient := srv.Client()
	transport := NewTransport(store, func(_ context.Context, req *http.Request) (*http.Response, error) {
		return httpClient.Do(req)
	}, discardLogger())

	for i := 0; i < 2; i++ {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/resource/Lead", http.NoBody)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := transport.Do(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
	}

	if calls != 2 {
		t.Errorf("origin hit %d times, want 2 (writes must not be cached)", calls)
	}
}

func TestTransportFlushesAfterWrite(t *testing.T) {
	getCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			getCalls++
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	store := NewMemory(time.Minute, discardLogger())
	httpClient := srv.Client()
	transport := NewTransport(store, func(_ context.Context, req *http.Request) (*http.Response, error) {
		return httpClient.Do(req)
	}, discardLogger())

	do := func(method string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(method, srv.URL+"/api/resource/Lead", http.NoBody)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := transport.Do(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		return resp
	}

	do(http.MethodGet)
	do(http.MethodGet) // warm, served from the store
	if getCalls != 1 {
		t.Fatalf("origin GETs before write = %d, want 1", getCalls)
	}

	do(http.MethodPost)

	resp := do(http.MethodGet)
	if resp.Header.Get("X-From-Cache") == "true" {
		t.Error("list read after a write still served from cache")
	}
	if getCalls != 2 {
		t.Errorf("origin GETs after write = %d, want 2", getCalls)
	}
}

func TestStoreRoundTripsThroughDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := New(ctx, dir, time.Hour, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	store.set(key(http.MethodGet, "https://erp.example.com/api/resource/Employee", nil), []byte("cached"))
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := New(ctx, dir, time.Hour, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = reopened.Close() }()

	data, found := reopened.get(key(http.MethodGet, "https://erp.example.com/api/resource/Employee", nil))
	if !found || string(data) != "cached" {
		t.Errorf("entry not recovered from disk: found=%v data=%q", found, data)
	}
}

func TestStoreExpiry(t *testing.T) {
	store := NewMemory(10*time.Millisecond, discardLogger())
	store.set("k", []byte("v"))
	time.Sleep(30 * time.Millisecond)
	if _, found := store.get("k"); found {
		t.Error("expired entry still served")
	}
}
