package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewHTTPClientUsesConfigTimeout(t *testing.T) {
	client := NewHTTPClient(Options{Timeout: 45 * time.Second})
	if client.Timeout() != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %s", client.Timeout())
	}

	client = NewHTTPClient(Options{})
	if client.Timeout() != 30*time.Second {
		t.Fatalf("expected default timeout 30s, got %s", client.Timeout())
	}
}

func TestRequestSendsHeadersAndBody(t *testing.T) {
	var gotHeader, gotMethod string
	var gotBody []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Test")
		gotMethod = r.Method
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Etag", `"abc"`)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("payload"))
	}))
	defer upstream.Close()

	client := NewHTTPClient(Options{})
	defer client.Close()

	headers := http.Header{}
	headers.Set("X-Test", "1")
	resp, err := client.Request(context.Background(), upstream.URL, http.MethodPost, []byte("body"), headers)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != http.StatusTeapot {
		t.Fatalf("non-2xx status should be returned as-is, got %d", resp.StatusCode)
	}
	if string(resp.Data) != "payload" {
		t.Fatalf("unexpected body %q", resp.Data)
	}
	if resp.Header.Get("Etag") != `"abc"` {
		t.Fatalf("etag header missing: %v", resp.Header)
	}
	if gotHeader != "1" || gotMethod != http.MethodPost || string(gotBody) != "body" {
		t.Fatalf("upstream saw header=%q method=%q body=%q", gotHeader, gotMethod, gotBody)
	}
}

func TestRequestDoesNotFollowRedirects(t *testing.T) {
	hits := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path == "/start" {
			w.Header().Set("Location", "/final")
			w.WriteHeader(http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("final"))
	}))
	defer upstream.Close()

	client := NewHTTPClient(Options{})
	resp, err := client.Request(context.Background(), upstream.URL+"/start", http.MethodGet, nil, nil)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302 to surface, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Location") != "/final" {
		t.Fatalf("location header missing")
	}
	if hits != 1 {
		t.Fatalf("expected a single upstream hit, got %d", hits)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	client := NewHTTPClient(Options{})
	client.Close()
	client.Close()
}
