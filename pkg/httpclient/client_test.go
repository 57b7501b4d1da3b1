package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_GetSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "TestBrowser/1.0" {
			t.Errorf("expected forwarded User-Agent, got %q", got)
		}
		w.Header().Set("X-Test", "true")
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	client, err := New(Config{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := client.Get(context.Background(), ts.URL, http.Header{"User-Agent": {"TestBrowser/1.0"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("expected body ok, got %q", resp.Body)
	}
	if resp.Header.Get("X-Test") != "true" {
		t.Errorf("expected X-Test header, got %v", resp.Header)
	}
}

func TestClient_GetStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer ts.Close()

	client, _ := New(Config{})

	resp, err := client.Get(context.Background(), ts.URL+"/search?q=x", nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", se.StatusCode)
	}
	if resp == nil || string(resp.Body) != "slow down" {
		t.Errorf("expected response body alongside the status error, got %v", resp)
	}

	se.Detection = "GoogleSorry"
	if se.Error() != "httpclient: HTTP 429 for "+ts.URL+"/search?q=x (GoogleSorry challenge)" {
		t.Errorf("unexpected error text: %s", se.Error())
	}
}

func TestClient_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client, err := New(Config{Timeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.Get(context.Background(), ts.URL, nil); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestClient_Redirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1":
			http.Redirect(w, r, "/2", http.StatusFound)
		case "/2":
			http.Redirect(w, r, "/3", http.StatusFound)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer ts.Close()

	client, _ := New(Config{MaxRedirects: 1})
	if _, err := client.Get(context.Background(), ts.URL+"/1", nil); err == nil {
		t.Fatal("expected redirect limit error")
	}

	noRedir, _ := New(Config{MaxRedirects: -1})
	resp, err := noRedir.Get(context.Background(), ts.URL+"/1", nil)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusFound {
		t.Fatalf("expected 302 surfaced as StatusError, got %v", err)
	}
	if resp.StatusCode != http.StatusFound {
		t.Errorf("expected 302, got %d", resp.StatusCode)
	}
}

func TestClient_Cookies(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/set" {
			http.SetCookie(w, &http.Cookie{Name: "CONSENT", Value: "YES+"})
			return
		}
		c, err := r.Cookie("CONSENT")
		if err != nil || c.Value != "YES+" {
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer ts.Close()

	client, err := New(Config{UseCookieJar: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.Get(context.Background(), ts.URL+"/set", nil); err != nil {
		t.Fatalf("unexpected error on /set: %v", err)
	}
	if _, err := client.Get(context.Background(), ts.URL+"/check", nil); err != nil {
		t.Errorf("expected cookie to persist, got %v", err)
	}
}

func TestClient_Context(t *testing.T) {
	client, _ := New(Config{})

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	//nolint:staticcheck // nil context is the case under test
	if _, err := client.Do(nil, req); err == nil || err.Error() != "httpclient: context cannot be nil" {
		t.Errorf("expected nil context error, got %v", err)
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Get(ctx, ts.URL, nil); err == nil {
		t.Fatal("expected cancellation error")
	}
}
