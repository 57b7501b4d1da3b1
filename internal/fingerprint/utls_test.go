package fingerprint

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestNewTransport_Profiles(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	for _, p := range Profiles {
		t.Run(string(p), func(t *testing.T) {
			rt, err := NewTransport(Options{Profile: p, InsecureSkipVerify: true})
			if err != nil {
				t.Fatalf("unexpected error creating transport for %s: %v", p, err)
			}

			client := &http.Client{Transport: rt}
			resp, err := client.Get(ts.URL)
			if err != nil {
				t.Fatalf("request failed for profile %s: %v", p, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected 200 OK, got %d for profile %s", resp.StatusCode, p)
			}
			if resp.ProtoMajor != 1 {
				t.Errorf("expected HTTP/1.x, got %s", resp.Proto)
			}
		})
	}
}

func TestNewTransport_ProxyFunc(t *testing.T) {
	called := false
	proxyFn := func(r *http.Request) (*url.URL, error) {
		called = true
		return nil, nil
	}

	rt, err := NewTransport(Options{Profile: ProfileGo, Proxy: proxyFn})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr, ok := rt.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", rt)
	}
	if tr.Proxy == nil {
		t.Fatal("expected proxy func to be installed")
	}
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	_, _ = tr.Proxy(req)
	if !called {
		t.Error("expected installed proxy func to be the one supplied")
	}
}

func TestNewTransport_UnknownProfile(t *testing.T) {
	_, err := NewTransport(Options{Profile: Profile("netscape")})
	if err == nil {
		t.Fatal("expected error for unknown profile, got nil")
	}
	if err.Error() != `fingerprint: unknown profile "netscape"` {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestParseProfile(t *testing.T) {
	cases := map[string]Profile{
		"":        ProfileChrome,
		"Chrome":  ProfileChrome,
		" go ":    ProfileGo,
		"firefox": ProfileFirefox,
		"random":  ProfileRandom,
	}
	for in, want := range cases {
		got, err := ParseProfile(in)
		if err != nil {
			t.Errorf("ParseProfile(%q) returned error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseProfile(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseProfile("lynx"); err == nil {
		t.Error("expected error for unknown profile")
	}
}
