package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Route is a proxy bound to a request scheme. A raw proxy string that
// begins with "https" serves HTTPS requests only; anything else serves plain
// HTTP requests only. An empty Scheme serves every request.
type Route struct {
	URL    *url.URL
	Scheme string
}

// ParseRoute parses a raw proxy string into a Route. Missing schemes default
// to http:// for dialing, which also binds the route to HTTP traffic.
func ParseRoute(raw string) (*Route, error) {
	raw = strings.TrimSpace(raw)
	r, err := ParseAnyRoute(raw)
	if err != nil {
		return nil, err
	}
	r.Scheme = "http"
	if strings.HasPrefix(raw, "https") {
		r.Scheme = "https"
	}
	return r, nil
}

// ParseAnyRoute parses a raw proxy string into a Route that serves both
// HTTP and HTTPS requests. Pool entries are parsed this way.
func ParseAnyRoute(raw string) (*Route, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("proxy: empty proxy string")
	}

	dial := raw
	if !strings.Contains(dial, "://") {
		dial = "http://" + dial
	}
	u, err := url.Parse(dial)
	if err != nil {
		return nil, fmt.Errorf("proxy: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy: missing host in %q", raw)
	}

	return &Route{URL: u}, nil
}

// For returns the proxy URL to use for req, or nil when the route does not
// cover the request's scheme.
func (r *Route) For(req *http.Request) *url.URL {
	if r == nil || req == nil || req.URL == nil {
		return nil
	}
	if r.Scheme == "" || strings.EqualFold(req.URL.Scheme, r.Scheme) {
		return r.URL
	}
	return nil
}

func (r *Route) String() string {
	if r == nil || r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Redacted is String with any password masked, for logs and metric labels.
func (r *Route) Redacted() string {
	if r == nil || r.URL == nil {
		return ""
	}
	return r.URL.Redacted()
}
