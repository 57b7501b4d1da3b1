package serp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/serpent/internal/bypass"
	"github.com/FranksOps/serpent/internal/fingerprint"
	"github.com/FranksOps/serpent/internal/metrics"
	"github.com/FranksOps/serpent/internal/storage"
	"github.com/FranksOps/serpent/pkg/httpclient"
	"github.com/FranksOps/serpent/pkg/proxy"
	"github.com/FranksOps/serpent/pkg/ratelimit"
	"github.com/FranksOps/serpent/pkg/useragent"
	"github.com/google/uuid"
)

// DefaultEndpoint is the search URL requests are sent to.
const DefaultEndpoint = "https://www.google.com/search"

// DefaultTimeout applies to a single page request.
const DefaultTimeout = 5 * time.Second

type contextKey string

const routeKey contextKey = "proxy_route"

// Observer is told about every page a paginator requested, after the page
// has been consumed.
type Observer interface {
	ObservePage(ctx context.Context, rec *storage.PageRecord)
}

// Config configures a Client.
type Config struct {
	// Endpoint defaults to DefaultEndpoint.
	Endpoint    string
	Fingerprint fingerprint.Profile
	UserAgents  useragent.Source
	Extractor   Extractor
	// Limiter is shared by every request the client sends.
	Limiter *ratelimit.Limiter
	// ProxyPool rotates proxies for requests that carry no explicit proxy.
	ProxyPool *proxy.Pool
	Detectors []bypass.Detector
	Observer  Observer
	Logger    *slog.Logger
	// RespectRobots refuses to search when the endpoint's robots.txt
	// disallows its path.
	RespectRobots bool
	// InsecureSkipVerify disables TLS verification. Only for tests.
	InsecureSkipVerify bool
}

// Client fetches SERP pages. One client may back any number of paginators.
type Client struct {
	cfg      Config
	endpoint *url.URL
	http     *httpclient.Client
	logger   *slog.Logger
	robots   robotsGate
}

// Page is one fetched SERP page.
type Page struct {
	Request    Request
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	// Detection names the bot-protection vendor if the page was a challenge.
	Detection string
}

// NewClient builds a Client, filling unset fields with defaults.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("serp: endpoint: %w", err)
	}
	if cfg.UserAgents == nil {
		cfg.UserAgents = useragent.NewPool(nil)
	}
	if cfg.Extractor == nil {
		ex, err := NewExtractor(DefaultSelectors())
		if err != nil {
			return nil, err
		}
		cfg.Extractor = ex
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// The proxy for a request travels in its context so one transport can
	// serve many routes.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if r, ok := req.Context().Value(routeKey).(*proxy.Route); ok {
			return r.For(req), nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.NewTransport(fingerprint.Options{
		Profile:            cfg.Fingerprint,
		Proxy:              proxyFunc,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("serp: transport: %w", err)
	}

	hc, err := httpclient.New(httpclient.Config{
		// Per-request deadlines come from Request.Timeout.
		Timeout:      2 * time.Minute,
		MaxRedirects: 5,
		UseCookieJar: true,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("serp: %w", err)
	}

	return &Client{cfg: cfg, endpoint: endpoint, http: hc, logger: cfg.Logger}, nil
}

// Fetch sends one page request. A non-2xx response is returned as a
// *httpclient.StatusError; the Page is still returned when a response arrived.
func (c *Client) Fetch(ctx context.Context, req Request) (*Page, error) {
	var route *proxy.Route
	if req.Proxy != "" {
		r, err := proxy.ParseRoute(req.Proxy)
		if err != nil {
			return nil, fmt.Errorf("serp: %w", err)
		}
		route = r
	}
	return c.fetch(ctx, req, route)
}

func (c *Client) fetch(ctx context.Context, req Request, route *proxy.Route) (*Page, error) {
	ua := c.cfg.UserAgents.UserAgent()
	if c.cfg.RespectRobots {
		if err := c.robots.check(ctx, c, c.endpoint, ua); err != nil {
			return nil, err
		}
	}

	if err := c.cfg.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("serp: rate limiter: %w", err)
	}

	pooled := false
	if route == nil && c.cfg.ProxyPool != nil {
		route = c.cfg.ProxyPool.Next()
		pooled = route != nil
	}
	if route != nil {
		ctx = context.WithValue(ctx, routeKey, route)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.cfg.Endpoint + "?" + req.Values().Encode()
	header := http.Header{}
	header.Set("User-Agent", ua)
	header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if req.Lang != "" {
		header.Set("Accept-Language", req.Lang)
	}

	c.logger.Debug("requesting page", "query", req.Query, "start", req.Start, "num", req.Num)

	start := time.Now()
	resp, err := c.http.Get(ctx, target, header)
	elapsed := time.Since(start)

	var statusErr *httpclient.StatusError
	if resp == nil {
		if pooled {
			_ = c.cfg.ProxyPool.MarkFailure(route)
			metrics.ProxyFailures.WithLabelValues(route.Redacted()).Inc()
		}
		return nil, fmt.Errorf("serp: %w", err)
	}
	if pooled {
		_ = c.cfg.ProxyPool.MarkSuccess(route)
	}

	page := &Page{
		Request:    req,
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		Duration:   elapsed,
		Detection:  bypass.Analyze(resp, c.cfg.Detectors),
	}
	if page.Detection != "" {
		c.logger.Warn("challenge page detected", "query", req.Query, "status", resp.StatusCode, "source", page.Detection)
	}

	if errors.As(err, &statusErr) {
		statusErr.Detection = page.Detection
		return page, statusErr
	}
	if err != nil {
		return page, fmt.Errorf("serp: %w", err)
	}
	return page, nil
}

// observe reports a finished page to metrics and the configured Observer.
func (c *Client) observe(ctx context.Context, req Request, page *Page, candidates, accepted int, err error) {
	rec := &storage.PageRecord{
		ID:         uuid.NewString(),
		Query:      req.Query,
		Start:      req.Start,
		Num:        req.Num,
		Candidates: candidates,
		Accepted:   accepted,
		CreatedAt:  time.Now().UTC(),
	}
	if page != nil {
		rec.URL = page.URL
		rec.StatusCode = page.StatusCode
		rec.Duration = page.Duration
		rec.DetectedBot = page.Detection != ""
		rec.DetectionSrc = page.Detection
	}
	if err != nil {
		rec.Error = err.Error()
	}

	metrics.RecordPage(rec)
	if c.cfg.Observer != nil {
		c.cfg.Observer.ObservePage(context.WithoutCancel(ctx), rec)
	}
}
