package serp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/FranksOps/serpent/pkg/httpclient"
	"github.com/temoto/robotstxt"
)

// ErrDisallowed is returned when RespectRobots is set and the endpoint's
// robots.txt forbids the search path for the current User-Agent.
var ErrDisallowed = errors.New("serp: search path disallowed by robots.txt")

// robotsGate fetches the endpoint's robots.txt once and answers path checks
// from it. Unreachable or missing files allow everything.
type robotsGate struct {
	once sync.Once
	data *robotstxt.RobotsData
}

func (g *robotsGate) check(ctx context.Context, c *Client, endpoint *url.URL, ua string) error {
	g.once.Do(func() {
		// The result is cached for the client's lifetime, so one cancelled
		// caller must not decide it.
		data, err := fetchRobots(context.WithoutCancel(ctx), c.http, endpoint, ua)
		if err != nil {
			c.logger.Debug("robots.txt unavailable, allowing", "host", endpoint.Host, "err", err)
			return
		}
		g.data = data
	})

	if g.data == nil {
		return nil
	}
	if !g.data.FindGroup(ua).Test(endpoint.Path) {
		return fmt.Errorf("%w: %s", ErrDisallowed, endpoint.Path)
	}
	return nil
}

func fetchRobots(ctx context.Context, hc *httpclient.Client, endpoint *url.URL, ua string) (*robotstxt.RobotsData, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	robotsURL := url.URL{Scheme: endpoint.Scheme, Host: endpoint.Host, Path: "/robots.txt"}

	header := http.Header{}
	header.Set("User-Agent", ua)

	res, err := hc.Get(ctx, robotsURL.String(), header)
	if res == nil {
		return nil, err
	}
	if res.StatusCode >= 400 {
		return nil, nil
	}

	data, err := robotstxt.FromBytes(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}
