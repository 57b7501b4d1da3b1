package serp

import (
	"bytes"
	"context"
	"iter"
	"time"

	"github.com/FranksOps/serpent/internal/metrics"
	"github.com/FranksOps/serpent/pkg/ratelimit"
)

// Defaults applied by the paginators to zero-valued options.
const (
	DefaultNum           = 10
	DefaultDesiredNum    = 100
	DefaultLang          = "en"
	DefaultFileType      = "pdf"
	DefaultTarget        = 20
	DefaultMaxEmptyPages = 3
	DefaultMaxStalls     = 3
)

// SearchOptions tune a single paginator invocation.
type SearchOptions struct {
	// Num is the number of results Search aims for; zero requests nothing.
	// For SearchDesired it caps the page size and zero means
	// DefaultDesiredNum.
	Num  int
	Lang string
	// Proxy is a raw proxy string; see proxy.ParseRoute for scheme binding.
	Proxy string
	// SleepInterval is paused after each page, jittered by Jitter.
	SleepInterval time.Duration
	Jitter        float64
	// Timeout bounds each page request.
	Timeout time.Duration
	// MaxEmptyPages stops Search after that many consecutive pages without
	// a single candidate. Negative disables the guard.
	MaxEmptyPages int
}

// DefaultSearchOptions returns the options of a plain search for DefaultNum
// results.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Num:           DefaultNum,
		Lang:          DefaultLang,
		Timeout:       DefaultTimeout,
		MaxEmptyPages: DefaultMaxEmptyPages,
	}
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.Lang == "" {
		o.Lang = DefaultLang
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxEmptyPages == 0 {
		o.MaxEmptyPages = DefaultMaxEmptyPages
	}
	return o
}

func (o SearchOptions) pacer() ratelimit.Pacer {
	return ratelimit.Pacer{Interval: o.SleepInterval, Jitter: o.Jitter}
}

func (o SearchOptions) request(query string, start, num int) Request {
	return Request{
		Query:   query,
		Lang:    o.Lang,
		Num:     num,
		Start:   start,
		Proxy:   o.Proxy,
		Timeout: o.Timeout,
	}
}

// DesiredOptions tune SearchDesired.
type DesiredOptions struct {
	SearchOptions
	// Criteria.Whitelist nil means DefaultWhitelist(). A zero Target
	// requests nothing.
	Criteria Criteria
	// MaxStalls stops the paginator after that many consecutive pages with
	// no accepted result.
	MaxStalls int
}

// DefaultDesiredOptions returns the options of a filtered search for
// DefaultTarget PDF links on the default whitelist.
func DefaultDesiredOptions() DesiredOptions {
	o := DesiredOptions{
		SearchOptions: DefaultSearchOptions(),
		Criteria: Criteria{
			FileType:  DefaultFileType,
			Whitelist: DefaultWhitelist(),
			Target:    DefaultTarget,
		},
		MaxStalls: DefaultMaxStalls,
	}
	o.Num = DefaultDesiredNum
	return o
}

func (o DesiredOptions) withDefaults() DesiredOptions {
	o.SearchOptions = o.SearchOptions.withDefaults()
	if o.Num <= 0 {
		o.Num = DefaultDesiredNum
	}
	if o.Criteria.FileType == "" {
		o.Criteria.FileType = DefaultFileType
	}
	if o.Criteria.Whitelist == nil {
		o.Criteria.Whitelist = DefaultWhitelist()
	}
	if o.MaxStalls <= 0 {
		o.MaxStalls = DefaultMaxStalls
	}
	return o
}

// Search returns a lazy sequence of results for term. Pages are fetched only
// as the consumer pulls; breaking out of the loop stops further requests.
//
// The offset advances once per yielded result, so a page holding more
// results than the remaining budget overshoots opts.Num. A request error is
// yielded once and ends the sequence.
func (c *Client) Search(ctx context.Context, term string, opts SearchOptions) iter.Seq2[Result, error] {
	opts = opts.withDefaults()
	query := EscapeQuery(term)

	return func(yield func(Result, error) bool) {
		start, empty := 0, 0
		for start < opts.Num {
			req := opts.request(query, start, opts.Num-start)

			results, page, err := c.page(ctx, req)
			if err != nil {
				c.observe(ctx, req, page, 0, 0, err)
				yield(Result{}, err)
				return
			}

			n := 0
			for r := range results {
				n++
				start++
				metrics.ResultsTotal.WithLabelValues("plain").Inc()
				if !yield(r, nil) {
					c.observe(ctx, req, page, n, n, nil)
					return
				}
			}
			c.observe(ctx, req, page, n, n, nil)

			if n == 0 {
				empty++
			} else {
				empty = 0
			}
			if opts.MaxEmptyPages > 0 && empty >= opts.MaxEmptyPages {
				metrics.Stalls.WithLabelValues("plain").Inc()
				c.logger.Debug("stopping after empty pages", "query", query, "pages", empty, "yielded", start)
				return
			}

			if !c.sleep(ctx, opts.pacer(), yield) {
				return
			}
		}
	}
}

// SearchDesired returns a lazy sequence of results whose URL ends with
// ".<FileType>" and whose host contains a whitelisted domain. No URL is
// yielded twice. The sequence ends when Target results were yielded or after
// MaxStalls consecutive pages without an accepted result.
func (c *Client) SearchDesired(ctx context.Context, term string, opts DesiredOptions) iter.Seq2[Result, error] {
	opts = opts.withDefaults()
	query := EscapeQuery(term)
	crit := opts.Criteria

	return func(yield func(Result, error) bool) {
		seen := make(map[string]struct{})
		total, stalls := 0, 0

		for total < crit.Target {
			req := opts.request(query, total, min(crit.Target-total, opts.Num))

			results, page, err := c.page(ctx, req)
			if err != nil {
				c.observe(ctx, req, page, 0, 0, err)
				yield(Result{}, err)
				return
			}

			candidates, accepted := 0, 0
			for r := range results {
				candidates++
				if reason := crit.Check(r.URL, seen); reason != "" {
					metrics.FilterRejections.WithLabelValues(reason).Inc()
					continue
				}
				seen[r.URL] = struct{}{}
				total++
				accepted++
				metrics.ResultsTotal.WithLabelValues("desired").Inc()
				c.logger.Debug("accepted link", "query", query, "url", r.URL, "total", total)

				if !yield(r, nil) {
					c.observe(ctx, req, page, candidates, accepted, nil)
					return
				}
				if total >= crit.Target {
					break
				}
			}
			c.observe(ctx, req, page, candidates, accepted, nil)

			if accepted == 0 {
				stalls++
			} else {
				stalls = 0
			}
			if stalls >= opts.MaxStalls {
				metrics.Stalls.WithLabelValues("desired").Inc()
				c.logger.Debug("stopping after unproductive pages", "query", query, "pages", stalls, "total", total)
				return
			}

			if total < crit.Target {
				if !c.sleep(ctx, opts.pacer(), yield) {
					return
				}
			}
		}
	}
}

// page fetches and extracts one SERP page.
func (c *Client) page(ctx context.Context, req Request) (iter.Seq[Result], *Page, error) {
	page, err := c.Fetch(ctx, req)
	if err != nil {
		return nil, page, err
	}
	results, err := c.cfg.Extractor.Extract(bytes.NewReader(page.Body))
	if err != nil {
		return nil, page, err
	}
	return results, page, nil
}

// sleep pauses between pages. A cancelled context is yielded as the final
// element and reported as false.
func (c *Client) sleep(ctx context.Context, p ratelimit.Pacer, yield func(Result, error) bool) bool {
	if p.Interval > 0 {
		c.logger.Debug("sleeping between pages", "interval", p.Interval)
	}
	if err := p.Wait(ctx); err != nil {
		yield(Result{}, err)
		return false
	}
	return true
}

// URLs adapts a result sequence to its bare URLs.
func URLs(seq iter.Seq2[Result, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for r, err := range seq {
			if err != nil {
				yield("", err)
				return
			}
			if !yield(r.URL, nil) {
				return
			}
		}
	}
}

// Collect drains seq into a slice. Results gathered before an error are
// returned along with it.
func Collect(seq iter.Seq2[Result, error]) ([]Result, error) {
	var out []Result
	for r, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}
