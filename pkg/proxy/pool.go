package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// entry tracks the health of one route in the pool.
type entry struct {
	route         *Route
	failures      int
	successes     int
	lastUsed      time.Time
	disabled      bool
	disabledUntil time.Time
}

// Pool rotates through a set of proxy routes, benching routes that fail
// repeatedly for a cooldown period.
type Pool struct {
	mu           sync.Mutex
	entries      []*entry
	currentIndex int
	maxFailures  int
	cooldown     time.Duration
}

// Config defines settings for the Pool.
type Config struct {
	// MaxFailures before a route is benched.
	MaxFailures int
	// Cooldown is how long a benched route stays out of rotation.
	Cooldown time.Duration
}

var ErrNotInPool = errors.New("proxy: route not found in pool")

// NewPool creates an empty pool. Zero config values get defaults.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
	}
}

// LoadFile reads one proxy per line. Blank lines and '#' comments are skipped.
func (p *Pool) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var raws []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raws = append(raws, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("proxy: %w", err)
	}

	return p.Add(raws...)
}

// Add parses raw proxy strings with ParseAnyRoute and appends them to the
// pool. Pooled routes serve both HTTP and HTTPS requests.
func (p *Pool) Add(raws ...string) error {
	routes := make([]*entry, 0, len(raws))
	for _, raw := range raws {
		r, err := ParseAnyRoute(raw)
		if err != nil {
			return err
		}
		routes = append(routes, &entry{route: r})
	}

	p.mu.Lock()
	p.entries = append(p.entries, routes...)
	p.mu.Unlock()
	return nil
}

// Len reports the number of routes in the pool, healthy or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Next returns the next healthy route, or nil if the pool is empty or every
// route is cooling down.
func (p *Pool) Next() *Route {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.entries) == 0 {
		return nil
	}

	now := time.Now()
	startIndex := p.currentIndex

	for {
		e := p.entries[p.currentIndex]
		p.currentIndex = (p.currentIndex + 1) % len(p.entries)

		if e.disabled && now.After(e.disabledUntil) {
			e.disabled = false
			e.failures = 0
		}

		if !e.disabled {
			e.lastUsed = now
			return e.route
		}

		if p.currentIndex == startIndex {
			return nil
		}
	}
}

// MarkSuccess records a successful request through r.
func (p *Pool) MarkSuccess(r *Route) error {
	if r == nil {
		return errors.New("proxy: route cannot be nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.find(r)
	if e == nil {
		return ErrNotInPool
	}
	e.successes++
	if e.failures > 0 {
		e.failures--
	}
	return nil
}

// MarkFailure records a failed request through r, benching it once it
// reaches the failure limit.
func (p *Pool) MarkFailure(r *Route) error {
	if r == nil {
		return errors.New("proxy: route cannot be nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.find(r)
	if e == nil {
		return ErrNotInPool
	}
	e.failures++
	if e.failures >= p.maxFailures {
		e.disabled = true
		e.disabledUntil = time.Now().Add(p.cooldown)
	}
	return nil
}

// find must be called with the lock held.
func (p *Pool) find(r *Route) *entry {
	target := r.String()
	for _, e := range p.entries {
		if e.route == r || e.route.String() == target {
			return e
		}
	}
	return nil
}
