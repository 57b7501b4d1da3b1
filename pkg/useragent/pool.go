package useragent

import (
	"crypto/rand"
	"math/big"
	"sync/atomic"
)

// DefaultPool is a set of current desktop browser User-Agents. Search
// endpoints serve the classic result markup to these.
var DefaultPool = []string{
	// Chrome Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36",
	// Chrome Mac
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	// Chrome Linux
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	// Firefox
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0",
	// Safari Mac
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15",
	// Edge Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
}

// Source hands out one User-Agent string per call.
type Source interface {
	UserAgent() string
}

// Mode selects how a Pool picks the next User-Agent.
type Mode string

const (
	ModeRandom     Mode = "random"
	ModeSequential Mode = "sequential"
)

// Pool is a Source backed by a fixed list of User-Agents.
// It is safe for concurrent use.
type Pool struct {
	uas     []string
	mode    Mode
	counter atomic.Uint64
}

// NewPool creates a random-mode pool. An empty list falls back to DefaultPool.
func NewPool(uas []string) *Pool {
	return NewPoolWithMode(uas, ModeRandom)
}

// NewPoolWithMode creates a pool with an explicit selection mode. Unknown
// modes behave as ModeRandom.
func NewPoolWithMode(uas []string, mode Mode) *Pool {
	if len(uas) == 0 {
		uas = DefaultPool
	}
	copied := make([]string, len(uas))
	copy(copied, uas)
	if mode != ModeSequential {
		mode = ModeRandom
	}
	return &Pool{uas: copied, mode: mode}
}

// UserAgent implements Source.
func (p *Pool) UserAgent() string {
	if p.mode == ModeSequential {
		return p.sequential()
	}
	return p.random()
}

func (p *Pool) sequential() string {
	if len(p.uas) == 0 {
		return ""
	}
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

func (p *Pool) random() string {
	if len(p.uas) == 0 {
		return ""
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.uas))))
	if err != nil {
		return p.sequential()
	}
	return p.uas[n.Int64()]
}

// Len reports how many User-Agents the pool holds.
func (p *Pool) Len() int {
	return len(p.uas)
}

// Static is a Source that always returns the same string.
type Static string

// UserAgent implements Source.
func (s Static) UserAgent() string { return string(s) }
