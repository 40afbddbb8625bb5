// Package rpc chooses the JSON-RPC endpoint a session talks to.
package rpc

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ErrNoHealthyRPC is returned when no endpoint answered on the expected chain.
var ErrNoHealthyRPC = errors.New("no healthy RPC endpoint available")

// Algorithm defines how an endpoint is selected.
type Algorithm string

const (
	AlgorithmFastest  Algorithm = "fastest"
	AlgorithmFailover Algorithm = "failover"

	// Discard nodes more than this many blocks behind the best.
	staleBlockThreshold = 3
	// Keep a winner this long before probing again.
	cacheTTL = 5 * time.Minute
)

// Endpoint is one probed RPC URL.
type Endpoint struct {
	URL         string
	Latency     time.Duration
	BlockNumber uint64
	Err         error // nil when the node answered on the expected chain
}

// Healthy reports whether the probe succeeded.
func (e Endpoint) Healthy() bool { return e.Err == nil }

// Picker selects an endpoint from probe results.
type Picker struct {
	algo Algorithm
	clk  clock.Clock

	mu        sync.Mutex
	cachedURL string
	expiry    time.Time
}

// NewPicker creates a picker; an empty algorithm means fastest.
func NewPicker(algo Algorithm, clk clock.Clock) *Picker {
	if algo == "" {
		algo = AlgorithmFastest
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Picker{algo: algo, clk: clk}
}

// Cached returns the last fastest winner while it is fresh.
func (p *Picker) Cached() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cachedURL == "" || !p.clk.Now().Before(p.expiry) {
		return "", false
	}
	return p.cachedURL, true
}

// Pick selects an endpoint according to the algorithm.
func (p *Picker) Pick(endpoints []Endpoint) (Endpoint, error) {
	if p.algo == AlgorithmFailover {
		for _, e := range endpoints {
			if e.Healthy() {
				return e, nil
			}
		}
		return Endpoint{}, ErrNoHealthyRPC
	}
	return p.pickFastest(endpoints)
}

func (p *Picker) pickFastest(endpoints []Endpoint) (Endpoint, error) {
	var best uint64
	for _, e := range endpoints {
		if e.Healthy() && e.BlockNumber > best {
			best = e.BlockNumber
		}
	}

	var (
		winner Endpoint
		found  bool
		top    float64
	)
	for _, e := range endpoints {
		if !e.Healthy() || best-e.BlockNumber > staleBlockThreshold {
			continue
		}
		if s := score(e, best); !found || s > top {
			winner, top, found = e, s, true
		}
	}
	if !found {
		return Endpoint{}, ErrNoHealthyRPC
	}

	p.mu.Lock()
	p.cachedURL = winner.URL
	p.expiry = p.clk.Now().Add(cacheTTL)
	p.mu.Unlock()
	return winner, nil
}

// score favours low latency and loses a point per block behind the best.
func score(e Endpoint, best uint64) float64 {
	var s float64
	if ms := e.Latency.Milliseconds(); ms > 0 {
		s += 1000.0 / float64(ms)
	} else {
		s += 1000.0
	}
	return s + float64(staleBlockThreshold) - float64(best-e.BlockNumber)
}
