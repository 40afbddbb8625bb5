package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trustless-academy/academy/internal/chain"
)

// ErrWrongChain is set on an endpoint that serves a different chain.
var ErrWrongChain = errors.New("endpoint serves a different chain")

const probeTimeout = 5 * time.Second

// Probe pings url and checks that it serves chainID. A nil chainID skips the
// chain check.
func Probe(ctx context.Context, url string, chainID *big.Int) Endpoint {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	c := chain.NewEVMClient(url)
	latency, block, err := c.Ping(ctx)
	ep := Endpoint{URL: url, Latency: latency, BlockNumber: block, Err: err}
	if err != nil || chainID == nil {
		return ep
	}
	got, err := c.ChainID(ctx)
	switch {
	case err != nil:
		ep.Err = err
	case got.Cmp(chainID) != 0:
		ep.Err = fmt.Errorf("%w: got %s, want %s", ErrWrongChain, got, chainID)
	}
	return ep
}

// ProbeAll probes every url in parallel. Results keep the input order.
func ProbeAll(ctx context.Context, urls []string, chainID *big.Int) []Endpoint {
	out := make([]Endpoint, len(urls))
	var g errgroup.Group
	for i, u := range urls {
		g.Go(func() error {
			out[i] = Probe(ctx, u, chainID)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Select probes urls and returns the one the picker prefers. A single url is
// still probed so a wrong chain is caught before any transaction is signed.
func Select(ctx context.Context, p *Picker, urls []string, chainID *big.Int) (string, error) {
	if len(urls) == 0 {
		return "", ErrNoHealthyRPC
	}
	if u, ok := p.Cached(); ok {
		return u, nil
	}
	results := ProbeAll(ctx, urls, chainID)
	winner, err := p.Pick(results)
	if err != nil {
		for _, r := range results {
			if errors.Is(r.Err, ErrWrongChain) {
				return "", fmt.Errorf("%s: %w", r.URL, r.Err)
			}
		}
		return "", err
	}
	return winner.URL, nil
}
