package chain

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// HeadSource delivers new block numbers. The channel is closed when ctx ends.
type HeadSource interface {
	Heads(ctx context.Context) <-chan uint64
}

// BlockNumberer is the one RPC a polling head source needs.
type BlockNumberer interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// PollingHeads polls eth_blockNumber on a jittered interval and emits each
// block number greater than the last one seen.
type PollingHeads struct {
	Client   BlockNumberer
	Interval time.Duration
	Jitter   time.Duration
	Clock    clock.Clock
	Log      *zap.Logger
}

// Heads starts polling in a goroutine.
func (p *PollingHeads) Heads(ctx context.Context) <-chan uint64 {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	out := make(chan uint64, 1)

	go func() {
		defer close(out)
		var last uint64
		for {
			n, err := p.Client.BlockNumber(ctx)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return
				}
				log.Debug("head poll failed", zap.Error(err))
			case n > last:
				last = n
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-clk.After(Jittered(p.Interval, p.Jitter)):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Jittered returns interval shifted by a uniform random offset in
// [-jitter, +jitter], never below a quarter of interval.
func Jittered(interval, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return interval
	}
	d := interval + time.Duration(rand.Int64N(int64(2*jitter)+1)) - jitter
	if floor := interval / 4; d < floor {
		return floor
	}
	return d
}

// SubscribedHeads follows newHeads over a websocket endpoint and falls back to
// Fallback whenever the subscription cannot be made or drops.
type SubscribedHeads struct {
	WSURL    string
	Fallback HeadSource
	Log      *zap.Logger
}

// Heads subscribes to new heads, forwarding block numbers. On failure it hands
// over to the fallback source for the remaining lifetime of ctx.
func (s *SubscribedHeads) Heads(ctx context.Context) <-chan uint64 {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	out := make(chan uint64, 1)

	go func() {
		defer close(out)
		if err := s.follow(ctx, out); err != nil && ctx.Err() == nil {
			log.Warn("head subscription unavailable, polling instead", zap.Error(err))
		}
		if ctx.Err() != nil || s.Fallback == nil {
			return
		}
		for n := range s.Fallback.Heads(ctx) {
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (s *SubscribedHeads) follow(ctx context.Context, out chan<- uint64) error {
	cli, err := ethclient.DialContext(ctx, s.WSURL)
	if err != nil {
		return err
	}
	defer cli.Close()

	headers := make(chan *types.Header, 16)
	sub, err := cli.SubscribeNewHead(ctx, headers)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case h := <-headers:
			select {
			case out <- h.Number.Uint64():
			case <-ctx.Done():
				return nil
			}
		case err := <-sub.Err():
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

// NewHeadSource picks a subscription-backed source when wsURL is a websocket
// endpoint and a polling source otherwise.
func NewHeadSource(client BlockNumberer, wsURL string, interval, jitter time.Duration, log *zap.Logger) HeadSource {
	polling := &PollingHeads{Client: client, Interval: interval, Jitter: jitter, Log: log}
	if strings.HasPrefix(wsURL, "ws://") || strings.HasPrefix(wsURL, "wss://") {
		return &SubscribedHeads{WSURL: wsURL, Fallback: polling, Log: log}
	}
	return polling
}
