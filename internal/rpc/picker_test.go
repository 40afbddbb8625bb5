package rpc_test

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustless-academy/academy/internal/rpc"
)

func healthy(url string, latency time.Duration, block uint64) rpc.Endpoint {
	return rpc.Endpoint{URL: url, Latency: latency, BlockNumber: block}
}

func down(url string) rpc.Endpoint {
	return rpc.Endpoint{URL: url, Err: errors.New("connection refused")}
}

func TestPickerSelectsFastest(t *testing.T) {
	p := rpc.NewPicker(rpc.AlgorithmFastest, clock.NewMock())
	winner, err := p.Pick([]rpc.Endpoint{
		healthy("http://slow.rpc", 200*time.Millisecond, 100),
		healthy("http://fast.rpc", 30*time.Millisecond, 100),
		healthy("http://medium.rpc", 80*time.Millisecond, 100),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://fast.rpc", winner.URL)
}

func TestPickerDiscardsStaleNodes(t *testing.T) {
	p := rpc.NewPicker(rpc.AlgorithmFastest, clock.NewMock())
	winner, err := p.Pick([]rpc.Endpoint{
		healthy("http://fresh.rpc", 50*time.Millisecond, 1000),
		healthy("http://stale.rpc", 10*time.Millisecond, 990),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://fresh.rpc", winner.URL, "stale node should be discarded even if faster")
}

func TestPickerSkipsUnhealthy(t *testing.T) {
	p := rpc.NewPicker("", clock.NewMock())
	winner, err := p.Pick([]rpc.Endpoint{
		down("http://dead.rpc"),
		healthy("http://alive.rpc", 90*time.Millisecond, 5),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://alive.rpc", winner.URL)
}

func TestPickerAllDown(t *testing.T) {
	for _, algo := range []rpc.Algorithm{rpc.AlgorithmFastest, rpc.AlgorithmFailover} {
		p := rpc.NewPicker(algo, clock.NewMock())
		_, err := p.Pick([]rpc.Endpoint{down("http://a"), down("http://b")})
		assert.ErrorIs(t, err, rpc.ErrNoHealthyRPC, algo)

		_, err = p.Pick(nil)
		assert.ErrorIs(t, err, rpc.ErrNoHealthyRPC, algo)
	}
}

func TestPickerFailoverKeepsOrder(t *testing.T) {
	p := rpc.NewPicker(rpc.AlgorithmFailover, clock.NewMock())
	winner, err := p.Pick([]rpc.Endpoint{
		down("http://primary"),
		healthy("http://secondary", 300*time.Millisecond, 10),
		healthy("http://tertiary", 5*time.Millisecond, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://secondary", winner.URL)
}

func TestPickerCachesWinner(t *testing.T) {
	clk := clock.NewMock()
	p := rpc.NewPicker(rpc.AlgorithmFastest, clk)

	_, ok := p.Cached()
	assert.False(t, ok)

	_, err := p.Pick([]rpc.Endpoint{healthy("http://fast.rpc", 10*time.Millisecond, 1)})
	require.NoError(t, err)

	url, ok := p.Cached()
	require.True(t, ok)
	assert.Equal(t, "http://fast.rpc", url)

	clk.Add(5 * time.Minute)
	_, ok = p.Cached()
	assert.False(t, ok, "winner expires after the cache TTL")
}
