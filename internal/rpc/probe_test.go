package rpc

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// node serves eth_blockNumber and eth_chainId.
func node(t *testing.T, block, chainID uint64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			ID     uint64 `json:"id"`
		}
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		result := "0x0"
		switch req.Method {
		case "eth_blockNumber":
			result = "0x" + big.NewInt(int64(block)).Text(16)
		case "eth_chainId":
			result = "0x" + big.NewInt(int64(chainID)).Text(16)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result}) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbeHealthy(t *testing.T) {
	srv := node(t, 1000, 31337)

	ep := Probe(context.Background(), srv.URL, big.NewInt(31337))
	require.NoError(t, ep.Err)
	assert.Equal(t, srv.URL, ep.URL)
	assert.Equal(t, uint64(1000), ep.BlockNumber)
	assert.Greater(t, int64(ep.Latency), int64(0))
}

func TestProbeWrongChain(t *testing.T) {
	srv := node(t, 1000, 1)

	ep := Probe(context.Background(), srv.URL, big.NewInt(11155111))
	assert.ErrorIs(t, ep.Err, ErrWrongChain)
	assert.Contains(t, ep.Err.Error(), "got 1, want 11155111")
}

func TestProbeSkipsChainCheckWithoutID(t *testing.T) {
	srv := node(t, 7, 1)

	ep := Probe(context.Background(), srv.URL, nil)
	assert.NoError(t, ep.Err)
}

func TestProbeUnreachable(t *testing.T) {
	ep := Probe(context.Background(), "http://127.0.0.1:1", big.NewInt(1))
	assert.Error(t, ep.Err)
	assert.False(t, ep.Healthy())
}

func TestProbeAllKeepsOrder(t *testing.T) {
	a := node(t, 10, 5)
	b := node(t, 11, 5)

	out := ProbeAll(context.Background(), []string{a.URL, "http://127.0.0.1:1", b.URL}, big.NewInt(5))
	require.Len(t, out, 3)
	assert.Equal(t, a.URL, out[0].URL)
	assert.True(t, out[0].Healthy())
	assert.False(t, out[1].Healthy())
	assert.Equal(t, uint64(11), out[2].BlockNumber)
}

func TestSelect(t *testing.T) {
	good := node(t, 100, 31337)
	p := NewPicker(AlgorithmFastest, clock.New())

	url, err := Select(context.Background(), p, []string{"http://127.0.0.1:1", good.URL}, big.NewInt(31337))
	require.NoError(t, err)
	assert.Equal(t, good.URL, url)
}

func TestSelectReportsWrongChain(t *testing.T) {
	wrong := node(t, 100, 1)
	p := NewPicker(AlgorithmFastest, clock.New())

	_, err := Select(context.Background(), p, []string{wrong.URL}, big.NewInt(31337))
	assert.ErrorIs(t, err, ErrWrongChain)
	assert.Contains(t, err.Error(), wrong.URL)
}

func TestSelectEmpty(t *testing.T) {
	_, err := Select(context.Background(), NewPicker("", nil), nil, nil)
	assert.ErrorIs(t, err, ErrNoHealthyRPC)
}
