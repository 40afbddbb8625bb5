package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRegistryIsNoop(t *testing.T) {
	var m *Registry
	m.Read("balanceOf", "ok")
	m.Cache("hit")
	m.Submit("faucet", "broadcast")
	m.Confirm("faucet", "confirmed", time.Second)
	m.WatchError()
	m.Stall()
	m.State("faucet", "", "idle")
}

func TestCounters(t *testing.T) {
	m := New()
	m.Read("balanceOf", "ok")
	m.Read("balanceOf", "ok")
	m.Read("canClaimFaucet", "reverted")
	m.Submit("faucet", "rejected")
	m.WatchError()
	m.Stall()
	m.Stall()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.readsTotal.WithLabelValues("balanceOf", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.readsTotal.WithLabelValues("canClaimFaucet", "reverted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submitsTotal.WithLabelValues("faucet", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.watchErrors))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.stallsTotal))
}

func TestStateGaugeMovesBetweenStates(t *testing.T) {
	m := New()
	m.State("faucet", "", "idle")
	m.State("faucet", "idle", "checking")

	assert.Equal(t, 0.0, testutil.ToFloat64(m.workflowState.WithLabelValues("faucet", "idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workflowState.WithLabelValues("faucet", "checking")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Confirm("faucet", "confirmed", 3*time.Second)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `academy_confirmations_total{action="faucet",status="confirmed"} 1`))
	assert.True(t, strings.Contains(string(body), "academy_confirmation_seconds_count 1"))
}
