package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(relayReservations.WithLabelValues("ok"))
	ReservationResult("ok")
	assert.Equal(t, before+1, testutil.ToFloat64(relayReservations.WithLabelValues("ok")))

	before = testutil.ToFloat64(holePunchOutcomes.WithLabelValues("direct", "initiator"))
	HolePunchOutcome("direct", "initiator")
	assert.Equal(t, before+1, testutil.ToFloat64(holePunchOutcomes.WithLabelValues("direct", "initiator")))

	before = testutil.ToFloat64(relayedBytes)
	RelayedBytes(100)
	RelayedBytes(-5)
	assert.Equal(t, before+100, testutil.ToFloat64(relayedBytes))
}

func TestCollectorsLint(t *testing.T) {
	GossipMessage("delivered")
	IdentifyResult("ok")
	CircuitResult("ok")
	HolePunchDuration("direct", 200*time.Millisecond)

	reg := prometheus.NewPedanticRegistry()
	for _, c := range Collectors() {
		require.NoError(t, reg.Register(c))
	}
	problems, err := testutil.GatherAndLint(reg)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	addr, done, err := Serve(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	ReservationResult("ok")
	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "natpunch_relay_reservations_total")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}
