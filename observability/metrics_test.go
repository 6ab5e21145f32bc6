package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestModuleMetricsObserve(t *testing.T) {
	m := ModuleMetrics()
	okBefore := testutil.ToFloat64(m.requests.WithLabelValues("stake", "deposit", "success"))
	errBefore := testutil.ToFloat64(m.errors.WithLabelValues("stake", "deposit", "409"))

	m.Observe("stake", "deposit", 200, 10*time.Millisecond)
	m.Observe("stake", "deposit", 409, time.Millisecond)

	require.Equal(t, okBefore+1, testutil.ToFloat64(m.requests.WithLabelValues("stake", "deposit", "success")))
	require.Equal(t, errBefore+1, testutil.ToFloat64(m.errors.WithLabelValues("stake", "deposit", "409")))
}

func TestEventMetricsNormalizesType(t *testing.T) {
	m := Events()
	before := testutil.ToFloat64(m.emitted.WithLabelValues("vault.stake_deposited"))
	m.RecordEvent(" Vault.Stake_Deposited ")
	require.Equal(t, before+1, testutil.ToFloat64(m.emitted.WithLabelValues("vault.stake_deposited")))

	var nilMetrics *eventMetrics
	nilMetrics.RecordEvent("ignored")
	nilMetrics.RecordDrop("ws")
}
