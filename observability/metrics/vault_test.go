package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestVaultMetricsRecordOperations(t *testing.T) {
	m := Vault()
	before := testutil.ToFloat64(m.operations.WithLabelValues("deposit_stake", "ok"))
	m.RecordOperation("deposit_stake", "")
	m.RecordOperation("deposit_stake", "ok")
	after := testutil.ToFloat64(m.operations.WithLabelValues("deposit_stake", "ok"))
	require.Equal(t, before+2, after)

	m.RecordOperation("claim_vested", "nothing_to_claim")
	require.GreaterOrEqual(t, testutil.ToFloat64(m.operations.WithLabelValues("claim_vested", "nothing_to_claim")), 1.0)
}

func TestVaultMetricsObserveSnapshot(t *testing.T) {
	m := Vault()
	m.ObserveVault(VaultSnapshot{TotalStaked: 1000, ActiveAmount: 600, UnstakingAmount: 400, PendingRewards: 7, Paused: true})
	require.Equal(t, 1000.0, testutil.ToFloat64(m.totalStaked))
	require.Equal(t, 600.0, testutil.ToFloat64(m.activeStake))
	require.Equal(t, 7.0, testutil.ToFloat64(m.pendingRewards))
	require.Equal(t, 1.0, testutil.ToFloat64(m.paused))

	m.ObserveVault(VaultSnapshot{})
	require.Zero(t, testutil.ToFloat64(m.paused))
}

func TestVaultMetricsNilSafe(t *testing.T) {
	var m *VaultMetrics
	m.RecordOperation("x", "y")
	m.ObserveVault(VaultSnapshot{})
	m.AddDistributionRemainder(3)
}
