package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics tracks vault operations and the latest custody totals.
type VaultMetrics struct {
	operations       *prometheus.CounterVec
	totalStaked      prometheus.Gauge
	activeStake      prometheus.Gauge
	unstaking        prometheus.Gauge
	pendingRewards   prometheus.Gauge
	distributed      prometheus.Gauge
	claimedRewards   prometheus.Gauge
	openRequests     prometheus.Gauge
	paused           prometheus.Gauge
	distributionDust prometheus.Counter
}

// VaultSnapshot is the subset of vault state exported as gauges.
type VaultSnapshot struct {
	TotalStaked      uint64
	ActiveAmount     uint64
	UnstakingAmount  uint64
	PendingRewards   uint64
	TotalDistributed uint64
	TotalClaimed     uint64
	OpenRequests     uint64
	Paused           bool
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the lazily registered vault metrics.
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		gauge := func(name, help string) prometheus.Gauge {
			return prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakevault",
				Subsystem: "vault",
				Name:      name,
				Help:      help,
			})
		}
		vaultRegistry = &VaultMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "vault",
				Name:      "operations_total",
				Help:      "Vault operations segmented by operation and result code.",
			}, []string{"operation", "result"}),
			totalStaked:    gauge("total_staked", "Principal held by the vault."),
			activeStake:    gauge("active_stake", "Principal currently earning rewards."),
			unstaking:      gauge("unstaking_amount", "Principal locked in unstake requests."),
			pendingRewards: gauge("pending_rewards", "Deposited rewards awaiting distribution."),
			distributed:    gauge("rewards_distributed", "Cumulative rewards credited to stakers."),
			claimedRewards: gauge("rewards_claimed", "Cumulative rewards collected by stakers."),
			openRequests:   gauge("unstake_requests", "Outstanding unstake requests across all users."),
			paused:         gauge("paused", "Whether the vault is paused (1) or not (0)."),
			distributionDust: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "vault",
				Name:      "distribution_remainder_total",
				Help:      "Reward units left pending after distribution rounding.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.operations,
			vaultRegistry.totalStaked,
			vaultRegistry.activeStake,
			vaultRegistry.unstaking,
			vaultRegistry.pendingRewards,
			vaultRegistry.distributed,
			vaultRegistry.claimedRewards,
			vaultRegistry.openRequests,
			vaultRegistry.paused,
			vaultRegistry.distributionDust,
		)
	})
	return vaultRegistry
}

// RecordOperation counts one operation. result should be "ok" or a stable
// error code.
func (m *VaultMetrics) RecordOperation(operation, result string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = "ok"
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

// ObserveVault updates the custody gauges.
func (m *VaultMetrics) ObserveVault(s VaultSnapshot) {
	if m == nil {
		return
	}
	m.totalStaked.Set(float64(s.TotalStaked))
	m.activeStake.Set(float64(s.ActiveAmount))
	m.unstaking.Set(float64(s.UnstakingAmount))
	m.pendingRewards.Set(float64(s.PendingRewards))
	m.distributed.Set(float64(s.TotalDistributed))
	m.claimedRewards.Set(float64(s.TotalClaimed))
	m.openRequests.Set(float64(s.OpenRequests))
	if s.Paused {
		m.paused.Set(1)
	} else {
		m.paused.Set(0)
	}
}

// AddDistributionRemainder records rounding remainder left pending.
func (m *VaultMetrics) AddDistributionRemainder(units uint64) {
	if m == nil || units == 0 {
		return
	}
	m.distributionDust.Add(float64(units))
}
