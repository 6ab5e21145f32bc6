package vault

import (
	"math"
	"testing"
)

func TestVestedAmount(t *testing.T) {
	cases := []struct {
		name                      string
		total, start, period, now uint64
		want                      uint64
	}{
		{"before start", 1000, 100, 10, 90, 0},
		{"at start", 1000, 100, 10, 100, 0},
		{"halfway", 1000, 100, 10, 105, 500},
		{"floors", 1000, 100, 3, 101, 333},
		{"at end", 1000, 100, 10, 110, 1000},
		{"after end", 1000, 100, 10, 500, 1000},
		{"zero period", 1000, 100, 0, 101, 1000},
		{"zero total", 0, 100, 10, 105, 0},
		{"large total", math.MaxUint64, 0, 4, 1, math.MaxUint64 / 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := VestedAmount(tc.total, tc.start, tc.period, tc.now); got != tc.want {
				t.Fatalf("VestedAmount = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestClaimableNeverNegative(t *testing.T) {
	if got := ClaimableAmount(100, 60, 0, 10, 5); got != 0 {
		t.Fatalf("claimable = %d, want 0 when claimed exceeds vested", got)
	}
	req := UnstakeRequest{TotalAmount: 100, ClaimedAmount: 20, CreatedAt: 0, VestingPeriod: 10}
	if got := req.Claimable(5); got != 30 {
		t.Fatalf("claimable = %d, want 30", got)
	}
	if req.EndsAt() != 10 || req.Outstanding() != 80 {
		t.Fatalf("unexpected request helpers: ends=%d outstanding=%d", req.EndsAt(), req.Outstanding())
	}
}
