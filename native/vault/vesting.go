package vault

// VestedAmount returns floor(total * elapsed / period), clamped to total once
// elapsed reaches period. Nothing vests before start, and a zero period vests
// immediately.
func VestedAmount(total, start, period, now uint64) uint64 {
	if total == 0 || now <= start {
		return 0
	}
	elapsed := now - start
	if period == 0 || elapsed >= period {
		return total
	}
	// elapsed < period, so the quotient is below total and cannot overflow.
	vested, err := mulDiv64(total, elapsed, period)
	if err != nil {
		return 0
	}
	return vested
}

// ClaimableAmount is the vested amount minus what was already claimed,
// clamped at zero.
func ClaimableAmount(total, claimed, start, period, now uint64) uint64 {
	vested := VestedAmount(total, start, period, now)
	if vested <= claimed {
		return 0
	}
	return vested - claimed
}
