package vault

import "github.com/holiman/uint256"

// RewardPrecision scales every reward-per-token value so that integer
// division keeps twelve decimal places of sub-unit precision.
const RewardPrecision uint64 = 1_000_000_000_000

var precision = uint256.NewInt(RewardPrecision)

// mulDiv returns floor(x*y/d). The 512-bit intermediate product never
// overflows; only a quotient wider than 256 bits is reported.
func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d == nil || d.IsZero() {
		// Callers guard zero denominators themselves; reaching here means a
		// bookkeeping bug, not a user error.
		return nil, ErrArithmeticOverflow
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return z, nil
}

// mulDivUp returns ceil(x*y/d).
func mulDivUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	z, err := mulDiv(x, y, d)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(x, y, d).IsZero() {
		return z, nil
	}
	return checkedAdd(z, uint256.NewInt(1))
}

func checkedAdd(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return z, nil
}

func toUint64(x *uint256.Int) (uint64, error) {
	if !x.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return x.Uint64(), nil
}

func addUint64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

func subUint64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrArithmeticOverflow
	}
	return a - b, nil
}

// mulDiv64 returns floor(a*b/d) for 64-bit operands using a 256-bit
// intermediate. d must be non-zero.
func mulDiv64(a, b, d uint64) (uint64, error) {
	z, err := mulDiv(uint256.NewInt(a), uint256.NewInt(b), uint256.NewInt(d))
	if err != nil {
		return 0, err
	}
	return toUint64(z)
}
