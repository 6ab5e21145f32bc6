package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"
)

// AddressPrefix is the human-readable part of a bech32 address.
type AddressPrefix string

const (
	// AccountPrefix marks user and admin accounts.
	AccountPrefix AddressPrefix = "stake"
	// ModulePrefix marks custody accounts owned by a module rather than a key.
	ModulePrefix AddressPrefix = "stakemod"
)

// AddressLength is the size of the raw address payload.
const AddressLength = 20

var errAddressLength = fmt.Errorf("address must be %d bytes long", AddressLength)

// Address is a 20-byte account identifier rendered with a bech32 prefix.
// Two addresses are equal when their payloads match; the prefix is only a
// rendering hint.
type Address struct {
	prefix AddressPrefix
	bytes  [AddressLength]byte
}

// NewAddress builds an address from a 20-byte payload.
func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, errAddressLength
	}
	addr := Address{prefix: prefix}
	copy(addr.bytes[:], b)
	return addr, nil
}

// MustNewAddress is NewAddress for payloads known to be valid.
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

// ModuleAddress derives the deterministic custody account for a module seed.
func ModuleAddress(seed string) Address {
	sum := blake3.Sum256([]byte("module/" + seed))
	return MustNewAddress(ModulePrefix, sum[:AddressLength])
}

func (a Address) String() string {
	if a.IsZero() && a.prefix == "" {
		return ""
	}
	prefix := a.prefix
	if prefix == "" {
		prefix = AccountPrefix
	}
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a.bytes[:])
	return out
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// IsZero reports whether the payload is all zero bytes.
func (a Address) IsZero() bool {
	return a.bytes == [AddressLength]byte{}
}

// Equal compares payloads, ignoring the prefix.
func (a Address) Equal(other Address) bool {
	return bytes.Equal(a.bytes[:], other.bytes[:])
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return NewAddress(AddressPrefix(prefix), conv)
}

// MarshalText renders the bech32 form so addresses embed cleanly in JSON.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = Address{}
		return nil
	}
	decoded, err := DecodeAddress(string(text))
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// EncodeRLP stores the prefix alongside the payload.
func (a Address) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, []interface{}{string(a.prefix), a.bytes[:]})
}

func (a *Address) DecodeRLP(s *rlp.Stream) error {
	var stored struct {
		Prefix string
		Bytes  []byte
	}
	if err := s.Decode(&stored); err != nil {
		return err
	}
	if len(stored.Bytes) != AddressLength {
		return errors.New("crypto: stored address has wrong length")
	}
	a.prefix = AddressPrefix(stored.Prefix)
	copy(a.bytes[:], stored.Bytes)
	return nil
}
