package state

import (
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"stakevault/crypto"
)

// VaultKey is the storage key of the vault singleton.
func VaultKey() []byte {
	return ethcrypto.Keccak256(vaultKeyBytes)
}

// UserStakeKey is the storage key of owner's stake record.
func UserStakeKey(owner crypto.Address) []byte {
	addr := owner.Bytes()
	buf := make([]byte, len(userStakePrefix)+len(addr))
	copy(buf, userStakePrefix)
	copy(buf[len(userStakePrefix):], addr)
	return ethcrypto.Keccak256(buf)
}

// BalanceKey is the storage key of account's balance of asset.
func BalanceKey(asset string, account crypto.Address) []byte {
	symbol := strings.ToUpper(strings.TrimSpace(asset))
	addr := account.Bytes()
	buf := make([]byte, len(balancePrefix)+len(symbol)+1+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], symbol)
	buf[len(balancePrefix)+len(symbol)] = ':'
	copy(buf[len(balancePrefix)+len(symbol)+1:], addr)
	return ethcrypto.Keccak256(buf)
}
