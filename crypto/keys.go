package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"
)

type PrivateKey struct {
	*ecdsa.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Hex returns the hex encoding of the secret scalar.
func (k *PrivateKey) Hex() string {
	return hex.EncodeToString(crypto.FromECDSA(k.PrivateKey))
}

// Address derives the account address controlled by the key.
func (k *PrivateKey) Address() Address {
	return MustNewAddress(AccountPrefix, crypto.PubkeyToAddress(k.PrivateKey.PublicKey).Bytes())
}

func PrivateKeyFromHex(s string) (*PrivateKey, error) {
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
