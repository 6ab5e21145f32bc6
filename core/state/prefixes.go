package state

var (
	vaultKeyBytes   = []byte("vault/singleton")
	userStakePrefix = []byte("vault/stake/")
	balancePrefix   = []byte("balance/")
)
