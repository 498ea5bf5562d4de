package state

var (
	accountPrefix      = []byte("account/")
	tokenBalancePrefix = []byte("token/balance/")
	pausePrefix        = []byte("pause/")

	waTokenWhitelistPrefix = []byte("watoken/whitelist/")
	waTokenBlacklistPrefix = []byte("watoken/blacklist/")
	waTokenCeilingPrefix   = []byte("watoken/ceiling/")
	waTokenMintedPrefix    = []byte("watoken/minted/")
	waTokenSupplyKeyBytes  = []byte("watoken/supply")

	vaultConfigKeyBytes   = []byte("vault/config")
	vaultPositionPrefix   = []byte("vault/position/")
	vaultAdaptersKeyBytes = []byte("vault/adapters")

	transmuterConfigKeyBytes   = []byte("transmuter/config")
	transmuterLedgerKeyBytes   = []byte("transmuter/ledger")
	transmuterStakerPrefix     = []byte("transmuter/staker/")
	transmuterUsersKeyBytes    = []byte("transmuter/users")
	transmuterAdaptersKeyBytes = []byte("transmuter/adapters")

	escrowConfigKeyBytes  = []byte("vesc/config")
	escrowGlobalKeyBytes  = []byte("vesc/global")
	escrowStreamsKeyBytes = []byte("vesc/streams")
	escrowLockPrefix      = []byte("vesc/lock/")
	escrowAllowancePrefix = []byte("vesc/allowance/")

	chainMetaKeyBytes = []byte("chain/meta")
)
