package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"wasabix/core/types"
	"wasabix/crypto"
	"wasabix/native/transmuter"
	"wasabix/native/vault"
	"wasabix/native/votingescrow"
	"wasabix/native/yield"
	"wasabix/storage"
)

func testAddr(tag byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = tag
	return crypto.MustNewAddress(crypto.WaxPrefix, raw)
}

func newManager() *Manager {
	return NewManager(storage.NewMemDB())
}

func TestAccountRoundTrip(t *testing.T) {
	m := newManager()
	addr := testAddr(0x01)

	got, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Nil(t, got)

	account := &types.Account{
		Nonce:          7,
		BalanceBase:    big.NewInt(1_000),
		BalanceWaToken: big.NewInt(2_000),
		BalanceWasabi:  big.NewInt(3_000),
	}
	require.NoError(t, m.PutAccount(addr, account))

	got, err = m.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(7), got.Nonce)
	require.Equal(t, int64(1_000), got.BalanceBase.Int64())
	require.Equal(t, int64(2_000), got.BalanceWaToken.Int64())
	require.Equal(t, int64(3_000), got.BalanceWasabi.Int64())
}

func TestTokenBalances(t *testing.T) {
	m := newManager()
	addr := testAddr(0x01)

	bal, err := m.TokenBalance("USDC", addr)
	require.NoError(t, err)
	require.Equal(t, int64(0), bal.Int64())

	require.NoError(t, m.SetTokenBalance("USDC", addr, big.NewInt(500)))
	bal, err = m.TokenBalance("USDC", addr)
	require.NoError(t, err)
	require.Equal(t, int64(500), bal.Int64())

	// Symbols are isolated from each other.
	bal, err = m.TokenBalance("WBTC", addr)
	require.NoError(t, err)
	require.Equal(t, int64(0), bal.Int64())

	require.ErrorIs(t, m.SetTokenBalance("USDC", addr, big.NewInt(-1)), errNegativeAmount)
}

func TestPauses(t *testing.T) {
	m := newManager()
	require.False(t, m.IsPaused("vault"))
	require.NoError(t, m.SetPaused("vault", true))
	require.True(t, m.IsPaused("vault"))
	require.False(t, m.IsPaused("transmuter"))
	require.NoError(t, m.SetPaused("vault", false))
	require.False(t, m.IsPaused("vault"))
}

func TestWaTokenSupplyAccounting(t *testing.T) {
	m := newManager()
	vaultAddr := testAddr(0x0F)
	user := testAddr(0x01)

	require.NoError(t, m.MintWaTokens(vaultAddr, user, big.NewInt(1_000)))
	minted, err := m.WaTokenMinted(vaultAddr)
	require.NoError(t, err)
	require.Equal(t, int64(1_000), minted.Int64())
	supply, err := m.WaTokenSupply()
	require.NoError(t, err)
	require.Equal(t, int64(1_000), supply.Int64())

	require.NoError(t, m.BurnWaTokens(user, big.NewInt(400)))
	require.NoError(t, m.WaTokenLowerMinted(vaultAddr, big.NewInt(400)))
	supply, err = m.WaTokenSupply()
	require.NoError(t, err)
	require.Equal(t, int64(600), supply.Int64())
	minted, err = m.WaTokenMinted(vaultAddr)
	require.NoError(t, err)
	require.Equal(t, int64(600), minted.Int64())

	require.ErrorIs(t, m.BurnWaTokens(user, big.NewInt(601)), errInsufficient)
	require.ErrorIs(t, m.WaTokenLowerMinted(vaultAddr, big.NewInt(601)), ErrSupplyUnderflow)

	account, err := m.GetAccount(user)
	require.NoError(t, err)
	require.Equal(t, int64(600), account.BalanceWaToken.Int64())
}

func TestWaTokenControllerFlags(t *testing.T) {
	m := newManager()
	vaultAddr := testAddr(0x0F)

	ok, err := m.WaTokenWhitelisted(vaultAddr)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, m.SetWaTokenWhitelisted(vaultAddr, true))
	ok, err = m.WaTokenWhitelisted(vaultAddr)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, m.SetWaTokenCeiling(vaultAddr, big.NewInt(9_999)))
	ceiling, err := m.WaTokenCeiling(vaultAddr)
	require.NoError(t, err)
	require.Equal(t, int64(9_999), ceiling.Int64())
}

func TestVaultRecordsRoundTrip(t *testing.T) {
	m := newManager()
	user := testAddr(0x01)

	cfg, err := m.VaultConfig()
	require.NoError(t, err)
	require.Nil(t, cfg)

	gov := testAddr(0x02)
	require.NoError(t, m.PutVaultConfig(&vault.Config{
		Governance:             append([]byte(nil), gov.Bytes()...),
		CollateralizationLimit: big.NewInt(2_000_000),
		MintFeeBps:             30,
		Initialized:            true,
	}))
	cfg, err = m.VaultConfig()
	require.NoError(t, err)
	require.Equal(t, gov.Bytes(), cfg.Governance)
	require.Equal(t, uint64(30), cfg.MintFeeBps)
	require.True(t, cfg.Initialized)

	require.NoError(t, m.PutVaultPosition(user, &vault.Position{
		TotalDeposited: big.NewInt(5_000),
		TotalDebt:      big.NewInt(1_000),
	}))
	pos, err := m.VaultPosition(user)
	require.NoError(t, err)
	require.Equal(t, int64(5_000), pos.TotalDeposited.Int64())
	require.Equal(t, int64(1_000), pos.TotalDebt.Int64())

	require.NoError(t, m.PutVaultAdapters([]*yield.Entry{
		{AdapterID: "idle", TotalDeposited: big.NewInt(42)},
	}))
	entries, err := m.VaultAdapters()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "idle", entries[0].AdapterID)
	require.Equal(t, int64(42), entries[0].TotalDeposited.Int64())
}

func TestTransmuterRecordsRoundTrip(t *testing.T) {
	m := newManager()
	staker := testAddr(0x01)

	require.NoError(t, m.PutTransmuterLedger(&transmuter.Ledger{
		Buffer:              big.NewInt(1_000),
		LastDepositBlock:    88,
		TotalDividendPoints: big.NewInt(5),
		TotalSupplyWaTokens: big.NewInt(997),
	}))
	led, err := m.TransmuterLedger()
	require.NoError(t, err)
	require.Equal(t, int64(1_000), led.Buffer.Int64())
	require.Equal(t, uint64(88), led.LastDepositBlock)

	require.NoError(t, m.PutTransmuterStaker(staker, &transmuter.Staker{
		DepositedWaTokens: big.NewInt(997),
	}))
	st, err := m.TransmuterStaker(staker)
	require.NoError(t, err)
	require.Equal(t, int64(997), st.DepositedWaTokens.Int64())

	users, err := m.TransmuterUsers()
	require.NoError(t, err)
	require.Empty(t, users)
	require.NoError(t, m.AppendTransmuterUser(staker))
	require.NoError(t, m.AppendTransmuterUser(testAddr(0x02)))
	users, err = m.TransmuterUsers()
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, staker.Bytes(), users[0])
}

func TestEscrowRecordsRoundTrip(t *testing.T) {
	m := newManager()
	locker := testAddr(0x01)

	require.NoError(t, m.PutEscrowStreams([]*votingescrow.Stream{
		{Token: "WASABI", AccumulatorRaw: big.NewInt(123)},
		{Token: "USDC", NeedsVesting: true, AccumulatorRaw: big.NewInt(456)},
	}))
	streams, err := m.EscrowStreams()
	require.NoError(t, err)
	require.Len(t, streams, 2)
	require.True(t, streams[1].NeedsVesting)
	require.Equal(t, int64(456), streams[1].AccumulatorRaw.Int64())

	lock := &votingescrow.Lock{
		Amount:        big.NewInt(1_000),
		Start:         100,
		End:           200,
		RecordedPower: big.NewInt(900),
	}
	lock.Normalize(2)
	require.NoError(t, m.PutEscrowLock(locker, lock))
	got, err := m.EscrowLock(locker)
	require.NoError(t, err)
	require.Equal(t, int64(1_000), got.Amount.Int64())
	require.Equal(t, uint64(200), got.End)
	require.Len(t, got.SnapshotsRaw, 2)

	require.NoError(t, m.PutEscrowAllowance("USDC", big.NewInt(77)))
	allowance, err := m.EscrowAllowance("USDC")
	require.NoError(t, err)
	require.Equal(t, int64(77), allowance.Int64())
}

func TestChainMetaRoundTrip(t *testing.T) {
	m := newManager()
	meta, err := m.ChainMeta()
	require.NoError(t, err)
	require.Nil(t, meta)

	require.NoError(t, m.PutChainMeta(&ChainMeta{Height: 10, Time: 1_700_000_000}))
	meta, err = m.ChainMeta()
	require.NoError(t, err)
	require.Equal(t, uint64(10), meta.Height)
	require.Equal(t, uint64(1_700_000_000), meta.Time)
}
