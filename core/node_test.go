package core

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wasabix/crypto"
	"wasabix/native/yield"
	"wasabix/storage"
)

const (
	testBaseToken   = "DAI"
	testWasabiToken = "WASABI"
	testAdapterID   = "idle"
)

func testAddr(tag byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = tag
	return crypto.MustNewAddress(crypto.WaxPrefix, raw)
}

var (
	governance   = testAddr(0x01)
	feeCollector = testAddr(0x02)
	rewards      = testAddr(0x03)
	alice        = testAddr(0x0A)
	bob          = testAddr(0x0B)
)

func testGenesis() *Genesis {
	return &Genesis{
		Governance:             governance,
		Rewards:                rewards,
		FeeCollector:           feeCollector,
		BaseToken:              testBaseToken,
		WasabiToken:            testWasabiToken,
		AdapterID:              testAdapterID,
		CollateralizationLimit: new(big.Int).Mul(big.NewInt(2), big.NewInt(1e18)),
		MintFeeBps:             30,
		WithdrawFeeBps:         0,
		HarvestFeeBps:          1_000,
		FlushActivator:         big.NewInt(1_000_000_000),
		WaTokenCeiling:         big.NewInt(1_000_000),
		TransmutationPeriod:    4,
		PlantableThreshold:     big.NewInt(1_000_000_000),
		WasabiRatePerBlock:     big.NewInt(0),
		Alloc: []GenesisAccount{
			{Address: alice, Base: big.NewInt(10_000), Wasabi: big.NewInt(4_096)},
			{Address: bob, Base: big.NewInt(10_000)},
		},
	}
}

func newTestNode(t *testing.T) *Node {
	t.Helper()
	registry := yield.NewRegistry()
	require.NoError(t, registry.Register(testAdapterID, yield.NewIdleAdapter(testBaseToken)))
	node, err := NewNode(storage.NewMemDB(), registry, testGenesis())
	require.NoError(t, err)
	node.SetClock(func() time.Time { return time.Unix(1_700_000_000, 0) })
	return node
}

func TestNodeGenesisSeeding(t *testing.T) {
	node := newTestNode(t)

	require.Equal(t, uint64(1), node.Height())

	account, err := node.Account(alice)
	require.NoError(t, err)
	require.Equal(t, int64(10_000), account.BalanceBase.Int64())
	require.Equal(t, int64(4_096), account.BalanceWasabi.Int64())

	count, err := node.VaultCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
	entry, err := node.VaultAt(0)
	require.NoError(t, err)
	require.Equal(t, testAdapterID, entry.AdapterID)
}

func TestNodeGenesisRunsOnce(t *testing.T) {
	db := storage.NewMemDB()
	registry := yield.NewRegistry()
	require.NoError(t, registry.Register(testAdapterID, yield.NewIdleAdapter(testBaseToken)))

	first, err := NewNode(db, registry, testGenesis())
	require.NoError(t, err)
	require.NoError(t, first.VaultDeposit(alice, big.NewInt(100)))
	height := first.Height()

	// Booting again over the same database must not reseed or rewind.
	second, err := NewNode(db, registry, testGenesis())
	require.NoError(t, err)
	require.Equal(t, height, second.Height())
	position, err := second.VaultPosition(alice)
	require.NoError(t, err)
	require.Equal(t, int64(100), position.TotalDeposited.Int64())
}

func TestNodeBlockCursorAdvances(t *testing.T) {
	node := newTestNode(t)
	start := node.Height()

	require.NoError(t, node.VaultDeposit(alice, big.NewInt(100)))
	require.Equal(t, start+1, node.Height())

	// Failed operations still consume a block.
	require.Error(t, node.VaultDeposit(alice, big.NewInt(-1)))
	require.Equal(t, start+2, node.Height())

	// Views do not.
	_, err := node.VaultPosition(alice)
	require.NoError(t, err)
	require.Equal(t, start+2, node.Height())
}

func TestNodeMintRepayTransmuteFlow(t *testing.T) {
	node := newTestNode(t)

	require.NoError(t, node.VaultDeposit(alice, big.NewInt(5_000)))
	require.NoError(t, node.VaultMint(alice, big.NewInt(1_000)))

	account, err := node.Account(alice)
	require.NoError(t, err)
	require.Equal(t, int64(997), account.BalanceWaToken.Int64())
	collector, err := node.Account(feeCollector)
	require.NoError(t, err)
	require.Equal(t, int64(3), collector.BalanceWaToken.Int64())

	position, err := node.VaultPosition(alice)
	require.NoError(t, err)
	require.Equal(t, int64(5_000), position.TotalDeposited.Int64())
	require.Equal(t, int64(1_000), position.TotalDebt.Int64())

	// Stake the full minted balance, then repay 997 base so the transmuter
	// receives exactly the staked supply.
	require.NoError(t, node.TransmuterStake(alice, big.NewInt(997)))
	require.NoError(t, node.VaultRepay(alice, nil, big.NewInt(997)))

	position, err = node.VaultPosition(alice)
	require.NoError(t, err)
	require.Equal(t, int64(3), position.TotalDebt.Int64())

	// Tick past the transmutation period so the distribution fully releases.
	for i := 0; i < 5; i++ {
		require.NoError(t, node.VaultDeposit(bob, big.NewInt(1)))
	}

	info, err := node.TransmuterUserInfo(alice)
	require.NoError(t, err)
	require.Equal(t, int64(997), info.PendingDividends.Int64())

	require.NoError(t, node.TransmuterTransmute(alice))
	claimed, err := node.TransmuterClaim(alice)
	require.NoError(t, err)
	require.Equal(t, int64(997), claimed.Int64())

	account, err = node.Account(alice)
	require.NoError(t, err)
	// 10000 - 5000 deposit - 997 repay + 997 claim.
	require.Equal(t, int64(5_000), account.BalanceBase.Int64())
	require.Equal(t, int64(0), account.BalanceWaToken.Int64())

	// The transmuted stake left the waToken supply entirely.
	info, err = node.TransmuterUserInfo(alice)
	require.NoError(t, err)
	require.Equal(t, int64(0), info.DepositedWaTokens.Int64())
}

func TestNodeEscrowLockThroughTreasury(t *testing.T) {
	node := newTestNode(t)

	require.NoError(t, node.EscrowCreateLock(alice, big.NewInt(1_024), 5))

	power, err := node.EscrowBalanceOf(alice)
	require.NoError(t, err)
	require.Equal(t, int64(1_024), power.Int64())

	total, err := node.EscrowTotalPower()
	require.NoError(t, err)
	require.Equal(t, int64(1_024), total.Int64())

	account, err := node.Account(alice)
	require.NoError(t, err)
	require.Equal(t, int64(3_072), account.BalanceWasabi.Int64())

	end, err := node.EscrowLockedEnd(alice)
	require.NoError(t, err)
	require.Greater(t, end, uint64(1_700_000_000))
}

func TestNodeGovernancePauseGates(t *testing.T) {
	node := newTestNode(t)

	require.NoError(t, node.TransmuterSetPause(governance, true))
	require.Error(t, node.TransmuterStake(alice, big.NewInt(1)))
	require.NoError(t, node.TransmuterSetPause(governance, false))

	require.Error(t, node.TransmuterSetPause(alice, true))
}

func TestNodeEventSubscription(t *testing.T) {
	node := newTestNode(t)

	ch, replay, cancel := node.Events().Subscribe()
	defer cancel()
	_ = replay

	require.NoError(t, node.VaultDeposit(alice, big.NewInt(250)))

	select {
	case evt := <-ch:
		require.Equal(t, "vault.deposited", evt.Type)
		require.Equal(t, "250", evt.Attributes["amount"])
	default:
		t.Fatal("expected a deposit event")
	}
}
