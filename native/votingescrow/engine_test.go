package votingescrow

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"wasabix/core/types"
	"wasabix/crypto"
)

type mockState struct {
	config     *Config
	global     *Global
	streams    []*Stream
	locks      map[string]*Lock
	allowances map[string]*big.Int
	accounts   map[string]*types.Account
	tokens     map[string]map[string]*big.Int
	minted     *big.Int
}

func newMockState() *mockState {
	return &mockState{
		locks:      make(map[string]*Lock),
		allowances: make(map[string]*big.Int),
		accounts:   make(map[string]*types.Account),
		tokens:     make(map[string]map[string]*big.Int),
		minted:     big.NewInt(0),
	}
}

// The real state manager decodes a fresh object per load, so reads hand the
// caller an isolated copy. The mock accessors clone to honor that contract.
func (m *mockState) EscrowConfig() (*Config, error)     { return m.config, nil }
func (m *mockState) PutEscrowConfig(c *Config) error    { m.config = c; return nil }
func (m *mockState) EscrowGlobal() (*Global, error)     { return cloneGlobal(m.global), nil }
func (m *mockState) PutEscrowGlobal(g *Global) error    { m.global = g; return nil }
func (m *mockState) EscrowStreams() ([]*Stream, error)  { return cloneStreams(m.streams), nil }
func (m *mockState) PutEscrowStreams(s []*Stream) error { m.streams = s; return nil }

func cloneGlobal(g *Global) *Global {
	if g == nil {
		return nil
	}
	return &Global{
		TotalPower:      copyBig(g.TotalPower),
		LastUpdateBlock: g.LastUpdateBlock,
		RatePerBlock:    copyBig(g.RatePerBlock),
	}
}

func cloneStreams(streams []*Stream) []*Stream {
	if streams == nil {
		return nil
	}
	out := make([]*Stream, len(streams))
	for i, s := range streams {
		out[i] = &Stream{
			Token:          s.Token,
			NeedsVesting:   s.NeedsVesting,
			AccumulatorRaw: copyBig(s.AccumulatorRaw),
		}
	}
	return out
}

func (m *mockState) EscrowLock(addr crypto.Address) (*Lock, error) {
	l, ok := m.locks[string(addr.Bytes())]
	if !ok {
		return nil, nil
	}
	return l.Clone(), nil
}

func (m *mockState) PutEscrowLock(addr crypto.Address, l *Lock) error {
	m.locks[string(addr.Bytes())] = l.Clone()
	return nil
}

func (m *mockState) EscrowAllowance(token string) (*big.Int, error) {
	a, ok := m.allowances[token]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(a), nil
}

func (m *mockState) PutEscrowAllowance(token string, amount *big.Int) error {
	m.allowances[token] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) GetAccount(addr crypto.Address) (*types.Account, error) {
	acc, ok := m.accounts[string(addr.Bytes())]
	if !ok {
		return &types.Account{
			BalanceBase:    big.NewInt(0),
			BalanceWaToken: big.NewInt(0),
			BalanceWasabi:  big.NewInt(0),
		}, nil
	}
	return &types.Account{
		Nonce:          acc.Nonce,
		BalanceBase:    new(big.Int).Set(acc.BalanceBase),
		BalanceWaToken: new(big.Int).Set(acc.BalanceWaToken),
		BalanceWasabi:  new(big.Int).Set(acc.BalanceWasabi),
	}, nil
}

func (m *mockState) PutAccount(addr crypto.Address, acc *types.Account) error {
	m.accounts[string(addr.Bytes())] = acc
	return nil
}

func (m *mockState) MintWasabi(to crypto.Address, amount *big.Int) error {
	acc, _ := m.GetAccount(to)
	acc.BalanceWasabi = new(big.Int).Add(acc.BalanceWasabi, amount)
	m.minted = new(big.Int).Add(m.minted, amount)
	return m.PutAccount(to, acc)
}

func (m *mockState) TokenBalance(symbol string, addr crypto.Address) (*big.Int, error) {
	balances, ok := m.tokens[symbol]
	if !ok {
		return big.NewInt(0), nil
	}
	bal, ok := balances[string(addr.Bytes())]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

func (m *mockState) SetTokenBalance(symbol string, addr crypto.Address, amount *big.Int) error {
	if m.tokens[symbol] == nil {
		m.tokens[symbol] = make(map[string]*big.Int)
	}
	m.tokens[symbol][string(addr.Bytes())] = new(big.Int).Set(amount)
	return nil
}

type mockSink struct {
	addr     crypto.Address
	deposits map[string]*big.Int
}

func newMockSink(addr crypto.Address) *mockSink {
	return &mockSink{addr: addr, deposits: make(map[string]*big.Int)}
}

func (s *mockSink) Address() crypto.Address { return s.addr }

func (s *mockSink) DepositFor(account crypto.Address, amount *big.Int) error {
	prev, ok := s.deposits[string(account.Bytes())]
	if !ok {
		prev = big.NewInt(0)
	}
	s.deposits[string(account.Bytes())] = new(big.Int).Add(prev, amount)
	return nil
}

func testAddr(tag byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = tag
	return crypto.MustNewAddress(crypto.WaxPrefix, raw)
}

const (
	wasabiSymbol = "WASABI"
	rewardSymbol = "USDC"

	maxIndex  = 5 // 1440 days, the full decay denominator
	weekIndex = 0 // 7 days
)

func newTestEngine(t *testing.T) (*Engine, *mockState, crypto.Address, crypto.Address) {
	t.Helper()
	state := newMockState()
	moduleAddr := testAddr(0xFE)
	gov := testAddr(0x01)
	collector := testAddr(0x02)
	engine := NewEngine(moduleAddr, wasabiSymbol)
	engine.SetState(state)
	require.NoError(t, engine.Initialize(gov, collector, big.NewInt(0), []string{rewardSymbol}, []bool{false}))
	return engine, state, gov, collector
}

func fundWasabi(state *mockState, addr crypto.Address, amount int64) {
	state.accounts[string(addr.Bytes())] = &types.Account{
		BalanceBase:    big.NewInt(0),
		BalanceWaToken: big.NewInt(0),
		BalanceWasabi:  big.NewInt(amount),
	}
}

func TestInitializeValidation(t *testing.T) {
	state := newMockState()
	engine := NewEngine(testAddr(0xFE), wasabiSymbol)
	engine.SetState(state)

	gov := testAddr(0x01)
	collector := testAddr(0x02)
	require.ErrorIs(t,
		engine.Initialize(gov, collector, big.NewInt(0), []string{"A", "B"}, []bool{true}),
		errStreamArity)
	require.ErrorIs(t,
		engine.Initialize(gov, collector, big.NewInt(0), []string{wasabiSymbol}, []bool{false}),
		errDuplicateStream)
	require.NoError(t, engine.Initialize(gov, collector, big.NewInt(0), nil, nil))
	require.ErrorIs(t, engine.Initialize(gov, collector, big.NewInt(0), nil, nil), errAlreadyInit)
}

func TestPowerDecaysToZero(t *testing.T) {
	engine, state, _, _ := newTestEngine(t)
	alice := testAddr(0x10)
	fundWasabi(state, alice, 1_000)

	start := uint64(1_000_000)
	engine.SetBlockTime(start)
	require.NoError(t, engine.CreateLock(alice, big.NewInt(1_000), weekIndex))

	duration := uint64(7 * secondsPerDay)
	atStart, err := engine.BalanceAt(alice, start)
	require.NoError(t, err)
	// amount * D / MAX exactly.
	require.Equal(t, int64(1_000*7/1_440), atStart.Int64())

	mid, err := engine.BalanceAt(alice, start+duration/2)
	require.NoError(t, err)
	require.Equal(t, atStart.Int64()/2, mid.Int64())

	atEnd, err := engine.BalanceAt(alice, start+duration)
	require.NoError(t, err)
	require.Equal(t, int64(0), atEnd.Int64())
}

func TestLockLifecycle(t *testing.T) {
	engine, state, _, _ := newTestEngine(t)
	alice := testAddr(0x10)
	fundWasabi(state, alice, 5_000)

	engine.SetBlockTime(100)
	require.ErrorIs(t, engine.AddAmount(alice, big.NewInt(1)), errNoLock)
	require.ErrorIs(t, engine.CreateLock(alice, big.NewInt(1_000), 99), errInvalidDuration)
	require.NoError(t, engine.CreateLock(alice, big.NewInt(1_000), 1)) // 30 days
	require.ErrorIs(t, engine.CreateLock(alice, big.NewInt(1), 1), errLockExists)

	require.NoError(t, engine.AddAmount(alice, big.NewInt(500)))
	amount, err := engine.LockedAmount(alice)
	require.NoError(t, err)
	require.Equal(t, int64(1_500), amount.Int64())

	// Extension is measured from the original start and must lengthen.
	require.ErrorIs(t, engine.ExtendLock(alice, 0), errDurationShortened)
	require.NoError(t, engine.ExtendLock(alice, 2)) // 90 days
	end, err := engine.LockedEnd(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(100+90*secondsPerDay), end)

	require.ErrorIs(t, engine.Withdraw(alice), errLockNotExpired)
	engine.SetBlockTime(end)
	require.ErrorIs(t, engine.AddAmount(alice, big.NewInt(1)), errLockExpired)
	require.NoError(t, engine.Withdraw(alice))
	require.ErrorIs(t, engine.Withdraw(alice), errNoLock)

	acc, err := state.GetAccount(alice)
	require.NoError(t, err)
	require.Equal(t, int64(5_000), acc.BalanceWasabi.Int64())

	// Historical end stays readable after a full exit.
	end2, err := engine.LockedEnd(alice)
	require.NoError(t, err)
	require.Equal(t, end, end2)
}

func TestExternalRewardProRata(t *testing.T) {
	engine, state, _, collector := newTestEngine(t)
	alice := testAddr(0x10)
	bob := testAddr(0x11)
	fundWasabi(state, alice, 1_024)
	fundWasabi(state, bob, 3_072)
	require.NoError(t, state.SetTokenBalance(rewardSymbol, collector, big.NewInt(400)))

	engine.SetBlockTime(1_000)
	require.NoError(t, engine.CreateLock(alice, big.NewInt(1_024), maxIndex))
	require.NoError(t, engine.CreateLock(bob, big.NewInt(3_072), maxIndex))

	require.NoError(t, engine.Approve(collector, rewardSymbol, big.NewInt(400)))
	require.NoError(t, engine.CollectReward(rewardSymbol))

	alicePending, err := engine.PendingReward(alice, rewardSymbol)
	require.NoError(t, err)
	bobPending, err := engine.PendingReward(bob, rewardSymbol)
	require.NoError(t, err)
	require.Equal(t, int64(100), alicePending.Int64())
	require.Equal(t, int64(300), bobPending.Int64())

	// A locker who joins after the deposit gets none of it.
	carol := testAddr(0x12)
	fundWasabi(state, carol, 2_048)
	require.NoError(t, engine.CreateLock(carol, big.NewInt(2_048), maxIndex))
	carolPending, err := engine.PendingReward(carol, rewardSymbol)
	require.NoError(t, err)
	require.Equal(t, int64(0), carolPending.Int64())

	// Payout moves token balance and drains the pending projection.
	require.NoError(t, engine.VestEarning(alice))
	aliceBal, err := state.TokenBalance(rewardSymbol, alice)
	require.NoError(t, err)
	require.Equal(t, int64(100), aliceBal.Int64())
	alicePending, err = engine.PendingReward(alice, rewardSymbol)
	require.NoError(t, err)
	require.Equal(t, int64(0), alicePending.Int64())
}

func TestCollectRewardRequiresApprovalAndStream(t *testing.T) {
	engine, _, _, collector := newTestEngine(t)
	stranger := testAddr(0x30)

	require.ErrorIs(t, engine.Approve(stranger, rewardSymbol, big.NewInt(1)), errNotCollector)
	require.ErrorIs(t, engine.Approve(collector, "UNKNOWN", big.NewInt(1)), errUnknownStream)
	require.ErrorIs(t, engine.Approve(collector, wasabiSymbol, big.NewInt(1)), errUnknownStream)
	require.ErrorIs(t, engine.CollectReward("UNKNOWN"), errUnknownStream)

	// Zero allowance is a no-op, not an error.
	require.NoError(t, engine.CollectReward(rewardSymbol))
}

func TestNativeEmissionAccrual(t *testing.T) {
	engine, state, gov, _ := newTestEngine(t)
	alice := testAddr(0x10)
	fundWasabi(state, alice, 1_024)

	engine.SetBlockHeight(100)
	engine.SetBlockTime(1_000)
	require.NoError(t, engine.SetWasabiRewardRate(gov, big.NewInt(16)))
	require.NoError(t, engine.CreateLock(alice, big.NewInt(1_024), maxIndex))

	// 4 blocks at 16/block against a power of 1024: 64 total, exactly
	// representable in the binary fixed point.
	engine.SetBlockHeight(104)
	pending, err := engine.PendingWasabi(alice)
	require.NoError(t, err)
	require.Equal(t, int64(64), pending.Int64())

	require.NoError(t, engine.VestEarning(alice))
	acc, err := state.GetAccount(alice)
	require.NoError(t, err)
	require.Equal(t, int64(64), acc.BalanceWasabi.Int64())
	require.Equal(t, int64(64), state.minted.Int64())
}

func TestNativeEmissionIdleWithNoPower(t *testing.T) {
	engine, state, gov, _ := newTestEngine(t)
	require.NoError(t, engine.SetWasabiRewardRate(gov, big.NewInt(10)))

	// Blocks pass with no lockers: nothing is emitted and a later locker
	// cannot claim the idle span.
	engine.SetBlockHeight(1_000)
	alice := testAddr(0x10)
	fundWasabi(state, alice, 1_000)
	engine.SetBlockTime(500)
	require.NoError(t, engine.CreateLock(alice, big.NewInt(1_000), maxIndex))
	require.Equal(t, int64(0), state.minted.Int64())

	pending, err := engine.PendingWasabi(alice)
	require.NoError(t, err)
	require.Equal(t, int64(0), pending.Int64())
}

func TestRecordedPowerStaysStaleBetweenTouches(t *testing.T) {
	engine, state, _, _ := newTestEngine(t)
	alice := testAddr(0x10)
	fundWasabi(state, alice, 1_000)

	start := uint64(0)
	engine.SetBlockTime(start)
	require.NoError(t, engine.CreateLock(alice, big.NewInt(1_000), maxIndex))

	total, err := engine.TotalPower()
	require.NoError(t, err)
	require.Equal(t, int64(1_000), total.Int64())

	// Halfway through the lock the live balance has decayed but the recorded
	// total has not: accrual between touches is piecewise constant.
	engine.SetBlockTime(start + MaxLockDuration/2)
	live, err := engine.BalanceOf(alice)
	require.NoError(t, err)
	require.Equal(t, int64(500), live.Int64())
	total, err = engine.TotalPower()
	require.NoError(t, err)
	require.Equal(t, int64(1_000), total.Int64())

	// Any touch re-records the decayed value.
	require.NoError(t, engine.VestEarning(alice))
	total, err = engine.TotalPower()
	require.NoError(t, err)
	require.Equal(t, int64(500), total.Int64())
}

func TestVestingRedirect(t *testing.T) {
	engine, state, gov, _ := newTestEngine(t)
	sinkAddr := testAddr(0x40)
	sink := newMockSink(sinkAddr)
	engine.RegisterSink(wasabiSymbol, sink)
	require.NoError(t, engine.SetWasabiVesting(gov, true))
	require.NoError(t, engine.SetWasabiRewardRate(gov, big.NewInt(16)))

	alice := testAddr(0x10)
	fundWasabi(state, alice, 1_024)
	engine.SetBlockHeight(0)
	require.NoError(t, engine.CreateLock(alice, big.NewInt(1_024), maxIndex))

	engine.SetBlockHeight(4)
	require.NoError(t, engine.VestEarning(alice))

	// The reward went to the sink, not the locker.
	acc, err := state.GetAccount(alice)
	require.NoError(t, err)
	require.Equal(t, int64(0), acc.BalanceWasabi.Int64())
	sinkAcc, err := state.GetAccount(sinkAddr)
	require.NoError(t, err)
	require.Equal(t, int64(64), sinkAcc.BalanceWasabi.Int64())
	require.Equal(t, int64(64), sink.deposits[string(alice.Bytes())].Int64())
}

func TestVestingWithoutSinkFails(t *testing.T) {
	engine, state, gov, _ := newTestEngine(t)
	require.NoError(t, engine.SetWasabiVesting(gov, true))
	require.NoError(t, engine.SetWasabiRewardRate(gov, big.NewInt(16)))

	alice := testAddr(0x10)
	fundWasabi(state, alice, 1_024)
	engine.SetBlockHeight(0)
	require.NoError(t, engine.CreateLock(alice, big.NewInt(1_024), maxIndex))
	engine.SetBlockHeight(4)
	require.ErrorIs(t, engine.VestEarning(alice), errNoSink)
}

func TestAddRewardTokenMidFlight(t *testing.T) {
	engine, state, gov, collector := newTestEngine(t)
	alice := testAddr(0x10)
	fundWasabi(state, alice, 1_024)
	engine.SetBlockTime(0)
	require.NoError(t, engine.CreateLock(alice, big.NewInt(1_024), maxIndex))

	require.ErrorIs(t, engine.AddRewardToken(gov, rewardSymbol, false), errDuplicateStream)
	require.NoError(t, engine.AddRewardToken(gov, "WBTC", false))
	require.NoError(t, state.SetTokenBalance("WBTC", collector, big.NewInt(256)))
	require.NoError(t, engine.Approve(collector, "WBTC", big.NewInt(256)))
	require.NoError(t, engine.CollectReward("WBTC"))

	// The pre-existing lock picks up the new stream from zero.
	pending, err := engine.PendingReward(alice, "WBTC")
	require.NoError(t, err)
	require.Equal(t, int64(256), pending.Int64())
}

func TestGovernanceHandoff(t *testing.T) {
	engine, _, gov, _ := newTestEngine(t)
	next := testAddr(0x50)
	outsider := testAddr(0x51)

	require.ErrorIs(t, engine.SetWasabiRewardRate(outsider, big.NewInt(1)), errNotGovernance)
	require.NoError(t, engine.SetGovernance(gov, next))
	require.ErrorIs(t, engine.AcceptGovernance(outsider), errNotPendingGov)
	require.NoError(t, engine.AcceptGovernance(next))
	require.ErrorIs(t, engine.SetWasabiRewardRate(gov, big.NewInt(1)), errNotGovernance)
	require.NoError(t, engine.SetWasabiRewardRate(next, big.NewInt(1)))
}
