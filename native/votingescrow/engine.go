package votingescrow

import (
	"bytes"
	"errors"
	"math/big"

	"wasabix/core/events"
	"wasabix/core/types"
	"wasabix/crypto"
	nativecommon "wasabix/native/common"
	"wasabix/native/fixedmath"
)

var (
	errNilState          = errors.New("votingescrow engine: state not configured")
	errNotInitialized    = errors.New("votingescrow engine: not initialized")
	errAlreadyInit       = errors.New("votingescrow engine: already initialized")
	errInvalidAmount     = errors.New("votingescrow engine: amount must be positive")
	errInvalidDuration   = errors.New("votingescrow engine: duration index out of range")
	errDurationExceeded  = errors.New("votingescrow engine: duration exceeds maximum")
	errDurationShortened = errors.New("votingescrow engine: extension must lengthen the lock")
	errLockExists        = errors.New("votingescrow engine: lock already exists")
	errNoLock            = errors.New("votingescrow engine: no lock for account")
	errLockExpired       = errors.New("votingescrow engine: lock has expired")
	errLockNotExpired    = errors.New("votingescrow engine: lock has not expired")
	errInsufficientBal   = errors.New("votingescrow engine: insufficient balance")
	errUnknownStream     = errors.New("votingescrow engine: unknown reward stream")
	errDuplicateStream   = errors.New("votingescrow engine: reward stream already exists")
	errStreamArity       = errors.New("votingescrow engine: token and vesting flag lists differ in length")
	errNotGovernance     = errors.New("votingescrow engine: caller is not governance")
	errNotPendingGov     = errors.New("votingescrow engine: caller is not pending governance")
	errNotCollector      = errors.New("votingescrow engine: caller is not the collector")
	errZeroAddress       = errors.New("votingescrow engine: address cannot be zero")
	errNoPower           = errors.New("votingescrow engine: no voting power to distribute against")
	errNoSink            = errors.New("votingescrow engine: no vesting sink registered for stream")
)

const moduleName = "votingescrow"

// secondsPerDay converts the duration menu into lock lengths.
const secondsPerDay = 86_400

// lockDurationsDays is the fixed menu of allowed lock lengths. The last entry
// is also the maximum total duration and the decay denominator.
var lockDurationsDays = []uint64{7, 30, 90, 180, 360, 1_440}

// MaxLockDuration is the decay denominator in seconds.
const MaxLockDuration = 1_440 * secondsPerDay

// Sink receives vested rewards on behalf of an account.
type Sink interface {
	Address() crypto.Address
	DepositFor(account crypto.Address, amount *big.Int) error
}

type engineState interface {
	EscrowConfig() (*Config, error)
	PutEscrowConfig(*Config) error
	EscrowGlobal() (*Global, error)
	PutEscrowGlobal(*Global) error
	EscrowStreams() ([]*Stream, error)
	PutEscrowStreams([]*Stream) error
	EscrowLock(addr crypto.Address) (*Lock, error)
	PutEscrowLock(addr crypto.Address, l *Lock) error
	EscrowAllowance(token string) (*big.Int, error)
	PutEscrowAllowance(token string, amount *big.Int) error
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
	MintWasabi(to crypto.Address, amount *big.Int) error
	TokenBalance(symbol string, addr crypto.Address) (*big.Int, error)
	SetTokenBalance(symbol string, addr crypto.Address, amount *big.Int) error
}

// Engine owns decay-locked governance-token positions and their reward
// streams. Stream zero is always the native emission.
type Engine struct {
	state         engineState
	emitter       events.Emitter
	pauses        nativecommon.PauseView
	moduleAddress crypto.Address
	nativeSymbol  string
	sinks         map[string]Sink
	blockHeight   uint64
	blockTime     uint64
}

// NewEngine constructs an escrow engine bound to its module treasury address
// and the native reward token symbol.
func NewEngine(moduleAddr crypto.Address, nativeSymbol string) *Engine {
	return &Engine{
		moduleAddress: moduleAddr,
		nativeSymbol:  nativeSymbol,
		emitter:       events.NoopEmitter{},
		sinks:         make(map[string]Sink),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the pause flags consulted before every mutation.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetBlockHeight records the height driving the native emission stream.
func (e *Engine) SetBlockHeight(height uint64) { e.blockHeight = height }

// SetBlockTime records the timestamp driving lock decay.
func (e *Engine) SetBlockTime(ts uint64) { e.blockTime = ts }

// RegisterSink binds a vesting sink for one reward token's stream.
func (e *Engine) RegisterSink(token string, s Sink) { e.sinks[token] = s }

// ModuleAddress returns the escrow module treasury address.
func (e *Engine) ModuleAddress() crypto.Address { return e.moduleAddress }

// LockDurations exposes the menu in seconds, index-addressable by callers.
func LockDurations() []uint64 {
	out := make([]uint64, len(lockDurationsDays))
	for i, d := range lockDurationsDays {
		out[i] = d * secondsPerDay
	}
	return out
}

func (e *Engine) loadConfig() (*Config, error) {
	cfg, err := e.state.EscrowConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &Config{}
	}
	return cfg, nil
}

func (e *Engine) loadGlobal() (*Global, error) {
	g, err := e.state.EscrowGlobal()
	if err != nil {
		return nil, err
	}
	if g == nil {
		g = &Global{}
	}
	g.Normalize()
	return g, nil
}

func (e *Engine) loadStreams() ([]*Stream, error) {
	streams, err := e.state.EscrowStreams()
	if err != nil {
		return nil, err
	}
	for _, s := range streams {
		s.Normalize()
	}
	return streams, nil
}

func (e *Engine) loadLock(addr crypto.Address, streams int) (*Lock, error) {
	l, err := e.state.EscrowLock(addr)
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = &Lock{}
	}
	l.Normalize(streams)
	return l, nil
}

// powerAt evaluates amount * (end - t) / MaxLockDuration, zero at or past end.
func powerAt(amount *big.Int, end, t uint64) *big.Int {
	if amount == nil || amount.Sign() == 0 || t >= end {
		return big.NewInt(0)
	}
	remaining := new(big.Int).SetUint64(end - t)
	out := new(big.Int).Mul(amount, remaining)
	return out.Quo(out, big.NewInt(MaxLockDuration))
}

// accrueNative folds the per-block native emission since the last update into
// stream zero's accumulator and returns the freshly emitted amount. The
// emission for any span with zero recorded power is skipped, and the
// accumulator only moves at power-changing events, so decay between touches
// does not retroactively rescale past rewards. Pure over its arguments; the
// caller mints the returned amount when it persists.
func (e *Engine) accrueNative(g *Global, streams []*Stream) (*big.Int, error) {
	zero := big.NewInt(0)
	if e.blockHeight <= g.LastUpdateBlock {
		g.LastUpdateBlock = e.blockHeight
		return zero, nil
	}
	elapsed := e.blockHeight - g.LastUpdateBlock
	g.LastUpdateBlock = e.blockHeight
	if g.RatePerBlock.Sign() == 0 || g.TotalPower.Sign() == 0 || len(streams) == 0 {
		return zero, nil
	}
	minted := new(big.Int).Mul(g.RatePerBlock, new(big.Int).SetUint64(elapsed))
	delta, err := fixedmath.Div(minted, g.TotalPower)
	if err != nil {
		return nil, err
	}
	acc, err := fixedmath.FromRaw(streams[0].AccumulatorRaw)
	if err != nil {
		return nil, err
	}
	acc, err = acc.Add(delta)
	if err != nil {
		return nil, err
	}
	streams[0].AccumulatorRaw = acc.Raw()
	return minted, nil
}

// settle credits every stream's accrual since the account's last touch, then
// re-records the account's decayed power into the global total. Must run
// before any mutation that changes the account's power contribution.
func (e *Engine) settle(lock *Lock, g *Global, streams []*Stream) error {
	minted, err := e.accrueNative(g, streams)
	if err != nil {
		return err
	}
	if minted.Sign() > 0 {
		if err := e.state.MintWasabi(e.moduleAddress, minted); err != nil {
			return err
		}
	}
	lock.Normalize(len(streams))
	for i, s := range streams {
		acc, err := fixedmath.FromRaw(s.AccumulatorRaw)
		if err != nil {
			return err
		}
		snap, err := fixedmath.FromRaw(lock.SnapshotsRaw[i])
		if err != nil {
			return err
		}
		if acc.Cmp(snap) > 0 && lock.RecordedPower.Sign() > 0 {
			delta, err := acc.Sub(snap)
			if err != nil {
				return err
			}
			owed, err := delta.MulBig(lock.RecordedPower)
			if err != nil {
				return err
			}
			if owed.Sign() > 0 {
				lock.Earned[i] = new(big.Int).Add(lock.Earned[i], owed)
			}
		}
		lock.SnapshotsRaw[i] = acc.Raw()
	}
	current := powerAt(lock.Amount, lock.End, e.blockTime)
	g.TotalPower = new(big.Int).Sub(g.TotalPower, lock.RecordedPower)
	g.TotalPower = new(big.Int).Add(g.TotalPower, current)
	lock.RecordedPower = current
	return nil
}

// CreateLock opens a fresh position for one of the fixed menu durations.
func (e *Engine) CreateLock(from crypto.Address, amount *big.Int, durationIndex int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Initialized {
		return errNotInitialized
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if durationIndex < 0 || durationIndex >= len(lockDurationsDays) {
		return errInvalidDuration
	}
	streams, err := e.loadStreams()
	if err != nil {
		return err
	}
	g, err := e.loadGlobal()
	if err != nil {
		return err
	}
	lock, err := e.loadLock(from, len(streams))
	if err != nil {
		return err
	}
	if lock.Amount.Sign() > 0 {
		return errLockExists
	}
	if err := e.settle(lock, g, streams); err != nil {
		return err
	}

	duration := lockDurationsDays[durationIndex] * secondsPerDay
	lock.Amount = new(big.Int).Set(amount)
	lock.Start = e.blockTime
	lock.End = e.blockTime + duration
	power := powerAt(lock.Amount, lock.End, e.blockTime)
	g.TotalPower = new(big.Int).Sub(g.TotalPower, lock.RecordedPower)
	g.TotalPower = new(big.Int).Add(g.TotalPower, power)
	lock.RecordedPower = power

	if err := e.transferToken(e.nativeSymbol, from, e.moduleAddress, amount); err != nil {
		return err
	}
	if err := e.persist(from, lock, g, streams); err != nil {
		return err
	}

	e.emitter.Emit(events.EscrowLockCreated{
		Account: addr20(from),
		Amount:  new(big.Int).Set(amount),
		Start:   lock.Start,
		End:     lock.End,
	})
	return nil
}

// AddAmount tops up an unexpired lock without moving its end.
func (e *Engine) AddAmount(from crypto.Address, extra *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if extra == nil || extra.Sign() <= 0 {
		return errInvalidAmount
	}
	streams, err := e.loadStreams()
	if err != nil {
		return err
	}
	g, err := e.loadGlobal()
	if err != nil {
		return err
	}
	lock, err := e.loadLock(from, len(streams))
	if err != nil {
		return err
	}
	if lock.Amount.Sign() == 0 {
		return errNoLock
	}
	if e.blockTime >= lock.End {
		return errLockExpired
	}
	if err := e.settle(lock, g, streams); err != nil {
		return err
	}

	lock.Amount = new(big.Int).Add(lock.Amount, extra)
	power := powerAt(lock.Amount, lock.End, e.blockTime)
	g.TotalPower = new(big.Int).Sub(g.TotalPower, lock.RecordedPower)
	g.TotalPower = new(big.Int).Add(g.TotalPower, power)
	lock.RecordedPower = power

	if err := e.transferToken(e.nativeSymbol, from, e.moduleAddress, extra); err != nil {
		return err
	}
	if err := e.persist(from, lock, g, streams); err != nil {
		return err
	}

	e.emitter.Emit(events.EscrowAmountAdded{
		Account: addr20(from),
		Amount:  new(big.Int).Set(extra),
		Total:   new(big.Int).Set(lock.Amount),
	})
	return nil
}

// ExtendLock stretches the total duration, measured from the original start,
// to a longer menu entry. The result may not exceed the maximum and must
// strictly lengthen the lock.
func (e *Engine) ExtendLock(from crypto.Address, durationIndex int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if durationIndex < 0 || durationIndex >= len(lockDurationsDays) {
		return errInvalidDuration
	}
	streams, err := e.loadStreams()
	if err != nil {
		return err
	}
	g, err := e.loadGlobal()
	if err != nil {
		return err
	}
	lock, err := e.loadLock(from, len(streams))
	if err != nil {
		return err
	}
	if lock.Amount.Sign() == 0 {
		return errNoLock
	}
	duration := lockDurationsDays[durationIndex] * secondsPerDay
	if duration > MaxLockDuration {
		return errDurationExceeded
	}
	newEnd := lock.Start + duration
	if newEnd <= lock.End {
		return errDurationShortened
	}
	if err := e.settle(lock, g, streams); err != nil {
		return err
	}

	lock.End = newEnd
	power := powerAt(lock.Amount, lock.End, e.blockTime)
	g.TotalPower = new(big.Int).Sub(g.TotalPower, lock.RecordedPower)
	g.TotalPower = new(big.Int).Add(g.TotalPower, power)
	lock.RecordedPower = power

	if err := e.persist(from, lock, g, streams); err != nil {
		return err
	}

	e.emitter.Emit(events.EscrowLockExtended{Account: addr20(from), End: newEnd})
	return nil
}

// Withdraw returns the locked tokens once the lock has fully decayed.
func (e *Engine) Withdraw(from crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	streams, err := e.loadStreams()
	if err != nil {
		return err
	}
	g, err := e.loadGlobal()
	if err != nil {
		return err
	}
	lock, err := e.loadLock(from, len(streams))
	if err != nil {
		return err
	}
	if lock.Amount.Sign() == 0 {
		return errNoLock
	}
	if e.blockTime < lock.End {
		return errLockNotExpired
	}
	if err := e.settle(lock, g, streams); err != nil {
		return err
	}

	amount := new(big.Int).Set(lock.Amount)
	lock.Amount = big.NewInt(0)
	// RecordedPower is already zero after settle: the lock has expired.

	if err := e.persist(from, lock, g, streams); err != nil {
		return err
	}
	if err := e.transferToken(e.nativeSymbol, e.moduleAddress, from, amount); err != nil {
		return err
	}

	e.emitter.Emit(events.EscrowWithdrawn{Account: addr20(from), Amount: amount})
	return nil
}

// CollectReward pulls the collector's entire outstanding allowance for one
// external reward token into the pool and distributes it against the current
// recorded power. Permissionless.
func (e *Engine) CollectReward(token string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Initialized {
		return errNotInitialized
	}
	streams, err := e.loadStreams()
	if err != nil {
		return err
	}
	idx := streamIndex(streams, token)
	if idx <= 0 {
		// Stream zero is the native emission and is never collector-funded.
		return errUnknownStream
	}
	g, err := e.loadGlobal()
	if err != nil {
		return err
	}
	minted, err := e.accrueNative(g, streams)
	if err != nil {
		return err
	}
	if minted.Sign() > 0 {
		if err := e.state.MintWasabi(e.moduleAddress, minted); err != nil {
			return err
		}
	}
	allowance, err := e.state.EscrowAllowance(token)
	if err != nil {
		return err
	}
	if allowance == nil || allowance.Sign() == 0 {
		return e.persistGlobal(g, streams)
	}
	if g.TotalPower.Sign() == 0 {
		return errNoPower
	}
	collector := crypto.MustNewAddress(crypto.WaxPrefix, append([]byte(nil), cfg.Collector...))
	if err := e.transferToken(token, collector, e.moduleAddress, allowance); err != nil {
		return err
	}
	if err := e.state.PutEscrowAllowance(token, big.NewInt(0)); err != nil {
		return err
	}
	delta, err := fixedmath.Div(allowance, g.TotalPower)
	if err != nil {
		return err
	}
	acc, err := fixedmath.FromRaw(streams[idx].AccumulatorRaw)
	if err != nil {
		return err
	}
	acc, err = acc.Add(delta)
	if err != nil {
		return err
	}
	streams[idx].AccumulatorRaw = acc.Raw()
	if err := e.persistGlobal(g, streams); err != nil {
		return err
	}

	e.emitter.Emit(events.EscrowRewardCollected{Token: token, Amount: new(big.Int).Set(allowance)})
	return nil
}

// VestEarning settles every stream for the caller and pays out: streams
// flagged for vesting forward to their registered sink, the rest pay the
// caller directly. Earned balances are zeroed before any transfer leaves.
func (e *Engine) VestEarning(from crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	streams, err := e.loadStreams()
	if err != nil {
		return err
	}
	g, err := e.loadGlobal()
	if err != nil {
		return err
	}
	lock, err := e.loadLock(from, len(streams))
	if err != nil {
		return err
	}
	if err := e.settle(lock, g, streams); err != nil {
		return err
	}

	payouts := make([]*big.Int, len(streams))
	for i := range streams {
		payouts[i] = lock.Earned[i]
		lock.Earned[i] = big.NewInt(0)
	}
	if err := e.persist(from, lock, g, streams); err != nil {
		return err
	}

	for i, s := range streams {
		amount := payouts[i]
		if amount.Sign() == 0 {
			continue
		}
		if s.NeedsVesting {
			sink, ok := e.sinks[s.Token]
			if !ok {
				return errNoSink
			}
			if err := e.transferToken(s.Token, e.moduleAddress, sink.Address(), amount); err != nil {
				return err
			}
			if err := sink.DepositFor(from, amount); err != nil {
				return err
			}
		} else {
			if err := e.transferToken(s.Token, e.moduleAddress, from, amount); err != nil {
				return err
			}
		}
		e.emitter.Emit(events.EscrowEarningVested{
			Account: addr20(from),
			Token:   s.Token,
			Amount:  new(big.Int).Set(amount),
			Vested:  s.NeedsVesting,
		})
	}
	return nil
}

func (e *Engine) persist(addr crypto.Address, lock *Lock, g *Global, streams []*Stream) error {
	if err := e.state.PutEscrowLock(addr, lock); err != nil {
		return err
	}
	return e.persistGlobal(g, streams)
}

func (e *Engine) persistGlobal(g *Global, streams []*Stream) error {
	if err := e.state.PutEscrowGlobal(g); err != nil {
		return err
	}
	return e.state.PutEscrowStreams(streams)
}

// transferToken moves either the native governance token (a named account
// balance) or an arbitrary external reward token (symbol-keyed balance).
func (e *Engine) transferToken(symbol string, from, to crypto.Address, amount *big.Int) error {
	if amount.Sign() == 0 || bytes.Equal(from.Bytes(), to.Bytes()) {
		return nil
	}
	if symbol == e.nativeSymbol {
		fromAcc, err := e.loadAccount(from)
		if err != nil {
			return err
		}
		if fromAcc.BalanceWasabi.Cmp(amount) < 0 {
			return errInsufficientBal
		}
		toAcc, err := e.loadAccount(to)
		if err != nil {
			return err
		}
		fromAcc.BalanceWasabi = new(big.Int).Sub(fromAcc.BalanceWasabi, amount)
		toAcc.BalanceWasabi = new(big.Int).Add(toAcc.BalanceWasabi, amount)
		if err := e.state.PutAccount(from, fromAcc); err != nil {
			return err
		}
		return e.state.PutAccount(to, toAcc)
	}
	fromBal, err := e.state.TokenBalance(symbol, from)
	if err != nil {
		return err
	}
	if fromBal == nil {
		fromBal = big.NewInt(0)
	}
	if fromBal.Cmp(amount) < 0 {
		return errInsufficientBal
	}
	toBal, err := e.state.TokenBalance(symbol, to)
	if err != nil {
		return err
	}
	if toBal == nil {
		toBal = big.NewInt(0)
	}
	if err := e.state.SetTokenBalance(symbol, from, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return e.state.SetTokenBalance(symbol, to, new(big.Int).Add(toBal, amount))
}

func (e *Engine) loadAccount(addr crypto.Address) (*types.Account, error) {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = &types.Account{}
	}
	if acc.BalanceBase == nil {
		acc.BalanceBase = big.NewInt(0)
	}
	if acc.BalanceWaToken == nil {
		acc.BalanceWaToken = big.NewInt(0)
	}
	if acc.BalanceWasabi == nil {
		acc.BalanceWasabi = big.NewInt(0)
	}
	return acc, nil
}

func streamIndex(streams []*Stream, token string) int {
	for i, s := range streams {
		if s.Token == token {
			return i
		}
	}
	return -1
}

func addr20(a crypto.Address) [20]byte {
	var out [20]byte
	copy(out[:], a.Bytes())
	return out
}
