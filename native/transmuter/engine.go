package transmuter

import (
	"bytes"
	"errors"
	"math/big"

	"wasabix/core/events"
	"wasabix/core/types"
	"wasabix/crypto"
	nativecommon "wasabix/native/common"
	"wasabix/native/yield"
)

var (
	errNilState            = errors.New("transmuter engine: state not configured")
	errNoAdapters          = errors.New("transmuter engine: adapter registry not configured")
	errInvalidAmount       = errors.New("transmuter engine: amount must be positive")
	errInsufficientStake   = errors.New("transmuter engine: unstake amount exceeds staked balance")
	errInsufficientBalance = errors.New("transmuter engine: insufficient waToken balance")
	errInsufficientFunds   = errors.New("transmuter engine: insufficient recallable funds")
	errNothingToTransmute  = errors.New("transmuter engine: nothing to transmute")
	errNothingToClaim      = errors.New("transmuter engine: nothing to claim")
	errNotOverflowed       = errors.New("transmuter engine: account is not in overflow")
	errPaused              = errors.New("transmuter engine: paused")
	errNotPaused           = errors.New("transmuter engine: not paused")
	errOriginNotAllowed    = errors.New("transmuter engine: origin is not whitelisted")
	errNotGovernance       = errors.New("transmuter engine: caller is not governance")
	errNotPendingGov       = errors.New("transmuter engine: caller is not pending governance")
	errNotSentinel         = errors.New("transmuter engine: caller is neither governance nor sentinel")
	errZeroAddress         = errors.New("transmuter engine: address cannot be zero")
	errZeroPeriod          = errors.New("transmuter engine: transmutation period must be positive")
	errTokenMismatch       = errors.New("transmuter engine: adapter token does not match base asset")
	errUnknownVault        = errors.New("transmuter engine: unknown vault id")
	errReserveShortfall    = errors.New("transmuter engine: funds do not cover staked supply")
)

// pointMultiplier scales the dividend-points accumulator so per-share
// quotients survive integer division.
var pointMultiplier = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

var basisPoints = big.NewInt(10_000)

const moduleName = "transmuter"

type engineState interface {
	TransmuterConfig() (*Config, error)
	PutTransmuterConfig(*Config) error
	TransmuterLedger() (*Ledger, error)
	PutTransmuterLedger(*Ledger) error
	TransmuterStaker(addr crypto.Address) (*Staker, error)
	PutTransmuterStaker(addr crypto.Address, s *Staker) error
	TransmuterUsers() ([][]byte, error)
	AppendTransmuterUser(addr crypto.Address) error
	TransmuterAdapters() ([]*yield.Entry, error)
	PutTransmuterAdapters([]*yield.Entry) error
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
	BurnWaTokens(from crypto.Address, amount *big.Int) error
}

// Engine owns the staked waToken pool and the phased release of distributed
// yield to its stakers.
type Engine struct {
	state         engineState
	adapters      *yield.Registry
	emitter       events.Emitter
	pauses        nativecommon.PauseView
	moduleAddress crypto.Address
	baseToken     string
	blockHeight   uint64
}

// NewEngine constructs a transmuter engine bound to its module treasury
// address and the base-asset symbol it pays out.
func NewEngine(moduleAddr crypto.Address, baseToken string) *Engine {
	return &Engine{
		moduleAddress: moduleAddr,
		baseToken:     baseToken,
		emitter:       events.NoopEmitter{},
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAdapters wires the live adapter registry.
func (e *Engine) SetAdapters(r *yield.Registry) { e.adapters = r }

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

// SetBlockHeight records the block height used for phased-release deltas.
func (e *Engine) SetBlockHeight(height uint64) { e.blockHeight = height }

// ModuleAddress returns the transmuter module treasury address.
func (e *Engine) ModuleAddress() crypto.Address { return e.moduleAddress }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.adapters == nil {
		return errNoAdapters
	}
	return nil
}

func (e *Engine) loadConfig() (*Config, error) {
	cfg, err := e.state.TransmuterConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Normalize()
	return cfg, nil
}

func (e *Engine) loadLedger() (*Ledger, error) {
	led, err := e.state.TransmuterLedger()
	if err != nil {
		return nil, err
	}
	if led == nil {
		led = &Ledger{}
	}
	led.Normalize()
	return led, nil
}

// loadStaker returns the staker record for the address, creating a fresh one
// checkpointed at the current accumulator so history cannot be claimed.
func (e *Engine) loadStaker(addr crypto.Address, led *Ledger) (*Staker, bool, error) {
	st, err := e.state.TransmuterStaker(addr)
	if err != nil {
		return nil, false, err
	}
	if st == nil {
		fresh := &Staker{LastDividendPoints: new(big.Int).Set(led.TotalDividendPoints)}
		fresh.Normalize()
		return fresh, true, nil
	}
	st.Normalize()
	return st, false, nil
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

// runPhasedDistribution releases the buffered yield earned since the last
// checkpoint into the dividend-points accumulator. Elapsed whole-period
// windows release everything; a partial window releases buffer*elapsed/period
// with integer division, which deliberately releases nothing while the
// product is below the period (anti-dust). The checkpoint block advances
// regardless of whether anything released. With no stakers the buffer is
// carried unchanged; there is no one to credit.
func (e *Engine) runPhasedDistribution(led *Ledger, cfg *Config) {
	current := e.blockHeight
	if current <= led.LastDepositBlock {
		led.LastDepositBlock = current
		return
	}
	elapsed := current - led.LastDepositBlock
	led.LastDepositBlock = current
	if led.Buffer.Sign() == 0 {
		return
	}
	period := cfg.TransmutationPeriod
	released := new(big.Int)
	if elapsed >= period {
		released.Set(led.Buffer)
	} else {
		released.Mul(led.Buffer, new(big.Int).SetUint64(elapsed))
		released.Quo(released, new(big.Int).SetUint64(period))
	}
	if released.Sign() == 0 {
		return
	}
	if led.TotalSupplyWaTokens.Sign() == 0 {
		return
	}
	led.Buffer = new(big.Int).Sub(led.Buffer, released)
	delta := new(big.Int).Mul(released, pointMultiplier)
	delta.Quo(delta, led.TotalSupplyWaTokens)
	led.TotalDividendPoints = new(big.Int).Add(led.TotalDividendPoints, delta)
	led.UnclaimedDividends = new(big.Int).Add(led.UnclaimedDividends, released)
}

// updateAccount settles the dividend-points checkpoint for one staker: the
// owed share since the last touch moves into the bucket and the checkpoint
// advances. O(1) per touch regardless of staker count.
func updateAccount(led *Ledger, st *Staker) {
	delta := new(big.Int).Sub(led.TotalDividendPoints, st.LastDividendPoints)
	if delta.Sign() > 0 && st.DepositedWaTokens.Sign() > 0 {
		owed := new(big.Int).Mul(st.DepositedWaTokens, delta)
		owed.Quo(owed, pointMultiplier)
		if owed.Sign() > 0 {
			st.TokensInBucket = new(big.Int).Add(st.TokensInBucket, owed)
			led.UnclaimedDividends = new(big.Int).Sub(led.UnclaimedDividends, owed)
		}
	}
	st.LastDividendPoints = new(big.Int).Set(led.TotalDividendPoints)
}

// Stake deposits waTokens into the distribution pool.
func (e *Engine) Stake(from crypto.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Paused {
		return errPaused
	}
	led, err := e.loadLedger()
	if err != nil {
		return err
	}
	e.runPhasedDistribution(led, cfg)

	st, fresh, err := e.loadStaker(from, led)
	if err != nil {
		return err
	}
	updateAccount(led, st)

	callerAcc, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if callerAcc.BalanceWaToken.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return err
	}
	callerAcc.BalanceWaToken = new(big.Int).Sub(callerAcc.BalanceWaToken, amount)
	moduleAcc.BalanceWaToken = new(big.Int).Add(moduleAcc.BalanceWaToken, amount)
	if err := e.state.PutAccount(from, callerAcc); err != nil {
		return err
	}
	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return err
	}

	st.DepositedWaTokens = new(big.Int).Add(st.DepositedWaTokens, amount)
	led.TotalSupplyWaTokens = new(big.Int).Add(led.TotalSupplyWaTokens, amount)

	if fresh {
		if err := e.state.AppendTransmuterUser(from); err != nil {
			return err
		}
	}
	if err := e.state.PutTransmuterStaker(from, st); err != nil {
		return err
	}
	if err := e.state.PutTransmuterLedger(led); err != nil {
		return err
	}

	e.emitter.Emit(events.TransmuterStaked{
		Account: addr20(from),
		Amount:  new(big.Int).Set(amount),
		Total:   new(big.Int).Set(st.DepositedWaTokens),
	})
	return nil
}

// Unstake returns staked waTokens to the caller. Unstaking stays open while
// the pool is paused; only stake and distribute are disabled.
func (e *Engine) Unstake(from crypto.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	led, err := e.loadLedger()
	if err != nil {
		return err
	}
	// Unstaking settles whatever the accumulator already granted but does not
	// advance the phased release itself; that stays with stake, transmute,
	// forceTransmute and distribute.
	st, _, err := e.loadStaker(from, led)
	if err != nil {
		return err
	}
	updateAccount(led, st)
	if st.DepositedWaTokens.Cmp(amount) < 0 {
		return errInsufficientStake
	}

	st.DepositedWaTokens = new(big.Int).Sub(st.DepositedWaTokens, amount)
	led.TotalSupplyWaTokens = new(big.Int).Sub(led.TotalSupplyWaTokens, amount)

	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return err
	}
	callerAcc, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	moduleAcc.BalanceWaToken = new(big.Int).Sub(moduleAcc.BalanceWaToken, amount)
	callerAcc.BalanceWaToken = new(big.Int).Add(callerAcc.BalanceWaToken, amount)
	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return err
	}
	if err := e.state.PutAccount(from, callerAcc); err != nil {
		return err
	}
	if err := e.state.PutTransmuterStaker(from, st); err != nil {
		return err
	}
	if err := e.state.PutTransmuterLedger(led); err != nil {
		return err
	}

	e.emitter.Emit(events.TransmuterUnstaked{Account: addr20(from), Amount: new(big.Int).Set(amount)})
	return nil
}

// Transmute converts the caller's accrued bucket into claimable base funds,
// burning an equal amount of staked waTokens. When the bucket exceeds the
// stake (overflow) only the staked amount converts; the excess is credited to
// the remaining stakers' accumulator, or buffered when none remain.
func (e *Engine) Transmute(from crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	led, err := e.loadLedger()
	if err != nil {
		return err
	}
	e.runPhasedDistribution(led, cfg)

	st, _, err := e.loadStaker(from, led)
	if err != nil {
		return err
	}
	updateAccount(led, st)
	if st.TokensInBucket.Sign() == 0 {
		return errNothingToTransmute
	}

	transmutable := new(big.Int).Set(st.TokensInBucket)
	overflow := new(big.Int)
	if transmutable.Cmp(st.DepositedWaTokens) > 0 {
		overflow.Sub(transmutable, st.DepositedWaTokens)
		transmutable.Set(st.DepositedWaTokens)
	}

	if transmutable.Sign() > 0 {
		if err := e.state.BurnWaTokens(e.moduleAddress, transmutable); err != nil {
			return err
		}
		st.DepositedWaTokens = new(big.Int).Sub(st.DepositedWaTokens, transmutable)
		led.TotalSupplyWaTokens = new(big.Int).Sub(led.TotalSupplyWaTokens, transmutable)
		st.RealisedTokens = new(big.Int).Add(st.RealisedTokens, transmutable)
	}
	st.TokensInBucket = big.NewInt(0)
	if overflow.Sign() > 0 {
		// The excess above the burned stake goes straight to everyone still
		// staked. Only when the pool emptied does it rejoin the phased
		// pipeline for whoever stakes next.
		if led.TotalSupplyWaTokens.Sign() > 0 {
			delta := new(big.Int).Mul(overflow, pointMultiplier)
			delta.Quo(delta, led.TotalSupplyWaTokens)
			led.TotalDividendPoints = new(big.Int).Add(led.TotalDividendPoints, delta)
			led.UnclaimedDividends = new(big.Int).Add(led.UnclaimedDividends, overflow)
		} else {
			led.Buffer = new(big.Int).Add(led.Buffer, overflow)
		}
	}

	if err := e.state.PutTransmuterStaker(from, st); err != nil {
		return err
	}
	if err := e.state.PutTransmuterLedger(led); err != nil {
		return err
	}

	e.emitter.Emit(events.TransmuterTransmuted{
		Account:  addr20(from),
		Amount:   transmutable,
		Overflow: overflow,
	})
	return nil
}

// ForceTransmute settles any account whose accrued bucket exceeds its stake.
// The caller earns the overflow difference into their own bucket as a bounty
// and the target's claimable balance is paid out immediately.
func (e *Engine) ForceTransmute(caller, target crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	led, err := e.loadLedger()
	if err != nil {
		return err
	}
	e.runPhasedDistribution(led, cfg)

	st, _, err := e.loadStaker(target, led)
	if err != nil {
		return err
	}
	updateAccount(led, st)
	if st.TokensInBucket.Cmp(st.DepositedWaTokens) <= 0 {
		return errNotOverflowed
	}
	overflow := new(big.Int).Sub(st.TokensInBucket, st.DepositedWaTokens)
	staked := new(big.Int).Set(st.DepositedWaTokens)

	if staked.Sign() > 0 {
		if err := e.state.BurnWaTokens(e.moduleAddress, staked); err != nil {
			return err
		}
		led.TotalSupplyWaTokens = new(big.Int).Sub(led.TotalSupplyWaTokens, staked)
	}
	st.DepositedWaTokens = big.NewInt(0)
	st.TokensInBucket = big.NewInt(0)
	st.RealisedTokens = new(big.Int).Add(st.RealisedTokens, staked)

	callerState, freshCaller, err := e.loadStaker(caller, led)
	if err != nil {
		return err
	}
	updateAccount(led, callerState)
	callerState.TokensInBucket = new(big.Int).Add(callerState.TokensInBucket, overflow)
	if freshCaller {
		if err := e.state.AppendTransmuterUser(caller); err != nil {
			return err
		}
	}

	// Pay the target's full claimable balance out immediately, bypassing the
	// normal claim flow.
	payout := new(big.Int).Set(st.RealisedTokens)
	st.RealisedTokens = big.NewInt(0)

	if err := e.state.PutTransmuterStaker(target, st); err != nil {
		return err
	}
	if err := e.state.PutTransmuterStaker(caller, callerState); err != nil {
		return err
	}
	if err := e.state.PutTransmuterLedger(led); err != nil {
		return err
	}

	if payout.Sign() > 0 {
		if err := e.ensureLocalFunds(payout); err != nil {
			return err
		}
		if err := e.transferBase(e.moduleAddress, target, payout); err != nil {
			return err
		}
	}

	e.emitter.Emit(events.TransmuterForced{
		Caller: addr20(caller),
		Target: addr20(target),
		Bounty: overflow,
		Paid:   payout,
	})
	return nil
}

// Claim pays out the caller's realised base funds in full, recalling from the
// external adapter when local liquidity falls short.
func (e *Engine) Claim(from crypto.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	led, err := e.loadLedger()
	if err != nil {
		return nil, err
	}
	st, _, err := e.loadStaker(from, led)
	if err != nil {
		return nil, err
	}
	payout := new(big.Int).Set(st.RealisedTokens)
	if payout.Sign() == 0 {
		return nil, errNothingToClaim
	}
	st.RealisedTokens = big.NewInt(0)
	if err := e.state.PutTransmuterStaker(from, st); err != nil {
		return nil, err
	}

	recalled, err := e.ensureLocalFundsTracked(payout)
	if err != nil {
		return nil, err
	}
	if err := e.transferBase(e.moduleAddress, from, payout); err != nil {
		return nil, err
	}

	e.emitter.Emit(events.TransmuterClaimed{
		Account:  addr20(from),
		Amount:   payout,
		Recalled: recalled,
	})
	return payout, nil
}

// Distribute accepts a lump-sum yield deposit from a whitelisted origin into
// the phased-release buffer, then rebalances custody against the plantable
// threshold.
func (e *Engine) Distribute(origin crypto.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Paused {
		return errPaused
	}
	if !addrListed(cfg.Whitelist, origin) {
		return errOriginNotAllowed
	}
	led, err := e.loadLedger()
	if err != nil {
		return err
	}
	e.runPhasedDistribution(led, cfg)

	if err := e.transferBase(origin, e.moduleAddress, amount); err != nil {
		return err
	}
	led.Buffer = new(big.Int).Add(led.Buffer, amount)
	if err := e.state.PutTransmuterLedger(led); err != nil {
		return err
	}

	if err := e.plantOrRecallExcessFunds(cfg); err != nil {
		return err
	}

	e.emitter.Emit(events.TransmuterDistributed{
		Origin: addr20(origin),
		Amount: new(big.Int).Set(amount),
		Buffer: new(big.Int).Set(led.Buffer),
	})
	return nil
}

// plantOrRecallExcessFunds keeps the locally held balance near the plantable
// threshold: beyond the hysteresis band the excess is planted into the active
// adapter, below it the shortfall is recalled. The band prevents thrashing on
// small oscillations.
func (e *Engine) plantOrRecallExcessFunds(cfg *Config) error {
	if cfg.PlantableThreshold.Sign() == 0 {
		return nil
	}
	entries, err := e.state.TransmuterAdapters()
	if err != nil {
		return err
	}
	active := yield.ActiveIndex(entries)
	if active < 0 {
		return nil
	}
	entry := entries[active]
	entry.Normalize()
	adapter, err := e.adapters.Get(entry.AdapterID)
	if err != nil {
		return err
	}

	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return err
	}
	balance := moduleAcc.BalanceBase
	band := new(big.Int).Mul(cfg.PlantableThreshold, new(big.Int).SetUint64(cfg.PlantableMarginBps))
	band.Quo(band, basisPoints)

	upper := new(big.Int).Add(cfg.PlantableThreshold, band)
	lower := new(big.Int).Sub(cfg.PlantableThreshold, band)

	switch {
	case balance.Cmp(upper) > 0:
		excess := new(big.Int).Sub(balance, cfg.PlantableThreshold)
		moduleAcc.BalanceBase = new(big.Int).Sub(balance, excess)
		if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
			return err
		}
		if err := adapter.Deposit(excess); err != nil {
			return err
		}
		entry.TotalDeposited = new(big.Int).Add(entry.TotalDeposited, excess)
		return e.state.PutTransmuterAdapters(entries)
	case balance.Cmp(lower) < 0:
		wanted := new(big.Int).Sub(cfg.PlantableThreshold, balance)
		available, err := adapter.TotalValue()
		if err != nil {
			return err
		}
		if wanted.Cmp(available) > 0 {
			wanted.Set(available)
		}
		if wanted.Sign() == 0 {
			return nil
		}
		withdrawn, decreased, err := adapter.Withdraw(wanted, false)
		if err != nil {
			return err
		}
		if decreased.Cmp(entry.TotalDeposited) > 0 {
			decreased = new(big.Int).Set(entry.TotalDeposited)
		}
		entry.TotalDeposited = new(big.Int).Sub(entry.TotalDeposited, decreased)
		if err := e.state.PutTransmuterAdapters(entries); err != nil {
			return err
		}
		moduleAcc.BalanceBase = new(big.Int).Add(moduleAcc.BalanceBase, withdrawn)
		return e.state.PutAccount(e.moduleAddress, moduleAcc)
	default:
		return nil
	}
}

// ensureLocalFunds recalls the shortfall for a payout from the active adapter
// and fails when even the recall cannot cover it.
func (e *Engine) ensureLocalFunds(needed *big.Int) error {
	_, err := e.ensureLocalFundsTracked(needed)
	return err
}

func (e *Engine) ensureLocalFundsTracked(needed *big.Int) (*big.Int, error) {
	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	if moduleAcc.BalanceBase.Cmp(needed) >= 0 {
		return big.NewInt(0), nil
	}
	shortfall := new(big.Int).Sub(needed, moduleAcc.BalanceBase)

	entries, err := e.state.TransmuterAdapters()
	if err != nil {
		return nil, err
	}
	active := yield.ActiveIndex(entries)
	if active < 0 {
		return nil, errInsufficientFunds
	}
	entry := entries[active]
	entry.Normalize()
	adapter, err := e.adapters.Get(entry.AdapterID)
	if err != nil {
		return nil, err
	}
	available, err := adapter.TotalValue()
	if err != nil {
		return nil, err
	}
	if available.Cmp(shortfall) < 0 {
		return nil, errInsufficientFunds
	}
	withdrawn, decreased, err := adapter.Withdraw(shortfall, false)
	if err != nil {
		return nil, err
	}
	if decreased.Cmp(entry.TotalDeposited) > 0 {
		decreased = new(big.Int).Set(entry.TotalDeposited)
	}
	entry.TotalDeposited = new(big.Int).Sub(entry.TotalDeposited, decreased)
	if err := e.state.PutTransmuterAdapters(entries); err != nil {
		return nil, err
	}
	moduleAcc.BalanceBase = new(big.Int).Add(moduleAcc.BalanceBase, withdrawn)
	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return nil, err
	}
	return withdrawn, nil
}

func (e *Engine) transferBase(from, to crypto.Address, amount *big.Int) error {
	if amount.Sign() == 0 || bytes.Equal(from.Bytes(), to.Bytes()) {
		return nil
	}
	fromAcc, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.BalanceBase.Cmp(amount) < 0 {
		return errInsufficientFunds
	}
	toAcc, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	fromAcc.BalanceBase = new(big.Int).Sub(fromAcc.BalanceBase, amount)
	toAcc.BalanceBase = new(big.Int).Add(toAcc.BalanceBase, amount)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

func addrListed(list [][]byte, addr crypto.Address) bool {
	for _, b := range list {
		if bytes.Equal(b, addr.Bytes()) {
			return true
		}
	}
	return false
}

func addr20(a crypto.Address) [20]byte {
	var out [20]byte
	copy(out[:], a.Bytes())
	return out
}
