package vault

import (
	"bytes"
	"errors"
	"math/big"
	"strconv"

	"wasabix/core/events"
	"wasabix/core/types"
	"wasabix/crypto"
	nativecommon "wasabix/native/common"
	"wasabix/native/yield"
)

var (
	errNilState              = errors.New("vault engine: state not configured")
	errNoAdapters            = errors.New("vault engine: adapter registry not configured")
	errNoDistributor         = errors.New("vault engine: transmuter not configured")
	errNotInitialized        = errors.New("vault engine: not initialized")
	errAlreadyInitialized    = errors.New("vault engine: already initialized")
	errInvalidAmount         = errors.New("vault engine: amount must be positive")
	errInsufficientBalance   = errors.New("vault engine: insufficient balance")
	errInsufficientLiquidity = errors.New("vault engine: insufficient recallable funds")
	errUndercollateralized   = errors.New("vault engine: position would breach collateralization limit")
	errNotWhitelisted        = errors.New("vault engine: vault not whitelisted by debt token")
	errBlacklisted           = errors.New("vault engine: vault blacklisted by debt token")
	errCeilingBreached       = errors.New("vault engine: debt token mint ceiling breached")
	errRepayExceedsDebt      = errors.New("vault engine: repay amount exceeds outstanding debt")
	errNoDebt                = errors.New("vault engine: no outstanding debt")
	errNotGovernance         = errors.New("vault engine: caller is not governance")
	errNotPendingGovernance  = errors.New("vault engine: caller is not pending governance")
	errZeroAddress           = errors.New("vault engine: address cannot be zero")
	errHarvestFeeTooHigh     = errors.New("vault engine: harvest fee exceeds maximum")
	errCollateralizationOOB  = errors.New("vault engine: collateralization limit out of bounds")
	errTokenMismatch         = errors.New("vault engine: adapter token does not match collateral asset")
	errEmergencyExit         = errors.New("vault engine: emergency exit active")
	errUnknownVault          = errors.New("vault engine: unknown vault id")
	errFeeCollectorUnset     = errors.New("vault engine: fee collector not configured")
	errRewardsUnset          = errors.New("vault engine: rewards address not configured")
)

var (
	basisPoints = big.NewInt(10_000)
	// scalar is the 1e18 fixed decimal used for collateralization ratios.
	scalar = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

var (
	// minCollateralizationLimit is 100%: debt may never exceed collateral.
	minCollateralizationLimit = new(big.Int).Set(scalar)
	// maxCollateralizationLimit is 400%.
	maxCollateralizationLimit = new(big.Int).Mul(big.NewInt(4), scalar)
	maxHarvestFeeBps          = uint64(10_000)
)

const moduleName = "vault"

type engineState interface {
	VaultConfig() (*Config, error)
	PutVaultConfig(*Config) error
	VaultPosition(addr crypto.Address) (*Position, error)
	PutVaultPosition(addr crypto.Address, p *Position) error
	VaultAdapters() ([]*yield.Entry, error)
	PutVaultAdapters([]*yield.Entry) error
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
	WaTokenWhitelisted(vault crypto.Address) (bool, error)
	WaTokenBlacklisted(vault crypto.Address) (bool, error)
	WaTokenCeiling(vault crypto.Address) (*big.Int, error)
	WaTokenMinted(vault crypto.Address) (*big.Int, error)
	MintWaTokens(vault, to crypto.Address, amount *big.Int) error
	BurnWaTokens(from crypto.Address, amount *big.Int) error
	WaTokenLowerMinted(vault crypto.Address, amount *big.Int) error
}

// Distributor is the transmuter surface the vault drives: harvested yield,
// repayments and liquidations all funnel through Distribute.
type Distributor interface {
	Distribute(origin crypto.Address, amount *big.Int) error
}

// Engine orchestrates collateral custody, waToken debt and adapter fund flow
// for the CDP vault.
type Engine struct {
	state         engineState
	adapters      *yield.Registry
	distributor   Distributor
	emitter       events.Emitter
	pauses        nativecommon.PauseView
	moduleAddress crypto.Address
	baseToken     string
}

// NewEngine constructs a vault engine bound to its module treasury address and
// the symbol of the collateral asset it accepts.
func NewEngine(moduleAddr crypto.Address, baseToken string) *Engine {
	return &Engine{
		moduleAddress: moduleAddr,
		baseToken:     baseToken,
		emitter:       events.NoopEmitter{},
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAdapters wires the live adapter registry used to resolve persisted
// adapter identifiers.
func (e *Engine) SetAdapters(r *yield.Registry) { e.adapters = r }

// SetDistributor wires the transmuter collaborator.
func (e *Engine) SetDistributor(d Distributor) { e.distributor = d }

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

// ModuleAddress returns the vault module treasury address.
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
	cfg, err := e.state.VaultConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Normalize()
	return cfg, nil
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

func (e *Engine) loadPosition(addr crypto.Address) (*Position, error) {
	pos, err := e.state.VaultPosition(addr)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{}
	}
	pos.Normalize()
	return pos, nil
}

// transferBase moves base-asset balance between two accounts.
func (e *Engine) transferBase(from, to crypto.Address, amount *big.Int) error {
	if amount.Sign() == 0 || bytes.Equal(from.Bytes(), to.Bytes()) {
		return nil
	}
	fromAcc, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.BalanceBase.Cmp(amount) < 0 {
		return errInsufficientBalance
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

// collateralized reports whether deposited/debt (1e18 scaled) clears the
// configured limit. A zero-debt position is always healthy.
func collateralized(deposited, debt, limit *big.Int) bool {
	if debt == nil || debt.Sign() == 0 {
		return true
	}
	ratio := new(big.Int).Mul(deposited, scalar)
	ratio.Quo(ratio, debt)
	return ratio.Cmp(limit) >= 0
}

// Initialize performs the one-time binding of the first adapter. Most vault
// actions are gated until it has been called.
func (e *Engine) Initialize(caller crypto.Address, adapterID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if err := e.requireGovernance(cfg, caller); err != nil {
		return err
	}
	if cfg.Initialized {
		return errAlreadyInitialized
	}
	if err := e.appendAdapter(adapterID); err != nil {
		return err
	}
	cfg.Initialized = true
	if err := e.state.PutVaultConfig(cfg); err != nil {
		return err
	}
	e.emitter.Emit(events.VaultMigrated{AdapterID: adapterID, VaultID: 0})
	return nil
}

// Deposit transfers collateral into the caller's position, fee free. When the
// locally held balance crosses the flush activator the idle funds are planted
// into the active adapter within the same call.
func (e *Engine) Deposit(from crypto.Address, amount *big.Int) error {
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
	if !cfg.Initialized {
		return errNotInitialized
	}

	if err := e.transferBase(from, e.moduleAddress, amount); err != nil {
		return err
	}

	pos, err := e.loadPosition(from)
	if err != nil {
		return err
	}
	pos.TotalDeposited = new(big.Int).Add(pos.TotalDeposited, amount)
	if err := e.state.PutVaultPosition(from, pos); err != nil {
		return err
	}

	flushed := false
	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return err
	}
	if cfg.FlushActivator.Sign() > 0 && moduleAcc.BalanceBase.Cmp(cfg.FlushActivator) >= 0 {
		if err := e.flushLocked(); err != nil {
			return err
		}
		flushed = true
	}

	e.emitter.Emit(events.VaultDeposited{
		Account:        addr20(from),
		Amount:         new(big.Int).Set(amount),
		TotalDeposited: new(big.Int).Set(pos.TotalDeposited),
		Flushed:        flushed,
	})
	return nil
}

// Withdraw releases collateral back to the caller, net of the withdrawal fee,
// provided the position stays collateralized. Shortfalls in locally held
// funds are recalled from the active adapter first; the call fails only when
// funds are genuinely insufficient even after recall.
func (e *Engine) Withdraw(from crypto.Address, amount *big.Int) error {
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
	if !cfg.Initialized {
		return errNotInitialized
	}

	pos, err := e.loadPosition(from)
	if err != nil {
		return err
	}
	if pos.TotalDeposited.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	remaining := new(big.Int).Sub(pos.TotalDeposited, amount)
	if !collateralized(remaining, pos.TotalDebt, cfg.CollateralizationLimit) {
		return errUndercollateralized
	}

	if _, err := e.ensureLocalFunds(amount); err != nil {
		return err
	}

	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(cfg.WithdrawFeeBps))
	fee.Quo(fee, basisPoints)
	payout := new(big.Int).Sub(amount, fee)

	pos.TotalDeposited = remaining
	if err := e.state.PutVaultPosition(from, pos); err != nil {
		return err
	}
	if fee.Sign() > 0 {
		if len(cfg.FeeCollector) != 20 {
			return errFeeCollectorUnset
		}
		if err := e.transferBase(e.moduleAddress, crypto.NewAddress(crypto.WaxPrefix, cfg.FeeCollector), fee); err != nil {
			return err
		}
	}
	if err := e.transferBase(e.moduleAddress, from, payout); err != nil {
		return err
	}

	e.emitter.Emit(events.VaultWithdrawn{
		Account: addr20(from),
		Amount:  payout,
		Fee:     fee,
	})
	return nil
}

// Mint creates waTokens against the caller's collateral, charging the mint
// fee in debt-token units to the fee collector. The debt ceiling, whitelist
// and blacklist of the debt token are consulted on every call.
func (e *Engine) Mint(from crypto.Address, amount *big.Int) error {
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
	if !cfg.Initialized {
		return errNotInitialized
	}
	if cfg.EmergencyExit {
		return errEmergencyExit
	}

	whitelisted, err := e.state.WaTokenWhitelisted(e.moduleAddress)
	if err != nil {
		return err
	}
	if !whitelisted {
		return errNotWhitelisted
	}
	blacklisted, err := e.state.WaTokenBlacklisted(e.moduleAddress)
	if err != nil {
		return err
	}
	if blacklisted {
		return errBlacklisted
	}
	ceiling, err := e.state.WaTokenCeiling(e.moduleAddress)
	if err != nil {
		return err
	}
	minted, err := e.state.WaTokenMinted(e.moduleAddress)
	if err != nil {
		return err
	}
	projected := new(big.Int).Add(minted, amount)
	if ceiling == nil || projected.Cmp(ceiling) > 0 {
		return errCeilingBreached
	}

	pos, err := e.loadPosition(from)
	if err != nil {
		return err
	}
	projectedDebt := new(big.Int).Add(pos.TotalDebt, amount)
	if !collateralized(pos.TotalDeposited, projectedDebt, cfg.CollateralizationLimit) {
		return errUndercollateralized
	}

	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(cfg.MintFeeBps))
	fee.Quo(fee, basisPoints)
	toCaller := new(big.Int).Sub(amount, fee)

	pos.TotalDebt = projectedDebt
	if err := e.state.PutVaultPosition(from, pos); err != nil {
		return err
	}
	if err := e.state.MintWaTokens(e.moduleAddress, from, toCaller); err != nil {
		return err
	}
	if fee.Sign() > 0 {
		if len(cfg.FeeCollector) != 20 {
			return errFeeCollectorUnset
		}
		feeCollector := crypto.NewAddress(crypto.WaxPrefix, cfg.FeeCollector)
		if err := e.state.MintWaTokens(e.moduleAddress, feeCollector, fee); err != nil {
			return err
		}
	}

	e.emitter.Emit(events.VaultMinted{
		Account:   addr20(from),
		Amount:    toCaller,
		Fee:       fee,
		TotalDebt: new(big.Int).Set(pos.TotalDebt),
	})
	return nil
}

// Repay reduces the caller's debt by burning waTokens and/or routing base
// funds to the transmuter. The combined amount may not exceed outstanding
// debt.
func (e *Engine) Repay(from crypto.Address, waTokenAmount, baseAmount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if waTokenAmount == nil {
		waTokenAmount = big.NewInt(0)
	}
	if baseAmount == nil {
		baseAmount = big.NewInt(0)
	}
	if waTokenAmount.Sign() < 0 || baseAmount.Sign() < 0 {
		return errInvalidAmount
	}
	total := new(big.Int).Add(waTokenAmount, baseAmount)
	if total.Sign() == 0 {
		return errInvalidAmount
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Initialized {
		return errNotInitialized
	}

	pos, err := e.loadPosition(from)
	if err != nil {
		return err
	}
	if pos.TotalDebt.Sign() == 0 {
		return errNoDebt
	}
	if total.Cmp(pos.TotalDebt) > 0 {
		return errRepayExceedsDebt
	}

	if waTokenAmount.Sign() > 0 {
		callerAcc, err := e.loadAccount(from)
		if err != nil {
			return err
		}
		if callerAcc.BalanceWaToken.Cmp(waTokenAmount) < 0 {
			return errInsufficientBalance
		}
		if err := e.state.BurnWaTokens(from, waTokenAmount); err != nil {
			return err
		}
		if err := e.state.WaTokenLowerMinted(e.moduleAddress, waTokenAmount); err != nil {
			return err
		}
	}
	if baseAmount.Sign() > 0 {
		if e.distributor == nil {
			return errNoDistributor
		}
		if err := e.transferBase(from, e.moduleAddress, baseAmount); err != nil {
			return err
		}
		if err := e.distributor.Distribute(e.moduleAddress, baseAmount); err != nil {
			return err
		}
	}

	pos.TotalDebt = new(big.Int).Sub(pos.TotalDebt, total)
	if err := e.state.PutVaultPosition(from, pos); err != nil {
		return err
	}

	e.emitter.Emit(events.VaultRepaid{
		Account:       addr20(from),
		WaTokenAmount: waTokenAmount,
		BaseAmount:    baseAmount,
		TotalDebt:     new(big.Int).Set(pos.TotalDebt),
	})
	return nil
}

// Liquidate retires the caller's own debt with their deposited collateral,
// sending an equal amount of base funds to the transmuter to back staked
// waTokens. Funds are pulled from the local balance first, then recalled from
// the active adapter; the settled amount degrades gracefully to whatever is
// actually recallable.
func (e *Engine) Liquidate(from crypto.Address, amount *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Initialized {
		return nil, errNotInitialized
	}
	if e.distributor == nil {
		return nil, errNoDistributor
	}

	pos, err := e.loadPosition(from)
	if err != nil {
		return nil, err
	}
	if pos.TotalDebt.Sign() == 0 {
		return nil, errNoDebt
	}

	toLiquidate := new(big.Int).Set(amount)
	if toLiquidate.Cmp(pos.TotalDebt) > 0 {
		toLiquidate.Set(pos.TotalDebt)
	}
	if toLiquidate.Cmp(pos.TotalDeposited) > 0 {
		toLiquidate.Set(pos.TotalDeposited)
	}

	// Cap by what is actually on hand plus recallable from the active
	// adapter; a vault-side shortfall shrinks the settlement instead of
	// failing it.
	recalled, err := e.ensureLocalFundsCapped(toLiquidate)
	if err != nil {
		return nil, err
	}
	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	if moduleAcc.BalanceBase.Cmp(toLiquidate) < 0 {
		toLiquidate.Set(moduleAcc.BalanceBase)
	}
	if toLiquidate.Sign() == 0 {
		return nil, errInsufficientLiquidity
	}

	pos.TotalDeposited = new(big.Int).Sub(pos.TotalDeposited, toLiquidate)
	pos.TotalDebt = new(big.Int).Sub(pos.TotalDebt, toLiquidate)
	if err := e.state.PutVaultPosition(from, pos); err != nil {
		return nil, err
	}
	if err := e.distributor.Distribute(e.moduleAddress, toLiquidate); err != nil {
		return nil, err
	}

	e.emitter.Emit(events.VaultLiquidated{
		Account:  addr20(from),
		Amount:   toLiquidate,
		Recalled: recalled,
	})
	return toLiquidate, nil
}

// Flush plants all locally held, unplanted collateral into the active
// adapter. A zero balance is a no-op; an uninitialized vault rejects the
// call.
func (e *Engine) Flush(caller crypto.Address) error {
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
	if !cfg.Initialized {
		return errNotInitialized
	}
	return e.flushLocked()
}

func (e *Engine) flushLocked() error {
	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return err
	}
	balance := new(big.Int).Set(moduleAcc.BalanceBase)
	if balance.Sign() == 0 {
		return nil
	}
	entries, err := e.state.VaultAdapters()
	if err != nil {
		return err
	}
	active := yield.ActiveIndex(entries)
	if active < 0 {
		return errNotInitialized
	}
	entry := entries[active]
	adapter, err := e.adapters.Get(entry.AdapterID)
	if err != nil {
		return err
	}

	moduleAcc.BalanceBase = big.NewInt(0)
	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return err
	}
	if err := adapter.Deposit(balance); err != nil {
		return err
	}
	entry.Normalize()
	entry.TotalDeposited = new(big.Int).Add(entry.TotalDeposited, balance)
	if err := e.state.PutVaultAdapters(entries); err != nil {
		return err
	}

	e.emitter.Emit(events.VaultFlushed{AdapterID: entry.AdapterID, Amount: balance})
	return nil
}

// Harvest realizes yield from the specified adapter entry: the delta between
// adapter-reported value and tracked principal is withdrawn, the harvest fee
// is skimmed to the rewards address and the remainder is forwarded to the
// transmuter.
func (e *Engine) Harvest(vaultID uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Initialized {
		return nil, errNotInitialized
	}
	if cfg.EmergencyExit {
		return nil, errEmergencyExit
	}
	if e.distributor == nil {
		return nil, errNoDistributor
	}

	entries, err := e.state.VaultAdapters()
	if err != nil {
		return nil, err
	}
	if vaultID >= uint64(len(entries)) {
		return nil, errUnknownVault
	}
	entry := entries[vaultID]
	entry.Normalize()
	adapter, err := e.adapters.Get(entry.AdapterID)
	if err != nil {
		return nil, err
	}

	value, err := adapter.TotalValue()
	if err != nil {
		return nil, err
	}
	if value.Cmp(entry.TotalDeposited) <= 0 {
		// Nothing above principal to harvest.
		return big.NewInt(0), nil
	}
	yieldAmount := new(big.Int).Sub(value, entry.TotalDeposited)

	harvested, decreased, err := adapter.Withdraw(yieldAmount, true)
	if err != nil {
		return nil, err
	}
	// Reconcile: any principal the adapter reports as consumed is deducted
	// from tracking rather than trusted to be pure yield.
	principalLoss := new(big.Int).Sub(decreased, harvested)
	if principalLoss.Sign() > 0 {
		if principalLoss.Cmp(entry.TotalDeposited) > 0 {
			principalLoss.Set(entry.TotalDeposited)
		}
		entry.TotalDeposited = new(big.Int).Sub(entry.TotalDeposited, principalLoss)
	}
	if err := e.state.PutVaultAdapters(entries); err != nil {
		return nil, err
	}

	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	moduleAcc.BalanceBase = new(big.Int).Add(moduleAcc.BalanceBase, harvested)
	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return nil, err
	}

	fee := new(big.Int).Mul(harvested, new(big.Int).SetUint64(cfg.HarvestFeeBps))
	fee.Quo(fee, basisPoints)
	distributable := new(big.Int).Sub(harvested, fee)

	if fee.Sign() > 0 {
		if len(cfg.Rewards) != 20 {
			return nil, errRewardsUnset
		}
		rewards := crypto.NewAddress(crypto.WaxPrefix, cfg.Rewards)
		if err := e.transferBase(e.moduleAddress, rewards, fee); err != nil {
			return nil, err
		}
	}
	if distributable.Sign() > 0 {
		if err := e.distributor.Distribute(e.moduleAddress, distributable); err != nil {
			return nil, err
		}
	}

	e.emitter.Emit(events.VaultHarvested{
		AdapterID:   entry.AdapterID,
		Harvested:   harvested,
		Fee:         fee,
		Distributed: distributable,
	})
	return harvested, nil
}

// RecallFunds pulls deposited funds back from a specific adapter entry into
// the local balance. Recalling from the active entry is governance gated;
// legacy entries may be drained by anyone.
func (e *Engine) RecallFunds(caller crypto.Address, vaultID uint64, amount *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Initialized {
		return nil, errNotInitialized
	}
	entries, err := e.state.VaultAdapters()
	if err != nil {
		return nil, err
	}
	if vaultID >= uint64(len(entries)) {
		return nil, errUnknownVault
	}
	if int(vaultID) == yield.ActiveIndex(entries) {
		if err := e.requireGovernance(cfg, caller); err != nil {
			return nil, err
		}
	}
	entry := entries[vaultID]
	entry.Normalize()
	adapter, err := e.adapters.Get(entry.AdapterID)
	if err != nil {
		return nil, err
	}

	withdrawn, decreased, err := adapter.Withdraw(amount, false)
	if err != nil {
		return nil, err
	}
	if decreased.Cmp(entry.TotalDeposited) > 0 {
		decreased = new(big.Int).Set(entry.TotalDeposited)
	}
	entry.TotalDeposited = new(big.Int).Sub(entry.TotalDeposited, decreased)
	if err := e.state.PutVaultAdapters(entries); err != nil {
		return nil, err
	}
	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	moduleAcc.BalanceBase = new(big.Int).Add(moduleAcc.BalanceBase, withdrawn)
	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return nil, err
	}

	e.emitter.Emit(events.VaultFundsRecalled{
		VaultID:   vaultID,
		Requested: new(big.Int).Set(amount),
		Withdrawn: withdrawn,
	})
	return withdrawn, nil
}

// Migrate appends a new active adapter entry. The previous active entry
// becomes legacy; its funds are not moved automatically.
func (e *Engine) Migrate(caller crypto.Address, adapterID string) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return 0, err
	}
	if err := e.requireGovernance(cfg, caller); err != nil {
		return 0, err
	}
	if !cfg.Initialized {
		return 0, errNotInitialized
	}
	if err := e.appendAdapter(adapterID); err != nil {
		return 0, err
	}
	entries, err := e.state.VaultAdapters()
	if err != nil {
		return 0, err
	}
	id := uint64(yield.ActiveIndex(entries))
	e.emitter.Emit(events.VaultMigrated{AdapterID: adapterID, VaultID: id})
	return id, nil
}

func (e *Engine) appendAdapter(adapterID string) error {
	adapter, err := e.adapters.Get(adapterID)
	if err != nil {
		return err
	}
	if adapter.Token() != e.baseToken {
		return errTokenMismatch
	}
	entries, err := e.state.VaultAdapters()
	if err != nil {
		return err
	}
	entries = append(entries, &yield.Entry{AdapterID: adapterID, TotalDeposited: big.NewInt(0)})
	return e.state.PutVaultAdapters(entries)
}

// ensureLocalFunds recalls the shortfall between the module's local balance
// and the needed amount from the active adapter and fails when the recall
// cannot cover it.
func (e *Engine) ensureLocalFunds(needed *big.Int) (*big.Int, error) {
	recalled, err := e.ensureLocalFundsCapped(needed)
	if err != nil {
		return nil, err
	}
	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	if moduleAcc.BalanceBase.Cmp(needed) < 0 {
		return nil, errInsufficientLiquidity
	}
	return recalled, nil
}

// ensureLocalFundsCapped recalls up to the shortfall from the active adapter,
// capped by the adapter's reported total value. It never fails on a partial
// shortfall.
func (e *Engine) ensureLocalFundsCapped(needed *big.Int) (*big.Int, error) {
	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	if moduleAcc.BalanceBase.Cmp(needed) >= 0 {
		return big.NewInt(0), nil
	}
	shortfall := new(big.Int).Sub(needed, moduleAcc.BalanceBase)

	entries, err := e.state.VaultAdapters()
	if err != nil {
		return nil, err
	}
	active := yield.ActiveIndex(entries)
	if active < 0 {
		return big.NewInt(0), nil
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
	if shortfall.Cmp(available) > 0 {
		shortfall.Set(available)
	}
	if shortfall.Sign() == 0 {
		return big.NewInt(0), nil
	}

	withdrawn, decreased, err := adapter.Withdraw(shortfall, false)
	if err != nil {
		return nil, err
	}
	if decreased.Cmp(entry.TotalDeposited) > 0 {
		decreased = new(big.Int).Set(entry.TotalDeposited)
	}
	entry.TotalDeposited = new(big.Int).Sub(entry.TotalDeposited, decreased)
	if err := e.state.PutVaultAdapters(entries); err != nil {
		return nil, err
	}
	moduleAcc.BalanceBase = new(big.Int).Add(moduleAcc.BalanceBase, withdrawn)
	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return nil, err
	}
	return withdrawn, nil
}

// Position returns a copy of the caller-visible position record.
func (e *Engine) Position(addr crypto.Address) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(addr)
	if err != nil {
		return nil, err
	}
	return pos.Clone(), nil
}

// TotalValue aggregates locally held funds plus tracked deposits across all
// adapter entries.
func (e *Engine) TotalValue() (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	entries, err := e.state.VaultAdapters()
	if err != nil {
		return nil, err
	}
	total := yield.TotalDeposited(entries)
	return total.Add(total, moduleAcc.BalanceBase), nil
}

// VaultCount reports the number of adapter entries ever appended.
func (e *Engine) VaultCount() (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	entries, err := e.state.VaultAdapters()
	if err != nil {
		return 0, err
	}
	return uint64(len(entries)), nil
}

// VaultAt returns a copy of the adapter entry at the given index.
func (e *Engine) VaultAt(vaultID uint64) (*yield.Entry, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	entries, err := e.state.VaultAdapters()
	if err != nil {
		return nil, err
	}
	if vaultID >= uint64(len(entries)) {
		return nil, errUnknownVault
	}
	return entries[vaultID].Clone(), nil
}

func (e *Engine) requireGovernance(cfg *Config, caller crypto.Address) error {
	if len(cfg.Governance) == 0 || !bytes.Equal(cfg.Governance, caller.Bytes()) {
		return errNotGovernance
	}
	return nil
}

func addr20(a crypto.Address) [20]byte {
	var out [20]byte
	copy(out[:], a.Bytes())
	return out
}

// --- governance surface ---

// SetGovernance begins the two-step governance handoff.
func (e *Engine) SetGovernance(caller, pending crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if err := e.requireGovernance(cfg, caller); err != nil {
		return err
	}
	if pending.IsZero() {
		return errZeroAddress
	}
	cfg.PendingGovernance = append([]byte(nil), pending.Bytes()...)
	if err := e.state.PutVaultConfig(cfg); err != nil {
		return err
	}
	e.emitter.Emit(events.VaultParamUpdated{Param: "pendingGovernance", Value: pending.String()})
	return nil
}

// AcceptGovernance completes the handoff; only the pending address may call.
func (e *Engine) AcceptGovernance(caller crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.PendingGovernance) == 0 || !bytes.Equal(cfg.PendingGovernance, caller.Bytes()) {
		return errNotPendingGovernance
	}
	cfg.Governance = cfg.PendingGovernance
	cfg.PendingGovernance = nil
	if err := e.state.PutVaultConfig(cfg); err != nil {
		return err
	}
	e.emitter.Emit(events.VaultParamUpdated{Param: "governance", Value: caller.String()})
	return nil
}

// SetTransmuter updates the distribution target address.
func (e *Engine) SetTransmuter(caller, transmuter crypto.Address) error {
	return e.setAddressParam(caller, transmuter, "transmuter", func(cfg *Config, b []byte) { cfg.Transmuter = b })
}

// SetRewards updates the harvest fee collector.
func (e *Engine) SetRewards(caller, rewards crypto.Address) error {
	return e.setAddressParam(caller, rewards, "rewards", func(cfg *Config, b []byte) { cfg.Rewards = b })
}

// SetFeeCollector updates the mint/withdraw fee collector.
func (e *Engine) SetFeeCollector(caller, collector crypto.Address) error {
	return e.setAddressParam(caller, collector, "feeCollector", func(cfg *Config, b []byte) { cfg.FeeCollector = b })
}

func (e *Engine) setAddressParam(caller, addr crypto.Address, name string, apply func(*Config, []byte)) error {
	if err := e.ready(); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if err := e.requireGovernance(cfg, caller); err != nil {
		return err
	}
	if addr.IsZero() {
		return errZeroAddress
	}
	apply(cfg, append([]byte(nil), addr.Bytes()...))
	if err := e.state.PutVaultConfig(cfg); err != nil {
		return err
	}
	e.emitter.Emit(events.VaultParamUpdated{Param: name, Value: addr.String()})
	return nil
}

// SetHarvestFee updates the harvest fee, capped at the maximum.
func (e *Engine) SetHarvestFee(caller crypto.Address, bps uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if err := e.requireGovernance(cfg, caller); err != nil {
		return err
	}
	if bps > maxHarvestFeeBps {
		return errHarvestFeeTooHigh
	}
	cfg.HarvestFeeBps = bps
	if err := e.state.PutVaultConfig(cfg); err != nil {
		return err
	}
	e.emitter.Emit(events.VaultParamUpdated{Param: "harvestFee", Value: strconv.FormatUint(bps, 10)})
	return nil
}

// SetCollateralizationLimit updates the minimum collateral ratio within the
// allowed band.
func (e *Engine) SetCollateralizationLimit(caller crypto.Address, limit *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if err := e.requireGovernance(cfg, caller); err != nil {
		return err
	}
	if limit == nil || limit.Cmp(minCollateralizationLimit) < 0 || limit.Cmp(maxCollateralizationLimit) > 0 {
		return errCollateralizationOOB
	}
	cfg.CollateralizationLimit = new(big.Int).Set(limit)
	if err := e.state.PutVaultConfig(cfg); err != nil {
		return err
	}
	e.emitter.Emit(events.VaultParamUpdated{Param: "collateralizationLimit", Value: limit.String()})
	return nil
}

// SetFlushActivator updates the auto-flush threshold.
func (e *Engine) SetFlushActivator(caller crypto.Address, threshold *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if err := e.requireGovernance(cfg, caller); err != nil {
		return err
	}
	if threshold == nil || threshold.Sign() < 0 {
		return errInvalidAmount
	}
	cfg.FlushActivator = new(big.Int).Set(threshold)
	if err := e.state.PutVaultConfig(cfg); err != nil {
		return err
	}
	e.emitter.Emit(events.VaultParamUpdated{Param: "flushActivator", Value: threshold.String()})
	return nil
}

// SetEmergencyExit toggles the emergency flag halting mint and harvest.
func (e *Engine) SetEmergencyExit(caller crypto.Address, active bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if err := e.requireGovernance(cfg, caller); err != nil {
		return err
	}
	cfg.EmergencyExit = active
	if err := e.state.PutVaultConfig(cfg); err != nil {
		return err
	}
	e.emitter.Emit(events.VaultParamUpdated{Param: "emergencyExit", Value: strconv.FormatBool(active)})
	return nil
}
