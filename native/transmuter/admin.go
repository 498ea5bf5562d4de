package transmuter

import (
	"bytes"
	"errors"
	"math/big"

	"wasabix/core/events"
	"wasabix/crypto"
	nativecommon "wasabix/native/common"
	"wasabix/native/yield"
)

var (
	errAlreadyInitialized = errors.New("transmuter engine: already initialized")
	errNotInitialized     = errors.New("transmuter engine: not initialized")
)

// Initialize installs the governance address and binds the first yield
// adapter. It can run exactly once.
func (e *Engine) Initialize(governance crypto.Address, adapterID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Governance) == 20 {
		return errAlreadyInitialized
	}
	if governance.IsZero() {
		return errZeroAddress
	}
	adapter, err := e.adapters.Get(adapterID)
	if err != nil {
		return err
	}
	if adapter.Token() != e.baseToken {
		return errTokenMismatch
	}
	cfg.Governance = append([]byte(nil), governance.Bytes()...)
	if err := e.state.PutTransmuterConfig(cfg); err != nil {
		return err
	}
	return e.state.PutTransmuterAdapters([]*yield.Entry{{
		AdapterID:      adapterID,
		TotalDeposited: big.NewInt(0),
	}})
}

func (e *Engine) requireGovernance(caller crypto.Address) (*Config, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if len(cfg.Governance) != 20 {
		return nil, errNotInitialized
	}
	if !bytes.Equal(cfg.Governance, caller.Bytes()) {
		return nil, errNotGovernance
	}
	return cfg, nil
}

// SetGovernance starts the two-step governance handoff.
func (e *Engine) SetGovernance(caller, pending crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	cfg, err := e.requireGovernance(caller)
	if err != nil {
		return err
	}
	if pending.IsZero() {
		return errZeroAddress
	}
	cfg.PendingGovernance = append([]byte(nil), pending.Bytes()...)
	return e.state.PutTransmuterConfig(cfg)
}

// AcceptGovernance completes the handoff. Only the pending address may call.
func (e *Engine) AcceptGovernance(caller crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.PendingGovernance) != 20 || !bytes.Equal(cfg.PendingGovernance, caller.Bytes()) {
		return errNotPendingGov
	}
	cfg.Governance = cfg.PendingGovernance
	cfg.PendingGovernance = nil
	return e.state.PutTransmuterConfig(cfg)
}

// SetSentinel grants or revokes the pause privilege for an address.
func (e *Engine) SetSentinel(caller, sentinel crypto.Address, allowed bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	cfg, err := e.requireGovernance(caller)
	if err != nil {
		return err
	}
	if sentinel.IsZero() {
		return errZeroAddress
	}
	cfg.Sentinels = setAddrListed(cfg.Sentinels, sentinel, allowed)
	return e.state.PutTransmuterConfig(cfg)
}

// SetWhitelist grants or revokes an origin's right to call Distribute.
func (e *Engine) SetWhitelist(caller, origin crypto.Address, allowed bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	cfg, err := e.requireGovernance(caller)
	if err != nil {
		return err
	}
	if origin.IsZero() {
		return errZeroAddress
	}
	cfg.Whitelist = setAddrListed(cfg.Whitelist, origin, allowed)
	return e.state.PutTransmuterConfig(cfg)
}

// SetTransmutationPeriod retunes the phased-release window. Outstanding
// buffered yield settles under the old period first so the change cannot
// retroactively accelerate or stall an in-flight release.
func (e *Engine) SetTransmutationPeriod(caller crypto.Address, blocks uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	cfg, err := e.requireGovernance(caller)
	if err != nil {
		return err
	}
	if blocks == 0 {
		return errZeroPeriod
	}
	led, err := e.loadLedger()
	if err != nil {
		return err
	}
	e.runPhasedDistribution(led, cfg)
	if err := e.state.PutTransmuterLedger(led); err != nil {
		return err
	}
	cfg.TransmutationPeriod = blocks
	return e.state.PutTransmuterConfig(cfg)
}

// SetPlantableThreshold sets the local-balance target of the custody policy.
// Zero disables planting entirely.
func (e *Engine) SetPlantableThreshold(caller crypto.Address, threshold *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	cfg, err := e.requireGovernance(caller)
	if err != nil {
		return err
	}
	if threshold == nil || threshold.Sign() < 0 {
		return errInvalidAmount
	}
	cfg.PlantableThreshold = new(big.Int).Set(threshold)
	return e.state.PutTransmuterConfig(cfg)
}

// SetPlantableMargin sets the hysteresis band in basis points.
func (e *Engine) SetPlantableMargin(caller crypto.Address, bps uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	cfg, err := e.requireGovernance(caller)
	if err != nil {
		return err
	}
	if bps > 10_000 {
		return errInvalidAmount
	}
	cfg.PlantableMarginBps = bps
	return e.state.PutTransmuterConfig(cfg)
}

// SetPause toggles the pause flag. Governance and sentinels may pause;
// only governance may unpause.
func (e *Engine) SetPause(caller crypto.Address, paused bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Governance) != 20 {
		return errNotInitialized
	}
	isGov := bytes.Equal(cfg.Governance, caller.Bytes())
	if !isGov {
		if !paused || !addrListed(cfg.Sentinels, caller) {
			return errNotSentinel
		}
	}
	if cfg.Paused == paused {
		return nil
	}
	cfg.Paused = paused
	if err := e.state.PutTransmuterConfig(cfg); err != nil {
		return err
	}
	e.emitter.Emit(events.TransmuterPaused{Paused: paused})
	return nil
}

// MigrateAdapter appends a new active adapter. Earlier entries stay recallable
// until drained.
func (e *Engine) MigrateAdapter(caller crypto.Address, adapterID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.requireGovernance(caller); err != nil {
		return err
	}
	adapter, err := e.adapters.Get(adapterID)
	if err != nil {
		return err
	}
	if adapter.Token() != e.baseToken {
		return errTokenMismatch
	}
	entries, err := e.state.TransmuterAdapters()
	if err != nil {
		return err
	}
	entries = append(entries, &yield.Entry{AdapterID: adapterID, TotalDeposited: big.NewInt(0)})
	return e.state.PutTransmuterAdapters(entries)
}

// ForceRecall drains funds from the adapter entry at index back into local
// custody. Governance only while the entry is active; permissionless for
// superseded entries.
func (e *Engine) ForceRecall(caller crypto.Address, index int) error {
	if err := e.ready(); err != nil {
		return err
	}
	entries, err := e.state.TransmuterAdapters()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(entries) {
		return errUnknownVault
	}
	if index == yield.ActiveIndex(entries) {
		if _, err := e.requireGovernance(caller); err != nil {
			return err
		}
	}
	entry := entries[index]
	entry.Normalize()
	adapter, err := e.adapters.Get(entry.AdapterID)
	if err != nil {
		return err
	}
	value, err := adapter.TotalValue()
	if err != nil {
		return err
	}
	if value.Sign() == 0 {
		return nil
	}
	withdrawn, decreased, err := adapter.Withdraw(value, false)
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
	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return err
	}
	moduleAcc.BalanceBase = new(big.Int).Add(moduleAcc.BalanceBase, withdrawn)
	return e.state.PutAccount(e.moduleAddress, moduleAcc)
}

// MigrateFunds moves surplus base funds to a successor address. The pool must
// be paused first, and enough must stay behind to redeem every staked waToken
// one-for-one.
func (e *Engine) MigrateFunds(caller, successor crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	cfg, err := e.requireGovernance(caller)
	if err != nil {
		return err
	}
	if !cfg.Paused {
		return errNotPaused
	}
	if successor.IsZero() {
		return errZeroAddress
	}
	led, err := e.loadLedger()
	if err != nil {
		return err
	}
	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return err
	}
	reserve := new(big.Int).Set(led.TotalSupplyWaTokens)
	if moduleAcc.BalanceBase.Cmp(reserve) < 0 {
		return errReserveShortfall
	}
	surplus := new(big.Int).Sub(moduleAcc.BalanceBase, reserve)
	if surplus.Sign() == 0 {
		return nil
	}
	if err := e.transferBase(e.moduleAddress, successor, surplus); err != nil {
		return err
	}
	e.emitter.Emit(events.TransmuterMigrated{
		Successor: addr20(successor),
		Amount:    surplus,
		Reserved:  reserve,
	})
	return nil
}

// UserInfo projects a staker's position including dividends that a settlement
// right now would credit. Read-only; nothing persists.
func (e *Engine) UserInfo(addr crypto.Address) (*UserInfo, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	led, err := e.loadLedger()
	if err != nil {
		return nil, err
	}
	e.runPhasedDistribution(led, cfg)
	st, _, err := e.loadStaker(addr, led)
	if err != nil {
		return nil, err
	}
	pending := big.NewInt(0)
	delta := new(big.Int).Sub(led.TotalDividendPoints, st.LastDividendPoints)
	if delta.Sign() > 0 && st.DepositedWaTokens.Sign() > 0 {
		pending.Mul(st.DepositedWaTokens, delta)
		pending.Quo(pending, pointMultiplier)
	}
	return &UserInfo{
		DepositedWaTokens: new(big.Int).Set(st.DepositedWaTokens),
		PendingDividends:  pending,
		TokensInBucket:    new(big.Int).Set(st.TokensInBucket),
		RealisedTokens:    new(big.Int).Set(st.RealisedTokens),
	}, nil
}

// UserCount reports the size of the append-only user registry.
func (e *Engine) UserCount() (int, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	users, err := e.state.TransmuterUsers()
	if err != nil {
		return 0, err
	}
	return len(users), nil
}

// Users pages through the registry. Indexes are stable: entries are appended
// on first stake and never removed.
func (e *Engine) Users(offset, limit int) ([]crypto.Address, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	users, err := e.state.TransmuterUsers()
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset >= len(users) {
		return nil, nil
	}
	end := len(users)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]crypto.Address, 0, end-offset)
	for _, raw := range users[offset:end] {
		out = append(out, crypto.MustNewAddress(crypto.WaxPrefix, append([]byte(nil), raw...)))
	}
	return out, nil
}

// LedgerSnapshot returns a copy of the global distribution state.
func (e *Engine) LedgerSnapshot() (*Ledger, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	led, err := e.loadLedger()
	if err != nil {
		return nil, err
	}
	return &Ledger{
		Buffer:              copyBig(led.Buffer),
		LastDepositBlock:    led.LastDepositBlock,
		TotalDividendPoints: copyBig(led.TotalDividendPoints),
		UnclaimedDividends:  copyBig(led.UnclaimedDividends),
		TotalSupplyWaTokens: copyBig(led.TotalSupplyWaTokens),
	}, nil
}

func setAddrListed(list [][]byte, addr crypto.Address, allowed bool) [][]byte {
	raw := addr.Bytes()
	for i, b := range list {
		if bytes.Equal(b, raw) {
			if allowed {
				return list
			}
			return append(list[:i], list[i+1:]...)
		}
	}
	if allowed {
		return append(list, append([]byte(nil), raw...))
	}
	return list
}
