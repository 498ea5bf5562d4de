package votingescrow

import (
	"bytes"
	"math/big"

	"wasabix/crypto"
	"wasabix/native/fixedmath"
)

// Initialize installs governance, the collector, the native emission rate and
// the initial reward-token roster. Stream zero for the native token is always
// created; tokens and vesting flags must pair up. Single shot.
func (e *Engine) Initialize(governance, collector crypto.Address, ratePerBlock *big.Int, tokens []string, needsVesting []bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Initialized {
		return errAlreadyInit
	}
	if governance.IsZero() || collector.IsZero() {
		return errZeroAddress
	}
	if len(tokens) != len(needsVesting) {
		return errStreamArity
	}
	if ratePerBlock == nil || ratePerBlock.Sign() < 0 {
		return errInvalidAmount
	}

	streams := []*Stream{{Token: e.nativeSymbol, AccumulatorRaw: big.NewInt(0)}}
	for i, token := range tokens {
		if token == e.nativeSymbol || streamIndex(streams, token) >= 0 {
			return errDuplicateStream
		}
		streams = append(streams, &Stream{
			Token:          token,
			NeedsVesting:   needsVesting[i],
			AccumulatorRaw: big.NewInt(0),
		})
	}

	cfg.Governance = append([]byte(nil), governance.Bytes()...)
	cfg.Collector = append([]byte(nil), collector.Bytes()...)
	cfg.Initialized = true
	if err := e.state.PutEscrowConfig(cfg); err != nil {
		return err
	}
	if err := e.state.PutEscrowStreams(streams); err != nil {
		return err
	}
	return e.state.PutEscrowGlobal(&Global{
		TotalPower:      big.NewInt(0),
		LastUpdateBlock: e.blockHeight,
		RatePerBlock:    new(big.Int).Set(ratePerBlock),
	})
}

func (e *Engine) requireGovernance(caller crypto.Address) (*Config, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Initialized {
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
	return e.state.PutEscrowConfig(cfg)
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
	return e.state.PutEscrowConfig(cfg)
}

// AddRewardToken opens a new external reward stream. Existing locks pick up a
// zero snapshot for it on their next touch.
func (e *Engine) AddRewardToken(caller crypto.Address, token string, needsVesting bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if _, err := e.requireGovernance(caller); err != nil {
		return err
	}
	if token == "" || token == e.nativeSymbol {
		return errDuplicateStream
	}
	streams, err := e.loadStreams()
	if err != nil {
		return err
	}
	if streamIndex(streams, token) >= 0 {
		return errDuplicateStream
	}
	streams = append(streams, &Stream{
		Token:          token,
		NeedsVesting:   needsVesting,
		AccumulatorRaw: big.NewInt(0),
	})
	return e.state.PutEscrowStreams(streams)
}

// SetWasabiRewardRate retunes the native emission. Accrual up to the current
// block settles under the old rate first.
func (e *Engine) SetWasabiRewardRate(caller crypto.Address, rate *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if _, err := e.requireGovernance(caller); err != nil {
		return err
	}
	if rate == nil || rate.Sign() < 0 {
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
	minted, err := e.accrueNative(g, streams)
	if err != nil {
		return err
	}
	if minted.Sign() > 0 {
		if err := e.state.MintWasabi(e.moduleAddress, minted); err != nil {
			return err
		}
	}
	g.RatePerBlock = new(big.Int).Set(rate)
	return e.persistGlobal(g, streams)
}

// SetWasabiVesting toggles the vesting redirect on the native stream.
func (e *Engine) SetWasabiVesting(caller crypto.Address, needsVesting bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if _, err := e.requireGovernance(caller); err != nil {
		return err
	}
	streams, err := e.loadStreams()
	if err != nil {
		return err
	}
	if len(streams) == 0 {
		return errUnknownStream
	}
	streams[0].NeedsVesting = needsVesting
	return e.state.PutEscrowStreams(streams)
}

// SetCollector points external reward pulls at a new source address.
func (e *Engine) SetCollector(caller, collector crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	cfg, err := e.requireGovernance(caller)
	if err != nil {
		return err
	}
	if collector.IsZero() {
		return errZeroAddress
	}
	cfg.Collector = append([]byte(nil), collector.Bytes()...)
	return e.state.PutEscrowConfig(cfg)
}

// Approve records the allowance CollectReward may pull for one token. Only
// the configured collector may call; the amount replaces any prior approval.
func (e *Engine) Approve(caller crypto.Address, token string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Initialized {
		return errNotInitialized
	}
	if !bytes.Equal(cfg.Collector, caller.Bytes()) {
		return errNotCollector
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	streams, err := e.loadStreams()
	if err != nil {
		return err
	}
	if streamIndex(streams, token) <= 0 {
		return errUnknownStream
	}
	return e.state.PutEscrowAllowance(token, new(big.Int).Set(amount))
}

// BalanceOf returns the live decayed voting power right now.
func (e *Engine) BalanceOf(addr crypto.Address) (*big.Int, error) {
	return e.BalanceAt(addr, e.blockTime)
}

// BalanceAt evaluates the decay formula at an arbitrary timestamp.
func (e *Engine) BalanceAt(addr crypto.Address, t uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	lock, err := e.state.EscrowLock(addr)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return big.NewInt(0), nil
	}
	return powerAt(lock.Amount, lock.End, t), nil
}

// TotalPower returns the recorded pool-wide power, i.e. the sum of every
// account's power as of its own last touch.
func (e *Engine) TotalPower() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	g, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(g.TotalPower), nil
}

// LockedAmount returns the locked balance, zero after withdraw.
func (e *Engine) LockedAmount(addr crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	lock, err := e.state.EscrowLock(addr)
	if err != nil {
		return nil, err
	}
	if lock == nil || lock.Amount == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(lock.Amount), nil
}

// LockedEnd returns the lock expiry, zero when no lock was ever created.
func (e *Engine) LockedEnd(addr crypto.Address) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	lock, err := e.state.EscrowLock(addr)
	if err != nil {
		return 0, err
	}
	if lock == nil {
		return 0, nil
	}
	return lock.End, nil
}

// PendingReward projects what a settlement right now would credit for one
// token, including the still-banked earned balance. Read-only.
func (e *Engine) PendingReward(addr crypto.Address, token string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	streams, err := e.loadStreams()
	if err != nil {
		return nil, err
	}
	idx := streamIndex(streams, token)
	if idx < 0 {
		return nil, errUnknownStream
	}
	g, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	if _, err := e.accrueNative(g, streams); err != nil {
		return nil, err
	}
	lock, err := e.loadLock(addr, len(streams))
	if err != nil {
		return nil, err
	}
	pending := new(big.Int).Set(lock.Earned[idx])
	acc, err := fixedmath.FromRaw(streams[idx].AccumulatorRaw)
	if err != nil {
		return nil, err
	}
	snap, err := fixedmath.FromRaw(lock.SnapshotsRaw[idx])
	if err != nil {
		return nil, err
	}
	if acc.Cmp(snap) > 0 && lock.RecordedPower.Sign() > 0 {
		delta, err := acc.Sub(snap)
		if err != nil {
			return nil, err
		}
		owed, err := delta.MulBig(lock.RecordedPower)
		if err != nil {
			return nil, err
		}
		pending.Add(pending, owed)
	}
	return pending, nil
}

// PendingWasabi projects the native stream's settlement for an account.
func (e *Engine) PendingWasabi(addr crypto.Address) (*big.Int, error) {
	return e.PendingReward(addr, e.nativeSymbol)
}
