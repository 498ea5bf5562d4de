package state

import (
	"errors"
	"fmt"
	"math/big"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"wasabix/core/types"
	"wasabix/crypto"
	"wasabix/native/transmuter"
	"wasabix/native/vault"
	"wasabix/native/votingescrow"
	"wasabix/native/yield"
	"wasabix/storage"
)

var (
	// ErrSupplyUnderflow signals a burn or minted-counter decrement larger
	// than the tracked amount.
	ErrSupplyUnderflow = errors.New("state: waToken supply underflow")
	errNegativeAmount  = errors.New("state: amount cannot be negative")
	errInsufficient    = errors.New("state: insufficient waToken balance")
)

// Manager is the flat protocol state store. Every record lives at the keccak
// hash of a human-readable prefixed key and is RLP encoded. It satisfies the
// narrow state interfaces of all three native engines plus the pause view.
type Manager struct {
	db storage.Database
}

// NewManager wraps a database in a protocol state manager.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func storageKey(prefix []byte, suffix ...[]byte) []byte {
	key := append([]byte(nil), prefix...)
	for _, s := range suffix {
		key = append(key, s...)
	}
	return gethcrypto.Keccak256(key)
}

func (m *Manager) load(key []byte, out interface{}) (bool, error) {
	ok, err := m.db.Has(key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	raw, err := m.db.Get(key)
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

func (m *Manager) store(key []byte, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode record: %w", err)
	}
	return m.db.Put(key, raw)
}

func (m *Manager) loadBig(key []byte) (*big.Int, error) {
	out := new(big.Int)
	ok, err := m.load(key, out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return out, nil
}

func (m *Manager) loadBool(key []byte) (bool, error) {
	var out bool
	ok, err := m.load(key, &out)
	if err != nil {
		return false, err
	}
	return ok && out, nil
}

// --- accounts and token balances ---

// GetAccount returns the account record, or nil when the address is unknown.
func (m *Manager) GetAccount(addr crypto.Address) (*types.Account, error) {
	account := new(types.Account)
	ok, err := m.load(storageKey(accountPrefix, addr.Bytes()), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return account, nil
}

func (m *Manager) PutAccount(addr crypto.Address, account *types.Account) error {
	if account.BalanceBase == nil {
		account.BalanceBase = big.NewInt(0)
	}
	if account.BalanceWaToken == nil {
		account.BalanceWaToken = big.NewInt(0)
	}
	if account.BalanceWasabi == nil {
		account.BalanceWasabi = big.NewInt(0)
	}
	return m.store(storageKey(accountPrefix, addr.Bytes()), account)
}

// TokenBalance reads an arbitrary reward token's balance for an address.
// Unknown symbols and addresses read as zero.
func (m *Manager) TokenBalance(symbol string, addr crypto.Address) (*big.Int, error) {
	return m.loadBig(storageKey(tokenBalancePrefix, []byte(symbol), []byte("/"), addr.Bytes()))
}

func (m *Manager) SetTokenBalance(symbol string, addr crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errNegativeAmount
	}
	return m.store(storageKey(tokenBalancePrefix, []byte(symbol), []byte("/"), addr.Bytes()), amount)
}

// --- pauses ---

// IsPaused satisfies the native engines' pause view.
func (m *Manager) IsPaused(module string) bool {
	paused, err := m.loadBool(storageKey(pausePrefix, []byte(module)))
	if err != nil {
		return false
	}
	return paused
}

func (m *Manager) SetPaused(module string, paused bool) error {
	return m.store(storageKey(pausePrefix, []byte(module)), paused)
}

// --- waToken controller ---

func (m *Manager) WaTokenWhitelisted(vaultAddr crypto.Address) (bool, error) {
	return m.loadBool(storageKey(waTokenWhitelistPrefix, vaultAddr.Bytes()))
}

func (m *Manager) SetWaTokenWhitelisted(vaultAddr crypto.Address, allowed bool) error {
	return m.store(storageKey(waTokenWhitelistPrefix, vaultAddr.Bytes()), allowed)
}

func (m *Manager) WaTokenBlacklisted(vaultAddr crypto.Address) (bool, error) {
	return m.loadBool(storageKey(waTokenBlacklistPrefix, vaultAddr.Bytes()))
}

func (m *Manager) SetWaTokenBlacklisted(vaultAddr crypto.Address, blocked bool) error {
	return m.store(storageKey(waTokenBlacklistPrefix, vaultAddr.Bytes()), blocked)
}

func (m *Manager) WaTokenCeiling(vaultAddr crypto.Address) (*big.Int, error) {
	return m.loadBig(storageKey(waTokenCeilingPrefix, vaultAddr.Bytes()))
}

func (m *Manager) SetWaTokenCeiling(vaultAddr crypto.Address, ceiling *big.Int) error {
	if ceiling == nil || ceiling.Sign() < 0 {
		return errNegativeAmount
	}
	return m.store(storageKey(waTokenCeilingPrefix, vaultAddr.Bytes()), ceiling)
}

// WaTokenMinted reports the amount a vault has minted net of repayments.
func (m *Manager) WaTokenMinted(vaultAddr crypto.Address) (*big.Int, error) {
	return m.loadBig(storageKey(waTokenMintedPrefix, vaultAddr.Bytes()))
}

// WaTokenSupply reports the total circulating waToken supply.
func (m *Manager) WaTokenSupply() (*big.Int, error) {
	return m.loadBig(storageKey(waTokenSupplyKeyBytes))
}

// MintWaTokens credits freshly minted debt tokens to an account and raises
// both the vault's minted counter and the global supply.
func (m *Manager) MintWaTokens(vaultAddr, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	account, err := m.GetAccount(to)
	if err != nil {
		return err
	}
	if account == nil {
		account = &types.Account{}
	}
	if account.BalanceWaToken == nil {
		account.BalanceWaToken = big.NewInt(0)
	}
	account.BalanceWaToken = new(big.Int).Add(account.BalanceWaToken, amount)
	if err := m.PutAccount(to, account); err != nil {
		return err
	}
	minted, err := m.WaTokenMinted(vaultAddr)
	if err != nil {
		return err
	}
	if err := m.store(storageKey(waTokenMintedPrefix, vaultAddr.Bytes()), new(big.Int).Add(minted, amount)); err != nil {
		return err
	}
	supply, err := m.WaTokenSupply()
	if err != nil {
		return err
	}
	return m.store(storageKey(waTokenSupplyKeyBytes), new(big.Int).Add(supply, amount))
}

// BurnWaTokens destroys debt tokens held by an account and lowers the global
// supply. The per-vault minted counter is adjusted separately via
// WaTokenLowerMinted because burns can happen in a different module than the
// one that minted.
func (m *Manager) BurnWaTokens(from crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	account, err := m.GetAccount(from)
	if err != nil {
		return err
	}
	if account == nil || account.BalanceWaToken == nil || account.BalanceWaToken.Cmp(amount) < 0 {
		return errInsufficient
	}
	account.BalanceWaToken = new(big.Int).Sub(account.BalanceWaToken, amount)
	if err := m.PutAccount(from, account); err != nil {
		return err
	}
	supply, err := m.WaTokenSupply()
	if err != nil {
		return err
	}
	if supply.Cmp(amount) < 0 {
		return ErrSupplyUnderflow
	}
	return m.store(storageKey(waTokenSupplyKeyBytes), new(big.Int).Sub(supply, amount))
}

func (m *Manager) WaTokenLowerMinted(vaultAddr crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errNegativeAmount
	}
	minted, err := m.WaTokenMinted(vaultAddr)
	if err != nil {
		return err
	}
	if minted.Cmp(amount) < 0 {
		return ErrSupplyUnderflow
	}
	return m.store(storageKey(waTokenMintedPrefix, vaultAddr.Bytes()), new(big.Int).Sub(minted, amount))
}

// MintWasabi credits freshly emitted governance tokens.
func (m *Manager) MintWasabi(to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	account, err := m.GetAccount(to)
	if err != nil {
		return err
	}
	if account == nil {
		account = &types.Account{}
	}
	if account.BalanceWasabi == nil {
		account.BalanceWasabi = big.NewInt(0)
	}
	account.BalanceWasabi = new(big.Int).Add(account.BalanceWasabi, amount)
	return m.PutAccount(to, account)
}

// --- vault engine state ---

func (m *Manager) VaultConfig() (*vault.Config, error) {
	cfg := new(vault.Config)
	ok, err := m.load(storageKey(vaultConfigKeyBytes), cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return cfg, nil
}

func (m *Manager) PutVaultConfig(cfg *vault.Config) error {
	cfg.Normalize()
	return m.store(storageKey(vaultConfigKeyBytes), cfg)
}

func (m *Manager) VaultPosition(addr crypto.Address) (*vault.Position, error) {
	pos := new(vault.Position)
	ok, err := m.load(storageKey(vaultPositionPrefix, addr.Bytes()), pos)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return pos, nil
}

func (m *Manager) PutVaultPosition(addr crypto.Address, pos *vault.Position) error {
	pos.Normalize()
	return m.store(storageKey(vaultPositionPrefix, addr.Bytes()), pos)
}

func (m *Manager) VaultAdapters() ([]*yield.Entry, error) {
	var entries []*yield.Entry
	if _, err := m.load(storageKey(vaultAdaptersKeyBytes), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (m *Manager) PutVaultAdapters(entries []*yield.Entry) error {
	for _, entry := range entries {
		entry.Normalize()
	}
	return m.store(storageKey(vaultAdaptersKeyBytes), entries)
}

// --- transmuter engine state ---

func (m *Manager) TransmuterConfig() (*transmuter.Config, error) {
	cfg := new(transmuter.Config)
	ok, err := m.load(storageKey(transmuterConfigKeyBytes), cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return cfg, nil
}

func (m *Manager) PutTransmuterConfig(cfg *transmuter.Config) error {
	cfg.Normalize()
	return m.store(storageKey(transmuterConfigKeyBytes), cfg)
}

func (m *Manager) TransmuterLedger() (*transmuter.Ledger, error) {
	led := new(transmuter.Ledger)
	ok, err := m.load(storageKey(transmuterLedgerKeyBytes), led)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return led, nil
}

func (m *Manager) PutTransmuterLedger(led *transmuter.Ledger) error {
	led.Normalize()
	return m.store(storageKey(transmuterLedgerKeyBytes), led)
}

func (m *Manager) TransmuterStaker(addr crypto.Address) (*transmuter.Staker, error) {
	st := new(transmuter.Staker)
	ok, err := m.load(storageKey(transmuterStakerPrefix, addr.Bytes()), st)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return st, nil
}

func (m *Manager) PutTransmuterStaker(addr crypto.Address, st *transmuter.Staker) error {
	st.Normalize()
	return m.store(storageKey(transmuterStakerPrefix, addr.Bytes()), st)
}

func (m *Manager) TransmuterUsers() ([][]byte, error) {
	var users [][]byte
	if _, err := m.load(storageKey(transmuterUsersKeyBytes), &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (m *Manager) AppendTransmuterUser(addr crypto.Address) error {
	users, err := m.TransmuterUsers()
	if err != nil {
		return err
	}
	users = append(users, append([]byte(nil), addr.Bytes()...))
	return m.store(storageKey(transmuterUsersKeyBytes), users)
}

func (m *Manager) TransmuterAdapters() ([]*yield.Entry, error) {
	var entries []*yield.Entry
	if _, err := m.load(storageKey(transmuterAdaptersKeyBytes), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (m *Manager) PutTransmuterAdapters(entries []*yield.Entry) error {
	for _, entry := range entries {
		entry.Normalize()
	}
	return m.store(storageKey(transmuterAdaptersKeyBytes), entries)
}

// --- voting escrow engine state ---

func (m *Manager) EscrowConfig() (*votingescrow.Config, error) {
	cfg := new(votingescrow.Config)
	ok, err := m.load(storageKey(escrowConfigKeyBytes), cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return cfg, nil
}

func (m *Manager) PutEscrowConfig(cfg *votingescrow.Config) error {
	return m.store(storageKey(escrowConfigKeyBytes), cfg)
}

func (m *Manager) EscrowGlobal() (*votingescrow.Global, error) {
	g := new(votingescrow.Global)
	ok, err := m.load(storageKey(escrowGlobalKeyBytes), g)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return g, nil
}

func (m *Manager) PutEscrowGlobal(g *votingescrow.Global) error {
	g.Normalize()
	return m.store(storageKey(escrowGlobalKeyBytes), g)
}

func (m *Manager) EscrowStreams() ([]*votingescrow.Stream, error) {
	var streams []*votingescrow.Stream
	if _, err := m.load(storageKey(escrowStreamsKeyBytes), &streams); err != nil {
		return nil, err
	}
	return streams, nil
}

func (m *Manager) PutEscrowStreams(streams []*votingescrow.Stream) error {
	for _, s := range streams {
		s.Normalize()
	}
	return m.store(storageKey(escrowStreamsKeyBytes), streams)
}

func (m *Manager) EscrowLock(addr crypto.Address) (*votingescrow.Lock, error) {
	lock := new(votingescrow.Lock)
	ok, err := m.load(storageKey(escrowLockPrefix, addr.Bytes()), lock)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return lock, nil
}

func (m *Manager) PutEscrowLock(addr crypto.Address, lock *votingescrow.Lock) error {
	return m.store(storageKey(escrowLockPrefix, addr.Bytes()), lock)
}

func (m *Manager) EscrowAllowance(token string) (*big.Int, error) {
	return m.loadBig(storageKey(escrowAllowancePrefix, []byte(token)))
}

func (m *Manager) PutEscrowAllowance(token string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errNegativeAmount
	}
	return m.store(storageKey(escrowAllowancePrefix, []byte(token)), amount)
}

// --- chain metadata ---

// ChainMeta is the tiny block-cursor record the node persists between runs.
type ChainMeta struct {
	Height uint64
	Time   uint64
}

func (m *Manager) ChainMeta() (*ChainMeta, error) {
	meta := new(ChainMeta)
	ok, err := m.load(storageKey(chainMetaKeyBytes), meta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return meta, nil
}

func (m *Manager) PutChainMeta(meta *ChainMeta) error {
	return m.store(storageKey(chainMetaKeyBytes), meta)
}
