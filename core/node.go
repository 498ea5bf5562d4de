package core

import (
	"errors"
	"math/big"
	"sync"
	"time"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"wasabix/core/events"
	"wasabix/core/state"
	"wasabix/core/types"
	"wasabix/crypto"
	"wasabix/native/transmuter"
	"wasabix/native/vault"
	"wasabix/native/votingescrow"
	"wasabix/native/yield"
	"wasabix/observability"
	"wasabix/storage"
)

var (
	errNilDatabase = errors.New("node: database required")
	errNilGenesis  = errors.New("node: genesis parameters required")
)

// Module names used for treasury derivation, pause flags and metrics labels.
const (
	ModuleVault        = "vault"
	ModuleTransmuter   = "transmuter"
	ModuleVotingEscrow = "votingescrow"
)

// ModuleAddress derives the deterministic treasury address for a named
// protocol module. The derivation only depends on the module name so every
// deployment agrees on the treasury accounts.
func ModuleAddress(name string) crypto.Address {
	sum := gethcrypto.Keccak256([]byte("wasabix/module/" + name))
	return crypto.MustNewAddress(crypto.WaxPrefix, sum[12:])
}

// Genesis carries the initial protocol parameters seeded into state the first
// time a node boots over an empty database. Subsequent boots ignore it in
// favour of the persisted configuration.
type Genesis struct {
	Governance   crypto.Address
	Rewards      crypto.Address
	FeeCollector crypto.Address
	Collector    crypto.Address

	// BaseToken is the collateral asset symbol, WasabiToken the governance
	// asset backing the native reward stream.
	BaseToken   string
	WasabiToken string

	// AdapterID names the yield adapter activated for both the vault and the
	// transmuter. It must be registered before the node is constructed.
	AdapterID string

	CollateralizationLimit *big.Int
	MintFeeBps             uint64
	WithdrawFeeBps         uint64
	HarvestFeeBps          uint64
	FlushActivator         *big.Int
	WaTokenCeiling         *big.Int

	TransmutationPeriod uint64
	PlantableThreshold  *big.Int
	PlantableMarginBps  uint64

	WasabiRatePerBlock *big.Int
	RewardTokens       []string
	RewardVesting      []bool

	// Alloc credits initial balances, mirroring a chain genesis allocation.
	Alloc []GenesisAccount
}

// GenesisAccount is a single genesis balance allocation.
type GenesisAccount struct {
	Address crypto.Address
	Base    *big.Int
	Wasabi  *big.Int
}

// Node owns the protocol state and the three engines, and executes every
// operation under a single mutex. Each mutation advances a monotonic block
// cursor shared by all engines, giving the same serialized-transaction model
// the original chain deployment provides.
type Node struct {
	db       storage.Database
	state    *state.Manager
	hub      *events.Hub
	adapters *yield.Registry

	vault      *vault.Engine
	transmuter *transmuter.Engine
	escrow     *votingescrow.Engine

	mu     sync.Mutex
	height uint64
	clock  func() time.Time
}

// NewNode wires the state manager and engines over the supplied database and,
// on first boot, seeds the genesis configuration. The adapter registry must
// already contain the genesis adapter.
func NewNode(db storage.Database, adapters *yield.Registry, gen *Genesis) (*Node, error) {
	if db == nil {
		return nil, errNilDatabase
	}
	if gen == nil {
		return nil, errNilGenesis
	}
	if adapters == nil {
		adapters = yield.NewRegistry()
	}

	manager := state.NewManager(db)
	hub := events.NewHub(0)

	vaultEngine := vault.NewEngine(ModuleAddress(ModuleVault), gen.BaseToken)
	vaultEngine.SetState(manager)
	vaultEngine.SetAdapters(adapters)
	vaultEngine.SetEmitter(hub)
	vaultEngine.SetPauses(manager)

	transmuterEngine := transmuter.NewEngine(ModuleAddress(ModuleTransmuter), gen.BaseToken)
	transmuterEngine.SetState(manager)
	transmuterEngine.SetAdapters(adapters)
	transmuterEngine.SetEmitter(hub)
	transmuterEngine.SetPauses(manager)

	vaultEngine.SetDistributor(transmuterEngine)

	escrowEngine := votingescrow.NewEngine(ModuleAddress(ModuleVotingEscrow), gen.WasabiToken)
	escrowEngine.SetState(manager)
	escrowEngine.SetEmitter(hub)
	escrowEngine.SetPauses(manager)

	n := &Node{
		db:         db,
		state:      manager,
		hub:        hub,
		adapters:   adapters,
		vault:      vaultEngine,
		transmuter: transmuterEngine,
		escrow:     escrowEngine,
		clock:      time.Now,
	}

	meta, err := manager.ChainMeta()
	if err != nil {
		return nil, err
	}
	if meta == nil {
		if err := n.seedGenesis(gen); err != nil {
			return nil, err
		}
	} else {
		n.height = meta.Height
	}
	n.syncEngines(uint64(n.clock().Unix()))
	return n, nil
}

// SetClock overrides the wall clock source. Tests use it to drive the
// voting-escrow decay deterministically.
func (n *Node) SetClock(clock func() time.Time) {
	if clock == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clock = clock
	n.syncEngines(uint64(n.clock().Unix()))
}

// Events exposes the hub for RPC event streaming.
func (n *Node) Events() *events.Hub { return n.hub }

// Height reports the current block cursor.
func (n *Node) Height() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.height
}

func (n *Node) seedGenesis(gen *Genesis) error {
	if gen.Governance.IsZero() {
		return errors.New("node: genesis governance address required")
	}

	vaultAddr := ModuleAddress(ModuleVault)
	transmuterAddr := ModuleAddress(ModuleTransmuter)

	cfg := &vault.Config{
		Governance:             append([]byte(nil), gen.Governance.Bytes()...),
		Rewards:                append([]byte(nil), gen.Rewards.Bytes()...),
		FeeCollector:           append([]byte(nil), gen.FeeCollector.Bytes()...),
		Transmuter:             append([]byte(nil), transmuterAddr.Bytes()...),
		CollateralizationLimit: gen.CollateralizationLimit,
		MintFeeBps:             gen.MintFeeBps,
		WithdrawFeeBps:         gen.WithdrawFeeBps,
		HarvestFeeBps:          gen.HarvestFeeBps,
		FlushActivator:         gen.FlushActivator,
	}
	cfg.Normalize()
	if err := n.state.PutVaultConfig(cfg); err != nil {
		return err
	}
	if err := n.vault.Initialize(gen.Governance, gen.AdapterID); err != nil {
		return err
	}
	if err := n.state.SetWaTokenWhitelisted(vaultAddr, true); err != nil {
		return err
	}
	if gen.WaTokenCeiling != nil {
		if err := n.state.SetWaTokenCeiling(vaultAddr, gen.WaTokenCeiling); err != nil {
			return err
		}
	}

	if err := n.transmuter.Initialize(gen.Governance, gen.AdapterID); err != nil {
		return err
	}
	if gen.TransmutationPeriod > 0 {
		if err := n.transmuter.SetTransmutationPeriod(gen.Governance, gen.TransmutationPeriod); err != nil {
			return err
		}
	}
	if gen.PlantableThreshold != nil {
		if err := n.transmuter.SetPlantableThreshold(gen.Governance, gen.PlantableThreshold); err != nil {
			return err
		}
	}
	if gen.PlantableMarginBps > 0 {
		if err := n.transmuter.SetPlantableMargin(gen.Governance, gen.PlantableMarginBps); err != nil {
			return err
		}
	}
	if err := n.transmuter.SetWhitelist(gen.Governance, vaultAddr, true); err != nil {
		return err
	}

	rate := gen.WasabiRatePerBlock
	if rate == nil {
		rate = big.NewInt(0)
	}
	collector := gen.Collector
	if collector.IsZero() {
		collector = gen.Governance
	}
	if err := n.escrow.Initialize(gen.Governance, collector, rate, gen.RewardTokens, gen.RewardVesting); err != nil {
		return err
	}

	for _, alloc := range gen.Alloc {
		if alloc.Address.IsZero() {
			continue
		}
		account, err := n.state.GetAccount(alloc.Address)
		if err != nil {
			return err
		}
		if account == nil {
			account = &types.Account{}
		}
		if alloc.Base != nil {
			account.BalanceBase = new(big.Int).Set(alloc.Base)
		}
		if alloc.Wasabi != nil {
			account.BalanceWasabi = new(big.Int).Set(alloc.Wasabi)
		}
		if err := n.state.PutAccount(alloc.Address, account); err != nil {
			return err
		}
	}

	n.height = 1
	return n.state.PutChainMeta(&state.ChainMeta{Height: n.height, Time: uint64(n.clock().Unix())})
}

func (n *Node) syncEngines(now uint64) {
	n.transmuter.SetBlockHeight(n.height)
	n.escrow.SetBlockHeight(n.height)
	n.escrow.SetBlockTime(now)
}

// execute runs one mutating operation as its own block: the cursor advances,
// the engines observe the fresh height and timestamp, and the operation runs
// to completion before the mutex is released.
func (n *Node) execute(module, operation string, fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	start := n.clock()
	n.height++
	n.syncEngines(uint64(start.Unix()))
	if err := n.state.PutChainMeta(&state.ChainMeta{Height: n.height, Time: uint64(start.Unix())}); err != nil {
		return err
	}

	err := fn()
	observability.EngineMetrics().ObserveOperation(module, operation, err, n.clock().Sub(start))
	return err
}

// view runs a read-only operation under the mutex without advancing the block
// cursor.
func (n *Node) view(fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.syncEngines(uint64(n.clock().Unix()))
	return fn()
}

// RegisterSink installs a vesting destination for an escrow reward token.
func (n *Node) RegisterSink(token string, sink votingescrow.Sink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.escrow.RegisterSink(token, sink)
}

// Account returns the stored account record for an address, or an empty
// record when none exists.
func (n *Node) Account(addr crypto.Address) (*types.Account, error) {
	var account *types.Account
	err := n.view(func() error {
		stored, err := n.state.GetAccount(addr)
		if err != nil {
			return err
		}
		if stored == nil {
			stored = &types.Account{
				BalanceBase:    big.NewInt(0),
				BalanceWaToken: big.NewInt(0),
				BalanceWasabi:  big.NewInt(0),
			}
		}
		account = stored
		return nil
	})
	return account, err
}

// TokenBalance reads the symbol-keyed balance for external reward assets.
func (n *Node) TokenBalance(symbol string, addr crypto.Address) (*big.Int, error) {
	var balance *big.Int
	err := n.view(func() error {
		var inner error
		balance, inner = n.state.TokenBalance(symbol, addr)
		return inner
	})
	return balance, err
}

// --- Vault operations ---

func (n *Node) VaultDeposit(from crypto.Address, amount *big.Int) error {
	return n.execute(ModuleVault, "deposit", func() error {
		return n.vault.Deposit(from, amount)
	})
}

func (n *Node) VaultWithdraw(from crypto.Address, amount *big.Int) error {
	return n.execute(ModuleVault, "withdraw", func() error {
		return n.vault.Withdraw(from, amount)
	})
}

func (n *Node) VaultMint(from crypto.Address, amount *big.Int) error {
	return n.execute(ModuleVault, "mint", func() error {
		return n.vault.Mint(from, amount)
	})
}

func (n *Node) VaultRepay(from crypto.Address, waTokenAmount, baseAmount *big.Int) error {
	return n.execute(ModuleVault, "repay", func() error {
		return n.vault.Repay(from, waTokenAmount, baseAmount)
	})
}

func (n *Node) VaultLiquidate(from crypto.Address, amount *big.Int) (*big.Int, error) {
	var settled *big.Int
	err := n.execute(ModuleVault, "liquidate", func() error {
		var inner error
		settled, inner = n.vault.Liquidate(from, amount)
		return inner
	})
	return settled, err
}

func (n *Node) VaultFlush(caller crypto.Address) error {
	return n.execute(ModuleVault, "flush", func() error {
		return n.vault.Flush(caller)
	})
}

func (n *Node) VaultHarvest(vaultID uint64) (*big.Int, error) {
	var harvested *big.Int
	err := n.execute(ModuleVault, "harvest", func() error {
		var inner error
		harvested, inner = n.vault.Harvest(vaultID)
		return inner
	})
	return harvested, err
}

func (n *Node) VaultMigrate(caller crypto.Address, adapterID string) (uint64, error) {
	var vaultID uint64
	err := n.execute(ModuleVault, "migrate", func() error {
		var inner error
		vaultID, inner = n.vault.Migrate(caller, adapterID)
		return inner
	})
	return vaultID, err
}

func (n *Node) VaultRecallFunds(caller crypto.Address, vaultID uint64, amount *big.Int) (*big.Int, error) {
	var recalled *big.Int
	err := n.execute(ModuleVault, "recallFunds", func() error {
		var inner error
		recalled, inner = n.vault.RecallFunds(caller, vaultID, amount)
		return inner
	})
	return recalled, err
}

func (n *Node) VaultPosition(addr crypto.Address) (*vault.Position, error) {
	var position *vault.Position
	err := n.view(func() error {
		var inner error
		position, inner = n.vault.Position(addr)
		return inner
	})
	return position, err
}

func (n *Node) VaultTotalValue() (*big.Int, error) {
	var total *big.Int
	err := n.view(func() error {
		var inner error
		total, inner = n.vault.TotalValue()
		return inner
	})
	return total, err
}

func (n *Node) VaultCount() (uint64, error) {
	var count uint64
	err := n.view(func() error {
		var inner error
		count, inner = n.vault.VaultCount()
		return inner
	})
	return count, err
}

func (n *Node) VaultAt(vaultID uint64) (*yield.Entry, error) {
	var entry *yield.Entry
	err := n.view(func() error {
		var inner error
		entry, inner = n.vault.VaultAt(vaultID)
		return inner
	})
	return entry, err
}

// --- Vault governance ---

func (n *Node) VaultSetGovernance(caller, pending crypto.Address) error {
	return n.execute(ModuleVault, "setGovernance", func() error {
		return n.vault.SetGovernance(caller, pending)
	})
}

func (n *Node) VaultAcceptGovernance(caller crypto.Address) error {
	return n.execute(ModuleVault, "acceptGovernance", func() error {
		return n.vault.AcceptGovernance(caller)
	})
}

func (n *Node) VaultSetRewards(caller, rewards crypto.Address) error {
	return n.execute(ModuleVault, "setRewards", func() error {
		return n.vault.SetRewards(caller, rewards)
	})
}

func (n *Node) VaultSetFeeCollector(caller, collector crypto.Address) error {
	return n.execute(ModuleVault, "setFeeCollector", func() error {
		return n.vault.SetFeeCollector(caller, collector)
	})
}

func (n *Node) VaultSetTransmuter(caller, target crypto.Address) error {
	return n.execute(ModuleVault, "setTransmuter", func() error {
		return n.vault.SetTransmuter(caller, target)
	})
}

func (n *Node) VaultSetHarvestFee(caller crypto.Address, bps uint64) error {
	return n.execute(ModuleVault, "setHarvestFee", func() error {
		return n.vault.SetHarvestFee(caller, bps)
	})
}

func (n *Node) VaultSetCollateralizationLimit(caller crypto.Address, limit *big.Int) error {
	return n.execute(ModuleVault, "setCollateralizationLimit", func() error {
		return n.vault.SetCollateralizationLimit(caller, limit)
	})
}

func (n *Node) VaultSetFlushActivator(caller crypto.Address, threshold *big.Int) error {
	return n.execute(ModuleVault, "setFlushActivator", func() error {
		return n.vault.SetFlushActivator(caller, threshold)
	})
}

func (n *Node) VaultSetEmergencyExit(caller crypto.Address, active bool) error {
	return n.execute(ModuleVault, "setEmergencyExit", func() error {
		return n.vault.SetEmergencyExit(caller, active)
	})
}

// --- Transmuter operations ---

func (n *Node) TransmuterStake(from crypto.Address, amount *big.Int) error {
	return n.execute(ModuleTransmuter, "stake", func() error {
		return n.transmuter.Stake(from, amount)
	})
}

func (n *Node) TransmuterUnstake(from crypto.Address, amount *big.Int) error {
	return n.execute(ModuleTransmuter, "unstake", func() error {
		return n.transmuter.Unstake(from, amount)
	})
}

func (n *Node) TransmuterTransmute(from crypto.Address) error {
	return n.execute(ModuleTransmuter, "transmute", func() error {
		return n.transmuter.Transmute(from)
	})
}

func (n *Node) TransmuterForceTransmute(caller, target crypto.Address) error {
	return n.execute(ModuleTransmuter, "forceTransmute", func() error {
		return n.transmuter.ForceTransmute(caller, target)
	})
}

func (n *Node) TransmuterClaim(from crypto.Address) (*big.Int, error) {
	var claimed *big.Int
	err := n.execute(ModuleTransmuter, "claim", func() error {
		var inner error
		claimed, inner = n.transmuter.Claim(from)
		return inner
	})
	return claimed, err
}

func (n *Node) TransmuterDistribute(origin crypto.Address, amount *big.Int) error {
	return n.execute(ModuleTransmuter, "distribute", func() error {
		return n.transmuter.Distribute(origin, amount)
	})
}

func (n *Node) TransmuterUserInfo(addr crypto.Address) (*transmuter.UserInfo, error) {
	var info *transmuter.UserInfo
	err := n.view(func() error {
		var inner error
		info, inner = n.transmuter.UserInfo(addr)
		return inner
	})
	return info, err
}

func (n *Node) TransmuterUsers(offset, limit int) ([]crypto.Address, error) {
	var users []crypto.Address
	err := n.view(func() error {
		var inner error
		users, inner = n.transmuter.Users(offset, limit)
		return inner
	})
	return users, err
}

func (n *Node) TransmuterUserCount() (int, error) {
	var count int
	err := n.view(func() error {
		var inner error
		count, inner = n.transmuter.UserCount()
		return inner
	})
	return count, err
}

func (n *Node) TransmuterLedger() (*transmuter.Ledger, error) {
	var ledger *transmuter.Ledger
	err := n.view(func() error {
		var inner error
		ledger, inner = n.transmuter.LedgerSnapshot()
		return inner
	})
	return ledger, err
}

// --- Transmuter governance ---

func (n *Node) TransmuterSetGovernance(caller, pending crypto.Address) error {
	return n.execute(ModuleTransmuter, "setGovernance", func() error {
		return n.transmuter.SetGovernance(caller, pending)
	})
}

func (n *Node) TransmuterAcceptGovernance(caller crypto.Address) error {
	return n.execute(ModuleTransmuter, "acceptGovernance", func() error {
		return n.transmuter.AcceptGovernance(caller)
	})
}

func (n *Node) TransmuterSetSentinel(caller, sentinel crypto.Address, allowed bool) error {
	return n.execute(ModuleTransmuter, "setSentinel", func() error {
		return n.transmuter.SetSentinel(caller, sentinel, allowed)
	})
}

func (n *Node) TransmuterSetWhitelist(caller, origin crypto.Address, allowed bool) error {
	return n.execute(ModuleTransmuter, "setWhitelist", func() error {
		return n.transmuter.SetWhitelist(caller, origin, allowed)
	})
}

func (n *Node) TransmuterSetPause(caller crypto.Address, paused bool) error {
	return n.execute(ModuleTransmuter, "setPause", func() error {
		return n.transmuter.SetPause(caller, paused)
	})
}

func (n *Node) TransmuterSetTransmutationPeriod(caller crypto.Address, blocks uint64) error {
	return n.execute(ModuleTransmuter, "setTransmutationPeriod", func() error {
		return n.transmuter.SetTransmutationPeriod(caller, blocks)
	})
}

func (n *Node) TransmuterSetPlantableThreshold(caller crypto.Address, threshold *big.Int) error {
	return n.execute(ModuleTransmuter, "setPlantableThreshold", func() error {
		return n.transmuter.SetPlantableThreshold(caller, threshold)
	})
}

func (n *Node) TransmuterSetPlantableMargin(caller crypto.Address, bps uint64) error {
	return n.execute(ModuleTransmuter, "setPlantableMargin", func() error {
		return n.transmuter.SetPlantableMargin(caller, bps)
	})
}

func (n *Node) TransmuterMigrateAdapter(caller crypto.Address, adapterID string) error {
	return n.execute(ModuleTransmuter, "migrateAdapter", func() error {
		return n.transmuter.MigrateAdapter(caller, adapterID)
	})
}

func (n *Node) TransmuterForceRecall(caller crypto.Address, index int) error {
	return n.execute(ModuleTransmuter, "forceRecall", func() error {
		return n.transmuter.ForceRecall(caller, index)
	})
}

func (n *Node) TransmuterMigrateFunds(caller, successor crypto.Address) error {
	return n.execute(ModuleTransmuter, "migrateFunds", func() error {
		return n.transmuter.MigrateFunds(caller, successor)
	})
}

// --- VotingEscrow operations ---

func (n *Node) EscrowCreateLock(from crypto.Address, amount *big.Int, durationIndex int) error {
	return n.execute(ModuleVotingEscrow, "createLock", func() error {
		return n.escrow.CreateLock(from, amount, durationIndex)
	})
}

func (n *Node) EscrowAddAmount(from crypto.Address, extra *big.Int) error {
	return n.execute(ModuleVotingEscrow, "addAmount", func() error {
		return n.escrow.AddAmount(from, extra)
	})
}

func (n *Node) EscrowExtendLock(from crypto.Address, durationIndex int) error {
	return n.execute(ModuleVotingEscrow, "extendLock", func() error {
		return n.escrow.ExtendLock(from, durationIndex)
	})
}

func (n *Node) EscrowWithdraw(from crypto.Address) error {
	return n.execute(ModuleVotingEscrow, "withdraw", func() error {
		return n.escrow.Withdraw(from)
	})
}

func (n *Node) EscrowCollectReward(token string) error {
	return n.execute(ModuleVotingEscrow, "collectReward", func() error {
		return n.escrow.CollectReward(token)
	})
}

func (n *Node) EscrowVestEarning(from crypto.Address) error {
	return n.execute(ModuleVotingEscrow, "vestEarning", func() error {
		return n.escrow.VestEarning(from)
	})
}

func (n *Node) EscrowBalanceOf(addr crypto.Address) (*big.Int, error) {
	var power *big.Int
	err := n.view(func() error {
		var inner error
		power, inner = n.escrow.BalanceOf(addr)
		return inner
	})
	return power, err
}

func (n *Node) EscrowBalanceAt(addr crypto.Address, t uint64) (*big.Int, error) {
	var power *big.Int
	err := n.view(func() error {
		var inner error
		power, inner = n.escrow.BalanceAt(addr, t)
		return inner
	})
	return power, err
}

func (n *Node) EscrowTotalPower() (*big.Int, error) {
	var total *big.Int
	err := n.view(func() error {
		var inner error
		total, inner = n.escrow.TotalPower()
		return inner
	})
	return total, err
}

func (n *Node) EscrowLockedAmount(addr crypto.Address) (*big.Int, error) {
	var amount *big.Int
	err := n.view(func() error {
		var inner error
		amount, inner = n.escrow.LockedAmount(addr)
		return inner
	})
	return amount, err
}

func (n *Node) EscrowLockedEnd(addr crypto.Address) (uint64, error) {
	var end uint64
	err := n.view(func() error {
		var inner error
		end, inner = n.escrow.LockedEnd(addr)
		return inner
	})
	return end, err
}

func (n *Node) EscrowPendingReward(addr crypto.Address, token string) (*big.Int, error) {
	var pending *big.Int
	err := n.view(func() error {
		var inner error
		pending, inner = n.escrow.PendingReward(addr, token)
		return inner
	})
	return pending, err
}

func (n *Node) EscrowPendingWasabi(addr crypto.Address) (*big.Int, error) {
	var pending *big.Int
	err := n.view(func() error {
		var inner error
		pending, inner = n.escrow.PendingWasabi(addr)
		return inner
	})
	return pending, err
}

// --- VotingEscrow governance ---

func (n *Node) EscrowSetGovernance(caller, pending crypto.Address) error {
	return n.execute(ModuleVotingEscrow, "setGovernance", func() error {
		return n.escrow.SetGovernance(caller, pending)
	})
}

func (n *Node) EscrowAcceptGovernance(caller crypto.Address) error {
	return n.execute(ModuleVotingEscrow, "acceptGovernance", func() error {
		return n.escrow.AcceptGovernance(caller)
	})
}

func (n *Node) EscrowAddRewardToken(caller crypto.Address, token string, needsVesting bool) error {
	return n.execute(ModuleVotingEscrow, "addRewardToken", func() error {
		return n.escrow.AddRewardToken(caller, token, needsVesting)
	})
}

func (n *Node) EscrowSetWasabiRewardRate(caller crypto.Address, rate *big.Int) error {
	return n.execute(ModuleVotingEscrow, "setWasabiRewardRate", func() error {
		return n.escrow.SetWasabiRewardRate(caller, rate)
	})
}

func (n *Node) EscrowSetWasabiVesting(caller crypto.Address, needsVesting bool) error {
	return n.execute(ModuleVotingEscrow, "setWasabiVesting", func() error {
		return n.escrow.SetWasabiVesting(caller, needsVesting)
	})
}

func (n *Node) EscrowSetCollector(caller, collector crypto.Address) error {
	return n.execute(ModuleVotingEscrow, "setCollector", func() error {
		return n.escrow.SetCollector(caller, collector)
	})
}

func (n *Node) EscrowApprove(caller crypto.Address, token string, amount *big.Int) error {
	return n.execute(ModuleVotingEscrow, "approve", func() error {
		return n.escrow.Approve(caller, token, amount)
	})
}
