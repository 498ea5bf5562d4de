package yield

import (
	"errors"
	"math/big"
	"sort"
	"strings"
	"sync"
)

var (
	errNilAmount      = errors.New("yield adapter: amount must be positive")
	errInsufficient   = errors.New("yield adapter: insufficient deposited value")
	ErrUnknownAdapter = errors.New("yield registry: adapter not registered")
	ErrDuplicateReg   = errors.New("yield registry: adapter already registered")
)

// Adapter is the opaque custody interface for an external yield venue. The
// engines treat every reported number as an untrusted observation and
// reconcile tracked value before and after each call rather than taking the
// adapter's word for it.
type Adapter interface {
	// Token returns the symbol of the asset the adapter custodies.
	Token() string
	// TotalValue reports the current adapter-held value in asset units.
	TotalValue() (*big.Int, error)
	// Deposit plants funds into the venue.
	Deposit(amount *big.Int) error
	// Withdraw pulls funds out. It returns the amount actually withdrawn and
	// by how much the adapter's tracked principal decreased; the two differ
	// when harvested yield is part of the withdrawal.
	Withdraw(amount *big.Int, isHarvest bool) (withdrawn *big.Int, decreasedValue *big.Int, err error)
}

// Registry binds adapter identifiers from persisted state to live Adapter
// implementations supplied at node construction.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Adapter)}
}

// Register binds an adapter under the given identifier.
func (r *Registry) Register(id string, a Adapter) error {
	id = strings.TrimSpace(id)
	if id == "" || a == nil {
		return ErrUnknownAdapter
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[id]; ok {
		return ErrDuplicateReg
	}
	r.m[id] = a
	return nil
}

// Get resolves an adapter identifier to its implementation.
func (r *Registry) Get(id string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.m[id]
	if !ok {
		return nil, ErrUnknownAdapter
	}
	return a, nil
}

// IDs lists the registered adapter identifiers in stable order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.m))
	for id := range r.m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
