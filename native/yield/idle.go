package yield

import (
	"math/big"
	"sync"
)

// IdleAdapter custodies funds without deploying them anywhere. It accrues no
// yield and returns exactly what was planted. Nodes run it as the initial
// adapter binding until governance migrates to a real venue; tests use it as
// a deterministic baseline.
type IdleAdapter struct {
	mu      sync.Mutex
	token   string
	balance *big.Int
}

func NewIdleAdapter(token string) *IdleAdapter {
	return &IdleAdapter{token: token, balance: big.NewInt(0)}
}

func (a *IdleAdapter) Token() string { return a.token }

func (a *IdleAdapter) TotalValue() (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return new(big.Int).Set(a.balance), nil
}

func (a *IdleAdapter) Deposit(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errNilAmount
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balance.Add(a.balance, amount)
	return nil
}

func (a *IdleAdapter) Withdraw(amount *big.Int, isHarvest bool) (*big.Int, *big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, errNilAmount
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.balance.Cmp(amount) < 0 {
		return nil, nil, errInsufficient
	}
	a.balance.Sub(a.balance, amount)
	withdrawn := new(big.Int).Set(amount)
	// With no yield every withdrawn unit reduces principal one for one.
	return withdrawn, new(big.Int).Set(amount), nil
}
