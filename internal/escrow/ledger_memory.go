package escrow

import (
	"context"
	"sync"

	"sto-gateway/internal/domain"
	"sto-gateway/pkg/fixedpoint"
)

// InMemoryLedger is a payment-token ledger with balances and allowances,
// enough of the HYDRO surface for the engine and its tests.
type InMemoryLedger struct {
	mu         sync.RWMutex
	balances   map[domain.Address]fixedpoint.Amount
	allowances map[domain.Address]map[domain.Address]fixedpoint.Amount
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		balances:   make(map[domain.Address]fixedpoint.Amount),
		allowances: make(map[domain.Address]map[domain.Address]fixedpoint.Amount),
	}
}

// Mint credits an account. Test and bootstrap helper; the real payment token
// has its own issuance.
func (l *InMemoryLedger) Mint(addr domain.Address, amount fixedpoint.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	next, err := l.balances[addr].Add(amount)
	if err != nil {
		return err
	}
	l.balances[addr] = next
	return nil
}

// Approve sets spender's allowance over owner's funds.
func (l *InMemoryLedger) Approve(owner, spender domain.Address, amount fixedpoint.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	byOwner, ok := l.allowances[owner]
	if !ok {
		byOwner = make(map[domain.Address]fixedpoint.Amount)
		l.allowances[owner] = byOwner
	}
	byOwner[spender] = amount
}

// Allowance reads spender's remaining budget over owner's funds.
func (l *InMemoryLedger) Allowance(owner, spender domain.Address) fixedpoint.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowances[owner][spender]
}

func (l *InMemoryLedger) BalanceOf(_ context.Context, addr domain.Address) (fixedpoint.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[addr], nil
}

func (l *InMemoryLedger) Transfer(_ context.Context, from, to domain.Address, amount fixedpoint.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

func (l *InMemoryLedger) TransferFrom(_ context.Context, owner, spender, to domain.Address, amount fixedpoint.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowance := l.allowances[owner][spender]
	if allowance.Lt(amount) {
		return ErrInsufficientAllowance
	}
	if err := l.move(owner, to, amount); err != nil {
		return err
	}
	remaining, err := allowance.Sub(amount)
	if err != nil {
		return err
	}
	l.allowances[owner][spender] = remaining
	return nil
}

// move assumes the lock is held.
func (l *InMemoryLedger) move(from, to domain.Address, amount fixedpoint.Amount) error {
	fromBal := l.balances[from]
	if fromBal.Lt(amount) {
		return ErrInsufficientFunds
	}
	newFrom, err := fromBal.Sub(amount)
	if err != nil {
		return err
	}
	newTo, err := l.balances[to].Add(amount)
	if err != nil {
		return err
	}
	l.balances[from] = newFrom
	l.balances[to] = newTo
	return nil
}
