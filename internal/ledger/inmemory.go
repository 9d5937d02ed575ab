package ledger

import (
	"context"
	"sync"
)

type inMemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]int64
	payouts  map[string]PayoutResult
	deposits map[string]DepositResult
}

// NewInMemory creates a concurrency-safe in-memory ledger. The escrow suspense
// account exists from the start.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances: map[string]int64{EscrowAccountCode: 0},
		payouts:  make(map[string]PayoutResult),
		deposits: make(map[string]DepositResult),
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[code]
	if !exists {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

func (l *inMemoryLedger) Payout(_ context.Context, payeeCode, clientTxID string, amount int64) (PayoutResult, error) {
	if amount <= 0 {
		return PayoutResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := KindPayout + ":" + clientTxID
	if res, exists := l.payouts[key]; exists {
		return res, ErrDuplicateTransaction
	}

	payeeBalance, ok := l.balances[payeeCode]
	if !ok {
		return PayoutResult{}, ErrAccountNotFound
	}

	payeeBalance += amount
	l.balances[payeeCode] = payeeBalance
	l.balances[EscrowAccountCode] -= amount

	res := PayoutResult{
		TransactionID: key,
		PayeeBalance:  payeeBalance,
		Status:        StatusCompleted,
	}
	l.payouts[key] = res
	return res, nil
}

func (l *inMemoryLedger) Deposit(_ context.Context, payerCode, clientTxID string, amount int64) (DepositResult, error) {
	if amount <= 0 {
		return DepositResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := KindDeposit + ":" + clientTxID
	if res, exists := l.deposits[key]; exists {
		return res, ErrDuplicateTransaction
	}

	l.balances[payerCode] -= amount
	l.balances[EscrowAccountCode] += amount

	res := DepositResult{TransactionID: key, Status: StatusCompleted}
	l.deposits[key] = res
	return res, nil
}
