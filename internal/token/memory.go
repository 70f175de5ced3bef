package token

import (
	"context"
	"sync"

	"github.com/tonkeeper/tongo/ton"
)

type allowanceKey struct {
	owner   ton.AccountID
	spender ton.AccountID
}

// Memory is an in-memory USDT-like token.
// Failure switches make transfers report false without moving funds.
type Memory struct {
	mu         sync.RWMutex
	balances   map[ton.AccountID]uint64
	allowances map[allowanceKey]uint64

	failTransferFrom bool
	failTransfer     bool
}

// NewMemory creates an empty in-memory token
func NewMemory() *Memory {
	return &Memory{
		balances:   make(map[ton.AccountID]uint64),
		allowances: make(map[allowanceKey]uint64),
	}
}

// Mint credits amount to account
func (m *Memory) Mint(account ton.AccountID, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] += amount
}

// Approve sets the amount spender may move out of owner's balance
func (m *Memory) Approve(owner, spender ton.AccountID, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[allowanceKey{owner, spender}] = amount
}

// SetFailTransferFrom makes every TransferFrom report failure
func (m *Memory) SetFailTransferFrom(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failTransferFrom = fail
}

// SetFailTransfer makes every Transfer report failure
func (m *Memory) SetFailTransfer(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failTransfer = fail
}

// Balance returns the balance of account
func (m *Memory) Balance(account ton.AccountID) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[account]
}

// Bind returns a Token acting on behalf of holder
func (m *Memory) Bind(holder ton.AccountID) Token {
	return &boundMemory{m: m, holder: holder}
}

func (m *Memory) transferFrom(spender, from, to ton.AccountID, amount uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failTransferFrom {
		return false
	}

	key := allowanceKey{from, spender}
	if m.allowances[key] < amount || m.balances[from] < amount {
		return false
	}

	m.allowances[key] -= amount
	m.balances[from] -= amount
	m.balances[to] += amount
	return true
}

func (m *Memory) transfer(from, to ton.AccountID, amount uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failTransfer || m.balances[from] < amount {
		return false
	}

	m.balances[from] -= amount
	m.balances[to] += amount
	return true
}

type boundMemory struct {
	m      *Memory
	holder ton.AccountID
}

func (b *boundMemory) BalanceOf(_ context.Context, account ton.AccountID) (uint64, error) {
	return b.m.Balance(account), nil
}

func (b *boundMemory) Allowance(_ context.Context, owner, spender ton.AccountID) (uint64, error) {
	b.m.mu.RLock()
	defer b.m.mu.RUnlock()
	return b.m.allowances[allowanceKey{owner, spender}], nil
}

func (b *boundMemory) TransferFrom(_ context.Context, from, to ton.AccountID, amount uint64) (bool, error) {
	return b.m.transferFrom(b.holder, from, to, amount), nil
}

func (b *boundMemory) Transfer(_ context.Context, to ton.AccountID, amount uint64) (bool, error) {
	return b.m.transfer(b.holder, to, amount), nil
}
