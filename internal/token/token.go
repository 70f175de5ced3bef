package token

import (
	"context"

	"github.com/tonkeeper/tongo/ton"
)

// Token is the transfer capability the ledger depends on.
//
// Transfer moves funds out of the holder the implementation is bound to.
// A transfer that returns false and a transfer that returns an error are
// both failures; callers must treat them the same way.
//
// An implementation that calls back into the ledger must pass on the context
// it was given. The ledger detects reentrancy through that context; a call
// made with a fresh one blocks forever on the ledger's lock.
type Token interface {
	BalanceOf(ctx context.Context, account ton.AccountID) (uint64, error)
	Allowance(ctx context.Context, owner, spender ton.AccountID) (uint64, error)
	TransferFrom(ctx context.Context, from, to ton.AccountID, amount uint64) (bool, error)
	Transfer(ctx context.Context, to ton.AccountID, amount uint64) (bool, error)
}
