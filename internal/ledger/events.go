package ledger

import (
	"context"
	"time"

	"github.com/tonkeeper/tongo/ton"
)

// PaymentReceived is emitted after a payment has been recorded
type PaymentReceived struct {
	Client        ton.AccountID
	Amount        uint64
	TariffID      int
	EncryptedData []byte
	Timestamp     time.Time
}

// Withdrawn is emitted after the owner withdrew funds
type Withdrawn struct {
	Owner     ton.AccountID
	Amount    uint64
	Timestamp time.Time
}

// EventHandler receives ledger events. Handlers are called while the ledger
// is locked and must not call back into the ledger or block.
type EventHandler interface {
	HandlePayment(ctx context.Context, ev PaymentReceived)
	HandleWithdrawal(ctx context.Context, ev Withdrawn)
}

type nopHandler struct{}

func (nopHandler) HandlePayment(context.Context, PaymentReceived) {}
func (nopHandler) HandleWithdrawal(context.Context, Withdrawn)     {}
