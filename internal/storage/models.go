package storage

import (
	"time"

	"github.com/tonkeeper/tongo/ton"
)

// PaymentRecord is one entry of a client's payment history
type PaymentRecord struct {
	Client        ton.AccountID
	Index         int // position in the client's history
	TariffID      int
	Amount        uint64
	EncryptedData []byte
	Timestamp     time.Time
	Paid          bool
}

// Withdrawal records funds moved out of the ledger to the owner
type Withdrawal struct {
	ID        int64
	Owner     ton.AccountID
	Amount    uint64
	Timestamp time.Time
}
