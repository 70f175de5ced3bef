package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tonkeeper/tongo/ton"

	"github.com/suspectuso/tariff-ledger/internal/catalog"
	"github.com/suspectuso/tariff-ledger/internal/storage"
	"github.com/suspectuso/tariff-ledger/internal/token"
)

// MaxPayloadSize is the largest encrypted payload a payment may carry
const MaxPayloadSize = 1024

// Identity holds the accounts a ledger is deployed with
type Identity struct {
	Owner          ton.AccountID // may withdraw funds
	Self           ton.AccountID // receives payments, spends allowances
	Token          ton.AccountID // token master, informational
	OwnerPublicKey []byte        // used by clients to encrypt payloads
}

// Option configures a Ledger
type Option func(*Ledger)

// WithEventHandler sets the receiver of ledger events
func WithEventHandler(h EventHandler) Option {
	return func(l *Ledger) {
		if h != nil {
			l.events = h
		}
	}
}

// WithClock overrides the time source used for record timestamps
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Ledger accepts tariff payments and keeps per-client payment history.
//
// Mutating operations are serialized; queries run concurrently with each
// other but never observe a half-applied payment. The custodial balance is
// always read from the token, the ledger keeps no balance counter.
type Ledger struct {
	catalog *catalog.Catalog
	token   token.Token
	storage *storage.Storage
	id      Identity
	events  EventHandler
	now     func() time.Time
	log     *slog.Logger

	mu sync.RWMutex
}

// New creates a ledger over the given catalog, token and storage
func New(cat *catalog.Catalog, tok token.Token, store *storage.Storage, id Identity, log *slog.Logger, opts ...Option) (*Ledger, error) {
	if cat == nil || tok == nil || store == nil {
		return nil, errors.New("catalog, token and storage are required")
	}
	if id.Owner == id.Self {
		return nil, errors.New("owner and ledger accounts must differ")
	}

	l := &Ledger{
		catalog: cat,
		token:   tok,
		storage: store,
		id:      id,
		events:  nopHandler{},
		now:     time.Now,
		log:     log,
	}
	l.id.OwnerPublicKey = bytes.Clone(id.OwnerPublicKey)

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

type callKey struct{}

// enter marks ctx as belonging to a call in progress on l.
// Token implementations get the marked context, so a token calling back
// into the ledger is detected instead of deadlocking on mu.
func (l *Ledger) enter(ctx context.Context) (context.Context, error) {
	if ctx.Value(callKey{}) == l {
		return nil, ErrReentrantCall
	}
	return context.WithValue(ctx, callKey{}, l), nil
}

// PayForService charges the caller the price of the tariff and appends a
// record with the encrypted payload to the caller's history.
func (l *Ledger) PayForService(ctx context.Context, caller ton.AccountID, tariffID int, encryptedData []byte) (_ *storage.PaymentRecord, err error) {
	defer func() {
		if err != nil {
			operationFailed("pay", err)
		}
	}()

	ctx, err = l.enter(ctx)
	if err != nil {
		return nil, err
	}
	// Once a transfer has gone out its record must commit, whatever the caller does.
	ctx = context.WithoutCancel(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	tariff, err := l.catalog.Get(tariffID)
	if err != nil {
		return nil, err
	}

	if len(encryptedData) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(encryptedData), MaxPayloadSize)
	}

	allowance, err := l.token.Allowance(ctx, caller, l.id.Self)
	if err != nil {
		return nil, fmt.Errorf("query allowance: %w", err)
	}
	if allowance < tariff.Price {
		return nil, ErrAllowanceNotSet
	}

	balance, err := l.token.BalanceOf(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("query balance: %w", err)
	}
	if balance < tariff.Price {
		return nil, ErrInsufficientBalance
	}

	payload := bytes.Clone(encryptedData)
	pending := storage.PaymentRecord{
		Client:        caller,
		TariffID:      tariff.ID,
		Amount:        tariff.Price,
		EncryptedData: payload,
		Timestamp:     time.Unix(l.now().Unix(), 0),
	}

	transferred := false
	rec, err := l.storage.AppendPayment(ctx, pending, func(ctx context.Context) error {
		ok, err := l.token.TransferFrom(ctx, caller, l.id.Self, tariff.Price)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
		if !ok {
			return ErrTransferFailed
		}
		transferred = true
		return nil
	})
	if err != nil {
		if transferred {
			// Funds moved but the record did not commit: needs reconciliation.
			l.log.Error("payment transferred but not recorded",
				"client", caller.ToRaw(),
				"tariff_id", tariff.ID,
				"amount", tariff.Price,
				"error", err,
			)
		}
		return nil, err
	}

	paymentSucceeded(tariff.ID, tariff.Price)
	l.log.Info("payment received",
		"client", caller.ToRaw(),
		"tariff_id", tariff.ID,
		"amount", tariff.Price,
		"index", rec.Index,
	)

	l.events.HandlePayment(ctx, PaymentReceived{
		Client:        caller,
		Amount:        tariff.Price,
		TariffID:      tariff.ID,
		EncryptedData: bytes.Clone(payload),
		Timestamp:     rec.Timestamp,
	})

	return rec, nil
}

// WithdrawUSDT transfers amount from the ledger to the owner.
// Only the owner may call it.
func (l *Ledger) WithdrawUSDT(ctx context.Context, caller ton.AccountID, amount uint64) (_ *storage.Withdrawal, err error) {
	defer func() {
		if err != nil {
			operationFailed("withdraw", err)
		}
	}()

	ctx, err = l.enter(ctx)
	if err != nil {
		return nil, err
	}
	// Once a transfer has gone out its record must commit, whatever the caller does.
	ctx = context.WithoutCancel(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.id.Owner {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, caller.ToRaw())
	}
	if amount == 0 {
		return nil, ErrZeroAmount
	}

	balance, err := l.token.BalanceOf(ctx, l.id.Self)
	if err != nil {
		return nil, fmt.Errorf("query ledger balance: %w", err)
	}
	if balance < amount {
		return nil, ErrInsufficientContractBalance
	}

	transferred := false
	w, err := l.storage.RecordWithdrawal(ctx, storage.Withdrawal{
		Owner:     l.id.Owner,
		Amount:    amount,
		Timestamp: time.Unix(l.now().Unix(), 0),
	}, func(ctx context.Context) error {
		ok, err := l.token.Transfer(ctx, l.id.Owner, amount)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
		if !ok {
			return ErrTransferFailed
		}
		transferred = true
		return nil
	})
	if err != nil {
		if transferred {
			l.log.Error("withdrawal transferred but not recorded", "amount", amount, "error", err)
		}
		return nil, err
	}

	withdrawalsTotal.Inc()
	l.log.Info("funds withdrawn", "owner", l.id.Owner.ToRaw(), "amount", amount)

	l.events.HandleWithdrawal(ctx, Withdrawn{
		Owner:     w.Owner,
		Amount:    w.Amount,
		Timestamp: w.Timestamp,
	})

	return w, nil
}

// GetTariff returns the tariff with the given id
func (l *Ledger) GetTariff(id int) (catalog.Tariff, error) {
	return l.catalog.Get(id)
}

// Tariffs returns the whole catalog
func (l *Ledger) Tariffs() []catalog.Tariff {
	return l.catalog.All()
}

// GetPaymentCount returns how many payments the client has made
func (l *Ledger) GetPaymentCount(ctx context.Context, client ton.AccountID) (int, error) {
	ctx, err := l.enter(ctx)
	if err != nil {
		return 0, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.storage.PaymentCount(ctx, client)
}

// ClientRecord returns the client's payment at position index
func (l *Ledger) ClientRecord(ctx context.Context, client ton.AccountID, index int) (*storage.PaymentRecord, error) {
	ctx, err := l.enter(ctx)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if index < 0 {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	rec, err := l.storage.GetPayment(ctx, client, index)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return rec, err
}

// ClientRecords returns the client's full history in payment order
func (l *Ledger) ClientRecords(ctx context.Context, client ton.AccountID) ([]storage.PaymentRecord, error) {
	ctx, err := l.enter(ctx)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.storage.ListPayments(ctx, client)
}

// Withdrawals returns past withdrawals, newest first
func (l *Ledger) Withdrawals(ctx context.Context) ([]storage.Withdrawal, error) {
	ctx, err := l.enter(ctx)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.storage.ListWithdrawals(ctx)
}

// CustodialBalance returns the ledger's token balance as reported by the token
func (l *Ledger) CustodialBalance(ctx context.Context) (uint64, error) {
	ctx, err := l.enter(ctx)
	if err != nil {
		return 0, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.token.BalanceOf(ctx, l.id.Self)
}

// Owner returns the owner account
func (l *Ledger) Owner() ton.AccountID {
	return l.id.Owner
}

// Address returns the ledger's own account
func (l *Ledger) Address() ton.AccountID {
	return l.id.Self
}

// TokenAddress returns the token master account
func (l *Ledger) TokenAddress() ton.AccountID {
	return l.id.Token
}

// OwnerPublicKey returns a copy of the owner's public encryption key
func (l *Ledger) OwnerPublicKey() []byte {
	return bytes.Clone(l.id.OwnerPublicKey)
}
