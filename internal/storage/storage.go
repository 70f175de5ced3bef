package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tonkeeper/tongo/ton"
)

var ErrNotFound = errors.New("not found")

// CommitFunc runs inside a storage transaction.
// Returning an error rolls the transaction back.
type CommitFunc func(ctx context.Context) error

// Storage handles all database operations
type Storage struct {
	db *sql.DB
}

// New creates a new Storage instance and initializes the database
func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &Storage{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS payments (
			client TEXT NOT NULL,
			seq INTEGER NOT NULL,
			tariff_id INTEGER NOT NULL,
			amount INTEGER NOT NULL,
			encrypted_data BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			paid INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (client, seq)
		)`,

		`CREATE TABLE IF NOT EXISTS withdrawals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner TEXT NOT NULL,
			amount INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}

	return nil
}

// --- Payments ---

// AppendPayment appends rec to the client's history and runs commit in the
// same transaction. The record is persisted only if commit succeeds.
// Index and Paid of rec are assigned here.
func (s *Storage) AppendPayment(ctx context.Context, rec PaymentRecord, commit CommitFunc) (*PaymentRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	client := rec.Client.ToRaw()

	var count int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM payments WHERE client = ?", client).Scan(&count)
	if err != nil {
		return nil, err
	}

	rec.Index = count
	rec.Paid = true
	data := rec.EncryptedData
	if data == nil {
		data = []byte{}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payments (client, seq, tariff_id, amount, encrypted_data, created_at, paid)
		 VALUES (?, ?, ?, ?, ?, ?, 1)`,
		client, rec.Index, rec.TariffID, int64(rec.Amount), data, rec.Timestamp.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	if err := commit(ctx); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &rec, nil
}

// PaymentCount returns the number of payments made by a client
func (s *Storage) PaymentCount(ctx context.Context, client ton.AccountID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payments WHERE client = ?",
		client.ToRaw(),
	).Scan(&count)
	return count, err
}

// GetPayment returns the client's payment at the given position
func (s *Storage) GetPayment(ctx context.Context, client ton.AccountID, index int) (*PaymentRecord, error) {
	rec := PaymentRecord{Client: client, Index: index}
	var amount, createdAt int64
	var paid bool

	err := s.db.QueryRowContext(ctx,
		`SELECT tariff_id, amount, encrypted_data, created_at, paid
		 FROM payments WHERE client = ? AND seq = ?`,
		client.ToRaw(), index,
	).Scan(&rec.TariffID, &amount, &rec.EncryptedData, &createdAt, &paid)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.Amount = uint64(amount)
	rec.Timestamp = time.Unix(createdAt, 0)
	rec.Paid = paid
	return &rec, nil
}

// ListPayments returns the client's full history in payment order
func (s *Storage) ListPayments(ctx context.Context, client ton.AccountID) ([]PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, tariff_id, amount, encrypted_data, created_at, paid
		 FROM payments WHERE client = ? ORDER BY seq`,
		client.ToRaw(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []PaymentRecord
	for rows.Next() {
		rec := PaymentRecord{Client: client}
		var amount, createdAt int64

		err := rows.Scan(&rec.Index, &rec.TariffID, &amount, &rec.EncryptedData, &createdAt, &rec.Paid)
		if err != nil {
			return nil, err
		}

		rec.Amount = uint64(amount)
		rec.Timestamp = time.Unix(createdAt, 0)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// --- Withdrawals ---

// RecordWithdrawal stores a withdrawal and runs commit in the same
// transaction. Nothing is stored if commit fails.
func (s *Storage) RecordWithdrawal(ctx context.Context, w Withdrawal, commit CommitFunc) (*Withdrawal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"INSERT INTO withdrawals (owner, amount, created_at) VALUES (?, ?, ?)",
		w.Owner.ToRaw(), int64(w.Amount), w.Timestamp.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert withdrawal: %w", err)
	}
	w.ID, _ = result.LastInsertId()

	if err := commit(ctx); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &w, nil
}

// ListWithdrawals returns all withdrawals, newest first
func (s *Storage) ListWithdrawals(ctx context.Context) ([]Withdrawal, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, owner, amount, created_at FROM withdrawals ORDER BY id DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var withdrawals []Withdrawal
	for rows.Next() {
		var w Withdrawal
		var owner string
		var amount, createdAt int64

		if err := rows.Scan(&w.ID, &owner, &amount, &createdAt); err != nil {
			return nil, err
		}

		w.Owner, err = ton.ParseAccountID(owner)
		if err != nil {
			return nil, fmt.Errorf("parse owner %q: %w", owner, err)
		}
		w.Amount = uint64(amount)
		w.Timestamp = time.Unix(createdAt, 0)
		withdrawals = append(withdrawals, w)
	}

	return withdrawals, rows.Err()
}
