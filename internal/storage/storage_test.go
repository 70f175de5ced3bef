package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tonkeeper/tongo/ton"
)

var (
	testClient1 = ton.MustParseAccountID("0:0a95e1d4ebe7860d051f8b861730dbdee1440fd11180211914e0089146580351")
	testClient2 = ton.MustParseAccountID("0:0a95e1d4ebe7860d051f8b861730dbdee1440fd11180211914e0089146580352")
)

func newTestStorage(t *testing.T) (*Storage, string) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func noop(context.Context) error { return nil }

func TestAppendPayment(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	now := time.Unix(1700000000, 0)

	for i := 0; i < 3; i++ {
		rec, err := s.AppendPayment(ctx, PaymentRecord{
			Client:        testClient1,
			TariffID:      i + 1,
			Amount:        uint64(100 * (i + 1)),
			EncryptedData: []byte{byte(i), 0xff},
			Timestamp:     now.Add(time.Duration(i) * time.Second),
		}, noop)
		require.NoError(t, err)
		require.Equal(t, i, rec.Index)
		require.True(t, rec.Paid)
	}

	count, err := s.PaymentCount(ctx, testClient1)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	count, err = s.PaymentCount(ctx, testClient2)
	require.NoError(t, err)
	require.Zero(t, count)

	rec, err := s.GetPayment(ctx, testClient1, 1)
	require.NoError(t, err)
	require.Equal(t, 2, rec.TariffID)
	require.Equal(t, uint64(200), rec.Amount)
	require.Equal(t, []byte{1, 0xff}, rec.EncryptedData)
	require.Equal(t, now.Add(time.Second).Unix(), rec.Timestamp.Unix())
	require.True(t, rec.Paid)

	_, err = s.GetPayment(ctx, testClient1, 3)
	require.True(t, errors.Is(err, ErrNotFound))

	list, err := s.ListPayments(ctx, testClient1)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, r := range list {
		require.Equal(t, i, r.Index)
		require.Equal(t, i+1, r.TariffID)
	}
}

func TestAppendPaymentRollback(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	failure := errors.New("transfer rejected")
	_, err := s.AppendPayment(ctx, PaymentRecord{
		Client:    testClient1,
		TariffID:  1,
		Amount:    1,
		Timestamp: time.Now(),
	}, func(context.Context) error { return failure })
	require.True(t, errors.Is(err, failure))

	count, err := s.PaymentCount(ctx, testClient1)
	require.NoError(t, err)
	require.Zero(t, count)

	// the next successful append still starts at index 0
	rec, err := s.AppendPayment(ctx, PaymentRecord{Client: testClient1, TariffID: 1, Amount: 1, Timestamp: time.Now()}, noop)
	require.NoError(t, err)
	require.Zero(t, rec.Index)
}

func TestPaymentsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStorage(t)

	_, err := s.AppendPayment(ctx, PaymentRecord{
		Client:        testClient2,
		TariffID:      5,
		Amount:        10,
		EncryptedData: []byte("payload"),
		Timestamp:     time.Unix(1700000000, 0),
	}, noop)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	rec, err := reopened.GetPayment(ctx, testClient2, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), rec.EncryptedData)
	require.Equal(t, 5, rec.TariffID)
}

func TestRecordWithdrawal(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	_, err := s.RecordWithdrawal(ctx, Withdrawal{Owner: testClient1, Amount: 5, Timestamp: time.Now()},
		func(context.Context) error { return errors.New("rejected") })
	require.Error(t, err)

	list, err := s.ListWithdrawals(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	w, err := s.RecordWithdrawal(ctx, Withdrawal{Owner: testClient1, Amount: 7, Timestamp: time.Now()}, noop)
	require.NoError(t, err)
	require.NotZero(t, w.ID)

	list, err = s.ListWithdrawals(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, testClient1, list[0].Owner)
	require.Equal(t, uint64(7), list[0].Amount)
}
