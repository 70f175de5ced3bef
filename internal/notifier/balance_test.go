package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeBalance struct {
	values chan uint64
	err    error
}

func (f *fakeBalance) CustodialBalance(ctx context.Context) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	select {
	case v := <-f.values:
		return v, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func TestBalanceWatcher_Check(t *testing.T) {
	src := &fakeBalance{values: make(chan uint64, 2)}
	w := NewBalanceWatcher(src, discardLogger())

	src.values <- 552
	require.NoError(t, w.check(context.Background()))
	require.True(t, w.known)
	require.Equal(t, uint64(552), w.last)

	src.values <- 0
	require.NoError(t, w.check(context.Background()))
	require.Equal(t, uint64(0), w.last)
}

func TestBalanceWatcher_Error(t *testing.T) {
	w := NewBalanceWatcher(&fakeBalance{err: errors.New("unavailable")}, discardLogger())
	require.Error(t, w.check(context.Background()))
	require.False(t, w.known)
}

func TestBalanceWatcher_StopsOnCancel(t *testing.T) {
	src := &fakeBalance{values: make(chan uint64)}
	w := NewBalanceWatcher(src, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx, time.Hour)
		close(done)
	}()

	src.values <- 7
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
