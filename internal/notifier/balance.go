package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/suspectuso/tariff-ledger/internal/token"
)

var custodialBalance = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "ledger_custodial_balance_units",
	Help: "Token units held by the ledger account, as last reported by the token.",
})

// BalanceSource reports the ledger's custodial balance
type BalanceSource interface {
	CustodialBalance(ctx context.Context) (uint64, error)
}

// BalanceWatcher polls the custodial balance and exports it as a gauge
type BalanceWatcher struct {
	source BalanceSource
	log    *slog.Logger

	last  uint64
	known bool
}

// NewBalanceWatcher creates a new balance watcher
func NewBalanceWatcher(source BalanceSource, log *slog.Logger) *BalanceWatcher {
	return &BalanceWatcher{
		source: source,
		log:    log,
	}
}

// Start polls the balance every interval until ctx is cancelled
func (w *BalanceWatcher) Start(ctx context.Context, interval time.Duration) {
	w.log.Info("balance watcher started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := w.check(ctx); err != nil && ctx.Err() == nil {
			w.log.Error("check custodial balance", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *BalanceWatcher) check(ctx context.Context) error {
	balance, err := w.source.CustodialBalance(ctx)
	if err != nil {
		return err
	}

	custodialBalance.Set(float64(balance))

	if w.known && balance != w.last {
		w.log.Info("custodial balance changed",
			"from", token.FormatUSDT(w.last),
			"to", token.FormatUSDT(balance),
		)
	}
	w.last = balance
	w.known = true

	return nil
}
