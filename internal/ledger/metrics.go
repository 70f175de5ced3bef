package ledger

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_payments_total",
			Help: "Successful payments by tariff.",
		},
		[]string{"tariff"},
	)
	collectedUnitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_collected_units_total",
		Help: "Token units received through payments.",
	})
	withdrawalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_withdrawals_total",
		Help: "Successful owner withdrawals.",
	})
	failuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_failures_total",
			Help: "Rejected ledger operations by operation and reason.",
		},
		[]string{"operation", "reason"},
	)
)

func paymentSucceeded(tariffID int, amount uint64) {
	paymentsTotal.WithLabelValues(strconv.Itoa(tariffID)).Inc()
	collectedUnitsTotal.Add(float64(amount))
}

func operationFailed(operation string, err error) {
	failuresTotal.WithLabelValues(operation, failureReason(err)).Inc()
}
