package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(creditLedgerTotal, insufficientCreditsTotal) }

var creditLedgerTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credit_ledger_entries_total",
		Help: "Credit ledger entries appended, labeled by kind.",
	},
	[]string{"kind"}, // free | paid | refund | purchase
)

func IncLedgerEntry(kind string) {
	creditLedgerTotal.WithLabelValues(norm(kind)).Inc()
}

var insufficientCreditsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "insufficient_credits_total",
		Help: "Admissions rejected for insufficient credits.",
	},
	[]string{},
)

func IncInsufficientCredits() {
	insufficientCreditsTotal.WithLabelValues().Inc()
}
