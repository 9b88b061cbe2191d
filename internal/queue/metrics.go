package queue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticketsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qms",
		Name:      "tickets_issued_total",
		Help:      "Tickets appended to the ledger.",
	})
	ticketsAdvanced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qms",
		Name:      "tickets_advanced_total",
		Help:      "Ticket outcomes written by the serving pointer.",
	}, []string{"outcome"})
	ledgerCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "qms",
		Name:      "ledger_call_duration_seconds",
		Help:      "Latency of ledger calls by operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
)

func observeLedger(op string, start time.Time) {
	ledgerCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
