package services

import "github.com/prometheus/client_golang/prometheus"

var (
	intentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_intents_total",
			Help: "Classified user intents.",
		},
		[]string{"intent"},
	)

	registrationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrations_total",
			Help: "Slot-filling outcomes by entity.",
		},
		[]string{"entity", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(intentTotal, registrationTotal)
}
