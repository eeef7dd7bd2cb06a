package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshUsers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "recserve",
		Subsystem: "refresh",
		Name:      "users_total",
		Help:      "Number of users whose recommendations were recomputed by a full refresh.",
	})

	refreshLastSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "recserve",
		Subsystem: "refresh",
		Name:      "last_users",
		Help:      "Distinct users processed by the most recent full refresh.",
	})
)
