package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 每次 Get 恰好计一次 hit 或 miss；后端不可用的降级路径计 miss。
var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "recserve",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Number of cache gets answered from the backend.",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "recserve",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Number of cache gets that missed, including degraded (backend down) gets.",
	})

	backendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "recserve",
		Subsystem: "cache",
		Name:      "backend_errors_total",
		Help:      "Number of cache backend operations that failed and were degraded.",
	})
)
