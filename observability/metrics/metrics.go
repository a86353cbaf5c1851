package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// StateMetrics counts state store activity per shard.
type StateMetrics struct {
	Loads      *prometheus.CounterVec
	Writes     *prometheus.CounterVec
	InitShards prometheus.Counter
	Failures   *prometheus.CounterVec
}

var (
	stateOnce     sync.Once
	stateRegistry *StateMetrics
)

// State returns the process-wide state store metrics, registering them on
// first use.
func State() *StateMetrics {
	stateOnce.Do(func() {
		stateRegistry = &StateMetrics{
			Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "state_loads_total",
				Help: "Count of shard state loads by shard.",
			}, []string{"shard"}),
			Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "state_writes_total",
				Help: "Count of sealed shard state writes by shard.",
			}, []string{"shard"}),
			InitShards: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "state_shard_inits_total",
				Help: "Count of shard initializations.",
			}),
			Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "state_failures_total",
				Help: "Count of state store failures by kind (io, crypto, decode).",
			}, []string{"kind"}),
		}
		prometheus.MustRegister(
			stateRegistry.Loads,
			stateRegistry.Writes,
			stateRegistry.InitShards,
			stateRegistry.Failures,
		)
	})
	return stateRegistry
}

// PoolMetrics tracks the rotator's ban cache.
type PoolMetrics struct {
	BannedSize prometheus.Gauge
	Bans       prometheus.Counter
	Evictions  prometheus.Counter
}

var (
	poolOnce     sync.Once
	poolRegistry *PoolMetrics
)

// Pool returns the process-wide pool rotator metrics, registering them on
// first use.
func Pool() *PoolMetrics {
	poolOnce.Do(func() {
		poolRegistry = &PoolMetrics{
			BannedSize: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "pool_banned_operations",
				Help: "Current number of banned operation hashes in the rotator.",
			}),
			Bans: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "pool_bans_total",
				Help: "Count of operation hashes banned by the rotator.",
			}),
			Evictions: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "pool_ban_evictions_total",
				Help: "Count of ban entries evicted when the cache exceeded capacity.",
			}),
		}
		prometheus.MustRegister(
			poolRegistry.BannedSize,
			poolRegistry.Bans,
			poolRegistry.Evictions,
		)
	})
	return poolRegistry
}
