package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

type CacheStats struct {
	Requests    uint64
	GPUHits     uint64
	CPUHits     uint64
	CPULoads    uint64
	GPUUploads  uint64
	CPUEvicted  uint64
	GPUEvicted  uint64
	CPUSkipped  uint64
	GPUSkipped  uint64
	ReadErrors  uint64
	BytesLoaded uint64
}

type cacheMetrics struct {
	requests  prometheus.Counter
	hits      *prometheus.CounterVec
	loads     prometheus.Counter
	uploads   prometheus.Counter
	evictions *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	bytes     prometheus.Counter
}

func newCacheMetrics() *cacheMetrics {
	const namespace, subsystem = "volume", "block_cache"

	return &cacheMetrics{
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "requests_total", Help: "Block requests processed by the loader.",
		}),
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "hits_total", Help: "Requests answered by an already resident block.",
		}, []string{"set"}),
		loads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "cpu_loads_total", Help: "Block payloads read from the raw volume.",
		}),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "gpu_uploads_total", Help: "Block payloads handed to the uploader.",
		}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "evictions_total", Help: "Resident blocks evicted to make room.",
		}, []string{"set"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "skipped_total", Help: "Requests skipped because every resident block was visible.",
		}, []string{"set"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "loaded_bytes_total", Help: "Payload bytes read from the raw volume.",
		}),
	}
}

func (m *cacheMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.hits, m.loads, m.uploads, m.evictions, m.skipped, m.bytes}
}

func (m *cacheMetrics) register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
