// Package metrics exposes Prometheus collectors for the reliability
// envelope and the store-and-forward queue. Collection is optional: when
// Register has not been called the package-level recorders are no-ops.
package metrics

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors bundles every metric this module records.
type Collectors struct {
	PoolTotal     *prometheus.GaugeVec
	PoolAvailable *prometheus.GaugeVec
	PoolInUse     *prometheus.GaugeVec
	PoolCreated   *prometheus.CounterVec
	PoolClosed    *prometheus.CounterVec
	PoolAcquired  *prometheus.CounterVec
	PoolTimeouts  *prometheus.CounterVec

	BreakerStateGauge  *prometheus.GaugeVec
	BreakerOpenedTotal *prometheus.CounterVec

	QueueDepth     prometheus.Gauge
	QueueBytes     prometheus.Gauge
	QueueCompleted prometheus.Counter
	QueueFailed    prometheus.Counter
}

var active atomic.Pointer[Collectors]

// NewCollectors builds the collector set.
func NewCollectors() *Collectors {
	endpoint := []string{"host", "port"}
	return &Collectors{
		PoolTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dicomnet_pool_connections_total",
			Help: "Connections currently owned by the pool.",
		}, endpoint),
		PoolAvailable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dicomnet_pool_connections_available",
			Help: "Idle connections available for acquisition.",
		}, endpoint),
		PoolInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dicomnet_pool_connections_in_use",
			Help: "Connections currently lent to callers.",
		}, endpoint),
		PoolCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dicomnet_pool_connections_created_total",
			Help: "Connections created by the pool.",
		}, endpoint),
		PoolClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dicomnet_pool_connections_closed_total",
			Help: "Connections destroyed by the pool.",
		}, endpoint),
		PoolAcquired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dicomnet_pool_acquisitions_total",
			Help: "Successful pool acquisitions.",
		}, endpoint),
		PoolTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dicomnet_pool_acquire_timeouts_total",
			Help: "Pool acquisitions that timed out waiting.",
		}, endpoint),
		BreakerStateGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dicomnet_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open).",
		}, endpoint),
		BreakerOpenedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dicomnet_circuit_breaker_opened_total",
			Help: "Times a circuit breaker transitioned to open.",
		}, endpoint),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dicomnet_queue_items",
			Help: "Items currently in the store-and-forward queue.",
		}),
		QueueBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dicomnet_queue_bytes",
			Help: "Total dataset bytes held by the queue.",
		}),
		QueueCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dicomnet_queue_completed_total",
			Help: "Queue items delivered successfully.",
		}),
		QueueFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dicomnet_queue_failed_total",
			Help: "Queue items that failed terminally.",
		}),
	}
}

// Register builds the collectors, registers them with the registerer
// (prometheus.DefaultRegisterer when nil), and activates package-level
// recording.
func Register(reg prometheus.Registerer) (*Collectors, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := NewCollectors()
	for _, collector := range []prometheus.Collector{
		c.PoolTotal, c.PoolAvailable, c.PoolInUse, c.PoolCreated, c.PoolClosed,
		c.PoolAcquired, c.PoolTimeouts, c.BreakerStateGauge, c.BreakerOpenedTotal,
		c.QueueDepth, c.QueueBytes, c.QueueCompleted, c.QueueFailed,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	active.Store(c)
	return c, nil
}

// Deactivate stops package-level recording. Intended for tests.
func Deactivate() {
	active.Store(nil)
}

func endpoint(host string, port int) prometheus.Labels {
	return prometheus.Labels{"host": host, "port": strconv.Itoa(port)}
}

// PoolStats records the pool gauge triple for an endpoint.
func PoolStats(host string, port, total, available, inUse int) {
	c := active.Load()
	if c == nil {
		return
	}
	labels := endpoint(host, port)
	c.PoolTotal.With(labels).Set(float64(total))
	c.PoolAvailable.With(labels).Set(float64(available))
	c.PoolInUse.With(labels).Set(float64(inUse))
}

// PoolCreated increments the created counter.
func PoolCreated(host string, port int) {
	if c := active.Load(); c != nil {
		c.PoolCreated.With(endpoint(host, port)).Inc()
	}
}

// PoolClosed increments the closed counter.
func PoolClosed(host string, port int) {
	if c := active.Load(); c != nil {
		c.PoolClosed.With(endpoint(host, port)).Inc()
	}
}

// PoolAcquired increments the acquisition counter.
func PoolAcquired(host string, port int) {
	if c := active.Load(); c != nil {
		c.PoolAcquired.With(endpoint(host, port)).Inc()
	}
}

// PoolTimeout increments the acquire-timeout counter.
func PoolTimeout(host string, port int) {
	if c := active.Load(); c != nil {
		c.PoolTimeouts.With(endpoint(host, port)).Inc()
	}
}

// BreakerState records the breaker state gauge.
func BreakerState(host string, port, state int) {
	if c := active.Load(); c != nil {
		c.BreakerStateGauge.With(endpoint(host, port)).Set(float64(state))
	}
}

// BreakerOpened increments the breaker opened counter.
func BreakerOpened(host string, port int) {
	if c := active.Load(); c != nil {
		c.BreakerOpenedTotal.With(endpoint(host, port)).Inc()
	}
}

// QueueDepth records the queue depth and byte gauges.
func QueueDepth(items int, bytes int64) {
	if c := active.Load(); c != nil {
		c.QueueDepth.Set(float64(items))
		c.QueueBytes.Set(float64(bytes))
	}
}

// QueueCompleted increments the completed counter.
func QueueCompleted() {
	if c := active.Load(); c != nil {
		c.QueueCompleted.Inc()
	}
}

// QueueFailed increments the terminally-failed counter.
func QueueFailed() {
	if c := active.Load(); c != nil {
		c.QueueFailed.Inc()
	}
}
