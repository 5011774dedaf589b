package capture

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rocket_sensors"

// Metrics are the prometheus collectors updated by a Poller.
type Metrics struct {
	reads     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	values    *prometheus.GaugeVec
	published *prometheus.CounterVec
}

// NewMetrics creates the poller collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_reads_total",
			Help:      "Sensor reads by result.",
		}, []string{"sensor", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sensor_read_duration_seconds",
			Help:      "Time taken by a sensor read.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"sensor"}),
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_reading",
			Help:      "Last numeric value of each reading key.",
		}, []string{"sensor", "reading"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Readings handed to sinks by result.",
		}, []string{"sensor", "result"}),
	}
	reg.MustRegister(m.reads, m.duration, m.values, m.published)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) observeRead(sensor string, seconds float64, err error) {
	m.reads.WithLabelValues(sensor, result(err)).Inc()
	m.duration.WithLabelValues(sensor).Observe(seconds)
}

// observeValues exports every numeric reading. Lists such as raw load cell measures are skipped.
func (m *Metrics) observeValues(r Reading) {
	for key, v := range r.Readings {
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case int:
			f = float64(n)
		default:
			continue
		}
		m.values.WithLabelValues(r.Sensor, key).Set(f)
	}
}

func (m *Metrics) observeWrite(sensor string, err error) {
	m.published.WithLabelValues(sensor, result(err)).Inc()
}
