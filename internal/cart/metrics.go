package cart

import "github.com/prometheus/client_golang/prometheus"

// Metrics is optional; a nil *Metrics records nothing.
type Metrics struct {
	Mutations       *prometheus.CounterVec
	Buffered        *prometheus.CounterVec
	PersistFailures prometheus.Counter
	LoadFailures    prometheus.Counter
	LineItems       prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_mutations_total",
				Help: "Cart mutations applied, by operation",
			},
			[]string{"op"},
		),
		Buffered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_buffered_mutations_total",
				Help: "Cart mutations received before the initial load finished",
			},
			[]string{"op"},
		),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cart_persist_failures_total",
			Help: "Failed writes of the cart snapshot",
		}),
		LoadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cart_load_failures_total",
			Help: "Failed reads of the cart snapshot at startup",
		}),
		LineItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cart_line_items",
			Help: "Line items currently held in the cart",
		}),
	}

	reg.MustRegister(m.Mutations, m.Buffered, m.PersistFailures, m.LoadFailures, m.LineItems)
	return m
}

func (m *Metrics) mutated(op string, size int) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op).Inc()
	m.LineItems.Set(float64(size))
}

func (m *Metrics) buffered(op string) {
	if m == nil {
		return
	}
	m.Buffered.WithLabelValues(op).Inc()
}

func (m *Metrics) loaded(size int) {
	if m == nil {
		return
	}
	m.LineItems.Set(float64(size))
}

func (m *Metrics) loadFailed() {
	if m != nil {
		m.LoadFailures.Inc()
	}
}

func (m *Metrics) persistFailed() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}
