package metrics

import "github.com/prometheus/client_golang/prometheus"

// CartMetrics tracks the synchronization engine.
type CartMetrics struct {
	rollbacks   *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	recreations prometheus.Counter
	sessions    prometheus.Gauge
}

func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	rollbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_rollbacks_total",
		Help: "Optimistic cart mutations rolled back after a gateway failure.",
	}, []string{"mutation"})
	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_refreshes_total",
		Help: "Cart refetches by trigger.",
	}, []string{"trigger"})
	recreations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_recreations_total",
		Help: "Carts created because the previous one was missing or closed.",
	})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cart_sessions_active",
		Help: "Cart sessions currently held by the engine.",
	})
	reg.MustRegister(rollbacks, refreshes, recreations, sessions)
	return &CartMetrics{
		rollbacks:   rollbacks,
		refreshes:   refreshes,
		recreations: recreations,
		sessions:    sessions,
	}
}

func (c *CartMetrics) IncRollback(mutation string) {
	if c == nil || c.rollbacks == nil {
		return
	}
	c.rollbacks.WithLabelValues(normalizeLabel(mutation)).Inc()
}

func (c *CartMetrics) IncRefresh(trigger string) {
	if c == nil || c.refreshes == nil {
		return
	}
	c.refreshes.WithLabelValues(normalizeLabel(trigger)).Inc()
}

func (c *CartMetrics) IncRecreation() {
	if c == nil || c.recreations == nil {
		return
	}
	c.recreations.Inc()
}

// SetSessions reports the current size of the session registry.
func (c *CartMetrics) SetSessions(n int) {
	if c == nil || c.sessions == nil {
		return
	}
	c.sessions.Set(float64(n))
}
