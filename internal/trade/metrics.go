package trade

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	outcomeSuccess     = "success"
	outcomeInvalid     = "invalid"
	outcomeNotLoaded   = "not_loaded"
	outcomeEconomy     = "economy_failure"
	outcomeRecovered   = "recovered"
	outcomeUnrecovered = "unrecovered"
)

// Metrics holds trade counters.
type Metrics struct {
	trades      *prometheus.CounterVec
	volume      *prometheus.CounterVec
	unrecovered prometheus.Counter
}

// NewMetrics creates trade metrics and registers them in reg (skipped if reg is nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "trades_total",
			Help:      "Trades by side and outcome.",
		}, []string{"side", "outcome"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "trade_volume_total",
			Help:      "Money moved by successful trades.",
		}, []string{"side", "currency"}),
		unrecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "trade_unrecovered_total",
			Help:      "Trades where money moved but goods did not and compensation failed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.trades, m.volume, m.unrecovered)
	}
	return m
}

func (m *Metrics) observe(side Side, outcome string) {
	if m == nil {
		return
	}
	m.trades.WithLabelValues(side.String(), outcome).Inc()
	if outcome == outcomeUnrecovered {
		m.unrecovered.Inc()
	}
}

func (m *Metrics) addVolume(side Side, currency string, total float64) {
	if m == nil {
		return
	}
	m.volume.WithLabelValues(side.String(), currency).Add(total)
}
