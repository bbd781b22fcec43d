// Package metrics exports engine activity to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rustyeddy/breakout/engine"
)

// Recorder implements engine.Observer on its own registry.
type Recorder struct {
	reg *prometheus.Registry

	cycles       *prometheus.CounterVec
	cycleErrors  *prometheus.CounterVec
	cycleLatency prometheus.Histogram
	signals      *prometheus.CounterVec
	denials      *prometheus.CounterVec
	trades       *prometheus.CounterVec
	realizedPL   prometheus.Gauge

	balance      prometheus.Gauge
	unrealizedPL prometheus.Gauge
	positionOpen prometheus.Gauge
	dailyTrades  prometheus.Gauge
	halted       prometheus.Gauge
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		reg: reg,
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "breakout_cycles_total",
			Help: "Evaluation cycles by resulting action",
		}, []string{"action"}),
		cycleErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "breakout_cycle_errors_total",
			Help: "Failed cycles by error kind",
		}, []string{"kind"}),
		cycleLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "breakout_cycle_duration_seconds",
			Help:    "Duration of one fetch and evaluate cycle",
			Buckets: prometheus.DefBuckets,
		}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "breakout_entry_signals_total",
			Help: "Entry signals seen while flat",
		}, []string{"side"}),
		denials: f.NewCounterVec(prometheus.CounterOpts{
			Name: "breakout_risk_denials_total",
			Help: "Risk gate violations by reason",
		}, []string{"reason"}),
		trades: f.NewCounterVec(prometheus.CounterOpts{
			Name: "breakout_trades_closed_total",
			Help: "Closed trades by side and exit reason",
		}, []string{"side", "reason"}),
		realizedPL: f.NewGauge(prometheus.GaugeOpts{
			Name: "breakout_realized_pl",
			Help: "Realized profit and loss since process start",
		}),
		balance: f.NewGauge(prometheus.GaugeOpts{
			Name: "breakout_balance",
			Help: "Last observed quote balance",
		}),
		unrealizedPL: f.NewGauge(prometheus.GaugeOpts{
			Name: "breakout_unrealized_pl",
			Help: "Unrealized profit and loss of the open position",
		}),
		positionOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "breakout_position_open",
			Help: "1 when a position is open",
		}),
		dailyTrades: f.NewGauge(prometheus.GaugeOpts{
			Name: "breakout_daily_trades",
			Help: "Entries taken today",
		}),
		halted: f.NewGauge(prometheus.GaugeOpts{
			Name: "breakout_halted",
			Help: "1 after an emergency stop",
		}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Recorder) ObserveCycle(res engine.CycleResult, elapsed time.Duration) {
	r.cycles.WithLabelValues(string(res.Action)).Inc()
	r.cycleLatency.Observe(elapsed.Seconds())

	if res.Err != nil {
		r.cycleErrors.WithLabelValues(errorKind(res.Err)).Inc()
	}
	if side, ok := res.Signal.Side(); ok {
		r.signals.WithLabelValues(string(side)).Inc()
	}
	if res.Denied() {
		for _, v := range res.Decision.Violations {
			r.denials.WithLabelValues(string(v.Code)).Inc()
		}
	}
	if t := res.Trade; t != nil {
		r.trades.WithLabelValues(string(t.Side), t.Reason).Inc()
		r.realizedPL.Add(t.RealizedPL)
	}
	if res.Position != nil {
		r.positionOpen.Set(1)
	} else {
		r.positionOpen.Set(0)
	}
}

func (r *Recorder) ObserveStatus(s engine.Status) {
	r.balance.Set(s.Balance)
	r.unrealizedPL.Set(s.UnrealizedPL)
	r.dailyTrades.Set(float64(s.DailyTrades))
	if s.Position != nil {
		r.positionOpen.Set(1)
	} else {
		r.positionOpen.Set(0)
	}
	if s.Halted {
		r.halted.Set(1)
	} else {
		r.halted.Set(0)
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, engine.ErrEmergencyStop):
		return "emergency_stop"
	case errors.Is(err, engine.ErrOrderExecution):
		return "order_execution"
	case errors.Is(err, engine.ErrDataFetch):
		return "data_fetch"
	case errors.Is(err, engine.ErrInsufficientData):
		return "insufficient_data"
	default:
		return "other"
	}
}
