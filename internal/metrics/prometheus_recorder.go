package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "nestcore"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	opDuration  *prom.HistogramVec
	opResults   *prom.CounterVec
	deposited   prom.Counter
	collected   prom.Counter
	hatched     prom.Counter
	dropped     prom.Counter
	ticks       prom.Counter
	remaining   *prom.GaugeVec
	loadedNests prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil registry gets a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		opDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of nest service operations",
			Buckets:   prom.DefBuckets,
		}, []string{"operation"}),
		opResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "operation_results_total",
			Help:      "Nest service operation outcomes",
		}, []string{"operation", "result"}),
		deposited: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "eggs_deposited_total",
			Help:      "Eggs placed into nest boxes by players",
		}),
		collected: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "eggs_collected_total",
			Help:      "Eggs handed to players from nest boxes",
		}),
		hatched: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "chicks_hatched_total",
			Help:      "Creatures spawned from incubated eggs",
		}),
		dropped: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "eggs_dropped_total",
			Help:      "Eggs discarded when a reloaded nest shrank",
		}),
		ticks: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "incubation_ticks_total",
			Help:      "Scheduled incubation ticks run",
		}),
		remaining: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "incubation_remaining_days",
			Help:      "Remaining incubation countdown per nest",
		}, []string{"nest_id"}),
		loadedNests: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "loaded_nests",
			Help:      "Nest boxes currently loaded",
		}),
	}
	reg.MustRegister(pr.opDuration, pr.opResults, pr.deposited, pr.collected, pr.hatched,
		pr.dropped, pr.ticks, pr.remaining, pr.loadedNests)
	return pr
}

func (p *PrometheusRecorder) ObserveOperation(op string, d time.Duration, success bool) {
	if p == nil {
		return
	}
	p.opDuration.WithLabelValues(op).Observe(d.Seconds())
	p.opResults.WithLabelValues(op, string(Result(success))).Inc()
}

func (p *PrometheusRecorder) IncEggsDeposited(n int) {
	if p == nil {
		return
	}
	add(p.deposited, n)
}

func (p *PrometheusRecorder) IncEggsCollected(n int) {
	if p == nil {
		return
	}
	add(p.collected, n)
}

func (p *PrometheusRecorder) IncChicksHatched(n int) {
	if p == nil {
		return
	}
	add(p.hatched, n)
}

func (p *PrometheusRecorder) IncEggsDropped(n int) {
	if p == nil {
		return
	}
	add(p.dropped, n)
}


func (p *PrometheusRecorder) IncTicks() {
	if p == nil {
		return
	}
	p.ticks.Inc()
}

func (p *PrometheusRecorder) SetIncubationRemaining(nestID string, days float64) {
	if p == nil {
		return
	}
	p.remaining.WithLabelValues(nestID).Set(days)
}

func (p *PrometheusRecorder) ForgetNest(nestID string) {
	if p == nil {
		return
	}
	p.remaining.DeleteLabelValues(nestID)
}

func (p *PrometheusRecorder) SetLoadedNests(n int) {
	if p == nil {
		return
	}
	p.loadedNests.Set(float64(n))
}

func add(c prom.Counter, n int) {
	if n <= 0 {
		return
	}
	c.Add(float64(n))
}
