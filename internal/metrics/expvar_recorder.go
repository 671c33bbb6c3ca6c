package metrics

import (
	"expvar"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// ExpvarRecorder publishes aggregate counters via expvar. Durations are kept
// as per-operation totals in milliseconds.
type ExpvarRecorder struct {
	name string

	mu        sync.Mutex
	durations map[string]float64
	results   map[string]map[ResultLabel]int64
	counters  map[string]int64
	remaining map[string]float64
	loaded    int
}

// ExpvarSnapshot is the JSON document served under the recorder's name.
type ExpvarSnapshot struct {
	DurationsMS map[string]float64               `json:"durations_ms_total"`
	Results     map[string]map[ResultLabel]int64 `json:"results_total"`
	Counters    map[string]int64                 `json:"counters"`
	Remaining   map[string]float64               `json:"incubation_remaining_days"`
	LoadedNests int                              `json:"loaded_nests"`
	RecordedAt  time.Time                        `json:"recorded_at"`
}

// NewExpvarRecorder publishes a recorder under name; an empty name gets a
// unique generated one.
func NewExpvarRecorder(name string) *ExpvarRecorder {
	if name == "" {
		name = fmt.Sprintf("nestcore_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarRecorder{
		name:      name,
		durations: make(map[string]float64),
		results:   make(map[string]map[ResultLabel]int64),
		counters:  make(map[string]int64),
		remaining: make(map[string]float64),
	}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarRecorder) Name() string { return r.name }

// Snapshot returns a copy of the aggregated figures.
func (r *ExpvarRecorder) Snapshot() ExpvarSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	results := make(map[string]map[ResultLabel]int64, len(r.results))
	for op, counts := range r.results {
		results[op] = maps.Clone(counts)
	}
	return ExpvarSnapshot{
		DurationsMS: maps.Clone(r.durations),
		Results:     results,
		Counters:    maps.Clone(r.counters),
		Remaining:   maps.Clone(r.remaining),
		LoadedNests: r.loaded,
		RecordedAt:  time.Now().UTC(),
	}
}

func (r *ExpvarRecorder) ObserveOperation(op string, d time.Duration, success bool) {
	if op == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations[op] += float64(d) / float64(time.Millisecond)
	if _, ok := r.results[op]; !ok {
		r.results[op] = make(map[ResultLabel]int64, 2)
	}
	r.results[op][Result(success)]++
}

func (r *ExpvarRecorder) IncEggsDeposited(n int) { r.count("eggs_deposited", n) }
func (r *ExpvarRecorder) IncEggsCollected(n int) { r.count("eggs_collected", n) }
func (r *ExpvarRecorder) IncChicksHatched(n int) { r.count("chicks_hatched", n) }
func (r *ExpvarRecorder) IncEggsDropped(n int)   { r.count("eggs_dropped", n) }
func (r *ExpvarRecorder) IncTicks()              { r.count("ticks", 1) }

func (r *ExpvarRecorder) SetIncubationRemaining(nestID string, days float64) {
	r.mu.Lock()
	r.remaining[nestID] = days
	r.mu.Unlock()
}

func (r *ExpvarRecorder) ForgetNest(nestID string) {
	r.mu.Lock()
	delete(r.remaining, nestID)
	r.mu.Unlock()
}

func (r *ExpvarRecorder) SetLoadedNests(n int) {
	r.mu.Lock()
	r.loaded = n
	r.mu.Unlock()
}

func (r *ExpvarRecorder) count(name string, n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	r.counters[name] += int64(n)
	r.mu.Unlock()
}
