package observ

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type registry struct {
	mu       sync.Mutex
	counters map[string]map[string]int64   // name -> labelsKey -> count
	gauges   map[string]map[string]float64 // name -> labelsKey -> value
	hist     map[string]map[string][]float64
}

var reg = &registry{
	counters: map[string]map[string]int64{},
	gauges:   map[string]map[string]float64{},
	hist:     map[string]map[string][]float64{},
}

// canonicalize label map so key order is stable
func canonLabels(lbl map[string]string) string {
	if len(lbl) == 0 {
		return ""
	}
	keys := make([]string, 0, len(lbl))
	for k := range lbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(lbl[k])
	}
	return b.String()
}

func IncCounter(name string, labels map[string]string) {
	IncCounterBy(name, labels, 1.0)
}

func IncCounterBy(name string, labels map[string]string, value float64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.counters[name]
	if !ok {
		m = map[string]int64{}
		reg.counters[name] = m
	}
	k := canonLabels(labels)
	m[k] += int64(value)
}

func SetGauge(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.gauges[name]
	if !ok {
		m = map[string]float64{}
		reg.gauges[name] = m
	}
	k := canonLabels(labels)
	m[k] = value
}

func Observe(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.hist[name]
	if !ok {
		m = map[string][]float64{}
		reg.hist[name] = m
	}
	k := canonLabels(labels)
	m[k] = append(m[k], value)
}

// RecordDuration records a duration metric
func RecordDuration(name string, duration time.Duration, labels map[string]string) {
	Observe(name+"_ms", float64(duration.Milliseconds()), labels)
}

// CounterTotal sums a counter across all label sets.
func CounterTotal(name string) int64 {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	var total int64
	for _, count := range reg.counters[name] {
		total += count
	}
	return total
}

// GaugeValue returns the value of one label set under name (the only one for
// an unlabeled gauge), or 0 when nothing was recorded.
func GaugeValue(name string) float64 {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, v := range reg.gauges[name] {
		return v
	}
	return 0
}

// Basic text/JSON dump for quick checks (not Prometheus format on purpose)
func Handler() http.Handler {
	type dump struct {
		Counters map[string]map[string]int64     `json:"counters"`
		Gauges   map[string]map[string]float64   `json:"gauges"`
		Hist     map[string]map[string][]float64 `json:"histograms"`
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dump{Counters: reg.counters, Gauges: reg.gauges, Hist: reg.hist})
	})
}

// PipelineSnapshot is a read-only aggregate of the tick pipeline's telemetry.
type PipelineSnapshot struct {
	TicksReceived         int64   `json:"ticks_received"`
	TicksRejected         int64   `json:"ticks_rejected"`
	TicksDuplicate        int64   `json:"ticks_duplicate"`
	GapsDetected          int64   `json:"gaps_detected"`
	UpdatesFlushed        int64   `json:"updates_flushed"`
	FlushesAttempted      int64   `json:"flushes_attempted"`
	FlushesSucceeded      int64   `json:"flushes_succeeded"`
	FlushesSkipped        int64   `json:"flushes_skipped"`
	FlushLatencyAvgMs     float64 `json:"flush_latency_avg_ms"`
	FlushLatencyP95Ms     float64 `json:"flush_latency_p95_ms"`
	StaleInstruments      int64   `json:"stale_instruments"`
	FeedReconnects        int64   `json:"feed_reconnects"`
	RetentionTotalEvicted int64   `json:"retention_total_evicted"`
}

// Snapshot aggregates the well-known pipeline metric names into a typed view.
func Snapshot() PipelineSnapshot {
	s := PipelineSnapshot{
		TicksReceived:         CounterTotal("ticks_received_total"),
		TicksRejected:         CounterTotal("ticks_rejected_total"),
		TicksDuplicate:        CounterTotal("ticks_duplicate_total"),
		GapsDetected:          CounterTotal("sequence_gaps_total"),
		UpdatesFlushed:        CounterTotal("cell_updates_flushed_total"),
		FlushesAttempted:      CounterTotal("flushes_attempted_total"),
		FlushesSucceeded:      CounterTotal("flushes_succeeded_total"),
		FlushesSkipped:        CounterTotal("flushes_skipped_total"),
		FeedReconnects:        CounterTotal("feed_reconnects_total"),
		RetentionTotalEvicted: CounterTotal("retention_evicted_total"),
		StaleInstruments:      int64(GaugeValue("stale_instruments")),
	}
	s.FlushLatencyAvgMs, s.FlushLatencyP95Ms = latencyStats("flush_latency_ms")
	return s
}

func latencyStats(name string) (avg, p95 float64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	var samples []float64
	for _, vs := range reg.hist[name] {
		samples = append(samples, vs...)
	}
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)) * 0.95)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sum / float64(len(samples)), sorted[idx]
}

// Health is a trivial liveness endpoint.
func Health() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
