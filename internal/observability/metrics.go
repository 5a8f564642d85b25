package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory request counters for the HTTP layer.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	latencyTotal map[string]time.Duration
}

// RequestStats is a read-only copy of the counters.
type RequestStats struct {
	Requests map[string]int64         `json:"requests"`
	Errors   map[string]int64         `json:"errors"`
	Latency  map[string]time.Duration `json:"latency_total"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		latencyTotal: make(map[string]time.Duration),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.latencyTotal[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() RequestStats {
	stats := RequestStats{
		Requests: map[string]int64{},
		Errors:   map[string]int64{},
		Latency:  map[string]time.Duration{},
	}
	if m == nil {
		return stats
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		stats.Requests[k] = v
	}
	for k, v := range m.errorCount {
		stats.Errors[k] = v
	}
	for k, v := range m.latencyTotal {
		stats.Latency[k] = v
	}
	return stats
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
