package metrics

import (
	"sort"
	"sync"
	"time"
)

// OperationStats accumulates counters for one named operation.
type OperationStats struct {
	Calls     int64         `json:"calls"`
	Failures  int64         `json:"failures"`
	Latency   time.Duration `json:"latency"`
	LastError string        `json:"lastError,omitempty"`
}

// Operations tracks call counts, failures and latency per operation.
type Operations struct {
	mu    sync.RWMutex
	stats map[string]*OperationStats
}

// NewOperations creates an empty Operations tracker.
func NewOperations() *Operations {
	return &Operations{stats: make(map[string]*OperationStats)}
}

// Record records one call of op.
func (m *Operations) Record(op string, err error, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[op]
	if !ok {
		s = &OperationStats{}
		m.stats[op] = s
	}

	s.Calls++
	s.Latency += latency

	if err != nil {
		s.Failures++
		s.LastError = err.Error()
	}
}

// Get returns a copy of the stats for op.
func (m *Operations) Get(op string) OperationStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.stats[op]; ok {
		return *s
	}

	return OperationStats{}
}

// GetMetrics returns a snapshot of the current metrics
func (m *Operations) GetMetrics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ops := make([]string, 0, len(m.stats))
	for op := range m.stats {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	out := make(map[string]any, len(ops))

	for _, op := range ops {
		s := m.stats[op]
		out[op] = map[string]any{
			"calls":       s.Calls,
			"failures":    s.Failures,
			"avg_latency": s.Latency.Seconds() / float64(s.Calls),
			"last_error":  s.LastError,
		}
	}

	return out
}

// Reset clears every counter.
func (m *Operations) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = make(map[string]*OperationStats)
}
