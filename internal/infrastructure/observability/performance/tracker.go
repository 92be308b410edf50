package performance

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// TrackerConfig contains configuration options for the performance tracker
type TrackerConfig struct {
	MaxRecords    int           `json:"maxRecords"`    // Completed markers retained for inspection
	SlowThreshold time.Duration `json:"slowThreshold"` // Operations slower than this are logged
}

// DefaultTrackerConfig returns a sensible default configuration
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxRecords:    1000,
		SlowThreshold: 500 * time.Millisecond,
	}
}

// OperationStats aggregates completed markers for one operation name.
type OperationStats struct {
	Operation   string        `json:"operation"`
	Count       int           `json:"count"`
	Failures    int           `json:"failures"`
	SlowCount   int           `json:"slowCount"`
	Total       time.Duration `json:"total"`
	Max         time.Duration `json:"max"`
	CacheHits   int           `json:"cacheHits"`
	CacheMisses int           `json:"cacheMisses"`
}

// Average returns the mean duration, or zero when nothing was recorded.
func (s OperationStats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Tracker manages performance markers and provides metrics aggregation
type Tracker struct {
	config  *TrackerConfig
	logger  *slog.Logger
	records []Record
	next    int
	stats   map[string]*OperationStats
	mu      sync.RWMutex
}

// NewTracker creates a new performance tracker. A nil logger disables slow-operation logging.
func NewTracker(config *TrackerConfig, logger *slog.Logger) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	if config.MaxRecords <= 0 {
		config.MaxRecords = DefaultTrackerConfig().MaxRecords
	}

	return &Tracker{
		config:  config,
		logger:  logger,
		records: make([]Record, 0, config.MaxRecords),
		stats:   make(map[string]*OperationStats),
	}
}

// StartOperation creates a new performance marker for an operation
func (t *Tracker) StartOperation(operation string) *Marker {
	return &Marker{
		Operation: operation,
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
		Success:   true, // Assume success until proven otherwise
		tracker:   t,
	}
}

func (t *Tracker) record(r Record) {
	slow := t.config.SlowThreshold > 0 && r.Duration > t.config.SlowThreshold

	t.mu.Lock()
	if len(t.records) < t.config.MaxRecords {
		t.records = append(t.records, r)
	} else {
		t.records[t.next] = r
	}
	t.next = (t.next + 1) % t.config.MaxRecords

	stats, ok := t.stats[r.Operation]
	if !ok {
		stats = &OperationStats{Operation: r.Operation}
		t.stats[r.Operation] = stats
	}
	stats.Count++
	stats.Total += r.Duration
	if r.Duration > stats.Max {
		stats.Max = r.Duration
	}
	if !r.Success {
		stats.Failures++
	}
	if slow {
		stats.SlowCount++
	}
	stats.CacheHits += r.CacheHits
	stats.CacheMisses += r.CacheMisses
	t.mu.Unlock()

	if slow && t.logger != nil {
		t.logger.Warn("Slow operation",
			"operation", r.Operation,
			"duration", r.Duration,
			"success", r.Success,
		)
	}
}

// Stats returns a copy of the per-operation aggregates sorted by name.
func (t *Tracker) Stats() []OperationStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]OperationStats, 0, len(t.stats))
	for _, s := range t.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

// Recent returns completed records newest first, at most limit of them.
func (t *Tracker) Recent(limit int) []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := len(t.records)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Record, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (t.next - i + n) % n
		out = append(out, t.records[idx])
	}
	return out
}
