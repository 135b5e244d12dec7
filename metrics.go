package codelists

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks engine activity using lock-free atomic operations.
// All methods are safe for concurrent use.
type Metrics struct {
	// Hierarchy builds
	hierarchiesBuilt atomic.Uint64
	buildTimeTotal   atomic.Uint64
	buildTimeMin     atomic.Uint64
	buildTimeMax     atomic.Uint64

	// Store lookups
	storeHits   atomic.Uint64
	storeMisses atomic.Uint64
	storeErrors atomic.Uint64

	// Derivations
	definitionsDerived atomic.Uint64
	codesetsResolved   atomic.Uint64

	// Memo table sizes of the last saved hierarchy
	memoAncestors   atomic.Uint64
	memoDescendants atomic.Uint64

	descs metricDescs
}

type metricDescs struct {
	hierarchiesBuilt   *prometheus.Desc
	buildSeconds       *prometheus.Desc
	storeLookups       *prometheus.Desc
	storeErrors        *prometheus.Desc
	definitionsDerived *prometheus.Desc
	codesetsResolved   *prometheus.Desc
	memoEntries        *prometheus.Desc
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{
		descs: metricDescs{
			hierarchiesBuilt: prometheus.NewDesc("codelists_hierarchies_built_total",
				"Hierarchies built from a coding system.", nil, nil),
			buildSeconds: prometheus.NewDesc("codelists_hierarchy_build_seconds_total",
				"Time spent building hierarchies.", nil, nil),
			storeLookups: prometheus.NewDesc("codelists_store_lookups_total",
				"Hierarchy store lookups by result.", []string{"result"}, nil),
			storeErrors: prometheus.NewDesc("codelists_store_errors_total",
				"Hierarchy store read or write failures.", nil, nil),
			definitionsDerived: prometheus.NewDesc("codelists_definitions_derived_total",
				"Definitions derived from a target code set.", nil, nil),
			codesetsResolved: prometheus.NewDesc("codelists_codesets_resolved_total",
				"Codesets resolved to a status map.", nil, nil),
			memoEntries: prometheus.NewDesc("codelists_memo_entries",
				"Closure memo entries of the last saved hierarchy.", []string{"table"}, nil),
		},
	}
	// Initialize min to max uint64 so first value becomes the minimum
	m.buildTimeMin.Store(^uint64(0))
	return m
}

// --- Recording Methods ---

// RecordBuild records a hierarchy built from a coding system.
func (m *Metrics) RecordBuild(duration time.Duration) {
	m.hierarchiesBuilt.Add(1)

	ns := uint64(duration.Nanoseconds()) //nolint:gosec // Safe: nanoseconds are always positive for valid durations
	m.buildTimeTotal.Add(ns)

	// Update min (CAS loop)
	for {
		old := m.buildTimeMin.Load()
		if ns >= old {
			break
		}
		if m.buildTimeMin.CompareAndSwap(old, ns) {
			break
		}
	}

	// Update max (CAS loop)
	for {
		old := m.buildTimeMax.Load()
		if ns <= old {
			break
		}
		if m.buildTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordStoreHit records a hierarchy served from the store.
func (m *Metrics) RecordStoreHit() {
	m.storeHits.Add(1)
}

// RecordStoreMiss records a hierarchy missing from the store.
func (m *Metrics) RecordStoreMiss() {
	m.storeMisses.Add(1)
}

// RecordStoreError records a failed store read or write.
func (m *Metrics) RecordStoreError() {
	m.storeErrors.Add(1)
}

// RecordDefinition records a derived Definition or Definition2.
func (m *Metrics) RecordDefinition() {
	m.definitionsDerived.Add(1)
}

// RecordCodeset records a resolved Codeset.
func (m *Metrics) RecordCodeset() {
	m.codesetsResolved.Add(1)
}

// RecordMemo records the memo table sizes of a saved hierarchy.
func (m *Metrics) RecordMemo(ancestors, descendants int) {
	m.memoAncestors.Store(uint64(ancestors))     //nolint:gosec // Safe: map sizes are non-negative
	m.memoDescendants.Store(uint64(descendants)) //nolint:gosec // Safe: map sizes are non-negative
}

// --- Query Methods ---

// HierarchiesBuilt returns the number of hierarchies built.
func (m *Metrics) HierarchiesBuilt() uint64 {
	return m.hierarchiesBuilt.Load()
}

// AverageBuildTime returns the average hierarchy build duration.
func (m *Metrics) AverageBuildTime() time.Duration {
	total := m.hierarchiesBuilt.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.buildTimeTotal.Load() / total) //nolint:gosec // Safe: nanoseconds within int64 range
}

// MinBuildTime returns the minimum hierarchy build duration.
func (m *Metrics) MinBuildTime() time.Duration {
	minVal := m.buildTimeMin.Load()
	if minVal == ^uint64(0) {
		return 0
	}
	return time.Duration(minVal) //nolint:gosec // Safe: minVal represents nanoseconds within int64 range
}

// MaxBuildTime returns the maximum hierarchy build duration.
func (m *Metrics) MaxBuildTime() time.Duration {
	return time.Duration(m.buildTimeMax.Load()) //nolint:gosec // Safe: nanoseconds within int64 range
}

// StoreHits returns the number of store hits.
func (m *Metrics) StoreHits() uint64 {
	return m.storeHits.Load()
}

// StoreMisses returns the number of store misses.
func (m *Metrics) StoreMisses() uint64 {
	return m.storeMisses.Load()
}

// StoreHitRate returns the store hit rate (0.0 to 1.0).
func (m *Metrics) StoreHitRate() float64 {
	hits := m.storeHits.Load()
	total := hits + m.storeMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// DefinitionsDerived returns the number of derived definitions.
func (m *Metrics) DefinitionsDerived() uint64 {
	return m.definitionsDerived.Load()
}

// CodesetsResolved returns the number of resolved codesets.
func (m *Metrics) CodesetsResolved() uint64 {
	return m.codesetsResolved.Load()
}

// --- Export Methods ---

// Snapshot represents a point-in-time snapshot of all metrics.
type Snapshot struct {
	// Timestamp when the snapshot was taken
	Timestamp time.Time `json:"timestamp"`

	HierarchiesBuilt uint64 `json:"hierarchies_built"`
	AvgBuildTimeNs   uint64 `json:"avg_build_time_ns"`
	MinBuildTimeNs   uint64 `json:"min_build_time_ns"`
	MaxBuildTimeNs   uint64 `json:"max_build_time_ns"`

	StoreHits    uint64  `json:"store_hits"`
	StoreMisses  uint64  `json:"store_misses"`
	StoreErrors  uint64  `json:"store_errors"`
	StoreHitRate float64 `json:"store_hit_rate"`

	DefinitionsDerived uint64 `json:"definitions_derived"`
	CodesetsResolved   uint64 `json:"codesets_resolved"`

	MemoAncestors   uint64 `json:"memo_ancestors"`
	MemoDescendants uint64 `json:"memo_descendants"`
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:          time.Now(),
		HierarchiesBuilt:   m.hierarchiesBuilt.Load(),
		AvgBuildTimeNs:     uint64(m.AverageBuildTime()), //nolint:gosec // Safe: durations are non-negative
		MinBuildTimeNs:     uint64(m.MinBuildTime()),     //nolint:gosec // Safe: durations are non-negative
		MaxBuildTimeNs:     m.buildTimeMax.Load(),
		StoreHits:          m.storeHits.Load(),
		StoreMisses:        m.storeMisses.Load(),
		StoreErrors:        m.storeErrors.Load(),
		StoreHitRate:       m.StoreHitRate(),
		DefinitionsDerived: m.definitionsDerived.Load(),
		CodesetsResolved:   m.codesetsResolved.Load(),
		MemoAncestors:      m.memoAncestors.Load(),
		MemoDescendants:    m.memoDescendants.Load(),
	}
}

// Reset resets all metrics to zero.
func (m *Metrics) Reset() {
	m.hierarchiesBuilt.Store(0)
	m.buildTimeTotal.Store(0)
	m.buildTimeMin.Store(^uint64(0))
	m.buildTimeMax.Store(0)
	m.storeHits.Store(0)
	m.storeMisses.Store(0)
	m.storeErrors.Store(0)
	m.definitionsDerived.Store(0)
	m.codesetsResolved.Store(0)
	m.memoAncestors.Store(0)
	m.memoDescendants.Store(0)
}

// --- Prometheus ---

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.descs.hierarchiesBuilt
	ch <- m.descs.buildSeconds
	ch <- m.descs.storeLookups
	ch <- m.descs.storeErrors
	ch <- m.descs.definitionsDerived
	ch <- m.descs.codesetsResolved
	ch <- m.descs.memoEntries
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(v), labels...)
	}

	counter(m.descs.hierarchiesBuilt, m.hierarchiesBuilt.Load())
	ch <- prometheus.MustNewConstMetric(m.descs.buildSeconds, prometheus.CounterValue,
		time.Duration(m.buildTimeTotal.Load()).Seconds()) //nolint:gosec // Safe: nanoseconds within int64 range
	counter(m.descs.storeLookups, m.storeHits.Load(), "hit")
	counter(m.descs.storeLookups, m.storeMisses.Load(), "miss")
	counter(m.descs.storeErrors, m.storeErrors.Load())
	counter(m.descs.definitionsDerived, m.definitionsDerived.Load())
	counter(m.descs.codesetsResolved, m.codesetsResolved.Load())
	gauge(m.descs.memoEntries, m.memoAncestors.Load(), "ancestors")
	gauge(m.descs.memoEntries, m.memoDescendants.Load(), "descendants")
}

// Verify interface compliance
var _ prometheus.Collector = (*Metrics)(nil)
