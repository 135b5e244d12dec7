package codelists

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Basic(t *testing.T) {
	m := NewMetrics()

	if m.HierarchiesBuilt() != 0 {
		t.Errorf("HierarchiesBuilt() = %d; want 0", m.HierarchiesBuilt())
	}

	m.RecordBuild(100 * time.Millisecond)
	m.RecordDefinition()
	m.RecordCodeset()
	m.RecordCodeset()

	if m.HierarchiesBuilt() != 1 {
		t.Errorf("HierarchiesBuilt() = %d; want 1", m.HierarchiesBuilt())
	}
	if m.DefinitionsDerived() != 1 {
		t.Errorf("DefinitionsDerived() = %d; want 1", m.DefinitionsDerived())
	}
	if m.CodesetsResolved() != 2 {
		t.Errorf("CodesetsResolved() = %d; want 2", m.CodesetsResolved())
	}
}

func TestMetrics_BuildTime(t *testing.T) {
	m := NewMetrics()

	// No builds yet
	if avg := m.AverageBuildTime(); avg != 0 {
		t.Errorf("AverageBuildTime() = %v; want 0", avg)
	}
	if min := m.MinBuildTime(); min != 0 {
		t.Errorf("MinBuildTime() = %v; want 0", min)
	}

	m.RecordBuild(100 * time.Millisecond)
	m.RecordBuild(200 * time.Millisecond)
	m.RecordBuild(300 * time.Millisecond)

	if avg := m.AverageBuildTime(); avg != 200*time.Millisecond {
		t.Errorf("AverageBuildTime() = %v; want 200ms", avg)
	}
	if min := m.MinBuildTime(); min != 100*time.Millisecond {
		t.Errorf("MinBuildTime() = %v; want 100ms", min)
	}
	if max := m.MaxBuildTime(); max != 300*time.Millisecond {
		t.Errorf("MaxBuildTime() = %v; want 300ms", max)
	}
}

func TestMetrics_StoreHitRate(t *testing.T) {
	m := NewMetrics()

	if rate := m.StoreHitRate(); rate != 0 {
		t.Errorf("StoreHitRate() = %f; want 0", rate)
	}

	m.RecordStoreHit()
	m.RecordStoreHit()
	m.RecordStoreHit()
	m.RecordStoreMiss()

	if rate := m.StoreHitRate(); rate != 0.75 {
		t.Errorf("StoreHitRate() = %f; want 0.75", rate)
	}
}

func TestMetrics_Concurrent(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.RecordBuild(time.Duration(i+1) * time.Millisecond)
			m.RecordStoreMiss()
		}(i)
	}
	wg.Wait()

	if m.HierarchiesBuilt() != 100 {
		t.Errorf("HierarchiesBuilt() = %d; want 100", m.HierarchiesBuilt())
	}
	if m.StoreMisses() != 100 {
		t.Errorf("StoreMisses() = %d; want 100", m.StoreMisses())
	}
	if min := m.MinBuildTime(); min != time.Millisecond {
		t.Errorf("MinBuildTime() = %v; want 1ms", min)
	}
	if max := m.MaxBuildTime(); max != 100*time.Millisecond {
		t.Errorf("MaxBuildTime() = %v; want 100ms", max)
	}
}

func TestMetrics_SnapshotAndReset(t *testing.T) {
	m := NewMetrics()
	m.RecordBuild(50 * time.Millisecond)
	m.RecordStoreHit()
	m.RecordStoreError()
	m.RecordMemo(7, 3)

	s := m.Snapshot()
	if s.Timestamp.IsZero() {
		t.Error("Snapshot.Timestamp should not be zero")
	}
	if s.HierarchiesBuilt != 1 || s.StoreHits != 1 || s.StoreErrors != 1 {
		t.Errorf("Snapshot() = %+v", s)
	}
	if s.MemoAncestors != 7 || s.MemoDescendants != 3 {
		t.Errorf("memo = %d/%d; want 7/3", s.MemoAncestors, s.MemoDescendants)
	}
	if s.MinBuildTimeNs != uint64(50*time.Millisecond) {
		t.Errorf("MinBuildTimeNs = %d; want %d", s.MinBuildTimeNs, uint64(50*time.Millisecond))
	}

	m.Reset()
	if m.HierarchiesBuilt() != 0 || m.StoreHits() != 0 || m.MinBuildTime() != 0 {
		t.Errorf("Reset() left values: %+v", m.Snapshot())
	}
}

func TestMetrics_Collector(t *testing.T) {
	m := NewMetrics()
	m.RecordBuild(2 * time.Second)
	m.RecordStoreHit()
	m.RecordStoreMiss()
	m.RecordStoreMiss()
	m.RecordMemo(5, 4)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m))

	families, err := reg.Gather()
	require.NoError(t, err)

	got := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range metric.GetLabel() {
				name += "{" + lp.GetValue() + "}"
			}
			switch {
			case metric.GetCounter() != nil:
				got[name] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				got[name] = metric.GetGauge().GetValue()
			}
		}
	}

	want := map[string]float64{
		"codelists_hierarchies_built_total":       1,
		"codelists_hierarchy_build_seconds_total": 2,
		"codelists_store_lookups_total{hit}":      1,
		"codelists_store_lookups_total{miss}":     2,
		"codelists_store_errors_total":            0,
		"codelists_definitions_derived_total":     0,
		"codelists_codesets_resolved_total":       0,
		"codelists_memo_entries{ancestors}":       5,
		"codelists_memo_entries{descendants}":     4,
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s = %v; want %v", name, got[name], v)
		}
	}
}
