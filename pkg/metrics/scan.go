package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"olapscan/pkg/catalog"
	"olapscan/pkg/reader"
)

// ScanMetrics turns reader stats snapshots into counters labelled by keys
// type.
type ScanMetrics struct {
	Scans            *prometheus.CounterVec
	OverlappingScans *prometheus.CounterVec
	Blocks           *prometheus.CounterVec
	Rows             *prometheus.CounterVec
	MergedRows       *prometheus.CounterVec
	DelFilteredRows  *prometheus.CounterVec
	DelFilterSkipped *prometheus.CounterVec
	InitDuration     *prometheus.HistogramVec
}

func counter(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "olapscan",
			Subsystem: "reader",
			Name:      name,
			Help:      help,
		}, []string{"keys_type"})
}

func NewScanMetrics() *ScanMetrics {
	return &ScanMetrics{
		Scans:            counter("scans_total", "finished scans"),
		OverlappingScans: counter("overlapping_scans_total", "scans that went through the merge heap"),
		Blocks:           counter("blocks_total", "returned blocks"),
		Rows:             counter("rows_total", "returned rows"),
		MergedRows:       counter("merged_rows_total", "rows folded into a row of the same key"),
		DelFilteredRows:  counter("del_filtered_rows_total", "rows dropped by their delete sign"),
		DelFilterSkipped: counter("del_filter_skipped_total", "blocks returned without delete filtering"),
		InitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "olapscan",
				Subsystem: "reader",
				Name:      "init_duration_seconds",
				Help:      "reader init durations",
				Buckets:   prometheus.ExponentialBuckets(0.00005, 2.0, 20),
			}, []string{"keys_type", "phase"}),
	}
}

func (m *ScanMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Scans, m.OverlappingScans, m.Blocks, m.Rows,
		m.MergedRows, m.DelFilteredRows, m.DelFilterSkipped, m.InitDuration,
	}
}

func (m *ScanMetrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *ScanMetrics) RecordScan(keysType catalog.KeysType, stats reader.Stats) {
	kt := keysType.String()
	m.Scans.WithLabelValues(kt).Inc()
	if stats.Overlapping {
		m.OverlappingScans.WithLabelValues(kt).Inc()
	}
	m.Blocks.WithLabelValues(kt).Add(float64(stats.BlocksReturned))
	m.Rows.WithLabelValues(kt).Add(float64(stats.RowsReturned))
	m.MergedRows.WithLabelValues(kt).Add(float64(stats.MergedRows))
	m.DelFilteredRows.WithLabelValues(kt).Add(float64(stats.RowsDelFiltered))
	m.DelFilterSkipped.WithLabelValues(kt).Add(float64(stats.DeleteFilterSkipped))
	m.InitDuration.WithLabelValues(kt, "iter").Observe(stats.IterInitTime.Seconds())
	m.InitDuration.WithLabelValues(kt, "rs_readers").Observe(stats.RsReadersInitTime.Seconds())
	m.InitDuration.WithLabelValues(kt, "build_heap").Observe(stats.BuildHeapTime.Seconds())
}
