package reader

import (
	"fmt"
	"time"
)

// Stats is a snapshot of the counters of one reader.
type Stats struct {
	IterInitTime      time.Duration
	RsReadersInitTime time.Duration
	BuildHeapTime     time.Duration

	Overlapping         bool
	MergedRows          int64
	RowsDelFiltered     int64
	DeleteFilterSkipped int64
	BlocksReturned      int64
	RowsReturned        int64

	// largest arena footprint seen before a clear
	ArenaPeakBytes int64
}

func (s Stats) String() string {
	return fmt.Sprintf("Stats[overlapping=%v,blocks=%d,rows=%d,merged=%d,del_filtered=%d,del_skipped=%d,arena_peak=%d,init=%s/%s/%s]",
		s.Overlapping, s.BlocksReturned, s.RowsReturned, s.MergedRows,
		s.RowsDelFiltered, s.DeleteFilterSkipped, s.ArenaPeakBytes,
		s.IterInitTime, s.RsReadersInitTime, s.BuildHeapTime)
}

type scopedTimer struct {
	start time.Time
	dst   *time.Duration
}

func newScopedTimer(dst *time.Duration) scopedTimer {
	return scopedTimer{start: time.Now(), dst: dst}
}

func (t scopedTimer) stop() { *t.dst += time.Since(t.start) }
