package dataio

import (
	"context"

	"olapscan/pkg/containers"
)

// NoopRowset holds no rows.
type NoopRowset struct {
	RowsetID      uint64
	RowsetVersion Version
}

func (rs *NoopRowset) ID() uint64                         { return rs.RowsetID }
func (rs *NoopRowset) Version() Version                   { return rs.RowsetVersion }
func (rs *NoopRowset) NumRows() int                       { return 0 }
func (rs *NoopRowset) NumSegments() int                   { return 0 }
func (rs *NoopRowset) IsSegmentsOverlapping() bool        { return false }
func (rs *NoopRowset) FirstKey() ([]byte, bool)           { return nil, false }
func (rs *NoopRowset) LastKey() ([]byte, bool)            { return nil, false }
func (rs *NoopRowset) IsSegmentsKeyBoundsTruncated() bool { return false }
func (rs *NoopRowset) NewReader() RowsetReader            { return &NoopRowsetReader{rs: rs} }
func (rs *NoopRowset) Split() RowsetSplit                 { return RowsetSplit{Reader: rs.NewReader()} }

type NoopRowsetReader struct {
	rs Rowset
}

func (r *NoopRowsetReader) Close() error                                            { return nil }
func (r *NoopRowsetReader) Rowset() Rowset                                          { return r.rs }
func (r *NoopRowsetReader) Init(context.Context, *ReaderContext, RowsetSplit) error { return nil }
func (r *NoopRowsetReader) CurrentBlockRowLocations() []RowLocation                 { return nil }
func (r *NoopRowsetReader) Clone() RowsetReader                                     { return &NoopRowsetReader{rs: r.rs} }

func (r *NoopRowsetReader) NextBlock(context.Context, *containers.Batch) error {
	return ErrEOF
}
