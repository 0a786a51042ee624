package dataio

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"

	"olapscan/pkg/catalog"
	"olapscan/pkg/containers"
)

// ErrEOF ends a stream. It is a control signal, not a failure.
var ErrEOF = errors.New("olapscan: end of stream")

const DefaultBatchSize = 1024

const InvalidRowID int32 = -1

type Version struct {
	Start int64
	End   int64
}

func (v Version) String() string { return fmt.Sprintf("[%d-%d]", v.Start, v.End) }

// RowLocation addresses one row inside a rowset segment.
type RowLocation struct {
	RowsetID  uint64
	SegmentID uint32
	RowID     int32
}

func (loc RowLocation) IsValid() bool { return loc.RowID != InvalidRowID }

func (loc RowLocation) String() string {
	return fmt.Sprintf("%d/%d/%d", loc.RowsetID, loc.SegmentID, loc.RowID)
}

// Rowset is an immutable run of rows sorted by key, stored as one or more
// segments.
type Rowset interface {
	ID() uint64
	Version() Version
	NumRows() int
	NumSegments() int
	// IsSegmentsOverlapping is true if the key ranges of two segments may
	// intersect.
	IsSegmentsOverlapping() bool
	// FirstKey and LastKey return the encoded key bounds. ok is false when
	// the rowset cannot tell.
	FirstKey() (key []byte, ok bool)
	LastKey() (key []byte, ok bool)
	// IsSegmentsKeyBoundsTruncated is true if the bounds may be prefixes of
	// the real keys.
	IsSegmentsKeyBoundsTruncated() bool
	NewReader() RowsetReader
}

type RowsetReader interface {
	io.Closer
	Rowset() Rowset
	Init(ctx context.Context, rctx *ReaderContext, split RowsetSplit) error
	// NextBlock refills bat with up to ReaderContext.BatchSize rows. bat is
	// reused by the caller across calls. Returns ErrEOF once drained.
	NextBlock(ctx context.Context, bat *containers.Batch) error
	// CurrentBlockRowLocations is parallel to the last block returned. Only
	// filled if ReaderContext.RecordRowIDs is set.
	CurrentBlockRowLocations() []RowLocation
	// Clone returns an uninitialized reader over the same rowset.
	Clone() RowsetReader
}

// RowsetSplit binds a reader to the part of its rowset a scan covers.
type RowsetSplit struct {
	Reader RowsetReader
	// SegmentOffsets is a half-open segment range. The zero value covers
	// every segment.
	SegmentOffsets [2]int
}

func (split RowsetSplit) Segments() (begin, end int) {
	n := split.Reader.Rowset().NumSegments()
	begin, end = split.SegmentOffsets[0], split.SegmentOffsets[1]
	if begin == 0 && end == 0 {
		return 0, n
	}
	if end > n {
		end = n
	}
	if begin > end {
		begin = end
	}
	return
}

// ReaderContext is shared by all rowset readers of one scan.
type ReaderContext struct {
	Schema *catalog.Schema
	// ReturnColumns are schema indexes in block layout order.
	ReturnColumns []int
	// KeyColumns are positions in the block layout of the key columns.
	KeyColumns   []int
	BatchSize    int
	Reverse      bool
	RecordRowIDs bool
}

func (rctx *ReaderContext) GetBatchSize() int {
	if rctx.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return rctx.BatchSize
}

// NewBlock returns an empty batch in block layout.
func (rctx *ReaderContext) NewBlock() *containers.Batch {
	return containers.BuildBatch(
		rctx.Schema.Attrs(rctx.ReturnColumns),
		rctx.Schema.Types(rctx.ReturnColumns))
}
