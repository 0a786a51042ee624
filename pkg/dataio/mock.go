package dataio

import (
	"context"

	"github.com/cockroachdb/errors"

	"olapscan/pkg/catalog"
	"olapscan/pkg/common"
	"olapscan/pkg/containers"
)

// MockRowset keeps its segments in memory. Every segment batch carries all
// schema columns in schema order and is sorted by key.
type MockRowset struct {
	id          uint64
	version     Version
	schema      *catalog.Schema
	segments    []*containers.Batch
	keyBoundLen int
	readErr     error
	errAfter    int
}

func NewMockRowset(id uint64, version Version, schema *catalog.Schema, segments ...*containers.Batch) *MockRowset {
	return &MockRowset{
		id:       id,
		version:  version,
		schema:   schema,
		segments: segments,
	}
}

// MockSegment builds one segment of schema from rows of values.
func MockSegment(schema *catalog.Schema, rows ...[]any) *containers.Batch {
	idxs := schema.AllIdxs()
	return containers.MockBatch(schema.Attrs(idxs), schema.Types(idxs), rows...)
}

// WithTruncatedKeyBounds cuts the reported key bounds to n bytes.
func (rs *MockRowset) WithTruncatedKeyBounds(n int) *MockRowset {
	rs.keyBoundLen = n
	return rs
}

// WithReadError makes readers fail with err once they returned n blocks.
func (rs *MockRowset) WithReadError(err error, n int) *MockRowset {
	rs.readErr = err
	rs.errAfter = n
	return rs
}

func (rs *MockRowset) ID() uint64       { return rs.id }
func (rs *MockRowset) Version() Version { return rs.version }
func (rs *MockRowset) NumSegments() int { return len(rs.segments) }

func (rs *MockRowset) NumRows() int {
	rows := 0
	for _, seg := range rs.segments {
		rows += seg.Length()
	}
	return rows
}

func (rs *MockRowset) encodeKey(seg *containers.Batch, row int) []byte {
	key := seg.EncodeKey(nil, row, rs.schema.KeyIdxs())
	key, _ = common.TruncateKey(key, rs.keyBoundLen)
	return key
}

func (rs *MockRowset) IsSegmentsOverlapping() bool {
	var prev []byte
	for _, seg := range rs.segments {
		if seg.Length() == 0 {
			continue
		}
		first := rs.encodeKey(seg, 0)
		if prev != nil && !common.LhsStrictlyLess(prev, rs.keyBoundLen > 0, first, rs.keyBoundLen > 0) {
			return true
		}
		prev = rs.encodeKey(seg, seg.Length()-1)
	}
	return false
}

func (rs *MockRowset) FirstKey() ([]byte, bool) {
	for _, seg := range rs.segments {
		if seg.Length() > 0 {
			return rs.encodeKey(seg, 0), true
		}
	}
	return nil, false
}

func (rs *MockRowset) LastKey() ([]byte, bool) {
	for i := len(rs.segments) - 1; i >= 0; i-- {
		if seg := rs.segments[i]; seg.Length() > 0 {
			return rs.encodeKey(seg, seg.Length()-1), true
		}
	}
	return nil, false
}

func (rs *MockRowset) IsSegmentsKeyBoundsTruncated() bool { return rs.keyBoundLen > 0 }

func (rs *MockRowset) NewReader() RowsetReader {
	return &mockRowsetReader{rs: rs}
}

// Split covers every segment of the rowset.
func (rs *MockRowset) Split() RowsetSplit {
	return RowsetSplit{Reader: rs.NewReader()}
}

type mockRowsetReader struct {
	rs     *MockRowset
	rctx   *ReaderContext
	segs   []int
	cursor int
	row    int
	locs   []RowLocation
	blocks int
	inited bool
	closed bool
}

func (r *mockRowsetReader) Rowset() Rowset { return r.rs }

func (r *mockRowsetReader) Init(ctx context.Context, rctx *ReaderContext, split RowsetSplit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rctx == nil || rctx.Schema == nil {
		return errors.AssertionFailedf("rowset %d: reader context without schema", r.rs.id)
	}
	if len(rctx.ReturnColumns) == 0 {
		return errors.AssertionFailedf("rowset %d: no column to read", r.rs.id)
	}
	r.rctx = rctx
	begin, end := split.Segments()
	r.segs = r.segs[:0]
	for i := begin; i < end; i++ {
		r.segs = append(r.segs, i)
	}
	if rctx.Reverse {
		for i, j := 0, len(r.segs)-1; i < j; i, j = i+1, j-1 {
			r.segs[i], r.segs[j] = r.segs[j], r.segs[i]
		}
	}
	r.cursor, r.row, r.blocks = 0, 0, 0
	r.inited = true
	return nil
}

func (r *mockRowsetReader) NextBlock(ctx context.Context, bat *containers.Batch) error {
	if !r.inited || r.closed {
		return errors.AssertionFailedf("rowset %d: reader not open", r.rs.id)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.rs.readErr != nil && r.blocks >= r.rs.errAfter {
		return r.rs.readErr
	}
	if bat.Width() == 0 {
		layout := r.rctx.NewBlock()
		for i, attr := range layout.Attrs {
			bat.AddVector(attr, layout.Vecs[i])
		}
	}
	bat.Reset()
	r.locs = r.locs[:0]
	limit := r.rctx.GetBatchSize()
	for bat.Length() < limit && r.cursor < len(r.segs) {
		segID := r.segs[r.cursor]
		seg := r.rs.segments[segID]
		if r.row >= seg.Length() {
			r.cursor++
			r.row = 0
			continue
		}
		pos := r.row
		if r.rctx.Reverse {
			pos = seg.Length() - 1 - r.row
		}
		for i, colIdx := range r.rctx.ReturnColumns {
			bat.Vecs[i].ExtendFrom(seg.Vecs[colIdx], pos)
		}
		if r.rctx.RecordRowIDs {
			r.locs = append(r.locs, RowLocation{
				RowsetID:  r.rs.id,
				SegmentID: uint32(segID),
				RowID:     int32(pos),
			})
		}
		r.row++
	}
	if bat.Length() == 0 {
		return ErrEOF
	}
	r.blocks++
	return nil
}

func (r *mockRowsetReader) CurrentBlockRowLocations() []RowLocation { return r.locs }

func (r *mockRowsetReader) Clone() RowsetReader {
	return &mockRowsetReader{rs: r.rs}
}

func (r *mockRowsetReader) Close() error {
	r.closed = true
	return nil
}
