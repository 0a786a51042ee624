package iter

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"olapscan/pkg/catalog"
	"olapscan/pkg/containers"
	"olapscan/pkg/dataio"
)

type kv struct {
	k int32
	v int64
}

func mockRowset(schema *catalog.Schema, id uint64, version int64, rows ...kv) *dataio.MockRowset {
	vals := make([][]any, 0, len(rows))
	for _, row := range rows {
		vals = append(vals, []any{row.k, row.v})
	}
	return dataio.NewMockRowset(id, dataio.Version{Start: version, End: version}, schema,
		dataio.MockSegment(schema, vals...))
}

func newTestContext(schema *catalog.Schema, batchSize int) *dataio.ReaderContext {
	return &dataio.ReaderContext{
		Schema:        schema,
		ReturnColumns: []int{0, 1},
		KeyColumns:    []int{0},
		BatchSize:     batchSize,
		RecordRowIDs:  true,
	}
}

func buildIterator(t *testing.T, rctx *dataio.ReaderContext, merge, skipSame, markSame bool, rowsets ...*dataio.MockRowset) *CollectIterator {
	ctx := context.Background()
	it := NewCollectIterator(rctx)
	it.Init(merge, rctx.Reverse, skipSame, markSame)
	for _, rs := range rowsets {
		split := rs.Split()
		require.NoError(t, split.Reader.Init(ctx, rctx, split))
		it.AddChild(split.Reader)
	}
	err := it.BuildHeap(ctx)
	if err != nil {
		require.True(t, errors.Is(err, dataio.ErrEOF))
	}
	return it
}

// drain pulls every row and returns (k, v, same) triples.
func drain(t *testing.T, it *CollectIterator) (rows []kv, same []bool) {
	ctx := context.Background()
	var ref RowRef
	err := it.CurrentRow(&ref)
	for err == nil {
		rows = append(rows, kv{
			k: ref.Block.Vecs[0].Get(ref.RowPos).(int32),
			v: ref.Block.Vecs[1].Get(ref.RowPos).(int64),
		})
		same = append(same, ref.IsSame || ref.Block.GetSameBit(ref.RowPos))
		err = it.Next(ctx, &ref)
	}
	require.True(t, errors.Is(err, dataio.ErrEOF))
	assert.False(t, ref.IsValid())
	return
}

func TestFlatNextBlock(t *testing.T) {
	ctx := context.Background()
	schema := catalog.MockSchema(catalog.DupKeys, "v")
	rctx := newTestContext(schema, 3)
	it := buildIterator(t, rctx, false, false, false,
		mockRowset(schema, 1, 1, kv{1, 1}, kv{2, 2}, kv{3, 3}, kv{4, 4}),
		mockRowset(schema, 2, 2, kv{5, 5}, kv{6, 6}),
	)
	defer it.Close()
	assert.False(t, it.IsMerge())
	assert.Equal(t, 2, it.NumChildren())

	var sizes []int
	var keys []int32
	var locs []dataio.RowLocation
	for {
		dst := rctx.NewBlock()
		err := it.NextBlock(ctx, dst, []int{0, 1})
		if errors.Is(err, dataio.ErrEOF) {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, dst.Length())
		keys = append(keys, containers.Values[int32](dst.Vecs[0])...)
		locs = it.CurrentBlockRowLocations(locs)
	}
	assert.Equal(t, []int{3, 1, 2}, sizes)
	assert.Equal(t, []int32{1, 2, 3, 4, 5, 6}, keys)
	require.Len(t, locs, 6)
	assert.Equal(t, uint64(2), locs[5].RowsetID)
	assert.Equal(t, int32(1), locs[5].RowID)
}

func TestMergeOrder(t *testing.T) {
	schema := catalog.MockSchema(catalog.DupKeys, "v")
	rctx := newTestContext(schema, 2)
	it := buildIterator(t, rctx, true, false, false,
		mockRowset(schema, 1, 1, kv{1, 10}, kv{5, 50}, kv{9, 90}),
		mockRowset(schema, 2, 2, kv{2, 21}, kv{5, 51}, kv{7, 71}),
	)
	defer it.Close()
	assert.True(t, it.IsMerge())
	rows, _ := drain(t, it)
	assert.Equal(t, []kv{{1, 10}, {2, 21}, {5, 51}, {5, 50}, {7, 71}, {9, 90}}, rows)
}

func TestMergeSkipSame(t *testing.T) {
	schema := catalog.MockSchema(catalog.UniqueKeys, "v")
	rctx := newTestContext(schema, 2)
	it := buildIterator(t, rctx, true, true, false,
		mockRowset(schema, 1, 1, kv{1, 10}, kv{5, 50}),
		mockRowset(schema, 2, 3, kv{5, 53}),
		mockRowset(schema, 3, 2, kv{3, 32}, kv{5, 52}, kv{8, 82}),
	)
	defer it.Close()
	rows, same := drain(t, it)
	assert.Equal(t, []kv{{1, 10}, {3, 32}, {5, 53}, {8, 82}}, rows)
	assert.Equal(t, []bool{false, false, false, false}, same)
	assert.Equal(t, int64(2), it.MergedRows())
}

func TestMergeMarkSame(t *testing.T) {
	schema := catalog.MockSchema(catalog.AggKeys, "v")
	// batch size 1 forces a block refill after every row
	rctx := newTestContext(schema, 1)
	it := buildIterator(t, rctx, true, false, true,
		mockRowset(schema, 1, 1, kv{1, 1}, kv{1, 2}, kv{2, 3}),
		mockRowset(schema, 2, 2, kv{1, 4}, kv{3, 5}),
	)
	defer it.Close()
	rows, same := drain(t, it)
	assert.Equal(t, []kv{{1, 4}, {1, 1}, {1, 2}, {2, 3}, {3, 5}}, rows)
	assert.Equal(t, []bool{false, true, true, false, false}, same)
}

func TestFlatMarkAndSkipSame(t *testing.T) {
	schema := catalog.MockSchema(catalog.AggKeys, "v")
	data := []kv{{1, 1}, {1, 2}, {1, 3}, {2, 4}, {2, 5}}

	rctx := newTestContext(schema, 2)
	it := buildIterator(t, rctx, false, false, true, mockRowset(schema, 1, 1, data...))
	rows, same := drain(t, it)
	assert.Equal(t, data, rows)
	assert.Equal(t, []bool{false, true, true, false, true}, same)
	assert.NoError(t, it.Close())

	rctx = newTestContext(schema, 2)
	it = buildIterator(t, rctx, false, true, false, mockRowset(schema, 1, 1, data...))
	rows, _ = drain(t, it)
	assert.Equal(t, []kv{{1, 1}, {2, 4}}, rows)
	assert.Equal(t, int64(3), it.MergedRows())
	assert.NoError(t, it.Close())
}

func TestMergeReverse(t *testing.T) {
	ctx := context.Background()
	schema := catalog.MockSchema(catalog.DupKeys, "v")
	rctx := newTestContext(schema, 4)
	rctx.Reverse = true
	it := buildIterator(t, rctx, true, false, false,
		mockRowset(schema, 1, 1, kv{1, 1}, kv{4, 4}),
		mockRowset(schema, 2, 2, kv{2, 2}, kv{3, 3}, kv{5, 5}),
	)
	defer it.Close()
	// keys only
	dst := containers.BuildBatch([]string{"k"}, []containers.Type{containers.T_int32.ToType()})
	require.NoError(t, it.NextBlock(ctx, dst, []int{0, -1}))
	assert.Equal(t, 1, dst.Width())
	assert.Equal(t, []int32{5, 4, 3, 2}, containers.Values[int32](dst.Vecs[0]))
	locs := it.CurrentBlockRowLocations(nil)
	assert.Len(t, locs, 4)
	assert.Equal(t, uint64(2), locs[0].RowsetID)

	full := rctx.NewBlock()
	require.NoError(t, it.NextBlock(ctx, full, []int{0, 1}))
	assert.Equal(t, 1, full.Length())
	assert.Equal(t, int32(1), full.Vecs[0].Get(0))
	assert.True(t, errors.Is(it.NextBlock(ctx, full, []int{0, 1}), dataio.ErrEOF))
}

func TestFlatReverse(t *testing.T) {
	schema := catalog.MockSchema(catalog.DupKeys, "v")
	rctx := newTestContext(schema, 8)
	rctx.Reverse = true
	it := buildIterator(t, rctx, false, false, false,
		mockRowset(schema, 1, 1, kv{1, 1}, kv{2, 2}),
		mockRowset(schema, 2, 2, kv{3, 3}, kv{4, 4}),
	)
	defer it.Close()
	rows, _ := drain(t, it)
	assert.Equal(t, []kv{{4, 4}, {3, 3}, {2, 2}, {1, 1}}, rows)
}

func TestEmptyAndErrors(t *testing.T) {
	ctx := context.Background()
	schema := catalog.MockSchema(catalog.DupKeys, "v")
	rctx := newTestContext(schema, 2)
	it := buildIterator(t, rctx, true, false, false, mockRowset(schema, 1, 1))
	var ref RowRef
	assert.True(t, errors.Is(it.CurrentRow(&ref), dataio.ErrEOF))
	assert.True(t, errors.Is(it.Next(ctx, &ref), dataio.ErrEOF))
	assert.Equal(t, dataio.InvalidRowID, it.CurrentRowLocation().RowID)

	ioErr := errors.New("read failed")
	rs := mockRowset(schema, 2, 1, kv{1, 1}, kv{2, 2}, kv{3, 3}).WithReadError(ioErr, 1)
	it = buildIterator(t, rctx, true, false, false, rs)
	require.NoError(t, it.CurrentRow(&ref))
	require.NoError(t, it.Next(ctx, &ref))
	assert.Equal(t, uint32(0), it.CurrentRowLocation().SegmentID)
	assert.Equal(t, int32(1), it.CurrentRowLocation().RowID)
	assert.True(t, errors.Is(it.Next(ctx, &ref), ioErr))
}

func TestSegmentChildrenPreferLaterSegment(t *testing.T) {
	ctx := context.Background()
	schema := catalog.MockSchema(catalog.UniqueKeys, "v")
	rctx := newTestContext(schema, 4)
	rs := dataio.NewMockRowset(1, dataio.Version{Start: 2, End: 2}, schema,
		dataio.MockSegment(schema, []any{int32(1), int64(10)}, []any{int32(2), int64(20)}),
		dataio.MockSegment(schema, []any{int32(2), int64(21)}, []any{int32(3), int64(31)}),
	)
	it := NewCollectIterator(rctx)
	it.Init(true, false, true, false)
	base := rs.Split()
	for seg := 0; seg < 2; seg++ {
		rd := base.Reader
		if seg > 0 {
			rd = base.Reader.Clone()
		}
		require.NoError(t, rd.Init(ctx, rctx, dataio.RowsetSplit{Reader: rd, SegmentOffsets: [2]int{seg, seg + 1}}))
		it.AddSegmentChild(rd, seg)
	}
	require.NoError(t, it.BuildHeap(ctx))
	rows, _ := drain(t, it)
	assert.Equal(t, []kv{{1, 10}, {2, 21}, {3, 31}}, rows)
	assert.Equal(t, int64(1), it.MergedRows())
	require.NoError(t, it.Close())
}
