package aggr

import (
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/axiomhq/hyperloglog"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"olapscan/pkg/catalog"
	"olapscan/pkg/common"
	"olapscan/pkg/containers"
)

func mustGet(t *testing.T, agg catalog.AggType, oid containers.T) Function {
	fn, err := Get(agg, oid.ToType(), CurrentExecVersion)
	require.NoError(t, err)
	return fn
}

func TestRegistry(t *testing.T) {
	_, err := Get(catalog.AggSum, containers.T_varchar.ToType(), CurrentExecVersion)
	assert.True(t, errors.Is(err, ErrFunctionNotFound))
	_, err = Get(catalog.AggNone, containers.T_int64.ToType(), CurrentExecVersion)
	assert.True(t, errors.Is(err, ErrFunctionNotFound))
	_, err = Get(catalog.AggSum, containers.T_int64.ToType(), CurrentExecVersion+1)
	assert.True(t, errors.Is(err, ErrFunctionNotFound))
	_, err = Get(catalog.AggHLLUnion, containers.T_hll.ToType(), 0)
	assert.True(t, errors.Is(err, ErrFunctionNotFound))
	t.Log(err)

	fn, err := Get(catalog.AggHLLUnion, containers.T_hll.ToType(), 1)
	require.NoError(t, err)
	assert.Equal(t, "hll_union", fn.Name())
	assert.Equal(t, "max", mustGet(t, catalog.AggMax, containers.T_varchar).Name())
}

func TestSum(t *testing.T) {
	fn := mustGet(t, catalog.AggSum, containers.T_int64)
	arena := common.NewArena(0)
	col := containers.MockVector(containers.T_int64.ToType(), int64(1), int64(2), nil, int64(4), int64(8))
	state := fn.CreateState()

	// one run split over two calls equals the run in one call
	require.NoError(t, fn.AddBatchRange(state, 0, 2, col, arena, col.HasNullBefore(2)))
	require.NoError(t, fn.AddBatchRange(state, 2, 5, col, arena, col.HasNullBefore(5)))
	out := containers.MakeVector(fn.ReturnType())
	require.NoError(t, fn.InsertResultInto(state, out))
	fn.Reset(state)

	require.NoError(t, fn.AddBatchRange(state, 0, 5, col, arena, true))
	require.NoError(t, fn.InsertResultInto(state, out))
	fn.Reset(state)

	require.NoError(t, fn.AddBatchRange(state, 2, 3, col, arena, true))
	require.NoError(t, fn.InsertResultInto(state, out))
	fn.Destroy(state)

	assert.Equal(t, int64(15), out.Get(0))
	assert.Equal(t, int64(15), out.Get(1))
	assert.True(t, out.IsNull(2))
}

func TestMinMax(t *testing.T) {
	arena := common.NewArena(0)
	col := containers.MockVector(containers.T_int32.ToType(), int32(5), nil, int32(-3), int32(9))
	for _, tc := range []struct {
		agg  catalog.AggType
		want int32
	}{{catalog.AggMin, -3}, {catalog.AggMax, 9}} {
		fn := mustGet(t, tc.agg, containers.T_int32)
		state := fn.CreateState()
		require.NoError(t, fn.AddBatchRange(state, 0, 4, col, arena, true))
		out := containers.MakeVector(fn.ReturnType())
		require.NoError(t, fn.InsertResultInto(state, out))
		assert.Equal(t, tc.want, out.Get(0))
	}

	fn := mustGet(t, catalog.AggMax, containers.T_varchar)
	state := fn.CreateState()
	scol := containers.MockVector(containers.T_varchar.ToType(), "abc", "abd", nil)
	require.NoError(t, fn.AddBatchRange(state, 0, 3, scol, arena, true))
	// state must not alias the column it read from
	scol.Reset()
	scol.Append("zzz")
	out := containers.MakeVector(fn.ReturnType())
	require.NoError(t, fn.InsertResultInto(state, out))
	assert.Equal(t, []byte("abd"), out.Get(0))
	assert.True(t, arena.Size() > 0)
}

func TestReplace(t *testing.T) {
	arena := common.NewArena(0)
	col := containers.MockVector(containers.T_varchar.ToType(), nil, "new", "old")

	fn := mustGet(t, catalog.AggReplace, containers.T_varchar)
	state := fn.CreateState()
	require.NoError(t, fn.AddBatchRange(state, 0, 3, col, arena, true))
	out := containers.MakeVector(fn.ReturnType())
	require.NoError(t, fn.InsertResultInto(state, out))
	assert.True(t, out.IsNull(0))

	fn = mustGet(t, catalog.AggReplaceIfNotNull, containers.T_varchar)
	state = fn.CreateState()
	require.NoError(t, fn.AddBatchRange(state, 0, 1, col, arena, true))
	require.NoError(t, fn.AddBatchRange(state, 1, 3, col, arena, true))
	require.NoError(t, fn.InsertResultInto(state, out))
	assert.Equal(t, []byte("new"), out.Get(1))

	icol := containers.MockVector(containers.T_int8.ToType(), int8(1), int8(0))
	fn = mustGet(t, catalog.AggReplace, containers.T_int8)
	state = fn.CreateState()
	require.NoError(t, fn.AddBatchRange(state, 0, 2, icol, arena, false))
	iout := containers.MakeVector(fn.ReturnType())
	require.NoError(t, fn.InsertResultInto(state, iout))
	assert.Equal(t, int8(1), iout.Get(0))
}

func TestBitmapUnion(t *testing.T) {
	col := containers.MakeVector(containers.T_bitmap.ToType())
	for _, vals := range [][]uint32{{1, 2}, {2, 3}, {100}} {
		buf, err := roaring.BitmapOf(vals...).ToBytes()
		require.NoError(t, err)
		col.Append(buf)
	}
	col.AppendNull()

	fn := mustGet(t, catalog.AggBitmapUnion, containers.T_bitmap)
	state := fn.CreateState()
	require.NoError(t, fn.AddBatchRange(state, 0, 4, col, nil, true))
	out := containers.MakeVector(fn.ReturnType())
	require.NoError(t, fn.InsertResultInto(state, out))

	bm := roaring.New()
	require.NoError(t, bm.UnmarshalBinary(out.Get(0).([]byte)))
	assert.Equal(t, []uint32{1, 2, 3, 100}, bm.ToArray())

	bad := containers.MockVector(containers.T_bitmap.ToType(), []byte{1, 2, 3})
	err := fn.AddBatchRange(state, 0, 1, bad, nil, false)
	assert.True(t, errors.Is(err, ErrBadState))
	fn.Destroy(state)
}

func TestHLLUnion(t *testing.T) {
	col := containers.MakeVector(containers.T_hll.ToType())
	for _, items := range [][]string{{"a", "b"}, {"b", "c"}, {"d"}} {
		sk := hyperloglog.New()
		for _, item := range items {
			sk.Insert([]byte(item))
		}
		buf, err := sk.MarshalBinary()
		require.NoError(t, err)
		col.Append(buf)
	}

	fn := mustGet(t, catalog.AggHLLUnion, containers.T_hll)
	state := fn.CreateState()
	require.NoError(t, fn.AddBatchRange(state, 0, 3, col, nil, false))
	out := containers.MakeVector(fn.ReturnType())
	require.NoError(t, fn.InsertResultInto(state, out))

	merged := hyperloglog.New()
	require.NoError(t, merged.UnmarshalBinary(out.Get(0).([]byte)))
	assert.InDelta(t, 4, float64(merged.Estimate()), 0.5)

	fn.Reset(state)
	require.NoError(t, fn.InsertResultInto(state, out))
	empty := hyperloglog.New()
	require.NoError(t, empty.UnmarshalBinary(out.Get(1).([]byte)))
	assert.Equal(t, uint64(0), empty.Estimate())
}
