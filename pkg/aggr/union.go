package aggr

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/axiomhq/hyperloglog"
	"github.com/cockroachdb/errors"

	"olapscan/pkg/common"
	"olapscan/pkg/containers"
)

type bitmapUnionState struct {
	bm  *roaring.Bitmap
	tmp *roaring.Bitmap
}

// bitmapUnion ORs serialized roaring bitmaps.
type bitmapUnion struct {
	typ containers.Type
}

func newBitmapUnion(typ containers.Type) Function {
	if typ.Oid != containers.T_bitmap {
		return nil
	}
	return &bitmapUnion{typ: typ}
}

func (f *bitmapUnion) Name() string                { return "bitmap_union" }
func (f *bitmapUnion) ReturnType() containers.Type { return f.typ }
func (f *bitmapUnion) CreateState() State {
	return &bitmapUnionState{bm: roaring.New(), tmp: roaring.New()}
}

func (f *bitmapUnion) AddBatchRange(state State, begin, end int, col containers.Vector, _ *common.Arena, hasNull bool) error {
	s := state.(*bitmapUnionState)
	for i := begin; i < end; i++ {
		if hasNull && col.IsNull(i) {
			continue
		}
		s.tmp.Clear()
		if err := s.tmp.UnmarshalBinary(col.Get(i).([]byte)); err != nil {
			return errors.Mark(errors.Wrapf(err, "bitmap at row %d", i), ErrBadState)
		}
		s.bm.Or(s.tmp)
	}
	return nil
}

func (f *bitmapUnion) InsertResultInto(state State, dst containers.Vector) error {
	buf, err := state.(*bitmapUnionState).bm.ToBytes()
	if err != nil {
		return errors.Mark(err, ErrBadState)
	}
	dst.Append(buf)
	return nil
}

func (f *bitmapUnion) Reset(state State) {
	state.(*bitmapUnionState).bm.Clear()
}

func (f *bitmapUnion) Destroy(state State) {
	s := state.(*bitmapUnionState)
	s.bm, s.tmp = nil, nil
}

type hllUnionState struct {
	sk *hyperloglog.Sketch
}

// hllUnion merges serialized HyperLogLog sketches.
type hllUnion struct {
	typ containers.Type
}

func newHLLUnion(typ containers.Type) Function {
	if typ.Oid != containers.T_hll {
		return nil
	}
	return &hllUnion{typ: typ}
}

func (f *hllUnion) Name() string                { return "hll_union" }
func (f *hllUnion) ReturnType() containers.Type { return f.typ }
func (f *hllUnion) CreateState() State          { return &hllUnionState{sk: hyperloglog.New()} }

func (f *hllUnion) AddBatchRange(state State, begin, end int, col containers.Vector, _ *common.Arena, hasNull bool) error {
	s := state.(*hllUnionState)
	for i := begin; i < end; i++ {
		if hasNull && col.IsNull(i) {
			continue
		}
		other := hyperloglog.New()
		if err := other.UnmarshalBinary(col.Get(i).([]byte)); err != nil {
			return errors.Mark(errors.Wrapf(err, "hll at row %d", i), ErrBadState)
		}
		if err := s.sk.Merge(other); err != nil {
			return errors.Mark(err, ErrBadState)
		}
	}
	return nil
}

func (f *hllUnion) InsertResultInto(state State, dst containers.Vector) error {
	buf, err := state.(*hllUnionState).sk.MarshalBinary()
	if err != nil {
		return errors.Mark(err, ErrBadState)
	}
	dst.Append(buf)
	return nil
}

func (f *hllUnion) Reset(state State) {
	state.(*hllUnionState).sk = hyperloglog.New()
}

func (f *hllUnion) Destroy(state State) {
	state.(*hllUnionState).sk = nil
}
