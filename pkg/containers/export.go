package containers

import (
	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/cockroachdb/errors"
	gbat "github.com/matrixorigin/matrixone/pkg/container/batch"
	"github.com/matrixorigin/matrixone/pkg/container/nulls"
	"github.com/matrixorigin/matrixone/pkg/container/types"
	gvec "github.com/matrixorigin/matrixone/pkg/container/vector"
)

// ExportBatch copies bat into a matrixone container batch. HLL and bitmap
// states travel as varchar. The result shares no memory with bat.
func ExportBatch(bat *Batch) (*gbat.Batch, error) {
	out := &gbat.Batch{
		Attrs: append([]string(nil), bat.Attrs...),
		Vecs:  make([]*gvec.Vector, len(bat.Vecs)),
	}
	for i, vec := range bat.Vecs {
		ovec, err := ExportVector(vec)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", bat.Attrs[i])
		}
		out.Vecs[i] = ovec
	}
	return out, nil
}

func exportFixed[T FixedType](vec Vector) []T {
	return append([]T(nil), Values[T](vec)...)
}

func ExportVector(vec Vector) (*gvec.Vector, error) {
	ovec := &gvec.Vector{}
	switch vec.GetType().Oid {
	case T_int8:
		ovec.Typ.Oid = types.T_int8
		ovec.Col = exportFixed[int8](vec)
	case T_int16:
		ovec.Typ.Oid = types.T_int16
		ovec.Col = exportFixed[int16](vec)
	case T_int32:
		ovec.Typ.Oid = types.T_int32
		ovec.Col = exportFixed[int32](vec)
	case T_int64:
		ovec.Typ.Oid = types.T_int64
		ovec.Col = exportFixed[int64](vec)
	case T_uint8:
		ovec.Typ.Oid = types.T_uint8
		ovec.Col = exportFixed[uint8](vec)
	case T_uint32:
		ovec.Typ.Oid = types.T_uint32
		ovec.Col = exportFixed[uint32](vec)
	case T_uint64:
		ovec.Typ.Oid = types.T_uint64
		ovec.Col = exportFixed[uint64](vec)
	case T_float64:
		ovec.Typ.Oid = types.T_float64
		ovec.Col = exportFixed[float64](vec)
	case T_varchar, T_hll, T_bitmap:
		ovec.Typ.Oid = types.T_varchar
		col := &types.Bytes{
			Data:    make([]byte, 0),
			Offsets: make([]uint32, 0, vec.Length()),
			Lengths: make([]uint32, 0, vec.Length()),
		}
		for i := 0; i < vec.Length(); i++ {
			var v []byte
			if !vec.IsNull(i) {
				v = vec.Get(i).([]byte)
			}
			col.Offsets = append(col.Offsets, uint32(len(col.Data)))
			col.Data = append(col.Data, v...)
			col.Lengths = append(col.Lengths, uint32(len(v)))
		}
		ovec.Col = col
	default:
		return nil, errors.Wrapf(ErrTypeMismatch, "%s has no matrixone counterpart", vec.GetType())
	}
	ovec.Nsp = &nulls.Nulls{}
	if mask := vec.NullMask(); mask != nil && !mask.IsEmpty() {
		ovec.Nsp.Np = &roaring64.Bitmap{}
		it := mask.Iterator()
		for it.HasNext() {
			ovec.Nsp.Np.Add(uint64(it.Next()))
		}
	}
	return ovec, nil
}
