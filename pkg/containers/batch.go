package containers

import (
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/cockroachdb/errors"

	"olapscan/pkg/common"
)

// Batch is an ordered set of equally long named columns. It also carries
// one "same key as previous row" bit per row, set by producers that detect
// duplicate keys while filling it.
type Batch struct {
	Attrs   []string
	Vecs    []Vector
	Nameidx map[string]int
	same    *roaring.Bitmap
}

func NewBatch() *Batch {
	return &Batch{
		Attrs:   make([]string, 0),
		Vecs:    make([]Vector, 0),
		Nameidx: make(map[string]int),
	}
}

func BuildBatch(attrs []string, typs []Type) *Batch {
	bat := NewBatch()
	for i, attr := range attrs {
		bat.AddVector(attr, MakeVector(typs[i]))
	}
	return bat
}

func (bat *Batch) AddVector(attr string, vec Vector) {
	if _, exist := bat.Nameidx[attr]; exist {
		panic(fmt.Sprintf("duplicate vector %s", attr))
	}
	bat.Nameidx[attr] = len(bat.Vecs)
	bat.Attrs = append(bat.Attrs, attr)
	bat.Vecs = append(bat.Vecs, vec)
}

func (bat *Batch) RemoveVector(attr string) (Vector, error) {
	idx, ok := bat.Nameidx[attr]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "remove %s", attr)
	}
	vec := bat.Vecs[idx]
	bat.Attrs = append(bat.Attrs[:idx], bat.Attrs[idx+1:]...)
	bat.Vecs = append(bat.Vecs[:idx], bat.Vecs[idx+1:]...)
	delete(bat.Nameidx, attr)
	for i := idx; i < len(bat.Attrs); i++ {
		bat.Nameidx[bat.Attrs[i]] = i
	}
	return vec, nil
}

func (bat *Batch) GetVectorByName(attr string) Vector {
	idx, ok := bat.Nameidx[attr]
	if !ok {
		return nil
	}
	return bat.Vecs[idx]
}

func (bat *Batch) Length() int {
	if len(bat.Vecs) == 0 {
		return 0
	}
	return bat.Vecs[0].Length()
}

func (bat *Batch) Width() int { return len(bat.Vecs) }

func (bat *Batch) SetSameBit(row int) {
	if bat.same == nil {
		bat.same = roaring.New()
	}
	bat.same.Add(uint32(row))
}

func (bat *Batch) GetSameBit(row int) bool {
	return bat.same != nil && bat.same.Contains(uint32(row))
}

func (bat *Batch) ClearSameBits() {
	if bat.same != nil {
		bat.same.Clear()
	}
}

func (bat *Batch) Reset() {
	for _, vec := range bat.Vecs {
		vec.Reset()
	}
	bat.ClearSameBits()
}

// Compact removes the rows set in deletes from every column.
func (bat *Batch) Compact(deletes *roaring.Bitmap) {
	for _, vec := range bat.Vecs {
		vec.Compact(deletes)
	}
	bat.ClearSameBits()
}

// EncodeKey appends the order-preserving encoding of the given columns of
// row to buf.
func (bat *Batch) EncodeKey(buf []byte, row int, cols []int) []byte {
	for _, idx := range cols {
		vec := bat.Vecs[idx]
		if vec.IsNull(row) {
			buf = common.EncodeNull(buf)
			continue
		}
		buf = common.EncodeNotNull(buf)
		switch v := vec.Get(row).(type) {
		case int8:
			buf = common.EncodeInt64(buf, int64(v))
		case int16:
			buf = common.EncodeInt64(buf, int64(v))
		case int32:
			buf = common.EncodeInt64(buf, int64(v))
		case int64:
			buf = common.EncodeInt64(buf, v)
		case uint8:
			buf = common.EncodeUint64(buf, uint64(v))
		case uint32:
			buf = common.EncodeUint64(buf, uint64(v))
		case uint64:
			buf = common.EncodeUint64(buf, v)
		case float64:
			buf = common.EncodeFloat64(buf, v)
		case []byte:
			buf = common.EncodeBytes(buf, v)
		}
	}
	return buf
}

// CompareRows orders row i of lhs against row j of rhs on the given columns.
func CompareRows(lhs *Batch, i int, rhs *Batch, j int, cols []int) int {
	for _, idx := range cols {
		if c := lhs.Vecs[idx].Compare(i, rhs.Vecs[idx], j); c != 0 {
			return c
		}
	}
	return 0
}

func (bat *Batch) String() string {
	var w strings.Builder
	_, _ = fmt.Fprintf(&w, "Batch[rows=%d]", bat.Length())
	for i, attr := range bat.Attrs {
		_, _ = fmt.Fprintf(&w, "\n  %s %s", attr, bat.Vecs[i].String())
	}
	return w.String()
}
