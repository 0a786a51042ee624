package containers

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/cockroachdb/errors"
)

type Vector interface {
	GetType() Type
	IsVariableLength() bool
	Length() int

	IsNull(i int) bool
	HasNull() bool
	// HasNullBefore reports whether any of the first n rows is null.
	HasNullBefore(n int) bool
	NullMask() *roaring.Bitmap

	// Get returns nil for a null row. Variable-width values alias the
	// vector's storage.
	Get(i int) any
	Append(v any)
	AppendNull()
	// ExtendFrom appends row of src.
	ExtendFrom(src Vector, row int)
	ExtendWithOffset(src Vector, srcOff, srcLen int)
	// ReplaceAt overwrites dstRow with srcRow of src. Fixed-width only.
	ReplaceAt(src Vector, srcRow, dstRow int)
	// Compare orders row i against row j of o. Nulls sort first.
	Compare(i int, o Vector, j int) int

	Compact(deletes *roaring.Bitmap)
	Resize(n int)
	Reset()
	CloneEmpty() Vector
	String() string
}

type FixedType interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint32 | ~uint64 | ~float64
}

func MakeVector(typ Type) Vector {
	switch typ.Oid {
	case T_int8:
		return NewVector[int8](typ)
	case T_int16:
		return NewVector[int16](typ)
	case T_int32:
		return NewVector[int32](typ)
	case T_int64:
		return NewVector[int64](typ)
	case T_uint8:
		return NewVector[uint8](typ)
	case T_uint32:
		return NewVector[uint32](typ)
	case T_uint64:
		return NewVector[uint64](typ)
	case T_float64:
		return NewVector[float64](typ)
	case T_varchar, T_hll, T_bitmap:
		return NewBytesVector(typ)
	}
	panic(errors.Wrapf(ErrTypeMismatch, "cannot make vector of %s", typ))
}

// Values exposes the backing slice of a fixed-width vector. Entries at null
// positions hold zero values.
func Values[T FixedType](vec Vector) []T {
	v, ok := vec.(*vector[T])
	if !ok {
		panic(errors.Wrapf(ErrTypeMismatch, "%s is not %T", vec.GetType(), *new(T)))
	}
	return v.data
}

type vector[T FixedType] struct {
	typ   Type
	data  []T
	nulls *roaring.Bitmap
}

func NewVector[T FixedType](typ Type) *vector[T] {
	return &vector[T]{typ: typ}
}

func (vec *vector[T]) GetType() Type          { return vec.typ }
func (vec *vector[T]) IsVariableLength() bool { return false }
func (vec *vector[T]) Length() int            { return len(vec.data) }
func (vec *vector[T]) NullMask() *roaring.Bitmap {
	return vec.nulls
}

func (vec *vector[T]) IsNull(i int) bool {
	return vec.nulls != nil && vec.nulls.Contains(uint32(i))
}

func (vec *vector[T]) HasNull() bool {
	return vec.nulls != nil && !vec.nulls.IsEmpty()
}

func (vec *vector[T]) HasNullBefore(n int) bool {
	if !vec.HasNull() || n <= 0 {
		return false
	}
	return vec.nulls.Minimum() < uint32(n)
}

func (vec *vector[T]) setNull(i int, null bool) {
	if null {
		if vec.nulls == nil {
			vec.nulls = roaring.New()
		}
		vec.nulls.Add(uint32(i))
		return
	}
	if vec.nulls != nil {
		vec.nulls.Remove(uint32(i))
	}
}

func (vec *vector[T]) Get(i int) any {
	if vec.IsNull(i) {
		return nil
	}
	return vec.data[i]
}

func (vec *vector[T]) Append(v any) {
	if v == nil {
		vec.AppendNull()
		return
	}
	tv, ok := v.(T)
	if !ok {
		panic(errors.Wrapf(ErrTypeMismatch, "append %T to %s", v, vec.typ))
	}
	vec.data = append(vec.data, tv)
}

func (vec *vector[T]) AppendNull() {
	var zero T
	vec.data = append(vec.data, zero)
	vec.setNull(len(vec.data)-1, true)
}

func (vec *vector[T]) cast(src Vector) *vector[T] {
	o, ok := src.(*vector[T])
	if !ok || !o.typ.Eq(vec.typ) {
		panic(errors.Wrapf(ErrTypeMismatch, "%s from %s", vec.typ, src.GetType()))
	}
	return o
}

func (vec *vector[T]) ExtendFrom(src Vector, row int) {
	o := vec.cast(src)
	vec.data = append(vec.data, o.data[row])
	if o.IsNull(row) {
		vec.setNull(len(vec.data)-1, true)
	}
}

func (vec *vector[T]) ExtendWithOffset(src Vector, srcOff, srcLen int) {
	if srcLen <= 0 {
		return
	}
	o := vec.cast(src)
	base := len(vec.data)
	vec.data = append(vec.data, o.data[srcOff:srcOff+srcLen]...)
	if !o.HasNull() {
		return
	}
	it := o.nulls.Iterator()
	it.AdvanceIfNeeded(uint32(srcOff))
	for it.HasNext() {
		pos := int(it.Next())
		if pos >= srcOff+srcLen {
			break
		}
		vec.setNull(base+pos-srcOff, true)
	}
}

func (vec *vector[T]) ReplaceAt(src Vector, srcRow, dstRow int) {
	o := vec.cast(src)
	vec.data[dstRow] = o.data[srcRow]
	vec.setNull(dstRow, o.IsNull(srcRow))
}

func (vec *vector[T]) Compare(i int, o Vector, j int) int {
	ov := vec.cast(o)
	if c, done := compareNulls(vec.IsNull(i), ov.IsNull(j)); done {
		return c
	}
	l, r := vec.data[i], ov.data[j]
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	}
	return 0
}

func (vec *vector[T]) Compact(deletes *roaring.Bitmap) {
	if deletes == nil || deletes.IsEmpty() {
		return
	}
	kept := vec.data[:0]
	for i, v := range vec.data {
		if deletes.Contains(uint32(i)) {
			continue
		}
		kept = append(kept, v)
	}
	vec.data = kept
	vec.nulls = compactNulls(vec.nulls, deletes)
}

func (vec *vector[T]) Resize(n int) {
	if n <= len(vec.data) {
		vec.data = vec.data[:n]
		if vec.nulls != nil {
			vec.nulls.RemoveRange(uint64(n), math.MaxUint32+1)
		}
		return
	}
	var zero T
	for len(vec.data) < n {
		vec.data = append(vec.data, zero)
	}
}

func (vec *vector[T]) Reset() {
	vec.data = vec.data[:0]
	if vec.nulls != nil {
		vec.nulls.Clear()
	}
}

func (vec *vector[T]) CloneEmpty() Vector {
	return NewVector[T](vec.typ)
}

func (vec *vector[T]) String() string {
	return stringify(vec)
}

type bytesVector struct {
	typ   Type
	area  []byte
	offs  []uint32
	lens  []uint32
	nulls *roaring.Bitmap
}

func NewBytesVector(typ Type) *bytesVector {
	return &bytesVector{typ: typ}
}

func (vec *bytesVector) GetType() Type             { return vec.typ }
func (vec *bytesVector) IsVariableLength() bool    { return true }
func (vec *bytesVector) Length() int               { return len(vec.offs) }
func (vec *bytesVector) NullMask() *roaring.Bitmap { return vec.nulls }

func (vec *bytesVector) IsNull(i int) bool {
	return vec.nulls != nil && vec.nulls.Contains(uint32(i))
}

func (vec *bytesVector) HasNull() bool {
	return vec.nulls != nil && !vec.nulls.IsEmpty()
}

func (vec *bytesVector) HasNullBefore(n int) bool {
	if !vec.HasNull() || n <= 0 {
		return false
	}
	return vec.nulls.Minimum() < uint32(n)
}

func (vec *bytesVector) setNull(i int) {
	if vec.nulls == nil {
		vec.nulls = roaring.New()
	}
	vec.nulls.Add(uint32(i))
}

func (vec *bytesVector) value(i int) []byte {
	off := vec.offs[i]
	return vec.area[off : off+vec.lens[i] : off+vec.lens[i]]
}

func (vec *bytesVector) Get(i int) any {
	if vec.IsNull(i) {
		return nil
	}
	return vec.value(i)
}

func (vec *bytesVector) appendBytes(v []byte) {
	vec.offs = append(vec.offs, uint32(len(vec.area)))
	vec.lens = append(vec.lens, uint32(len(v)))
	vec.area = append(vec.area, v...)
}

func (vec *bytesVector) Append(v any) {
	switch tv := v.(type) {
	case nil:
		vec.AppendNull()
	case []byte:
		vec.appendBytes(tv)
	case string:
		vec.appendBytes([]byte(tv))
	default:
		panic(errors.Wrapf(ErrTypeMismatch, "append %T to %s", v, vec.typ))
	}
}

func (vec *bytesVector) AppendNull() {
	vec.appendBytes(nil)
	vec.setNull(len(vec.offs) - 1)
}

func (vec *bytesVector) cast(src Vector) *bytesVector {
	o, ok := src.(*bytesVector)
	if !ok || !o.typ.Eq(vec.typ) {
		panic(errors.Wrapf(ErrTypeMismatch, "%s from %s", vec.typ, src.GetType()))
	}
	return o
}

func (vec *bytesVector) ExtendFrom(src Vector, row int) {
	o := vec.cast(src)
	if o.IsNull(row) {
		vec.AppendNull()
		return
	}
	vec.appendBytes(o.value(row))
}

func (vec *bytesVector) ExtendWithOffset(src Vector, srcOff, srcLen int) {
	o := vec.cast(src)
	for i := srcOff; i < srcOff+srcLen; i++ {
		vec.ExtendFrom(o, i)
	}
}

func (vec *bytesVector) ReplaceAt(Vector, int, int) {
	panic(errors.AssertionFailedf("replace is not supported by %s vector", vec.typ))
}

func (vec *bytesVector) Compare(i int, o Vector, j int) int {
	ov := vec.cast(o)
	if c, done := compareNulls(vec.IsNull(i), ov.IsNull(j)); done {
		return c
	}
	return bytes.Compare(vec.value(i), ov.value(j))
}

func (vec *bytesVector) Compact(deletes *roaring.Bitmap) {
	if deletes == nil || deletes.IsEmpty() {
		return
	}
	area := make([]byte, 0, len(vec.area))
	offs := vec.offs[:0]
	lens := vec.lens[:0]
	for i := range vec.offs {
		if deletes.Contains(uint32(i)) {
			continue
		}
		v := vec.value(i)
		offs = append(offs, uint32(len(area)))
		lens = append(lens, uint32(len(v)))
		area = append(area, v...)
	}
	vec.area, vec.offs, vec.lens = area, offs, lens
	vec.nulls = compactNulls(vec.nulls, deletes)
}

func (vec *bytesVector) Resize(n int) {
	if n > len(vec.offs) {
		for len(vec.offs) < n {
			vec.appendBytes(nil)
		}
		return
	}
	if n < len(vec.offs) {
		vec.area = vec.area[:vec.offs[n]]
	}
	vec.offs = vec.offs[:n]
	vec.lens = vec.lens[:n]
	if vec.nulls != nil {
		vec.nulls.RemoveRange(uint64(n), math.MaxUint32+1)
	}
}

func (vec *bytesVector) Reset() {
	vec.area = vec.area[:0]
	vec.offs = vec.offs[:0]
	vec.lens = vec.lens[:0]
	if vec.nulls != nil {
		vec.nulls.Clear()
	}
}

func (vec *bytesVector) CloneEmpty() Vector {
	return NewBytesVector(vec.typ)
}

func (vec *bytesVector) String() string {
	return stringify(vec)
}

func compareNulls(lnull, rnull bool) (int, bool) {
	switch {
	case lnull && rnull:
		return 0, true
	case lnull:
		return -1, true
	case rnull:
		return 1, true
	}
	return 0, false
}

// compactNulls shifts the null positions left past the deleted rows.
func compactNulls(nulls, deletes *roaring.Bitmap) *roaring.Bitmap {
	if nulls == nil || nulls.IsEmpty() {
		return nulls
	}
	compacted := roaring.New()
	it := nulls.Iterator()
	for it.HasNext() {
		pos := it.Next()
		if deletes.Contains(pos) {
			continue
		}
		compacted.Add(pos - uint32(deletes.Rank(pos)))
	}
	return compacted
}

func stringify(vec Vector) string {
	var w strings.Builder
	_, _ = fmt.Fprintf(&w, "[%s;%d]:", vec.GetType(), vec.Length())
	limit := vec.Length()
	if limit > 20 {
		limit = 20
	}
	for i := 0; i < limit; i++ {
		v := vec.Get(i)
		switch tv := v.(type) {
		case nil:
			_, _ = w.WriteString(" null")
		case []byte:
			_, _ = fmt.Fprintf(&w, " %q", tv)
		default:
			_, _ = fmt.Fprintf(&w, " %v", tv)
		}
	}
	if limit < vec.Length() {
		_, _ = w.WriteString(" ...")
	}
	return w.String()
}
