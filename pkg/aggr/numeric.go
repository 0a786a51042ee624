package aggr

import (
	"bytes"

	"olapscan/pkg/common"
	"olapscan/pkg/containers"
)

type sumState[T containers.FixedType] struct {
	sum   T
	valid bool
}

type sum[T containers.FixedType] struct {
	typ containers.Type
}

func newSum(typ containers.Type) Function {
	switch typ.Oid {
	case containers.T_int8:
		return &sum[int8]{typ: typ}
	case containers.T_int16:
		return &sum[int16]{typ: typ}
	case containers.T_int32:
		return &sum[int32]{typ: typ}
	case containers.T_int64:
		return &sum[int64]{typ: typ}
	case containers.T_uint8:
		return &sum[uint8]{typ: typ}
	case containers.T_uint32:
		return &sum[uint32]{typ: typ}
	case containers.T_uint64:
		return &sum[uint64]{typ: typ}
	case containers.T_float64:
		return &sum[float64]{typ: typ}
	}
	return nil
}

func (f *sum[T]) Name() string                { return "sum" }
func (f *sum[T]) ReturnType() containers.Type { return f.typ }
func (f *sum[T]) CreateState() State          { return &sumState[T]{} }

func (f *sum[T]) AddBatchRange(state State, begin, end int, col containers.Vector, _ *common.Arena, hasNull bool) error {
	s := state.(*sumState[T])
	vals := containers.Values[T](col)
	for i := begin; i < end; i++ {
		if hasNull && col.IsNull(i) {
			continue
		}
		s.sum += vals[i]
		s.valid = true
	}
	return nil
}

func (f *sum[T]) InsertResultInto(state State, dst containers.Vector) error {
	s := state.(*sumState[T])
	if !s.valid {
		dst.AppendNull()
		return nil
	}
	dst.Append(s.sum)
	return nil
}

func (f *sum[T]) Reset(state State) {
	*state.(*sumState[T]) = sumState[T]{}
}

func (f *sum[T]) Destroy(state State) { f.Reset(state) }

type minMaxState[T containers.FixedType] struct {
	v     T
	valid bool
}

type minMax[T containers.FixedType] struct {
	typ   containers.Type
	isMax bool
}

func newMinMax(typ containers.Type, isMax bool) Function {
	switch typ.Oid {
	case containers.T_int8:
		return &minMax[int8]{typ: typ, isMax: isMax}
	case containers.T_int16:
		return &minMax[int16]{typ: typ, isMax: isMax}
	case containers.T_int32:
		return &minMax[int32]{typ: typ, isMax: isMax}
	case containers.T_int64:
		return &minMax[int64]{typ: typ, isMax: isMax}
	case containers.T_uint8:
		return &minMax[uint8]{typ: typ, isMax: isMax}
	case containers.T_uint32:
		return &minMax[uint32]{typ: typ, isMax: isMax}
	case containers.T_uint64:
		return &minMax[uint64]{typ: typ, isMax: isMax}
	case containers.T_float64:
		return &minMax[float64]{typ: typ, isMax: isMax}
	case containers.T_varchar:
		return &bytesMinMax{typ: typ, isMax: isMax}
	}
	return nil
}

func newMin(typ containers.Type) Function { return newMinMax(typ, false) }
func newMax(typ containers.Type) Function { return newMinMax(typ, true) }

func (f *minMax[T]) Name() string {
	if f.isMax {
		return "max"
	}
	return "min"
}
func (f *minMax[T]) ReturnType() containers.Type { return f.typ }
func (f *minMax[T]) CreateState() State          { return &minMaxState[T]{} }

func (f *minMax[T]) AddBatchRange(state State, begin, end int, col containers.Vector, _ *common.Arena, hasNull bool) error {
	s := state.(*minMaxState[T])
	vals := containers.Values[T](col)
	for i := begin; i < end; i++ {
		if hasNull && col.IsNull(i) {
			continue
		}
		v := vals[i]
		if !s.valid || (f.isMax && v > s.v) || (!f.isMax && v < s.v) {
			s.v = v
			s.valid = true
		}
	}
	return nil
}

func (f *minMax[T]) InsertResultInto(state State, dst containers.Vector) error {
	s := state.(*minMaxState[T])
	if !s.valid {
		dst.AppendNull()
		return nil
	}
	dst.Append(s.v)
	return nil
}

func (f *minMax[T]) Reset(state State) {
	*state.(*minMaxState[T]) = minMaxState[T]{}
}

func (f *minMax[T]) Destroy(state State) { f.Reset(state) }

type bytesMinMaxState struct {
	v     []byte
	valid bool
}

type bytesMinMax struct {
	typ   containers.Type
	isMax bool
}

func (f *bytesMinMax) Name() string {
	if f.isMax {
		return "max"
	}
	return "min"
}
func (f *bytesMinMax) ReturnType() containers.Type { return f.typ }
func (f *bytesMinMax) CreateState() State          { return &bytesMinMaxState{} }

func (f *bytesMinMax) AddBatchRange(state State, begin, end int, col containers.Vector, arena *common.Arena, hasNull bool) error {
	s := state.(*bytesMinMaxState)
	for i := begin; i < end; i++ {
		if hasNull && col.IsNull(i) {
			continue
		}
		v := col.Get(i).([]byte)
		if !s.valid {
			s.v, s.valid = arena.Copy(v), true
			continue
		}
		c := bytes.Compare(v, s.v)
		if (f.isMax && c > 0) || (!f.isMax && c < 0) {
			// col is scratch storage, keep our own copy
			s.v = arena.Copy(v)
		}
	}
	return nil
}

func (f *bytesMinMax) InsertResultInto(state State, dst containers.Vector) error {
	s := state.(*bytesMinMaxState)
	if !s.valid {
		dst.AppendNull()
		return nil
	}
	dst.Append(s.v)
	return nil
}

func (f *bytesMinMax) Reset(state State) {
	*state.(*bytesMinMaxState) = bytesMinMaxState{}
}

func (f *bytesMinMax) Destroy(state State) { f.Reset(state) }
