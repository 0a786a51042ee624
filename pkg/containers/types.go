package containers

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrTypeMismatch = errors.New("olapscan: column type mismatch")
	ErrNotFound     = errors.New("olapscan: column not found")
)

type T uint8

const (
	T_any T = iota
	T_int8
	T_int16
	T_int32
	T_int64
	T_uint8
	T_uint32
	T_uint64
	T_float64
	T_varchar
	// serialized HyperLogLog sketch
	T_hll
	// serialized roaring bitmap
	T_bitmap
)

type Type struct {
	Oid T
}

func (t T) ToType() Type { return Type{Oid: t} }

func (t Type) Eq(o Type) bool { return t.Oid == o.Oid }

func (t Type) IsVarlen() bool {
	switch t.Oid {
	case T_varchar, T_hll, T_bitmap:
		return true
	}
	return false
}

// Size is the width of one fixed-width value, 0 for variable-width types.
func (t Type) Size() int {
	switch t.Oid {
	case T_int8, T_uint8:
		return 1
	case T_int16:
		return 2
	case T_int32, T_uint32:
		return 4
	case T_int64, T_uint64, T_float64:
		return 8
	}
	return 0
}

func (t Type) IsInteger() bool {
	switch t.Oid {
	case T_int8, T_int16, T_int32, T_int64, T_uint8, T_uint32, T_uint64:
		return true
	}
	return false
}

func (t Type) IsNumeric() bool {
	return t.IsInteger() || t.Oid == T_float64
}

func (t Type) String() string {
	switch t.Oid {
	case T_int8:
		return "INT8"
	case T_int16:
		return "INT16"
	case T_int32:
		return "INT32"
	case T_int64:
		return "INT64"
	case T_uint8:
		return "UINT8"
	case T_uint32:
		return "UINT32"
	case T_uint64:
		return "UINT64"
	case T_float64:
		return "FLOAT64"
	case T_varchar:
		return "VARCHAR"
	case T_hll:
		return "HLL"
	case T_bitmap:
		return "BITMAP"
	}
	return fmt.Sprintf("UNKNOWN(%d)", t.Oid)
}
