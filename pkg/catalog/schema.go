package catalog

import (
	"bytes"
	"fmt"
	"hash/fnv"

	"github.com/cockroachdb/errors"

	"olapscan/pkg/common"
	"olapscan/pkg/containers"
)

// DeleteSignColumn is the reserved value column marking a row as deleted
// when non-zero.
const DeleteSignColumn = "__delete_sign__"

var (
	ErrDuplicateColumn = errors.New("olapscan: duplicate column")
	ErrBadSchema       = errors.New("olapscan: bad schema")
)

type KeysType int8

const (
	DupKeys KeysType = iota
	UniqueKeys
	AggKeys
)

func (kt KeysType) String() string {
	switch kt {
	case DupKeys:
		return "DUP_KEYS"
	case UniqueKeys:
		return "UNIQUE_KEYS"
	case AggKeys:
		return "AGG_KEYS"
	}
	return fmt.Sprintf("KEYS(%d)", kt)
}

type AggType int8

const (
	AggNone AggType = iota
	AggSum
	AggMin
	AggMax
	AggReplace
	AggReplaceIfNotNull
	AggBitmapUnion
	AggHLLUnion
)

func (at AggType) String() string {
	switch at {
	case AggNone:
		return "NONE"
	case AggSum:
		return "SUM"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	case AggReplace:
		return "REPLACE"
	case AggReplaceIfNotNull:
		return "REPLACE_IF_NOT_NULL"
	case AggBitmapUnion:
		return "BITMAP_UNION"
	case AggHLLUnion:
		return "HLL_UNION"
	}
	return fmt.Sprintf("AGG(%d)", at)
}

type ColDef struct {
	Name   string
	Idx    int
	Type   containers.Type
	IsKey  bool
	Agg    AggType
	Hidden bool
}

type Schema struct {
	Name      string
	KeysType  KeysType
	ColDefs   []*ColDef
	NameIndex map[string]int
}

func NewEmptySchema(name string, keysType KeysType) *Schema {
	return &Schema{
		Name:      name,
		KeysType:  keysType,
		ColDefs:   make([]*ColDef, 0),
		NameIndex: make(map[string]int),
	}
}

func (s *Schema) appendCol(def *ColDef) error {
	if _, ok := s.NameIndex[def.Name]; ok {
		return errors.Wrapf(ErrDuplicateColumn, "%s", def.Name)
	}
	def.Idx = len(s.ColDefs)
	s.NameIndex[def.Name] = def.Idx
	s.ColDefs = append(s.ColDefs, def)
	return nil
}

func (s *Schema) AppendKeyCol(name string, typ containers.Type) error {
	return s.appendCol(&ColDef{Name: name, Type: typ, IsKey: true})
}

func (s *Schema) AppendCol(name string, typ containers.Type) error {
	return s.appendCol(&ColDef{Name: name, Type: typ})
}

func (s *Schema) AppendAggCol(name string, typ containers.Type, agg AggType) error {
	return s.appendCol(&ColDef{Name: name, Type: typ, Agg: agg})
}

// AppendDeleteSign adds the hidden INT8 delete marker column.
func (s *Schema) AppendDeleteSign() error {
	agg := AggNone
	if s.KeysType == AggKeys {
		agg = AggReplace
	}
	return s.appendCol(&ColDef{
		Name:   DeleteSignColumn,
		Type:   containers.T_int8.ToType(),
		Agg:    agg,
		Hidden: true,
	})
}

// Finalize checks that keys lead the column list and that every value
// column of an aggregate-keys table names its aggregation.
func (s *Schema) Finalize() error {
	if len(s.ColDefs) == 0 {
		return errors.Wrapf(ErrBadSchema, "%s: no columns", s.Name)
	}
	seenValue := false
	keys := 0
	for _, def := range s.ColDefs {
		if def.IsKey {
			if seenValue {
				return errors.Wrapf(ErrBadSchema, "%s: key %s after value column", s.Name, def.Name)
			}
			keys++
			continue
		}
		seenValue = true
		if s.KeysType == AggKeys && def.Agg == AggNone {
			return errors.Wrapf(ErrBadSchema, "%s: value %s has no aggregation", s.Name, def.Name)
		}
	}
	if keys == 0 {
		return errors.Wrapf(ErrBadSchema, "%s: no key column", s.Name)
	}
	return nil
}

func (s *Schema) NumKeys() int {
	n := 0
	for _, def := range s.ColDefs {
		if def.IsKey {
			n++
		}
	}
	return n
}

func (s *Schema) NumCols() int { return len(s.ColDefs) }

// FieldIndex returns -1 if the column does not exist.
func (s *Schema) FieldIndex(name string) int {
	idx, ok := s.NameIndex[name]
	if !ok {
		return -1
	}
	return idx
}

func (s *Schema) DeleteSignIdx() int { return s.FieldIndex(DeleteSignColumn) }

func (s *Schema) KeyIdxs() []int {
	idxs := make([]int, 0, len(s.ColDefs))
	for _, def := range s.ColDefs {
		if def.IsKey {
			idxs = append(idxs, def.Idx)
		}
	}
	return idxs
}

func (s *Schema) AllIdxs() []int {
	idxs := make([]int, len(s.ColDefs))
	for i := range idxs {
		idxs[i] = i
	}
	return idxs
}

func (s *Schema) Attrs(idxs []int) []string {
	attrs := make([]string, len(idxs))
	for i, idx := range idxs {
		attrs[i] = s.ColDefs[idx].Name
	}
	return attrs
}

func (s *Schema) Types(idxs []int) []containers.Type {
	typs := make([]containers.Type, len(idxs))
	for i, idx := range idxs {
		typs[i] = s.ColDefs[idx].Type
	}
	return typs
}

// Hash fingerprints column names, types and roles.
func (s *Schema) Hash() uint32 {
	var w bytes.Buffer
	_, _ = common.WriteString(s.KeysType.String(), &w)
	for _, def := range s.ColDefs {
		_, _ = common.WriteString(def.Name, &w)
		_ = w.WriteByte(byte(def.Type.Oid))
		_ = w.WriteByte(byte(def.Agg))
		if def.IsKey {
			_ = w.WriteByte(1)
		} else {
			_ = w.WriteByte(0)
		}
	}
	h := fnv.New32a()
	_, _ = h.Write(w.Bytes())
	return h.Sum32()
}

func (s *Schema) String() string {
	var w bytes.Buffer
	_, _ = fmt.Fprintf(&w, "Schema<%s,%s>(", s.Name, s.KeysType)
	for i, def := range s.ColDefs {
		if i > 0 {
			_ = w.WriteByte(',')
		}
		_, _ = fmt.Fprintf(&w, "%s %s", def.Name, def.Type)
		if def.IsKey {
			_, _ = w.WriteString(" KEY")
		} else if def.Agg != AggNone {
			_, _ = fmt.Fprintf(&w, " %s", def.Agg)
		}
	}
	_ = w.WriteByte(')')
	return w.String()
}

// MockSchema builds a schema with an INT32 key "k" and the given INT64
// value columns, aggregated by SUM under AggKeys.
func MockSchema(keysType KeysType, values ...string) *Schema {
	schema := NewEmptySchema("mock", keysType)
	if err := schema.AppendKeyCol("k", containers.T_int32.ToType()); err != nil {
		panic(err)
	}
	for _, name := range values {
		var err error
		if keysType == AggKeys {
			err = schema.AppendAggCol(name, containers.T_int64.ToType(), AggSum)
		} else {
			err = schema.AppendCol(name, containers.T_int64.ToType())
		}
		if err != nil {
			panic(err)
		}
	}
	if err := schema.Finalize(); err != nil {
		panic(err)
	}
	return schema
}
