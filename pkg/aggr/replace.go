package aggr

import (
	"olapscan/pkg/common"
	"olapscan/pkg/containers"
)

type replaceState struct {
	val any
	set bool
}

// replace keeps the first row of a key group. Rows reach the reader with the
// newest version first, so the first row is the one that wins. With
// skipNull it keeps the first non-null row instead.
type replace struct {
	typ      containers.Type
	skipNull bool
}

func newReplace(typ containers.Type) Function {
	return &replace{typ: typ}
}

func newReplaceIfNotNull(typ containers.Type) Function {
	return &replace{typ: typ, skipNull: true}
}

func (f *replace) Name() string {
	if f.skipNull {
		return "replace_if_not_null"
	}
	return "replace"
}

func (f *replace) ReturnType() containers.Type { return f.typ }
func (f *replace) CreateState() State          { return &replaceState{} }

func (f *replace) AddBatchRange(state State, begin, end int, col containers.Vector, arena *common.Arena, hasNull bool) error {
	s := state.(*replaceState)
	if s.set {
		return nil
	}
	for i := begin; i < end; i++ {
		if f.skipNull && hasNull && col.IsNull(i) {
			continue
		}
		v := col.Get(i)
		if b, ok := v.([]byte); ok {
			v = arena.Copy(b)
		}
		s.val, s.set = v, true
		return nil
	}
	return nil
}

func (f *replace) InsertResultInto(state State, dst containers.Vector) error {
	// nil appends a null
	dst.Append(state.(*replaceState).val)
	return nil
}

func (f *replace) Reset(state State) {
	*state.(*replaceState) = replaceState{}
}

func (f *replace) Destroy(state State) { f.Reset(state) }
