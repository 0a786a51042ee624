package aggr

import (
	"sync"

	"github.com/cockroachdb/errors"

	"olapscan/pkg/catalog"
	"olapscan/pkg/containers"
)

const (
	MinExecVersion     = 0
	CurrentExecVersion = 3
)

// Builder returns nil when it does not support typ.
type Builder func(typ containers.Type) Function

type registryEntry struct {
	minVersion int
	build      Builder
}

var registry = struct {
	sync.RWMutex
	entries map[catalog.AggType]registryEntry
}{
	entries: make(map[catalog.AggType]registryEntry),
}

func init() {
	Register(catalog.AggSum, MinExecVersion, newSum)
	Register(catalog.AggMin, MinExecVersion, newMin)
	Register(catalog.AggMax, MinExecVersion, newMax)
	Register(catalog.AggReplace, MinExecVersion, newReplace)
	Register(catalog.AggReplaceIfNotNull, MinExecVersion, newReplaceIfNotNull)
	Register(catalog.AggBitmapUnion, MinExecVersion, newBitmapUnion)
	Register(catalog.AggHLLUnion, 1, newHLLUnion)
}

// Register binds an aggregation type to the builder used from minVersion on.
// A later registration for the same type replaces the earlier one.
func Register(agg catalog.AggType, minVersion int, build Builder) {
	registry.Lock()
	defer registry.Unlock()
	registry.entries[agg] = registryEntry{minVersion: minVersion, build: build}
}

// Get resolves the function aggregating values of typ under agg for the
// given execution version.
func Get(agg catalog.AggType, typ containers.Type, execVersion int) (Function, error) {
	if execVersion < MinExecVersion || execVersion > CurrentExecVersion {
		return nil, errors.Wrapf(ErrFunctionNotFound, "exec version %d out of [%d,%d]",
			execVersion, MinExecVersion, CurrentExecVersion)
	}
	registry.RLock()
	entry, ok := registry.entries[agg]
	registry.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrFunctionNotFound, "%s", agg)
	}
	if execVersion < entry.minVersion {
		return nil, errors.Wrapf(ErrFunctionNotFound, "%s requires exec version %d, got %d",
			agg, entry.minVersion, execVersion)
	}
	fn := entry.build(typ)
	if fn == nil {
		return nil, errors.Wrapf(ErrFunctionNotFound, "%s(%s)", agg, typ)
	}
	return fn, nil
}
