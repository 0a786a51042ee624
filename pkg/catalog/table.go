package catalog

import (
	"fmt"
	"sync"
)

// TabletEntry describes one tablet: the unit a scan reads rowsets from.
type TabletEntry struct {
	*sync.RWMutex
	ID           uint64
	SchemaHash   uint32
	schema       *Schema
	mergeOnWrite bool
}

func NewTabletEntry(id uint64, schema *Schema) *TabletEntry {
	return &TabletEntry{
		RWMutex:    new(sync.RWMutex),
		ID:         id,
		SchemaHash: schema.Hash(),
		schema:     schema,
	}
}

func MockTablet(id uint64, schema *Schema) *TabletEntry {
	return NewTabletEntry(id, schema)
}

func (entry *TabletEntry) GetSchema() *Schema {
	return entry.schema
}

func (entry *TabletEntry) KeysType() KeysType {
	return entry.schema.KeysType
}

func (entry *TabletEntry) NumKeyColumns() int {
	return entry.schema.NumKeys()
}

// EnableMergeOnWrite marks a unique-keys tablet whose rowsets were already
// deduplicated when written.
func (entry *TabletEntry) EnableMergeOnWrite() {
	entry.Lock()
	defer entry.Unlock()
	entry.mergeOnWrite = true
}

func (entry *TabletEntry) MergeOnWrite() bool {
	entry.RLock()
	defer entry.RUnlock()
	return entry.mergeOnWrite && entry.schema.KeysType == UniqueKeys
}

func (entry *TabletEntry) String() string {
	return fmt.Sprintf("TABLET<%d:%d>[name=%s,keys=%s]",
		entry.ID, entry.SchemaHash, entry.schema.Name, entry.schema.KeysType)
}
