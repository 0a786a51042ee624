package reader

import (
	"fmt"

	"olapscan/pkg/catalog"
	"olapscan/pkg/dataio"
)

type ReaderType int8

const (
	ReaderQuery ReaderType = iota
	ReaderBaseCompaction
	ReaderCumulativeCompaction
	ReaderFullCompaction
	ReaderChecksum
)

func (rt ReaderType) String() string {
	switch rt {
	case ReaderQuery:
		return "QUERY"
	case ReaderBaseCompaction:
		return "BASE_COMPACTION"
	case ReaderCumulativeCompaction:
		return "CUMULATIVE_COMPACTION"
	case ReaderFullCompaction:
		return "FULL_COMPACTION"
	case ReaderChecksum:
		return "CHECKSUM"
	}
	return fmt.Sprintf("READER(%d)", rt)
}

// StatsRecorder receives a stats snapshot when a reader is closed.
type StatsRecorder interface {
	RecordScan(keysType catalog.KeysType, stats Stats)
}

type ReaderParams struct {
	Tablet     *catalog.TabletEntry
	ReaderType ReaderType
	Version    dataio.Version
	// RsSplits are read in this order. Ties between equal keys of different
	// splits go to the higher version, then to the earlier split.
	RsSplits []dataio.RowsetSplit

	// ReturnColumns are the schema indexes read from storage, in the layout
	// of source blocks. It must hold every key column when rows are merged.
	ReturnColumns []int
	// OriginReturnColumns are the schema indexes the caller wants, in output
	// block order. Nil means ReturnColumns.
	OriginReturnColumns []int

	BatchSize int
	// DirectMode hands rows through without merge semantics.
	DirectMode   bool
	RecordRowIDs bool
	FilterDelete bool

	// ReadOrderByKey asks for key ordered output. Reverse is only honored
	// together with it.
	ReadOrderByKey        bool
	ReadOrderByKeyReverse bool

	// ExecVersion selects aggregate function implementations. Zero means
	// the current version.
	ExecVersion int

	// ErrorReporter, if set, is called with every error other than end of
	// stream returned by Init or NextBlock.
	ErrorReporter func(error)
	Metrics       StatsRecorder
}

func (p *ReaderParams) outputColumns() []int {
	if p.OriginReturnColumns == nil {
		return p.ReturnColumns
	}
	return p.OriginReturnColumns
}
