package handle

import (
	gbat "github.com/matrixorigin/matrixone/pkg/container/batch"

	"olapscan/pkg/containers"
	"olapscan/pkg/dataio"
)

// BlockIt walks the output blocks of one or more scans.
type BlockIt interface {
	Iterator
	GetBlock() *containers.Batch
	// GetRowLocations is parallel to GetBlock when row ids are recorded.
	GetRowLocations() []dataio.RowLocation
	// GetBatch exports the current block for matrixone operators.
	GetBatch() (*gbat.Batch, error)
}
