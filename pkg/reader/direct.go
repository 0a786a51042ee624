package reader

import (
	"context"

	"github.com/cockroachdb/errors"

	"olapscan/pkg/containers"
	"olapscan/pkg/dataio"
)

// directNextBlock hands rows through unchanged.
func (r *BlockReader) directNextBlock(ctx context.Context, dst *containers.Batch) (bool, error) {
	err := r.collectIter.NextBlock(ctx, dst, r.returnColumnsLoc)
	if errors.Is(err, dataio.ErrEOF) {
		r.eof = true
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if r.rctx.RecordRowIDs {
		r.locs = r.collectIter.CurrentBlockRowLocations(r.locs)
		if len(r.locs) != dst.Length() {
			return false, internalErrorf("%d row locations for %d rows", len(r.locs), dst.Length())
		}
	}
	return false, nil
}
