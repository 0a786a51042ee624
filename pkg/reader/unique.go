package reader

import (
	"context"

	"github.com/cockroachdb/errors"

	"olapscan/pkg/containers"
	"olapscan/pkg/dataio"
)

const deleteFilterColumn = "__compaction_filter__"

// uniqueNextBlock copies one row per key. The iterator already dropped the
// older versions of each key, so every row it returns is kept.
func (r *BlockReader) uniqueNextBlock(ctx context.Context, dst *containers.Batch) error {
	batchSize := r.rctx.GetBatchSize()
	rows := 0
	for {
		r.insertDataNormal(dst)
		if r.rctx.RecordRowIDs {
			r.locs = append(r.locs, r.collectIter.CurrentRowLocation())
		}
		rows++

		err := r.pull(ctx)
		if errors.Is(err, dataio.ErrEOF) {
			r.eof = true
			break
		}
		if err != nil {
			return err
		}
		if rows >= batchSize {
			break
		}
	}
	if r.deleteSignAvailable {
		return r.filterDeleted(dst, rows)
	}
	return nil
}

// filterDeleted drops the rows whose delete sign is set. A null sign keeps
// the row.
func (r *BlockReader) filterDeleted(dst *containers.Batch, rows int) error {
	if r.deleteSignPos < 0 {
		r.stats.DeleteFilterSkipped++
		r.logger.Warnf("delete sign column is not in the output, skip filter delete on %d rows", rows)
		return nil
	}
	if r.deleteFilter == nil {
		r.deleteFilter = containers.MakeVector(containers.T_uint8.ToType())
	}
	r.deleteFilter.Reset()
	signs := dst.Vecs[r.deleteSignPos]
	vals := containers.Values[int8](signs)
	deleteCount := 0
	for i := 0; i < rows; i++ {
		if signs.IsNull(i) || vals[i] == 0 {
			r.deleteFilter.Append(uint8(1))
			continue
		}
		r.deleteFilter.Append(uint8(0))
		if r.rctx.RecordRowIDs {
			r.locs[i].RowID = dataio.InvalidRowID
			deleteCount++
		}
	}
	dst.AddVector(deleteFilterColumn, r.deleteFilter)
	dropped, err := containers.FilterBlock(dst, deleteFilterColumn)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "filter delete"), ErrInternal)
	}
	r.stats.RowsDelFiltered += int64(dropped)
	if r.rctx.RecordRowIDs && len(r.locs) != dst.Length()+deleteCount {
		return internalErrorf("%d row locations for %d rows and %d deletes",
			len(r.locs), dst.Length(), deleteCount)
	}
	return nil
}
