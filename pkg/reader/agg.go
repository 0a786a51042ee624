package reader

import (
	"context"

	"github.com/cockroachdb/errors"

	"olapscan/pkg/aggr"
	"olapscan/pkg/common"
	"olapscan/pkg/containers"
	"olapscan/pkg/dataio"
	"olapscan/pkg/iter"
)

// aggSlot aggregates one value column.
type aggSlot struct {
	fn    aggr.Function
	state aggr.State
	// position in source blocks and in the output block
	blockCol int
	outPos   int
	// values of the stored rows, gathered before each flush
	stored  containers.Vector
	varlen  bool
	hasNull bool
}

type refPos struct {
	src int
	dst int
}

type refGroup struct {
	block *containers.Batch
	rows  []refPos
}

// aggBank buffers the rows of the open key runs by reference. counters
// holds the length of each closed run since the last flush, lastCounter the
// length of the run still open.
type aggBank struct {
	slots       []*aggSlot
	storedRefs  []iter.RowRef
	counters    []int
	lastCounter int
	arena       *common.Arena
	arenaPeak   int

	groups   []refGroup
	groupIdx map[*containers.Batch]int
}

func (r *BlockReader) initAggState() error {
	bank := &aggBank{
		arena:    common.NewArena(0),
		groupIdx: make(map[*containers.Batch]int),
	}
	batchSize := r.rctx.GetBatchSize()
	for _, j := range r.aggColumnsIdx {
		def := r.schema.ColDefs[r.rctx.ReturnColumns[j]]
		fn, err := aggr.Get(def.Agg, def.Type, r.execVersion())
		if err != nil {
			bank.destroy()
			return errors.Mark(errors.Wrapf(err,
				"fail to init reader when init agg state: tablet_id: %d, schema_hash: %d, reader_type: %s, version: %s",
				r.params.Tablet.ID, r.params.Tablet.SchemaHash, r.params.ReaderType, r.params.Version), ErrInternal)
		}
		slot := &aggSlot{
			fn:       fn,
			state:    fn.CreateState(),
			blockCol: j,
			outPos:   r.returnColumnsLoc[j],
			stored:   containers.MakeVector(def.Type),
		}
		slot.varlen = slot.stored.IsVariableLength()
		if !slot.varlen {
			slot.stored.Resize(batchSize)
		}
		bank.slots = append(bank.slots, slot)
	}
	r.agg = bank
	return nil
}

func (bank *aggBank) destroy() {
	for _, slot := range bank.slots {
		slot.fn.Destroy(slot.state)
	}
	bank.slots = nil
	bank.arena.Clear()
}

// aggNextBlock writes one output row per key. A key run never ends inside a
// block: once the block is full, rows of the last key are still folded in
// until a new key shows up.
func (r *BlockReader) aggNextBlock(ctx context.Context, dst *containers.Batch) error {
	bank := r.agg
	batchSize := r.rctx.GetBatchSize()
	rows := 0
	var merged int64

	r.insertDataNormal(dst)
	rows++
	if err := r.appendAggData(dst); err != nil {
		return err
	}
	for {
		err := r.pull(ctx)
		if errors.Is(err, dataio.ErrEOF) {
			r.eof = true
			break
		}
		if err != nil {
			return err
		}
		if !r.nextRowSame() {
			if rows == batchSize {
				break
			}
			bank.counters = append(bank.counters, bank.lastCounter)
			bank.lastCounter = 0
			r.insertDataNormal(dst)
			rows++
		} else {
			merged++
		}
		if err = r.appendAggData(dst); err != nil {
			return err
		}
	}
	bank.counters = append(bank.counters, bank.lastCounter)
	bank.lastCounter = 0
	if err := r.updateAggData(dst); err != nil {
		return err
	}
	r.stats.MergedRows += merged
	return nil
}

func (r *BlockReader) nextRowSame() bool {
	return r.nextRow.IsSame || r.nextRow.Block.GetSameBit(r.nextRow.RowPos)
}

// appendAggData stores a reference to the current row. Stored rows are
// flushed before the block they point into is refilled.
func (r *BlockReader) appendAggData(dst *containers.Batch) error {
	bank := r.agg
	bank.storedRefs = append(bank.storedRefs, r.nextRow)
	bank.lastCounter++
	if r.nextRow.IsLastInBlock() || len(bank.storedRefs) == r.rctx.GetBatchSize() {
		return r.updateAggData(dst)
	}
	return nil
}

// updateAggData folds every stored row into the aggregate states. Closed
// runs are finalized into dst, the open run keeps its state.
func (r *BlockReader) updateAggData(dst *containers.Batch) error {
	bank := r.agg
	copySize := bank.copyAggData()
	for _, slot := range bank.slots {
		slot.hasNull = slot.stored.HasNullBefore(copySize)
	}

	begin := 0
	for _, n := range bank.counters {
		if err := bank.updateAggValue(dst, begin, n, true); err != nil {
			return err
		}
		begin += n
	}
	if bank.lastCounter > 0 {
		if err := bank.updateAggValue(dst, begin, bank.lastCounter, false); err != nil {
			return err
		}
		bank.lastCounter = 0
	}
	bank.counters = bank.counters[:0]
	return nil
}

// copyAggData gathers the stored rows into the stored vectors, one source
// block at a time for fixed width columns. Variable width columns are
// rebuilt in row order.
func (bank *aggBank) copyAggData() int {
	copySize := len(bank.storedRefs)
	for i, ref := range bank.storedRefs {
		gi, ok := bank.groupIdx[ref.Block]
		if !ok {
			gi = len(bank.groups)
			bank.groupIdx[ref.Block] = gi
			bank.groups = append(bank.groups, refGroup{block: ref.Block})
		}
		bank.groups[gi].rows = append(bank.groups[gi].rows, refPos{src: ref.RowPos, dst: i})
	}

	for _, slot := range bank.slots {
		if slot.varlen {
			slot.stored.Reset()
			for _, ref := range bank.storedRefs {
				slot.stored.ExtendFrom(ref.Block.Vecs[slot.blockCol], ref.RowPos)
			}
			continue
		}
		for _, group := range bank.groups {
			src := group.block.Vecs[slot.blockCol]
			for _, pos := range group.rows {
				slot.stored.ReplaceAt(src, pos.src, pos.dst)
			}
		}
	}

	for block := range bank.groupIdx {
		delete(bank.groupIdx, block)
	}
	bank.groups = bank.groups[:0]
	bank.storedRefs = bank.storedRefs[:0]
	return copySize
}

// updateAggValue folds stored rows [begin, begin+n) into every slot. Closing
// appends the result to dst and resets the state for the next key.
func (bank *aggBank) updateAggValue(dst *containers.Batch, begin, n int, isClose bool) error {
	for _, slot := range bank.slots {
		if n > 0 {
			if err := slot.fn.AddBatchRange(slot.state, begin, begin+n, slot.stored, bank.arena, slot.hasNull); err != nil {
				return errors.Wrapf(err, "%s on rows [%d,%d)", slot.fn.Name(), begin, begin+n)
			}
		}
		if isClose {
			if err := slot.fn.InsertResultInto(slot.state, dst.Vecs[slot.outPos]); err != nil {
				return errors.Wrapf(err, "%s result", slot.fn.Name())
			}
			slot.fn.Reset(slot.state)
		}
	}
	if isClose {
		if n := bank.arena.Reserved(); n > bank.arenaPeak {
			bank.arenaPeak = n
		}
		bank.arena.Clear()
	}
	return nil
}
