package iter

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/btree"
	"github.com/sirupsen/logrus"

	"olapscan/pkg/containers"
	"olapscan/pkg/dataio"
)

const heapDegree = 8

// CollectIterator merges the rows of several rowset readers into one stream
// in key order. Disjoint inputs are concatenated. Overlapping inputs go
// through a heap ordered by key, then version.
type CollectIterator struct {
	rctx     *dataio.ReaderContext
	merge    bool
	reverse  bool
	skipSame bool
	markSame bool

	all      []*childIterator
	children []*childIterator
	heap     *btree.BTree
	cur      *childIterator
	curIdx   int
	curSame  bool
	eof      bool

	// previous row in heap mode, either in place or copied out when its
	// block was about to be refilled
	prev      *keySnapshot
	prevBlock *containers.Batch
	prevPos   int
	hasPrev   bool

	mergedRows int64
	blockLocs  []dataio.RowLocation
}

func NewCollectIterator(rctx *dataio.ReaderContext) *CollectIterator {
	return &CollectIterator{rctx: rctx}
}

// Init must be called before adding children. With skipSame only the first
// row of each key survives. With markSame repeated keys are flagged, either
// on the RowRef in heap mode or as a same bit on the block otherwise.
func (it *CollectIterator) Init(merge, reverse, skipSame, markSame bool) {
	it.merge = merge
	it.reverse = reverse
	it.skipSame = skipSame
	it.markSame = markSame
}

func (it *CollectIterator) IsMerge() bool { return it.merge }

// AddChild takes an initialized reader.
func (it *CollectIterator) AddChild(reader dataio.RowsetReader) {
	it.addChild(reader, -1)
}

// AddSegmentChild takes a reader initialized on the single segment seg of
// its rowset. On equal keys and versions a later segment of the same rowset
// wins over an earlier one.
func (it *CollectIterator) AddSegmentChild(reader dataio.RowsetReader, seg int) {
	it.addChild(reader, seg)
}

func (it *CollectIterator) addChild(reader dataio.RowsetReader, seg int) {
	markOnBlock := !it.merge && (it.skipSame || it.markSame)
	child := newChildIterator(reader, it.rctx, len(it.all), seg, markOnBlock)
	it.all = append(it.all, child)
}

func (it *CollectIterator) NumChildren() int { return len(it.all) }

// BuildHeap loads the first block of every child and positions the iterator
// on the first row. Returns dataio.ErrEOF if there is no row at all.
func (it *CollectIterator) BuildHeap(ctx context.Context) error {
	it.children = it.children[:0]
	for _, child := range it.all {
		err := child.loadBlock(ctx)
		if errors.Is(err, dataio.ErrEOF) {
			continue
		}
		if err != nil {
			return err
		}
		it.children = append(it.children, child)
	}
	if it.merge {
		it.prev = newKeySnapshot(it.rctx)
		it.heap = btree.New(heapDegree)
		for _, child := range it.children {
			it.heap.ReplaceOrInsert(child)
		}
		logrus.Debugf("collect iterator: heap over %d of %d children", it.heap.Len(), len(it.all))
		return it.popMin()
	}
	if it.reverse {
		for i, j := 0, len(it.children)-1; i < j; i, j = i+1, j-1 {
			it.children[i], it.children[j] = it.children[j], it.children[i]
		}
	}
	if len(it.children) == 0 {
		it.eof = true
		return dataio.ErrEOF
	}
	it.curIdx = 0
	it.cur = it.children[0]
	return nil
}

func (it *CollectIterator) popMin() error {
	item := it.heap.DeleteMin()
	if item == nil {
		it.cur = nil
		it.eof = true
		return dataio.ErrEOF
	}
	it.cur = item.(*childIterator)
	it.curSame = it.hasPrev && it.compareWithPrev() == 0
	return nil
}

func (it *CollectIterator) compareWithPrev() int {
	keyCols := it.rctx.KeyColumns
	if it.prevBlock == nil {
		return it.prev.compare(it.cur.block, it.cur.pos, keyCols)
	}
	return containers.CompareRows(it.cur.block, it.cur.pos, it.prevBlock, it.prevPos, keyCols)
}

func (it *CollectIterator) mergeNext(ctx context.Context) error {
	cur := it.cur
	if cur.isLastInBlock() {
		it.prev.save(cur.block, cur.pos, it.rctx.KeyColumns)
		it.prevBlock = nil
	} else {
		it.prevBlock, it.prevPos = cur.block, cur.pos
	}
	it.hasPrev = true
	err := cur.advance(ctx)
	if err == nil {
		it.heap.ReplaceOrInsert(cur)
	} else if !errors.Is(err, dataio.ErrEOF) {
		return err
	}
	return it.popMin()
}

func (it *CollectIterator) normalNext(ctx context.Context) error {
	err := it.cur.advance(ctx)
	if !errors.Is(err, dataio.ErrEOF) {
		return err
	}
	if it.curIdx+1 < len(it.children) {
		it.curIdx++
		it.cur = it.children[it.curIdx]
		return nil
	}
	it.cur = nil
	it.eof = true
	return dataio.ErrEOF
}

func (it *CollectIterator) curIsSame() bool {
	if it.merge {
		return it.curSame
	}
	return it.cur.block.GetSameBit(it.cur.pos)
}

func (it *CollectIterator) fillRef(ref *RowRef) {
	ref.Block = it.cur.block
	ref.RowPos = it.cur.pos
	ref.IsSame = it.merge && it.curSame
}

// CurrentRow points ref at the row the iterator stands on.
func (it *CollectIterator) CurrentRow(ref *RowRef) error {
	if it.eof || it.cur == nil {
		ref.Reset()
		return dataio.ErrEOF
	}
	it.fillRef(ref)
	return nil
}

// Next moves to the next row and points ref at it.
func (it *CollectIterator) Next(ctx context.Context, ref *RowRef) error {
	if it.eof {
		ref.Reset()
		return dataio.ErrEOF
	}
	for {
		var err error
		if it.merge {
			err = it.mergeNext(ctx)
		} else {
			err = it.normalNext(ctx)
		}
		if err != nil {
			ref.Reset()
			return err
		}
		if it.skipSame && it.curIsSame() {
			it.mergedRows++
			continue
		}
		break
	}
	it.fillRef(ref)
	return nil
}

// NextBlock copies up to BatchSize rows, starting at the current row, into
// dst. loc maps every block column to its position in dst, -1 to skip it.
func (it *CollectIterator) NextBlock(ctx context.Context, dst *containers.Batch, loc []int) error {
	it.blockLocs = it.blockLocs[:0]
	if it.eof {
		return dataio.ErrEOF
	}
	if it.merge {
		return it.mergeNextBlock(ctx, dst, loc)
	}
	return it.normalNextBlock(ctx, dst, loc)
}

func (it *CollectIterator) normalNextBlock(ctx context.Context, dst *containers.Batch, loc []int) error {
	cur := it.cur
	n := cur.block.Length() - cur.pos
	if limit := it.rctx.GetBatchSize(); n > limit {
		n = limit
	}
	for col, pos := range loc {
		if pos < 0 {
			continue
		}
		dst.Vecs[pos].ExtendWithOffset(cur.block.Vecs[col], cur.pos, n)
	}
	if it.rctx.RecordRowIDs {
		it.blockLocs = append(it.blockLocs, cur.locs[cur.pos:cur.pos+n]...)
	}
	cur.pos += n - 1
	if err := it.normalNext(ctx); err != nil && !errors.Is(err, dataio.ErrEOF) {
		return err
	}
	return nil
}

func (it *CollectIterator) mergeNextBlock(ctx context.Context, dst *containers.Batch, loc []int) error {
	limit := it.rctx.GetBatchSize()
	for rows := 0; rows < limit; rows++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur := it.cur
		for col, pos := range loc {
			if pos < 0 {
				continue
			}
			dst.Vecs[pos].ExtendFrom(cur.block.Vecs[col], cur.pos)
		}
		if it.rctx.RecordRowIDs {
			it.blockLocs = append(it.blockLocs, cur.location())
		}
		err := it.mergeNext(ctx)
		if errors.Is(err, dataio.ErrEOF) {
			break
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// CurrentRowLocation is the source location of the current row.
func (it *CollectIterator) CurrentRowLocation() dataio.RowLocation {
	if it.cur == nil {
		return dataio.RowLocation{RowID: dataio.InvalidRowID}
	}
	return it.cur.location()
}

// CurrentBlockRowLocations appends the locations of the rows copied by the
// last NextBlock to dst.
func (it *CollectIterator) CurrentBlockRowLocations(dst []dataio.RowLocation) []dataio.RowLocation {
	return append(dst, it.blockLocs...)
}

// MergedRows counts the rows dropped as repeated keys.
func (it *CollectIterator) MergedRows() int64 { return it.mergedRows }

func (it *CollectIterator) Close() error {
	var err error
	for _, child := range it.all {
		err = errors.CombineErrors(err, child.reader.Close())
	}
	it.all, it.children, it.cur = nil, nil, nil
	return err
}
