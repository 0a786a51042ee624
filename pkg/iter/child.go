package iter

import (
	"context"

	"github.com/google/btree"

	"olapscan/pkg/containers"
	"olapscan/pkg/dataio"
)

// keySnapshot keeps a private copy of one row's key columns.
type keySnapshot struct {
	bat   *containers.Batch
	valid bool
}

func newKeySnapshot(rctx *dataio.ReaderContext) *keySnapshot {
	layout := rctx.Schema
	cols := make([]int, len(rctx.KeyColumns))
	for i, pos := range rctx.KeyColumns {
		cols[i] = rctx.ReturnColumns[pos]
	}
	return &keySnapshot{
		bat: containers.BuildBatch(layout.Attrs(cols), layout.Types(cols)),
	}
}

func (s *keySnapshot) save(src *containers.Batch, row int, keyCols []int) {
	s.bat.Reset()
	for i, col := range keyCols {
		s.bat.Vecs[i].ExtendFrom(src.Vecs[col], row)
	}
	s.valid = true
}

func (s *keySnapshot) compare(src *containers.Batch, row int, keyCols []int) int {
	for i, col := range keyCols {
		if c := src.Vecs[col].Compare(row, s.bat.Vecs[i], 0); c != 0 {
			return c
		}
	}
	return 0
}

type childIterator struct {
	reader  dataio.RowsetReader
	rctx    *dataio.ReaderContext
	version dataio.Version
	rowset  uint64
	// segment index inside the rowset, -1 when the child reads whole splits
	segment int
	order   int
	block   *containers.Batch
	pos     int
	locs    []dataio.RowLocation
	// set only when same keys are marked on the block
	lastKey *keySnapshot
}

func newChildIterator(reader dataio.RowsetReader, rctx *dataio.ReaderContext, order, segment int, markSame bool) *childIterator {
	rs := reader.Rowset()
	c := &childIterator{
		reader:  reader,
		rctx:    rctx,
		version: rs.Version(),
		rowset:  rs.ID(),
		segment: segment,
		order:   order,
		block:   containers.NewBatch(),
	}
	if markSame {
		c.lastKey = newKeySnapshot(rctx)
	}
	return c
}

func (c *childIterator) loadBlock(ctx context.Context) error {
	if c.lastKey != nil && c.block.Length() > 0 {
		c.lastKey.save(c.block, c.block.Length()-1, c.rctx.KeyColumns)
	}
	if err := c.reader.NextBlock(ctx, c.block); err != nil {
		return err
	}
	c.pos = 0
	if c.rctx.RecordRowIDs {
		c.locs = c.reader.CurrentBlockRowLocations()
	}
	if c.lastKey != nil {
		c.markSameBits()
	}
	return nil
}

// markSameBits flags rows repeating the key of the row before them, the
// first row being compared with the last row of the previous block.
func (c *childIterator) markSameBits() {
	keyCols := c.rctx.KeyColumns
	c.block.ClearSameBits()
	for i := 0; i < c.block.Length(); i++ {
		if i == 0 {
			if c.lastKey.valid && c.lastKey.compare(c.block, 0, keyCols) == 0 {
				c.block.SetSameBit(0)
			}
			continue
		}
		if containers.CompareRows(c.block, i, c.block, i-1, keyCols) == 0 {
			c.block.SetSameBit(i)
		}
	}
}

func (c *childIterator) isLastInBlock() bool {
	return c.pos+1 >= c.block.Length()
}

// advance moves to the next row, refilling the block when the current one
// is used up. Returns dataio.ErrEOF once the reader is drained.
func (c *childIterator) advance(ctx context.Context) error {
	c.pos++
	if c.pos < c.block.Length() {
		return nil
	}
	return c.loadBlock(ctx)
}

func (c *childIterator) location() dataio.RowLocation {
	if c.pos < len(c.locs) {
		return c.locs[c.pos]
	}
	return dataio.RowLocation{RowID: dataio.InvalidRowID}
}

// Less orders children by current key, then newer version first. Segments
// of one rowset put the later segment first. Anything else keeps the order
// children were added in.
func (c *childIterator) Less(than btree.Item) bool {
	o := than.(*childIterator)
	cmp := containers.CompareRows(c.block, c.pos, o.block, o.pos, c.rctx.KeyColumns)
	if cmp != 0 {
		if c.rctx.Reverse {
			return cmp > 0
		}
		return cmp < 0
	}
	if c.version.End != o.version.End {
		return c.version.End > o.version.End
	}
	if c.rowset == o.rowset && c.segment >= 0 && o.segment >= 0 && c.segment != o.segment {
		return c.segment > o.segment
	}
	return c.order < o.order
}
