package reader

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"olapscan/pkg/aggr"
	"olapscan/pkg/catalog"
	"olapscan/pkg/containers"
	"olapscan/pkg/dataio"
	"olapscan/pkg/iter"
	"olapscan/pkg/options"
)

type strategy int8

const (
	directStrategy strategy = iota
	uniqueStrategy
	aggStrategy
)

func (s strategy) String() string {
	switch s {
	case directStrategy:
		return "direct"
	case uniqueStrategy:
		return "unique"
	case aggStrategy:
		return "agg"
	}
	return "unknown"
}

// BlockReader reads the rowsets of one tablet version as a stream of blocks,
// merging rows of equal keys according to the tablet's keys type. It is not
// safe for concurrent use.
type BlockReader struct {
	params   *ReaderParams
	schema   *catalog.Schema
	rctx     *dataio.ReaderContext
	strategy strategy
	logger   *logrus.Entry

	collectIter *iter.CollectIterator
	nextRow     iter.RowRef

	outputColumns []int
	// block column -> output column, -1 if the column is only read
	returnColumnsLoc []int
	normalColumnsIdx []int
	aggColumnsIdx    []int
	keysMissing      bool

	deleteSignAvailable bool
	deleteSignPos       int
	deleteFilter        containers.Vector

	agg  *aggBank
	locs []dataio.RowLocation

	eof    bool
	closed bool
	stats  Stats
}

func NewBlockReader() *BlockReader {
	return &BlockReader{deleteSignPos: -1}
}

// Init resolves the read strategy, opens every rowset reader and positions
// the reader on the first row. On failure the opened readers are closed.
func (r *BlockReader) Init(ctx context.Context, params *ReaderParams) (err error) {
	defer func() {
		if err != nil {
			err = markCancel(err)
			r.report(err)
			if r.collectIter != nil {
				_ = r.collectIter.Close()
			}
			r.closed = true
		}
	}()
	if err = r.initParams(params); err != nil {
		return
	}
	if r.strategy == aggStrategy {
		if err = r.initAggState(); err != nil {
			return
		}
	}
	if r.strategy == uniqueStrategy && params.FilterDelete {
		if err = r.initDeleteFilter(); err != nil {
			return
		}
	}
	if err = r.initCollectIter(ctx); err != nil {
		r.logger.Warnf("fail to init reader when init collect iterator: %v", err)
		return
	}
	r.logger.Debugf("block reader: %s strategy over %d splits, overlapping=%v, eof=%v",
		r.strategy, len(params.RsSplits), r.stats.Overlapping, r.eof)
	return
}

func (r *BlockReader) initParams(params *ReaderParams) error {
	if params == nil || params.Tablet == nil {
		return internalErrorf("reader params without tablet")
	}
	r.params = params
	tablet := params.Tablet
	r.schema = tablet.GetSchema()
	r.logger = logrus.WithFields(logrus.Fields{
		"tablet_id":   tablet.ID,
		"schema_hash": tablet.SchemaHash,
		"reader_type": params.ReaderType.String(),
		"version":     params.Version.String(),
	})
	if len(params.ReturnColumns) == 0 {
		return internalErrorf("tablet %d: no return column", tablet.ID)
	}
	for _, cid := range params.ReturnColumns {
		if cid < 0 || cid >= r.schema.NumCols() {
			return internalErrorf("tablet %d: return column %d out of schema %s", tablet.ID, cid, r.schema)
		}
	}

	r.outputColumns = params.outputColumns()
	r.returnColumnsLoc = make([]int, len(params.ReturnColumns))
	for j := range r.returnColumnsLoc {
		r.returnColumnsLoc[j] = -1
	}
	r.normalColumnsIdx = r.normalColumnsIdx[:0]
	r.aggColumnsIdx = r.aggColumnsIdx[:0]
	for i, cid := range r.outputColumns {
		j := indexOf(params.ReturnColumns, cid)
		if j < 0 {
			return internalErrorf("tablet %d: output column %d is not read", tablet.ID, cid)
		}
		if r.schema.ColDefs[cid].IsKey || r.schema.KeysType != catalog.AggKeys {
			r.normalColumnsIdx = append(r.normalColumnsIdx, j)
		} else {
			r.aggColumnsIdx = append(r.aggColumnsIdx, j)
		}
		r.returnColumnsLoc[j] = i
	}

	keyColumns := make([]int, 0, r.schema.NumKeys())
	r.keysMissing = false
	for _, kid := range r.schema.KeyIdxs() {
		j := indexOf(params.ReturnColumns, kid)
		if j < 0 {
			r.keysMissing = true
			continue
		}
		keyColumns = append(keyColumns, j)
	}

	switch {
	case params.DirectMode:
		r.strategy = directStrategy
	case r.schema.KeysType == catalog.DupKeys:
		r.strategy = directStrategy
	case r.schema.KeysType == catalog.UniqueKeys:
		r.strategy = uniqueStrategy
		if params.ReaderType == ReaderQuery && tablet.MergeOnWrite() {
			r.strategy = directStrategy
		}
	case r.schema.KeysType == catalog.AggKeys:
		r.strategy = aggStrategy
	default:
		return internalErrorf("tablet %d: no read strategy for %s", tablet.ID, r.schema.KeysType)
	}
	if params.ReadOrderByKeyReverse && !params.ReadOrderByKey {
		return internalErrorf("tablet %d: reverse order without an order by key read", tablet.ID)
	}
	if params.ReadOrderByKeyReverse && r.strategy != directStrategy {
		return internalErrorf("tablet %d: reverse order is not supported by the %s strategy",
			tablet.ID, r.strategy)
	}

	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = options.DefaultBatchSize
	}
	r.rctx = &dataio.ReaderContext{
		Schema:        r.schema,
		ReturnColumns: params.ReturnColumns,
		KeyColumns:    keyColumns,
		BatchSize:     batchSize,
		Reverse:       params.ReadOrderByKeyReverse,
		RecordRowIDs:  params.RecordRowIDs,
	}
	return nil
}

func (r *BlockReader) initCollectIter(ctx context.Context) error {
	params := r.params
	timer := newScopedTimer(&r.stats.IterInitTime)
	overlapping := rowsetsNotMonoAscDisjoint(params.RsSplits)
	r.stats.Overlapping = overlapping
	timer.stop()
	if r.keysMissing && (overlapping || r.strategy != directStrategy) {
		return internalErrorf("tablet %d: every key column must be read to merge rows", params.Tablet.ID)
	}
	r.collectIter = iter.NewCollectIterator(r.rctx)
	r.collectIter.Init(overlapping, params.ReadOrderByKeyReverse,
		r.strategy == uniqueStrategy, r.strategy == aggStrategy)

	timer = newScopedTimer(&r.stats.RsReadersInitTime)
	for _, split := range params.RsSplits {
		if err := checkCancel(ctx); err != nil {
			timer.stop()
			return err
		}
		if err := r.addSplit(ctx, split); err != nil {
			timer.stop()
			return err
		}
	}
	timer.stop()

	timer = newScopedTimer(&r.stats.BuildHeapTime)
	defer timer.stop()
	err := r.collectIter.BuildHeap(ctx)
	if errors.Is(err, dataio.ErrEOF) {
		r.eof = true
		return nil
	}
	if err != nil {
		return err
	}
	return r.collectIter.CurrentRow(&r.nextRow)
}

// addSplit adds one child per split, or one per segment when the segments
// of a merged split overlap.
func (r *BlockReader) addSplit(ctx context.Context, split dataio.RowsetSplit) error {
	rs := split.Reader.Rowset()
	if !r.collectIter.IsMerge() || !rs.IsSegmentsOverlapping() {
		if err := split.Reader.Init(ctx, r.rctx, split); err != nil {
			return err
		}
		r.collectIter.AddChild(split.Reader)
		return nil
	}
	begin, end := split.Segments()
	for seg := begin; seg < end; seg++ {
		rd := split.Reader
		if seg > begin {
			rd = split.Reader.Clone()
		}
		segSplit := dataio.RowsetSplit{Reader: rd, SegmentOffsets: [2]int{seg, seg + 1}}
		if err := rd.Init(ctx, r.rctx, segSplit); err != nil {
			if rd != split.Reader {
				_ = rd.Close()
			}
			return err
		}
		r.collectIter.AddSegmentChild(rd, seg)
	}
	return nil
}

func (r *BlockReader) initDeleteFilter() error {
	idx := r.schema.DeleteSignIdx()
	if idx < 0 {
		r.logger.Warnf("filter delete requested but %s has no delete sign column, rows are not filtered", r.schema.Name)
		return nil
	}
	if typ := r.schema.ColDefs[idx].Type; typ.Oid != containers.T_int8 {
		return internalErrorf("tablet %d: delete sign column is %s", r.params.Tablet.ID, typ)
	}
	r.deleteSignAvailable = true
	r.deleteSignPos = indexOf(r.outputColumns, idx)
	return nil
}

// NewOutputBlock returns an empty block in output column order.
func (r *BlockReader) NewOutputBlock() *containers.Batch {
	return containers.BuildBatch(r.schema.Attrs(r.outputColumns), r.schema.Types(r.outputColumns))
}

// NextBlock refills dst with the next rows. The call returning the last
// rows reports eof as false. Every later call reports eof with dst empty.
// On error dst is emptied and the scan must be abandoned.
func (r *BlockReader) NextBlock(ctx context.Context, dst *containers.Batch) (eof bool, err error) {
	if r.closed || r.collectIter == nil {
		return false, internalErrorf("block reader is not open")
	}
	if dst.Width() != len(r.outputColumns) {
		return false, internalErrorf("output block has %d columns, want %d", dst.Width(), len(r.outputColumns))
	}
	dst.Reset()
	r.locs = r.locs[:0]
	if r.eof {
		return true, nil
	}
	if err = checkCancel(ctx); err == nil {
		switch r.strategy {
		case directStrategy:
			eof, err = r.directNextBlock(ctx, dst)
		case uniqueStrategy:
			err = r.uniqueNextBlock(ctx, dst)
		case aggStrategy:
			err = r.aggNextBlock(ctx, dst)
		}
	}
	if err != nil {
		err = markCancel(err)
		dst.Reset()
		r.locs = r.locs[:0]
		r.report(err)
		return false, err
	}
	if eof {
		return true, nil
	}
	r.stats.BlocksReturned++
	r.stats.RowsReturned += int64(dst.Length())
	return false, nil
}

// pull moves to the next row. Only errors other than end of stream are
// logged.
func (r *BlockReader) pull(ctx context.Context) error {
	if err := checkCancel(ctx); err != nil {
		return err
	}
	err := r.collectIter.Next(ctx, &r.nextRow)
	if err != nil && !errors.Is(err, dataio.ErrEOF) {
		r.logger.Warnf("next failed: %v", err)
	}
	return err
}

func (r *BlockReader) insertDataNormal(dst *containers.Batch) {
	for _, j := range r.normalColumnsIdx {
		dst.Vecs[r.returnColumnsLoc[j]].ExtendFrom(r.nextRow.Block.Vecs[j], r.nextRow.RowPos)
	}
}

// RowLocations lists the source of every row of the last block, in block
// order. Rows dropped by the delete filter are kept with an invalid row id.
// Only filled when RecordRowIDs is set. Valid until the next NextBlock.
func (r *BlockReader) RowLocations() []dataio.RowLocation { return r.locs }

func (r *BlockReader) Stats() Stats {
	s := r.stats
	if r.collectIter != nil {
		s.MergedRows += r.collectIter.MergedRows()
	}
	if r.agg != nil {
		s.ArenaPeakBytes = int64(r.agg.arenaPeak)
	}
	return s
}

func (r *BlockReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.agg != nil {
		r.agg.destroy()
	}
	var err error
	if r.collectIter != nil {
		err = r.collectIter.Close()
	}
	if r.params != nil && r.params.Metrics != nil {
		r.params.Metrics.RecordScan(r.schema.KeysType, r.Stats())
	}
	return err
}

func (r *BlockReader) report(err error) {
	if err == nil || errors.Is(err, dataio.ErrEOF) {
		return
	}
	if r.params != nil && r.params.ErrorReporter != nil {
		r.params.ErrorReporter(err)
	}
}

func (r *BlockReader) execVersion() int {
	if r.params.ExecVersion == 0 {
		return aggr.CurrentExecVersion
	}
	return r.params.ExecVersion
}

func indexOf(idxs []int, v int) int {
	for i, idx := range idxs {
		if idx == v {
			return i
		}
	}
	return -1
}
