package sched

import (
	"sync/atomic"

	gbat "github.com/matrixorigin/matrixone/pkg/container/batch"

	"olapscan/pkg/containers"
	"olapscan/pkg/dataio"
	"olapscan/pkg/iface/handle"
)

var _ handle.BlockIt = (*ResultIterator)(nil)

// ResultIterator yields data blocks in arrival order. Done results are
// collected on the side and exposed by Finished.
type ResultIterator struct {
	s        *Scheduler
	cur      *ScanResult
	finished []*ScanResult
	err      error
}

func (it *ResultIterator) fetch() {
	s := it.s
	it.cur = nil
	for {
		v, ok, _ := s.results.Get()
		if ok {
			notify(s.spaceC)
			res := v.(*ScanResult)
			if !res.Done {
				it.cur = res
				return
			}
			it.finished = append(it.finished, res)
			if res.Err != nil && it.err == nil {
				it.err = res.Err
			}
			continue
		}
		// running drops only after a task pushed or dropped its Done result
		if atomic.LoadInt64(&s.running) == 0 && s.results.Quantity() == 0 {
			return
		}
		select {
		case <-s.readyC:
		case <-s.closeC:
			if s.results.Quantity() == 0 {
				return
			}
		}
	}
}

func (it *ResultIterator) Valid() bool { return it.cur != nil }
func (it *ResultIterator) Next()       { it.fetch() }

func (it *ResultIterator) Close() error {
	it.cur = nil
	return nil
}

func (it *ResultIterator) GetBlock() *containers.Batch           { return it.cur.Block }
func (it *ResultIterator) GetRowLocations() []dataio.RowLocation { return it.cur.Locs }
func (it *ResultIterator) GetResult() *ScanResult                { return it.cur }

func (it *ResultIterator) GetBatch() (*gbat.Batch, error) {
	return containers.ExportBatch(it.cur.Block)
}

// Finished returns the Done results seen so far.
func (it *ResultIterator) Finished() []*ScanResult { return it.finished }

// Err is the first task error seen so far.
func (it *ResultIterator) Err() error { return it.err }
