package sched

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
	"github.com/yireyun/go-queue"

	"olapscan/pkg/containers"
	"olapscan/pkg/dataio"
	"olapscan/pkg/options"
	"olapscan/pkg/reader"
)

var ErrClosed = errors.New("sched: scheduler closed")

type ScanTask struct {
	ID     uint64
	Params *reader.ReaderParams
}

// ScanResult carries one output block of a task, or its final state when
// Done is set. Block and Locs are owned by the receiver.
type ScanResult struct {
	TaskID uint64
	Block  *containers.Batch
	Locs   []dataio.RowLocation
	Stats  reader.Stats
	Err    error
	Done   bool
}

type pendingTask struct {
	ctx  context.Context
	task *ScanTask
}

// Scheduler runs scans on a bounded worker pool and funnels their blocks
// into one result queue. Submit never waits for a worker: tasks are queued
// and handed to the pool by a dispatcher goroutine, so the caller can submit
// everything before it starts reading results.
type Scheduler struct {
	opts    *options.Options
	pool    *ants.Pool
	results *queue.EsQueue
	running int64
	wg      sync.WaitGroup
	logger  *logrus.Entry

	mu      sync.Mutex
	pending []pendingTask
	closed  bool

	// one-slot wakeup channels
	dispatchC chan struct{}
	readyC    chan struct{}
	spaceC    chan struct{}
	closeC    chan struct{}
}

func NewScheduler(opts *options.Options) (*Scheduler, error) {
	opts = opts.FillDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{
		opts:      opts,
		results:   queue.NewQueue(uint32(opts.ResultQueueCapacity)),
		logger:    logrus.WithField("component", "scan-scheduler"),
		dispatchC: make(chan struct{}, 1),
		readyC:    make(chan struct{}, 1),
		spaceC:    make(chan struct{}, 1),
		closeC:    make(chan struct{}),
	}
	pool, err := ants.NewPool(opts.ScanWorkers, ants.WithPanicHandler(func(p interface{}) {
		s.logger.Errorf("scan worker panicked: %v", p)
	}))
	if err != nil {
		return nil, errors.Wrap(err, "sched: new pool")
	}
	s.pool = pool
	go s.dispatch()
	return s, nil
}

func notify(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}

// Submit queues a scan and returns at once. Its blocks show up in the
// iterator returned by Results, followed by one Done result.
func (s *Scheduler) Submit(ctx context.Context, task *ScanTask) error {
	if task.Params.BatchSize == 0 {
		task.Params.BatchSize = s.opts.BatchSize
	}
	if task.Params.ExecVersion == 0 {
		task.Params.ExecVersion = s.opts.ExecVersion
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	atomic.AddInt64(&s.running, 1)
	s.wg.Add(1)
	s.pending = append(s.pending, pendingTask{ctx: ctx, task: task})
	s.mu.Unlock()
	notify(s.dispatchC)
	return nil
}

func (s *Scheduler) popPending() (pendingTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return pendingTask{}, false
	}
	t := s.pending[0]
	s.pending[0] = pendingTask{}
	s.pending = s.pending[1:]
	return t, true
}

// dispatch feeds queued tasks to the pool. Blocking on a busy pool is fine
// here since the submitter is never on this goroutine.
func (s *Scheduler) dispatch() {
	for {
		select {
		case <-s.dispatchC:
		case <-s.closeC:
			for {
				t, ok := s.popPending()
				if !ok {
					return
				}
				s.logger.Debugf("task %d dropped on close", t.task.ID)
				s.finish()
			}
		}
		for {
			t, ok := s.popPending()
			if !ok {
				break
			}
			err := s.pool.Submit(func() {
				defer s.finish()
				s.run(t.ctx, t.task)
			})
			if err != nil {
				s.logger.Warnf("task %d not scheduled: %v", t.task.ID, err)
				s.finish()
			}
		}
	}
}

// finish is called once per submitted task after its Done result was pushed
// or dropped.
func (s *Scheduler) finish() {
	atomic.AddInt64(&s.running, -1)
	s.wg.Done()
	notify(s.readyC)
}

func (s *Scheduler) run(ctx context.Context, task *ScanTask) {
	logger := s.logger.WithField("task", task.ID)
	r := reader.NewBlockReader()
	done := &ScanResult{TaskID: task.ID, Done: true}
	if err := r.Init(ctx, task.Params); err != nil {
		done.Err = err
		s.put(ctx, done)
		return
	}
	for {
		dst := r.NewOutputBlock()
		eof, err := r.NextBlock(ctx, dst)
		if err != nil {
			done.Err = err
			break
		}
		if eof {
			break
		}
		if dst.Length() == 0 {
			continue
		}
		res := &ScanResult{TaskID: task.ID, Block: dst}
		if locs := r.RowLocations(); len(locs) > 0 {
			res.Locs = append([]dataio.RowLocation(nil), locs...)
		}
		if !s.put(ctx, res) {
			if ctx.Err() != nil {
				done.Err = errors.Mark(errors.Wrap(ctx.Err(), "sched: put result"), reader.ErrCancelled)
			} else {
				done.Err = ErrClosed
			}
			break
		}
	}
	if err := r.Close(); err != nil && done.Err == nil {
		done.Err = err
	}
	done.Stats = r.Stats()
	logger.Debugf("scan finished: %s", done.Stats.String())
	s.put(ctx, done)
}

// put waits while the queue is full. A Done result is delivered even after
// ctx is cancelled so the consumer learns the task ended. Nothing is
// delivered once the scheduler is closed.
func (s *Scheduler) put(ctx context.Context, res *ScanResult) bool {
	var cancelled <-chan struct{}
	if !res.Done {
		cancelled = ctx.Done()
	}
	for {
		if ok, qty := s.results.Put(res); ok {
			notify(s.readyC)
			// pass the slot wakeup on to the next waiting worker
			if int(qty) < s.opts.ResultQueueCapacity {
				notify(s.spaceC)
			}
			return true
		}
		select {
		case <-s.spaceC:
		case <-cancelled:
			return false
		case <-s.closeC:
			return false
		}
	}
}

// Wait blocks until every submitted task has pushed or dropped its Done
// result.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Close stops accepting tasks, drops the queued ones and makes running
// tasks give up on result delivery. It does not wait for them; use Wait.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.closeC)
	s.pool.Release()
}

// Results walks the blocks of every task submitted so far. It ends once
// all of them are done and the queue is drained.
func (s *Scheduler) Results() *ResultIterator {
	it := &ResultIterator{s: s}
	it.fetch()
	return it
}
