package sched

import (
	"context"
	"sort"
	"testing"

	"github.com/cockroachdb/errors"
	gvec "github.com/matrixorigin/matrixone/pkg/container/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"olapscan/pkg/catalog"
	"olapscan/pkg/dataio"
	"olapscan/pkg/options"
	"olapscan/pkg/reader"
)

func mockTask(id uint64, schema *catalog.Schema, from, to int32) (*ScanTask, *dataio.MockRowset) {
	var rows [][]any
	for k := from; k < to; k++ {
		rows = append(rows, []any{k, int64(k) * 10})
	}
	rs := dataio.NewMockRowset(id, dataio.Version{Start: 1, End: 1}, schema, dataio.MockSegment(schema, rows...))
	return &ScanTask{
		ID: id,
		Params: &reader.ReaderParams{
			Tablet:        catalog.MockTablet(id, schema),
			RsSplits:      []dataio.RowsetSplit{rs.Split()},
			ReturnColumns: schema.AllIdxs(),
			RecordRowIDs:  true,
		},
	}, rs
}

func newScheduler(t *testing.T) *Scheduler {
	s, err := NewScheduler(&options.Options{BatchSize: 4, ScanWorkers: 3, ResultQueueCapacity: 4})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSchedulerRunsTasks(t *testing.T) {
	ctx := context.Background()
	s := newScheduler(t)
	schema := catalog.MockSchema(catalog.DupKeys, "v")
	for i := 0; i < 5; i++ {
		task, _ := mockTask(uint64(i+1), schema, int32(i*100), int32(i*100+10))
		require.NoError(t, s.Submit(ctx, task))
		assert.Equal(t, 4, task.Params.BatchSize)
	}

	perTask := make(map[uint64][]int32)
	it := s.Results()
	for ; it.Valid(); it.Next() {
		res := it.GetResult()
		bat := it.GetBlock()
		assert.LessOrEqual(t, bat.Length(), 4)
		assert.Len(t, it.GetRowLocations(), bat.Length())
		exported, err := it.GetBatch()
		require.NoError(t, err)
		assert.Equal(t, bat.Length(), gvec.Length(exported.Vecs[0]))
		for i := 0; i < bat.Length(); i++ {
			perTask[res.TaskID] = append(perTask[res.TaskID], bat.Vecs[0].Get(i).(int32))
		}
	}
	require.NoError(t, it.Close())
	s.Wait()

	require.NoError(t, it.Err())
	assert.Len(t, it.Finished(), 5)
	for _, done := range it.Finished() {
		assert.Equal(t, int64(10), done.Stats.RowsReturned)
		assert.Equal(t, int64(3), done.Stats.BlocksReturned)
	}
	require.Len(t, perTask, 5)
	for id, keys := range perTask {
		require.Len(t, keys, 10)
		assert.True(t, sort.SliceIsSorted(keys, func(i, j int) bool { return keys[i] < keys[j] }))
		assert.Equal(t, int32(id-1)*100, keys[0])
	}
}

func TestSchedulerSubmitDoesNotWaitForResults(t *testing.T) {
	ctx := context.Background()
	s, err := NewScheduler(&options.Options{BatchSize: 2, ScanWorkers: 2, ResultQueueCapacity: 2})
	require.NoError(t, err)
	defer s.Close()
	schema := catalog.MockSchema(catalog.DupKeys, "v")
	// far more tasks than workers and more blocks than queue slots
	for i := 0; i < 20; i++ {
		task, _ := mockTask(uint64(i+1), schema, int32(i*10), int32(i*10+9))
		require.NoError(t, s.Submit(ctx, task))
	}

	rows := 0
	it := s.Results()
	for ; it.Valid(); it.Next() {
		rows += it.GetBlock().Length()
	}
	s.Wait()
	require.NoError(t, it.Err())
	assert.Equal(t, 20*9, rows)
	assert.Len(t, it.Finished(), 20)
}

func TestSchedulerCloseReleasesBlockedWorkers(t *testing.T) {
	ctx := context.Background()
	s, err := NewScheduler(&options.Options{BatchSize: 1, ScanWorkers: 2, ResultQueueCapacity: 2})
	require.NoError(t, err)
	schema := catalog.MockSchema(catalog.DupKeys, "v")
	for i := 0; i < 2; i++ {
		task, _ := mockTask(uint64(i+1), schema, 0, 16)
		require.NoError(t, s.Submit(ctx, task))
	}
	// nobody reads, so both workers end up waiting on a full queue
	s.Close()
	s.Wait()
	task, _ := mockTask(3, schema, 0, 1)
	assert.True(t, errors.Is(s.Submit(ctx, task), ErrClosed))
}

func TestSchedulerTaskError(t *testing.T) {
	ctx := context.Background()
	s := newScheduler(t)
	schema := catalog.MockSchema(catalog.DupKeys, "v")
	boom := errors.New("disk gone")

	good, _ := mockTask(1, schema, 0, 8)
	bad, rs := mockTask(2, schema, 0, 8)
	rs.WithReadError(boom, 1)
	bad.Params.RsSplits = []dataio.RowsetSplit{rs.Split()}
	require.NoError(t, s.Submit(ctx, good))
	require.NoError(t, s.Submit(ctx, bad))

	it := s.Results()
	for ; it.Valid(); it.Next() {
	}
	require.Len(t, it.Finished(), 2)
	assert.True(t, errors.Is(it.Err(), boom))
	for _, done := range it.Finished() {
		if done.TaskID == 1 {
			assert.NoError(t, done.Err)
		}
	}
}

func TestSchedulerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newScheduler(t)
	schema := catalog.MockSchema(catalog.DupKeys, "v")
	task, _ := mockTask(1, schema, 0, 8)
	require.NoError(t, s.Submit(ctx, task))

	it := s.Results()
	assert.False(t, it.Valid())
	require.Len(t, it.Finished(), 1)
	assert.True(t, errors.Is(it.Err(), reader.ErrCancelled))
}

func TestSchedulerClosed(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)
	s.Close()
	s.Close()
	s.Wait()
	task, _ := mockTask(1, catalog.MockSchema(catalog.DupKeys, "v"), 0, 1)
	assert.True(t, errors.Is(s.Submit(context.Background(), task), ErrClosed))

	_, err = NewScheduler(&options.Options{ExecVersion: 99})
	assert.True(t, errors.Is(err, options.ErrBadOptions))
}
