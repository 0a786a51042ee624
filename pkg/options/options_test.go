package options

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"olapscan/pkg/aggr"
)

func TestFillDefaults(t *testing.T) {
	var o *Options
	o = o.FillDefaults()
	assert.Equal(t, DefaultBatchSize, o.BatchSize)
	assert.Equal(t, aggr.CurrentExecVersion, o.ExecVersion)
	assert.Equal(t, runtime.NumCPU(), o.ScanWorkers)
	assert.Equal(t, DefaultResultQueueCapacity, o.ResultQueueCapacity)
	assert.Equal(t, logrus.InfoLevel, o.Level())
	assert.NoError(t, o.Validate())

	o = (&Options{BatchSize: 7, ScanWorkers: 2}).FillDefaults()
	assert.Equal(t, 7, o.BatchSize)
	assert.Equal(t, 2, o.ScanWorkers)
}

func TestDecode(t *testing.T) {
	o, err := Decode(`
batch-size = 16
exec-version = 1
log-level = "debug"
`)
	require.NoError(t, err)
	assert.Equal(t, 16, o.BatchSize)
	assert.Equal(t, 1, o.ExecVersion)
	assert.Equal(t, logrus.DebugLevel, o.Level())
	assert.Equal(t, DefaultResultQueueCapacity, o.ResultQueueCapacity)

	_, err = Decode(`exec-version = 99`)
	assert.True(t, errors.Is(err, ErrBadOptions))
	_, err = Decode(`log-level = "loud"`)
	assert.True(t, errors.Is(err, ErrBadOptions))
	_, err = Decode(`batch-size = "many"`)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.toml")
	require.NoError(t, os.WriteFile(path, []byte("scan-workers = 3\n"), 0o644))
	o, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, o.ScanWorkers)
	assert.Equal(t, DefaultBatchSize, o.BatchSize)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
