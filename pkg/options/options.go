package options

import (
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"olapscan/pkg/aggr"
)

const (
	DefaultBatchSize           = 4096
	DefaultResultQueueCapacity = 1024
	DefaultLogLevel            = "info"
)

var ErrBadOptions = errors.New("olapscan: bad options")

type Options struct {
	BatchSize           int    `toml:"batch-size"`
	ExecVersion         int    `toml:"exec-version"`
	ScanWorkers         int    `toml:"scan-workers"`
	ResultQueueCapacity int    `toml:"result-queue-capacity"`
	LogLevel            string `toml:"log-level"`
}

func (o *Options) FillDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.ExecVersion <= 0 {
		o.ExecVersion = aggr.CurrentExecVersion
	}
	if o.ScanWorkers <= 0 {
		o.ScanWorkers = runtime.NumCPU()
	}
	if o.ResultQueueCapacity <= 0 {
		o.ResultQueueCapacity = DefaultResultQueueCapacity
	}
	if o.LogLevel == "" {
		o.LogLevel = DefaultLogLevel
	}
	return o
}

// Validate expects filled options.
func (o *Options) Validate() error {
	if o.ExecVersion < aggr.MinExecVersion || o.ExecVersion > aggr.CurrentExecVersion {
		return errors.Wrapf(ErrBadOptions, "exec version %d out of [%d,%d]",
			o.ExecVersion, aggr.MinExecVersion, aggr.CurrentExecVersion)
	}
	if _, err := logrus.ParseLevel(o.LogLevel); err != nil {
		return errors.Wrapf(ErrBadOptions, "log level %q", o.LogLevel)
	}
	return nil
}

func (o *Options) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(o.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Decode parses TOML text, then fills defaults.
func Decode(data string) (*Options, error) {
	o := new(Options)
	if _, err := toml.Decode(data, o); err != nil {
		return nil, errors.Wrap(err, "decode options")
	}
	o.FillDefaults()
	return o, o.Validate()
}

func LoadFile(path string) (*Options, error) {
	o := new(Options)
	if _, err := toml.DecodeFile(path, o); err != nil {
		return nil, errors.Wrapf(err, "load options from %s", path)
	}
	o.FillDefaults()
	return o, o.Validate()
}
