package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"runtime/pprof"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	gvec "github.com/matrixorigin/matrixone/pkg/container/vector"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"olapscan/pkg/catalog"
	"olapscan/pkg/dataio"
	"olapscan/pkg/metrics"
	"olapscan/pkg/options"
	"olapscan/pkg/reader"
	"olapscan/pkg/sched"
)

var (
	configPath = flag.String("config", "", "bench config file")
	cpuprofile = flag.String("cpuprofile", "", "write a cpu profile to this file")
	seed       = flag.Int64("seed", 1, "row generator seed")
	export     = flag.Bool("export", false, "convert every block to a matrixone batch")
)

type tabletConfig struct {
	ID            uint64 `toml:"id"`
	KeysType      string `toml:"keys-type"`
	Values        int    `toml:"values"`
	Rowsets       int    `toml:"rowsets"`
	EmptyRowsets  int    `toml:"empty-rowsets"`
	RowsPerRowset int    `toml:"rows-per-rowset"`
	KeySpace      int    `toml:"key-space"`
	Overlapping   bool   `toml:"overlapping"`
	RecordRowIDs  bool   `toml:"record-row-ids"`
}

type benchConfig struct {
	Options *options.Options `toml:"options"`
	Tablets []tabletConfig   `toml:"tablets"`
}

var defaultConfig = benchConfig{
	Tablets: []tabletConfig{
		{ID: 1, KeysType: "DUP_KEYS", Values: 2, Rowsets: 8, EmptyRowsets: 2, RowsPerRowset: 20000},
		{ID: 2, KeysType: "UNIQUE_KEYS", Values: 2, Rowsets: 8, RowsPerRowset: 20000, KeySpace: 50000, Overlapping: true},
		{ID: 3, KeysType: "AGG_KEYS", Values: 2, Rowsets: 8, RowsPerRowset: 20000, KeySpace: 5000, Overlapping: true},
	},
}

func loadConfig(path string) (*benchConfig, error) {
	if path == "" {
		cfg := defaultConfig
		return &cfg, nil
	}
	cfg := &benchConfig{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return cfg, nil
}

func parseKeysType(s string) (catalog.KeysType, error) {
	for _, kt := range []catalog.KeysType{catalog.DupKeys, catalog.UniqueKeys, catalog.AggKeys} {
		if strings.EqualFold(s, kt.String()) {
			return kt, nil
		}
	}
	return 0, errors.Newf("unknown keys type %q", s)
}

func valueNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = "v" + string(rune('a'+i%26))
	}
	return names
}

// mockRowsets lays out disjoint ascending key ranges unless overlapping is
// set, in which case every rowset draws from the whole key space.
func mockRowsets(cfg tabletConfig, schema *catalog.Schema, rnd *rand.Rand) []*dataio.MockRowset {
	rowsets := make([]*dataio.MockRowset, 0, cfg.Rowsets)
	for i := 0; i < cfg.Rowsets; i++ {
		keys := make([]int32, cfg.RowsPerRowset)
		for j := range keys {
			if cfg.Overlapping {
				keys[j] = int32(rnd.Intn(cfg.KeySpace))
			} else {
				keys[j] = int32(i*cfg.RowsPerRowset + j)
			}
		}
		if cfg.Overlapping {
			sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })
		}
		rows := make([][]any, len(keys))
		for j, k := range keys {
			row := make([]any, 1+cfg.Values)
			row[0] = k
			for c := 1; c <= cfg.Values; c++ {
				row[c] = rnd.Int63n(1000)
			}
			rows[j] = row
		}
		version := dataio.Version{Start: int64(i + 1), End: int64(i + 1)}
		rowsets = append(rowsets, dataio.NewMockRowset(uint64(i+1), version, schema, dataio.MockSegment(schema, rows...)))
	}
	return rowsets
}

func buildTask(cfg tabletConfig, rnd *rand.Rand) (*sched.ScanTask, error) {
	kt, err := parseKeysType(cfg.KeysType)
	if err != nil {
		return nil, err
	}
	if cfg.KeySpace <= 0 {
		cfg.KeySpace = cfg.Rowsets * cfg.RowsPerRowset
	}
	schema := catalog.MockSchema(kt, valueNames(cfg.Values)...)
	rowsets := mockRowsets(cfg, schema, rnd)
	splits := make([]dataio.RowsetSplit, len(rowsets))
	for i, rs := range rowsets {
		splits[i] = rs.Split()
	}
	// rowsets left empty by a delete or a compaction still show up in a scan
	for i := 0; i < cfg.EmptyRowsets; i++ {
		id := uint64(cfg.Rowsets + i + 1)
		empty := &dataio.NoopRowset{RowsetID: id, RowsetVersion: dataio.Version{Start: int64(id), End: int64(id)}}
		splits = append(splits, empty.Split())
	}
	return &sched.ScanTask{
		ID: cfg.ID,
		Params: &reader.ReaderParams{
			Tablet:        catalog.MockTablet(cfg.ID, schema),
			ReaderType:    reader.ReaderQuery,
			Version:       dataio.Version{Start: 0, End: int64(cfg.Rowsets + cfg.EmptyRowsets)},
			RsSplits:      splits,
			ReturnColumns: schema.AllIdxs(),
			RecordRowIDs:  cfg.RecordRowIDs,
			ErrorReporter: func(err error) {
				logrus.WithField("tablet", cfg.ID).Errorf("scan failed: %v", err)
			},
		},
	}, nil
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		logrus.Fatal(err)
	}
}

func run() error {
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	cfg.Options = cfg.Options.FillDefaults()
	if err := cfg.Options.Validate(); err != nil {
		return err
	}
	logrus.SetLevel(cfg.Options.Level())

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	m := metrics.NewScanMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		return err
	}

	s, err := sched.NewScheduler(cfg.Options)
	if err != nil {
		return err
	}
	defer s.Close()

	rnd := rand.New(rand.NewSource(*seed))
	ctx := context.Background()
	for _, tc := range cfg.Tablets {
		task, err := buildTask(tc, rnd)
		if err != nil {
			return err
		}
		task.Params.Metrics = m
		if err := s.Submit(ctx, task); err != nil {
			return err
		}
	}

	start := time.Now()
	var blocks, rows int
	it := s.Results()
	for ; it.Valid(); it.Next() {
		blocks++
		if !*export {
			rows += it.GetBlock().Length()
			continue
		}
		bat, err := it.GetBatch()
		if err != nil {
			return err
		}
		rows += gvec.Length(bat.Vecs[0])
	}
	_ = it.Close()
	s.Wait()
	logrus.Infof("scanned %d rows in %d blocks, takes %s", rows, blocks, time.Since(start))
	for _, done := range it.Finished() {
		entry := logrus.WithField("tablet", done.TaskID)
		if done.Err != nil {
			entry.Errorf("failed: %v", done.Err)
			continue
		}
		entry.Info(done.Stats.String())
	}

	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				logrus.Debugf("%s%v = %v", mf.GetName(), metric.GetLabel(), c.GetValue())
			}
		}
	}
	return it.Err()
}
