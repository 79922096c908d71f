// Package runner turns a tuning into generation passes and records every
// finished pass: a zstd snapshot, a run log entry and an index row.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"blockterrain.ai/internal/persistence/archive"
	"blockterrain.ai/internal/persistence/indexdb"
	runlog "blockterrain.ai/internal/persistence/log"
	"blockterrain.ai/internal/persistence/snapshot"
	"blockterrain.ai/internal/protocol"
	"blockterrain.ai/internal/sim/encoding"
	"blockterrain.ai/internal/sim/placement"
	"blockterrain.ai/internal/sim/terrain"
	"blockterrain.ai/internal/sim/tuning"
)

type Options struct {
	// DataDir is the root of snapshots/, runs/, index/ and archives/. Empty
	// disables recording.
	DataDir   string
	DisableDB bool
	// Archive copies every snapshot into archives/ as well.
	Archive bool
}

// Record points at what was written for a pass.
type Record struct {
	Snapshot string
	Archive  string
}

type Runner struct {
	tune   tuning.Tuning
	logger *log.Logger
	opts   Options

	runs         *runlog.RunLogger
	index        *indexdb.SQLiteIndex
	tuningDigest string

	mu   sync.Mutex
	last *terrain.Pass
}

func New(tune tuning.Tuning, logger *log.Logger, opts Options) (*Runner, error) {
	if err := tune.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	r := &Runner{tune: tune, logger: logger, opts: opts}
	if opts.DataDir == "" {
		return r, nil
	}
	r.runs = runlog.NewRunLogger(opts.DataDir)
	if !opts.DisableDB {
		idx, err := indexdb.OpenSQLite(filepath.Join(opts.DataDir, "index", "runs.sqlite"))
		if err != nil {
			_ = r.runs.Close()
			return nil, fmt.Errorf("open index: %w", err)
		}
		r.index = idx
		if r.tuningDigest, err = idx.UpsertTuning(tune); err != nil {
			logger.Printf("index: upsert tuning: %v", err)
		}
	}
	return r, nil
}

func (r *Runner) Tuning() tuning.Tuning { return r.tune }

// Index is nil when recording or the database is disabled.
func (r *Runner) Index() *indexdb.SQLiteIndex { return r.index }

// Last returns the most recent successful pass, or nil.
func (r *Runner) Last() *terrain.Pass {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Params describes a GENERATE without overrides.
func (r *Runner) Params() protocol.TerrainParams {
	t := r.tune
	return protocol.TerrainParams{
		Size:         [3]int{t.Grid.X, t.Grid.Y, t.Grid.Z},
		BlockSizes:   append([]int(nil), t.Levels.BlockSizes...),
		Strategy:     t.Placement.Strategy,
		Policy:       t.Placement.Policy,
		Source:       t.Noise.Source,
		Seed:         t.Seed,
		TuningDigest: r.tuningDigest,
	}
}

// Effective applies per-request overrides to the runner's tuning.
func (r *Runner) Effective(seed *uint64, strategy string) tuning.Tuning {
	t := r.tune
	if seed != nil {
		t.Seed = *seed
	}
	if strategy != "" {
		t.Placement.Strategy = strategy
	}
	return t
}

// Generate runs one pass and records it. A pass that fails to record is
// not returned.
func (r *Runner) Generate(ctx context.Context, seed *uint64, strategy string) (*terrain.Pass, error) {
	tune := r.Effective(seed, strategy)
	pass, err := Run(ctx, tune, r.logger)
	if err != nil {
		return nil, err
	}
	if _, err := r.Record(pass, tune); err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	r.mu.Lock()
	r.last = pass
	r.mu.Unlock()
	return pass, nil
}

// Run executes a single pass of tune without recording it.
func Run(ctx context.Context, tune tuning.Tuning, logger *log.Logger) (*terrain.Pass, error) {
	cfg, err := terrain.ConfigFromTuning(tune)
	if err != nil {
		return nil, err
	}
	gen, err := terrain.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	gen.InitSeed(tune.Seed)
	return gen.Generate(ctx)
}

// Record writes the snapshot, the run log entry and the index row of pass.
// It is a no-op without a data directory.
func (r *Runner) Record(pass *terrain.Pass, tune tuning.Tuning) (Record, error) {
	var rec Record
	if r.opts.DataDir == "" {
		return rec, nil
	}
	snap := Snapshot(pass, tune)
	rec.Snapshot = filepath.Join(r.opts.DataDir, "snapshots", snapshot.FileName(pass.Seed, pass.Digest))
	if err := os.MkdirAll(filepath.Dir(rec.Snapshot), 0o755); err != nil {
		return rec, err
	}
	if err := snapshot.WriteSnapshot(rec.Snapshot, snap); err != nil {
		return rec, fmt.Errorf("snapshot: %w", err)
	}
	if err := r.runs.WriteRun(RunEntry(pass, tune, rec.Snapshot)); err != nil {
		return rec, fmt.Errorf("run log: %w", err)
	}
	if r.index != nil {
		r.index.RecordRun(RunRow(pass, tune, rec.Snapshot))
	}
	if r.opts.Archive {
		dir, err := archive.ArchiveRun(r.opts.DataDir, rec.Snapshot, snap)
		if err != nil {
			return rec, fmt.Errorf("archive: %w", err)
		}
		rec.Archive = dir
		if r.index != nil {
			r.index.RecordArchive(pass.ID, dir)
		}
	}
	r.logger.Printf("recorded %s: snapshot=%s", pass.ID, rec.Snapshot)
	return rec, nil
}

// ArchivePass copies the recorded snapshot of pass and any extra files into
// dataDir/archives and returns the archive directory.
func ArchivePass(dataDir string, pass *terrain.Pass, tune tuning.Tuning, extras ...string) (string, error) {
	path := filepath.Join(dataDir, "snapshots", snapshot.FileName(pass.Seed, pass.Digest))
	return archive.ArchiveRun(dataDir, path, Snapshot(pass, tune), extras...)
}

func (r *Runner) Close() error {
	var errs []error
	if r.runs != nil {
		errs = append(errs, r.runs.Close())
	}
	if r.index != nil {
		errs = append(errs, r.index.Close())
	}
	return errors.Join(errs...)
}

func Snapshot(pass *terrain.Pass, tune tuning.Tuning) snapshot.SnapshotV1 {
	a := pass.Assignment
	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:  snapshot.Version,
			RunID:    pass.ID,
			Seed:     pass.Seed,
			Strategy: pass.Strategy,
			Digest:   pass.Digest,
		},
		Tuning:          tune,
		Offset:          pass.Offset,
		FieldDigest:     pass.FieldDigest,
		LevelsRLE:       encoding.EncodeLevels(a.Levels),
		Owner:           append([]int(nil), a.Owner...),
		Counts:          append([]int(nil), a.Counts...),
		CreatedAtUnixMs: pass.CreatedAt.UnixMilli(),
	}
}

func RunEntry(pass *terrain.Pass, tune tuning.Tuning, snapshotPath string) runlog.RunEntry {
	s := pass.Assignment.Size
	return runlog.RunEntry{
		RunID:       pass.ID,
		Seed:        pass.Seed,
		Strategy:    pass.Strategy,
		Policy:      policyName(pass.Strategy, tune),
		Size:        [3]int{s.X, s.Y, s.Z},
		BlockSizes:  append([]int(nil), pass.Levels...),
		Counts:      append([]int(nil), pass.Assignment.Counts...),
		Active:      pass.Field.CountActive(),
		Digest:      pass.Digest,
		FieldDigest: pass.FieldDigest,
		Snapshot:    snapshotPath,
		NoiseMs:     ms(pass.Timings.Noise),
		PlacementMs: ms(pass.Timings.Placement),
		ExportMs:    ms(pass.Timings.Export),
		CreatedAt:   pass.CreatedAt,
	}
}

func RunRow(pass *terrain.Pass, tune tuning.Tuning, snapshotPath string) indexdb.RunRow {
	s := pass.Assignment.Size
	return indexdb.RunRow{
		RunID:       pass.ID,
		Seed:        pass.Seed,
		Strategy:    pass.Strategy,
		Policy:      policyName(pass.Strategy, tune),
		SizeX:       s.X,
		SizeY:       s.Y,
		SizeZ:       s.Z,
		Active:      pass.Field.CountActive(),
		Assigned:    pass.Assignment.Assigned(),
		Digest:      pass.Digest,
		FieldDigest: pass.FieldDigest,
		Snapshot:    snapshotPath,
		DurationMs:  ms(pass.Timings.Total()),
		CreatedAt:   pass.CreatedAt,
		BlockSizes:  append([]int(nil), pass.Levels...),
		Counts:      append([]int(nil), pass.Assignment.Counts...),
	}
}

// The eviction policy means nothing to a subdivision pass.
func policyName(strategy string, tune tuning.Tuning) string {
	if strategy != placement.StrategyEviction {
		return ""
	}
	return tune.Placement.Policy
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
