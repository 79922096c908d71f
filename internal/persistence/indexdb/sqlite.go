package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"blockterrain.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable read model of finished passes. Writes go
// through a buffered channel to one writer goroutine; the JSONL run log and
// snapshots remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRun     atomic.Uint64
	dropArchive atomic.Uint64
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqArchive
)

type req struct {
	kind reqKind

	run     RunRow
	archive archiveRow
}

// RunRow is one indexed pass.
type RunRow struct {
	RunID       string    `json:"run_id"`
	Seed        uint64    `json:"seed"`
	Strategy    string    `json:"strategy"`
	Policy      string    `json:"policy,omitempty"`
	SizeX       int       `json:"size_x"`
	SizeY       int       `json:"size_y"`
	SizeZ       int       `json:"size_z"`
	Active      int       `json:"active"`
	Assigned    int       `json:"assigned"`
	Digest      string    `json:"digest"`
	FieldDigest string    `json:"field_digest"`
	Snapshot    string    `json:"snapshot"`
	DurationMs  float64   `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`

	BlockSizes []int `json:"block_sizes"`
	Counts     []int `json:"counts"`
}

type archiveRow struct {
	RunID      string
	Dir        string
	RecordedAt string
}

type Stats struct {
	QueueDepth       int
	QueueCapacity    int
	DropRunTotal     uint64
	DropArchiveTotal uint64
}

var ErrNotFound = errors.New("indexdb: not found")

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS configs (
			digest TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			strategy TEXT NOT NULL,
			policy TEXT,
			size_x INTEGER NOT NULL,
			size_y INTEGER NOT NULL,
			size_z INTEGER NOT NULL,
			active INTEGER NOT NULL,
			assigned INTEGER NOT NULL,
			digest TEXT NOT NULL,
			field_digest TEXT NOT NULL,
			snapshot_path TEXT,
			duration_ms REAL NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);`,
		`CREATE TABLE IF NOT EXISTS run_levels (
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			level INTEGER NOT NULL,
			block_size INTEGER NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (run_id, level)
		);`,
		`CREATE TABLE IF NOT EXISTS archives (
			run_id TEXT PRIMARY KEY,
			dir TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`)
	return err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordRun queues a pass. It never blocks; when the writer falls behind
// the row is dropped and counted.
func (s *SQLiteIndex) RecordRun(r RunRow) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqRun, run: r}:
	default:
		s.dropRun.Add(1)
	}
}

func (s *SQLiteIndex) RecordArchive(runID, dir string) {
	if s == nil || s.closed.Load() || runID == "" || dir == "" {
		return
	}
	r := archiveRow{RunID: runID, Dir: dir, RecordedAt: time.Now().UTC().Format(time.RFC3339Nano)}
	select {
	case s.ch <- req{kind: reqArchive, archive: r}:
	default:
		s.dropArchive.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropRunTotal:     s.dropRun.Load(),
		DropArchiveTotal: s.dropArchive.Load(),
	}
}

// UpsertTuning stores the effective tuning as canonical JSON keyed by its
// digest, and returns the digest.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) (string, error) {
	b, err := json.Marshal(tune)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	digest := hex.EncodeToString(sum[:])
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO configs(digest,json,updated_at) VALUES(?,?,?)`, digest, string(b), now); err != nil {
		return "", err
	}
	return digest, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()
	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,seed,strategy,policy,size_x,size_y,size_z,active,assigned,digest,field_digest,snapshot_path,duration_ms,created_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertLevel, _ := s.db.Prepare(`INSERT OR REPLACE INTO run_levels(run_id,level,block_size,count) VALUES(?,?,?,?)`)
	insertArchive, _ := s.db.Prepare(`INSERT OR REPLACE INTO archives(run_id,dir,recorded_at) VALUES(?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertRun, insertLevel, insertArchive} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)
	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for {
		var (
			r  req
			ok bool
		)
		// Commit when the queue drains so readers see finished passes
		// promptly.
		select {
		case r, ok = <-s.ch:
		default:
			if tx != nil {
				commit()
			}
			r, ok = <-s.ch
		}
		if !ok {
			commit()
			return
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			if insertRun == nil || insertLevel == nil {
				continue
			}
			run := r.run
			if _, err := tx.Stmt(insertRun).Exec(
				run.RunID, int64(run.Seed), run.Strategy, run.Policy,
				run.SizeX, run.SizeY, run.SizeZ,
				run.Active, run.Assigned,
				run.Digest, run.FieldDigest, run.Snapshot,
				run.DurationMs, run.CreatedAt.UTC().Format(time.RFC3339Nano),
			); err != nil {
				rollback()
				continue
			}
			opCount++
			failed := false
			for l, c := range run.Counts {
				bs := 0
				if l < len(run.BlockSizes) {
					bs = run.BlockSizes[l]
				}
				if _, err := tx.Stmt(insertLevel).Exec(run.RunID, l, bs, c); err != nil {
					failed = true
					break
				}
				opCount++
			}
			if failed {
				rollback()
				continue
			}
		case reqArchive:
			if insertArchive == nil {
				continue
			}
			a := r.archive
			if _, err := tx.Stmt(insertArchive).Exec(a.RunID, a.Dir, a.RecordedAt); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
}
