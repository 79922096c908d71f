package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const runColumns = `run_id,seed,strategy,COALESCE(policy,''),size_x,size_y,size_z,active,assigned,digest,field_digest,COALESCE(snapshot_path,''),duration_ms,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (RunRow, error) {
	var (
		r       RunRow
		seed    int64
		created string
	)
	if err := sc.Scan(&r.RunID, &seed, &r.Strategy, &r.Policy, &r.SizeX, &r.SizeY, &r.SizeZ,
		&r.Active, &r.Assigned, &r.Digest, &r.FieldDigest, &r.Snapshot, &r.DurationMs, &created); err != nil {
		return r, err
	}
	r.Seed = uint64(seed)
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return r, nil
}

// ListRuns returns the most recent runs first, without per-level data.
func (s *SQLiteIndex) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	return ListRuns(ctx, s.db, limit)
}

func (s *SQLiteIndex) GetRun(ctx context.Context, runID string) (RunRow, error) {
	return GetRun(ctx, s.db, runID)
}

// ListRuns works on any handle to the index database, so tools can read
// without starting a writer.
func ListRuns(ctx context.Context, db *sql.DB, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunRow
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns a run with its per-level block sizes and counts.
func GetRun(ctx context.Context, db *sql.DB, runID string) (RunRow, error) {
	r, err := scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id=?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, err
	}
	rows, err := db.QueryContext(ctx, `SELECT block_size,count FROM run_levels WHERE run_id=? ORDER BY level`, runID)
	if err != nil {
		return r, err
	}
	defer rows.Close()
	for rows.Next() {
		var bs, c int
		if err := rows.Scan(&bs, &c); err != nil {
			return r, err
		}
		r.BlockSizes = append(r.BlockSizes, bs)
		r.Counts = append(r.Counts, c)
	}
	return r, rows.Err()
}
