package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"blockterrain.ai/internal/persistence/indexdb"
)

// dbCmd queries the run index: `db runs`, `db run <id>`, `db levels`,
// `db archives`.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "runs.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()
	ctx := context.Background()

	switch q {
	case "runs":
		runs, err := indexdb.ListRuns(ctx, db, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range runs {
			printJSON(r)
		}

	case "run":
		if fs.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "usage: admin db run <run_id>")
			os.Exit(2)
		}
		r, err := indexdb.GetRun(ctx, db, fs.Arg(1))
		if errors.Is(err, indexdb.ErrNotFound) {
			fmt.Fprintln(os.Stderr, "no such run:", fs.Arg(1))
			os.Exit(1)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		printJSON(r)

	case "levels":
		rows, err := db.QueryContext(ctx, `SELECT block_size, COUNT(*), SUM(count), MAX(count) FROM run_levels GROUP BY block_size ORDER BY block_size`)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				BlockSize int   `json:"block_size"`
				Runs      int   `json:"runs"`
				Total     int64 `json:"total"`
				Max       int   `json:"max"`
			}
			if err := rows.Scan(&r.BlockSize, &r.Runs, &r.Total, &r.Max); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "archives":
		rows, err := db.QueryContext(ctx, `SELECT run_id, dir, recorded_at FROM archives ORDER BY recorded_at DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				RunID      string `json:"run_id"`
				Dir        string `json:"dir"`
				RecordedAt string `json:"recorded_at"`
			}
			if err := rows.Scan(&r.RunID, &r.Dir, &r.RecordedAt); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		os.Exit(2)
	}
}
