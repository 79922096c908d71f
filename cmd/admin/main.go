package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"blockterrain.ai/internal/persistence/snapshot"
	"blockterrain.ai/internal/sim/encoding"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "show":
			showCmd(os.Args[2:])
			return
		case "latest":
			latestCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints one header per snapshot, newest name last.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	dir := filepath.Join(*dataDir, "snapshots")
	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".snap.zst") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		h, err := snapshot.ReadHeader(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			continue
		}
		fmt.Printf("%s run=%s seed=%d strategy=%s digest=%s\n", name, h.RunID, h.Seed, h.Strategy, short(h.Digest))
	}
}

// showCmd prints a snapshot summary; -snapshot defaults to the latest.
func showCmd(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		var err error
		if path, err = snapshot.Latest(filepath.Join(*dataDir, "snapshots")); err != nil {
			fmt.Fprintln(os.Stderr, "latest:", err)
			os.Exit(1)
		}
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run the generator first")
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	levels, err := encoding.DecodeLevels(snap.LevelsRLE, snap.Tuning.Grid.Len())
	if err != nil {
		fmt.Fprintln(os.Stderr, "decode levels:", err)
		os.Exit(1)
	}
	covered := 0
	for _, o := range snap.Owner {
		if o >= 0 {
			covered++
		}
	}
	printJSON(struct {
		Path        string          `json:"path"`
		Header      snapshot.Header `json:"header"`
		Size        [3]int          `json:"size"`
		BlockSizes  []int           `json:"block_sizes"`
		Counts      []int           `json:"counts"`
		Cells       int             `json:"cells"`
		Covered     int             `json:"covered"`
		FieldDigest string          `json:"field_digest"`
		CreatedAtMs int64           `json:"created_at_unix_ms"`
	}{
		Path:        path,
		Header:      snap.Header,
		Size:        [3]int{snap.Tuning.Grid.X, snap.Tuning.Grid.Y, snap.Tuning.Grid.Z},
		BlockSizes:  snap.Tuning.Levels.BlockSizes,
		Counts:      snap.Counts,
		Cells:       len(levels),
		Covered:     covered,
		FieldDigest: snap.FieldDigest,
		CreatedAtMs: snap.CreatedAtUnixMs,
	})
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}

func short(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
