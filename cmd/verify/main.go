package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"blockterrain.ai/internal/persistence/snapshot"
	"blockterrain.ai/internal/runner"
)

func main() {
	var (
		snapPath = flag.String("snapshot", "", "path to .snap.zst (default: latest under -data)")
		dataDir  = flag.String("data", "./data", "runtime data directory")
		verbose  = flag.Bool("v", false, "log pass stages while replaying")
	)
	flag.Parse()

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		var err error
		if path, err = snapshot.Latest(filepath.Join(*dataDir, "snapshots")); err != nil {
			fmt.Fprintln(os.Stderr, "latest:", err)
			os.Exit(1)
		}
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot v%d run=%s seed=%d strategy=%s size=%dx%dx%d counts=%v\n",
		snap.Header.Version, snap.Header.RunID, snap.Header.Seed, snap.Header.Strategy,
		snap.Tuning.Grid.X, snap.Tuning.Grid.Y, snap.Tuning.Grid.Z, snap.Counts)

	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(os.Stdout, "[verify] ", log.LstdFlags|log.Lmicroseconds)
	}
	mismatches, err := runner.Verify(context.Background(), snap, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	if len(mismatches) > 0 {
		for _, m := range mismatches {
			fmt.Fprintln(os.Stderr, "mismatch", m)
		}
		os.Exit(1)
	}
	fmt.Printf("ok digest=%s\n", snap.Header.Digest)
}
