package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"blockterrain.ai/internal/runner"
	"blockterrain.ai/internal/sim/export"
	"blockterrain.ai/internal/sim/preview"
	"blockterrain.ai/internal/sim/terrain"
	"blockterrain.ai/internal/sim/tuning"
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred closes flush the run log.
func run() int {
	var (
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory (empty disables recording)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite run index")
		archive    = flag.Bool("archive", false, "copy the snapshot and previews into <data>/archives")
		seed       = flag.Int64("seed", -1, "seed override (negative keeps the tuning seed)")
		strategy   = flag.String("strategy", "", "placement strategy override: eviction|subdivision")
		passes     = flag.Int("passes", 1, "number of passes; each after the first re-seeds from the previous seed")
		out        = flag.String("out", "", "write the last pass's batches and counts as JSON to this path")
		pngPath    = flag.String("png", "", "write a grayscale noise PNG of the last pass")
		heatmap    = flag.String("heatmap", "", "write noise and level heatmaps of the last pass with this path prefix (.png/.svg/.pdf)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[terrain] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			return 2
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *passes < 1 {
		fmt.Fprintln(os.Stderr, "-passes must be >= 1")
		return 2
	}

	data := strings.TrimSpace(*dataDir)
	r, err := runner.New(tune, logger, runner.Options{
		DataDir:   data,
		DisableDB: *disableDB,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "runner:", err)
		return 2
	}
	defer r.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := tune.Seed
	if *seed >= 0 {
		s = uint64(*seed)
	}
	var pass *terrain.Pass
	for i := 0; i < *passes; i++ {
		if i > 0 {
			s = terrain.NextSeed(s)
		}
		pass, err = r.Generate(ctx, &s, *strategy)
		if err != nil {
			fmt.Fprintln(os.Stderr, "generate:", err)
			return 1
		}
		fmt.Printf("run=%s seed=%d strategy=%s counts=%v total=%d digest=%s\n",
			pass.ID, pass.Seed, pass.Strategy, pass.Result.Counts, pass.Result.Total(), pass.Digest)
	}

	var extras []string
	if *out != "" {
		if err := writeResult(*out, pass); err != nil {
			fmt.Fprintln(os.Stderr, "write result:", err)
			return 1
		}
		extras = append(extras, *out)
	}
	if *pngPath != "" {
		if err := writePNG(*pngPath, pass); err != nil {
			fmt.Fprintln(os.Stderr, "write png:", err)
			return 1
		}
		extras = append(extras, *pngPath)
	}
	if *heatmap != "" {
		ext := filepath.Ext(*heatmap)
		if ext == "" {
			ext = ".png"
		}
		base := strings.TrimSuffix(*heatmap, filepath.Ext(*heatmap))
		noisePath := base + "-noise" + ext
		levelsPath := base + "-levels" + ext
		if err := preview.SaveHeatmap(noisePath, fmt.Sprintf("noise seed=%d", pass.Seed), preview.NoiseSurface(pass.Field)); err != nil {
			fmt.Fprintln(os.Stderr, "noise heatmap:", err)
			return 1
		}
		if err := preview.SaveHeatmap(levelsPath, fmt.Sprintf("levels %s seed=%d", pass.Strategy, pass.Seed), preview.LevelSurface(pass.Assignment)); err != nil {
			fmt.Fprintln(os.Stderr, "levels heatmap:", err)
			return 1
		}
		extras = append(extras, noisePath, levelsPath)
	}

	if *archive && data != "" {
		effective := r.Effective(&s, *strategy)
		rec, err := runner.ArchivePass(data, pass, effective, extras...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "archive:", err)
			return 1
		}
		r.Index().RecordArchive(pass.ID, rec)
		logger.Printf("archived %s", rec)
	}
	return 0
}

func writeResult(path string, pass *terrain.Pass) error {
	b, err := json.MarshalIndent(struct {
		RunID  string `json:"run_id"`
		Seed   uint64 `json:"seed"`
		Digest string `json:"digest"`
		*export.Result
	}{pass.ID, pass.Seed, pass.Digest, pass.Result}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

func writePNG(path string, pass *terrain.Pass) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := preview.WriteNoisePNG(f, pass.Field); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
