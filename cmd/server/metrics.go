package main

import (
	"fmt"
	"io"

	"blockterrain.ai/internal/persistence/indexdb"
	"blockterrain.ai/internal/sim/terrain"
	"blockterrain.ai/internal/transport/ws"
)

// writeMetrics renders the Prometheus text exposition for the server.
func writeMetrics(w io.Writer, s ws.Stats, idx indexdb.Stats, last *terrain.Pass) {
	fmt.Fprintf(w, "# HELP blockterrain_passes_total Passes delivered over websocket.\n")
	fmt.Fprintf(w, "# TYPE blockterrain_passes_total counter\n")
	fmt.Fprintf(w, "blockterrain_passes_total %d\n", s.Passes)

	fmt.Fprintf(w, "# HELP blockterrain_busy_total GENERATE requests rejected with E_BUSY.\n")
	fmt.Fprintf(w, "# TYPE blockterrain_busy_total counter\n")
	fmt.Fprintf(w, "blockterrain_busy_total %d\n", s.BusyTotal)

	fmt.Fprintf(w, "# HELP blockterrain_passes_in_flight Passes running now.\n")
	fmt.Fprintf(w, "# TYPE blockterrain_passes_in_flight gauge\n")
	fmt.Fprintf(w, "blockterrain_passes_in_flight %d\n", s.InFlight)
	fmt.Fprintf(w, "blockterrain_passes_max %d\n", s.MaxPasses)

	fmt.Fprintf(w, "# HELP blockterrain_index_queue_depth SQLite index writer backlog.\n")
	fmt.Fprintf(w, "# TYPE blockterrain_index_queue_depth gauge\n")
	fmt.Fprintf(w, "blockterrain_index_queue_depth %d\n", idx.QueueDepth)
	fmt.Fprintf(w, "blockterrain_index_dropped_total{kind=%q} %d\n", "run", idx.DropRunTotal)
	fmt.Fprintf(w, "blockterrain_index_dropped_total{kind=%q} %d\n", "archive", idx.DropArchiveTotal)

	if last == nil {
		return
	}
	fmt.Fprintf(w, "# HELP blockterrain_last_pass_blocks Blocks per level in the latest pass.\n")
	fmt.Fprintf(w, "# TYPE blockterrain_last_pass_blocks gauge\n")
	for l, c := range last.Assignment.Counts {
		fmt.Fprintf(w, "blockterrain_last_pass_blocks{level=\"%d\",block_size=\"%d\"} %d\n", l, last.Levels.BlockSize(l), c)
	}
	fmt.Fprintf(w, "# HELP blockterrain_last_pass_stage_ms Stage durations of the latest pass.\n")
	fmt.Fprintf(w, "# TYPE blockterrain_last_pass_stage_ms gauge\n")
	fmt.Fprintf(w, "blockterrain_last_pass_stage_ms{stage=%q} %.3f\n", "noise", ms(last.Timings.Noise.Microseconds()))
	fmt.Fprintf(w, "blockterrain_last_pass_stage_ms{stage=%q} %.3f\n", "placement", ms(last.Timings.Placement.Microseconds()))
	fmt.Fprintf(w, "blockterrain_last_pass_stage_ms{stage=%q} %.3f\n", "export", ms(last.Timings.Export.Microseconds()))
}

func ms(us int64) float64 { return float64(us) / 1000 }
