// Package observer serves read-only debug views of finished passes to
// loopback clients: the latest pass, its noise preview and the run index.
package observer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"blockterrain.ai/internal/persistence/indexdb"
	"blockterrain.ai/internal/sim/preview"
	"blockterrain.ai/internal/sim/terrain"
)

// Passes exposes the most recent pass. Last returns nil before the first.
type Passes interface {
	Last() *terrain.Pass
}

// Runs is the queryable run index.
type Runs interface {
	ListRuns(ctx context.Context, limit int) ([]indexdb.RunRow, error)
	GetRun(ctx context.Context, runID string) (indexdb.RunRow, error)
}

type Server struct {
	passes Passes
	runs   Runs
	log    *log.Logger
}

// NewServer serves passes and, when runs is non-nil, the run index.
func NewServer(passes Passes, runs Runs, logger *log.Logger) *Server {
	return &Server{passes: passes, runs: runs, log: logger}
}

// LatestSummary describes the most recent pass without its grids.
type LatestSummary struct {
	RunID       string  `json:"run_id"`
	Seed        uint64  `json:"seed"`
	Strategy    string  `json:"strategy"`
	Size        [3]int  `json:"size"`
	BlockSizes  []int   `json:"block_sizes"`
	Counts      []int   `json:"counts"`
	Active      int     `json:"active"`
	Digest      string  `json:"digest"`
	FieldDigest string  `json:"field_digest"`
	DurationMs  float64 `json:"duration_ms"`
	CreatedAt   string  `json:"created_at"`
}

// Register mounts the observer endpoints under /v1/observer/.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/observer/latest", s.loopback(s.latest))
	mux.HandleFunc("GET /v1/observer/latest/noise.png", s.loopback(s.latestNoise))
	mux.HandleFunc("GET /v1/observer/runs", s.loopback(s.listRuns))
	mux.HandleFunc("GET /v1/observer/runs/{id}", s.loopback(s.getRun))
}

func (s *Server) loopback(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func (s *Server) latest(rw http.ResponseWriter, r *http.Request) {
	p := s.passes.Last()
	if p == nil {
		http.Error(rw, "no pass yet", http.StatusNotFound)
		return
	}
	sz := p.Assignment.Size
	writeJSON(rw, LatestSummary{
		RunID:       p.ID,
		Seed:        p.Seed,
		Strategy:    p.Strategy,
		Size:        [3]int{sz.X, sz.Y, sz.Z},
		BlockSizes:  p.Levels,
		Counts:      p.Assignment.Counts,
		Active:      p.Field.CountActive(),
		Digest:      p.Digest,
		FieldDigest: p.FieldDigest,
		DurationMs:  float64(p.Timings.Total().Microseconds()) / 1000,
		CreatedAt:   p.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

func (s *Server) latestNoise(rw http.ResponseWriter, r *http.Request) {
	p := s.passes.Last()
	if p == nil {
		http.Error(rw, "no pass yet", http.StatusNotFound)
		return
	}
	rw.Header().Set("Content-Type", "image/png")
	if err := preview.WriteNoisePNG(rw, p.Field); err != nil {
		s.log.Printf("observer: noise png: %v", err)
	}
}

func (s *Server) listRuns(rw http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		http.Error(rw, "index disabled", http.StatusNotFound)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(rw, "bad limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 1000)
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.log.Printf("observer: list runs: %v", err)
		http.Error(rw, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(rw, runs)
}

func (s *Server) getRun(rw http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		http.Error(rw, "index disabled", http.StatusNotFound)
		return
	}
	row, err := s.runs.GetRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, indexdb.ErrNotFound) {
		http.Error(rw, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Printf("observer: get run: %v", err)
		http.Error(rw, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(rw, row)
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
