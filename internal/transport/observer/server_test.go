package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"blockterrain.ai/internal/persistence/indexdb"
	"blockterrain.ai/internal/runner"
	"blockterrain.ai/internal/sim/grid"
	"blockterrain.ai/internal/sim/terrain"
	"blockterrain.ai/internal/sim/tuning"
)

type fixedPasses struct{ p *terrain.Pass }

func (f fixedPasses) Last() *terrain.Pass { return f.p }

type memRuns []indexdb.RunRow

func (m memRuns) ListRuns(ctx context.Context, limit int) ([]indexdb.RunRow, error) {
	return m[:min(limit, len(m))], nil
}

func (m memRuns) GetRun(ctx context.Context, runID string) (indexdb.RunRow, error) {
	for _, r := range m {
		if r.RunID == runID {
			return r, nil
		}
	}
	return indexdb.RunRow{}, indexdb.ErrNotFound
}

func newTestServer(t *testing.T, passes Passes, runs Runs) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewServer(passes, runs, log.New(io.Discard, "", 0)).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

func TestLatest(t *testing.T) {
	srv := newTestServer(t, fixedPasses{}, nil)
	if code, _ := get(t, srv.URL+"/v1/observer/latest"); code != http.StatusNotFound {
		t.Fatalf("before any pass: status=%d", code)
	}

	tu := tuning.Defaults()
	tu.Grid = grid.Size{X: 12, Y: 10}
	pass, err := runner.Run(context.Background(), tu, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	srv = newTestServer(t, fixedPasses{pass}, nil)

	code, body := get(t, srv.URL+"/v1/observer/latest")
	if code != http.StatusOK {
		t.Fatalf("status=%d body=%s", code, body)
	}
	var sum LatestSummary
	if err := json.Unmarshal(body, &sum); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sum.RunID != pass.ID || sum.Digest != pass.Digest || sum.Size != [3]int{12, 10, 0} {
		t.Fatalf("summary=%+v", sum)
	}

	code, body = get(t, srv.URL+"/v1/observer/latest/noise.png")
	if code != http.StatusOK {
		t.Fatalf("png status=%d", code)
	}
	img, err := png.Decode(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 12 || b.Dy() != 10 {
		t.Fatalf("png bounds=%v", b)
	}
}

func TestRuns(t *testing.T) {
	runs := memRuns{{RunID: "b", Seed: 2}, {RunID: "a", Seed: 1}}
	srv := newTestServer(t, fixedPasses{}, runs)

	code, body := get(t, srv.URL+"/v1/observer/runs?limit=1")
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	var rows []indexdb.RunRow
	if err := json.Unmarshal(body, &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 1 || rows[0].RunID != "b" {
		t.Fatalf("rows=%+v", rows)
	}
	if code, _ := get(t, srv.URL+"/v1/observer/runs?limit=x"); code != http.StatusBadRequest {
		t.Fatalf("bad limit status=%d", code)
	}
	if code, _ := get(t, srv.URL+"/v1/observer/runs/a"); code != http.StatusOK {
		t.Fatalf("get run status=%d", code)
	}
	if code, _ := get(t, srv.URL+"/v1/observer/runs/zzz"); code != http.StatusNotFound {
		t.Fatalf("missing run status=%d", code)
	}

	srv = newTestServer(t, fixedPasses{}, nil)
	if code, _ := get(t, srv.URL+"/v1/observer/runs"); code != http.StatusNotFound {
		t.Fatalf("disabled index status=%d", code)
	}
}

func TestLoopbackOnly(t *testing.T) {
	mux := http.NewServeMux()
	NewServer(fixedPasses{}, nil, log.New(io.Discard, "", 0)).Register(mux)
	req := httptest.NewRequest(http.MethodGet, "/v1/observer/latest", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d", rec.Code)
	}
	if !isLoopbackRemote("[::1]:80") || isLoopbackRemote("example.com:80") {
		t.Fatalf("isLoopbackRemote mismatch")
	}
}
