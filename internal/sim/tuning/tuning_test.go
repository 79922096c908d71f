package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"blockterrain.ai/internal/sim/grid"
)

func TestDefaults_Valid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_RepoConfig(t *testing.T) {
	p := filepath.Join("..", "..", "..", "configs", "tuning.yaml")
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.Grid.X <= 0 || len(tu.Levels.BlockSizes) == 0 {
		t.Fatalf("unexpected tuning: %+v", tu)
	}
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	tu, err := Parse([]byte(`
seed: 7
grid: {x: 8, y: 6, z: 4}
noise:
  scale: [2, 2, 2]
  curve:
    - {time: 0, value: 1}
    - {time: 1, value: 0}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tu.Seed != 7 || tu.Grid != (grid.Size{X: 8, Y: 6, Z: 4}) {
		t.Fatalf("seed/grid not applied: %+v", tu)
	}
	if diff := cmp.Diff(Defaults().Levels, tu.Levels); diff != "" {
		t.Fatalf("levels lost defaults:\n%s", diff)
	}
	if tu.Noise.Source != "perlin" || !tu.Noise.RoundFilter {
		t.Fatalf("noise defaults lost: %+v", tu.Noise)
	}
	if len(tu.Noise.Curve) != 2 {
		t.Fatalf("curve=%+v", tu.Noise.Curve)
	}
}

func TestParse_SchemaRejects(t *testing.T) {
	cases := map[string]string{
		"unknown field":   "grid: {x: 4, y: 4}\nbogus: 1\n",
		"zero dimension":  "grid: {x: 0, y: 4}\n",
		"bad source":      "noise: {source: worley}\n",
		"bad strategy":    "placement: {strategy: wfc}\n",
		"split above one": "placement: {split_chance: 1.5}\n",
		"empty levels":    "levels: {block_sizes: []}\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParse_SemanticRejects(t *testing.T) {
	_, err := Parse([]byte("grid: {x: 4, y: 4, z: 4}\nnoise: {scale: [1, 1]}\n"))
	if err == nil || !strings.Contains(err.Error(), "noise.scale") {
		t.Fatalf("expected scale arity error, got %v", err)
	}
	_, err = Parse([]byte("noise:\n  curve:\n    - {time: 0.5, value: 1}\n    - {time: 0.5, value: 0}\n"))
	if err == nil {
		t.Fatalf("expected curve error")
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
