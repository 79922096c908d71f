package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"blockterrain.ai/internal/sim/curve"
	"blockterrain.ai/internal/sim/grid"
)

type Tuning struct {
	Seed uint64    `yaml:"seed" json:"seed"`
	Grid grid.Size `yaml:"grid" json:"grid"`

	Noise     Noise     `yaml:"noise" json:"noise"`
	Levels    Levels    `yaml:"levels" json:"levels"`
	Placement Placement `yaml:"placement" json:"placement"`
	Export    Export    `yaml:"export" json:"export"`
}

type Noise struct {
	Source string    `yaml:"source" json:"source"`
	Scale  []float64 `yaml:"scale" json:"scale"`

	// Threshold is ignored unless ThresholdEnabled.
	ThresholdEnabled bool    `yaml:"threshold_enabled" json:"threshold_enabled"`
	Threshold        float64 `yaml:"threshold" json:"threshold"`

	RoundFilter bool `yaml:"round_filter" json:"round_filter"`
	// Curve overrides the per-dimension default attenuation curve.
	Curve []curve.Keyframe `yaml:"curve,omitempty" json:"curve,omitempty"`

	Workers int `yaml:"workers" json:"workers"`
}

type Levels struct {
	BlockSizes []int `yaml:"block_sizes" json:"block_sizes"`
}

type Placement struct {
	Strategy    string  `yaml:"strategy" json:"strategy"`
	Policy      string  `yaml:"policy" json:"policy"`
	Penetration int     `yaml:"penetration" json:"penetration"`
	SplitChance float64 `yaml:"split_chance" json:"split_chance"`
	Workers     int     `yaml:"workers" json:"workers"`
}

type Export struct {
	Origin           [3]int `yaml:"origin" json:"origin"`
	ScaleByBlockSize bool   `yaml:"scale_by_block_size" json:"scale_by_block_size"`
	TerrainHeight    int    `yaml:"terrain_height" json:"terrain_height"`
	TerraceHeight    int    `yaml:"terrace_height" json:"terrace_height"`
}

func Defaults() Tuning {
	return Tuning{
		Seed: 1337,
		Grid: grid.Size{X: 64, Y: 64},
		Noise: Noise{
			Source:           "perlin",
			Scale:            []float64{4, 4},
			ThresholdEnabled: true,
			Threshold:        0.35,
			RoundFilter:      true,
		},
		Levels: Levels{BlockSizes: []int{1, 2, 4}},
		Placement: Placement{
			Strategy:    "eviction",
			Policy:      "diameter",
			SplitChance: 0.5,
		},
		Export: Export{TerrainHeight: 10, TerraceHeight: 1},
	}
}

//go:embed tuning.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("tuning.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("tuning.schema.json")
	})
	return schema, schemaErr
}

// Load reads a tuning file. Fields the file omits keep their defaults.
func Load(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	t, err := Parse(raw)
	if err != nil {
		return Tuning{}, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Parse(raw []byte) (Tuning, error) {
	if err := validateDocument(raw); err != nil {
		return Tuning{}, err
	}
	t := Defaults()
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Tuning{}, err
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, err
	}
	return t, nil
}

// validateDocument checks the raw YAML against the embedded JSON schema.
func validateDocument(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return s.Validate(v)
}

// Validate checks cross-field rules the schema cannot express.
func (t Tuning) Validate() error {
	if err := t.Grid.Validate(); err != nil {
		return err
	}
	if len(t.Noise.Scale) != t.Grid.Dims() {
		return fmt.Errorf("noise.scale has %d components for a %d-D grid", len(t.Noise.Scale), t.Grid.Dims())
	}
	if len(t.Noise.Curve) > 0 {
		if _, err := curve.New(t.Noise.Curve...); err != nil {
			return err
		}
	}
	if len(t.Levels.BlockSizes) == 0 {
		return fmt.Errorf("levels.block_sizes is empty")
	}
	return nil
}
