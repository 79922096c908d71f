package curve

import (
	"errors"
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEvaluate_HitsKeys(t *testing.T) {
	c := Default3D()
	for _, k := range c.Keys {
		if got := c.Evaluate(k.Time); !near(got, k.Value) {
			t.Fatalf("Evaluate(%v)=%v want %v", k.Time, got, k.Value)
		}
	}
}

func TestEvaluate_ClampsOutsideRange(t *testing.T) {
	c := Default2D()
	if got := c.Evaluate(-3); got != 1 {
		t.Fatalf("below range=%v want 1", got)
	}
	if got := c.Evaluate(7); got != 0 {
		t.Fatalf("above range=%v want 0", got)
	}
}

func TestEvaluate_FlatTangentsSmoothstep(t *testing.T) {
	c := Default2D()
	// Midpoint of a flat-tangent segment from 1 to 0 is exactly 0.5.
	if got := c.Evaluate(0.25); !near(got, 0.5) {
		t.Fatalf("Evaluate(0.25)=%v want 0.5", got)
	}
	prev := c.Evaluate(0)
	for x := 0.01; x <= 0.5; x += 0.01 {
		v := c.Evaluate(x)
		if v > prev+1e-12 {
			t.Fatalf("not monotone at %v: %v > %v", x, v, prev)
		}
		prev = v
	}
}

func TestNew_RejectsDuplicateTimes(t *testing.T) {
	if _, err := New(Keyframe{Time: 0.5}, Keyframe{Time: 0.5}); !errors.Is(err, ErrInvalidCurve) {
		t.Fatalf("expected ErrInvalidCurve, got %v", err)
	}
	if _, err := New(); !errors.Is(err, ErrInvalidCurve) {
		t.Fatalf("expected ErrInvalidCurve for empty curve, got %v", err)
	}
	c, err := New(Keyframe{Time: 1, Value: 0}, Keyframe{Time: 0, Value: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Keys[0].Time != 0 {
		t.Fatalf("keys not sorted: %+v", c.Keys)
	}
}
