// Package curve evaluates keyframed cubic Hermite curves, the attenuation
// profile of the round filter.
package curve

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidCurve = errors.New("curve: invalid keyframes")

type Keyframe struct {
	Time       float64 `json:"time" yaml:"time"`
	Value      float64 `json:"value" yaml:"value"`
	InTangent  float64 `json:"in_tangent,omitempty" yaml:"in_tangent,omitempty"`
	OutTangent float64 `json:"out_tangent,omitempty" yaml:"out_tangent,omitempty"`
}

// Curve is a sorted keyframe list. Outside the key range it clamps to the
// first or last value.
type Curve struct {
	Keys []Keyframe `json:"keys" yaml:"keys"`
}

func New(keys ...Keyframe) (Curve, error) {
	c := Curve{Keys: append([]Keyframe(nil), keys...)}
	sort.SliceStable(c.Keys, func(i, j int) bool { return c.Keys[i].Time < c.Keys[j].Time })
	return c, c.Validate()
}

func (c Curve) Validate() error {
	if len(c.Keys) == 0 {
		return fmt.Errorf("%w: no keys", ErrInvalidCurve)
	}
	for i := 1; i < len(c.Keys); i++ {
		if c.Keys[i].Time <= c.Keys[i-1].Time {
			return fmt.Errorf("%w: key %d time %v not after %v", ErrInvalidCurve, i, c.Keys[i].Time, c.Keys[i-1].Time)
		}
	}
	return nil
}

// Default2D falls off to nothing at half the normalized distance.
func Default2D() Curve {
	return Curve{Keys: []Keyframe{{Time: 0, Value: 1}, {Time: 0.5, Value: 0}, {Time: 1, Value: 0}}}
}

// Default3D keeps a dome up to three quarters of the distance.
func Default3D() Curve {
	return Curve{Keys: []Keyframe{
		{Time: 0, Value: 1},
		{Time: 0.75, Value: 0.85, InTangent: -0.5, OutTangent: -0.5},
		{Time: 1, Value: 0},
	}}
}

func (c Curve) Evaluate(t float64) float64 {
	n := len(c.Keys)
	if n == 0 {
		return 0
	}
	if t <= c.Keys[0].Time {
		return c.Keys[0].Value
	}
	if t >= c.Keys[n-1].Time {
		return c.Keys[n-1].Value
	}
	i := sort.Search(n, func(i int) bool { return c.Keys[i].Time > t }) - 1
	k0, k1 := c.Keys[i], c.Keys[i+1]
	dt := k1.Time - k0.Time
	s := (t - k0.Time) / dt
	s2 := s * s
	s3 := s2 * s
	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2
	return h00*k0.Value + h10*dt*k0.OutTangent + h01*k1.Value + h11*dt*k1.InTangent
}
