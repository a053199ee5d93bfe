// Package easing maps normalized time to normalized progress. Every function
// here is pure and total: input is clamped to [0,1], the endpoints map exactly
// to 0 and 1, and only the Back, Elastic and Bezier kinds leave [0,1]
// mid-interval.
package easing

import (
	"fmt"
	"math"
	"strings"

	"github.com/fogleman/ease"
)

// Kind selects the shape of an easing curve.
type Kind string

// Easing kinds.
const (
	Linear  Kind = "linear"
	Quad    Kind = "quad"
	Cubic   Kind = "cubic"
	Quart   Kind = "quart"
	Quint   Kind = "quint"
	Sine    Kind = "sine"
	Expo    Kind = "expo"
	Circ    Kind = "circ"
	Back    Kind = "back"
	Elastic Kind = "elastic"
	Bounce  Kind = "bounce"

	// Bezier is a cubic Bezier from (0,0) to (1,1) shaped by two control
	// points. It has no mode.
	Bezier Kind = "bezier"
)

// Mode selects which end of the curve accelerates.
type Mode string

// Easing modes.
const (
	In    Mode = "in"
	Out   Mode = "out"
	InOut Mode = "inout"
)

// Default curve parameters.
const (
	DefaultOvershoot = 1.70158
	DefaultAmplitude = 1.0
	DefaultPeriod    = 0.3
)

// inCurves holds the fixed-shape In curves. Out and InOut are derived from them.
var inCurves = map[Kind]func(float64) float64{
	Linear: ease.Linear,
	Quad:   ease.InQuad,
	Cubic:  ease.InCubic,
	Quart:  ease.InQuart,
	Quint:  ease.InQuint,
	Sine:   ease.InSine,
	Expo:   ease.InExpo,
	Circ:   ease.InCirc,
	Bounce: ease.InBounce,
}

// Spec is the easing attached to a keyframe. Overshoot applies to Back;
// Amplitude and Period apply to Elastic. Zero parameters select the defaults.
// X1, Y1, X2 and Y2 are the Bezier control points.
type Spec struct {
	Kind      Kind    `json:"kind" yaml:"kind"`
	Mode      Mode    `json:"mode,omitempty" yaml:"mode,omitempty"`
	Overshoot float64 `json:"overshoot,omitempty" yaml:"overshoot,omitempty"`
	Amplitude float64 `json:"amplitude,omitempty" yaml:"amplitude,omitempty"`
	Period    float64 `json:"period,omitempty" yaml:"period,omitempty"`
	X1        float64 `json:"x1,omitempty" yaml:"x1,omitempty"`
	Y1        float64 `json:"y1,omitempty" yaml:"y1,omitempty"`
	X2        float64 `json:"x2,omitempty" yaml:"x2,omitempty"`
	Y2        float64 `json:"y2,omitempty" yaml:"y2,omitempty"`
}

// LinearSpec is the identity easing.
var LinearSpec = Spec{Kind: Linear, Mode: In}

// Apply evaluates kind/mode at t with default parameters.
func Apply(kind Kind, mode Mode, t float64) float64 {
	return Spec{Kind: kind, Mode: mode}.Apply(t)
}

// Apply evaluates the curve at t. NaN and values below 0 map to 0; values
// above 1 map to 1.
func (s Spec) Apply(t float64) float64 {
	if math.IsNaN(t) || t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	if s.Kind == Bezier {
		return s.bezier(t)
	}

	in := s.inCurve()
	switch s.Mode {
	case Out:
		return 1 - in(1-t)
	case InOut:
		if t < 0.5 {
			return in(2*t) / 2
		}
		return 1 - in(2*(1-t))/2
	default:
		return in(t)
	}
}

// Validate reports whether s names a known kind and mode with finite
// parameters.
func (s Spec) Validate() error {
	if s.Kind == Bezier {
		return s.validateBezier()
	}
	if s.Kind != Back && s.Kind != Elastic {
		if _, ok := inCurves[s.Kind]; !ok {
			return fmt.Errorf("unknown easing kind %q", s.Kind)
		}
	}
	switch s.Mode {
	case "", In, Out, InOut:
	default:
		return fmt.Errorf("unknown easing mode %q", s.Mode)
	}
	for _, p := range []float64{s.Overshoot, s.Amplitude, s.Period} {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("easing %s: parameter is not finite", s)
		}
	}
	if s.Period < 0 || s.Amplitude < 0 {
		return fmt.Errorf("easing %s: amplitude and period must not be negative", s)
	}
	return nil
}

// String returns the canonical name accepted by Parse.
func (s Spec) String() string {
	if s.Kind == Linear || s.Kind == "" {
		return string(Linear)
	}
	if s.Kind == Bezier {
		return s.bezierString()
	}
	mode := s.Mode
	if mode == "" {
		mode = In
	}
	return string(s.Kind) + "-" + string(mode)
}

// Parse parses names of the form "kind" or "kind-mode", e.g. "linear",
// "cubic-inout", "back-out". A bare kind defaults to In. The legacy names
// "ease-in", "ease-out" and "ease-inout" map to the quadratic curve.
// "bezier(x1,y1,x2,y2)" and "cubic-bezier(x1,y1,x2,y2)" select a Bezier.
func Parse(name string) (Spec, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || n == string(Linear) {
		return LinearSpec, nil
	}
	if spec, ok, err := parseBezier(n); ok {
		return spec, err
	}

	kindName, modeName, found := strings.Cut(n, "-")
	if kindName == "ease" {
		kindName = string(Quad)
	}
	spec := Spec{Kind: Kind(kindName), Mode: In}
	if found {
		switch strings.ReplaceAll(modeName, "-", "") {
		case "in":
			spec.Mode = In
		case "out":
			spec.Mode = Out
		case "inout":
			spec.Mode = InOut
		default:
			return Spec{}, fmt.Errorf("unknown easing mode in %q", name)
		}
	}
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

func (s Spec) inCurve() func(float64) float64 {
	switch s.Kind {
	case Back:
		overshoot := s.Overshoot
		if overshoot == 0 {
			overshoot = DefaultOvershoot
		}
		return func(t float64) float64 {
			return t * t * ((overshoot+1)*t - overshoot)
		}
	case Elastic:
		return elasticIn(s.Amplitude, s.Period)
	}
	if f, ok := inCurves[s.Kind]; ok {
		return f
	}
	return ease.Linear
}

// elasticIn is the Penner elastic curve with an explicit amplitude. An
// amplitude below 1 is raised to 1, which keeps the curve anchored at t=1.
func elasticIn(amplitude, period float64) func(float64) float64 {
	if period <= 0 {
		period = DefaultPeriod
	}
	if amplitude <= 0 {
		amplitude = DefaultAmplitude
	}
	var shift float64
	if amplitude < 1 {
		amplitude = 1
		shift = period / 4
	} else {
		shift = period / (2 * math.Pi) * math.Asin(1/amplitude)
	}
	return func(t float64) float64 {
		t--
		return -(amplitude * math.Pow(2, 10*t) * math.Sin((t-shift)*(2*math.Pi)/period))
	}
}
