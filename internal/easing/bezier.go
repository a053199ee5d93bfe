package easing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	newtonIterations = 8
	bezierEpsilon    = 1e-7
)

// bezier evaluates the cubic Bezier through (0,0), (X1,Y1), (X2,Y2), (1,1)
// at time t in (0,1): it solves x(u) = t for the curve parameter u and
// returns y(u).
func (s Spec) bezier(t float64) float64 {
	return sampleBezier(s.Y1, s.Y2, solveBezierX(s.X1, s.X2, t))
}

// sampleBezier is the 1-D cubic Bezier with endpoints 0 and 1.
func sampleBezier(p1, p2, u float64) float64 {
	v := 1 - u
	return 3*v*v*u*p1 + 3*v*u*u*p2 + u*u*u
}

func bezierSlope(p1, p2, u float64) float64 {
	v := 1 - u
	return 3*v*v*p1 + 6*v*u*(p2-p1) + 3*u*u*(1-p2)
}

// solveBezierX finds u with x(u) = t. x is monotonic on [0,1] while both x
// control points lie in [0,1], so bisection always converges when Newton
// steps stall on a flat slope.
func solveBezierX(x1, x2, t float64) float64 {
	u := t
	for range newtonIterations {
		dx := sampleBezier(x1, x2, u) - t
		if math.Abs(dx) < bezierEpsilon {
			return u
		}
		slope := bezierSlope(x1, x2, u)
		if math.Abs(slope) < 1e-6 {
			break
		}
		u -= dx / slope
		if u < 0 || u > 1 {
			break
		}
	}

	lo, hi := 0.0, 1.0
	u = t
	for hi-lo > bezierEpsilon {
		x := sampleBezier(x1, x2, u)
		if math.Abs(x-t) < bezierEpsilon {
			return u
		}
		if x < t {
			lo = u
		} else {
			hi = u
		}
		u = (lo + hi) / 2
	}
	return u
}

func (s Spec) validateBezier() error {
	for _, p := range []float64{s.X1, s.Y1, s.X2, s.Y2} {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("easing %s: control point is not finite", s)
		}
	}
	if s.X1 < 0 || s.X1 > 1 || s.X2 < 0 || s.X2 > 1 {
		return fmt.Errorf("easing %s: control point x must be within [0,1]", s)
	}
	return nil
}

func (s Spec) bezierString() string {
	parts := make([]string, 0, 4)
	for _, p := range []float64{s.X1, s.Y1, s.X2, s.Y2} {
		parts = append(parts, strconv.FormatFloat(p, 'g', -1, 64))
	}
	return string(Bezier) + "(" + strings.Join(parts, ",") + ")"
}

// parseBezier parses "bezier(x1,y1,x2,y2)" or "cubic-bezier(x1,y1,x2,y2)".
// It reports false when n is not a Bezier name at all.
func parseBezier(n string) (Spec, bool, error) {
	args, ok := strings.CutPrefix(n, "cubic-")
	if !ok {
		args = n
	}
	args, ok = strings.CutPrefix(args, string(Bezier))
	if !ok {
		return Spec{}, false, nil
	}
	args, ok = strings.CutPrefix(args, "(")
	if !ok {
		return Spec{}, true, fmt.Errorf("easing %q: bezier needs four control values", n)
	}
	args, ok = strings.CutSuffix(args, ")")
	if !ok {
		return Spec{}, true, fmt.Errorf("easing %q: missing closing parenthesis", n)
	}

	fields := strings.Split(args, ",")
	if len(fields) != 4 {
		return Spec{}, true, fmt.Errorf("easing %q: want 4 control values, got %d", n, len(fields))
	}
	var p [4]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Spec{}, true, fmt.Errorf("easing %q: %w", n, err)
		}
		p[i] = v
	}
	spec := Spec{Kind: Bezier, X1: p[0], Y1: p[1], X2: p[2], Y2: p[3]}
	if err := spec.Validate(); err != nil {
		return Spec{}, true, err
	}
	return spec, true, nil
}
