package clip

import (
	"errors"
	"math"
	"testing"

	"github.com/seantiz/cadence/internal/easing"
)

func linearKey(frame int, value float64) Keyframe {
	return Keyframe{Frame: frame, Value: value, Easing: easing.LinearSpec}
}

func TestEvaluateLinearScenario(t *testing.T) {
	tr, err := NewTrack("x", linearKey(1, 0), linearKey(30, 100))
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}

	got, err := tr.Evaluate(15)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if math.Abs(got-48.3) > 0.1 {
		t.Errorf("Evaluate(15) = %v, want ~48.3", got)
	}
}

func TestEvaluateHoldsOutsideRange(t *testing.T) {
	tr, err := NewTrack("x", linearKey(10, 5), linearKey(20, 15))
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}

	tests := []struct {
		frame int
		want  float64
	}{
		{1, 5},
		{10, 5},
		{15, 10},
		{20, 15},
		{500, 15},
	}
	for _, tt := range tests {
		got, err := tr.Evaluate(tt.frame)
		if err != nil {
			t.Fatalf("Evaluate(%d): %v", tt.frame, err)
		}
		if got != tt.want {
			t.Errorf("Evaluate(%d) = %v, want %v", tt.frame, got, tt.want)
		}
	}
}

func TestEvaluateEndpointsExact(t *testing.T) {
	kinds := []easing.Kind{easing.Linear, easing.Sine, easing.Expo, easing.Back, easing.Elastic, easing.Bounce}
	for _, k := range kinds {
		spec := easing.Spec{Kind: k, Mode: easing.InOut}
		tr, err := NewTrack("x",
			Keyframe{Frame: 3, Value: -7.25, Easing: spec},
			Keyframe{Frame: 9, Value: 3.5, Easing: spec},
			Keyframe{Frame: 40, Value: 123.125, Easing: spec},
		)
		if err != nil {
			t.Fatalf("NewTrack: %v", err)
		}
		if v, _ := tr.Evaluate(3); v != -7.25 {
			t.Errorf("%s: Evaluate(first) = %v, want -7.25", k, v)
		}
		if v, _ := tr.Evaluate(9); v != 3.5 {
			t.Errorf("%s: Evaluate(middle key) = %v, want 3.5", k, v)
		}
		if v, _ := tr.Evaluate(40); v != 123.125 {
			t.Errorf("%s: Evaluate(last) = %v, want 123.125", k, v)
		}
	}
}

func TestEvaluateUsesStartKeyEasing(t *testing.T) {
	quad := easing.Spec{Kind: easing.Quad, Mode: easing.In}
	tr, err := NewTrack("x",
		Keyframe{Frame: 1, Value: 0, Easing: quad},
		Keyframe{Frame: 11, Value: 100, Easing: easing.LinearSpec},
	)
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	got, _ := tr.Evaluate(6)
	if math.Abs(got-25) > 1e-9 {
		t.Errorf("Evaluate(6) = %v, want 25", got)
	}
}

func TestEvaluateEmptyTrack(t *testing.T) {
	tr, err := NewTrack("x")
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	if _, err := tr.Evaluate(1); !errors.Is(err, ErrEmptyTrack) {
		t.Errorf("Evaluate on empty track error = %v, want ErrEmptyTrack", err)
	}
}

func TestNewTrackRejectsInvalidOrder(t *testing.T) {
	tests := []struct {
		name string
		keys []Keyframe
		want error
	}{
		{"duplicate", []Keyframe{linearKey(1, 0), linearKey(1, 2)}, ErrDuplicateFrame},
		{"descending", []Keyframe{linearKey(5, 0), linearKey(2, 2)}, ErrNonMonotonic},
		{"zero frame", []Keyframe{linearKey(0, 0)}, ErrInvalidFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTrack("x", tt.keys...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("NewTrack error = %v, want %v", err, tt.want)
			}
			var fe *FrameError
			if !errors.As(err, &fe) || fe.Property != "x" {
				t.Errorf("error %v is not a FrameError for property x", err)
			}
		})
	}
}

func TestUpsertKeepsOrderAndReplaces(t *testing.T) {
	tr, _ := NewTrack("x")
	for _, k := range []Keyframe{linearKey(20, 2), linearKey(5, 0), linearKey(10, 1), linearKey(10, 9)} {
		if err := tr.Upsert(k); err != nil {
			t.Fatalf("Upsert(%d): %v", k.Frame, err)
		}
	}

	keys := tr.Keyframes()
	if len(keys) != 3 {
		t.Fatalf("len = %d, want 3", len(keys))
	}
	wantFrames := []int{5, 10, 20}
	for i, k := range keys {
		if k.Frame != wantFrames[i] {
			t.Errorf("keys[%d].Frame = %d, want %d", i, k.Frame, wantFrames[i])
		}
	}
	if keys[1].Value != 9 {
		t.Errorf("replaced value = %v, want 9", keys[1].Value)
	}
}

func TestUpsertRejectsInvalid(t *testing.T) {
	tr, _ := NewTrack("x")
	if err := tr.Upsert(linearKey(-5, 1)); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("Upsert(-5) error = %v, want ErrInvalidFrame", err)
	}
	bad := Keyframe{Frame: 2, Easing: easing.Spec{Kind: "zigzag"}}
	if err := tr.Upsert(bad); err == nil {
		t.Error("Upsert with unknown easing succeeded")
	}
	if tr.Len() != 0 {
		t.Errorf("Len = %d after rejected upserts, want 0", tr.Len())
	}
}

func TestRemove(t *testing.T) {
	tr, _ := NewTrack("x", linearKey(1, 0), linearKey(5, 1))
	if err := tr.Remove(5); err != nil {
		t.Fatalf("Remove(5): %v", err)
	}
	if err := tr.Remove(5); !errors.Is(err, ErrKeyframeNotFound) {
		t.Errorf("second Remove(5) error = %v, want ErrKeyframeNotFound", err)
	}
	if tr.Len() != 1 {
		t.Errorf("Len = %d, want 1", tr.Len())
	}
}

func TestColorTrackEvaluate(t *testing.T) {
	ct, err := NewColorTrack("fill",
		ColorKeyframe{Frame: 1, Hex: "#ff0000"},
		ColorKeyframe{Frame: 11, Hex: "#0000ff"},
	)
	if err != nil {
		t.Fatalf("NewColorTrack: %v", err)
	}

	if got, _ := ct.Evaluate(1); got != "#ff0000" {
		t.Errorf("Evaluate(1) = %q, want #ff0000", got)
	}
	if got, _ := ct.Evaluate(20); got != "#0000ff" {
		t.Errorf("Evaluate(20) = %q, want #0000ff", got)
	}
	mid, _ := ct.Evaluate(6)
	if mid == "#ff0000" || mid == "#0000ff" {
		t.Errorf("Evaluate(6) = %q, want a blended color", mid)
	}
}

func TestColorTrackRejectsBadHex(t *testing.T) {
	_, err := NewColorTrack("fill", ColorKeyframe{Frame: 1, Hex: "red"})
	var fe *FrameError
	if !errors.As(err, &fe) {
		t.Fatalf("NewColorTrack error = %v, want FrameError", err)
	}
}
