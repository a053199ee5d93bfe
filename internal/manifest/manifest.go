// Package manifest loads a YAML timeline description used to seed the
// engine at startup: frame rate, length, loop mode, clips and frame scripts.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v2"

	"github.com/seantiz/cadence/internal/clip"
	"github.com/seantiz/cadence/internal/clock"
	"github.com/seantiz/cadence/internal/easing"
	"github.com/seantiz/cadence/internal/engine"
	"github.com/seantiz/cadence/internal/model"
)

// Manifest is the root of a timeline file.
type Manifest struct {
	FPS         string         `yaml:"fps"`
	TotalFrames int            `yaml:"total_frames"`
	Loop        string         `yaml:"loop"`
	Clips       []Clip         `yaml:"clips"`
	Scripts     map[int]string `yaml:"scripts"`
}

// Clip describes one animation clip.
type Clip struct {
	ID       string                     `yaml:"id"`
	Duration int                        `yaml:"duration"`
	Loop     string                     `yaml:"loop"`
	Tracks   map[string][]Keyframe      `yaml:"tracks"`
	Colors   map[string][]ColorKeyframe `yaml:"colors"`
}

// Keyframe is a numeric keyframe. Easing is a name such as "cubic-inout".
type Keyframe struct {
	Frame     int     `yaml:"frame"`
	Value     float64 `yaml:"value"`
	Easing    string  `yaml:"easing"`
	Overshoot float64 `yaml:"overshoot"`
	Amplitude float64 `yaml:"amplitude"`
	Period    float64 `yaml:"period"`
}

// ColorKeyframe is a color keyframe written as "#rrggbb".
type ColorKeyframe struct {
	Frame  int    `yaml:"frame"`
	Color  string `yaml:"color"`
	Easing string `yaml:"easing"`
}

// Target is what Apply installs a manifest into.
type Target interface {
	PutClip(c *clip.Clip)
	BindScript(frame int, source string) error
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.SetStrict(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// Config returns the engine settings described by the manifest. Omitted
// values take the engine defaults.
func (m *Manifest) Config() (engine.Config, error) {
	var cfg engine.Config
	if m.FPS != "" {
		r, err := clock.ParseRate(m.FPS)
		if err != nil {
			return cfg, fmt.Errorf("fps: %w", err)
		}
		cfg.Rate = r
	}
	if m.TotalFrames < 0 {
		return cfg, fmt.Errorf("total_frames %d: %w", m.TotalFrames, clock.ErrInvalidFrameCount)
	}
	cfg.TotalFrames = m.TotalFrames
	loop, err := model.ParseLoopMode(m.Loop)
	if err != nil {
		return cfg, err
	}
	cfg.Loop = loop
	return cfg, nil
}

// BuildClips converts the clip definitions.
func (m *Manifest) BuildClips() ([]*clip.Clip, error) {
	clips := make([]*clip.Clip, 0, len(m.Clips))
	for _, def := range m.Clips {
		c, err := def.build()
		if err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	return clips, nil
}

// Apply installs the manifest's clips and scripts into t.
func (m *Manifest) Apply(t Target) error {
	clips, err := m.BuildClips()
	if err != nil {
		return err
	}
	for _, c := range clips {
		t.PutClip(c)
	}

	frames := make([]int, 0, len(m.Scripts))
	for f := range m.Scripts {
		frames = append(frames, f)
	}
	sort.Ints(frames)
	for _, f := range frames {
		if err := t.BindScript(f, m.Scripts[f]); err != nil {
			return fmt.Errorf("script at frame %d: %w", f, err)
		}
	}
	return nil
}

func (def Clip) build() (*clip.Clip, error) {
	loop, err := model.ParseLoopMode(def.Loop)
	if err != nil {
		return nil, fmt.Errorf("clip %q: %w", def.ID, err)
	}
	c, err := clip.New(def.ID, def.Duration, loop)
	if err != nil {
		return nil, err
	}

	for property, keys := range def.Tracks {
		kfs := make([]clip.Keyframe, len(keys))
		for i, k := range keys {
			spec, err := easing.Parse(k.Easing)
			if err != nil {
				return nil, fmt.Errorf("clip %q track %q frame %d: %w", def.ID, property, k.Frame, err)
			}
			spec.Overshoot, spec.Amplitude, spec.Period = k.Overshoot, k.Amplitude, k.Period
			kfs[i] = clip.Keyframe{Frame: k.Frame, Value: k.Value, Easing: spec}
		}
		t, err := clip.NewTrack(property, kfs...)
		if err != nil {
			return nil, fmt.Errorf("clip %q: %w", def.ID, err)
		}
		c.SetTrack(t)
	}

	for property, keys := range def.Colors {
		kfs := make([]clip.ColorKeyframe, len(keys))
		for i, k := range keys {
			spec, err := easing.Parse(k.Easing)
			if err != nil {
				return nil, fmt.Errorf("clip %q color %q frame %d: %w", def.ID, property, k.Frame, err)
			}
			kfs[i] = clip.ColorKeyframe{Frame: k.Frame, Hex: k.Color, Easing: spec}
		}
		t, err := clip.NewColorTrack(property, kfs...)
		if err != nil {
			return nil, fmt.Errorf("clip %q: %w", def.ID, err)
		}
		c.SetColorTrack(t)
	}
	return c, nil
}
