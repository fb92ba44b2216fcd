package develop

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v2"

	"github.com/Rla102277/FUji-ai-lab/pkg/ecolor"
	"github.com/Rla102277/FUji-ai-lab/pkg/emath"
)

// Settings is the full parameter vector for one develop. It is a plain
// value; copy it, compare it, use it as a map key.
type Settings struct {
	Exposure    float64 `yaml:"exposure"`    // stops, -3..3
	Contrast    float64 `yaml:"contrast"`    // -100..100
	Temperature float64 `yaml:"temperature"` // Kelvin, 2000..12000
	Tint        float64 `yaml:"tint"`        // -50..50
	Highlights  float64 `yaml:"highlights"`  // -100..100
	Shadows     float64 `yaml:"shadows"`     // -100..100
	Saturation  float64 `yaml:"saturation"`  // -100..100
	Grain       float64 `yaml:"grain"`       // 0..100
	Sharpness   float64 `yaml:"sharpness"`   // 0..100
}

func DefaultSettings() Settings {
	return Settings{
		Temperature: ecolor.NeutralTemperature,
		Tint:        ecolor.NeutralTint,
	}
}

func (s Settings) String() string {
	return fmt.Sprintf("ev%+.2f con%+.0f wb[%.0fK %+.0f] hl%+.0f sh%+.0f sat%+.0f grain%.0f sharp%.0f",
		s.Exposure, s.Contrast, s.Temperature, s.Tint, s.Highlights, s.Shadows, s.Saturation, s.Grain, s.Sharpness)
}

func (s Settings) AsYaml() string {
	b, _ := yaml.Marshal(s)
	return string(b)
}

func clampOrDefault(v, min, max, def float64) float64 {
	if math.IsNaN(v) {
		return def
	}
	return emath.Clamp(v, min, max)
}

// Normalize clamps every field into its range, and replaces NaNs with the
// default value. Settings are never rejected for being out of range.
func (s Settings) Normalize() Settings {
	d := DefaultSettings()
	return Settings{
		Exposure:    clampOrDefault(s.Exposure, -3, 3, d.Exposure),
		Contrast:    clampOrDefault(s.Contrast, -100, 100, d.Contrast),
		Temperature: clampOrDefault(s.Temperature, ecolor.MinTemperature, ecolor.MaxTemperature, d.Temperature),
		Tint:        clampOrDefault(s.Tint, ecolor.MinTint, ecolor.MaxTint, d.Tint),
		Highlights:  clampOrDefault(s.Highlights, -100, 100, d.Highlights),
		Shadows:     clampOrDefault(s.Shadows, -100, 100, d.Shadows),
		Saturation:  clampOrDefault(s.Saturation, -100, 100, d.Saturation),
		Grain:       clampOrDefault(s.Grain, 0, 100, d.Grain),
		Sharpness:   clampOrDefault(s.Sharpness, 0, 100, d.Sharpness),
	}
}

// An Overlay is a partial Settings: only the non-nil fields are set.
// Recipe files and external suggestion services produce these.
type Overlay struct {
	Exposure    *float64 `yaml:"exposure,omitempty"`
	Contrast    *float64 `yaml:"contrast,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	Tint        *float64 `yaml:"tint,omitempty"`
	Highlights  *float64 `yaml:"highlights,omitempty"`
	Shadows     *float64 `yaml:"shadows,omitempty"`
	Saturation  *float64 `yaml:"saturation,omitempty"`
	Grain       *float64 `yaml:"grain,omitempty"`
	Sharpness   *float64 `yaml:"sharpness,omitempty"`
}

// F is a helper for building Overlays.
func F(v float64) *float64 { return &v }

func (o Overlay) fields() []*float64 {
	return []*float64{o.Exposure, o.Contrast, o.Temperature, o.Tint, o.Highlights, o.Shadows, o.Saturation, o.Grain, o.Sharpness}
}

func (o *Overlay) fieldPtrs() []**float64 {
	return []**float64{&o.Exposure, &o.Contrast, &o.Temperature, &o.Tint, &o.Highlights, &o.Shadows, &o.Saturation, &o.Grain, &o.Sharpness}
}

func (s *Settings) fieldPtrs() []*float64 {
	return []*float64{&s.Exposure, &s.Contrast, &s.Temperature, &s.Tint, &s.Highlights, &s.Shadows, &s.Saturation, &s.Grain, &s.Sharpness}
}

func (o Overlay) IsEmpty() bool {
	for _, f := range o.fields() {
		if f != nil {
			return false
		}
	}
	return true
}

// Apply returns a copy of s with the overlay's fields replaced.
func (o Overlay) Apply(s Settings) Settings {
	dst := s.fieldPtrs()
	for i, f := range o.fields() {
		if f != nil {
			*dst[i] = *f
		}
	}
	return s
}

// Merge folds o2 into o; fields set in o2 win.
func (o *Overlay) Merge(o2 Overlay) {
	dst := o.fieldPtrs()
	for i, f := range o2.fields() {
		if f != nil {
			v := *f
			*dst[i] = &v
		}
	}
}

func (o Overlay) String() string {
	b, _ := yaml.Marshal(o)
	return string(b)
}
