package develop

import (
	"fmt"
	"time"

	"github.com/Rla102277/FUji-ai-lab/pkg/fimage"
	"github.com/Rla102277/FUji-ai-lab/pkg/lut"
)

// A Stage is one step of the develop; it mutates the (private) working
// buffer in place.
type Stage struct {
	Name  string
	Apply func(*fimage.LinearImage)
}

// A Pipeline is an ordered list of stages, built from one set of
// Settings. Stages whose parameter is neutral are left out altogether,
// so a default Pipeline is empty and its output is an exact copy.
type Pipeline struct {
	Settings Settings
	Stages   []Stage

	// Trace, if set, is told how long each stage took.
	Trace func(stage string, elapsed time.Duration)
}

// NewPipeline lays out the stages in their fixed order: white balance,
// exposure, tone, saturation, LUT, sharpness, grain.
func NewPipeline(s Settings, t *lut.Table) Pipeline {
	s = s.Normalize()
	p := Pipeline{Settings: s}

	if gr, gb, ok := whiteBalanceGains(s); ok {
		p.Stages = append(p.Stages, Stage{"whitebalance", perPixel(WhiteBalanceBy(gr, gb))})
	}
	if s.Exposure != 0 {
		p.Stages = append(p.Stages, Stage{"exposure", perPixel(ExposeBy(s.Exposure))})
	}
	if s.Contrast != 0 || s.Highlights != 0 || s.Shadows != 0 {
		p.Stages = append(p.Stages, Stage{"tone", perPixel(ToneBy(s.Contrast, s.Highlights, s.Shadows))})
	}
	if s.Saturation != 0 {
		p.Stages = append(p.Stages, Stage{"saturation", perPixel(SaturateBy(s.Saturation))})
	}
	if t != nil {
		p.Stages = append(p.Stages, Stage{"lut", perPixel(LookupBy(t))})
	}
	if s.Sharpness != 0 {
		p.Stages = append(p.Stages, Stage{"sharpness", Sharpen(s.Sharpness)})
	}
	if s.Grain != 0 {
		p.Stages = append(p.Stages, Stage{"grain", AddGrain(s.Grain)})
	}

	return p
}

func (p Pipeline) String() string {
	str := fmt.Sprintf("Pipeline{%s} [", p.Settings)
	for _, st := range p.Stages {
		str += " " + st.Name
	}
	return str + " ]"
}

// Run develops a copy of the input. The input is never written to.
func (p Pipeline) Run(in *fimage.LinearImage) (*fimage.LinearImage, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("develop: %w", err)
	}

	out := in.Clone()
	for _, st := range p.Stages {
		start := time.Now()
		st.Apply(out)
		if p.Trace != nil {
			p.Trace(st.Name, time.Since(start))
		}
	}

	if out.Channels == 4 {
		for i := 3; i < len(out.Pix); i += 4 {
			out.Pix[i] = 1.0
		}
	}

	return out, nil
}

// Develop runs the full pipeline for the settings, with an optional LUT.
// It is a pure function; it is safe to call concurrently.
func Develop(img *fimage.LinearImage, s Settings, t *lut.Table) (*fimage.LinearImage, error) {
	return NewPipeline(s, t).Run(img)
}
