package fujidev

import (
	"fmt"
	"log"

	"gopkg.in/yaml.v2"

	"github.com/Rla102277/FUji-ai-lab/pkg/develop"
	"github.com/Rla102277/FUji-ai-lab/pkg/dng"
	"github.com/Rla102277/FUji-ai-lab/pkg/ingest"
	"github.com/Rla102277/FUji-ai-lab/pkg/recipe"
)

type Config struct {
	Verbosity int

	Settings develop.Settings   // base sliders; FP1 files are layered on top
	Recipe   *recipe.FilmRecipe // if set, replaces Settings as the base

	PreviewWidth int // 0 means decode at full size

	// Native RAW decoding. "dcraw" runs RawDecoderCommand (default dcraw)
	// with RawDecoderArgs; "none" always falls back to the embedded preview.
	RawDecoder        string
	RawDecoderCommand string
	RawDecoderArgs    []string

	ProfileName  string // goes into the DNG ProfileName tag
	NoHeadroom   bool
	MaxHeadroom  int
	ExportCamera string // device id of the FP1 export target
	Tonemapper   string
}

func newConfigFromYaml(b []byte) (Config, error) {
	c := NewConfig()
	err := yaml.Unmarshal(b, &c)
	return c, err
}

func (c Config) AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Fatalf("Can't marshal config yaml: %v\n", err)
	}
	return string(b)
}

func NewConfig() Config {
	return Config{
		Settings:     develop.DefaultSettings(),
		RawDecoder:   "dcraw",
		ProfileName:  "fujidev",
		ExportCamera: "X-T5",
		Tonemapper:   "reinhard05",
	}
}

func (c Config) GetDecoder() (ingest.RawDecoder, error) {
	switch c.RawDecoder {
	case "dcraw", "":
		d := ingest.DefaultExecDecoder()
		if c.RawDecoderCommand != "" {
			d.Command = c.RawDecoderCommand
		}
		if len(c.RawDecoderArgs) > 0 {
			d.Args = c.RawDecoderArgs
		}
		return d, nil
	case "none":
		return ingest.Unavailable{Reason: "disabled in config"}, nil
	default:
		return nil, fmt.Errorf("no RawDecoder named '%s'", c.RawDecoder)
	}
}

func (c Config) DNGOptions() *dng.Options {
	return &dng.Options{
		NoHeadroom:  c.NoHeadroom,
		MaxHeadroom: c.MaxHeadroom,
		Software:    "fujidev",
	}
}
