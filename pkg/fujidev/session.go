package fujidev

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Rla102277/FUji-ai-lab/pkg/develop"
	"github.com/Rla102277/FUji-ai-lab/pkg/dng"
	"github.com/Rla102277/FUji-ai-lab/pkg/fimage"
	"github.com/Rla102277/FUji-ai-lab/pkg/ingest"
	"github.com/Rla102277/FUji-ai-lab/pkg/lut"
	"github.com/Rla102277/FUji-ai-lab/pkg/recipe"
)

// A Session is everything loaded from the command line: one source
// image, an optional LUT, any recipe overlays, and the config.
type Session struct {
	Config

	Source     *ingest.Source
	SourceName string
	Lut        *lut.Table
	Overlay    develop.Overlay // from recipe files, in load order

	worker *ingest.Worker
}

func NewSession() *Session {
	return &Session{Config: NewConfig()}
}

// Close shuts down the RAW decode worker, if one was started.
func (s *Session) Close() {
	if s.worker != nil {
		s.worker.Close()
		s.worker = nil
	}
}

func (s *Session) LoadFilesAndDirs(args ...string) error {
	for _, arg := range args {
		item, err := os.Stat(arg)

		switch {

		case err != nil:
			return fmt.Errorf("load %s: %v", arg, err)

		case item.IsDir():
			contents, err := os.ReadDir(arg)
			if err != nil {
				return fmt.Errorf("readdir %s: %v", arg, err)
			}
			for _, content := range contents {
				if err := s.LoadFilesAndDirs(filepath.Join(arg, content.Name())); err != nil {
					return fmt.Errorf("load %s: %v", arg, err)
				}
			}

		default:
			if err := s.loadFile(arg); err != nil {
				return fmt.Errorf("loadfile %s: %v", arg, err)
			}
		}
	}

	return nil
}

func (s *Session) loadFile(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {

	case ".yaml", ".yml":
		contents, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("config read %s: %v", filename, err)
		}
		cfg, err := newConfigFromYaml(contents)
		if err != nil {
			return fmt.Errorf("Loading %s as config YAML failed: %v", filename, err)
		}
		s.Config = cfg
		s.Close() // the next image load starts a worker with this config's decoder
		log.Printf("Loaded base configuration from %s\n", filename)

	case ".cube":
		f, err := os.Open(filename)
		if err != nil {
			return fmt.Errorf("open %s: %v", filename, err)
		}
		defer f.Close()
		t, err := lut.ParseCube(f)
		if err != nil {
			return fmt.Errorf("Loading %s as LUT failed: %w", filename, err)
		}
		s.Lut = t
		s.logf("Loaded %s from %s\n", t, filename)

	case ".fp1":
		f, err := os.Open(filename)
		if err != nil {
			return fmt.Errorf("open %s: %v", filename, err)
		}
		defer f.Close()
		o, err := recipe.ParseFP1(f)
		var merr *recipe.MalformedRecipeError
		if errors.As(err, &merr) && !o.IsEmpty() {
			// Keep what we could read
			log.Printf("Recipe %s is incomplete, using what parsed: %v\n", filename, err)
		} else if err != nil {
			return fmt.Errorf("Loading %s as recipe failed: %w", filename, err)
		}
		s.Overlay.Merge(o)
		s.logf("Loaded recipe from %s:\n%s", filename, o)

	case ".jpg", ".jpeg", ".png", ".tif", ".tiff", ".raf", ".dng":
		if err := s.loadImage(filename); err != nil {
			return err
		}

	default:
		s.logf("Ignoring %s\n", filename)
	}

	return nil
}

func (s *Session) loadImage(filename string) error {
	src, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read %s: %v", filename, err)
	}

	if s.worker == nil {
		d, err := s.GetDecoder()
		if err != nil {
			return err
		}
		s.worker = ingest.NewWorker(d)
	}

	start := time.Now()
	source, err := ingest.Load(src, ingest.LoadOptions{
		DecodeOptions: ingest.DecodeOptions{MaxWidth: s.PreviewWidth},
		Worker:        s.worker,
	})
	if err != nil {
		return fmt.Errorf("Loading %s as image failed: %w", filename, err)
	}

	if s.Source != nil {
		log.Printf("Replacing %s with %s\n", s.SourceName, filename)
	}
	s.Source = source
	s.SourceName = filename
	if source.FromPreview {
		log.Printf("%s: no native decode, using the embedded preview\n", filename)
	}
	s.logf("Loaded %s in %s\n", source, time.Since(start))
	if source.Meta != nil {
		if ev, ok := source.Meta.EV100(); ok {
			s.logf("  shot at EV100 %.1f\n", ev)
		}
	}
	return nil
}

func (s *Session) logf(format string, args ...interface{}) {
	if s.Verbosity > 0 {
		log.Printf(format, args...)
	}
}

// EffectiveSettings are the config's sliders (or its recipe, if it has
// one) with the FP1 overlays on top.
func (s *Session) EffectiveSettings() develop.Settings {
	base := s.Config.Settings
	if s.Recipe != nil {
		base = s.Recipe.DevelopSettings()
	}
	return s.Overlay.Apply(base).Normalize()
}

// Develop runs the pipeline over the loaded source.
func (s *Session) Develop(settings develop.Settings) (*fimage.LinearImage, error) {
	if s.Source == nil {
		return nil, fmt.Errorf("develop: no source image loaded")
	}

	p := develop.NewPipeline(settings, s.Lut)
	if s.Verbosity > 1 {
		p.Trace = func(stage string, elapsed time.Duration) {
			log.Printf("  stage %-12s %s\n", stage, elapsed)
		}
	}
	s.logf("%s\n", p)

	out, err := p.Run(s.Source.Image)
	if err != nil {
		return nil, err
	}
	if s.Verbosity > 0 {
		log.Printf("in:  %s\n", develop.Stats(s.Source.Image))
		log.Printf("out: %s\n", develop.Stats(out))
	}
	return out, nil
}

// WriteOutput picks the encoding from the filename's extension.
func (s *Session) WriteOutput(filename string, img *fimage.LinearImage) error {
	var b []byte

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".dng":
		var meta *fimage.ImageMetadata
		if s.Source != nil {
			meta = s.Source.Meta
		}
		var err error
		if b, err = dng.Marshal(img, s.ProfileName, meta, s.DNGOptions()); err != nil {
			return fmt.Errorf("write %s: %w", filename, err)
		}

	case ".png":
		var buf bytes.Buffer
		if err := png.Encode(&buf, develop.Encode8(img)); err != nil {
			return fmt.Errorf("write %s: %v", filename, err)
		}
		b = buf.Bytes()

	case ".hdr":
		return develop.WriteHDRFile(filename, img)

	default:
		return fmt.Errorf("write %s: don't know how to write '%s' files", filename, ext)
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		return fmt.Errorf("write %s: %v", filename, err)
	}
	s.logf("Wrote %s\n", filename)
	return nil
}

// WriteTonemapped writes a PNG of the image squeezed through the
// configured tonemapper.
func (s *Session) WriteTonemapped(filename string, img *fimage.LinearImage) error {
	out, err := develop.Tonemap(img, s.Tonemapper)
	if err != nil {
		return err
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("write %s: %v", filename, err)
	}
	defer f.Close()
	if err := png.Encode(f, out); err != nil {
		return fmt.Errorf("write %s: %v", filename, err)
	}
	s.logf("Wrote %s (%s)\n", filename, s.Tonemapper)
	return nil
}

// WriteLutViz renders the loaded LUT's swatch chart as a PNG.
func (s *Session) WriteLutViz(filename string) error {
	if s.Lut == nil {
		return fmt.Errorf("lutviz: no LUT loaded")
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("write %s: %v", filename, err)
	}
	defer f.Close()
	return png.Encode(f, lut.Visualize(s.Lut, lut.DefaultVizOptions()))
}

// WriteFP1 exports the config's recipe for the configured camera body.
func (s *Session) WriteFP1(filename string) error {
	if s.Recipe == nil {
		return fmt.Errorf("fp1: no recipe in the config")
	}
	cam, ok := recipe.CameraByDevice(s.ExportCamera)
	if !ok {
		return fmt.Errorf("fp1: unknown camera '%s'", s.ExportCamera)
	}
	var buf bytes.Buffer
	if err := recipe.WriteFP1(&buf, *s.Recipe, recipe.ExportOptions{Camera: cam}); err != nil {
		return err
	}
	return os.WriteFile(filename, buf.Bytes(), 0644)
}
