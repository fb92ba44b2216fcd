package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/Rla102277/FUji-ai-lab/pkg/develop"
	"github.com/Rla102277/FUji-ai-lab/pkg/ecolor"
	"github.com/Rla102277/FUji-ai-lab/pkg/fujidev"
)

var (
	fVerbosity    int
	fOutput       string
	fPreview      string
	fPreviewWidth int
	fTonemapper   string
	fLutViz       string
	fFP1          string
	fWBPick       string
	fNoHeadroom   bool
	fRawDecoder   string
	fExportCamera string

	fExposure    float64
	fContrast    float64
	fTemperature float64
	fTint        float64
	fHighlights  float64
	fShadows     float64
	fSaturation  float64
	fGrain       float64
	fSharpness   float64
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.StringVar(&fOutput, "o", "developed.dng", "output file; .dng, .png or .hdr")
	flag.StringVar(&fPreview, "preview", "", "also write an 8-bit sRGB PNG here")
	flag.IntVar(&fPreviewWidth, "width", 0, "scale conventional images down to this width (0 == full size)")
	flag.StringVar(&fTonemapper, "tonemapper", "", "also write a tonemapped PNG, via one of: "+strings.Join(develop.Tonemappers, ", "))
	flag.StringVar(&fLutViz, "lutviz", "", "write a swatch chart of the loaded LUT here")
	flag.StringVar(&fFP1, "fp1", "", "export the config's recipe as an FP1 file here")
	flag.StringVar(&fWBPick, "wbpick", "", "x,y of a pixel that should be neutral grey; sets temperature and tint")
	flag.BoolVar(&fNoHeadroom, "noheadroom", false, "clip DNG values above 1.0, instead of scaling them down")
	flag.StringVar(&fRawDecoder, "rawdecoder", "", "raw decoder: dcraw, none")
	flag.StringVar(&fExportCamera, "camera", "", "device id of the FP1 export target, e.g. X-T5")

	flag.Float64Var(&fExposure, "exposure", 0, "stops")
	flag.Float64Var(&fContrast, "contrast", 0, "-100 to 100")
	flag.Float64Var(&fTemperature, "temperature", ecolor.NeutralTemperature, "white balance, Kelvin")
	flag.Float64Var(&fTint, "tint", 0, "-50 (magenta) to 50 (green)")
	flag.Float64Var(&fHighlights, "highlights", 0, "-100 to 100")
	flag.Float64Var(&fShadows, "shadows", 0, "-100 to 100")
	flag.Float64Var(&fSaturation, "saturation", 0, "-100 to 100")
	flag.Float64Var(&fGrain, "grain", 0, "0 to 100")
	flag.Float64Var(&fSharpness, "sharpness", 0, "0 to 100")
	flag.Parse()

	log.Printf("fujidev starting\n")
}

// overrides collects the flags that were actually given, so they win over
// the config file and any recipes, but defaults don't.
func overrides() (develop.Overlay, map[string]bool) {
	o := develop.Overlay{}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
		switch f.Name {
		case "exposure":
			o.Exposure = develop.F(fExposure)
		case "contrast":
			o.Contrast = develop.F(fContrast)
		case "temperature":
			o.Temperature = develop.F(fTemperature)
		case "tint":
			o.Tint = develop.F(fTint)
		case "highlights":
			o.Highlights = develop.F(fHighlights)
		case "shadows":
			o.Shadows = develop.F(fShadows)
		case "saturation":
			o.Saturation = develop.F(fSaturation)
		case "grain":
			o.Grain = develop.F(fGrain)
		case "sharpness":
			o.Sharpness = develop.F(fSharpness)
		}
	})
	return o, set
}

func pickWhiteBalance(s *fujidev.Session, at string) (ecolor.WhiteBalance, error) {
	var x, y int
	if _, err := fmt.Sscanf(at, "%d,%d", &x, &y); err != nil {
		return ecolor.WhiteBalance{}, fmt.Errorf("wbpick '%s': want x,y", at)
	}
	img := s.Source.Image
	if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
		return ecolor.WhiteBalance{}, fmt.Errorf("wbpick (%d,%d) is outside the %dx%d image", x, y, img.Width, img.Height)
	}
	return ecolor.EstimateKelvinAndTint(img.RGB(x, y))
}

func main() {
	s := fujidev.NewSession()
	defer s.Close()

	// Config files are loaded first, so flags that affect loading apply
	o, set := overrides()
	if set["v"] {
		s.Verbosity = fVerbosity
	}
	if set["width"] {
		s.PreviewWidth = fPreviewWidth
	}
	if set["rawdecoder"] {
		s.RawDecoder = fRawDecoder
	}

	if err := s.LoadFilesAndDirs(flag.Args()...); err != nil {
		log.Fatal(err)
	}

	// A config file replaces the whole Config, so apply the flags again
	if set["v"] {
		s.Verbosity = fVerbosity
	}
	if set["noheadroom"] {
		s.NoHeadroom = fNoHeadroom
	}
	if set["tonemapper"] {
		s.Tonemapper = fTonemapper
	}
	if set["camera"] {
		s.ExportCamera = fExportCamera
	}

	if s.Verbosity > 0 {
		log.Printf("Final configuration:-\n\n%s\n", s.Config.AsYaml())
	}

	if fFP1 != "" {
		if err := s.WriteFP1(fFP1); err != nil {
			log.Fatal(err)
		}
		log.Printf("Wrote recipe to %s\n", fFP1)
	}
	if fLutViz != "" {
		if err := s.WriteLutViz(fLutViz); err != nil {
			log.Fatal(err)
		}
	}

	if s.Source == nil {
		if fFP1 == "" && fLutViz == "" {
			log.Fatal("no image given")
		}
		return
	}

	settings := s.EffectiveSettings()
	if fWBPick != "" {
		wb, err := pickWhiteBalance(s, fWBPick)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("white balance from %s: %s\n", fWBPick, wb)
		settings.Temperature, settings.Tint = wb.Temperature, wb.Tint
	}
	settings = o.Apply(settings)
	log.Printf("developing %s with %s\n", s.SourceName, settings.Normalize())

	out, err := s.Develop(settings)
	if err != nil {
		log.Fatal(err)
	}

	if err := s.WriteOutput(fOutput, out); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s\n", fOutput)

	if fPreview != "" {
		if err := s.WriteOutput(fPreview, out); err != nil {
			log.Fatal(err)
		}
	}
	if set["tonemapper"] {
		name := strings.TrimSuffix(fOutput, filepath.Ext(fOutput)) + "-" + s.Tonemapper + ".png"
		if err := s.WriteTonemapped(name, out); err != nil {
			log.Fatal(err)
		}
		log.Printf("Wrote %s\n", name)
	}
}
