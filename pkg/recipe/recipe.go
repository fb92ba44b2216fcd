package recipe

import (
	_ "embed"
	"fmt"
	"log"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/Rla102277/FUji-ai-lab/pkg/develop"
	"github.com/Rla102277/FUji-ai-lab/pkg/ecolor"
	"github.com/Rla102277/FUji-ai-lab/pkg/emath"
)

// A CameraModel identifies the body an FP1 profile is written for.
type CameraModel struct {
	Name          string `yaml:"name"`
	DeviceID      string `yaml:"deviceId"`
	VersionCode   string `yaml:"versionCode"` // e.g. X-T5_0100
	DefaultSerial string `yaml:"defaultSerial,omitempty"`
}

func (c CameraModel) String() string { return fmt.Sprintf("%s [%s]", c.Name, c.VersionCode) }

// FilmSimulation is one row of the film simulation table.
type FilmSimulation struct {
	Code       string   `yaml:"code"` // as written in FP1 files
	Name       string   `yaml:"name"`
	Aliases    []string `yaml:"aliases,omitempty"`
	Saturation float64  `yaml:"saturation"`
	Contrast   float64  `yaml:"contrast"`
}

type tables struct {
	FilmSimulations     []FilmSimulation   `yaml:"filmSimulations"`
	WhiteBalancePresets map[string]float64 `yaml:"whiteBalancePresets"`
}

//go:embed cameras.yaml
var camerasYaml []byte

//go:embed tables.yaml
var tablesYaml []byte

var (
	loadOnce sync.Once
	cameras  []CameraModel
	tbl      tables
	simIndex map[string]FilmSimulation
)

// The tables are compiled in, so a parse failure is a build problem, not a
// runtime one.
func load() {
	loadOnce.Do(func() {
		if err := yaml.Unmarshal(camerasYaml, &cameras); err != nil {
			log.Fatalf("recipe: cameras.yaml: %v", err)
		}
		if err := yaml.Unmarshal(tablesYaml, &tbl); err != nil {
			log.Fatalf("recipe: tables.yaml: %v", err)
		}
		simIndex = map[string]FilmSimulation{}
		for _, fs := range tbl.FilmSimulations {
			for _, k := range append([]string{fs.Code, fs.Name}, fs.Aliases...) {
				simIndex[simKey(k)] = fs
			}
		}
	})
}

// simKey folds case and drops punctuation, so "PRO Neg. Hi", "pro neg hi"
// and "ProNegHi" all meet.
func simKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Cameras returns the bodies we can export for, in display order.
func Cameras() []CameraModel {
	load()
	return append([]CameraModel(nil), cameras...)
}

func CameraByDevice(id string) (CameraModel, bool) {
	for _, c := range Cameras() {
		if strings.EqualFold(c.DeviceID, id) {
			return c, true
		}
	}
	return CameraModel{}, false
}

// LookupFilmSimulation accepts either the FP1 code or the display name.
func LookupFilmSimulation(name string) (FilmSimulation, bool) {
	load()
	fs, ok := simIndex[simKey(name)]
	return fs, ok
}

// WhiteBalancePreset returns the Kelvin value for a named in-camera preset.
func WhiteBalancePreset(name string) (float64, bool) {
	load()
	for k, v := range tbl.WhiteBalancePresets {
		if simKey(k) == simKey(name) {
			return v, true
		}
	}
	return 0, false
}

// RecipeSettings are the in-camera values of a recipe, in the camera's own
// units (mostly -4..+4 steps).
type RecipeSettings struct {
	FilmSimulation  string  `yaml:"filmSimulation"`
	DynamicRange    string  `yaml:"dynamicRange"`
	WhiteBalance    float64 `yaml:"whiteBalance"` // Kelvin
	TintShift       float64 `yaml:"tintShift"`
	WBShiftR        float64 `yaml:"wbShiftR"`
	WBShiftB        float64 `yaml:"wbShiftB"`
	ColorChrome     string  `yaml:"colorChrome"`
	ColorChromeBlue string  `yaml:"colorChromeBlue"`
	Highlights      float64 `yaml:"highlights"`
	Shadows         float64 `yaml:"shadows"`
	NoiseReduction  float64 `yaml:"noiseReduction"`
	Sharpness       float64 `yaml:"sharpness"`
	ColorSaturation float64 `yaml:"colorSaturation"`
	GrainEffect     string  `yaml:"grainEffect"` // "Off", "Weak", "Strong/Small", ...
	Clarity         float64 `yaml:"clarity,omitempty"`
}

// A FilmRecipe is a catalog entry: a named set of in-camera settings.
type FilmRecipe struct {
	ID              string         `yaml:"id"`
	Name            string         `yaml:"name"`
	ISO             string         `yaml:"iso,omitempty"`
	UsedFor         string         `yaml:"usedFor,omitempty"`
	Characteristics string         `yaml:"characteristics,omitempty"`
	Category        []string       `yaml:"category,omitempty"`
	Tags            []string       `yaml:"tags,omitempty"`
	Settings        RecipeSettings `yaml:"settings"`
}

func (r FilmRecipe) String() string {
	return fmt.Sprintf("%s (%s, %s)", r.Name, r.Settings.FilmSimulation, r.Settings.DynamicRange)
}

func grainAmount(effect string) float64 {
	g := strings.ToUpper(effect)
	switch {
	case strings.Contains(g, "STRONG"):
		return 60
	case strings.Contains(g, "WEAK"), strings.Contains(g, "SMALL"):
		return 30
	}
	return 0
}

func sharpnessAmount(n float64) float64 { return emath.Clamp(n*20+20, 0, 100) }

// DevelopSettings maps the recipe onto the develop sliders. This is the
// direct mapping used when a catalog entry is applied to an image: the
// recipe's Kelvin and tint are taken as is, and the film simulation is not
// modelled (a LUT does that job).
func (r FilmRecipe) DevelopSettings() develop.Settings {
	s := r.Settings
	temp := s.WhiteBalance
	if temp <= 0 {
		temp = ecolor.NeutralTemperature // "Auto"
	}
	return develop.Settings{
		Temperature: temp,
		Tint:        s.TintShift,
		Highlights:  s.Highlights * 15,
		Shadows:     s.Shadows * 15,
		Saturation:  s.ColorSaturation * 10,
		Grain:       grainAmount(s.GrainEffect),
		Sharpness:   sharpnessAmount(s.Sharpness),
	}.Normalize()
}
