package lut

import (
	"image"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/Rla102277/FUji-ai-lab/pkg/ecolor"
)

// VizOptions controls the layout of Visualize.
type VizOptions struct {
	Hues     int  // columns
	Values   int  // rows; each row is a brightness level
	CellSize int  // pixels
	Caption  bool // draw the title across the top
}

func DefaultVizOptions() VizOptions {
	return VizOptions{Hues: 24, Values: 8, CellSize: 16, Caption: true}
}

const captionHeight = 20

// Visualize renders a hue x value grid of swatches. The top half of each
// cell is the input color, the bottom half is what the LUT makes of it.
// The inputs are fixed, so the output only depends on the table.
func Visualize(t *Table, opts VizOptions) image.Image {
	if opts.Hues <= 0 || opts.Values <= 0 || opts.CellSize <= 1 {
		opts = DefaultVizOptions()
	}

	top := 0
	if opts.Caption {
		top = captionHeight
	}
	w := opts.Hues * opts.CellSize
	h := top + opts.Values*opts.CellSize

	dc := gg.NewContext(w, h)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	half := float64(opts.CellSize) / 2
	for row := 0; row < opts.Values; row++ {
		// Brightest row at the top
		v := 1.0 - float64(row)/float64(opts.Values)
		for col := 0; col < opts.Hues; col++ {
			hue := 360.0 * float64(col) / float64(opts.Hues)
			in := colorful.Hsv(hue, 0.8, v)
			r, g, b := in.LinearRgb()
			or, og, ob := t.Sample(r, g, b)

			x := float64(col * opts.CellSize)
			y := float64(top + row*opts.CellSize)

			setLinear(dc, r, g, b)
			dc.DrawRectangle(x, y, float64(opts.CellSize), half)
			dc.Fill()

			setLinear(dc, or, og, ob)
			dc.DrawRectangle(x, y+half, float64(opts.CellSize), half)
			dc.Fill()
		}
	}

	if opts.Caption {
		title := t.Title
		if title == "" {
			title = "untitled LUT"
		}
		dc.SetRGB(1, 1, 1)
		dc.DrawStringAnchored(title, 4, captionHeight/2, 0, 0.5)
	}

	return dc.Image()
}

// gg wants display (sRGB) values
func setLinear(dc *gg.Context, r, g, b float64) {
	dc.SetRGB255(int(ecolor.LinearToSRGB(r)), int(ecolor.LinearToSRGB(g)), int(ecolor.LinearToSRGB(b)))
}
