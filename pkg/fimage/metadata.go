package fimage

import (
	"fmt"
	"math"
	"time"
)

// ImageMetadata is the shooting information we carry from the source
// file through to the DNG. Everything is optional; zero means unknown.
type ImageMetadata struct {
	Make         string
	Model        string
	ISO          int
	ExposureTime float64 // seconds
	FNumber      float64
	FocalLength  float64 // mm
	DateTime     time.Time
}

func (m ImageMetadata) String() string {
	str := fmt.Sprintf("%s %s", m.Make, m.Model)
	if m.ExposureTime > 0 {
		if m.ExposureTime < 1 {
			str += fmt.Sprintf(", 1/%.0fs", 1/m.ExposureTime)
		} else {
			str += fmt.Sprintf(", %.1fs", m.ExposureTime)
		}
	}
	if m.FNumber > 0 {
		str += fmt.Sprintf(", f/%.1f", m.FNumber)
	}
	if m.ISO > 0 {
		str += fmt.Sprintf(", ISO %d", m.ISO)
	}
	if m.FocalLength > 0 {
		str += fmt.Sprintf(", %.0fmm", m.FocalLength)
	}
	if !m.DateTime.IsZero() {
		str += ", " + m.DateTime.Format("2006-01-02 15:04:05")
	}
	return str
}

// EV100 is the exposure value of the shot, normalized to ISO 100:
// log2(N^2/t) - log2(ISO/100). See
// https://en.wikipedia.org/wiki/Exposure_value. It needs the aperture,
// shutter speed and ISO; if any are unknown, ok is false.
func (m ImageMetadata) EV100() (ev float64, ok bool) {
	if m.FNumber <= 0 || m.ExposureTime <= 0 || m.ISO <= 0 {
		return 0, false
	}
	return math.Log2(m.FNumber*m.FNumber/m.ExposureTime) - math.Log2(float64(m.ISO)/100), true
}
