package ingest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"

	"golang.org/x/image/tiff"

	"github.com/Rla102277/FUji-ai-lab/pkg/ecolor"
	"github.com/Rla102277/FUji-ai-lab/pkg/fimage"
)

// A Raster is what a native decoder hands back: interleaved RGB, either
// 8-bit, or 16-bit big-endian (the same layout as image.RGBA64).
type Raster struct {
	Width    int
	Height   int
	BitDepth int  // 8 or 16
	Linear   bool // samples are already linear light, not sRGB encoded
	Pix      []byte
}

// A RawDecoder turns camera-native bytes into a Raster. It either
// succeeds, or fails with an *EngineUnavailableError; callers fall back
// to the embedded preview on the latter.
type RawDecoder interface {
	Decode(src []byte) (Raster, error)
}

// An EngineUnavailableError means the native decoder is missing, or could
// not handle the input.
type EngineUnavailableError struct {
	Engine string
	Err    error
}

func (e *EngineUnavailableError) Error() string {
	return fmt.Sprintf("raw engine %q unavailable: %v", e.Engine, e.Err)
}

func (e *EngineUnavailableError) Unwrap() error { return e.Err }

// IsEngineUnavailable is a shortcut for errors.As.
func IsEngineUnavailable(err error) bool {
	var eu *EngineUnavailableError
	return errors.As(err, &eu)
}

// Unavailable is the decoder to use when there isn't one.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Decode([]byte) (Raster, error) {
	reason := u.Reason
	if reason == "" {
		reason = "no raw decoder configured"
	}
	return Raster{}, &EngineUnavailableError{"none", errors.New(reason)}
}

// Func adapts an in-process decode function. Any error it returns is
// reported as the engine being unavailable.
type Func func(src []byte) (Raster, error)

func (f Func) Decode(src []byte) (Raster, error) {
	r, err := f(src)
	if err != nil {
		if IsEngineUnavailable(err) {
			return Raster{}, err
		}
		return Raster{}, &EngineUnavailableError{"func", err}
	}
	return r, nil
}

// ExecDecoder runs an external dcraw compatible binary (dcraw, or
// LibRaw's dcraw_emu), which must write a TIFF to stdout.
type ExecDecoder struct {
	Command string
	Args    []string // the input filename is appended
}

// DefaultExecDecoder asks dcraw for camera white balance, 16-bit sRGB
// output with the sRGB transfer curve, as a TIFF on stdout.
func DefaultExecDecoder() ExecDecoder {
	return ExecDecoder{
		Command: "dcraw",
		Args:    []string{"-c", "-w", "-o", "1", "-6", "-g", "2.4", "12.92", "-T"},
	}
}

func (d ExecDecoder) String() string { return fmt.Sprintf("exec(%s %v)", d.Command, d.Args) }

func (d ExecDecoder) Decode(src []byte) (Raster, error) {
	unavailable := func(err error) (Raster, error) {
		return Raster{}, &EngineUnavailableError{d.Command, err}
	}

	path, err := exec.LookPath(d.Command)
	if err != nil {
		return unavailable(err)
	}

	// dcraw wants a filename
	tmp, err := os.CreateTemp("", "fujidev-raw-*")
	if err != nil {
		return unavailable(fmt.Errorf("tempfile: %w", err))
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(src); err != nil {
		tmp.Close()
		return unavailable(fmt.Errorf("tempfile write: %w", err))
	}
	tmp.Close()

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(path, append(append([]string{}, d.Args...), tmp.Name())...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return unavailable(fmt.Errorf("%v: %s", err, bytes.TrimSpace(stderr.Bytes())))
	}

	img, err := tiff.Decode(&stdout)
	if err != nil {
		return unavailable(fmt.Errorf("reading output TIFF: %w", err))
	}
	return RasterFromImage(img), nil
}

// RasterFromImage packs a decoded image as a Raster, keeping 16 bits if
// the image has them.
func RasterFromImage(img image.Image) Raster {
	b := img.Bounds()
	r := Raster{Width: b.Dx(), Height: b.Dy(), BitDepth: 8}
	if is16Bit(img) {
		r.BitDepth = 16
	}
	r.Pix = make([]byte, r.Width*r.Height*3*r.BitDepth/8)

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			if r.BitDepth == 16 {
				binary.BigEndian.PutUint16(r.Pix[i:], uint16(cr))
				binary.BigEndian.PutUint16(r.Pix[i+2:], uint16(cg))
				binary.BigEndian.PutUint16(r.Pix[i+4:], uint16(cb))
				i += 6
			} else {
				r.Pix[i], r.Pix[i+1], r.Pix[i+2] = byte(cr>>8), byte(cg>>8), byte(cb>>8)
				i += 3
			}
		}
	}
	return r
}

// FromRaster builds the linear image. Encoded rasters go through the sRGB
// transfer function; linear ones are just rescaled to [0,1].
func FromRaster(r Raster) (*fimage.LinearImage, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf("raster has bad dimensions %dx%d", r.Width, r.Height)
	}
	if r.BitDepth != 8 && r.BitDepth != 16 {
		return nil, fmt.Errorf("raster has unsupported bit depth %d", r.BitDepth)
	}
	if want := r.Width * r.Height * 3 * r.BitDepth / 8; len(r.Pix) != want {
		return nil, fmt.Errorf("raster %dx%d@%d holds %d bytes, wanted %d", r.Width, r.Height, r.BitDepth, len(r.Pix), want)
	}

	li := fimage.New(r.Width, r.Height, 3)
	for i := 0; i < r.Width*r.Height*3; i++ {
		var v float64
		if r.BitDepth == 8 {
			b := r.Pix[i]
			if r.Linear {
				v = float64(b) / 255.0
			} else {
				v = ecolor.SRGBToLinear(b)
			}
		} else {
			s := binary.BigEndian.Uint16(r.Pix[2*i:])
			if r.Linear {
				v = float64(s) / 65535.0
			} else {
				v = ecolor.SRGB16ToLinear(s)
			}
		}
		li.Pix[i] = float32(v)
	}

	return li, nil
}
