package dng

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/Rla102277/FUji-ai-lab/pkg/ecolor"
	"github.com/Rla102277/FUji-ai-lab/pkg/emath"
	"github.com/Rla102277/FUji-ai-lab/pkg/fimage"
)

// Tags we write
const (
	tagNewSubfileType         = 254
	tagImageWidth             = 256
	tagImageLength            = 257
	tagBitsPerSample          = 258
	tagCompression            = 259
	tagPhotometric            = 262
	tagImageDescription       = 270
	tagMake                   = 271
	tagModel                  = 272
	tagStripOffsets           = 273
	tagOrientation            = 274
	tagSamplesPerPixel        = 277
	tagRowsPerStrip           = 278
	tagStripByteCounts        = 279
	tagPlanarConfiguration    = 284
	tagSoftware               = 305
	tagDateTime               = 306
	tagExposureTime           = 33434
	tagFNumber                = 33437
	tagExifIFD                = 34665
	tagISOSpeedRatings        = 34855
	tagExifVersion            = 36864
	tagDateTimeOriginal       = 36867
	tagFocalLength            = 37386
	tagDNGVersion             = 50706
	tagDNGBackwardVersion     = 50707
	tagUniqueCameraModel      = 50708
	tagWhiteLevel             = 50717
	tagColorMatrix1           = 50721
	tagAsShotNeutral          = 50728
	tagBaselineExposure       = 50730
	tagCalibrationIlluminant1 = 50778
	tagProfileName            = 50936
	tagForwardMatrix1         = 50964
)

const (
	photometricLinearRaw = 34892
	illuminantD65        = 21
	whiteLevel           = 65535
	maxFileSize          = 1<<32 - 1
	headerLen            = 8
	exifDateFormat       = "2006:01:02 15:04:05"
)

// A SerializationError means no DNG could be built from the inputs.
type SerializationError struct {
	Reason string
}

func (e *SerializationError) Error() string { return "dng: " + e.Reason }

// Options tweaks the output; a nil *Options gets the defaults.
type Options struct {
	// By default, images brighter than 1.0 are scaled down by up to 4
	// stops to fit into 16 bits, and BaselineExposure tells the reader
	// to scale them back up. With NoHeadroom, values above 1.0 clip.
	NoHeadroom bool
	MaxHeadroom int // stops; 0 means 4

	Software          string
	UniqueCameraModel string    // defaults to make + model
	Now               time.Time // for the DateTime tag, if the metadata has no time
}

func (o *Options) maxHeadroom() int {
	if o.NoHeadroom {
		return 0
	}
	if o.MaxHeadroom <= 0 || o.MaxHeadroom > 16 {
		return 4
	}
	return o.MaxHeadroom
}

// Headroom is how many stops the image has to be scaled down by so that
// the brightest sample fits.
func Headroom(img *fimage.LinearImage, max int) int {
	peak := 0.0
	for i := 0; i < len(img.Pix); i++ {
		if img.Channels == 4 && i%4 == 3 {
			continue
		}
		v := float64(img.Pix[i])
		if math.IsInf(v, 0) || math.IsNaN(v) {
			continue // quantize clips these anyway
		}
		if v > peak {
			peak = v
		}
	}
	if peak <= 1.0 || max <= 0 {
		return 0
	}
	k := int(math.Ceil(math.Log2(peak)))
	if k > max {
		k = max
	}
	return k
}

func quantize(v float32, scale float64) uint16 {
	f := float64(v) * scale
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= whiteLevel {
		return whiteLevel
	}
	return uint16(math.Round(f))
}

// Marshal builds the DNG in memory.
func Marshal(img *fimage.LinearImage, profileName string, meta *fimage.ImageMetadata, opts *Options) ([]byte, error) {
	if opts == nil {
		opts = &Options{}
	}
	if img == nil {
		return nil, &SerializationError{"nil image"}
	}
	stripLen := int64(img.Width) * int64(img.Height) * 3 * 2
	if stripLen > maxFileSize {
		return nil, &SerializationError{fmt.Sprintf("%dx%d is too big for a 32-bit TIFF", img.Width, img.Height)}
	}
	if err := img.Validate(); err != nil {
		return nil, &SerializationError{err.Error()}
	}

	k := Headroom(img, opts.maxHeadroom())
	scale := whiteLevel / math.Exp2(float64(k))

	ifd0, stripOffset, exifPointer, err := buildIFD0(img, profileName, meta, opts, k, stripLen)
	if err != nil {
		return nil, err
	}

	var exif *ifd
	if meta != nil {
		exif = buildExifIFD(meta)
	}

	// Lay it all out: header, IFD0, Exif IFD, pixels
	ifd0Offset := int64(headerLen)
	exifOffset := ifd0Offset + ifd0.size()
	pixOffset := exifOffset
	if exif != nil {
		pixOffset += exif.size()
		exifPointer.data[0] = uint32(exifOffset)
	}
	stripOffset.data[0] = uint32(pixOffset)

	if pixOffset+stripLen > maxFileSize {
		return nil, &SerializationError{"output would exceed 4GB"}
	}

	buf := bytes.NewBuffer(make([]byte, 0, pixOffset+stripLen))
	buf.Write([]byte{'I', 'I', 42, 0})
	binary.Write(buf, binary.LittleEndian, uint32(ifd0Offset))
	buf.Write(ifd0.marshal(ifd0Offset))
	if exif != nil {
		buf.Write(exif.marshal(exifOffset))
	}

	row := make([]byte, img.Width*3*2)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			i := (y*img.Width + x) * img.Channels
			for c := 0; c < 3; c++ {
				binary.LittleEndian.PutUint16(row[(x*3+c)*2:], quantize(img.Pix[i+c], scale))
			}
		}
		buf.Write(row)
	}

	return buf.Bytes(), nil
}

// Encode writes a DNG of the image: one uncompressed strip of 16-bit
// linear RGB, tagged as LinearRaw with sRGB primaries.
func Encode(w io.Writer, img *fimage.LinearImage, profileName string, meta *fimage.ImageMetadata, opts *Options) error {
	b, err := Marshal(img, profileName, meta, opts)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("dng: write: %w", err)
	}
	return nil
}

func matrixVals(m emath.Mat3) []float64 {
	return m[:]
}

// buildIFD0 returns the main IFD, plus the two entries whose values are
// offsets that can only be filled in once the layout is known.
func buildIFD0(img *fimage.LinearImage, profileName string, meta *fimage.ImageMetadata, opts *Options, headroom int, stripLen int64) (*ifd, *entry, *entry, error) {
	d := &ifd{}

	d.addLong(tagNewSubfileType, 0)
	d.addLong(tagImageWidth, uint32(img.Width))
	d.addLong(tagImageLength, uint32(img.Height))
	d.addShort(tagBitsPerSample, 16, 16, 16)
	d.addShort(tagCompression, 1)
	d.addShort(tagPhotometric, photometricLinearRaw)
	d.addASCII(tagImageDescription, profileName)
	stripOffset := d.addLong(tagStripOffsets, 0)
	d.addShort(tagOrientation, 1)
	d.addShort(tagSamplesPerPixel, 3)
	d.addLong(tagRowsPerStrip, uint32(img.Height))
	d.addLong(tagStripByteCounts, uint32(stripLen))
	d.addShort(tagPlanarConfiguration, 1)
	d.addASCII(tagSoftware, opts.Software)

	when := opts.Now
	camera := opts.UniqueCameraModel
	var exifPointer *entry
	if meta != nil {
		d.addASCII(tagMake, meta.Make)
		d.addASCII(tagModel, meta.Model)
		if !meta.DateTime.IsZero() {
			when = meta.DateTime
		}
		if camera == "" {
			camera = fmt.Sprintf("%s %s", meta.Make, meta.Model)
		}
		exifPointer = d.addLong(tagExifIFD, 0)
	}
	if !when.IsZero() {
		d.addASCII(tagDateTime, when.Format(exifDateFormat))
	}
	if camera == "" || camera == " " {
		camera = "Linear sRGB"
	}

	d.addBytes(tagDNGVersion, typeByte, []byte{1, 4, 0, 0})
	d.addBytes(tagDNGBackwardVersion, typeByte, []byte{1, 1, 0, 0})
	d.addASCII(tagUniqueCameraModel, camera)
	d.addLong(tagWhiteLevel, whiteLevel)

	fm, err := ecolor.ForwardMatrix()
	if err != nil {
		return nil, nil, nil, &SerializationError{fmt.Sprintf("forward matrix: %v", err)}
	}
	d.addSRational(tagColorMatrix1, matrixVals(ecolor.ColorMatrix())...)
	d.addSRational(tagForwardMatrix1, matrixVals(fm)...)
	d.addRational(tagAsShotNeutral, 1, 1, 1)
	d.addSRational(tagBaselineExposure, float64(headroom))
	d.addShort(tagCalibrationIlluminant1, illuminantD65)
	d.addASCII(tagProfileName, profileName)

	return d, stripOffset, exifPointer, nil
}

func buildExifIFD(meta *fimage.ImageMetadata) *ifd {
	d := &ifd{}
	d.addBytes(tagExifVersion, typeUndefined, []byte("0230"))
	if meta.ExposureTime > 0 {
		d.addRational(tagExposureTime, meta.ExposureTime)
	}
	if meta.FNumber > 0 {
		d.addRational(tagFNumber, meta.FNumber)
	}
	if meta.ISO > 0 {
		d.addShort(tagISOSpeedRatings, uint16(emath.Clamp(float64(meta.ISO), 0, 65535)))
	}
	if !meta.DateTime.IsZero() {
		d.addASCII(tagDateTimeOriginal, meta.DateTime.Format(exifDateFormat))
	}
	if meta.FocalLength > 0 {
		d.addRational(tagFocalLength, meta.FocalLength)
	}
	return d
}
