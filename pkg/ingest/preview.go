package ingest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/Rla102277/FUji-ai-lab/pkg/fimage"
)

var ErrNoPreview = errors.New("no embedded JPEG preview found")

// The RAF header: magic, then (at fixed offsets) the camera name, and the
// big-endian offset and length of the full size JPEG preview.
const (
	rafMagic         = "FUJIFILMCCD-RAW "
	rafCameraOffset  = 28
	rafCameraLen     = 32
	rafJPEGOffsetPos = 84
	rafJPEGLengthPos = 88
	rafHeaderLen     = 92
)

var jpegSOI = []byte{0xFF, 0xD8, 0xFF}

func IsRAF(src []byte) bool {
	return len(src) >= rafHeaderLen && string(src[:len(rafMagic)]) == rafMagic
}

// RAFCameraName is the model name from the RAF header, e.g. "X-T5".
func RAFCameraName(src []byte) string {
	if !IsRAF(src) {
		return ""
	}
	name := src[rafCameraOffset : rafCameraOffset+rafCameraLen]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(string(name))
}

// ExtractPreview finds the embedded JPEG in a RAW file. For a RAF we use
// the header's pointer; otherwise (or if that pointer is bad) we take the
// largest complete JPEG we can find. The result is a copy.
func ExtractPreview(src []byte) ([]byte, error) {
	if IsRAF(src) {
		off := int64(binary.BigEndian.Uint32(src[rafJPEGOffsetPos:]))
		n := int64(binary.BigEndian.Uint32(src[rafJPEGLengthPos:]))
		if n > 0 && off+n <= int64(len(src)) && bytes.HasPrefix(src[off:], jpegSOI) {
			return append([]byte{}, src[off:off+n]...), nil
		}
	}

	best := []byte{}
	for pos := 0; pos < len(src); {
		i := bytes.Index(src[pos:], jpegSOI)
		if i < 0 {
			break
		}
		start := pos + i
		end := jpegEnd(src, start)
		if end < 0 {
			pos = start + 1
			continue
		}
		if end-start > len(best) {
			best = src[start:end]
		}
		pos = end
	}

	if len(best) == 0 {
		return nil, ErrNoPreview
	}
	return append([]byte{}, best...), nil
}

// jpegEnd walks the JPEG marker segments starting at an SOI, and returns
// the offset just past the EOI, or -1. Walking the segments (rather than
// looking for the first FFD9) steps over the EXIF thumbnail that a
// preview usually carries inside its APP1.
func jpegEnd(b []byte, start int) int {
	pos := start + 2
	for pos+1 < len(b) {
		if b[pos] != 0xFF {
			return -1
		}
		marker := b[pos+1]
		switch {
		case marker == 0xFF: // fill byte
			pos++
			continue
		case marker == 0xD9:
			return pos + 2
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			pos += 2
			continue
		}

		if pos+4 > len(b) {
			return -1
		}
		segLen := int(binary.BigEndian.Uint16(b[pos+2:]))
		if segLen < 2 {
			return -1
		}
		pos += 2 + segLen
		if marker != 0xDA {
			continue
		}

		// Entropy coded data runs until the next real marker
		for pos+1 < len(b) {
			if b[pos] != 0xFF {
				pos++
				continue
			}
			m := b[pos+1]
			if m == 0x00 || (m >= 0xD0 && m <= 0xD7) {
				pos += 2
				continue
			}
			if m == 0xFF {
				pos++
				continue
			}
			break
		}
	}
	return -1
}

func ratToFloat(x *exif.Exif, f exif.FieldName) float64 {
	tag, err := x.Get(f)
	if err != nil {
		return 0
	}
	r, err := tag.Rat(0)
	if err != nil {
		return 0
	}
	v, _ := r.Float64()
	return v
}

func stringField(x *exif.Exif, f exif.FieldName) string {
	tag, err := x.Get(f)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

// ExtractMetadata reads the EXIF out of a JPEG (or TIFF). Metadata is a
// nice-to-have, so failure just means nil.
func ExtractMetadata(src []byte) *fimage.ImageMetadata {
	x, err := exif.Decode(bytes.NewReader(src))
	if err != nil {
		return nil
	}

	m := &fimage.ImageMetadata{
		Make:         stringField(x, exif.Make),
		Model:        stringField(x, exif.Model),
		ExposureTime: ratToFloat(x, exif.ExposureTime),
		FNumber:      ratToFloat(x, exif.FNumber),
		FocalLength:  ratToFloat(x, exif.FocalLength),
	}
	if tag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if iso, err := tag.Int(0); err == nil {
			m.ISO = iso
		}
	}
	if t, err := x.DateTime(); err == nil {
		m.DateTime = t
	}

	return m
}
