package ingest

import (
	"bytes"
	"fmt"

	"github.com/rwcarlsen/goexif/tiff"

	"github.com/Rla102277/FUji-ai-lab/pkg/fimage"
)

type Format int

const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatPNG
	FormatTIFF
	FormatRAF
)

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatTIFF:
		return "tiff"
	case FormatRAF:
		return "raf"
	}
	return "unknown"
}

// Sniff works out the container format from the magic bytes.
func Sniff(src []byte) Format {
	switch {
	case IsRAF(src):
		return FormatRAF
	case bytes.HasPrefix(src, jpegSOI):
		return FormatJPEG
	case bytes.HasPrefix(src, []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG
	case bytes.HasPrefix(src, []byte("II*\x00")), bytes.HasPrefix(src, []byte("MM\x00*")):
		return FormatTIFF
	}
	return FormatUnknown
}

// A Source is a decoded input, ready to develop.
type Source struct {
	Image       *fimage.LinearImage
	Meta        *fimage.ImageMetadata // nil if none could be read
	Format      Format
	FromPreview bool // the native decode failed, this is the embedded JPEG
}

func (s Source) String() string {
	str := fmt.Sprintf("Source[%s, %s", s.Format, s.Image)
	if s.FromPreview {
		str += ", from preview"
	}
	if s.Meta != nil {
		str += ", " + s.Meta.String()
	}
	return str + "]"
}

type LoadOptions struct {
	DecodeOptions

	// Native decodes go to the Worker if there is one, else straight to
	// the Decoder. With neither, RAW files always use their preview.
	Worker  *Worker
	Decoder RawDecoder
}

// Load decodes src. Conventional rasters (JPEG, PNG, plain RGB TIFF) are
// decoded directly. Anything else, DNG included, is treated as RAW: the embedded preview and
// its metadata are pulled out first, then the bytes go to the native
// decoder; if that turns out to be unavailable, the preview is used
// instead.
//
// When opts.Worker is set, src is moved to the worker, and the caller
// must not touch it afterwards.
func Load(src []byte, opts LoadOptions) (*Source, error) {
	format := Sniff(src)

	switch format {
	case FormatJPEG, FormatPNG:
		return loadRaster(src, format, opts)
	case FormatTIFF:
		// Lots of RAW formats are TIFF underneath; if it isn't a plain
		// RGB TIFF, treat it as RAW.
		if !IsTIFFRaw(src) {
			if s, err := loadRaster(src, format, opts); err == nil {
				return s, nil
			}
		}
	}

	preview, _ := ExtractPreview(src)
	var meta *fimage.ImageMetadata
	if format == FormatTIFF {
		meta = ExtractMetadata(src)
	}
	if meta == nil && preview != nil {
		meta = ExtractMetadata(preview)
	}
	if meta == nil && format == FormatRAF {
		meta = &fimage.ImageMetadata{Make: "FUJIFILM", Model: RAFCameraName(src)}
	}

	var res Result
	switch {
	case opts.Worker != nil:
		res = <-opts.Worker.Submit(src)
	case opts.Decoder != nil:
		res = decodeWith(opts.Decoder, src)
	default:
		res = decodeWith(Unavailable{}, src)
	}

	if res.Err == nil {
		return &Source{Image: res.Image, Meta: meta, Format: format}, nil
	}
	if !IsEngineUnavailable(res.Err) || preview == nil {
		return nil, fmt.Errorf("load %s: %w", format, res.Err)
	}

	img, err := DecodeRaster(preview, opts.DecodeOptions)
	if err != nil {
		return nil, fmt.Errorf("load %s preview (after %v): %w", format, res.Err, err)
	}
	return &Source{Image: img, Meta: meta, Format: format, FromPreview: true}, nil
}

const (
	tiffTagNewSubfileType = 254
	tiffTagDNGVersion     = 50706
)

// IsTIFFRaw reports whether a TIFF container holds RAW data rather than
// a finished image: it is a DNG, or its first IFD is flagged as a
// reduced resolution thumbnail of something else.
func IsTIFFRaw(src []byte) bool {
	tf, err := tiff.Decode(bytes.NewReader(src))
	if err != nil || len(tf.Dirs) == 0 {
		return false
	}
	for _, tag := range tf.Dirs[0].Tags {
		switch tag.Id {
		case tiffTagDNGVersion:
			return true
		case tiffTagNewSubfileType:
			if v, err := tag.Int(0); err == nil && v != 0 {
				return true
			}
		}
	}
	return false
}

func decodeWith(d RawDecoder, src []byte) Result {
	w := Worker{decoder: d}
	return w.decode(src)
}

func loadRaster(src []byte, format Format, opts LoadOptions) (*Source, error) {
	img, err := DecodeRaster(src, opts.DecodeOptions)
	if err != nil {
		return nil, err
	}
	return &Source{
		Image:  img,
		Meta:   ExtractMetadata(src),
		Format: format,
	}, nil
}
