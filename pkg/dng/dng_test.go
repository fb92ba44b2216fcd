package dng

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rla102277/FUji-ai-lab/pkg/fimage"
)

func filled(w, h, ch int, v float64) *fimage.LinearImage {
	img := fimage.New(w, h, ch)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGB(x, y, v, v, v)
		}
	}
	return img
}

func findTag(t *testing.T, dir *tiff.Dir, id uint16) *tiff.Tag {
	for _, tag := range dir.Tags {
		if tag.Id == id {
			return tag
		}
	}
	t.Fatalf("tag %d not found", id)
	return nil
}

func tagInt(t *testing.T, dir *tiff.Dir, id uint16) int {
	v, err := findTag(t, dir, id).Int(0)
	require.NoError(t, err)
	return v
}

// samples pulls the pixel data back out, using the strip tags.
func samples(t *testing.T, b []byte) []uint16 {
	tf, err := tiff.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	require.NotEmpty(t, tf.Dirs)

	off := tagInt(t, tf.Dirs[0], tagStripOffsets)
	n := tagInt(t, tf.Dirs[0], tagStripByteCounts)
	require.LessOrEqual(t, off+n, len(b))

	out := make([]uint16, n/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(b[off+2*i:])
	}
	return out
}

func TestWhiteIsMaxValue(t *testing.T) {
	b, err := Marshal(filled(4, 4, 3, 1.0), "Classic Chrome", nil, nil)
	require.NoError(t, err)

	tf, err := tiff.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	ifd0 := tf.Dirs[0]
	assert.Equal(t, 4, tagInt(t, ifd0, tagImageWidth))
	assert.Equal(t, 4, tagInt(t, ifd0, tagImageLength))
	assert.Equal(t, 3, tagInt(t, ifd0, tagSamplesPerPixel))
	assert.Equal(t, photometricLinearRaw, tagInt(t, ifd0, tagPhotometric))
	assert.Equal(t, 1, tagInt(t, ifd0, tagCompression))

	px := samples(t, b)
	require.Len(t, px, 4*4*3)
	for _, v := range px {
		assert.Equal(t, uint16(65535), v)
	}

	num, den, err := findTag(t, ifd0, tagBaselineExposure).Rat2(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), num*den)
}

func TestHeadroom(t *testing.T) {
	img := filled(2, 2, 4, 0.5)
	img.SetRGB(1, 1, 2.5, 1, 0)

	b, err := Marshal(img, "", nil, nil)
	require.NoError(t, err)

	px := samples(t, b)
	assert.Equal(t, uint16(8192), px[0], "0.5 scaled down by 2 stops")
	assert.Equal(t, uint16(40959), px[9])
	assert.Equal(t, uint16(0), px[11])

	tf, err := tiff.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	num, den, err := findTag(t, tf.Dirs[0], tagBaselineExposure).Rat2(0)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, []int64{num, den})

	// Without headroom, highlights clip
	b, err = Marshal(img, "", nil, &Options{NoHeadroom: true})
	require.NoError(t, err)
	px = samples(t, b)
	assert.Equal(t, uint16(32768), px[0])
	assert.Equal(t, uint16(65535), px[9])
}

func TestHeadroomIsCapped(t *testing.T) {
	assert.Equal(t, 0, Headroom(filled(1, 1, 3, 1.0), 4))
	assert.Equal(t, 1, Headroom(filled(1, 1, 3, 1.5), 4))
	assert.Equal(t, 4, Headroom(filled(1, 1, 3, 1000), 4))
	assert.Equal(t, 0, Headroom(filled(1, 1, 3, 1000), 0))
}

func TestHeadroomIgnoresNonFinite(t *testing.T) {
	img := filled(2, 1, 3, 0.5)
	img.SetRGB(0, 0, math.Inf(1), math.NaN(), math.Inf(-1))
	assert.Equal(t, 0, Headroom(img, 4))

	img.SetRGB(1, 0, 1.5, 0.5, 0.5)
	assert.Equal(t, 1, Headroom(img, 4))

	b, err := Marshal(img, "", nil, nil)
	require.NoError(t, err)
	px := samples(t, b)
	assert.Equal(t, uint16(65535), px[0], "+Inf clips to white")
	assert.Equal(t, uint16(0), px[1])
	assert.Equal(t, uint16(0), px[2])
	assert.Equal(t, uint16(49151), px[3], "1.5 scaled down by 1 stop")

	tf, err := tiff.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	num, den, err := findTag(t, tf.Dirs[0], tagBaselineExposure).Rat2(0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1}, []int64{num, den})
}

func TestMetadata(t *testing.T) {
	meta := &fimage.ImageMetadata{
		Make:         "FUJIFILM",
		Model:        "X-T5",
		ISO:          800,
		ExposureTime: 1.0 / 250,
		FNumber:      2.8,
		FocalLength:  33,
		DateTime:     time.Date(2024, 5, 17, 18, 4, 5, 0, time.UTC),
	}

	b, err := Marshal(filled(3, 2, 3, 0.2), "Velvia", meta, &Options{Software: "fujidev"})
	require.NoError(t, err)

	x, err := exif.Decode(bytes.NewReader(b))
	require.NoError(t, err)

	str := func(f exif.FieldName) string {
		tag, err := x.Get(f)
		require.NoError(t, err, f)
		s, err := tag.StringVal()
		require.NoError(t, err, f)
		return s
	}
	assert.Equal(t, "FUJIFILM", str(exif.Make))
	assert.Equal(t, "X-T5", str(exif.Model))
	assert.Equal(t, "Velvia", str(exif.ImageDescription))
	assert.Equal(t, "fujidev", str(exif.Software))
	assert.Equal(t, "2024:05:17 18:04:05", str(exif.DateTimeOriginal))

	tag, err := x.Get(exif.ISOSpeedRatings)
	require.NoError(t, err)
	iso, err := tag.Int(0)
	require.NoError(t, err)
	assert.Equal(t, 800, iso)

	tag, err = x.Get(exif.ExposureTime)
	require.NoError(t, err)
	num, den, err := tag.Rat2(0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 250}, []int64{num, den})

	tag, err = x.Get(exif.FNumber)
	require.NoError(t, err)
	num, den, err = tag.Rat2(0)
	require.NoError(t, err)
	assert.Equal(t, []int64{14, 5}, []int64{num, den})

	tag, err = x.Get(exif.FocalLength)
	require.NoError(t, err)
	num, den, err = tag.Rat2(0)
	require.NoError(t, err)
	assert.Equal(t, []int64{33, 1}, []int64{num, den})

	// Pixels still where StripOffsets says
	px := samples(t, b)
	assert.Len(t, px, 18)
	assert.Equal(t, uint16(13107), px[17])
}

func TestTagsSortedAndAligned(t *testing.T) {
	meta := &fimage.ImageMetadata{Make: "FUJIFILM", Model: "X100VI"}
	b, err := Marshal(filled(2, 2, 3, 0.5), "odd", meta, nil)
	require.NoError(t, err)

	tf, err := tiff.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	require.Len(t, tf.Dirs, 1)

	prev := uint16(0)
	for _, tag := range tf.Dirs[0].Tags {
		assert.Greater(t, tag.Id, prev)
		prev = tag.Id
		if len(tag.Val) > 4 {
			assert.Equal(t, uint32(0), tag.ValOffset%2, "tag %d offset", tag.Id)
		}
	}

	ucm := findTag(t, tf.Dirs[0], tagUniqueCameraModel)
	s, err := ucm.StringVal()
	require.NoError(t, err)
	assert.Equal(t, "FUJIFILM X100VI", s)

	v := findTag(t, tf.Dirs[0], tagDNGVersion)
	assert.Equal(t, []byte{1, 4, 0, 0}, v.Val)
}

func TestSerializationErrors(t *testing.T) {
	bad := []*fimage.LinearImage{
		nil,
		{Width: 0, Height: 4, Channels: 3},
		{Width: 2, Height: 2, Channels: 2, Pix: make([]float32, 8)},
		{Width: 2, Height: 2, Channels: 3, Pix: make([]float32, 11)},
		{Width: 50000, Height: 50000, Channels: 3},
	}
	for i, img := range bad {
		_, err := Marshal(img, "x", nil, nil)
		require.Error(t, err, "case %d", i)
		var serr *SerializationError
		assert.True(t, errors.As(err, &serr), "case %d: %v", i, err)
	}
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, filled(2, 2, 3, 0.1), "p", nil, nil))
	assert.Equal(t, []byte("II*\x00"), buf.Bytes()[:4])
}

func TestToRational(t *testing.T) {
	n, d := toRational(0.004, 4294967295)
	assert.Equal(t, []int64{1, 250}, []int64{n, d})
	n, d = toRational(-0.4985314, 2147483647)
	assert.Equal(t, int64(-498531), n)
	assert.Equal(t, int64(1000000), d)
}
