package ocr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func grayImage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	return img
}

// pngHeader returns a PNG that holds only a signature and an IHDR chunk
// declaring a w x h grayscale image.
func pngHeader(w, h uint32) []byte {
	var ihdr bytes.Buffer
	ihdr.WriteString("IHDR")
	_ = binary.Write(&ihdr, binary.BigEndian, w)
	_ = binary.Write(&ihdr, binary.BigEndian, h)
	ihdr.Write([]byte{8, 0, 0, 0, 0}) // bit depth, gray, deflate, no filter, no interlace

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(ihdr.Len()-4))
	buf.Write(ihdr.Bytes())
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr.Bytes()))
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	t.Run("png", func(t *testing.T) {
		format, err := DetectFormat(encodePNG(t, grayImage(4, 4)))
		require.NoError(t, err)
		assert.Equal(t, FormatPNG, format)
	})

	t.Run("jpeg", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, grayImage(4, 4), nil))
		format, err := DetectFormat(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, FormatJPEG, format)
	})

	t.Run("gif is rejected", func(t *testing.T) {
		var buf bytes.Buffer
		palette := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.White, color.Black})
		require.NoError(t, gif.Encode(&buf, palette, nil))

		_, err := DetectFormat(buf.Bytes())
		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.Equal(t, "gif", decodeErr.Format)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := DetectFormat([]byte("definitely not an image"))
		var decodeErr *DecodeError
		assert.True(t, errors.As(err, &decodeErr))
	})
}

func TestPrepare(t *testing.T) {
	t.Run("converts to RGBA png without scaling", func(t *testing.T) {
		prepared, err := Prepare(encodePNG(t, grayImage(40, 20)), 0, 0)
		require.NoError(t, err)
		assert.Equal(t, FormatPNG, prepared.SourceFormat)
		assert.Equal(t, 40, prepared.Width)
		assert.Equal(t, 20, prepared.Height)

		decoded, err := png.Decode(bytes.NewReader(prepared.PNG))
		require.NoError(t, err)
		assert.Equal(t, 40, decoded.Bounds().Dx())
		_, isRGBA := decoded.(*image.RGBA)
		_, isNRGBA := decoded.(*image.NRGBA)
		assert.True(t, isRGBA || isNRGBA, "expected a colour image, got %T", decoded)
	})

	t.Run("upscales small images", func(t *testing.T) {
		prepared, err := Prepare(encodePNG(t, grayImage(50, 100)), 100, 0)
		require.NoError(t, err)
		assert.Equal(t, 100, prepared.Width)
		assert.Equal(t, 200, prepared.Height)
		assert.Equal(t, 50, prepared.OriginalWidth)
	})

	t.Run("caps the upscale factor", func(t *testing.T) {
		prepared, err := Prepare(encodePNG(t, grayImage(10, 10)), 1000, 0)
		require.NoError(t, err)
		assert.Equal(t, 40, prepared.Width)
	})

	t.Run("truncated png is a decode error", func(t *testing.T) {
		data := encodePNG(t, grayImage(30, 30))
		_, err := Prepare(data[:len(data)-20], 0, 0)
		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.Contains(t, err.Error(), "cannot decode")
	})

	t.Run("oversized header is rejected before decoding", func(t *testing.T) {
		data := pngHeader(60000, 60000)
		format, err := DetectFormat(data)
		require.NoError(t, err)
		require.Equal(t, FormatPNG, format)

		_, err = Prepare(data, 0, 0)
		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.Equal(t, FormatPNG, decodeErr.Format)
		assert.ErrorIs(t, err, ErrImageTooLarge)
		assert.Contains(t, err.Error(), "60000x60000")
	})

	t.Run("custom pixel limit", func(t *testing.T) {
		_, err := Prepare(encodePNG(t, grayImage(40, 20)), 0, 799)
		assert.ErrorIs(t, err, ErrImageTooLarge)

		prepared, err := Prepare(encodePNG(t, grayImage(40, 20)), 0, 800)
		require.NoError(t, err)
		assert.Equal(t, 40, prepared.Width)
	})

	t.Run("upscaling stays within the pixel limit", func(t *testing.T) {
		prepared, err := Prepare(encodePNG(t, grayImage(10, 10)), 1000, 400)
		require.NoError(t, err)
		assert.Equal(t, 20, prepared.Width)
		assert.Equal(t, 20, prepared.Height)
	})
}

func TestUpscaleFactor(t *testing.T) {
	testCases := []struct {
		name     string
		w, h     int
		min      int
		maxPix   int
		expected float64
	}{
		{"disabled", 10, 10, 0, 0, 1},
		{"large enough", 1200, 1000, 1000, 0, 1},
		{"double", 500, 800, 1000, 0, 2},
		{"capped", 10, 2000, 1000, 0, maxUpscale},
		{"limited by pixels", 100, 100, 1000, 90_000, 3},
		{"never shrinks", 100, 100, 1000, 5_000, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, upscaleFactor(tc.w, tc.h, tc.min, tc.maxPix))
		})
	}
}
