package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/draw"
)

const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"

	// maxUpscale bounds the enlargement of small images
	maxUpscale = 4.0

	// DefaultMaxPixels caps the declared width*height of an image before it is decoded
	DefaultMaxPixels = 40_000_000
)

var (
	// ErrUnsupportedFormat is wrapped by DecodeError for anything that is not JPEG or PNG
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrImageTooLarge is wrapped by DecodeError when the declared dimensions exceed the pixel limit
	ErrImageTooLarge = errors.New("image exceeds the pixel limit")
)

// DecodeError reports artifact bytes that cannot be read as a supported image
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("cannot decode %s image: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("cannot decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// PreparedImage is an image converted to the layout the OCR engine expects
type PreparedImage struct {
	PNG            []byte
	SourceFormat   string
	Width, Height  int
	OriginalWidth  int
	OriginalHeight int
}

// DetectFormat returns "jpeg" or "png" for supported images, and a DecodeError otherwise.
func DetectFormat(data []byte) (string, error) {
	_, format, err := decodeConfig(data)
	return format, err
}

// decodeConfig reads only the image header
func decodeConfig(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", &DecodeError{Err: err}
	}
	if format != FormatJPEG && format != FormatPNG {
		return image.Config{}, "", &DecodeError{Format: format, Err: ErrUnsupportedFormat}
	}
	return cfg, format, nil
}

// Prepare decodes a JPEG or PNG image into an RGBA pixel buffer and re-encodes
// it as PNG. When the shorter side is below minDimension the image is upscaled
// with Catmull-Rom interpolation, which helps Tesseract on small screenshots.
//
// Images whose header declares more than maxPixels pixels are rejected before
// any pixel is decoded, and upscaling never grows an image past that limit.
// A maxPixels of zero or less means DefaultMaxPixels.
func Prepare(data []byte, minDimension, maxPixels int) (*PreparedImage, error) {
	header, format, err := decodeConfig(data)
	if err != nil {
		return nil, err
	}

	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if declared := int64(header.Width) * int64(header.Height); declared > int64(maxPixels) {
		return nil, &DecodeError{
			Format: format,
			Err:    fmt.Errorf("%w: %dx%d is more than %d pixels", ErrImageTooLarge, header.Width, header.Height, maxPixels),
		}
	}

	var src image.Image
	switch format {
	case FormatJPEG:
		src, err = jpeg.Decode(bytes.NewReader(data))
	default:
		src, err = png.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, &DecodeError{Format: format, Err: errors.New("image has no pixels")}
	}

	scale := upscaleFactor(w, h, minDimension, maxPixels)
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	if scale == 1 {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode prepared image: %w", err)
	}

	return &PreparedImage{
		PNG:            buf.Bytes(),
		SourceFormat:   format,
		Width:          dst.Bounds().Dx(),
		Height:         dst.Bounds().Dy(),
		OriginalWidth:  w,
		OriginalHeight: h,
	}, nil
}

func upscaleFactor(w, h, minDimension, maxPixels int) float64 {
	if minDimension <= 0 {
		return 1
	}
	short := w
	if h < short {
		short = h
	}
	if short >= minDimension {
		return 1
	}
	scale := math.Min(float64(minDimension)/float64(short), maxUpscale)
	if maxPixels > 0 {
		// Area grows with the square of the scale
		scale = math.Min(scale, math.Sqrt(float64(maxPixels)/(float64(w)*float64(h))))
	}
	return math.Max(scale, 1)
}
