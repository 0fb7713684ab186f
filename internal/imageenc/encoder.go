package imageenc

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"

	// Registered for Decode; uploads are limited to JPEG and PNG.
	_ "image/png"

	"github.com/rs/zerolog/log"
)

// MIMEType is the media type of every payload produced by Encoder.
const MIMEType = "image/jpeg"

// DefaultQuality matches the usual JPEG library default.
const DefaultQuality = 75

// DefaultMaxPixels caps width*height of a decoded upload (about 89.5
// megapixels, a quarter GiB of 24-bit RGB divided by three).
const DefaultMaxPixels = 89_478_485

// ErrTooManyPixels is returned by DecodeLimited when the declared
// dimensions exceed the pixel cap.
var ErrTooManyPixels = errors.New("image has too many pixels")

// Encoder turns decoded images into base64 JPEG payloads.
type Encoder struct {
	Quality int
}

// NewEncoder returns an encoder with the given JPEG quality.
// Out of range values fall back to DefaultQuality.
func NewEncoder(quality int) *Encoder {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Encoder{Quality: quality}
}

// Encode normalizes img to RGB, compresses it as JPEG and returns the
// base64 (standard alphabet) form of the JPEG bytes.
func (e *Encoder) Encode(img image.Image) (string, error) {
	quality := e.Quality
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	rgb := ToRGB(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgb, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("failed to encode JPEG: %w", err)
	}

	b := rgb.Bounds()
	log.Debug().
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Int("jpeg_size", buf.Len()).
		Int("quality", quality).
		Msg("encoded image as JPEG")

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Encode is a shorthand for an Encoder with DefaultQuality.
func Encode(img image.Image) (string, error) {
	return NewEncoder(DefaultQuality).Encode(img)
}

// ToRGB drops alpha and palette information. Palette images are always
// expanded; alpha-capable images are converted unless fully opaque. Each
// pixel keeps its straight (non-premultiplied) RGB value and becomes opaque,
// there is no compositing against a background. Other color modes are
// returned as is.
func ToRGB(img image.Image) image.Image {
	if !needsRGB(img) {
		return img
	}

	b := img.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}

type opaquer interface {
	Opaque() bool
}

func needsRGB(img image.Image) bool {
	switch img.(type) {
	case *image.Paletted:
		return true
	case *image.RGBA, *image.RGBA64, *image.NRGBA, *image.NRGBA64,
		*image.Alpha, *image.Alpha16, *image.NYCbCrA:
		if o, ok := img.(opaquer); ok && o.Opaque() {
			return false
		}
		return true
	default:
		return false
	}
}

// DataURL wraps a base64 payload into a data URL.
func DataURL(mime, payload string) string {
	return "data:" + mime + ";base64," + payload
}

// Decode reads a JPEG or PNG image. The returned string is the format name
// reported by the image package.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// DecodeLimited reads the image header first and refuses images whose
// width*height exceeds maxPixels before any pixel data is allocated.
// maxPixels <= 0 selects DefaultMaxPixels.
func DecodeLimited(data []byte, maxPixels int) (image.Image, string, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > int64(maxPixels) {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d", ErrTooManyPixels, cfg.Width, cfg.Height, maxPixels)
	}
	return Decode(bytes.NewReader(data))
}

// DecodeBase64 converts a base64 payload back to binary data.
func DecodeBase64(payload string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(payload)
}

// Dimensions extracts dimensions from JPEG bytes.
func Dimensions(jpegBytes []byte) (width, height int, err error) {
	img, err := jpeg.Decode(bytes.NewReader(jpegBytes))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode JPEG: %w", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

// EncodeBytes converts binary data to base64 without re-encoding it.
func EncodeBytes(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
