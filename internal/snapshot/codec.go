// Package snapshot converts surface pixels to and from a self-describing,
// transportable image encoding (a base64 data URL).
package snapshot

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	ErrDecode = errors.New("failed to decode snapshot")
	ErrEncode = errors.New("failed to encode snapshot")
)

const pngPrefix = "data:image/png;base64,"

func Encode(img image.Image) (string, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncode, err)
	}

	return pngPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode returns the pixels of encoded scaled to width x height. The result is
// a fresh image; nothing is written on failure.
func Decode(encoded string, width, height int) (*image.NRGBA, error) {
	raw, err := payload(encoded)
	if err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid target size %dx%d", ErrDecode, width, height)
	}

	return Fit(src, width, height), nil
}

// Fit returns src as a width x height NRGBA image, scaling when the sizes
// differ.
func Fit(src image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	if n, ok := src.(*image.NRGBA); ok && n.Bounds().Size() == dst.Bounds().Size() {
		copyRows(dst, n)
	} else if src.Bounds().Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}

	return dst
}

// copyRows copies NRGBA pixels verbatim, keeping the color of fully
// transparent pixels.
func copyRows(dst, src *image.NRGBA) {
	b := src.Bounds()
	for y := 0; y < b.Dy(); y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		di := dst.PixOffset(0, y)
		copy(dst.Pix[di:di+4*b.Dx()], src.Pix[si:si+4*b.Dx()])
	}
}

// DecodeConfig reads only the image header of encoded.
func DecodeConfig(encoded string) (image.Config, string, error) {
	raw, err := payload(encoded)
	if err != nil {
		return image.Config{}, "", err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return cfg, format, nil
}

// payload accepts "data:<mime>;base64,<data>" or bare base64.
func payload(encoded string) ([]byte, error) {
	data := strings.TrimSpace(encoded)
	if strings.HasPrefix(data, "data:") {
		meta, rest, ok := strings.Cut(data, ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("%w: unsupported data url", ErrDecode)
		}
		data = rest
	}

	if data == "" {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return raw, nil
}
