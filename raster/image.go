// Package raster turns SVG documents into PNG images. It holds the hooks the flattener uses to
// rasterize masks, a default in-process renderer and a default color matrix applier.
package raster

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"github.com/jphsd/svgflat/filter"
	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/xml"
)

// Image is a rasterized region of a document. Left, Top, Width and Height are in the user units of
// the rasterized document.
type Image struct {
	Left, Top     float64
	Width, Height float64
	PNG           []byte
}

// Empty reports whether img covers no visible area.
func (img *Image) Empty() bool {
	return img == nil || img.Width <= 0 || img.Height <= 0 || len(img.PNG) == 0
}

// DataURI returns the PNG as a base64 data URI.
func (img *Image) DataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(img.PNG)
}

// Element returns an <image> placing img at its stored bounds.
func (img *Image) Element() *xml.Element {
	res := xml.NewNode("image")
	res.SetAttr("x", svg.FormatNumber(img.Left))
	res.SetAttr("y", svg.FormatNumber(img.Top))
	res.SetAttr("width", svg.FormatNumber(img.Width))
	res.SetAttr("height", svg.FormatNumber(img.Height))
	res.SetAttr("preserveAspectRatio", "none")
	res.SetAttr("href", img.DataURI())
	return res
}

// Rasterizer renders a complete SVG document. A nil image with a nil error means nothing visible
// was drawn.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc *xml.Element) (*Image, error)
}

// RasterizerFunc adapts a function to the Rasterizer interface.
type RasterizerFunc func(ctx context.Context, doc *xml.Element) (*Image, error)

// Rasterize calls f.
func (f RasterizerFunc) Rasterize(ctx context.Context, doc *xml.Element) (*Image, error) {
	return f(ctx, doc)
}

// ColorMatrixApplier filters PNG pixels through color matrices applied one after another.
type ColorMatrixApplier interface {
	ApplyColorMatrices(ctx context.Context, pngData []byte, matrices []filter.ColorMatrix) ([]byte, error)
}

// ApplierFunc adapts a function to the ColorMatrixApplier interface.
type ApplierFunc func(ctx context.Context, pngData []byte, matrices []filter.ColorMatrix) ([]byte, error)

// ApplyColorMatrices calls f.
func (f ApplierFunc) ApplyColorMatrices(ctx context.Context, pngData []byte, matrices []filter.ColorMatrix) ([]byte, error) {
	return f(ctx, pngData, matrices)
}

// ApplyColorMatrices is the default ColorMatrixApplier. Pixels are taken as non-premultiplied 8-bit
// channels, each matrix is applied in turn and the result clamped and rounded before the next.
var ApplyColorMatrices = ApplierFunc(applyColorMatrices)

func applyColorMatrices(ctx context.Context, pngData []byte, matrices []filter.ColorMatrix) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	img := image.NewNRGBA(src.Bounds())
	draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)
	for _, m := range matrices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		applyMatrix(img, m)
	}
	return encodePNG(img)
}

func applyMatrix(img *image.NRGBA, m filter.ColorMatrix) {
	pix := img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		r, g, b, a := float64(pix[i]), float64(pix[i+1]), float64(pix[i+2]), float64(pix[i+3])
		for ch := 0; ch < 4; ch++ {
			row := m[ch*5 : ch*5+5]
			pix[i+ch] = clamp(row[0]*r + row[1]*g + row[2]*b + row[3]*a + row[4])
		}
	}
}

func clamp(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// crop returns the smallest rectangle of img holding a pixel with non-zero alpha.
func crop(img image.Image) image.Rectangle {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a == 0 {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// luminance converts premultiplied pixels into an alpha mask, as SVG luminance masks do.
func luminance(img *image.RGBA) *image.Alpha {
	res := image.NewAlpha(img.Bounds())
	for i, j := 0, 0; i+3 < len(img.Pix); i, j = i+4, j+1 {
		l := 0.2125*float64(img.Pix[i]) + 0.7154*float64(img.Pix[i+1]) + 0.0721*float64(img.Pix[i+2])
		res.Pix[j] = clamp(l)
	}
	return res
}

// uniform returns an alpha mask of constant opacity.
func uniform(opacity float64) image.Image {
	return image.NewUniform(color.Alpha{clamp(opacity * 255)})
}
