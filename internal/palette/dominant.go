// Package palette extracts a representative color from poster artwork.
package palette

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// SampleSize is the edge length of the square the image is rendered into
const SampleSize = 64

const (
	binWidth     = 16
	minAlpha     = 127
	minBright    = 0.1
	maxBright    = 0.9
	binsPerColor = 256 / binWidth
)

type bin struct {
	count int
	first color.RGBA
	order int
}

// Dominant renders img into a 64x64 RGBA raster and returns the first
// observed color of the most populated 16-wide RGB bucket. Pixels with
// alpha <= 127 or brightness outside [0.1, 0.9] are ignored. Ties go to the
// bucket encountered first in row-major order. ok is false when no pixel
// qualifies.
func Dominant(img image.Image) (c color.RGBA, ok bool) {
	if img == nil {
		return color.RGBA{}, false
	}
	raster := render(img)

	bins := make(map[int]*bin)
	var best *bin
	for y := 0; y < SampleSize; y++ {
		for x := 0; x < SampleSize; x++ {
			off := raster.PixOffset(x, y)
			r, g, b, a := raster.Pix[off], raster.Pix[off+1], raster.Pix[off+2], raster.Pix[off+3]
			if a <= minAlpha {
				continue
			}
			brightness := (float64(r) + float64(g) + float64(b)) / (3 * 255)
			if brightness < minBright || brightness > maxBright {
				continue
			}

			key := (int(r)/binWidth)*binsPerColor*binsPerColor + (int(g)/binWidth)*binsPerColor + int(b)/binWidth
			bn, seen := bins[key]
			if !seen {
				bn = &bin{first: color.RGBA{R: r, G: g, B: b, A: 255}, order: len(bins)}
				bins[key] = bn
			}
			bn.count++
			if best == nil || bn.count > best.count || (bn.count == best.count && bn.order < best.order) {
				best = bn
			}
		}
	}

	if best == nil {
		return color.RGBA{}, false
	}
	return best.first, true
}

func render(img image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, SampleSize, SampleSize))
	b := img.Bounds()
	if b.Dx() == SampleSize && b.Dy() == SampleSize {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// Hex formats a color as #rrggbb
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
