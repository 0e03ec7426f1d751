package media

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// RGB is an 8-bit per channel color. It serializes as a three element
// JSON array and is comparable, so it can key a map.
type RGB [3]uint8

// R returns the red channel.
func (c RGB) R() uint8 { return c[0] }

// G returns the green channel.
func (c RGB) G() uint8 { return c[1] }

// B returns the blue channel.
func (c RGB) B() uint8 { return c[2] }

// Hex formats the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// AverageColor returns the per-channel root-mean-square of the pixels of img
// inside r: round(sqrt(mean(c^2))). Alpha is ignored.
//
// The same function summarizes library tiles and source blocks, which keeps
// both sides of a match on one scale.
func AverageColor(img *image.NRGBA, r image.Rectangle) RGB {
	r = r.Intersect(img.Rect)
	if r.Empty() {
		return RGB{}
	}

	var sum [3]uint64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := img.PixOffset(r.Min.X, y)
		row := img.Pix[i : i+4*r.Dx()]
		for p := 0; p < len(row); p += 4 {
			rv, gv, bv := uint64(row[p]), uint64(row[p+1]), uint64(row[p+2])
			sum[0] += rv * rv
			sum[1] += gv * gv
			sum[2] += bv * bv
		}
	}

	n := float64(r.Dx() * r.Dy())
	var out RGB
	for c := range sum {
		v := math.Round(math.Sqrt(float64(sum[c]) / n))
		if v > 255 {
			v = 255
		}
		out[c] = uint8(v)
	}
	return out
}

// AverageColorOf computes AverageColor over the whole image, converting it
// to NRGBA first when needed.
func AverageColorOf(img image.Image) RGB {
	n := ToNRGBA(img)
	return AverageColor(n, n.Rect)
}

// ToNRGBA returns img as *image.NRGBA with bounds starting at the origin.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}
