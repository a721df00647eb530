package blockart

import (
	"image"
	"image/color"

	"github.com/disintegration/gift"
)

// Opaque copies img into an NRGBA image with every pixel's alpha forced to
// fully opaque. Colour channels are kept as-is, not composited.
func Opaque(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			c.A = 0xff
			out.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
		}
	}

	return out
}

// Resample scales img to the grid with a Lanczos filter.
func Resample(img image.Image, spec GridSpec, parallel bool) *image.NRGBA {
	src := Opaque(img)

	g := gift.New(gift.Resize(spec.Width, spec.Height, gift.LanczosResampling))
	g.SetParallelization(parallel)

	dst := image.NewNRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)

	return dst
}
