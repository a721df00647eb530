package blockart

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func testRecords() []Record {
	return []Record{
		{ID: "black_wool", Color: RGB{20, 21, 26}, Valid: true},
		{ID: "white_wool", Color: RGB{234, 236, 237}, Valid: true},
		{ID: "red_wool", Color: RGB{200, 50, 50}, Valid: true},
		{ID: "grass_block_top", Color: RGB{124, 189, 107}, Valid: true},
		{ID: "oak_log_side", Color: RGB{109, 85, 51}, Valid: true},
		{ID: "blue_wool", Color: RGB{53, 57, 157}, Valid: true},
	}
}

func testPalette(t *testing.T) *Palette {
	t.Helper()
	p, err := LoadPalette(testRecords(), nil)
	require.NoError(t, err)
	return p
}

func testSynthesizer(t *testing.T, resolver Resolver, workers int) *Synthesizer {
	t.Helper()
	ix, err := BuildIndex(testPalette(t), DefaultWeights)
	require.NoError(t, err)
	return NewSynthesizer(ix, SynthOptions{Resolver: resolver, Workers: workers})
}

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}
