package blockart

import (
	"context"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeSolidColour(t *testing.T) {
	synth := testSynthesizer(t, Resolver{}, 4)

	img := solidImage(1, 1, color.RGBA{200, 50, 50, 255})
	spec, err := NewGridSpec(img.Bounds(), 16, 0)
	require.NoError(t, err)

	grid, err := synth.Synthesize(context.Background(), img, spec)
	require.NoError(t, err)
	require.Len(t, grid.Cells, 256)

	for _, cell := range grid.Cells {
		assert.Equal(t, "red_wool", cell.Matched)
		assert.Equal(t, "red_wool", cell.Block)
		assert.InDelta(t, 200, cell.Preview.R, 1)
		assert.InDelta(t, 50, cell.Preview.G, 1)
		assert.InDelta(t, 50, cell.Preview.B, 1)
	}

	instructions := Instructions(grid, Point{}, Upright)
	require.Len(t, instructions, 256)
	for _, in := range instructions {
		assert.Equal(t, "red_wool", in.Block)
	}
}

func TestSynthesizeVerticalInversion(t *testing.T) {
	synth := testSynthesizer(t, Resolver{}, 2)

	img := image.NewRGBA(image.Rect(0, 0, 16, 32))
	for y := 0; y < 32; y++ {
		c := color.RGBA{0, 0, 0, 255}
		if y >= 16 {
			c = color.RGBA{255, 255, 255, 255}
		}
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	spec, err := NewGridSpec(img.Bounds(), 16, 0)
	require.NoError(t, err)
	require.Equal(t, GridSpec{Width: 16, Height: 32}, spec)

	grid, err := synth.Synthesize(context.Background(), img, spec)
	require.NoError(t, err)

	instructions := Instructions(grid, Point{}, Upright)
	require.Len(t, instructions, 16*32)

	top := instructions[:16]
	bottom := instructions[len(instructions)-16:]
	for x := 0; x < 16; x++ {
		assert.Equal(t, Point{X: x, Y: 31, Z: 0}, top[x].Point)
		assert.Equal(t, "black_wool", top[x].Block)

		assert.Equal(t, Point{X: x, Y: 0, Z: 0}, bottom[x].Point)
		assert.Equal(t, "white_wool", bottom[x].Block)
	}

	flat := Instructions(grid, Point{}, Flat)
	assert.Equal(t, Point{X: 0, Y: 0, Z: 31}, flat[0].Point)
	assert.Equal(t, Point{X: 15, Y: 0, Z: 0}, flat[len(flat)-1].Point)
}

func TestSynthesizeAppliesAliases(t *testing.T) {
	synth := testSynthesizer(t, Resolver{Table: NewAliasTable(nil, nil)}, 1)

	img := solidImage(4, 4, color.RGBA{124, 189, 107, 255})
	grid, err := synth.Synthesize(context.Background(), img, GridSpec{Width: 16, Height: 16})
	require.NoError(t, err)

	cell := grid.At(3, 5)
	assert.Equal(t, "grass_block_top", cell.Matched)
	assert.Equal(t, "grass_block", cell.Block)
	assert.Equal(t, synth.Preview("grass_block_top"), cell.Preview)
}

func TestSynthesizeSentinelMode(t *testing.T) {
	table := NewAliasTable(map[string]string{"red_wool": "red_wool"}, nil)
	synth := testSynthesizer(t, Resolver{Table: table, Mode: AliasSentinel}, 1)

	img := solidImage(2, 2, color.RGBA{53, 57, 157, 255})
	grid, err := synth.Synthesize(context.Background(), img, GridSpec{Width: 16, Height: 16})
	require.NoError(t, err)

	assert.Equal(t, "blue_wool", grid.At(0, 0).Matched)
	assert.Equal(t, DefaultSentinel, grid.At(0, 0).Block)
}

func TestSynthesizeDeterministicAcrossWorkers(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	img := image.NewRGBA(image.Rect(0, 0, 80, 60))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
		if i%4 == 3 {
			img.Pix[i] = 255
		}
	}

	spec, err := NewGridSpec(img.Bounds(), 48, 0)
	require.NoError(t, err)

	serial, err := testSynthesizer(t, Resolver{}, 1).Synthesize(context.Background(), img, spec)
	require.NoError(t, err)
	parallel, err := testSynthesizer(t, Resolver{}, 8).Synthesize(context.Background(), img, spec)
	require.NoError(t, err)

	assert.Equal(t, serial.Cells, parallel.Cells)
}

func TestSynthesizeIgnoresAlpha(t *testing.T) {
	synth := testSynthesizer(t, Resolver{}, 1)

	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		copy(img.Pix[i:], []uint8{200, 50, 50, 40})
	}

	grid, err := synth.Synthesize(context.Background(), img, GridSpec{Width: 16, Height: 16})
	require.NoError(t, err)
	assert.Equal(t, "red_wool", grid.At(8, 8).Matched)
}

func TestSynthesizeErrors(t *testing.T) {
	synth := testSynthesizer(t, Resolver{}, 1)

	_, err := synth.Synthesize(context.Background(), nil, GridSpec{Width: 16, Height: 16})
	assert.ErrorIs(t, err, ErrNoImage)

	_, err = synth.Synthesize(context.Background(), solidImage(1, 1, color.Black), GridSpec{})
	assert.ErrorIs(t, err, ErrInvalidGrid)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = synth.Synthesize(ctx, solidImage(1, 1, color.Black), GridSpec{Width: 16, Height: 16})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPreviewFallback(t *testing.T) {
	synth := testSynthesizer(t, Resolver{}, 1)
	assert.Equal(t, FallbackPreview, synth.Preview("command_block"))
	assert.NotEqual(t, FallbackPreview, synth.Preview("black_wool"))
}

func TestGridImage(t *testing.T) {
	synth := testSynthesizer(t, Resolver{}, 1)
	grid, err := synth.Synthesize(context.Background(), solidImage(3, 3, color.RGBA{20, 21, 26, 255}), GridSpec{Width: 32, Height: 16})
	require.NoError(t, err)

	img := grid.Image()
	assert.Equal(t, image.Rect(0, 0, 32, 16), img.Bounds())

	want := synth.Preview("black_wool")
	assert.Equal(t, color.RGBA{want.R, want.G, want.B, 255}, img.RGBAAt(31, 15))
}

func TestMatchColor(t *testing.T) {
	synth := testSynthesizer(t, Resolver{Table: NewAliasTable(nil, nil)}, 1)

	cell := synth.MatchColor(RGB{110, 84, 50})
	assert.Equal(t, "oak_log_side", cell.Matched)
	assert.Equal(t, "oak_log", cell.Block)
	assert.Equal(t, synth.Preview("oak_log_side"), cell.Preview)
	assert.Greater(t, cell.Distance, 0.0)

	cell = synth.MatchColor(RGB{20, 21, 26})
	assert.Equal(t, "black_wool", cell.Matched)
	assert.Zero(t, cell.Distance)
}
