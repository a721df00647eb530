package blockart

import (
	"context"
	"errors"
	"image"
	"io"
	"log"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrNoImage is returned when synthesis is asked to work on a nil image.
var ErrNoImage = errors.New("blockart: no source image")

// FallbackPreview is the preview colour of blocks without a known colour.
var FallbackPreview = RGB{255, 255, 255}

// Cell is one block of a mosaic.
type Cell struct {
	// Matched is the nearest palette (texture) identifier.
	Matched string
	// Block is the canonical identifier after alias resolution.
	Block    string
	Preview  RGB
	Distance float64
}

// Grid is a synthesized mosaic in row-major order.
type Grid struct {
	Width  int
	Height int
	Cells  []Cell
}

// At returns the cell at column x, row y.
func (g *Grid) At(x, y int) Cell {
	return g.Cells[y*g.Width+x]
}

// Image renders the grid's preview colours, one pixel per cell.
func (g *Grid) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			img.Set(x, y, g.At(x, y).Preview)
		}
	}
	return img
}

// Synthesizer turns images into block mosaics. Its index, resolver and
// preview table are read-only after NewSynthesizer, so one Synthesizer may
// serve many concurrent Synthesize calls.
type Synthesizer struct {
	index    *Index
	resolver Resolver
	previews map[string]RGB
	workers  int
	logger   *log.Logger
}

// SynthOptions configure a Synthesizer.
type SynthOptions struct {
	Resolver Resolver
	// Workers bounds the number of rows matched concurrently. Zero uses
	// GOMAXPROCS.
	Workers int
	Logger  *log.Logger
}

// NewSynthesizer prepares a synthesizer over ix.
func NewSynthesizer(ix *Index, opts SynthOptions) *Synthesizer {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}

	p := ix.Palette()
	previews := make(map[string]RGB, p.Len())
	for _, e := range p.entries {
		previews[e.ID] = e.Lab.Preview()
	}

	return &Synthesizer{
		index:    ix,
		resolver: opts.Resolver,
		previews: previews,
		workers:  opts.Workers,
		logger:   opts.Logger,
	}
}

// Index returns the index the synthesizer matches against.
func (s *Synthesizer) Index() *Index {
	return s.index
}

// Resolver returns the alias resolver in use.
func (s *Synthesizer) Resolver() Resolver {
	return s.resolver
}

// Preview returns the preview colour for a palette identifier, or
// FallbackPreview if it has none.
func (s *Synthesizer) Preview(id string) RGB {
	if c, ok := s.previews[id]; ok {
		return c
	}
	return FallbackPreview
}

// MatchColor resolves a single colour to a cell.
func (s *Synthesizer) MatchColor(c RGB) Cell {
	m := s.index.Query(c)
	return Cell{
		Matched:  m.Entry.ID,
		Block:    s.resolver.Resolve(m.Entry.ID),
		Preview:  s.Preview(m.Entry.ID),
		Distance: m.Distance,
	}
}

// Synthesize resamples img to spec and matches every cell. Rows are matched
// concurrently; every cell depends only on its own resampled colour.
func (s *Synthesizer) Synthesize(ctx context.Context, img image.Image, spec GridSpec) (*Grid, error) {
	if img == nil {
		return nil, ErrNoImage
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}

	resampled := Resample(img, spec, s.workers > 1)

	grid := &Grid{
		Width:  spec.Width,
		Height: spec.Height,
		Cells:  make([]Cell, spec.Cells()),
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)

	for y := 0; y < spec.Height; y++ {
		row := grid.Cells[y*spec.Width : (y+1)*spec.Width]
		y := y
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for x := range row {
				px := resampled.NRGBAAt(x, y)
				row[x] = s.MatchColor(RGB{px.R, px.G, px.B})
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	s.logger.Printf("Synthesized %s mosaic from %dx%d image", spec,
		img.Bounds().Dx(), img.Bounds().Dy())

	return grid, nil
}
