package blockart

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cenkalti/dominantcolor"
	"github.com/ericpauley/go-quantize/quantize"
	"golang.org/x/sync/errgroup"
)

// MinVisibleAlpha is the alpha a texture pixel must exceed to be sampled.
const MinVisibleAlpha = 10

// SampleMethod selects how a texture's representative colour is chosen.
type SampleMethod int

const (
	// SampleAverage takes the mean of the visible pixels.
	SampleAverage SampleMethod = iota
	// SampleDominant picks the most dominant colour cluster.
	SampleDominant
	// SampleMedianCut reduces the visible pixels to a single median cut
	// bucket and takes its most frequent colour.
	SampleMedianCut
)

// ParseSampleMethod parses "average", "dominant" or "median".
func ParseSampleMethod(s string) (SampleMethod, error) {
	switch strings.ToLower(s) {
	case "", "average", "mean":
		return SampleAverage, nil
	case "dominant":
		return SampleDominant, nil
	case "median", "mediancut":
		return SampleMedianCut, nil
	}
	return 0, fmt.Errorf("blockart: unknown sample method %q", s)
}

func (m SampleMethod) String() string {
	switch m {
	case SampleDominant:
		return "dominant"
	case SampleMedianCut:
		return "median"
	}
	return "average"
}

// SampleTexture returns the representative colour of a block texture. It
// reports false if the texture has no pixel with alpha above
// MinVisibleAlpha.
func SampleTexture(img image.Image, method SampleMethod) (RGB, bool) {
	visible, n := visiblePixels(img)
	if n == 0 {
		return RGB{}, false
	}

	switch method {
	case SampleDominant:
		return RGBFromColor(dominantcolor.Find(visible)), true
	case SampleMedianCut:
		q := quantize.MedianCutQuantizer{
			Aggregation: quantize.Mode,
			Weighting: func(m image.Image, x, y int) uint32 {
				if m.(*image.NRGBA).NRGBAAt(x, y).A == 0 {
					return 0
				}
				return 1
			},
		}
		p := q.Quantize(make(color.Palette, 0, 1), visible)
		if len(p) == 0 {
			return RGB{}, false
		}
		return RGBFromColor(p[0]), true
	}

	var r, g, b uint64
	for i := 0; i < len(visible.Pix); i += 4 {
		if visible.Pix[i+3] == 0 {
			continue
		}
		r += uint64(visible.Pix[i])
		g += uint64(visible.Pix[i+1])
		b += uint64(visible.Pix[i+2])
	}

	total := uint64(n)
	return RGB{uint8(r / total), uint8(g / total), uint8(b / total)}, true
}

// visiblePixels copies img into an NRGBA image in which sampled pixels are
// opaque and every other pixel is fully transparent, and counts the
// sampled pixels.
func visiblePixels(img image.Image) (*image.NRGBA, int) {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A <= MinVisibleAlpha {
				continue
			}
			c.A = 0xff
			out.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
			n++
		}
	}

	return out, n
}

// TextureID returns the identifier of a texture file, its base name without
// extension.
func TextureID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ListTextures returns the PNG files in dir in name order.
func ListTextures(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// GeneratePalette samples every PNG texture in dir. Textures with no visible
// pixels are logged and omitted; textures that fail to decode are an error.
func GeneratePalette(ctx context.Context, dir string, method SampleMethod,
	logger *log.Logger) ([]Record, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	files, err := ListTextures(dir)
	if err != nil {
		return nil, fmt.Errorf("blockart: GeneratePalette: %w", err)
	}

	results := make([]Record, len(files))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for i, file := range files {
		i, file := i, file
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			img, err := LoadImage(file)
			if err != nil {
				return err
			}

			results[i].ID = TextureID(file)
			results[i].Color, results[i].Valid = SampleTexture(img, method)
			if !results[i].Valid {
				results[i].Reason = "no visible pixels"
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("blockart: GeneratePalette: %w", err)
	}

	records := make([]Record, 0, len(results))
	for _, rec := range results {
		if !rec.Valid {
			logger.Printf("Warning: skipping %s: %s", rec.ID, rec.Reason)
			continue
		}
		logger.Printf("Processed %s: %v", rec.ID, rec.Color)
		records = append(records, rec)
	}

	return records, nil
}
