package blockart

import (
	"errors"
	"fmt"
	"image"
)

// GridUnit is the granularity of mosaic dimensions, one chunk of blocks.
const GridUnit = 16

// ErrInvalidGrid is returned for non-positive mosaic dimensions.
var ErrInvalidGrid = errors.New("blockart: grid dimensions must be positive")

// SnapToGrid rounds v down to a multiple of GridUnit, never below GridUnit.
func SnapToGrid(v int) int {
	snapped := (v / GridUnit) * GridUnit
	if snapped < GridUnit {
		return GridUnit
	}
	return snapped
}

// GridSpec is the size of a mosaic in blocks.
type GridSpec struct {
	Width  int
	Height int
}

// NewGridSpec snaps width and height to the grid. If height is zero it is
// derived from the aspect ratio of src at the snapped width.
func NewGridSpec(src image.Rectangle, width, height int) (GridSpec, error) {
	if width <= 0 || height < 0 {
		return GridSpec{}, ErrInvalidGrid
	}

	spec := GridSpec{Width: SnapToGrid(width)}
	if height > 0 {
		spec.Height = SnapToGrid(height)
		return spec, nil
	}

	if src.Dx() <= 0 || src.Dy() <= 0 {
		return GridSpec{}, fmt.Errorf("blockart: NewGridSpec: source image is empty")
	}

	spec.Height = SnapToGrid(src.Dy() * spec.Width / src.Dx())
	return spec, nil
}

// Cells returns the number of cells in the grid.
func (g GridSpec) Cells() int {
	return g.Width * g.Height
}

func (g GridSpec) validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return ErrInvalidGrid
	}
	return nil
}

func (g GridSpec) String() string {
	return fmt.Sprintf("%dx%d", g.Width, g.Height)
}
