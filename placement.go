package blockart

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Point is a block position in the world.
type Point struct {
	X, Y, Z int
}

// AxisPolicy decides which world axes the image columns and rows map onto.
// Columns always run along +X. Image row 0 is the top of the picture, so
// rows always map onto their axis inverted: the top row lands at the
// largest coordinate and the bottom row at the origin.
type AxisPolicy int

const (
	// Upright stands the mosaic on the X-Y plane at the origin's Z.
	Upright AxisPolicy = iota
	// Flat lays the mosaic on the X-Z plane at the origin's Y.
	Flat
)

// ParseAxisPolicy parses "upright" or "flat".
func ParseAxisPolicy(s string) (AxisPolicy, error) {
	switch strings.ToLower(s) {
	case "", "upright", "wall":
		return Upright, nil
	case "flat", "floor":
		return Flat, nil
	}
	return 0, fmt.Errorf("blockart: unknown axis policy %q", s)
}

func (p AxisPolicy) String() string {
	if p == Flat {
		return "flat"
	}
	return "upright"
}

// Place maps grid cell (col, row) of a grid with the given height to a
// world position.
func (p AxisPolicy) Place(origin Point, col, row, height int) Point {
	inverted := height - 1 - row

	pos := Point{X: origin.X + col, Y: origin.Y, Z: origin.Z}
	if p == Flat {
		pos.Z += inverted
	} else {
		pos.Y += inverted
	}
	return pos
}

// Instruction places one block.
type Instruction struct {
	Point
	Block string
}

// Emit lazily yields one instruction per grid cell in row-major order. The
// sequence may be ranged over any number of times.
func Emit(g *Grid, origin Point, policy AxisPolicy) iter.Seq[Instruction] {
	return func(yield func(Instruction) bool) {
		for row := 0; row < g.Height; row++ {
			for col := 0; col < g.Width; col++ {
				in := Instruction{
					Point: policy.Place(origin, col, row, g.Height),
					Block: g.At(col, row).Block,
				}
				if !yield(in) {
					return
				}
			}
		}
	}
}

// Instructions returns every instruction for g.
func Instructions(g *Grid, origin Point, policy AxisPolicy) []Instruction {
	return slices.Collect(Emit(g, origin, policy))
}
