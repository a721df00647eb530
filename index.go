package blockart

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// Weights scale the L, a and b axes before distances are measured.
type Weights [3]float64

// DefaultWeights favour lightness over hue and chroma.
var DefaultWeights = Weights{1.2, 1.0, 1.0}

func (w Weights) validate() error {
	for _, v := range w {
		if !(v > 0) || math.IsInf(v, 0) {
			return errors.New("blockart: BuildIndex: axis weights must be positive and finite")
		}
	}
	return nil
}

func (w Weights) apply(l Lab) [3]float64 {
	return [3]float64{l.L * w[0], l.A * w[1], l.B * w[2]}
}

// Match is the result of an index query.
type Match struct {
	// Position is the entry's load order position in the palette.
	Position int
	Entry    PaletteEntry
	Distance float64
}

// Index is a nearest neighbour index over a palette's weighted Lab colours.
// It is immutable once built and safe for concurrent queries.
type Index struct {
	palette *Palette
	weights Weights
	tree    *kdtree.Tree
}

// BuildIndex indexes every entry of p under the given axis weights.
func BuildIndex(p *Palette, weights Weights) (*Index, error) {
	if p == nil || p.Len() == 0 {
		return nil, ErrEmptyPalette
	}
	if err := weights.validate(); err != nil {
		return nil, err
	}

	points := make(labPoints, p.Len())
	for i, e := range p.entries {
		points[i] = labPoint{v: weights.apply(e.Lab), position: i}
	}

	return &Index{
		palette: p,
		weights: weights,
		tree:    kdtree.New(points, false),
	}, nil
}

// Palette returns the indexed palette.
func (ix *Index) Palette() *Palette {
	return ix.palette
}

// Query returns the palette entry nearest to c.
func (ix *Index) Query(c RGB) Match {
	return ix.QueryLab(c.Lab())
}

// QueryLab returns the palette entry nearest to l. On an exact tie the entry
// loaded first wins.
func (ix *Index) QueryLab(l Lab) Match {
	q := labPoint{v: ix.weights.apply(l), position: -1}

	nearest, dist := ix.tree.Nearest(q)
	best := nearest.(labPoint)

	// The tree only reports one of several equidistant points, so gather
	// all of them and pick by palette order.
	keeper := kdtree.NewDistKeeper(dist)
	ix.tree.NearestSet(keeper, q)
	for _, c := range keeper.Heap {
		p, ok := c.Comparable.(labPoint)
		if !ok || c.Dist != dist {
			continue
		}
		if p.position < best.position {
			best = p
		}
	}

	return Match{
		Position: best.position,
		Entry:    ix.palette.entries[best.position],
		Distance: math.Sqrt(dist),
	}
}

type labPoint struct {
	v        [3]float64
	position int
}

func (p labPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(labPoint)
	return p.v[d] - q.v[d]
}

func (p labPoint) Dims() int { return 3 }

// Distance returns the squared euclidean distance.
func (p labPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(labPoint)
	var sum float64
	for i := range p.v {
		d := p.v[i] - q.v[i]
		sum += d * d
	}
	return sum
}

type labPoints []labPoint

func (p labPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p labPoints) Len() int                      { return len(p) }
func (p labPoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

func (p labPoints) Pivot(d kdtree.Dim) int {
	return labPlane{labPoints: p, dim: d}.pivot()
}

// labPlane sorts points along a single dimension.
type labPlane struct {
	labPoints
	dim kdtree.Dim
}

func (p labPlane) Less(i, j int) bool {
	return p.labPoints[i].v[p.dim] < p.labPoints[j].v[p.dim]
}

func (p labPlane) Swap(i, j int) {
	p.labPoints[i], p.labPoints[j] = p.labPoints[j], p.labPoints[i]
}

func (p labPlane) Slice(start, end int) kdtree.SortSlicer {
	p.labPoints = p.labPoints[start:end]
	return p
}

func (p labPlane) pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}
