package dataset

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/kdtree"

	"neuritesim/internal/models"
)

// SegmentRef locates a segment inside a list of trees
type SegmentRef struct {
	Tree  int
	Index int
}

// Match is a segment found by an index query
type Match struct {
	SegmentRef
	Segment models.Segment

	// Distance is the Euclidean distance from the query point to the
	// closest point of the segment
	Distance float64
}

// node is a point sampled along a segment
type node struct {
	pos []float64
	ref SegmentRef
}

// Compare implements the kdtree.Comparable interface
func (p node) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(node)
	return p.pos[d] - q.pos[d]
}

// Dims returns the number of dimensions for the KD-tree
func (p node) Dims() int { return len(p.pos) }

// Distance returns the squared Euclidean distance between two nodes
func (p node) Distance(c kdtree.Comparable) float64 {
	q := c.(node)
	var d2 float64
	for i, v := range p.pos {
		d := v - q.pos[i]
		d2 += d * d
	}
	return d2
}

// nodes is a collection of node that satisfies kdtree.Interface
type nodes []node

func (p nodes) Index(i int) kdtree.Comparable         { return p[i] }
func (p nodes) Len() int                              { return len(p) }
func (p nodes) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p nodes) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(nodePlane{nodes: p, Dim: d}, kdtree.MedianOfRandoms(nodePlane{nodes: p, Dim: d}, 100))
}

// nodePlane implements sort.Interface and kdtree.SortSlicer for nodes
type nodePlane struct {
	nodes
	kdtree.Dim
}

func (p nodePlane) Less(i, j int) bool {
	return p.nodes[i].pos[p.Dim] < p.nodes[j].pos[p.Dim]
}

func (p nodePlane) Slice(start, end int) kdtree.SortSlicer {
	return nodePlane{nodes: p.nodes[start:end], Dim: p.Dim}
}

func (p nodePlane) Swap(i, j int) {
	p.nodes[i], p.nodes[j] = p.nodes[j], p.nodes[i]
}

// sampleStep is the largest spacing between indexed points on a segment.
const sampleStep = 1.0

// Index answers proximity queries against ground-truth segments, for example
// to find which annotated neurites pass through a patch.
type Index struct {
	trees  []models.Tree
	dims   int
	points int
	kd     *kdtree.Tree
}

// NewIndex builds an index over every segment of trees. All endpoints must
// have the same number of coordinates.
func NewIndex(trees []models.Tree) (*Index, error) {
	ix := &Index{trees: trees, dims: -1}

	var pts nodes
	for ti, tree := range trees {
		for si, seg := range tree.Segments {
			if ix.dims < 0 {
				ix.dims = seg.A.Dims()
			}
			if seg.A.Dims() != ix.dims || seg.B.Dims() != ix.dims {
				return nil, fmt.Errorf("tree %q segment %d: expected %d coordinates", tree.Name, si, ix.dims)
			}
			if !seg.A.Finite() || !seg.B.Finite() {
				return nil, fmt.Errorf("tree %q segment %d: non-finite coordinates", tree.Name, si)
			}
			pts = append(pts, samples(seg, SegmentRef{Tree: ti, Index: si})...)
		}
	}
	ix.points = len(pts)
	if len(pts) > 0 {
		ix.kd = kdtree.New(pts, false)
	}
	return ix, nil
}

// samples returns points along seg no more than sampleStep apart, including
// both endpoints.
func samples(seg models.Segment, ref SegmentRef) []node {
	length := floats.Distance(seg.A, seg.B, 2)
	n := int(math.Ceil(length / sampleStep))
	if n < 1 {
		n = 1
	}
	out := make([]node, 0, n+1)
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		pos := make([]float64, len(seg.A))
		for axis := range pos {
			pos[axis] = seg.A[axis] + t*(seg.B[axis]-seg.A[axis])
		}
		out = append(out, node{pos: pos, ref: ref})
	}
	return out
}

// Len returns the number of indexed segments.
func (ix *Index) Len() int {
	n := 0
	for _, tree := range ix.trees {
		n += len(tree.Segments)
	}
	return n
}

// Within returns every segment that passes within r of p, nearest first.
func (ix *Index) Within(p models.Point, r float64) ([]Match, error) {
	if err := ix.checkQuery(p); err != nil || ix.kd == nil {
		return nil, err
	}
	// Samples are at most half a step from any point of their segment.
	reach := r + sampleStep/2
	keeper := kdtree.NewDistKeeper(reach * reach)
	ix.kd.NearestSet(keeper, node{pos: p})

	matches := ix.collect(p, keeper.Heap)
	n := 0
	for _, m := range matches {
		if m.Distance <= r {
			matches[n] = m
			n++
		}
	}
	return matches[:n], nil
}

// Nearest returns up to k distinct segments closest to p, nearest first.
func (ix *Index) Nearest(p models.Point, k int) ([]Match, error) {
	if err := ix.checkQuery(p); err != nil || ix.kd == nil || k <= 0 {
		return nil, err
	}
	// Several samples of one segment can crowd the keeper, so widen the
	// search until k distinct segments are found or every point was seen.
	var matches []Match
	want := 4 * k
	for {
		if want > ix.points {
			want = ix.points
		}
		keeper := kdtree.NewNKeeper(want)
		ix.kd.NearestSet(keeper, node{pos: p})
		matches = ix.collect(p, keeper.Heap)
		if len(matches) >= k || want == ix.points {
			break
		}
		want *= 2
	}
	if len(matches) < k || want == ix.points {
		return matches, nil
	}

	// Candidates were found by sample distance but are ranked by exact
	// distance. Any segment closer than the k-th candidate has a sample
	// within half a step of that distance, so one radius search catches it.
	reach := matches[k-1].Distance + sampleStep/2
	keeper := kdtree.NewDistKeeper(reach * reach)
	ix.kd.NearestSet(keeper, node{pos: p})
	matches = ix.collect(p, keeper.Heap)
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (ix *Index) checkQuery(p models.Point) error {
	if ix.dims >= 0 && p.Dims() != ix.dims {
		return fmt.Errorf("query point has %d coordinates, index has %d", p.Dims(), ix.dims)
	}
	if !p.Finite() {
		return fmt.Errorf("query point %v is not finite", p)
	}
	return nil
}

// collect turns keeper results into distinct matches sorted by exact distance.
func (ix *Index) collect(p models.Point, heap kdtree.Heap) []Match {
	seen := make(map[SegmentRef]bool)
	var matches []Match
	for _, cd := range heap {
		if cd.Comparable == nil {
			continue
		}
		ref := cd.Comparable.(node).ref
		if seen[ref] {
			continue
		}
		seen[ref] = true
		seg := ix.trees[ref.Tree].Segments[ref.Index]
		matches = append(matches, Match{
			SegmentRef: ref,
			Segment:    seg,
			Distance:   pointSegmentDistance(p, seg),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		if matches[i].Tree != matches[j].Tree {
			return matches[i].Tree < matches[j].Tree
		}
		return matches[i].Index < matches[j].Index
	})
	return matches
}

// pointSegmentDistance returns the distance from p to the closest point of seg.
func pointSegmentDistance(p models.Point, seg models.Segment) float64 {
	ab := make([]float64, len(p))
	ap := make([]float64, len(p))
	floats.SubTo(ab, seg.B, seg.A)
	floats.SubTo(ap, p, seg.A)

	t := 0.0
	if l2 := floats.Dot(ab, ab); l2 > 0 {
		t = math.Max(0, math.Min(1, floats.Dot(ap, ab)/l2))
	}
	closest := make([]float64, len(p))
	floats.AddScaledTo(closest, seg.A, t, ab)
	return floats.Distance(p, closest, 2)
}
