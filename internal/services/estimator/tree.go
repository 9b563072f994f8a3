package estimator

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const leafMarker = -1

// node is one entry of a flattened decision tree. Children always have a larger index
// than their parent, which keeps decoded trees acyclic.
type node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t"`
	Left      int       `json:"l"`
	Right     int       `json:"r"`
	Value     []float64 `json:"v,omitempty"`
}

// Tree is a binary decision tree stored in pre-order.
type Tree struct {
	Nodes []node `json:"nodes"`
}

func (t *Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Left == leafMarker {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *Tree) check(nFeatures, valueLen int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Left == leafMarker || n.Right == leafMarker {
			if n.Left != n.Right {
				return fmt.Errorf("node %d: half leaf", i)
			}
			if len(n.Value) != valueLen {
				return fmt.Errorf("node %d: leaf value has %d entries, want %d", i, len(n.Value), valueLen)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: bad child index", i)
		}
	}
	return nil
}

type treeParams struct {
	maxDepth        int // <= 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // <= 0 means all
	nClasses        int // 0 selects squared error, otherwise weighted gini
}

// treeBuilder grows one CART tree over a shared design matrix.
// y holds targets for regression and class indices for classification.
type treeBuilder struct {
	X           [][]float64
	y           []float64
	w           []float64
	p           treeParams
	rng         *rand.Rand
	nFeatures   int
	importances []float64
	tree        *Tree
	scratch     []int
}

func newTreeBuilder(X [][]float64, y, w []float64, p treeParams, rng *rand.Rand) *treeBuilder {
	nf := 0
	if len(X) > 0 {
		nf = len(X[0])
	}
	if p.minSamplesLeaf < 1 {
		p.minSamplesLeaf = 1
	}
	if p.minSamplesSplit < 2 {
		p.minSamplesSplit = 2
	}
	return &treeBuilder{
		X:           X,
		y:           y,
		w:           w,
		p:           p,
		rng:         rng,
		nFeatures:   nf,
		importances: make([]float64, nf),
		tree:        &Tree{},
	}
}

func (b *treeBuilder) build(idx []int) *Tree {
	b.scratch = make([]int, len(idx))
	b.grow(idx, 0)
	return b.tree
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	self := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, node{Left: leafMarker, Right: leafMarker})

	imp, _ := b.impurity(idx)
	if (b.p.maxDepth > 0 && depth >= b.p.maxDepth) || len(idx) < b.p.minSamplesSplit || imp <= 1e-12 {
		b.tree.Nodes[self].Value = b.leafValue(idx)
		return self
	}

	s, ok := b.bestSplit(idx, imp)
	if !ok {
		b.tree.Nodes[self].Value = b.leafValue(idx)
		return self
	}
	b.importances[s.feature] += s.decrease

	left := make([]int, 0, s.nLeft)
	right := make([]int, 0, len(idx)-s.nLeft)
	for _, i := range idx {
		if b.X[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.Nodes[self].Feature = s.feature
	b.tree.Nodes[self].Threshold = s.threshold
	b.tree.Nodes[self].Left = l
	b.tree.Nodes[self].Right = r
	return self
}

type split struct {
	feature   int
	threshold float64
	decrease  float64
	nLeft     int
}

// acc accumulates weighted statistics for one side of a split.
type acc struct {
	w, wy, wy2 float64
	class      []float64
	n          int
}

func (b *treeBuilder) newAcc() acc {
	a := acc{}
	if b.p.nClasses > 0 {
		a.class = make([]float64, b.p.nClasses)
	}
	return a
}

func (b *treeBuilder) add(a *acc, i int, sign float64) {
	w := b.w[i]
	a.w += sign * w
	if sign > 0 {
		a.n++
	} else {
		a.n--
	}
	if a.class != nil {
		a.class[int(b.y[i])] += sign * w
		return
	}
	a.wy += sign * w * b.y[i]
	a.wy2 += sign * w * b.y[i] * b.y[i]
}

func (b *treeBuilder) accImpurity(a *acc) float64 {
	if a.w <= 0 {
		return 0
	}
	if a.class != nil {
		g := 1.0
		for _, c := range a.class {
			p := c / a.w
			g -= p * p
		}
		return g
	}
	m := a.wy / a.w
	v := a.wy2/a.w - m*m
	if v < 0 {
		return 0
	}
	return v
}

func (b *treeBuilder) total(idx []int) acc {
	a := b.newAcc()
	for _, i := range idx {
		b.add(&a, i, 1)
	}
	return a
}

func (b *treeBuilder) impurity(idx []int) (float64, float64) {
	a := b.total(idx)
	return b.accImpurity(&a), a.w
}

func (b *treeBuilder) candidates() []int {
	if b.p.maxFeatures <= 0 || b.p.maxFeatures >= b.nFeatures || b.rng == nil {
		out := make([]int, b.nFeatures)
		for i := range out {
			out[i] = i
		}
		return out
	}
	return b.rng.Perm(b.nFeatures)[:b.p.maxFeatures]
}

func (b *treeBuilder) bestSplit(idx []int, parentImp float64) (split, bool) {
	tot := b.total(idx)
	best := split{decrease: 1e-12}
	found := false
	sorted := b.scratch[:len(idx)]

	for _, f := range b.candidates() {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })

		left := b.newAcc()
		right := tot
		if tot.class != nil {
			right.class = append([]float64(nil), tot.class...)
		}
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			b.add(&left, i, 1)
			b.add(&right, i, -1)

			cur, next := b.X[i][f], b.X[sorted[k+1]][f]
			if cur == next {
				continue
			}
			if left.n < b.p.minSamplesLeaf || right.n < b.p.minSamplesLeaf {
				continue
			}
			dec := tot.w*parentImp - left.w*b.accImpurity(&left) - right.w*b.accImpurity(&right)
			if dec > best.decrease {
				thr := cur + (next-cur)/2
				if thr == next {
					thr = cur
				}
				best = split{feature: f, threshold: thr, decrease: dec, nLeft: left.n}
				found = true
			}
		}
	}
	return best, found
}

func (b *treeBuilder) leafValue(idx []int) []float64 {
	a := b.total(idx)
	if a.class != nil {
		out := make([]float64, len(a.class))
		if a.w <= 0 {
			return out
		}
		for k, c := range a.class {
			out[k] = c / a.w
		}
		return out
	}
	if a.w <= 0 {
		return []float64{0}
	}
	return []float64{a.wy / a.w}
}

func normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	var s float64
	for _, x := range v {
		s += x
	}
	if s <= 0 || math.IsNaN(s) {
		return out
	}
	for i, x := range v {
		out[i] = x / s
	}
	return out
}
