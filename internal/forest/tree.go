package forest

import (
	"math/rand/v2"
	"slices"
	"sort"
)

// Node is one node of a flattened decision tree. Internal nodes route a row
// left when its value for Feature is <= Threshold.
type Node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"` // fraction of positive samples reaching the node
}

// Tree is a binary CART classification tree. Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict returns the positive-class probability of row i.
func (t *Tree) Predict(X Matrix, i int) float64 {
	k := 0
	for {
		n := t.Nodes[k]
		if n.Leaf {
			return n.Value
		}
		if X.At(i, n.Feature) <= n.Threshold {
			k = n.Left
		} else {
			k = n.Right
		}
	}
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(k int) int
	walk = func(k int) int {
		n := t.Nodes[k]
		if n.Leaf {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

type grower struct {
	X     Matrix
	y     []bool
	p     Params
	mtry  int
	rng   *rand.Rand
	nodes []Node
}

// entry is one non-zero value of a candidate column within a node.
type entry struct {
	v   float64
	pos bool
}

type split struct {
	feature   int
	threshold float64
	impurity  float64
}

func growTree(X Matrix, y []bool, samples []int, p Params, mtry int, rng *rand.Rand) *Tree {
	g := &grower{X: X, y: y, p: p, mtry: mtry, rng: rng}
	g.grow(samples, 0)
	return &Tree{Nodes: g.nodes}
}

func (g *grower) grow(samples []int, depth int) int {
	idx := len(g.nodes)
	g.nodes = append(g.nodes, Node{})

	n := len(samples)
	pos := 0
	for _, s := range samples {
		if g.y[s] {
			pos++
		}
	}
	value := float64(pos) / float64(n)

	if pos == 0 || pos == n || n < g.p.MinSamplesSplit || (g.p.MaxDepth > 0 && depth >= g.p.MaxDepth) {
		g.nodes[idx] = Node{Leaf: true, Value: value}
		return idx
	}

	best, ok := g.bestSplit(samples, pos)
	if !ok {
		g.nodes[idx] = Node{Leaf: true, Value: value}
		return idx
	}

	var left, right []int
	for _, s := range samples {
		if g.X.At(s, best.feature) <= best.threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	g.nodes[idx] = Node{Feature: best.feature, Threshold: best.threshold, Value: value}
	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.nodes[idx].Left = l
	g.nodes[idx].Right = r
	return idx
}

// bestSplit draws up to mtry candidate columns among those with a non-zero
// value in the node and returns the lowest weighted gini split.
func (g *grower) bestSplit(samples []int, pos int) (split, bool) {
	active := map[int][]entry{}
	for _, s := range samples {
		cols, vals := g.X.RowNonZero(s)
		for k, c := range cols {
			active[c] = append(active[c], entry{v: vals[k], pos: g.y[s]})
		}
	}
	if len(active) == 0 {
		return split{}, false
	}

	candidates := make([]int, 0, len(active))
	for c := range active {
		candidates = append(candidates, c)
	}
	slices.Sort(candidates)
	if len(candidates) > g.mtry {
		for i := 0; i < g.mtry; i++ {
			j := i + g.rng.IntN(len(candidates)-i)
			candidates[i], candidates[j] = candidates[j], candidates[i]
		}
		candidates = candidates[:g.mtry]
	}

	var best split
	found := false
	for _, c := range candidates {
		s, ok := evalColumn(active[c], len(samples), pos)
		if !ok {
			continue
		}
		if !found || s.impurity < best.impurity {
			s.feature = c
			best = s
			found = true
		}
	}
	return best, found
}

type group struct {
	v      float64
	n, pos int
}

// evalColumn finds the best threshold for one column. entries hold the
// node's non-zero values; the remaining n-len(entries) samples are zero.
func evalColumn(entries []entry, n, pos int) (split, bool) {
	sort.Slice(entries, func(a, b int) bool { return entries[a].v < entries[b].v })

	var groups []group
	nzPos := 0
	for _, e := range entries {
		if e.pos {
			nzPos++
		}
		if len(groups) > 0 && groups[len(groups)-1].v == e.v {
			groups[len(groups)-1].n++
			if e.pos {
				groups[len(groups)-1].pos++
			}
			continue
		}
		gr := group{v: e.v, n: 1}
		if e.pos {
			gr.pos = 1
		}
		groups = append(groups, gr)
	}

	if zeros := n - len(entries); zeros > 0 {
		zg := group{v: 0, n: zeros, pos: pos - nzPos}
		at := sort.Search(len(groups), func(i int) bool { return groups[i].v >= 0 })
		if at < len(groups) && groups[at].v == 0 {
			groups[at].n += zg.n
			groups[at].pos += zg.pos
		} else {
			groups = slices.Insert(groups, at, zg)
		}
	}
	if len(groups) < 2 {
		return split{}, false
	}

	var best split
	found := false
	leftN, leftPos := 0, 0
	for i := 0; i < len(groups)-1; i++ {
		leftN += groups[i].n
		leftPos += groups[i].pos
		imp := float64(leftN)*gini(leftN, leftPos) + float64(n-leftN)*gini(n-leftN, pos-leftPos)
		if !found || imp < best.impurity {
			best = split{threshold: (groups[i].v + groups[i+1].v) / 2, impurity: imp}
			found = true
		}
	}
	return best, found
}

func gini(n, pos int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 1 - p*p - (1-p)*(1-p)
}
