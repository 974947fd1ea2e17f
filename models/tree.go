package models

import (
	"slices"
)

// minSplitGain is the smallest loss reduction accepted for a split
const minSplitGain = 1e-10

// TreeNode is either a split on Feature at Threshold, sending values below the threshold to Left,
// or a leaf carrying Value
type TreeNode struct {
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

// Tree is a regression tree stored as a flat node list with the root at index 0. Leaf values
// already include the learning rate.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// Predict walks the tree for a single feature row
func (t Tree) Predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0.0
	}
	i := 0
	for !t.Nodes[i].Leaf {
		n := t.Nodes[i]
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

// Depth returns the number of edges on the longest root to leaf path
func (t Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Leaf {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

func (t Tree) validate(features int) bool {
	if len(t.Nodes) == 0 {
		return false
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= features {
			return false
		}
		// children always follow their parent
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return false
		}
	}
	return true
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

// treeBuilder grows a single tree with the exact greedy algorithm on first and second order
// gradients of the loss
type treeBuilder struct {
	x    [][]float64
	grad []float64
	hess []float64
	opt  *GBTOptions

	nodes []TreeNode
}

func (b *treeBuilder) build(idx []int) Tree {
	b.nodes = b.nodes[:0]
	b.grow(idx, 0)
	return Tree{Nodes: slices.Clone(b.nodes)}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	var g, h float64
	for _, i := range idx {
		g += b.grad[i]
		h += b.hess[i]
	}

	id := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{
		Leaf:  true,
		Value: -g / (h + b.opt.Lambda) * b.opt.LearningRate,
	})
	if depth >= b.opt.MaxDepth || len(idx) < 2 {
		return id
	}

	best, ok := b.bestSplit(idx, g, h)
	if !ok {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][best.feature] < best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = TreeNode{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      l,
		Right:     r,
	}
	return id
}

func (b *treeBuilder) bestSplit(idx []int, g, h float64) (split, bool) {
	lambda := b.opt.Lambda
	parent := g * g / (h + lambda)

	best := split{gain: minSplitGain}
	found := false

	sorted := make([]int, len(idx))
	for f := range b.x[idx[0]] {
		copy(sorted, idx)
		slices.SortStableFunc(sorted, func(i, j int) int {
			switch {
			case b.x[i][f] < b.x[j][f]:
				return -1
			case b.x[i][f] > b.x[j][f]:
				return 1
			}
			return 0
		})

		var gl, hl float64
		for p := 0; p < len(sorted)-1; p++ {
			i := sorted[p]
			gl += b.grad[i]
			hl += b.hess[i]

			cur, next := b.x[i][f], b.x[sorted[p+1]][f]
			if cur == next {
				continue
			}
			gr, hr := g-gl, h-hl
			if hl < b.opt.MinChildWeight || hr < b.opt.MinChildWeight {
				continue
			}

			gain := 0.5*(gl*gl/(hl+lambda)+gr*gr/(hr+lambda)-parent) - b.opt.Gamma
			if gain > best.gain {
				best = split{feature: f, threshold: (cur + next) / 2, gain: gain}
				found = true
			}
		}
	}
	return best, found
}
