package gbm

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/weixiaohua/xgboost/data"
	"github.com/weixiaohua/xgboost/objective"
	"github.com/weixiaohua/xgboost/pkg/errors"
)

// treeNode is one node of a regression tree. The layout is fixed-size so
// nodes serialize with encoding/binary as-is.
type treeNode struct {
	LeftChild    int32 // -1 marks a leaf
	RightChild   int32
	SplitFeature int32
	DefaultLeft  int32 // direction for missing feature values
	Threshold    float64
	LeafValue    float64
}

func (n *treeNode) isLeaf() bool {
	return n.LeftChild == -1
}

// regTree is a single regression tree whose leaves hold margin increments.
// Shrinkage is folded into the leaf values at construction time.
type regTree struct {
	Nodes []treeNode
}

// predict walks the tree for one feature vector. The root argument exists
// for multi-root forests; the built-in grower emits single-root trees, so
// any root selects node 0.
func (t *regTree) predict(features []float64, root uint32) float64 {
	_ = root
	idx := int32(0)
	for {
		node := &t.Nodes[idx]
		if node.isLeaf() {
			return node.LeafValue
		}
		v := features[node.SplitFeature]
		if data.IsMissing(v) {
			if node.DefaultLeft != 0 {
				idx = node.LeftChild
			} else {
				idx = node.RightChild
			}
			continue
		}
		if v < node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

func (t *regTree) save(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(t.Nodes))); err != nil {
		return errors.Wrap(err, "write tree size")
	}
	if err := binary.Write(w, binary.LittleEndian, t.Nodes); err != nil {
		return errors.Wrap(err, "write tree nodes")
	}
	return nil
}

func (t *regTree) load(r io.Reader) error {
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return errors.NewFormatError("regTree.load", "truncated tree header")
	}
	if n <= 0 || n > 1<<24 {
		return errors.NewFormatError("regTree.load", "implausible node count")
	}
	t.Nodes = make([]treeNode, n)
	if err := binary.Read(r, binary.LittleEndian, t.Nodes); err != nil {
		return errors.NewFormatError("regTree.load", "truncated tree nodes")
	}
	return nil
}

// treeParams are the growth hyperparameters of gbtree.
type treeParams struct {
	eta            float64
	lambda         float64
	maxDepth       int
	minChildWeight float64
	minSplitGain   float64
}

func defaultTreeParams() treeParams {
	return treeParams{
		eta:            0.3,
		lambda:         1.0,
		maxDepth:       6,
		minChildWeight: 1.0,
	}
}

// treeGrower builds one regression tree per boosting round with exact
// greedy split enumeration on gradient statistics.
type treeGrower struct {
	params treeParams
	dmat   *data.DMatrix
	gpairs []objective.GradPair
	nodes  []treeNode
}

func growTree(params treeParams, dmat *data.DMatrix, gpairs []objective.GradPair) *regTree {
	g := &treeGrower{params: params, dmat: dmat, gpairs: gpairs}
	rows := make([]int, dmat.NumRow())
	for i := range rows {
		rows[i] = i
	}
	g.grow(rows, 0)
	return &regTree{Nodes: g.nodes}
}

// grow expands one node over the given row set and returns its index.
func (g *treeGrower) grow(rows []int, depth int) int32 {
	var sumG, sumH float64
	for _, r := range rows {
		sumG += g.gpairs[r].Grad
		sumH += g.gpairs[r].Hess
	}

	idx := int32(len(g.nodes))
	g.nodes = append(g.nodes, treeNode{LeftChild: -1, RightChild: -1})

	if depth < g.params.maxDepth {
		if split, ok := g.findSplit(rows, sumG, sumH); ok {
			left, right := g.partition(rows, split)
			node := &g.nodes[idx]
			node.SplitFeature = int32(split.feature)
			node.Threshold = split.threshold
			node.DefaultLeft = 0 // missing values follow the right branch
			// children are appended after the split fields are fixed;
			// re-take the pointer because append may move the slice
			leftIdx := g.grow(left, depth+1)
			rightIdx := g.grow(right, depth+1)
			g.nodes[idx].LeftChild = leftIdx
			g.nodes[idx].RightChild = rightIdx
			return idx
		}
	}

	g.nodes[idx].LeafValue = -sumG / (sumH + g.params.lambda) * g.params.eta
	return idx
}

type splitCandidate struct {
	feature   int
	threshold float64
	gain      float64
}

// findSplit enumerates every feature and every boundary between adjacent
// sorted values. Missing values are never moved past the scan pointer, so
// they end up bundled with the right child.
func (g *treeGrower) findSplit(rows []int, sumG, sumH float64) (splitCandidate, bool) {
	rootScore := calcScore(sumG, sumH, g.params.lambda)
	best := splitCandidate{gain: g.params.minSplitGain}
	found := false

	type valRow struct {
		val float64
		row int
	}
	vals := make([]valRow, 0, len(rows))
	for f := 0; f < g.dmat.NumCol(); f++ {
		vals = vals[:0]
		for _, r := range rows {
			v := g.dmat.RowView(r)[f]
			if !data.IsMissing(v) {
				vals = append(vals, valRow{val: v, row: r})
			}
		}
		if len(vals) < 2 {
			continue
		}
		sort.Slice(vals, func(i, j int) bool { return vals[i].val < vals[j].val })

		var leftG, leftH float64
		for i := 0; i < len(vals)-1; i++ {
			leftG += g.gpairs[vals[i].row].Grad
			leftH += g.gpairs[vals[i].row].Hess
			if vals[i].val == vals[i+1].val {
				continue
			}
			rightG := sumG - leftG
			rightH := sumH - leftH
			if leftH < g.params.minChildWeight || rightH < g.params.minChildWeight {
				continue
			}
			gain := calcScore(leftG, leftH, g.params.lambda) +
				calcScore(rightG, rightH, g.params.lambda) - rootScore
			if gain > best.gain {
				best = splitCandidate{
					feature:   f,
					threshold: (vals[i].val + vals[i+1].val) / 2.0,
					gain:      gain,
				}
				found = true
			}
		}
	}
	return best, found
}

func (g *treeGrower) partition(rows []int, split splitCandidate) (left, right []int) {
	for _, r := range rows {
		v := g.dmat.RowView(r)[split.feature]
		if !data.IsMissing(v) && v < split.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}

func calcScore(sumG, sumH, lambda float64) float64 {
	return sumG * sumG / (sumH + lambda)
}
