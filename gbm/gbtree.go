package gbm

import (
	"encoding/binary"
	"io"
	"strconv"

	"github.com/weixiaohua/xgboost/data"
	"github.com/weixiaohua/xgboost/objective"
	"github.com/weixiaohua/xgboost/pkg/errors"
)

func init() {
	Register("gbtree", func() GradBooster { return newGBTree() })
}

// gbTree is the tree-ensemble booster. Each boosting update grows one
// regression tree tagged with its booster group.
//
// The prediction buffer turns per-round prediction into an O(new-trees)
// operation: buf holds the committed margin of every (slot, group) pair and
// cnt the number of ensemble trees folded into it. A prediction with a
// valid slot starts from the committed margin and walks only trees added
// since the last commit.
type gbTree struct {
	params treeParams

	numPBuffer int64
	numGroup   int

	trees     []*regTree
	treeGroup []int32

	// prediction buffer, sized numPBuffer*numGroup; indexed per group
	buf []float64
	cnt []int32
}

func newGBTree() *gbTree {
	return &gbTree{params: defaultTreeParams(), numGroup: 1}
}

func (b *gbTree) SetParam(name, value string) {
	switch name {
	case "eta", "learning_rate":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			b.params.eta = v
		}
	case "lambda", "reg_lambda":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			b.params.lambda = v
		}
	case "max_depth":
		if v, err := strconv.Atoi(value); err == nil {
			b.params.maxDepth = v
		}
	case "min_child_weight":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			b.params.minChildWeight = v
		}
	case "min_split_gain":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			b.params.minSplitGain = v
		}
	case "num_pbuffer":
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			b.numPBuffer = v
			b.resizeBuffer()
		}
	case "num_booster_group", "num_class":
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			b.numGroup = v
			b.resizeBuffer()
		}
	}
}

// resizeBuffer reallocates the prediction buffer. Called only from the
// coordinating goroutine (SetParam replay), never from parallel row loops.
func (b *gbTree) resizeBuffer() {
	want := b.numPBuffer * int64(b.numGroup)
	if int64(len(b.buf)) != want {
		b.buf = make([]float64, want)
		b.cnt = make([]int32, want)
	}
}

func (b *gbTree) InitModel() {
	b.trees = nil
	b.treeGroup = nil
	b.buf = nil
	b.cnt = nil
	b.resizeBuffer()
}

func (b *gbTree) DoBoost(gpairs []objective.GradPair, dmat *data.DMatrix, rootIndex []uint32, group int) error {
	if len(gpairs) != dmat.NumRow() {
		return errors.NewDimensionError("DoBoost", dmat.NumRow(), len(gpairs), 0)
	}
	if group < 0 || group >= b.numGroup {
		return errors.NewValueError("DoBoost", "booster group out of range")
	}
	tree := growTree(b.params, dmat, gpairs)
	b.trees = append(b.trees, tree)
	b.treeGroup = append(b.treeGroup, int32(group))
	return nil
}

// bufferIndex maps a learner slot and a booster group onto the flat
// buffer. Returns -1 when the slot falls outside the allocated buffer, in
// which case callers fall back to the uncached path.
func (b *gbTree) bufferIndex(slot int64, group int) int64 {
	idx := int64(group)*b.numPBuffer + slot
	if slot >= b.numPBuffer || idx >= int64(len(b.buf)) {
		return -1
	}
	return idx
}

func (b *gbTree) Predict(dmat *data.DMatrix, row int, bufferSlot int64, root uint32, group int) float64 {
	features := dmat.RowView(row)
	if bufferSlot < 0 {
		return b.sumTrees(features, root, group, 0)
	}
	idx := b.bufferIndex(bufferSlot, group)
	if idx < 0 {
		return b.sumTrees(features, root, group, 0)
	}
	start := int(b.cnt[idx])
	psum := b.buf[idx]
	if start > len(b.trees) {
		// trees were removed since the last commit; the committed margin
		// includes contributions that no longer exist
		start = 0
		psum = 0
	}
	psum += b.sumTrees(features, root, group, start)
	b.buf[idx] = psum
	b.cnt[idx] = int32(len(b.trees))
	return psum
}

// sumTrees adds up the group's tree contributions starting at tree index
// start.
func (b *gbTree) sumTrees(features []float64, root uint32, group int, start int) float64 {
	var sum float64
	for i := start; i < len(b.trees); i++ {
		if b.treeGroup[i] == int32(group) {
			sum += b.trees[i].predict(features, root)
		}
	}
	return sum
}

func (b *gbTree) PredictLast(dmat *data.DMatrix, row int, bufferSlot int64) float64 {
	features := dmat.RowView(row)
	idx := b.bufferIndex(bufferSlot, 0)
	if idx < 0 {
		return b.sumTrees(features, 0, 0, 0)
	}
	start := int(b.cnt[idx])
	psum := b.buf[idx]
	if start > len(b.trees) {
		start = 0
		psum = 0
	}
	return psum + b.sumTrees(features, 0, 0, start)
}

func (b *gbTree) RePredict(dmat *data.DMatrix, row int, bufferSlot int64) {
	features := dmat.RowView(row)
	idx := b.bufferIndex(bufferSlot, 0)
	if idx < 0 {
		return
	}
	start := int(b.cnt[idx])
	psum := b.buf[idx]
	if start > len(b.trees) {
		start = 0
		psum = 0
	}
	b.buf[idx] = psum + b.sumTrees(features, 0, 0, start)
	b.cnt[idx] = int32(len(b.trees))
}

func (b *gbTree) PopBooster() error {
	if len(b.trees) == 0 {
		return errors.NewValueError("PopBooster", "ensemble is empty")
	}
	b.trees = b.trees[:len(b.trees)-1]
	b.treeGroup = b.treeGroup[:len(b.treeGroup)-1]
	// Committed margins that include the removed tree must be invalidated
	// now: a later DoBoost restores the ensemble length, after which the
	// count comparison in the hot paths can no longer tell the stale
	// commits apart. Called from the coordinating goroutine only.
	for i := range b.cnt {
		if int(b.cnt[i]) > len(b.trees) {
			b.buf[i] = 0
			b.cnt[i] = 0
		}
	}
	return nil
}

func (b *gbTree) ClearBuffer(bufferSlot int64) {
	for g := 0; g < b.numGroup; g++ {
		idx := b.bufferIndex(bufferSlot, g)
		if idx < 0 {
			continue
		}
		b.buf[idx] = 0
		b.cnt[idx] = 0
	}
}

func (b *gbTree) NumBoosterGroup() int {
	return b.numGroup
}

func (b *gbTree) NumBoosters() int {
	return len(b.trees)
}

func (b *gbTree) Save(w io.Writer) error {
	header := struct {
		NumTrees int32
		NumGroup int32
	}{NumTrees: int32(len(b.trees)), NumGroup: int32(b.numGroup)}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return errors.Wrap(err, "write gbtree header")
	}
	if err := binary.Write(w, binary.LittleEndian, b.treeGroup); err != nil {
		return errors.Wrap(err, "write gbtree groups")
	}
	for _, tree := range b.trees {
		if err := tree.save(w); err != nil {
			return err
		}
	}
	return nil
}

func (b *gbTree) Load(r io.Reader) error {
	var header struct {
		NumTrees int32
		NumGroup int32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return errors.NewFormatError("gbTree.Load", "truncated header")
	}
	if header.NumTrees < 0 || header.NumGroup <= 0 {
		return errors.NewFormatError("gbTree.Load", "implausible ensemble header")
	}
	b.numGroup = int(header.NumGroup)
	b.treeGroup = make([]int32, header.NumTrees)
	if err := binary.Read(r, binary.LittleEndian, b.treeGroup); err != nil {
		return errors.NewFormatError("gbTree.Load", "truncated group tags")
	}
	b.trees = make([]*regTree, header.NumTrees)
	for i := range b.trees {
		tree := &regTree{}
		if err := tree.load(r); err != nil {
			return err
		}
		b.trees[i] = tree
	}
	// buffer state never persists; cached predictions restart cold
	b.buf = nil
	b.cnt = nil
	b.resizeBuffer()
	return nil
}
