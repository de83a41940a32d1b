package gbm

import (
	"bytes"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/weixiaohua/xgboost/data"
	"github.com/weixiaohua/xgboost/objective"
	"github.com/weixiaohua/xgboost/pkg/errors"
)

func regressionMatrix(t *testing.T, nrow, ncol int) *data.DMatrix {
	t.Helper()
	x := mat.NewDense(nrow, ncol, nil)
	labels := make([]float64, nrow)
	for i := 0; i < nrow; i++ {
		for j := 0; j < ncol; j++ {
			x.Set(i, j, float64((i*13+j*7)%17)/17.0)
		}
		labels[i] = x.At(i, 0)*2 - 1
	}
	dm, err := data.NewDMatrix(x, data.MetaInfo{Labels: labels})
	if err != nil {
		t.Fatalf("NewDMatrix failed: %v", err)
	}
	return dm
}

// squaredGpairs computes squared-loss gradients against the labels for the
// current margins.
func squaredGpairs(dmat *data.DMatrix, margins []float64) []objective.GradPair {
	labels := dmat.Info().Labels
	gpairs := make([]objective.GradPair, dmat.NumRow())
	for i := range gpairs {
		gpairs[i] = objective.GradPair{Grad: margins[i] - labels[i], Hess: 1.0}
	}
	return gpairs
}

func boostRounds(t *testing.T, b GradBooster, dmat *data.DMatrix, rounds int) {
	t.Helper()
	margins := make([]float64, dmat.NumRow())
	for r := 0; r < rounds; r++ {
		for i := range margins {
			margins[i] = b.Predict(dmat, i, -1, 0, 0)
		}
		if err := b.DoBoost(squaredGpairs(dmat, margins), dmat, nil, 0); err != nil {
			t.Fatalf("DoBoost round %d failed: %v", r, err)
		}
	}
}

// TestGBTreeCachedMatchesUncached checks the buffer catch-up path against
// full recomputation after every round.
func TestGBTreeCachedMatchesUncached(t *testing.T) {
	dmat := regressionMatrix(t, 40, 5)
	b := newGBTree()
	b.SetParam("num_pbuffer", "40")
	b.SetParam("max_depth", "3")
	b.InitModel()

	margins := make([]float64, dmat.NumRow())
	for r := 0; r < 4; r++ {
		for i := range margins {
			margins[i] = b.Predict(dmat, i, int64(i), 0, 0)
		}
		for i := range margins {
			if got := b.sumTrees(dmat.RowView(i), 0, 0, 0); got != margins[i] {
				t.Fatalf("round %d row %d: cached %v, uncached %v", r, i, margins[i], got)
			}
		}
		if err := b.DoBoost(squaredGpairs(dmat, margins), dmat, nil, 0); err != nil {
			t.Fatalf("DoBoost failed: %v", err)
		}
	}
}

// TestGBTreeBufferCountCatchUp checks that a committed slot only walks the
// trees added since the last commit.
func TestGBTreeBufferCountCatchUp(t *testing.T) {
	dmat := regressionMatrix(t, 20, 4)
	b := newGBTree()
	b.SetParam("num_pbuffer", "20")
	b.InitModel()
	boostRounds(t, b, dmat, 3)

	b.Predict(dmat, 0, 0, 0, 0)
	if got := b.cnt[0]; got != 3 {
		t.Fatalf("committed tree count: got %d, want 3", got)
	}
	// a second call with no new trees must return the committed margin
	want := b.buf[0]
	if got := b.Predict(dmat, 0, 0, 0, 0); got != want {
		t.Fatalf("re-prediction changed the margin: %v vs %v", got, want)
	}
}

// TestGBTreePopBoosterInvalidatesBuffer checks that a committed count larger
// than the ensemble triggers full recomputation.
func TestGBTreePopBoosterInvalidatesBuffer(t *testing.T) {
	dmat := regressionMatrix(t, 20, 4)
	b := newGBTree()
	b.SetParam("num_pbuffer", "20")
	b.InitModel()
	boostRounds(t, b, dmat, 3)

	b.Predict(dmat, 0, 0, 0, 0)
	if err := b.PopBooster(); err != nil {
		t.Fatalf("PopBooster failed: %v", err)
	}
	if got := b.NumBoosters(); got != 2 {
		t.Fatalf("ensemble size: got %d, want 2", got)
	}
	got := b.Predict(dmat, 0, 0, 0, 0)
	want := b.sumTrees(dmat.RowView(0), 0, 0, 0)
	if got != want {
		t.Fatalf("prediction after pop: cached %v, uncached %v", got, want)
	}
}

// TestGBTreePopThenBoostKeepsSlotsFresh checks that a commit made before a
// pop cannot survive a later boost restoring the ensemble length: the
// committed count would match again while the margin still contains the
// removed tree.
func TestGBTreePopThenBoostKeepsSlotsFresh(t *testing.T) {
	dmat := regressionMatrix(t, 20, 4)
	b := newGBTree()
	b.SetParam("num_pbuffer", "20")
	b.InitModel()
	boostRounds(t, b, dmat, 2)

	// commit slot 0 with both trees folded in
	b.Predict(dmat, 0, 0, 0, 0)
	if err := b.PopBooster(); err != nil {
		t.Fatalf("PopBooster failed: %v", err)
	}
	if b.cnt[0] != 0 || b.buf[0] != 0 {
		t.Fatal("commit including the removed tree survived the pop")
	}

	// restore the ensemble length with a different tree
	boostRounds(t, b, dmat, 1)
	b.RePredict(dmat, 0, 0)

	got := b.Predict(dmat, 0, 0, 0, 0)
	want := b.sumTrees(dmat.RowView(0), 0, 0, 0)
	if got != want {
		t.Fatalf("cached slot predicts %v, full recompute %v", got, want)
	}
}

func TestGBTreePopBoosterEmpty(t *testing.T) {
	b := newGBTree()
	b.InitModel()
	err := b.PopBooster()
	if err == nil {
		t.Fatal("PopBooster on an empty ensemble should fail")
	}
	var valueErr *errors.ValueError
	if !errors.As(err, &valueErr) {
		t.Fatalf("expected ValueError, got %T", err)
	}
}

// TestGBTreePredictLastNoCommit checks that a trial prediction leaves the
// buffer untouched.
func TestGBTreePredictLastNoCommit(t *testing.T) {
	dmat := regressionMatrix(t, 20, 4)
	b := newGBTree()
	b.SetParam("num_pbuffer", "20")
	b.InitModel()
	boostRounds(t, b, dmat, 2)

	b.Predict(dmat, 0, 0, 0, 0)
	cntBefore, bufBefore := b.cnt[0], b.buf[0]

	boostRounds(t, b, dmat, 1)
	trial := b.PredictLast(dmat, 0, 0)
	if b.cnt[0] != cntBefore || b.buf[0] != bufBefore {
		t.Fatal("PredictLast committed to the buffer")
	}
	if want := b.sumTrees(dmat.RowView(0), 0, 0, 0); trial != want {
		t.Fatalf("trial prediction: got %v, want %v", trial, want)
	}

	b.RePredict(dmat, 0, 0)
	if b.cnt[0] != int32(len(b.trees)) || b.buf[0] != trial {
		t.Fatal("RePredict did not commit the current ensemble")
	}
}

// TestGBTreeClearBuffer checks that clearing a slot resets every group's
// committed state without changing predictions.
func TestGBTreeClearBuffer(t *testing.T) {
	dmat := regressionMatrix(t, 20, 4)
	b := newGBTree()
	b.SetParam("num_pbuffer", "20")
	b.InitModel()
	boostRounds(t, b, dmat, 2)

	want := b.Predict(dmat, 5, 5, 0, 0)
	b.ClearBuffer(5)
	if b.cnt[5] != 0 || b.buf[5] != 0 {
		t.Fatal("ClearBuffer left committed state behind")
	}
	if got := b.Predict(dmat, 5, 5, 0, 0); got != want {
		t.Fatalf("prediction after clear: got %v, want %v", got, want)
	}
}

// TestGBTreeSlotOutOfRange checks that slots beyond num_pbuffer fall back
// to the uncached path instead of corrupting the buffer.
func TestGBTreeSlotOutOfRange(t *testing.T) {
	dmat := regressionMatrix(t, 20, 4)
	b := newGBTree()
	b.SetParam("num_pbuffer", "4")
	b.InitModel()
	boostRounds(t, b, dmat, 2)

	want := b.sumTrees(dmat.RowView(10), 0, 0, 0)
	if got := b.Predict(dmat, 10, 10, 0, 0); got != want {
		t.Fatalf("out-of-range slot: got %v, want %v", got, want)
	}
}

// TestGBTreeMultiGroupBufferLayout checks that booster groups commit to
// disjoint regions of the flat buffer.
func TestGBTreeMultiGroupBufferLayout(t *testing.T) {
	dmat := regressionMatrix(t, 10, 3)
	b := newGBTree()
	b.SetParam("num_pbuffer", "10")
	b.SetParam("num_booster_group", "3")
	b.InitModel()

	margins := make([]float64, dmat.NumRow())
	for g := 0; g < 3; g++ {
		for i := range margins {
			margins[i] = b.Predict(dmat, i, int64(i), 0, g)
		}
		if err := b.DoBoost(squaredGpairs(dmat, margins), dmat, nil, g); err != nil {
			t.Fatalf("DoBoost group %d failed: %v", g, err)
		}
	}
	if got := b.NumBoosters(); got != 3 {
		t.Fatalf("ensemble size: got %d, want 3", got)
	}
	for g := 0; g < 3; g++ {
		cached := b.Predict(dmat, 2, 2, 0, g)
		uncached := b.sumTrees(dmat.RowView(2), 0, g, 0)
		if cached != uncached {
			t.Fatalf("group %d: cached %v, uncached %v", g, cached, uncached)
		}
	}
}

func TestGBTreeDoBoostValidation(t *testing.T) {
	dmat := regressionMatrix(t, 10, 3)
	b := newGBTree()
	b.InitModel()

	short := make([]objective.GradPair, 5)
	var dimErr *errors.DimensionError
	if err := b.DoBoost(short, dmat, nil, 0); !errors.As(err, &dimErr) {
		t.Fatalf("short gradient slice: expected DimensionError, got %v", err)
	}
	full := make([]objective.GradPair, 10)
	var valueErr *errors.ValueError
	if err := b.DoBoost(full, dmat, nil, 5); !errors.As(err, &valueErr) {
		t.Fatalf("group out of range: expected ValueError, got %v", err)
	}
}

// TestGBTreeSaveLoad round-trips the ensemble and checks predictions and
// the cold buffer state.
func TestGBTreeSaveLoad(t *testing.T) {
	dmat := regressionMatrix(t, 30, 5)
	b := newGBTree()
	b.SetParam("num_pbuffer", "30")
	b.SetParam("max_depth", "4")
	b.InitModel()
	boostRounds(t, b, dmat, 3)

	var buf bytes.Buffer
	if err := b.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := newGBTree()
	loaded.SetParam("num_pbuffer", "30")
	if err := loaded.Load(&buf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := loaded.NumBoosters(); got != 3 {
		t.Fatalf("loaded ensemble size: got %d, want 3", got)
	}
	for i := 0; i < dmat.NumRow(); i++ {
		want := b.Predict(dmat, i, -1, 0, 0)
		got := loaded.Predict(dmat, i, int64(i), 0, 0)
		if got != want {
			t.Fatalf("row %d: loaded %v, original %v", i, got, want)
		}
	}
}

func TestGBTreeLoadTruncated(t *testing.T) {
	b := newGBTree()
	var formatErr *errors.FormatError
	if err := b.Load(bytes.NewReader([]byte{1, 2, 3})); !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

// TestTreeMissingGoesDefault checks the missing-value routing of a single
// tree.
func TestTreeMissingGoesDefault(t *testing.T) {
	// one split on feature 0 at 0.5; missing goes right
	tree := &regTree{Nodes: []treeNode{
		{LeftChild: 1, RightChild: 2, SplitFeature: 0, DefaultLeft: 0, Threshold: 0.5},
		{LeftChild: -1, RightChild: -1, LeafValue: -1.0},
		{LeftChild: -1, RightChild: -1, LeafValue: 1.0},
	}}
	if got := tree.predict([]float64{0.2}, 0); got != -1.0 {
		t.Errorf("below threshold: got %v, want -1", got)
	}
	if got := tree.predict([]float64{0.8}, 0); got != 1.0 {
		t.Errorf("above threshold: got %v, want 1", got)
	}
	if got := tree.predict([]float64{math.NaN()}, 0); got != 1.0 {
		t.Errorf("missing value: got %v, want default-right leaf 1", got)
	}
}

// TestGrowTreeReducesLoss checks that one grown tree moves predictions
// toward the squared-loss targets.
func TestGrowTreeReducesLoss(t *testing.T) {
	dmat := regressionMatrix(t, 60, 4)
	margins := make([]float64, dmat.NumRow())
	gpairs := squaredGpairs(dmat, margins)

	tree := growTree(defaultTreeParams(), dmat, gpairs)
	labels := dmat.Info().Labels
	var before, after float64
	for i := 0; i < dmat.NumRow(); i++ {
		pred := tree.predict(dmat.RowView(i), 0)
		before += labels[i] * labels[i]
		after += (pred - labels[i]) * (pred - labels[i])
	}
	if after >= before {
		t.Fatalf("tree did not reduce squared loss: before %v, after %v", before, after)
	}
}

func TestCreateUnknownBooster(t *testing.T) {
	if _, err := Create("gbdart"); err == nil {
		t.Fatal("unknown booster name should fail")
	} else {
		var pluginErr *errors.UnknownPluginError
		if !errors.As(err, &pluginErr) {
			t.Fatalf("expected UnknownPluginError, got %T", err)
		}
	}
	names := Names()
	if len(names) < 2 || names[0] != "gblinear" || names[1] != "gbtree" {
		t.Fatalf("registered boosters: %v", names)
	}
}
