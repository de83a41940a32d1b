package learner

import (
	"bytes"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/weixiaohua/xgboost/data"
	"github.com/weixiaohua/xgboost/objective"
)

func lastParamValue(cfg []paramPair, name string) (string, bool) {
	for i := len(cfg) - 1; i >= 0; i-- {
		if cfg[i].Name == name {
			return cfg[i].Value, true
		}
	}
	return "", false
}

// TestRegRankCacheSizingSurvivesReload checks that the buffer dimensions
// established by SetCacheData are part of the configuration log, so a
// LoadModel that rebuilds the booster from that log keeps the cache alive.
func TestRegRankCacheSizingSurvivesReload(t *testing.T) {
	train := binaryDataset(t, 50, 4)
	source := NewRegRankLearner()
	mustSetParams(t, source, [][2]string{
		{"objective", "reg:linear"},
		{"max_depth", "3"},
	})
	if err := source.SetCacheData([]*data.DMatrix{train}); err != nil {
		t.Fatalf("SetCacheData failed: %v", err)
	}
	if err := source.InitModel(); err != nil {
		t.Fatalf("InitModel failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := source.UpdateOneIter(i, train); err != nil {
			t.Fatalf("UpdateOneIter failed: %v", err)
		}
	}
	var saved bytes.Buffer
	if err := source.SaveModel(&saved); err != nil {
		t.Fatalf("SaveModel failed: %v", err)
	}

	cached := binaryDataset(t, 50, 4)
	loaded := NewRegRankLearner()
	mustSetParams(t, loaded, [][2]string{
		{"objective", "reg:linear"},
		{"max_depth", "3"},
	})
	if err := loaded.SetCacheData([]*data.DMatrix{cached}); err != nil {
		t.Fatalf("SetCacheData failed: %v", err)
	}
	if got, ok := lastParamValue(loaded.cfg, "num_pbuffer"); !ok || got != "50" {
		t.Errorf("num_pbuffer in config log: got (%q, %v), want (\"50\", true)", got, ok)
	}
	if got, ok := lastParamValue(loaded.cfg, "bst:num_feature"); !ok || got != "4" {
		t.Errorf("bst:num_feature in config log: got (%q, %v), want (\"4\", true)", got, ok)
	}
	if err := loaded.LoadModel(&saved); err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}

	// Commit the reloaded booster's buffer, then swap the matrix contents
	// while keeping its shape. A live buffer keeps returning the committed
	// margins; a zero-sized one would recompute from the new contents.
	want, err := loaded.Predict(cached)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	cached.Reset(mat.NewDense(50, 4, nil), data.MetaInfo{Labels: make([]float64, 50)})
	got, err := loaded.Predict(cached)
	if err != nil {
		t.Fatalf("Predict after content swap failed: %v", err)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("row %d: got %v, want committed %v", i, got[i], want[i])
		}
	}
}

// roundRecordingObjective wraps squared loss and records the round index
// handed to GetGradient.
type roundRecordingObjective struct {
	rounds []int
}

func (o *roundRecordingObjective) SetParam(name, value string) {}

func (o *roundRecordingObjective) GetGradient(preds []float64, info *data.MetaInfo, iter int) ([]objective.GradPair, error) {
	o.rounds = append(o.rounds, iter)
	gpairs := make([]objective.GradPair, len(preds))
	for i, p := range preds {
		gpairs[i] = objective.GradPair{Grad: p - info.Labels[i], Hess: 1}
	}
	return gpairs, nil
}

func (o *roundRecordingObjective) PredTransform(preds []float64) []float64 { return preds }
func (o *roundRecordingObjective) EvalTransform(preds []float64) []float64 { return preds }
func (o *roundRecordingObjective) ProbToMargin(base float64) float64       { return base }
func (o *roundRecordingObjective) DefaultEvalMetric() string               { return "rmse" }

// TestRegRankGradientRoundTracksEnsemble checks that the round index seen
// by the objective follows the ensemble size, so it stays consistent when
// interactive removes shrink the model between calls.
func TestRegRankGradientRoundTracksEnsemble(t *testing.T) {
	rec := &roundRecordingObjective{}
	objective.Register("test:round-recorder", func() objective.Objective { return rec })

	train := binaryDataset(t, 40, 3)
	l := NewRegRankLearner()
	mustSetParams(t, l, [][2]string{
		{"objective", "test:round-recorder"},
		{"max_depth", "3"},
	})
	if err := l.SetCacheData([]*data.DMatrix{train}); err != nil {
		t.Fatalf("SetCacheData failed: %v", err)
	}
	if err := l.InitModel(); err != nil {
		t.Fatalf("InitModel failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := l.UpdateOneIter(i, train); err != nil {
			t.Fatalf("UpdateOneIter failed: %v", err)
		}
	}
	if err := l.UpdateInteract("remove", train); err != nil {
		t.Fatalf("UpdateInteract(remove) failed: %v", err)
	}
	// an arbitrary caller counter, deliberately out of step with the model
	if err := l.UpdateOneIter(5, train); err != nil {
		t.Fatalf("UpdateOneIter after remove failed: %v", err)
	}

	want := []int{0, 1, 1}
	if len(rec.rounds) != len(want) {
		t.Fatalf("gradient calls: got %d, want %d", len(rec.rounds), len(want))
	}
	for i := range want {
		if rec.rounds[i] != want[i] {
			t.Errorf("call %d: got round %d, want %d", i, rec.rounds[i], want[i])
		}
	}
}
