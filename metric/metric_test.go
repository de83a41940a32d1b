package metric

import (
	"math"
	"strings"
	"testing"

	"github.com/weixiaohua/xgboost/data"
)

func TestCreateUnknownReturnsNil(t *testing.T) {
	if Create("ndcg") != nil {
		t.Fatal("unknown metric should return nil")
	}
	for _, name := range []string{"rmse", "mae", "error", "logloss", "merror"} {
		ev := Create(name)
		if ev == nil {
			t.Fatalf("Create(%s) returned nil", name)
		}
		if ev.Name() != name {
			t.Errorf("Name(): got %s, want %s", ev.Name(), name)
		}
	}
}

func TestRMSE(t *testing.T) {
	info := &data.MetaInfo{Labels: []float64{0, 0, 0, 0}}
	got := Create("rmse").Eval([]float64{1, 1, 1, 1}, info)
	if math.Abs(got-1.0) > 1e-15 {
		t.Errorf("rmse: got %v, want 1", got)
	}

	// weights shift the mean: errors 0 and 2 with weights 3 and 1
	weighted := &data.MetaInfo{Labels: []float64{0, 0}, Weights: []float64{3, 1}}
	got = Create("rmse").Eval([]float64{0, 2}, weighted)
	if math.Abs(got-1.0) > 1e-15 {
		t.Errorf("weighted rmse: got %v, want 1", got)
	}
}

func TestMAE(t *testing.T) {
	info := &data.MetaInfo{Labels: []float64{1, -1}}
	got := Create("mae").Eval([]float64{0, 0}, info)
	if math.Abs(got-1.0) > 1e-15 {
		t.Errorf("mae: got %v, want 1", got)
	}
}

func TestBinaryError(t *testing.T) {
	info := &data.MetaInfo{Labels: []float64{1, 0, 1, 0}}
	// 0.5 is not above the threshold, so row 2 counts as predicted 0
	got := Create("error").Eval([]float64{0.9, 0.1, 0.5, 0.8}, info)
	if math.Abs(got-0.5) > 1e-15 {
		t.Errorf("error: got %v, want 0.5", got)
	}
}

func TestLogLoss(t *testing.T) {
	info := &data.MetaInfo{Labels: []float64{1, 0}}
	got := Create("logloss").Eval([]float64{0.5, 0.5}, info)
	if math.Abs(got-math.Log(2)) > 1e-12 {
		t.Errorf("logloss: got %v, want ln 2", got)
	}

	// extreme confident mistakes must clamp instead of producing +Inf
	got = Create("logloss").Eval([]float64{0.0, 1.0}, info)
	if math.IsInf(got, 0) || math.IsNaN(got) {
		t.Errorf("logloss did not clamp: %v", got)
	}
}

func TestMultiErrorLabels(t *testing.T) {
	info := &data.MetaInfo{Labels: []float64{0, 1, 2}}
	got := Create("merror").Eval([]float64{0, 1, 1}, info)
	if math.Abs(got-1.0/3.0) > 1e-15 {
		t.Errorf("merror on labels: got %v, want 1/3", got)
	}
}

func TestMultiErrorProbabilityBlock(t *testing.T) {
	// 2 rows, 3 classes, group-major. Row 0 peaks at class 1, row 1 at
	// class 2.
	info := &data.MetaInfo{Labels: []float64{1, 0}}
	preds := []float64{
		0.2, 0.1, // class 0
		0.7, 0.3, // class 1
		0.1, 0.6, // class 2
	}
	got := Create("merror").Eval(preds, info)
	if math.Abs(got-0.5) > 1e-15 {
		t.Errorf("merror on probabilities: got %v, want 0.5", got)
	}
}

func TestEvalSetOrderAndDedup(t *testing.T) {
	var set EvalSet
	if !set.AddEval("logloss") {
		t.Fatal("logloss should be known")
	}
	if !set.AddEval("rmse") {
		t.Fatal("rmse should be known")
	}
	if !set.AddEval("logloss") {
		t.Fatal("duplicate add should still report success")
	}
	if set.AddEval("ndcg") {
		t.Fatal("unknown metric should report failure")
	}

	info := &data.MetaInfo{Labels: []float64{1, 0}}
	line := set.Eval("train", []float64{0.5, 0.5}, info)
	if strings.Count(line, "train-logloss:") != 1 {
		t.Errorf("duplicate metric in report: %q", line)
	}
	logIdx := strings.Index(line, "train-logloss:")
	rmseIdx := strings.Index(line, "train-rmse:")
	if rmseIdx < 0 || logIdx > rmseIdx {
		t.Errorf("metrics out of insertion order: %q", line)
	}
	if !strings.HasPrefix(line, "\t") {
		t.Errorf("segments must be tab-separated: %q", line)
	}
}
