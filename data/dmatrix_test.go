package data

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/weixiaohua/xgboost/pkg/errors"
)

func TestNewDMatrixValidatesMetadata(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})

	if _, err := NewDMatrix(x, MetaInfo{Labels: []float64{1, 0, 1}}); err != nil {
		t.Fatalf("matching labels rejected: %v", err)
	}

	var dimErr *errors.DimensionError
	if _, err := NewDMatrix(x, MetaInfo{Labels: []float64{1, 0}}); !errors.As(err, &dimErr) {
		t.Errorf("short labels: expected DimensionError, got %v", err)
	}
	if _, err := NewDMatrix(x, MetaInfo{Labels: []float64{1, 0, 1}, Weights: []float64{1}}); !errors.As(err, &dimErr) {
		t.Errorf("short weights: expected DimensionError, got %v", err)
	}
	if _, err := NewDMatrix(x, MetaInfo{BaseMargin: []float64{0, 0, 0, 0}}); !errors.As(err, &dimErr) {
		t.Errorf("long base margin: expected DimensionError, got %v", err)
	}
}

func TestFromMatrixCopies(t *testing.T) {
	src := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	dm, err := FromMatrix(src, MetaInfo{})
	if err != nil {
		t.Fatalf("FromMatrix failed: %v", err)
	}
	src.Set(0, 0, 99)
	if dm.RowView(0)[0] != 1 {
		t.Error("FromMatrix should copy, not alias, the source")
	}
}

func TestMetaInfoDefaults(t *testing.T) {
	info := MetaInfo{Labels: []float64{1, 0}}
	if got := info.GetWeight(1); got != 1.0 {
		t.Errorf("default weight: got %v, want 1", got)
	}
	if got := info.GetRoot(1); got != 0 {
		t.Errorf("default root: got %v, want 0", got)
	}
	if got := info.GetBaseMargin(1, 0.5); got != 0.5 {
		t.Errorf("default base margin: got %v, want base score 0.5", got)
	}

	info.Weights = []float64{2, 3}
	info.RootIndex = []uint32{1, 4}
	info.BaseMargin = []float64{-1, 1}
	if got := info.GetWeight(1); got != 3 {
		t.Errorf("weight: got %v, want 3", got)
	}
	if got := info.GetRoot(1); got != 4 {
		t.Errorf("root: got %v, want 4", got)
	}
	if got := info.GetBaseMargin(1, 0.5); got != 1 {
		t.Errorf("per-row base margin should win: got %v, want 1", got)
	}
}

func TestIsMissing(t *testing.T) {
	if !IsMissing(math.NaN()) {
		t.Error("NaN should be missing")
	}
	if IsMissing(0) || IsMissing(math.Inf(1)) {
		t.Error("only NaN marks a missing value")
	}
}

func TestResetReplacesContents(t *testing.T) {
	dm, err := NewDMatrix(mat.NewDense(2, 2, nil), MetaInfo{Labels: []float64{0, 1}})
	if err != nil {
		t.Fatalf("NewDMatrix failed: %v", err)
	}
	owner := struct{ name string }{"learner"}
	dm.SetCacheOwner(owner)

	dm.Reset(mat.NewDense(3, 2, nil), MetaInfo{Labels: []float64{0, 1, 0}})
	if dm.NumRow() != 3 {
		t.Errorf("rows after reset: got %d, want 3", dm.NumRow())
	}
	if dm.CacheOwner() != owner {
		t.Error("reset should keep the cache owner token")
	}
}
