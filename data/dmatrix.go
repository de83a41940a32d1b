// Package data defines DMatrix, the immutable feature matrix handle
// consumed by the learner and boosters. A DMatrix owns no model state; it
// references caller-provided feature values and per-row metadata, and is
// identified by pointer identity across calls.
package data

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/weixiaohua/xgboost/pkg/errors"
)

// MetaInfo carries the per-row metadata attached to a DMatrix. All slices
// are optional except Labels for training/evaluation; accessors fall back
// to neutral defaults when a slice is absent.
type MetaInfo struct {
	// Labels holds the ground-truth target for each row.
	Labels []float64
	// Weights holds per-row instance weights; empty means weight 1.
	Weights []float64
	// BaseMargin holds a per-row starting margin added before any booster
	// contribution; empty means the learner-wide base score alone.
	BaseMargin []float64
	// RootIndex assigns each row to a tree root for multi-root boosters;
	// empty means root 0.
	RootIndex []uint32
	// GroupPtr delimits query groups for ranking objectives in CSR style:
	// rows [GroupPtr[i], GroupPtr[i+1]) form group i.
	GroupPtr []uint32
}

// GetWeight returns the instance weight of row i.
func (info *MetaInfo) GetWeight(i int) float64 {
	if len(info.Weights) == 0 {
		return 1.0
	}
	return info.Weights[i]
}

// GetRoot returns the tree root index of row i.
func (info *MetaInfo) GetRoot(i int) uint32 {
	if len(info.RootIndex) == 0 {
		return 0
	}
	return info.RootIndex[i]
}

// GetBaseMargin returns the starting margin of row i on top of base.
func (info *MetaInfo) GetBaseMargin(i int, base float64) float64 {
	if len(info.BaseMargin) == 0 {
		return base
	}
	return info.BaseMargin[i]
}

// NumRow returns the number of labeled rows.
func (info *MetaInfo) NumRow() int {
	return len(info.Labels)
}

// DMatrix is a read-only feature matrix plus row metadata. Feature values
// are dense float64 with NaN marking missing entries.
//
// A DMatrix records at most one cache owner: the learner that registered it
// via SetCacheData. Registering the same matrix under a second learner
// overwrites the token and silently orphans the first learner's cache
// entry, so matrices must not be shared across learners without teardown.
type DMatrix struct {
	x    *mat.Dense
	info MetaInfo

	// cacheOwner is a weak back-reference used only for identity checks
	// during buffer lookup. Compared by equality, never dereferenced.
	cacheOwner any
}

// NewDMatrix wraps a dense feature block and its metadata. The matrix takes
// no copy; the caller must keep features immutable while training runs.
func NewDMatrix(x *mat.Dense, info MetaInfo) (*DMatrix, error) {
	r, _ := x.Dims()
	if len(info.Labels) != 0 && len(info.Labels) != r {
		return nil, errors.NewDimensionError("NewDMatrix", r, len(info.Labels), 0)
	}
	if len(info.Weights) != 0 && len(info.Weights) != r {
		return nil, errors.NewDimensionError("NewDMatrix", r, len(info.Weights), 0)
	}
	if len(info.BaseMargin) != 0 && len(info.BaseMargin) != r {
		return nil, errors.NewDimensionError("NewDMatrix", r, len(info.BaseMargin), 0)
	}
	return &DMatrix{x: x, info: info}, nil
}

// FromMatrix copies an arbitrary gonum matrix into a DMatrix.
func FromMatrix(x mat.Matrix, info MetaInfo) (*DMatrix, error) {
	d := mat.DenseCopyOf(x)
	return NewDMatrix(d, info)
}

// NumRow returns the number of rows.
func (m *DMatrix) NumRow() int {
	r, _ := m.x.Dims()
	return r
}

// NumCol returns the number of feature columns.
func (m *DMatrix) NumCol() int {
	_, c := m.x.Dims()
	return c
}

// RowView returns the feature vector of row i without copying.
func (m *DMatrix) RowView(i int) []float64 {
	return m.x.RawRowView(i)
}

// Info returns the row metadata.
func (m *DMatrix) Info() *MetaInfo {
	return &m.info
}

// IsMissing reports whether a feature value is the missing sentinel.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Reset replaces the matrix contents while keeping the handle's identity.
// Only valid between boosting rounds. A registered matrix whose row count
// changes through Reset is bypassed by the prediction buffer cache until
// the count matches its registration again.
func (m *DMatrix) Reset(x *mat.Dense, info MetaInfo) {
	m.x = x
	m.info = info
}

// SetCacheOwner stamps the owner token. Called by the learner when the
// matrix is registered for prediction buffering.
func (m *DMatrix) SetCacheOwner(owner any) {
	m.cacheOwner = owner
}

// CacheOwner returns the current owner token, nil when never registered.
func (m *DMatrix) CacheOwner() any {
	return m.cacheOwner
}
