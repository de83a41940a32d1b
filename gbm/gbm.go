// Package gbm defines the gradient booster plug-in contract, its registry,
// and the built-in boosters: gbtree (regression tree ensemble with a
// prediction buffer) and gblinear (regularized linear model).
//
// A booster owns the additive ensemble and the global prediction buffer.
// The learner never touches the buffer directly; it hands boosters a
// per-row buffer slot and the booster decides how to exploit it. Slot -1
// means "no reuse" and forces full recomputation for that row.
package gbm

import (
	"io"
	"sort"
	"sync"

	"github.com/weixiaohua/xgboost/data"
	"github.com/weixiaohua/xgboost/objective"
	"github.com/weixiaohua/xgboost/pkg/errors"
)

// GradBooster is the pluggable ensemble contract.
//
// Rows passed to Predict, PredictLast, RePredict and ClearBuffer have
// disjoint buffer slots, so implementations may be called from parallel
// row loops without locking as long as per-slot state stays per-slot.
type GradBooster interface {
	// SetParam configures the booster; unknown keys are ignored so the
	// learner can replay its full configuration log.
	SetParam(name, value string)
	// InitModel sets up the empty ensemble. Called once per fresh model.
	InitModel()
	// DoBoost consumes one round of gradient pairs (one per row) and grows
	// the ensemble of the given booster group.
	DoBoost(gpairs []objective.GradPair, dmat *data.DMatrix, rootIndex []uint32, group int) error
	// Predict returns the margin contribution of the ensemble for one row.
	// A non-negative bufferSlot allows the booster to reuse the committed
	// margin for that slot and fold in only newer ensemble members.
	Predict(dmat *data.DMatrix, row int, bufferSlot int64, root uint32, group int) float64
	// PredictLast returns the group-0 margin for a trial view of the
	// ensemble without committing anything to the buffer.
	PredictLast(dmat *data.DMatrix, row int, bufferSlot int64) float64
	// RePredict recommits the buffer slot so it reflects the current
	// ensemble, including removals.
	RePredict(dmat *data.DMatrix, row int, bufferSlot int64)
	// PopBooster discards the most recently added ensemble member.
	PopBooster() error
	// ClearBuffer resets the cached state of one buffer slot, forcing full
	// recomputation on the next prediction.
	ClearBuffer(bufferSlot int64)
	// NumBoosterGroup returns the number of parallel ensembles (1 for
	// regression and binary tasks, num_class for multi-class).
	NumBoosterGroup() int
	// NumBoosters returns the number of completed boosting updates.
	NumBoosters() int
	// Save writes the self-described ensemble state.
	Save(w io.Writer) error
	// Load reads state previously written by Save.
	Load(r io.Reader) error
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() GradBooster{}
)

// Register adds a factory under the given booster name.
func Register(name string, factory func() GradBooster) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Create instantiates the booster registered under name.
func Create(name string) (GradBooster, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.NewUnknownPluginError("booster", name)
	}
	return factory(), nil
}

// Names returns the registered booster names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
