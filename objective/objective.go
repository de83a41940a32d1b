// Package objective defines the loss-objective plug-in contract consumed by
// the learner, together with a name-keyed registry and the built-in
// regression, binary classification and multi-class objectives.
//
// An objective converts raw margin predictions into first and second order
// gradient statistics during training, and applies output transforms at the
// prediction and evaluation boundaries. The two transform hooks are
// deliberately distinct: the user-facing prediction path and the internal
// evaluation path may shape outputs differently.
package objective

import (
	"sort"
	"sync"

	"github.com/weixiaohua/xgboost/data"
	"github.com/weixiaohua/xgboost/pkg/errors"
)

// GradPair is the first/second order gradient statistic of one row.
type GradPair struct {
	Grad float64
	Hess float64
}

// Objective is the pluggable loss contract.
//
// GetGradient receives raw margin predictions for the training matrix. For
// single-group objectives the returned slice has one pair per row; for
// multi-class objectives it has nrow*nclass pairs laid out group-major,
// with class g occupying [g*nrow, (g+1)*nrow).
type Objective interface {
	// SetParam configures the objective; unknown keys are ignored so the
	// learner can replay its full configuration log.
	SetParam(name, value string)
	// GetGradient computes gradient pairs from raw predictions. iter is the
	// current boosting round, available for annealed objectives.
	GetGradient(preds []float64, info *data.MetaInfo, iter int) ([]GradPair, error)
	// PredTransform maps raw margins to user-facing predictions. The
	// result reuses the input storage and may be shorter, e.g. when a
	// multi-class block collapses to one label per row.
	PredTransform(preds []float64) []float64
	// EvalTransform maps raw margins to the representation fed to
	// evaluation metrics; like PredTransform it reuses the input storage.
	EvalTransform(preds []float64) []float64
	// ProbToMargin converts a probability-space base score into margin
	// space. Identity for objectives whose outputs already are margins.
	ProbToMargin(base float64) float64
	// DefaultEvalMetric names the metric used when the caller asked for
	// "auto".
	DefaultEvalMetric() string
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Objective{}
)

// Register adds a factory under the given objective name. Later
// registrations of the same name overwrite earlier ones.
func Register(name string, factory func() Objective) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Create instantiates the objective registered under name.
func Create(name string) (Objective, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.NewUnknownPluginError("objective", name)
	}
	return factory(), nil
}

// Names returns the registered objective names in sorted order.
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
