// Package metric holds the evaluation registry: name-keyed scoring
// functions applied to transformed predictions, and the EvalSet helper that
// formats per-dataset scores for the training log line.
package metric

import (
	"fmt"
	"strings"
	"sync"

	"github.com/weixiaohua/xgboost/data"
)

// Evaluator scores transformed predictions against ground truth.
type Evaluator interface {
	// Name returns the registry name of the metric.
	Name() string
	// Eval computes the scalar score. preds has either one value per row
	// or, for multi-class probability metrics, nrow*nclass values laid out
	// group-major.
	Eval(preds []float64, info *data.MetaInfo) float64
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Evaluator{}
)

// Register adds a factory under the given metric name.
func Register(name string, factory func() Evaluator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Create instantiates the metric registered under name, or nil when the
// name is unknown. Metric lookup is a best-effort diagnostic path, so an
// unknown name is not an error here; callers decide how to degrade.
func Create(name string) Evaluator {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil
	}
	return factory()
}

// EvalSet is an ordered, duplicate-free collection of metrics evaluated
// together after each boosting round.
type EvalSet struct {
	evals []Evaluator
}

// AddEval appends the named metric, keeping insertion order and skipping
// names already present or unknown to the registry. It reports whether the
// name was recognized.
func (s *EvalSet) AddEval(name string) bool {
	for _, ev := range s.evals {
		if ev.Name() == name {
			return true
		}
	}
	ev := Create(name)
	if ev == nil {
		return false
	}
	s.evals = append(s.evals, ev)
	return true
}

// Eval formats "\t<dataset>-<metric>:<score>" segments for every metric in
// the set, in registration order.
func (s *EvalSet) Eval(datasetName string, preds []float64, info *data.MetaInfo) string {
	var sb strings.Builder
	for _, ev := range s.evals {
		fmt.Fprintf(&sb, "\t%s-%s:%f", datasetName, ev.Name(), ev.Eval(preds, info))
	}
	return sb.String()
}
