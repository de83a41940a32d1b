package objective

import (
	"math"
	"strconv"

	"github.com/weixiaohua/xgboost/data"
	"github.com/weixiaohua/xgboost/pkg/errors"
)

func init() {
	Register("multi:softmax", func() Objective {
		return &softmaxMultiObj{}
	})
	Register("multi:softprob", func() Objective {
		return &softmaxMultiObj{outputProb: true}
	})
}

// softmaxMultiObj implements the softmax multi-class objective. Gradient
// pairs are produced group-major: class g of row j lives at g*nrow+j, which
// is the layout the learner slices when boosting one ensemble per class.
type softmaxMultiObj struct {
	numClass int
	// outputProb keeps per-class probabilities in PredTransform instead of
	// collapsing to the argmax label.
	outputProb bool
}

func (o *softmaxMultiObj) SetParam(name, value string) {
	if name == "num_class" {
		if v, err := strconv.Atoi(value); err == nil {
			o.numClass = v
		}
	}
}

func (o *softmaxMultiObj) GetGradient(preds []float64, info *data.MetaInfo, iter int) ([]GradPair, error) {
	if o.numClass < 2 {
		return nil, errors.NewValidationError("num_class", "softmax objective requires num_class >= 2", o.numClass)
	}
	nrow := len(info.Labels)
	if len(preds) != nrow*o.numClass {
		return nil, errors.NewDimensionError("GetGradient", nrow*o.numClass, len(preds), 0)
	}
	gpairs := make([]GradPair, len(preds))
	prob := make([]float64, o.numClass)
	for j := 0; j < nrow; j++ {
		for g := 0; g < o.numClass; g++ {
			prob[g] = preds[g*nrow+j]
		}
		softmax(prob)
		label := int(info.Labels[j])
		if label < 0 || label >= o.numClass {
			return nil, errors.NewValidationError("label", "label out of range for num_class", info.Labels[j])
		}
		w := info.GetWeight(j)
		for g := 0; g < o.numClass; g++ {
			p := prob[g]
			grad := p
			if g == label {
				grad = p - 1.0
			}
			gpairs[g*nrow+j] = GradPair{
				Grad: grad * w,
				Hess: math.Max(2.0*p*(1.0-p), minHessian) * w,
			}
		}
	}
	return gpairs, nil
}

func (o *softmaxMultiObj) PredTransform(preds []float64) []float64 {
	return o.transform(preds, o.outputProb)
}

func (o *softmaxMultiObj) EvalTransform(preds []float64) []float64 {
	// metrics always receive the full probability layout so that both
	// merror and logloss-style scores can be computed
	return o.transform(preds, true)
}

// transform rewrites the group-major margin block. With prob set the block
// keeps its shape and holds per-class probabilities; otherwise it shrinks
// to one argmax label per row.
func (o *softmaxMultiObj) transform(preds []float64, prob bool) []float64 {
	if o.numClass < 2 {
		return preds
	}
	nrow := len(preds) / o.numClass
	scratch := make([]float64, o.numClass)
	for j := 0; j < nrow; j++ {
		for g := 0; g < o.numClass; g++ {
			scratch[g] = preds[g*nrow+j]
		}
		if prob {
			softmax(scratch)
			for g := 0; g < o.numClass; g++ {
				preds[g*nrow+j] = scratch[g]
			}
		} else {
			preds[j] = float64(argmax(scratch))
		}
	}
	if !prob {
		return preds[:nrow]
	}
	return preds
}

func (o *softmaxMultiObj) ProbToMargin(base float64) float64 {
	return base
}

func (o *softmaxMultiObj) DefaultEvalMetric() string {
	return "merror"
}

func softmax(v []float64) {
	max := v[0]
	for _, x := range v[1:] {
		if x > max {
			max = x
		}
	}
	var sum float64
	for i := range v {
		v[i] = math.Exp(v[i] - max)
		sum += v[i]
	}
	for i := range v {
		v[i] /= sum
	}
}

func argmax(v []float64) int {
	best := 0
	for i, x := range v {
		if x > v[best] {
			best = i
		}
	}
	return best
}
