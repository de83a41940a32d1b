package objective

import (
	"math"
	"strconv"

	"github.com/weixiaohua/xgboost/data"
	"github.com/weixiaohua/xgboost/pkg/errors"
)

func init() {
	Register("reg:linear", func() Objective {
		return &regLossObj{lossType: lossSquared, defaultMetric: "rmse"}
	})
	Register("reg:logistic", func() Objective {
		return &regLossObj{lossType: lossLogistic, defaultMetric: "rmse"}
	})
	Register("binary:logistic", func() Objective {
		return &regLossObj{lossType: lossLogistic, defaultMetric: "error", classifyEval: true}
	})
}

type lossType int

const (
	lossSquared lossType = iota
	lossLogistic
)

const minHessian = 1e-16

// regLossObj covers the element-wise regression losses: squared error and
// logistic. The logistic variants share gradients and differ only in how
// evaluation-time predictions are shaped and which metric is the default.
type regLossObj struct {
	lossType      lossType
	defaultMetric string
	// classifyEval applies the sigmoid before metrics run, so threshold
	// metrics like "error" see probabilities.
	classifyEval bool
	// scalePosWeight multiplies the weight of positive instances.
	scalePosWeight float64
}

func (o *regLossObj) SetParam(name, value string) {
	if name == "scale_pos_weight" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			o.scalePosWeight = v
		}
	}
}

func (o *regLossObj) GetGradient(preds []float64, info *data.MetaInfo, iter int) ([]GradPair, error) {
	if len(preds) != len(info.Labels) {
		return nil, errors.NewDimensionError("GetGradient", len(info.Labels), len(preds), 0)
	}
	gpairs := make([]GradPair, len(preds))
	for i, p := range preds {
		y := info.Labels[i]
		w := info.GetWeight(i)
		if o.scalePosWeight > 0 && y == 1.0 {
			w *= o.scalePosWeight
		}
		switch o.lossType {
		case lossSquared:
			gpairs[i] = GradPair{Grad: (p - y) * w, Hess: w}
		case lossLogistic:
			if y < 0 || y > 1 {
				return nil, errors.NewValidationError("label", "logistic loss requires labels in [0,1]", y)
			}
			prob := sigmoid(p)
			gpairs[i] = GradPair{
				Grad: (prob - y) * w,
				Hess: math.Max(prob*(1.0-prob), minHessian) * w,
			}
		}
	}
	return gpairs, nil
}

func (o *regLossObj) PredTransform(preds []float64) []float64 {
	if o.lossType == lossLogistic {
		for i := range preds {
			preds[i] = sigmoid(preds[i])
		}
	}
	return preds
}

func (o *regLossObj) EvalTransform(preds []float64) []float64 {
	// reg:logistic evaluates in margin space by default (rmse on margins
	// matches the historical behavior); the binary classifier needs
	// probabilities for threshold metrics.
	if o.classifyEval {
		for i := range preds {
			preds[i] = sigmoid(preds[i])
		}
	}
	return preds
}

func (o *regLossObj) ProbToMargin(base float64) float64 {
	if o.lossType == lossLogistic {
		// logit; base must lie in (0,1) for logistic losses
		return -math.Log(1.0/base - 1.0)
	}
	return base
}

func (o *regLossObj) DefaultEvalMetric() string {
	return o.defaultMetric
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
