package metric

import (
	"math"

	"github.com/weixiaohua/xgboost/data"
)

func init() {
	Register("error", func() Evaluator { return binaryError{} })
	Register("logloss", func() Evaluator { return logLoss{} })
	Register("merror", func() Evaluator { return multiError{} })
}

// binaryError is the weighted 0/1 error with a 0.5 decision threshold.
// Predictions must be probabilities.
type binaryError struct{}

func (binaryError) Name() string { return "error" }

func (binaryError) Eval(preds []float64, info *data.MetaInfo) float64 {
	var wrong, wsum float64
	for i, p := range preds {
		w := info.GetWeight(i)
		predicted := 0.0
		if p > 0.5 {
			predicted = 1.0
		}
		if predicted != info.Labels[i] {
			wrong += w
		}
		wsum += w
	}
	return wrong / wsum
}

// logLoss is the weighted negative log-likelihood of binary probabilities.
type logLoss struct{}

func (logLoss) Name() string { return "logloss" }

func (logLoss) Eval(preds []float64, info *data.MetaInfo) float64 {
	const eps = 1e-16
	var sum, wsum float64
	for i, p := range preds {
		w := info.GetWeight(i)
		y := info.Labels[i]
		p = math.Min(math.Max(p, eps), 1.0-eps)
		sum += -w * (y*math.Log(p) + (1.0-y)*math.Log(1.0-p))
		wsum += w
	}
	return sum / wsum
}

// multiError is the weighted multi-class classification error. It accepts
// either one predicted label per row, or the full group-major probability
// block of nrow*nclass values, in which case the argmax class is taken.
type multiError struct{}

func (multiError) Name() string { return "merror" }

func (multiError) Eval(preds []float64, info *data.MetaInfo) float64 {
	nrow := info.NumRow()
	var wrong, wsum float64
	if len(preds) == nrow {
		for i, p := range preds {
			w := info.GetWeight(i)
			if p != info.Labels[i] {
				wrong += w
			}
			wsum += w
		}
		return wrong / wsum
	}
	nclass := len(preds) / nrow
	for j := 0; j < nrow; j++ {
		best, bestVal := 0, preds[j]
		for g := 1; g < nclass; g++ {
			if v := preds[g*nrow+j]; v > bestVal {
				best, bestVal = g, v
			}
		}
		w := info.GetWeight(j)
		if float64(best) != info.Labels[j] {
			wrong += w
		}
		wsum += w
	}
	return wrong / wsum
}
