package metric

import (
	"math"

	"github.com/weixiaohua/xgboost/data"
)

func init() {
	Register("rmse", func() Evaluator { return rmse{} })
	Register("mae", func() Evaluator { return mae{} })
}

// rmse is the weighted root mean squared error.
type rmse struct{}

func (rmse) Name() string { return "rmse" }

func (rmse) Eval(preds []float64, info *data.MetaInfo) float64 {
	var sum, wsum float64
	for i, p := range preds {
		diff := p - info.Labels[i]
		w := info.GetWeight(i)
		sum += diff * diff * w
		wsum += w
	}
	return math.Sqrt(sum / wsum)
}

// mae is the weighted mean absolute error.
type mae struct{}

func (mae) Name() string { return "mae" }

func (mae) Eval(preds []float64, info *data.MetaInfo) float64 {
	var sum, wsum float64
	for i, p := range preds {
		w := info.GetWeight(i)
		sum += math.Abs(p-info.Labels[i]) * w
		wsum += w
	}
	return sum / wsum
}
