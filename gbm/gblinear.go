package gbm

import (
	"encoding/binary"
	"io"
	"strconv"

	"github.com/weixiaohua/xgboost/data"
	"github.com/weixiaohua/xgboost/objective"
	"github.com/weixiaohua/xgboost/pkg/errors"
)

func init() {
	Register("gblinear", func() GradBooster { return newGBLinear() })
}

// gbLinear is the linear booster: one L2-regularized weight vector plus
// bias per booster group, updated by coordinate descent on the aggregated
// gradient statistics of each round. Prediction is a dot product, so the
// buffer slot offers nothing and is ignored.
type gbLinear struct {
	eta        float64
	lambda     float64
	numFeature int
	numGroup   int
	numBoost   int32

	// weights is group-major: group g occupies
	// [g*(numFeature+1), (g+1)*(numFeature+1)), bias last.
	weights []float64
}

func newGBLinear() *gbLinear {
	return &gbLinear{eta: 0.5, lambda: 0.0, numGroup: 1}
}

func (b *gbLinear) SetParam(name, value string) {
	switch name {
	case "eta", "learning_rate":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			b.eta = v
		}
	case "lambda", "reg_lambda":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			b.lambda = v
		}
	case "bst:num_feature":
		if v, err := strconv.Atoi(value); err == nil && v > b.numFeature {
			old := b.numFeature
			b.numFeature = v
			b.growWeights(old)
		}
	case "num_booster_group", "num_class":
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			b.numGroup = v
			b.weights = make([]float64, (b.numFeature+1)*b.numGroup)
		}
	}
}

// growWeights widens each group's stride after num_feature grew, keeping
// the learned weights and bias in place.
func (b *gbLinear) growWeights(oldFeature int) {
	if len(b.weights) == 0 {
		b.weights = make([]float64, (b.numFeature+1)*b.numGroup)
		return
	}
	oldStride := oldFeature + 1
	newStride := b.numFeature + 1
	grown := make([]float64, newStride*b.numGroup)
	for g := 0; g < b.numGroup; g++ {
		oldW := b.weights[g*oldStride : (g+1)*oldStride]
		newW := grown[g*newStride : (g+1)*newStride]
		copy(newW, oldW[:oldFeature])
		newW[b.numFeature] = oldW[oldFeature] // bias
	}
	b.weights = grown
}

func (b *gbLinear) InitModel() {
	b.numBoost = 0
	b.weights = make([]float64, (b.numFeature+1)*b.numGroup)
}

func (b *gbLinear) groupWeights(group int) []float64 {
	stride := b.numFeature + 1
	return b.weights[group*stride : (group+1)*stride]
}

func (b *gbLinear) DoBoost(gpairs []objective.GradPair, dmat *data.DMatrix, rootIndex []uint32, group int) error {
	if len(gpairs) != dmat.NumRow() {
		return errors.NewDimensionError("DoBoost", dmat.NumRow(), len(gpairs), 0)
	}
	if group < 0 || group >= b.numGroup {
		return errors.NewValueError("DoBoost", "booster group out of range")
	}
	if dmat.NumCol() > b.numFeature {
		return errors.NewDimensionError("DoBoost", b.numFeature, dmat.NumCol(), 1)
	}
	w := b.groupWeights(group)

	// bias first, plain Newton step on the summed statistics
	var sumG, sumH float64
	for _, gp := range gpairs {
		sumG += gp.Grad
		sumH += gp.Hess
	}
	if sumH > 0 {
		w[b.numFeature] -= b.eta * sumG / sumH
	}

	for f := 0; f < dmat.NumCol(); f++ {
		var gradF, hessF float64
		for r := 0; r < dmat.NumRow(); r++ {
			v := dmat.RowView(r)[f]
			if data.IsMissing(v) {
				continue
			}
			gradF += gpairs[r].Grad * v
			hessF += gpairs[r].Hess * v * v
		}
		denom := hessF + b.lambda
		if denom <= 0 {
			continue
		}
		delta := -(gradF + b.lambda*w[f]) / denom
		w[f] += b.eta * delta
	}
	b.numBoost++
	return nil
}

func (b *gbLinear) Predict(dmat *data.DMatrix, row int, bufferSlot int64, root uint32, group int) float64 {
	_ = bufferSlot
	_ = root
	w := b.groupWeights(group)
	features := dmat.RowView(row)
	sum := w[b.numFeature]
	for f, v := range features {
		if f >= b.numFeature {
			break
		}
		if data.IsMissing(v) {
			continue
		}
		sum += w[f] * v
	}
	return sum
}

func (b *gbLinear) PredictLast(dmat *data.DMatrix, row int, bufferSlot int64) float64 {
	return b.Predict(dmat, row, bufferSlot, 0, 0)
}

func (b *gbLinear) RePredict(dmat *data.DMatrix, row int, bufferSlot int64) {
	// nothing cached; predictions are always current
}

func (b *gbLinear) PopBooster() error {
	return errors.NewValueError("PopBooster", "gblinear cannot remove a boosting update")
}

func (b *gbLinear) ClearBuffer(bufferSlot int64) {
	// no buffer state
}

func (b *gbLinear) NumBoosterGroup() int {
	return b.numGroup
}

func (b *gbLinear) NumBoosters() int {
	return int(b.numBoost)
}

func (b *gbLinear) Save(w io.Writer) error {
	header := struct {
		NumFeature int32
		NumGroup   int32
		NumBoost   int32
	}{int32(b.numFeature), int32(b.numGroup), b.numBoost}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return errors.Wrap(err, "write gblinear header")
	}
	if err := binary.Write(w, binary.LittleEndian, b.weights); err != nil {
		return errors.Wrap(err, "write gblinear weights")
	}
	return nil
}

func (b *gbLinear) Load(r io.Reader) error {
	var header struct {
		NumFeature int32
		NumGroup   int32
		NumBoost   int32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return errors.NewFormatError("gbLinear.Load", "truncated header")
	}
	if header.NumFeature < 0 || header.NumGroup <= 0 {
		return errors.NewFormatError("gbLinear.Load", "implausible weight header")
	}
	b.numFeature = int(header.NumFeature)
	b.numGroup = int(header.NumGroup)
	b.numBoost = header.NumBoost
	b.weights = make([]float64, (b.numFeature+1)*b.numGroup)
	if err := binary.Read(r, binary.LittleEndian, b.weights); err != nil {
		return errors.NewFormatError("gbLinear.Load", "truncated weights")
	}
	return nil
}
