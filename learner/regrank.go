package learner

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/weixiaohua/xgboost/core/parallel"
	"github.com/weixiaohua/xgboost/data"
	"github.com/weixiaohua/xgboost/gbm"
	"github.com/weixiaohua/xgboost/metric"
	"github.com/weixiaohua/xgboost/objective"
	"github.com/weixiaohua/xgboost/pkg/errors"
	xgblog "github.com/weixiaohua/xgboost/pkg/log"
)

// RegRankLearner is the legacy regression/ranking driver. Unlike
// BoostLearner it owns a hardcoded gbtree booster from construction, keeps
// a clear_period that periodically resets cached buffer rows to bound
// incremental drift, and supports the interactive trial-update protocol
// (UpdateInteract) for speculatively adding and removing ensemble members.
//
// Its model format is the legacy one: booster state first, then the
// parameter block, then the objective name, with no booster-name field.
type RegRankLearner struct {
	mparam  legacyModelParam
	nameObj string

	obj objective.Objective
	gbm gbm.GradBooster

	evaluator metric.EvalSet
	cfg       []paramPair
	cache     bufferCache

	logger *slog.Logger
}

var _ Learner = (*RegRankLearner)(nil)

// NewRegRankLearner constructs the legacy learner. The booster exists
// immediately; only the objective is instantiated lazily.
func NewRegRankLearner() *RegRankLearner {
	booster, err := gbm.Create("gbtree")
	if err != nil {
		// gbtree registers itself in this module's init; absence is a
		// programming error, not a runtime condition
		panic(err)
	}
	l := &RegRankLearner{
		mparam:  newLegacyModelParam(),
		nameObj: "reg:linear",
		gbm:     booster,
		logger:  slog.Default(),
	}
	l.cache.owner = l
	return l
}

// SetParam forwards every pair to the booster directly (it already exists)
// and records it for the objective replay.
func (l *RegRankLearner) SetParam(name, value string) error {
	if name == "eval_metric" {
		if !l.evaluator.AddEval(value) {
			return errors.NewUnknownPluginError("metric", value)
		}
	}
	if l.obj == nil && name == "objective" {
		l.nameObj = value
	}
	if name == "num_class" {
		l.gbm.SetParam("num_booster_group", value)
	}
	l.mparam.setParam(name, value)
	l.gbm.SetParam(name, value)
	if l.obj != nil {
		l.obj.SetParam(name, value)
	}
	l.cfg = append(l.cfg, paramPair{Name: name, Value: value})
	return nil
}

// SetCacheData mirrors the current generation: disjoint offsets in
// registration order, feature-count widening, buffer sizing. Sizing goes
// through SetParam so the replay log carries it; LoadModel rebuilds the
// booster from that log and would otherwise lose the buffer dimensions.
func (l *RegRankLearner) SetCacheData(mats []*data.DMatrix) error {
	bufferSize, numFeature, err := l.cache.register(mats)
	if err != nil {
		return err
	}
	if int32(numFeature) > l.mparam.NumFeature {
		if err := l.SetParam("bst:num_feature", strconv.Itoa(numFeature)); err != nil {
			return err
		}
	}
	if err := l.SetParam("num_pbuffer", strconv.FormatInt(bufferSize, 10)); err != nil {
		return err
	}
	l.logger.Info("prediction cache registered",
		xgblog.BufferSizeKey, bufferSize,
		xgblog.FeaturesKey, numFeature,
	)
	return nil
}

// initObj instantiates the objective and replays the configuration log.
// With num_class set, a non-multiclass objective name is overridden to
// multi:softmax so grouped boosting stays consistent.
func (l *RegRankLearner) initObj() error {
	if l.obj != nil {
		return nil
	}
	if l.mparam.NumClass != 0 && l.nameObj != "multi:softmax" && l.nameObj != "multi:softprob" {
		l.logger.Info("auto selecting objective to support multi-class classification",
			xgblog.ObjectiveKey, "multi:softmax",
		)
		l.nameObj = "multi:softmax"
	}
	obj, err := objective.Create(l.nameObj)
	if err != nil {
		return err
	}
	for _, p := range l.cfg {
		obj.SetParam(p.Name, p.Value)
	}
	l.evaluator.AddEval(obj.DefaultEvalMetric())
	l.obj = obj
	return nil
}

// InitModel initializes a fresh model and converts the base score into
// margin space via the objective.
func (l *RegRankLearner) InitModel() error {
	if l.obj != nil {
		return errors.NewValueError("InitModel", "model already initialized")
	}
	if err := l.initObj(); err != nil {
		return err
	}
	l.gbm.InitModel()
	l.mparam.BaseScore = float32(l.obj.ProbToMargin(float64(l.mparam.BaseScore)))
	return nil
}

// UpdateOneIter runs one boosting round. Every clear_period rounds the
// training matrix's buffer range is reset, forcing full recomputation to
// bound numerical drift from incremental updates.
func (l *RegRankLearner) UpdateOneIter(iter int, train *data.DMatrix) error {
	if l.obj == nil {
		return errors.NewNotInitializedError("RegRankLearner", "UpdateOneIter")
	}
	preds := l.predictRaw(train)
	// the round index handed to the objective tracks the ensemble size,
	// not the caller's counter: interactive removes can disagree with it
	gpairs, err := l.obj.GetGradient(preds, train.Info(), l.gbm.NumBoosters())
	if err != nil {
		return err
	}
	nrow := train.NumRow()
	rootIndex := train.Info().RootIndex
	if len(gpairs) == nrow {
		if err := l.gbm.DoBoost(gpairs, train, rootIndex, 0); err != nil {
			return err
		}
	} else {
		ngroup := l.gbm.NumBoosterGroup()
		if len(gpairs) != nrow*ngroup {
			return errors.NewDimensionError("UpdateOneIter", nrow*ngroup, len(gpairs), 0)
		}
		for g := 0; g < ngroup; g++ {
			if err := l.gbm.DoBoost(gpairs[g*nrow:(g+1)*nrow], train, rootIndex, g); err != nil {
				return err
			}
		}
	}
	if l.mparam.ClearPeriod != 0 && (iter+1)%int(l.mparam.ClearPeriod) == 0 {
		return l.clearBuffer(train)
	}
	return nil
}

// clearBuffer resets the cached per-row state of a registered matrix.
func (l *RegRankLearner) clearBuffer(dmat *data.DMatrix) error {
	offset := l.cache.findOffset(dmat)
	if offset < 0 {
		return errors.NewValueError("clearBuffer", "matrix has no buffer offset")
	}
	parallel.For(dmat.NumRow(), func(start, end int) {
		for j := start; j < end; j++ {
			l.gbm.ClearBuffer(offset + int64(j))
		}
	})
	return nil
}

// UpdateInteract is the non-destructive trial-update protocol: re-predict
// every cached matrix into a trial view, apply the action ("remove" drops
// the newest ensemble member and returns; anything else fits one new
// increment on the training matrix), then re-predict every cached matrix
// again so committed buffers reflect the new state.
func (l *RegRankLearner) UpdateInteract(action string, train *data.DMatrix) error {
	if l.obj == nil {
		return errors.NewNotInitializedError("RegRankLearner", "UpdateInteract")
	}
	for i := range l.cache.entries {
		if _, err := l.interactPredict(l.cache.entries[i].mat); err != nil {
			return err
		}
	}

	if action == "remove" {
		return l.gbm.PopBooster()
	}

	preds, err := l.interactPredict(train)
	if err != nil {
		return err
	}
	gpairs, err := l.obj.GetGradient(preds, train.Info(), l.gbm.NumBoosters())
	if err != nil {
		return err
	}
	if err := l.gbm.DoBoost(gpairs, train, nil, 0); err != nil {
		return err
	}

	for i := range l.cache.entries {
		if err := l.interactRePredict(l.cache.entries[i].mat); err != nil {
			return err
		}
	}
	return nil
}

// interactPredict computes the trial-view margins of a cached matrix
// without committing buffer state.
func (l *RegRankLearner) interactPredict(dmat *data.DMatrix) ([]float64, error) {
	offset := l.cache.findOffset(dmat)
	if offset < 0 {
		return nil, l.interactCacheError(dmat)
	}
	nrow := dmat.NumRow()
	info := dmat.Info()
	base := float64(l.mparam.BaseScore)
	preds := make([]float64, nrow)
	parallel.For(nrow, func(start, end int) {
		for j := start; j < end; j++ {
			preds[j] = info.GetBaseMargin(j, base) + l.gbm.PredictLast(dmat, j, offset+int64(j))
		}
	})
	return preds, nil
}

// interactRePredict recommits the buffer rows of a cached matrix so they
// reflect the current ensemble, including removals.
func (l *RegRankLearner) interactRePredict(dmat *data.DMatrix) error {
	offset := l.cache.findOffset(dmat)
	if offset < 0 {
		return l.interactCacheError(dmat)
	}
	parallel.For(dmat.NumRow(), func(start, end int) {
		for j := start; j < end; j++ {
			l.gbm.RePredict(dmat, j, offset+int64(j))
		}
	})
	return nil
}

// interactCacheError tells a registration gone stale apart from a matrix
// that was never cached at all.
func (l *RegRankLearner) interactCacheError(dmat *data.DMatrix) error {
	if l.cache.registered(dmat) {
		return errors.NewValueError("UpdateInteract", "cached matrix row count changed since registration")
	}
	return errors.NewValueError("UpdateInteract", "interact mode must cache training data")
}

// EvalOneIter formats "[iter]" plus one segment per evaluation matrix.
func (l *RegRankLearner) EvalOneIter(iter int, evals []*data.DMatrix, names []string) (string, error) {
	if l.obj == nil {
		return "", errors.NewNotInitializedError("RegRankLearner", "EvalOneIter")
	}
	if len(evals) != len(names) {
		return "", errors.NewDimensionError("EvalOneIter", len(evals), len(names), 0)
	}
	res := fmt.Sprintf("[%d]", iter)
	for i, ev := range evals {
		preds := l.obj.EvalTransform(l.predictRaw(ev))
		res += l.evaluator.Eval(names[i], preds, ev.Info())
	}
	return res, nil
}

// Evaluate scores one matrix with a named metric, degrading to the
// empty-name sentinel on unknown names.
func (l *RegRankLearner) Evaluate(dmat *data.DMatrix, metricName string) (string, float64, error) {
	if l.obj == nil {
		return "", 0, errors.NewNotInitializedError("RegRankLearner", "Evaluate")
	}
	if metricName == "auto" {
		metricName = l.obj.DefaultEvalMetric()
	}
	ev := metric.Create(metricName)
	if ev == nil {
		return "", 0, nil
	}
	preds := l.obj.EvalTransform(l.predictRaw(dmat))
	return metricName, ev.Eval(preds, dmat.Info()), nil
}

// Predict returns user-facing predictions.
func (l *RegRankLearner) Predict(dmat *data.DMatrix) ([]float64, error) {
	if l.obj == nil {
		return nil, errors.NewNotInitializedError("RegRankLearner", "Predict")
	}
	return l.obj.PredTransform(l.predictRaw(dmat)), nil
}

// predictRaw computes group-major margins through the cache path.
func (l *RegRankLearner) predictRaw(dmat *data.DMatrix) []float64 {
	offset := l.cache.findOffset(dmat)
	nrow := dmat.NumRow()
	ngroup := l.gbm.NumBoosterGroup()
	info := dmat.Info()
	base := float64(l.mparam.BaseScore)

	preds := make([]float64, nrow*ngroup)
	for g := 0; g < ngroup; g++ {
		out := preds[g*nrow : (g+1)*nrow]
		parallel.For(nrow, func(start, end int) {
			for j := start; j < end; j++ {
				slot := int64(-1)
				if offset >= 0 {
					slot = offset + int64(j)
				}
				out[j] = info.GetBaseMargin(j, base) + l.gbm.Predict(dmat, j, slot, info.GetRoot(j), g)
			}
		})
	}
	return preds
}

// SaveModel writes the legacy layout: magic, booster state, parameter
// block, objective name.
func (l *RegRankLearner) SaveModel(w io.Writer) error {
	if l.obj == nil {
		return errors.NewNotInitializedError("RegRankLearner", "SaveModel")
	}
	if err := writeMagic(w, regRankLearnerMagic); err != nil {
		return err
	}
	if err := l.gbm.Save(w); err != nil {
		return err
	}
	if err := writeBinary(w, &l.mparam, "write model parameters"); err != nil {
		return err
	}
	return writeString(w, l.nameObj)
}

// LoadModel reads a legacy model stream. A current-generation stream is
// rejected on its magic before any state is touched.
func (l *RegRankLearner) LoadModel(r io.Reader) error {
	if err := readMagic(r, "RegRankLearner.LoadModel", regRankLearnerMagic, boostLearnerMagic); err != nil {
		return err
	}
	booster, err := gbm.Create("gbtree")
	if err != nil {
		return err
	}
	for _, p := range l.cfg {
		booster.SetParam(p.Name, p.Value)
	}
	if err := booster.Load(r); err != nil {
		return err
	}
	var mparam legacyModelParam
	if err := readBinary(r, &mparam, "RegRankLearner.LoadModel", "truncated model parameters"); err != nil {
		return err
	}
	nameObj, err := readString(r, "RegRankLearner.LoadModel")
	if err != nil {
		return err
	}

	l.gbm = booster
	l.mparam = mparam
	l.nameObj = nameObj
	l.obj = nil
	return l.initObj()
}
