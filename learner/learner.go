// Package learner contains the training/evaluation/prediction
// orchestrators of the boosting engine. Two generations coexist:
// BoostLearner is the current driver, RegRankLearner the legacy driver
// that additionally supports the interactive trial-update protocol. Their
// binary model formats are distinct and deliberately incompatible.
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

// Learner is the capability set shared by both learner generations.
type Learner interface {
	// SetParam records a configuration pair. Pairs are replayed in call
	// order onto the objective and booster when those are instantiated.
	SetParam(name, value string) error
	// SetCacheData registers the matrices whose predictions should be
	// buffered across rounds. Callable at most once.
	SetCacheData(mats []*data.DMatrix) error
	// InitModel instantiates the plug-ins and initializes a fresh model.
	InitModel() error
	// LoadModel reads a model previously written by SaveModel of the same
	// generation.
	LoadModel(r io.Reader) error
	// SaveModel writes the model. Requires InitModel or LoadModel first.
	SaveModel(w io.Writer) error
	// UpdateOneIter runs one boosting round on the training matrix.
	UpdateOneIter(iter int, train *data.DMatrix) error
	// EvalOneIter scores every evaluation matrix and formats one log line.
	EvalOneIter(iter int, evals []*data.DMatrix, names []string) (string, error)
	// Evaluate scores a single matrix with a named metric ("auto" picks
	// the objective's default). Unknown metrics yield an empty name, not
	// an error.
	Evaluate(dmat *data.DMatrix, metricName string) (string, float64, error)
	// Predict returns user-facing predictions for a matrix.
	Predict(dmat *data.DMatrix) ([]float64, error)
}

// BoostLearner is the current-generation driver: it owns the model
// parameters, the lazily instantiated objective and booster, and the
// prediction buffer cache, and sequences the train/eval/predict/persist
// lifecycle.
type BoostLearner struct {
	mparam  modelParam
	nameObj string
	nameGbm string

	obj objective.Objective
	gbm gbm.GradBooster

	evaluator metric.EvalSet
	cfg       []paramPair
	cache     bufferCache

	logger *slog.Logger
}

var _ Learner = (*BoostLearner)(nil)

// NewBoostLearner returns an unconfigured learner with the default
// objective and booster names.
func NewBoostLearner() *BoostLearner {
	l := &BoostLearner{
		mparam:  newModelParam(),
		nameObj: "reg:linear",
		nameGbm: "gbtree",
		logger:  slog.Default(),
	}
	l.cache.owner = l
	return l
}

// SetParam records one configuration pair. The objective and booster names
// are only honored before the plug-ins exist; eval_metric may be added at
// any time. Every pair is appended to the replay log regardless.
func (l *BoostLearner) SetParam(name, value string) error {
	if name == "eval_metric" {
		if !l.evaluator.AddEval(value) {
			return errors.NewUnknownPluginError("metric", value)
		}
	}
	if l.gbm == nil {
		if name == "objective" {
			l.nameObj = value
		}
		if name == "booster" {
			l.nameGbm = value
		}
		l.mparam.setParam(name, value)
	}
	if l.obj != nil {
		l.obj.SetParam(name, value)
	}
	if l.gbm != nil {
		l.gbm.SetParam(name, value)
	}
	l.cfg = append(l.cfg, paramPair{Name: name, Value: value})
	return nil
}

// SetCacheData assigns every distinct matrix a slot range in the booster's
// prediction buffer. Registration also widens num_feature to the largest
// column count seen and tells the booster how big the buffer must be.
func (l *BoostLearner) SetCacheData(mats []*data.DMatrix) error {
	bufferSize, numFeature, err := l.cache.register(mats)
	if err != nil {
		return err
	}
	if uint32(numFeature) > l.mparam.NumFeature {
		l.mparam.NumFeature = uint32(numFeature)
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

// initObjGBM resolves the objective and booster names and replays the
// configuration log onto the fresh instances. On an unknown name nothing
// is assigned, so a failed init leaves no half-constructed plug-in behind.
func (l *BoostLearner) initObjGBM() error {
	if l.obj != nil {
		return nil
	}
	obj, err := objective.Create(l.nameObj)
	if err != nil {
		return err
	}
	booster, err := gbm.Create(l.nameGbm)
	if err != nil {
		return err
	}
	for _, p := range l.cfg {
		obj.SetParam(p.Name, p.Value)
		booster.SetParam(p.Name, p.Value)
	}
	l.evaluator.AddEval(obj.DefaultEvalMetric())
	l.obj = obj
	l.gbm = booster
	return nil
}

// InitModel initializes a fresh model. Valid only once; converts the
// configured base score into margin space exactly here.
func (l *BoostLearner) InitModel() error {
	if l.gbm != nil {
		return errors.NewValueError("InitModel", "model already initialized")
	}
	if err := l.initObjGBM(); err != nil {
		return err
	}
	l.mparam.BaseScore = float32(l.obj.ProbToMargin(float64(l.mparam.BaseScore)))
	l.gbm.InitModel()
	l.logger.Info("model initialized",
		xgblog.ObjectiveKey, l.nameObj,
		xgblog.BoosterKey, l.nameGbm,
	)
	return nil
}

// UpdateOneIter runs one boosting round: raw prediction through the cache
// path, gradient computation, then boosting: one group for plain tasks,
// or one contiguous gradient slice per group for multi-class.
func (l *BoostLearner) UpdateOneIter(iter int, train *data.DMatrix) error {
	if l.gbm == nil {
		return errors.NewNotInitializedError("BoostLearner", "UpdateOneIter")
	}
	preds := l.predictRaw(train)
	gpairs, err := l.obj.GetGradient(preds, train.Info(), iter)
	if err != nil {
		return err
	}
	nrow := train.NumRow()
	rootIndex := train.Info().RootIndex
	if len(gpairs) == nrow {
		return l.gbm.DoBoost(gpairs, train, rootIndex, 0)
	}
	ngroup := l.gbm.NumBoosterGroup()
	if len(gpairs) != nrow*ngroup {
		return errors.NewDimensionError("UpdateOneIter", nrow*ngroup, len(gpairs), 0)
	}
	for g := 0; g < ngroup; g++ {
		if err := l.gbm.DoBoost(gpairs[g*nrow:(g+1)*nrow], train, rootIndex, g); err != nil {
			return err
		}
	}
	return nil
}

// EvalOneIter formats "[iter]" followed by one segment per evaluation
// matrix, in input order.
func (l *BoostLearner) EvalOneIter(iter int, evals []*data.DMatrix, names []string) (string, error) {
	if l.gbm == nil {
		return "", errors.NewNotInitializedError("BoostLearner", "EvalOneIter")
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

// Evaluate is the ad hoc single-shot scoring path, independent of the
// registered evaluation set. It degrades to an empty-name sentinel on an
// unknown metric because it serves optional diagnostics.
func (l *BoostLearner) Evaluate(dmat *data.DMatrix, metricName string) (string, float64, error) {
	if l.gbm == nil {
		return "", 0, errors.NewNotInitializedError("BoostLearner", "Evaluate")
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

// Predict returns raw predictions passed through the objective's
// user-facing transform.
func (l *BoostLearner) Predict(dmat *data.DMatrix) ([]float64, error) {
	if l.gbm == nil {
		return nil, errors.NewNotInitializedError("BoostLearner", "Predict")
	}
	return l.obj.PredTransform(l.predictRaw(dmat)), nil
}

// PredictRaw returns untransformed margin predictions, group-major for
// multi-class models.
func (l *BoostLearner) PredictRaw(dmat *data.DMatrix) ([]float64, error) {
	if l.gbm == nil {
		return nil, errors.NewNotInitializedError("BoostLearner", "PredictRaw")
	}
	return l.predictRaw(dmat), nil
}

// predictRaw computes per-row margins through the buffer cache path. Rows
// are independent: each row owns its buffer slot, so the loop parallelizes
// with nothing but the final join.
func (l *BoostLearner) predictRaw(dmat *data.DMatrix) []float64 {
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

// SaveModel writes magic, parameter block, plug-in names, then the
// booster's self-described state.
func (l *BoostLearner) SaveModel(w io.Writer) error {
	if l.gbm == nil {
		return errors.NewNotInitializedError("BoostLearner", "SaveModel")
	}
	if err := writeMagic(w, boostLearnerMagic); err != nil {
		return err
	}
	if err := writeBinary(w, &l.mparam, "write model parameters"); err != nil {
		return err
	}
	if err := writeString(w, l.nameObj); err != nil {
		return err
	}
	if err := writeString(w, l.nameGbm); err != nil {
		return err
	}
	return l.gbm.Save(w)
}

// LoadModel reads a current-generation model stream. The objective and
// booster are re-instantiated from the stored names before booster state
// is delegated; the base score is already in margin space and is not
// converted again.
func (l *BoostLearner) LoadModel(r io.Reader) error {
	if err := readMagic(r, "BoostLearner.LoadModel", boostLearnerMagic, regRankLearnerMagic); err != nil {
		return err
	}
	var mparam modelParam
	if err := readBinary(r, &mparam, "BoostLearner.LoadModel", "truncated model parameters"); err != nil {
		return err
	}
	nameObj, err := readString(r, "BoostLearner.LoadModel")
	if err != nil {
		return err
	}
	nameGbm, err := readString(r, "BoostLearner.LoadModel")
	if err != nil {
		return err
	}

	// drop any existing plug-ins and rebuild from the stored names
	l.obj = nil
	l.gbm = nil
	l.nameObj = nameObj
	l.nameGbm = nameGbm
	if err := l.initObjGBM(); err != nil {
		return err
	}
	if err := l.gbm.Load(r); err != nil {
		l.obj = nil
		l.gbm = nil
		return err
	}
	l.mparam = mparam
	return nil
}
