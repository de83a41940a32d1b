// Package xgboost provides a gradient boosting library for Go: regression
// tree and linear boosters driven by pluggable objectives, with fast
// iterative training backed by a prediction buffer cache.
//
// # Quick Start
//
// Training a binary classifier:
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/weixiaohua/xgboost/data"
//	    "github.com/weixiaohua/xgboost/learner"
//	    "gonum.org/v1/gonum/mat"
//	)
//
//	func main() {
//	    X := mat.NewDense(4, 2, []float64{0, 0, 0, 1, 1, 0, 1, 1})
//	    train, err := data.NewDMatrix(X, data.MetaInfo{Labels: []float64{0, 1, 1, 0}})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    bst := learner.NewBoostLearner()
//	    _ = bst.SetParam("objective", "binary:logistic")
//	    _ = bst.SetParam("max_depth", "3")
//	    if err := bst.SetCacheData([]*data.DMatrix{train}); err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := bst.InitModel(); err != nil {
//	        log.Fatal(err)
//	    }
//	    for i := 0; i < 10; i++ {
//	        if err := bst.UpdateOneIter(i, train); err != nil {
//	            log.Fatal(err)
//	        }
//	    }
//
//	    preds, err := bst.Predict(train)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println("Predictions:", preds)
//	}
//
// # Packages
//
//   - learner: the training/evaluation/prediction drivers for both model
//     generations, plus the prediction buffer cache
//   - gbm: gradient booster plug-ins (gbtree, gblinear) and their registry
//   - objective: loss functions (squared, logistic, softmax) producing
//     gradient pairs
//   - metric: evaluation metrics and the per-round evaluation set
//   - data: the DMatrix feature matrix and row metadata
//   - core/parallel: the data-parallel row loop
//   - pkg/errors, pkg/log: structured errors, warnings and logging
package xgboost
