package log

// Standard attribute keys used by the learner and boosters. Keeping the key
// strings in one place makes the JSON logs greppable across components.
const (
	// IterationKey is the boosting round index.
	IterationKey = "boost.iteration"

	// ObjectiveKey is the configured objective name, e.g. "reg:logistic".
	ObjectiveKey = "boost.objective"

	// BoosterKey is the configured booster name, e.g. "gbtree".
	BoosterKey = "boost.booster"

	// BufferSizeKey is the total number of rows covered by the prediction
	// buffer cache.
	BufferSizeKey = "cache.buffer_size"

	// SamplesKey is the number of rows in the dataset being processed.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of feature columns.
	FeaturesKey = "data.features"

	// MetricKey is an evaluation metric name.
	MetricKey = "eval.metric"
)
