// Standard attribute keys. Keys follow a dotted hierarchy ("model.name",
// "data.samples") so log lines can be filtered by prefix.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator or stage type.
	// Examples: "OneHotEncoder", "RegressionTrainer"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run.
	PhaseKey = "ml.phase"

	// StageKey identifies a pipeline stage by kind and position.
	StageKey = "pipeline.stage"
)

// Data shape and provenance.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ColumnKey   = "data.column"
	PathKey     = "data.path"

	// VocabularySizeKey records how many distinct categories an encoder learned.
	VocabularySizeKey = "data.vocabulary_size"
)

// Performance and quality.
const (
	DurationMsKey = "perf.duration_ms"
	LossKey       = "metrics.loss"
	R2ScoreKey    = "metrics.r2_score"
	RMSKey        = "metrics.rms"
	IterationKey  = "training.iteration"
)

// Configuration.
const (
	LearningRateKey  = "hyperparams.learning_rate"
	NumTreesKey      = "hyperparams.num_trees"
	NumLeavesKey     = "hyperparams.num_leaves"
	RandomSeedKey    = "config.random_seed"
	FormatVersionKey = "model.format_version"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationEvaluate  = "evaluate"
	OperationSave      = "save"
	OperationLoad      = "load"

	PhaseTraining   = "training"
	PhaseEvaluation = "evaluation"
	PhaseInference  = "inference"
)
