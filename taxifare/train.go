package taxifare

import (
	"fmt"
	"time"

	"github.com/YuminosukeSato/taxifare/boosting"
	"github.com/YuminosukeSato/taxifare/core/model"
	"github.com/YuminosukeSato/taxifare/dataset"
	"github.com/YuminosukeSato/taxifare/pipeline"
	"github.com/YuminosukeSato/taxifare/pkg/log"
	"github.com/YuminosukeSato/taxifare/preprocessing"
)

// Column names produced by the pipeline.
const (
	LabelColumn              = "Label"
	VendorIDEncodedColumn    = "VendorIdEncoded"
	RateCodeEncodedColumn    = "RateCodeEncoded"
	PaymentTypeEncodedColumn = "PaymentTypeEncoded"
	FeaturesColumn           = "Features"
	ScoreColumn              = "Score"
)

// FeatureOrder is the order in which columns are concatenated into the
// feature vector.
var FeatureOrder = []string{
	VendorIDEncodedColumn,
	RateCodeEncodedColumn,
	dataset.PassengerCountColumn,
	dataset.TripDistanceColumn,
	PaymentTypeEncodedColumn,
}

// StageRegistry returns a registry that knows every stage kind the
// pipeline writes.
func StageRegistry() *model.Registry {
	reg := model.NewRegistry()
	if err := preprocessing.Register(reg); err != nil {
		panic(err)
	}
	if err := boosting.Register(reg); err != nil {
		panic(err)
	}
	return reg
}

// BuildPipeline assembles the unfitted pipeline: label copy, three one-hot
// encodings, feature concatenation and the boosted tree trainer.
func BuildPipeline(env *Env) *pipeline.Pipeline {
	trainer := boosting.NewRegressionTrainer(env.Params, trainingCallbacks(env)...)
	trainer.LabelColumn = LabelColumn
	trainer.FeatureColumn = FeaturesColumn
	trainer.ScoreColumn = ScoreColumn
	trainer.Logger = env.logger()

	return pipeline.New(
		preprocessing.NewColumnCopier(LabelColumn, dataset.FareAmountColumn),
		preprocessing.NewOneHotEncoder(VendorIDEncodedColumn, dataset.VendorIDColumn),
		preprocessing.NewOneHotEncoder(RateCodeEncodedColumn, dataset.RateCodeColumn),
		preprocessing.NewOneHotEncoder(PaymentTypeEncodedColumn, dataset.PaymentTypeColumn),
		preprocessing.NewColumnConcatenator(FeaturesColumn, FeatureOrder...),
		trainer,
	)
}

func trainingCallbacks(env *Env) []boosting.Callback {
	callbacks := []boosting.Callback{boosting.LogEvaluation(env.logger(), 10)}
	if env.EvalHistory != nil {
		callbacks = append(callbacks, boosting.RecordEvaluation(env.EvalHistory))
	}
	if env.EarlyStoppingRounds > 0 {
		callbacks = append(callbacks, boosting.EarlyStopping(env.EarlyStoppingRounds, boosting.TrainingLossMetric, 1e-6, env.logger()))
	}
	// The bar goes last so it sees a stop requested by early stopping.
	if env.Progress != nil {
		callbacks = append(callbacks, boosting.ProgressBar(env.Params.NumTrees, env.Progress))
	}
	return callbacks
}

// Train loads trainPath, fits the pipeline, saves the model to env.ModelPath
// and returns the in-memory model.
func Train(env *Env, trainPath string) (*pipeline.Model, error) {
	start := time.Now()
	defer env.Telemetry.ObserveStage("train", start)

	data, err := env.Loader.Load(trainPath)
	if err != nil {
		env.Telemetry.RecordError("train")
		return nil, err
	}

	env.EvalHistory = make(map[string][]float64)

	m, err := BuildPipeline(env).Fit(data)
	if err != nil {
		env.Telemetry.RecordError("train")
		return nil, err
	}
	if err := m.Save(env.ModelPath); err != nil {
		env.Telemetry.RecordError("save")
		return nil, err
	}

	trees := 0
	if ens := Ensemble(m); ens != nil {
		trees = len(ens.Trees)
		names := FeatureNames(m)
		for rank, fi := range ens.TopFeatures(3) {
			env.logger().Info("Feature importance",
				"rank", rank+1,
				"feature", featureName(names, fi.Feature),
				"gain", fi.Gain,
				"splits", fi.Splits,
			)
		}
	}
	env.Telemetry.RecordTraining(data.Rows(), trees)
	env.logger().Info("Model trained",
		log.PathKey, env.ModelPath,
		log.SamplesKey, data.Rows(),
		log.NumTreesKey, trees,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return m, nil
}

// Ensemble returns the boosted ensemble inside m, or nil if m has none.
func Ensemble(m *pipeline.Model) *boosting.Ensemble {
	for _, stage := range m.Stages() {
		if p, ok := stage.(*boosting.RegressionPredictor); ok {
			return p.Ensemble
		}
	}
	return nil
}

// FeatureNames names every slot of the feature vector, for example
// "VendorIdEncoded=VTS" or "TripDistance".
func FeatureNames(m *pipeline.Model) []string {
	encoders := map[string]*preprocessing.OneHotTransformer{}
	var concat *preprocessing.ConcatTransformer
	for _, stage := range m.Stages() {
		switch s := stage.(type) {
		case *preprocessing.OneHotTransformer:
			encoders[s.Output] = s
		case *preprocessing.ConcatTransformer:
			concat = s
		}
	}
	if concat == nil {
		return nil
	}
	var names []string
	for i, input := range concat.Inputs {
		if enc, ok := encoders[input]; ok {
			for _, v := range enc.Vocabulary {
				names = append(names, input+"="+v)
			}
			continue
		}
		for k := 0; k < concat.Widths[i]; k++ {
			if concat.Widths[i] == 1 {
				names = append(names, input)
			} else {
				names = append(names, fmt.Sprintf("%s[%d]", input, k))
			}
		}
	}
	return names
}

func featureName(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("f%d", i)
}
