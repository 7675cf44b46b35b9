package boosting

import (
	"bytes"
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/core/frame"
	"github.com/YuminosukeSato/taxifare/core/model"
)

// fareData generates rows whose target is roughly 5 + 2.8*distance with a
// surcharge for the first one-hot slot.
func fareData(n int, seed uint64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewPCG(seed, 1))
	X := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		dist := rng.Float64() * 10
		cash := float64(rng.IntN(2))
		passengers := float64(1 + rng.IntN(4))
		X.Set(i, 0, cash)
		X.Set(i, 1, passengers)
		X.Set(i, 2, dist)
		y[i] = 5 + 2.8*dist + 1.5*cash + rng.NormFloat64()*0.3
	}
	return X, y
}

func TestBinMapper(t *testing.T) {
	m := newBinMapper([]float64{3, 1, 2, 2, 1}, 255)
	require.Equal(t, 3, m.NumBins())
	assert.Equal(t, 1.5, m.Upper[0])
	assert.Equal(t, 2.5, m.Upper[1])
	assert.True(t, math.IsInf(m.Upper[2], 1))

	assert.Equal(t, 0, m.Bin(1))
	assert.Equal(t, 0, m.Bin(1.5), "value on the bound stays left")
	assert.Equal(t, 1, m.Bin(2))
	assert.Equal(t, 2, m.Bin(100))

	constant := newBinMapper([]float64{4, 4, 4}, 255)
	assert.Equal(t, 1, constant.NumBins())
}

func TestBinMapperCapsBinCount(t *testing.T) {
	values := make([]float64, 5000)
	for i := range values {
		values[i] = float64(i)
	}
	m := newBinMapper(values, 16)
	assert.LessOrEqual(t, m.NumBins(), 16)
	assert.GreaterOrEqual(t, m.NumBins(), 12)
	for i := 1; i < len(m.Upper); i++ {
		assert.Less(t, m.Upper[i-1], m.Upper[i])
	}
}

func TestTreePredict(t *testing.T) {
	tree := Tree{
		ShrinkageRate: 0.5,
		Nodes: []Node{
			{LeftChild: 1, RightChild: 2, SplitFeature: 0, Threshold: 2.5},
			newLeaf(-4, 3),
			newLeaf(6, 3),
		},
	}
	assert.Equal(t, -2.0, tree.Predict([]float64{2.5}))
	assert.Equal(t, 3.0, tree.Predict([]float64{2.6}))
	assert.Equal(t, 2, tree.NumLeaves())
	assert.Equal(t, 1, tree.Depth())
}

func TestTrainerReducesLoss(t *testing.T) {
	X, y := fareData(600, 7)
	history := map[string][]float64{}

	params := DefaultParams()
	params.NumTrees = 30
	ens, err := NewTrainer(params).WithCallbacks(RecordEvaluation(history)).Fit(X, y)
	require.NoError(t, err)

	losses := history[TrainingLossMetric]
	require.Len(t, losses, len(ens.Trees))
	assert.Less(t, losses[len(losses)-1], losses[0]/10)
	for _, tree := range ens.Trees {
		assert.LessOrEqual(t, tree.NumLeaves(), params.NumLeaves)
	}

	pred := ens.Predict([]float64{0, 1, 3.75})
	assert.InDelta(t, 5+2.8*3.75, pred, 1.5)

	top := ens.TopFeatures(1)
	require.Len(t, top, 1)
	assert.Equal(t, 2, top[0].Feature, "distance carries most of the signal")
}

func TestTrainerIsDeterministic(t *testing.T) {
	X, y := fareData(400, 3)
	params := DefaultParams()
	params.NumTrees = 20
	params.BaggingFraction = 0.7
	params.BaggingFreq = 1
	params.FeatureFraction = 0.67
	params.Seed = 42
	params.NumThreads = 4

	a, err := NewTrainer(params).Fit(X, y)
	require.NoError(t, err)
	b, err := NewTrainer(params).Fit(X, y)
	require.NoError(t, err)

	pa, err := a.PredictDense(X)
	require.NoError(t, err)
	pb, err := b.PredictDense(X)
	require.NoError(t, err)
	for i := range pa {
		require.Equal(t, math.Float64bits(pa[i]), math.Float64bits(pb[i]), "row %d", i)
	}

	params.Seed = 43
	c, err := NewTrainer(params).Fit(X, y)
	require.NoError(t, err)
	pc, err := c.PredictDense(X)
	require.NoError(t, err)
	assert.NotEqual(t, pa, pc, "a different seed draws different bags")
}

func TestTrainerRespectsMinDataInLeaf(t *testing.T) {
	X, y := fareData(100, 11)
	params := DefaultParams()
	params.NumTrees = 5
	params.MinDataInLeaf = 30
	ens, err := NewTrainer(params).Fit(X, y)
	require.NoError(t, err)
	for _, tree := range ens.Trees {
		for _, n := range tree.Nodes {
			if n.IsLeaf() {
				assert.GreaterOrEqual(t, n.LeafCount, 30)
			}
		}
	}
}

func TestEarlyStopping(t *testing.T) {
	X := mat.NewDense(40, 1, nil)
	y := make([]float64, 40)
	for i := 0; i < 40; i++ {
		X.Set(i, 0, float64(i%2))
		y[i] = float64(i % 2)
	}
	params := DefaultParams()
	params.NumTrees = 100
	params.MinDataInLeaf = 1
	params.LearningRate = 1

	ens, err := NewTrainer(params).WithCallbacks(EarlyStopping(3, TrainingLossMetric, 1e-12, nil)).Fit(X, y)
	require.NoError(t, err)
	assert.Less(t, len(ens.Trees), 100)
}

func TestProgressBarCallback(t *testing.T) {
	X, y := fareData(50, 5)
	params := DefaultParams()
	params.NumTrees = 5
	params.MinDataInLeaf = 2

	var buf bytes.Buffer
	ens, err := NewTrainer(params).WithCallbacks(ProgressBar(params.NumTrees, &buf)).Fit(X, y)
	require.NoError(t, err)
	assert.NotEmpty(t, ens.Trees)
}

// finalRecorder counts iteration calls and final calls.
type finalRecorder struct {
	iterations int
	finals     int
}

func (r *finalRecorder) callback(env *CallbackEnv) error {
	if env.Final {
		r.finals++
		return nil
	}
	r.iterations++
	return nil
}

func TestCallbacksGetFinalCall(t *testing.T) {
	tests := []struct {
		name   string
		X      *mat.Dense
		y      []float64
		params func(*Params)
	}{
		{
			name: "all trees built",
			params: func(p *Params) {
				p.NumTrees = 4
			},
		},
		{
			// constant target: the first tree has no split and training ends
			// before any iteration callback runs
			name: "no split possible",
			X:    mat.NewDense(30, 1, nil),
			y:    make([]float64, 30),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			X, y := tt.X, tt.y
			if X == nil {
				X, y = fareData(100, 9)
			}
			params := DefaultParams()
			if tt.params != nil {
				tt.params(&params)
			}

			rec := &finalRecorder{}
			var buf bytes.Buffer
			ens, err := NewTrainer(params).
				WithCallbacks(rec.callback, ProgressBar(params.NumTrees, &buf)).
				Fit(X, y)
			require.NoError(t, err)
			assert.Equal(t, len(ens.Trees), rec.iterations)
			assert.Equal(t, 1, rec.finals)
		})
	}
}

func TestCallbackListFinishOnce(t *testing.T) {
	rec := &finalRecorder{}
	var buf bytes.Buffer
	list := NewCallbackList(rec.callback, ProgressBar(10, &buf))
	require.NoError(t, list.AfterIteration(0, 1, map[string]float64{TrainingLossMetric: 1}))
	list.Finish(1)
	list.Finish(1)
	assert.Equal(t, 1, rec.iterations)
	assert.Equal(t, 1, rec.finals)
}

func TestPredictDenseParallelMatchesSequential(t *testing.T) {
	X, y := fareData(300, 13)
	params := DefaultParams()
	params.NumTrees = 10
	ens, err := NewTrainer(params).Fit(X, y)
	require.NoError(t, err)

	big, _ := fareData(parallelRowThreshold*3, 14)
	got, err := ens.PredictDense(big)
	require.NoError(t, err)
	rows, _ := big.Dims()
	for i := 0; i < rows; i++ {
		require.Equal(t, ens.Predict(big.RawRowView(i)), got[i], "row %d", i)
	}
}

func TestObjectives(t *testing.T) {
	for _, name := range []string{ObjectiveL2, ObjectiveL1, ObjectiveHuber} {
		t.Run(name, func(t *testing.T) {
			obj, err := NewObjective(name, 1.0)
			require.NoError(t, err)
			assert.Equal(t, name, obj.Name())
			assert.Equal(t, 0.0, obj.Loss(3, 3))
			assert.Greater(t, obj.Gradient(4, 3), 0.0)
			assert.Less(t, obj.Gradient(2, 3), 0.0)

			X, y := fareData(200, 9)
			params := DefaultParams()
			params.NumTrees = 10
			params.Objective = name
			ens, err := NewTrainer(params).Fit(X, y)
			require.NoError(t, err)
			assert.NotEmpty(t, ens.Trees)
		})
	}
	assert.Equal(t, 2.5, L1Objective{}.InitScore([]float64{4, 1, 2, 3}))

	_, err := NewObjective("poisson", 1)
	assert.Error(t, err)
	_, err = NewObjective(ObjectiveHuber, 0)
	assert.Error(t, err)
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"no trees", func(p *Params) { p.NumTrees = 0 }},
		{"one leaf", func(p *Params) { p.NumLeaves = 1 }},
		{"zero learning rate", func(p *Params) { p.LearningRate = 0 }},
		{"bagging fraction", func(p *Params) { p.BaggingFraction = 1.5 }},
		{"max bin", func(p *Params) { p.MaxBin = 300 }},
		{"objective", func(p *Params) { p.Objective = "nope" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestTrainerRejectsBadInput(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	_, err := NewTrainer(DefaultParams()).Fit(X, []float64{1, 2})
	assert.Error(t, err)

	_, err = NewTrainer(DefaultParams()).Fit(X, []float64{1, math.NaN(), 3})
	assert.Error(t, err)
}

func TestRegressionPredictorRoundTrip(t *testing.T) {
	X, y := fareData(300, 21)
	f, err := frame.New(
		frame.ScalarColumn(DefaultLabelColumn, y),
		frame.VectorColumn(DefaultFeatureColumn, X),
	)
	require.NoError(t, err)

	params := DefaultParams()
	params.NumTrees = 15
	stage, err := NewRegressionTrainer(params).Fit(f)
	require.NoError(t, err)

	scored, err := stage.Transform(f)
	require.NoError(t, err)
	before, err := scored.ColumnOf(DefaultScoreColumn, frame.Scalar)
	require.NoError(t, err)

	reg := model.NewRegistry()
	require.NoError(t, Register(reg))
	path := filepath.Join(t.TempDir(), "Model.bin")
	require.NoError(t, model.Save(path, []model.Stage{stage}))
	loaded, err := model.Load(path, reg)
	require.NoError(t, err)

	rescored, err := loaded[0].Transform(f)
	require.NoError(t, err)
	after, err := rescored.ColumnOf(DefaultScoreColumn, frame.Scalar)
	require.NoError(t, err)
	assert.Equal(t, before.Scalars(), after.Scalars())

	wrong, err := frame.New(frame.VectorColumn(DefaultFeatureColumn, mat.NewDense(1, 2, []float64{1, 2})))
	require.NoError(t, err)
	_, err = loaded[0].Transform(wrong)
	assert.Error(t, err, "feature width must match the trained ensemble")
}

func TestValidateTreeRejectsCycles(t *testing.T) {
	bad := Tree{Nodes: []Node{{LeftChild: 0, RightChild: 0, SplitFeature: 0}}}
	assert.Error(t, validateTree(&bad, 1))

	outOfRange := Tree{Nodes: []Node{{LeftChild: 1, RightChild: 2, SplitFeature: 5}, newLeaf(0, 1), newLeaf(0, 1)}}
	assert.Error(t, validateTree(&outOfRange, 3))
}

func TestRegressionPredictorBinaryEncoding(t *testing.T) {
	X, y := fareData(200, 5)
	ens, err := NewTrainer(DefaultParams()).Fit(X, y)
	require.NoError(t, err)
	require.NotEmpty(t, ens.Trees)

	p := &RegressionPredictor{FeatureColumn: "Features", ScoreColumn: "Score", Ensemble: ens}
	data, err := p.MarshalBinary()
	require.NoError(t, err)

	var decoded RegressionPredictor
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, p, &decoded)

	empty, err := (&RegressionPredictor{FeatureColumn: "Features"}).MarshalBinary()
	require.NoError(t, err)
	assert.Error(t, (&RegressionPredictor{}).UnmarshalBinary(empty))
}
