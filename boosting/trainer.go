// Package boosting implements histogram-based gradient boosted regression
// trees with leaf-wise growth.
//
// Training is deterministic for a given input and Params.Seed: bagging and
// feature sampling draw from a seeded PCG source, per-feature split search may
// run in parallel but its results are reduced in feature order, and ties are
// resolved towards the lower feature, bin and leaf index.
package boosting

import (
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/core/parallel"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
	"github.com/YuminosukeSato/taxifare/pkg/log"
)

// parallelFeatureThreshold is the feature count below which split search
// stays on the calling goroutine.
const parallelFeatureThreshold = 4

// Trainer fits an Ensemble.
type Trainer struct {
	params    Params
	callbacks []Callback
	logger    log.Logger
}

// NewTrainer creates a trainer. Call Params.Validate first, or let Fit do it.
func NewTrainer(params Params) *Trainer {
	return &Trainer{
		params: params,
		logger: log.GetLoggerWithName("boosting.trainer"),
	}
}

// WithCallbacks sets the callbacks for training.
func (t *Trainer) WithCallbacks(callbacks ...Callback) *Trainer {
	t.callbacks = callbacks
	return t
}

// WithLogger replaces the trainer's logger.
func (t *Trainer) WithLogger(logger log.Logger) *Trainer {
	t.logger = logger
	return t
}

// histBin accumulates gradient statistics for one bin.
type histBin struct {
	grad  float64
	hess  float64
	count int
}

// splitInfo describes the best split found for a leaf.
type splitInfo struct {
	feature   int
	bin       int
	threshold float64
	gain      float64
	leftGrad  float64
	leftHess  float64
	leftCount int
}

func (s splitInfo) valid() bool { return s.feature >= 0 }

var noSplit = splitInfo{feature: -1, gain: math.Inf(-1)}

// leafState is a leaf still eligible for splitting.
type leafState struct {
	node    int
	depth   int
	indices []int
	grad    float64
	hess    float64
	best    splitInfo
}

// fitState holds the per-fit working set.
type fitState struct {
	params    Params
	objective Objective
	X         *mat.Dense
	y         []float64
	data      *binnedData
	grad      []float64
	hess      []float64
	scores    []float64
	rng       *rand.Rand
	bag       []int
	features  []int

	importanceGain  []float64
	importanceSplit []int
}

// Fit trains an ensemble on X (n×d) and y (n).
func (t *Trainer) Fit(X *mat.Dense, y []float64) (ens *Ensemble, err error) {
	defer errors.Recover(&err, "boosting.Trainer.Fit")

	if err := t.params.Validate(); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.NewModelError("boosting.Trainer.Fit", "empty training data", errors.ErrEmptyData)
	}
	if len(y) != rows {
		return nil, errors.NewDimensionError("boosting.Trainer.Fit", rows, len(y), 0)
	}
	for i, v := range y {
		if err := errors.CheckScalar("boosting.Trainer.Fit", v, i); err != nil {
			return nil, err
		}
	}

	objective, err := NewObjective(t.params.Objective, t.params.HuberDelta)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	t.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.NumTreesKey, t.params.NumTrees,
		log.NumLeavesKey, t.params.NumLeaves,
		log.LearningRateKey, t.params.LearningRate,
		log.RandomSeedKey, t.params.Seed,
	)

	columns := make([][]float64, cols)
	for j := 0; j < cols; j++ {
		columns[j] = mat.Col(nil, j, X)
	}

	st := &fitState{
		params:          t.params,
		objective:       objective,
		X:               X,
		y:               y,
		data:            binFeatures(columns, t.params.MaxBin),
		grad:            make([]float64, rows),
		hess:            make([]float64, rows),
		scores:          make([]float64, rows),
		rng:             rand.New(rand.NewPCG(t.params.Seed, t.params.Seed^0x9e3779b97f4a7c15)),
		importanceGain:  make([]float64, cols),
		importanceSplit: make([]int, cols),
	}

	ens = &Ensemble{
		InitScore:   objective.InitScore(y),
		NumFeatures: cols,
		Objective:   objective.Name(),
	}
	result := ens
	for i := range st.scores {
		st.scores[i] = ens.InitScore
	}

	callbacks := NewCallbackList(t.callbacks...)
	defer func() { callbacks.Finish(len(result.Trees)) }()
	for iter := 0; iter < t.params.NumTrees; iter++ {
		st.computeGradients()
		st.sampleRows(iter)
		st.sampleFeatures()

		tree := st.growTree()
		if len(tree.Nodes) == 1 {
			t.logger.Debug("No further split improves the loss", log.IterationKey, iter)
			break
		}
		ens.Trees = append(ens.Trees, tree)
		for i := 0; i < rows; i++ {
			st.scores[i] += tree.Predict(X.RawRowView(i))
		}
		if err := errors.CheckNumericalStability("boosting.Trainer.Fit", st.scores, iter); err != nil {
			return nil, err
		}

		results := map[string]float64{TrainingLossMetric: st.loss()}
		if err := callbacks.AfterIteration(iter, len(ens.Trees), results); err != nil {
			return nil, errors.Wrapf(err, "callback at iteration %d", iter)
		}
		if callbacks.ShouldStop() {
			t.logger.Info("Training stopped by callback", log.IterationKey, iter)
			break
		}
	}

	ens.ImportanceGain = st.importanceGain
	ens.ImportanceSplit = st.importanceSplit

	t.logger.Info("Training finished",
		log.NumTreesKey, len(ens.Trees),
		log.LossKey, st.loss(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return ens, nil
}

func (st *fitState) computeGradients() {
	for i, target := range st.y {
		st.grad[i] = st.objective.Gradient(st.scores[i], target)
		st.hess[i] = st.objective.Hessian(st.scores[i], target)
	}
}

func (st *fitState) loss() float64 {
	sum := 0.0
	for i, target := range st.y {
		sum += st.objective.Loss(st.scores[i], target)
	}
	return sum / float64(len(st.y))
}

// sampleRows redraws the bag every BaggingFreq iterations. Without bagging
// every row is used.
func (st *fitState) sampleRows(iter int) {
	n := len(st.y)
	p := st.params
	if p.BaggingFraction >= 1 || p.BaggingFreq == 0 {
		if len(st.bag) != n {
			st.bag = make([]int, n)
			for i := range st.bag {
				st.bag[i] = i
			}
		}
		return
	}
	if st.bag != nil && iter%p.BaggingFreq != 0 {
		return
	}
	k := int(math.Ceil(p.BaggingFraction * float64(n)))
	st.bag = st.rng.Perm(n)[:k]
	slices.Sort(st.bag)
}

func (st *fitState) sampleFeatures() {
	d := len(st.data.mappers)
	if st.params.FeatureFraction >= 1 {
		if len(st.features) != d {
			st.features = make([]int, d)
			for j := range st.features {
				st.features[j] = j
			}
		}
		return
	}
	k := int(math.Ceil(st.params.FeatureFraction * float64(d)))
	st.features = st.rng.Perm(d)[:k]
	slices.Sort(st.features)
}

// growTree grows one tree leaf-wise: the leaf with the largest gain is split
// until NumLeaves is reached or no leaf can be split.
func (st *fitState) growTree() Tree {
	p := st.params
	tree := Tree{ShrinkageRate: p.LearningRate}

	root := st.newLeafState(&tree, st.bag, 0)
	leaves := []*leafState{root}

	for len(leaves) < p.NumLeaves {
		bestLeaf := -1
		for i, l := range leaves {
			if !l.best.valid() || l.best.gain <= p.MinGainToSplit {
				continue
			}
			if bestLeaf < 0 || l.best.gain > leaves[bestLeaf].best.gain {
				bestLeaf = i
			}
		}
		if bestLeaf < 0 {
			break
		}

		l := leaves[bestLeaf]
		s := l.best
		bins := st.data.bins[s.feature]
		left := make([]int, 0, s.leftCount)
		right := make([]int, 0, len(l.indices)-s.leftCount)
		for _, idx := range l.indices {
			if int(bins[idx]) <= s.bin {
				left = append(left, idx)
			} else {
				right = append(right, idx)
			}
		}

		st.importanceGain[s.feature] += s.gain
		st.importanceSplit[s.feature]++

		leftLeaf := st.newLeafState(&tree, left, l.depth+1)
		rightLeaf := st.newLeafState(&tree, right, l.depth+1)
		node := &tree.Nodes[l.node]
		node.LeftChild = leftLeaf.node
		node.RightChild = rightLeaf.node
		node.SplitFeature = s.feature
		node.Threshold = s.threshold
		node.Gain = s.gain

		leaves[bestLeaf] = leftLeaf
		leaves = slices.Insert(leaves, bestLeaf+1, rightLeaf)
	}
	return tree
}

// newLeafState appends a leaf node for indices and finds its best split.
func (st *fitState) newLeafState(tree *Tree, indices []int, depth int) *leafState {
	l := &leafState{indices: indices, depth: depth, best: noSplit}
	for _, idx := range indices {
		l.grad += st.grad[idx]
		l.hess += st.hess[idx]
	}
	l.node = len(tree.Nodes)
	tree.Nodes = append(tree.Nodes, newLeaf(st.leafValue(l.grad, l.hess), len(indices)))

	p := st.params
	if len(indices) < 2*p.MinDataInLeaf || (p.MaxDepth > 0 && depth >= p.MaxDepth) {
		return l
	}
	l.best = st.findBestSplit(l)
	return l
}

func (st *fitState) leafValue(grad, hess float64) float64 {
	return -grad / (hess + st.params.Lambda + 1e-10)
}

func (st *fitState) gain(leftGrad, leftHess, rightGrad, rightHess, grad, hess float64) float64 {
	lambda := st.params.Lambda
	return 0.5 * (leftGrad*leftGrad/(leftHess+lambda) +
		rightGrad*rightGrad/(rightHess+lambda) -
		grad*grad/(hess+lambda))
}

// findBestSplit scans every sampled feature. Features are searched in
// parallel; the reduction walks them in order so ties go to the lowest index.
func (st *fitState) findBestSplit(l *leafState) splitInfo {
	candidates := make([]splitInfo, len(st.features))
	parallel.ParallelizeWithThreshold(len(st.features), parallelFeatureThreshold, st.params.NumThreads, func(start, end int) {
		for k := start; k < end; k++ {
			candidates[k] = st.findBestSplitForFeature(l, st.features[k])
		}
	})

	best := noSplit
	for _, c := range candidates {
		if c.valid() && c.gain > best.gain {
			best = c
		}
	}
	return best
}

func (st *fitState) findBestSplitForFeature(l *leafState, feature int) splitInfo {
	mapper := st.data.mappers[feature]
	nb := mapper.NumBins()
	if nb < 2 {
		return noSplit
	}
	hist := make([]histBin, nb)
	bins := st.data.bins[feature]
	for _, idx := range l.indices {
		h := &hist[bins[idx]]
		h.grad += st.grad[idx]
		h.hess += st.hess[idx]
		h.count++
	}

	p := st.params
	total := len(l.indices)
	best := noSplit
	var leftGrad, leftHess float64
	leftCount := 0
	for b := 0; b < nb-1; b++ {
		leftGrad += hist[b].grad
		leftHess += hist[b].hess
		leftCount += hist[b].count
		if hist[b].count == 0 {
			continue
		}
		rightCount := total - leftCount
		if leftCount < p.MinDataInLeaf {
			continue
		}
		if rightCount < p.MinDataInLeaf {
			break
		}
		rightGrad := l.grad - leftGrad
		rightHess := l.hess - leftHess
		if leftHess < p.MinSumHessian || rightHess < p.MinSumHessian {
			continue
		}
		g := st.gain(leftGrad, leftHess, rightGrad, rightHess, l.grad, l.hess)
		if g > best.gain {
			best = splitInfo{
				feature:   feature,
				bin:       b,
				threshold: mapper.Threshold(b),
				gain:      g,
				leftGrad:  leftGrad,
				leftHess:  leftHess,
				leftCount: leftCount,
			}
		}
	}
	return best
}
