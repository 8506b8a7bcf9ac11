package gbt

import (
	"math"
	"math/rand/v2"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/demandcast/demandcast/pkg/errors"
	"github.com/demandcast/demandcast/pkg/log"
)

// Trainer runs the boosting loop. One trainer instance owns one fit; it is
// not safe for concurrent use, but independent trainers never share state so
// hyperparameter trials can run them in parallel.
type Trainer struct {
	params       Params
	featureNames []string

	X *mat.Dense
	y []float64

	preds     []float64
	gradients []float64
	hessians  []float64

	trees         []Tree
	internalNodes int
	rng           *rand.Rand

	bestScore     float64
	bestIteration int
	fitted        bool
}

// NewTrainer creates a trainer with defaults applied.
func NewTrainer(params Params) *Trainer {
	return &Trainer{params: params.withDefaults()}
}

// WithFeatureNames records the feature schema the model will carry. The
// count must match the design matrix width at fit time.
func (t *Trainer) WithFeatureNames(names []string) *Trainer {
	t.featureNames = append([]string(nil), names...)
	return t
}

// Fit trains on the full data with no early stopping.
func (t *Trainer) Fit(X, y mat.Matrix) error {
	return t.FitWithValidation(X, y, nil)
}

// FitWithValidation trains with early stopping: when the validation loss has
// not improved for the configured patience, training stops and the ensemble
// is truncated to the best iteration. The validation set influences only the
// stopping decision, never the gradients.
func (t *Trainer) FitWithValidation(X, y mat.Matrix, val *ValidationData) error {
	if err := t.params.validate(); err != nil {
		return err
	}

	xDense := toDense(X)
	rows, cols := xDense.Dims()
	yRows, _ := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.Wrap(errors.ErrEmptyData, "gbt: empty design matrix")
	}
	if yRows != rows {
		return errors.NewDimensionError("gbt.Trainer.Fit", rows, yRows, 0)
	}
	if t.featureNames != nil && len(t.featureNames) != cols {
		return errors.NewSchemaError("gbt.Trainer.Fit", t.featureNames, nil,
			"feature name count does not match design matrix width")
	}

	t.X = xDense
	t.y = make([]float64, rows)
	for i := 0; i < rows; i++ {
		t.y[i] = y.At(i, 0)
	}

	// L2 objective: the optimal constant is the target mean.
	initScore := stat.Mean(t.y, nil)
	t.trees = nil
	t.preds = make([]float64, rows)
	for i := range t.preds {
		t.preds[i] = initScore
	}
	t.gradients = make([]float64, rows)
	t.hessians = make([]float64, rows)
	t.rng = rand.New(rand.NewPCG(uint64(t.params.Seed), uint64(t.params.Seed)))

	var (
		valX     *mat.Dense
		valY     []float64
		valPreds []float64
		stopper  *earlyStopper
		logger   = log.GetLoggerWithName("gbt.trainer")
	)
	if val != nil {
		valX = toDense(val.X)
		vr, vc := valX.Dims()
		if vc != cols {
			return errors.NewDimensionError("gbt.Trainer.FitWithValidation", cols, vc, 1)
		}
		valY = make([]float64, vr)
		valPreds = make([]float64, vr)
		for i := 0; i < vr; i++ {
			valY[i] = val.Y.At(i, 0)
			valPreds[i] = initScore
		}
		stopper = newEarlyStopper(t.params.EarlyStopping)
	}

	allRows := make([]int, rows)
	for i := range allRows {
		allRows[i] = i
	}
	bag := allRows

	for iter := 0; iter < t.params.NumIterations; iter++ {
		bag = t.resampleBag(iter, allRows, bag)
		features := t.sampleFeatures(cols)

		for _, i := range bag {
			t.gradients[i] = t.preds[i] - t.y[i]
			t.hessians[i] = 1.0
		}

		tree := t.buildTree(bag, features)
		t.trees = append(t.trees, tree)

		// Update cached predictions for the whole training set; rows outside
		// the bag still receive the new tree's output.
		x := make([]float64, cols)
		for i := 0; i < rows; i++ {
			mat.Row(x, i, t.X)
			t.preds[i] += tree.Predict(x)
		}

		if stopper != nil {
			for i := range valPreds {
				mat.Row(x, i, valX)
				valPreds[i] += tree.Predict(x)
			}
			valLoss := meanSquaredError(valY, valPreds)
			if stopper.update(iter, valLoss) {
				t.trees = t.trees[:stopper.bestIteration+1]
				t.bestScore = stopper.bestScore
				t.bestIteration = stopper.bestIteration
				logger.Debug("early stopping",
					log.IterationKey, iter,
					"best_iteration", stopper.bestIteration,
					log.ScoreKey, stopper.bestScore,
				)
				break
			}
		}
	}

	t.fitted = true
	return nil
}

// Model returns the immutable trained model. It fails if Fit has not
// completed successfully, so a partial model can never escape the trainer.
func (t *Trainer) Model() (*Model, error) {
	if !t.fitted {
		return nil, errors.NewNotFittedError("gbt.Trainer", "Model")
	}
	names := t.featureNames
	if names == nil {
		_, cols := t.X.Dims()
		names = make([]string, cols)
		for j := range names {
			names[j] = "f" + strconv.Itoa(j)
		}
	}
	return &Model{
		FeatureNames: append([]string(nil), names...),
		Params:       t.params,
		InitScore:    stat.Mean(t.y, nil),
		Trees:        append([]Tree(nil), t.trees...),
	}, nil
}

// resampleBag redraws the bagging subset every BaggingFreq iterations.
// Bagging is inactive when the fraction is 1 or the frequency is 0.
func (t *Trainer) resampleBag(iter int, allRows, current []int) []int {
	if t.params.BaggingFraction >= 1 || t.params.BaggingFreq <= 0 {
		return allRows
	}
	if iter%t.params.BaggingFreq != 0 && current != nil && len(current) != len(allRows) {
		return current
	}
	n := int(math.Ceil(t.params.BaggingFraction * float64(len(allRows))))
	if n < 1 {
		n = 1
	}
	perm := t.rng.Perm(len(allRows))[:n]
	sort.Ints(perm)
	return perm
}

// sampleFeatures draws the per-tree feature subset.
func (t *Trainer) sampleFeatures(cols int) []int {
	if t.params.FeatureFraction >= 1 {
		features := make([]int, cols)
		for j := range features {
			features[j] = j
		}
		return features
	}
	n := int(math.Ceil(t.params.FeatureFraction * float64(cols)))
	if n < 1 {
		n = 1
	}
	perm := t.rng.Perm(cols)[:n]
	sort.Ints(perm)
	return perm
}

type splitInfo struct {
	feature   int
	threshold float64
	gain      float64
	valid     bool
}

// buildTree grows one regression tree on the bagged rows.
func (t *Trainer) buildTree(indices, features []int) Tree {
	tree := Tree{Shrinkage: t.params.LearningRate}
	t.internalNodes = 0
	t.buildNode(&tree, indices, features)
	return tree
}

// buildNode appends the subtree rooted at the given rows and returns its
// node index. Internal nodes keep the cover value so attribution can read
// the expected output at every step of a decision path.
func (t *Trainer) buildNode(tree *Tree, indices, features []int) int {
	nodeIdx := len(tree.Nodes)
	value := t.leafValue(indices)
	tree.Nodes = append(tree.Nodes, Node{
		ID:         nodeIdx,
		Leaf:       true,
		LeftChild:  -1,
		RightChild: -1,
		Value:      value,
		Count:      len(indices),
	})

	// A binary tree with NumLeaves leaves has NumLeaves-1 internal nodes.
	if len(indices) < 2*t.params.MinDataInLeaf || t.internalNodes >= t.params.NumLeaves-1 {
		return nodeIdx
	}

	split := t.findBestSplit(indices, features)
	if !split.valid || split.gain <= t.params.MinGainToSplit {
		return nodeIdx
	}

	t.internalNodes++
	left, right := t.partition(indices, split)

	tree.Nodes[nodeIdx].Leaf = false
	tree.Nodes[nodeIdx].Feature = split.feature
	tree.Nodes[nodeIdx].Threshold = split.threshold
	tree.Nodes[nodeIdx].Gain = split.gain

	leftIdx := t.buildNode(tree, left, features)
	rightIdx := t.buildNode(tree, right, features)
	tree.Nodes[nodeIdx].LeftChild = leftIdx
	tree.Nodes[nodeIdx].RightChild = rightIdx
	return nodeIdx
}

// findBestSplit scans every candidate feature with prefix sums over the
// rows sorted by feature value.
func (t *Trainer) findBestSplit(indices, features []int) splitInfo {
	var totalGrad, totalHess float64
	for _, i := range indices {
		totalGrad += t.gradients[i]
		totalHess += t.hessians[i]
	}

	best := splitInfo{gain: math.Inf(-1)}
	order := make([]int, len(indices))

	for _, j := range features {
		copy(order, indices)
		feature := j
		sort.Slice(order, func(a, b int) bool {
			va, vb := t.X.At(order[a], feature), t.X.At(order[b], feature)
			if va != vb {
				return va < vb
			}
			return order[a] < order[b]
		})

		var leftGrad, leftHess float64
		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			leftGrad += t.gradients[i]
			leftHess += t.hessians[i]

			v, next := t.X.At(i, feature), t.X.At(order[pos+1], feature)
			if v == next {
				continue
			}
			leftCount := pos + 1
			rightCount := len(order) - leftCount
			if leftCount < t.params.MinDataInLeaf || rightCount < t.params.MinDataInLeaf {
				continue
			}

			gain := t.splitGain(leftGrad, leftHess, totalGrad-leftGrad, totalHess-leftHess, totalGrad, totalHess)
			if gain > best.gain {
				best = splitInfo{
					feature:   feature,
					threshold: (v + next) / 2,
					gain:      gain,
					valid:     true,
				}
			}
		}
	}

	return best
}

// splitGain is the standard variance-gain formula with L2 regularization.
func (t *Trainer) splitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess float64) float64 {
	lambda := t.params.Lambda
	leftScore := (leftGrad * leftGrad) / (leftHess + lambda)
	rightScore := (rightGrad * rightGrad) / (rightHess + lambda)
	totalScore := (totalGrad * totalGrad) / (totalHess + lambda)
	return 0.5 * (leftScore + rightScore - totalScore)
}

func (t *Trainer) partition(indices []int, split splitInfo) ([]int, []int) {
	var left, right []int
	for _, i := range indices {
		if t.X.At(i, split.feature) <= split.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// leafValue is the regularized Newton step for the rows in a node.
func (t *Trainer) leafValue(indices []int) float64 {
	var sumGrad, sumHess float64
	for _, i := range indices {
		sumGrad += t.gradients[i]
		sumHess += t.hessians[i]
	}
	const epsilon = 1e-10
	if math.Abs(sumHess) < epsilon {
		sumHess = epsilon
	}
	return -sumGrad / (sumHess + t.params.Lambda)
}

func toDense(m mat.Matrix) *mat.Dense {
	if d, ok := m.(*mat.Dense); ok {
		return d
	}
	rows, cols := m.Dims()
	d := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d.Set(i, j, m.At(i, j))
		}
	}
	return d
}

func meanSquaredError(y, pred []float64) float64 {
	var sum float64
	for i := range y {
		d := y[i] - pred[i]
		sum += d * d
	}
	return sum / float64(len(y))
}
