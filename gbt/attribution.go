package gbt

import (
	"gonum.org/v1/gonum/mat"

	"github.com/demandcast/demandcast/pkg/errors"
	"github.com/demandcast/demandcast/pkg/parallel"
)

// Attribution holds per-row, per-feature signed contributions. For every row
// the additivity invariant holds exactly:
//
//	BaseValue + sum(Values[row, :]) == model prediction for that row
//
// BaseValue is the cover-weighted expected model output over the training
// distribution, so contributions read as shifts away from the typical
// prediction.
type Attribution struct {
	Values       *mat.Dense
	BaseValue    float64
	FeatureNames []string
}

// Contributions decomposes each prediction along the decision paths of the
// ensemble: at every split the change in the subtree's cover-weighted
// expected value is credited to the split feature, so the credits along a
// path sum to leaf value minus root value per tree.
func (m *Model) Contributions(X mat.Matrix) (*Attribution, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("gbt.Model", "Contributions")
	}
	rows, cols := X.Dims()
	if cols != m.NumFeatures() {
		return nil, errors.NewDimensionError("gbt.Model.Contributions", m.NumFeatures(), cols, 1)
	}

	values := mat.NewDense(rows, cols, nil)
	base := m.InitScore
	for t := range m.Trees {
		tree := &m.Trees[t]
		if len(tree.Nodes) > 0 {
			base += tree.Nodes[0].Value * tree.Shrinkage
		}
	}

	parallel.ChunkedWithThreshold(rows, parallelRowThreshold, func(start, end int) {
		x := make([]float64, cols)
		contribs := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(x, i, X)
			for j := range contribs {
				contribs[j] = 0
			}
			for t := range m.Trees {
				m.Trees[t].pathContributions(x, contribs)
			}
			values.SetRow(i, contribs)
		}
	})

	return &Attribution{
		Values:       values,
		BaseValue:    base,
		FeatureNames: append([]string(nil), m.FeatureNames...),
	}, nil
}

// pathContributions walks the sample's decision path and accumulates
// shrinkage-scaled value deltas per split feature.
func (t *Tree) pathContributions(x []float64, contribs []float64) {
	if len(t.Nodes) == 0 {
		return
	}
	idx := 0
	for {
		node := &t.Nodes[idx]
		if node.Leaf {
			return
		}
		next := node.RightChild
		if x[node.Feature] <= node.Threshold || isNaN(x[node.Feature]) {
			next = node.LeftChild
		}
		if next < 0 || next >= len(t.Nodes) {
			return
		}
		child := &t.Nodes[next]
		contribs[node.Feature] += (child.Value - node.Value) * t.Shrinkage
		idx = next
	}
}

func isNaN(v float64) bool {
	return v != v
}
