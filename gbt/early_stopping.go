package gbt

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ValidationData is a held-out range used exclusively for the early-stopping
// decision. It never contributes gradients.
type ValidationData struct {
	X mat.Matrix
	Y mat.Matrix
}

// earlyStopper tracks the best validation loss and the rounds elapsed
// without improvement.
type earlyStopper struct {
	patience      int
	bestScore     float64
	bestIteration int
	stale         int
}

func newEarlyStopper(patience int) *earlyStopper {
	return &earlyStopper{
		patience:  patience,
		bestScore: math.Inf(1),
	}
}

// update records the loss of an iteration and reports whether training
// should stop.
func (es *earlyStopper) update(iteration int, loss float64) bool {
	if loss < es.bestScore {
		es.bestScore = loss
		es.bestIteration = iteration
		es.stale = 0
		return false
	}
	es.stale++
	return es.stale >= es.patience
}
