package search

import (
	"math/rand/v2"
)

// Trial is the completed record of one hyperparameter evaluation. Failed
// trials carry Err and a zero Score; they stay in the history so suggesters
// and the final reduction can see them, but never win.
type Trial struct {
	ID         int       `json:"id"`
	Config     Config    `json:"config"`
	Score      float64   `json:"score"`
	FoldScores []float64 `json:"fold_scores,omitempty"`
	// Failure preserves the error text across serialization.
	Failure string `json:"failure,omitempty"`
	Err     error  `json:"-"`
}

// Failed reports whether the trial produced no score.
func (t Trial) Failed() bool {
	return t.Err != nil || t.Failure != ""
}

// Suggester proposes the next configuration to evaluate. History contains
// every completed trial so far, successful and failed, in completion order.
// The rng is seeded per trial, so a suggester that draws only from it is
// reproducible for a fixed base seed.
type Suggester interface {
	Suggest(space Space, history []Trial, rng *rand.Rand) Config
}

// RandomSuggester draws uniformly from the space, ignoring history.
type RandomSuggester struct{}

// Suggest implements Suggester.
func (RandomSuggester) Suggest(space Space, _ []Trial, rng *rand.Rand) Config {
	return space.Sample(rng)
}

// successful filters the trials that produced a score.
func successful(history []Trial) []Trial {
	out := make([]Trial, 0, len(history))
	for _, t := range history {
		if !t.Failed() {
			out = append(out, t)
		}
	}
	return out
}
