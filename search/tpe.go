package search

import (
	"math"
	"math/rand/v2"
	"sort"
)

// TPESuggester is a tree-structured Parzen estimator. Completed trials are
// split into a "good" set (the best gamma fraction by score, lower is
// better) and a "bad" set; each set is modeled per dimension as a mixture of
// Gaussians centered on the observed points. Candidates are sampled from the
// good model and ranked by the density ratio good/bad, steering the search
// toward regions that historically scored well without abandoning
// exploration.
type TPESuggester struct {
	// Gamma is the quantile that separates good from bad trials.
	Gamma float64
	// StartupTrials is how many initial trials are drawn uniformly before
	// the estimator has enough history to be useful.
	StartupTrials int
	// Candidates is how many samples are drawn from the good model per
	// suggestion; the best-ranked one is returned.
	Candidates int
}

// NewTPESuggester returns a suggester with the conventional defaults.
func NewTPESuggester() *TPESuggester {
	return &TPESuggester{
		Gamma:         0.25,
		StartupTrials: 5,
		Candidates:    24,
	}
}

// Suggest implements Suggester.
func (s *TPESuggester) Suggest(space Space, history []Trial, rng *rand.Rand) Config {
	ok := successful(history)
	if len(ok) < s.StartupTrials {
		return space.Sample(rng)
	}

	sorted := append([]Trial(nil), ok...)
	sort.Slice(sorted, func(a, b int) bool {
		if sorted[a].Score != sorted[b].Score {
			return sorted[a].Score < sorted[b].Score
		}
		return sorted[a].ID < sorted[b].ID
	})
	nGood := int(math.Ceil(s.Gamma * float64(len(sorted))))
	if nGood < 1 {
		nGood = 1
	}
	good, bad := sorted[:nGood], sorted[nGood:]
	if len(bad) == 0 {
		return space.Sample(rng)
	}

	dims := space.dimensions()
	goodPts := transformTrials(space, dims, good)
	badPts := transformTrials(space, dims, bad)
	bandwidths := kdeBandwidths(dims, len(goodPts))

	bestScore := math.Inf(-1)
	var best []float64
	for c := 0; c < s.Candidates; c++ {
		cand := sampleFromMixture(dims, goodPts, bandwidths, rng)
		score := logDensity(cand, goodPts, bandwidths) - logDensity(cand, badPts, bandwidths)
		if score > bestScore {
			bestScore = score
			best = cand
		}
	}

	raw := make([]float64, len(dims))
	for i, d := range dims {
		raw[i] = d.restore(best[i])
	}
	return space.config(raw)
}

// transformTrials maps trial configs into the search scale.
func transformTrials(space Space, dims []dimension, trials []Trial) [][]float64 {
	pts := make([][]float64, len(trials))
	for i, t := range trials {
		raw := space.vector(t.Config)
		v := make([]float64, len(dims))
		for j, d := range dims {
			v[j] = d.transform(raw[j])
		}
		pts[i] = v
	}
	return pts
}

// kdeBandwidths uses a fixed fraction of each dimension's span, shrinking
// with the number of observations.
func kdeBandwidths(dims []dimension, n int) []float64 {
	bw := make([]float64, len(dims))
	for i, d := range dims {
		span := d.transform(d.hi) - d.transform(d.lo)
		if span <= 0 {
			span = 1
		}
		bw[i] = span / math.Sqrt(float64(n)+1)
	}
	return bw
}

// sampleFromMixture picks a random kernel center per dimension and perturbs
// it, clamping to the search-scale bounds.
func sampleFromMixture(dims []dimension, pts [][]float64, bw []float64, rng *rand.Rand) []float64 {
	v := make([]float64, len(dims))
	for j, d := range dims {
		center := pts[rng.IntN(len(pts))][j]
		x := center + rng.NormFloat64()*bw[j]
		lo, hi := d.transform(d.lo), d.transform(d.hi)
		if x < lo {
			x = lo
		}
		if x > hi {
			x = hi
		}
		v[j] = x
	}
	return v
}

// logDensity evaluates the log of the product over dimensions of the
// Gaussian mixture density at x.
func logDensity(x []float64, pts [][]float64, bw []float64) float64 {
	var total float64
	for j := range x {
		var sum float64
		for _, p := range pts {
			z := (x[j] - p[j]) / bw[j]
			sum += math.Exp(-0.5 * z * z)
		}
		// Normalization constants shared by the good and bad models cancel
		// in the ratio; only the mixture size matters.
		total += math.Log(sum/float64(len(pts)) + 1e-300)
	}
	return total
}
