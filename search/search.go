package search

import (
	"context"
	"math/rand/v2"
	"runtime"
	"sort"
	"sync"

	"github.com/demandcast/demandcast/pkg/errors"
	"github.com/demandcast/demandcast/pkg/log"
)

// DefaultBudget is the trial count used when none is configured.
const DefaultBudget = 20

// Objective evaluates one configuration on one walk-forward fold and
// returns the fold's validation loss (lower is better). It must be safe for
// concurrent calls with distinct trial IDs.
type Objective func(trial int, cfg Config, fold int) (float64, error)

// Options tune the search loop.
type Options struct {
	// Budget is the number of trials to run. Defaults to DefaultBudget.
	Budget int
	// Workers bounds concurrent trials. Defaults to GOMAXPROCS.
	Workers int
	// Seed derives each trial's rng as Seed+trialID, so a trial's random
	// draws do not depend on scheduling.
	Seed int64
	// Suggester proposes configurations. Defaults to NewTPESuggester.
	Suggester Suggester
}

// Result is the outcome of a completed search.
type Result struct {
	// Best is the winning trial: lowest mean validation loss, ties broken
	// by lower trial ID. The selection is a pure reduction over the trial
	// records and does not depend on completion order.
	Best Trial
	// Trials holds every trial, ordered by ID.
	Trials []Trial
}

// Search runs hyperparameter trials against a fold objective.
type Search struct {
	space     Space
	folds     int
	objective Objective

	budget    int
	workers   int
	seed      int64
	suggester Suggester

	mu      sync.Mutex
	next    int
	history []Trial
}

// New validates the configuration and returns a ready search.
func New(space Space, folds int, objective Objective, opts Options) (*Search, error) {
	if err := space.validate(); err != nil {
		return nil, err
	}
	if folds < 1 {
		return nil, errors.NewConfigurationError("search", "folds",
			"must be at least 1", folds)
	}
	if objective == nil {
		return nil, errors.NewConfigurationError("search", "objective",
			"must not be nil", nil)
	}
	if opts.Budget < 0 {
		return nil, errors.NewConfigurationError("search", "budget",
			"must not be negative", opts.Budget)
	}
	if opts.Budget == 0 {
		opts.Budget = DefaultBudget
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Workers > opts.Budget {
		opts.Workers = opts.Budget
	}
	if opts.Suggester == nil {
		opts.Suggester = NewTPESuggester()
	}
	return &Search{
		space:     space,
		folds:     folds,
		objective: objective,
		budget:    opts.Budget,
		workers:   opts.Workers,
		seed:      opts.Seed,
		suggester: opts.Suggester,
	}, nil
}

// Run executes the trial budget on a bounded worker pool and reduces the
// records to the best trial. Individual fold failures downgrade to warnings
// and shrink the trial's average; a trial where every fold fails is recorded
// as failed and excluded. Run fails only when the context is cancelled or
// every trial failed.
func (s *Search) Run(ctx context.Context) (*Result, error) {
	logger := log.GetLoggerWithName("search")
	logger.Info("starting hyperparameter search",
		"budget", s.budget,
		"workers", s.workers,
		log.FoldKey, s.folds,
	)

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				id, cfg, ok := s.claim()
				if !ok {
					return
				}
				s.record(s.runTrial(id, cfg))
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "search: cancelled")
	}

	s.mu.Lock()
	trials := append([]Trial(nil), s.history...)
	s.mu.Unlock()
	sort.Slice(trials, func(a, b int) bool { return trials[a].ID < trials[b].ID })

	best, found := reduceBest(trials)
	if !found {
		return nil, errors.Wrapf(errors.ErrAllTrialsFailed,
			"search: %d trials attempted", len(trials))
	}
	logger.Info("search complete",
		log.TrialKey, best.ID,
		log.ScoreKey, best.Score,
	)
	return &Result{Best: best, Trials: trials}, nil
}

// claim takes the next trial ID and a suggested configuration, or reports
// budget exhaustion. Suggestions are made under the lock so each one sees a
// consistent history snapshot.
func (s *Search) claim() (int, Config, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= s.budget {
		return 0, Config{}, false
	}
	id := s.next
	s.next++
	rng := rand.New(rand.NewPCG(uint64(s.seed)+uint64(id), uint64(s.seed)+uint64(id)))
	cfg := s.suggester.Suggest(s.space, s.history, rng)
	return id, cfg, true
}

// runTrial evaluates one configuration across all folds.
func (s *Search) runTrial(id int, cfg Config) Trial {
	trial := Trial{ID: id, Config: cfg}
	var sum float64
	var lastErr error
	for fold := 0; fold < s.folds; fold++ {
		score, err := s.objective(id, cfg, fold)
		if err != nil {
			lastErr = err
			errors.Warn(errors.NewTrialWarning(id, fold, err))
			continue
		}
		trial.FoldScores = append(trial.FoldScores, score)
		sum += score
	}
	if len(trial.FoldScores) == 0 {
		trial.Err = errors.Wrapf(errors.ErrAllFoldsFailed, "search: trial %d", id)
		trial.Failure = trial.Err.Error()
		errors.Warn(errors.NewTrialWarning(id, -1, lastErr))
		return trial
	}
	trial.Score = sum / float64(len(trial.FoldScores))
	return trial
}

func (s *Search) record(t Trial) {
	s.mu.Lock()
	s.history = append(s.history, t)
	s.mu.Unlock()
}

// reduceBest selects the winning trial from the records alone.
func reduceBest(trials []Trial) (Trial, bool) {
	var best Trial
	found := false
	for _, t := range trials {
		if t.Failed() {
			continue
		}
		if !found || t.Score < best.Score || (t.Score == best.Score && t.ID < best.ID) {
			best = t
			found = true
		}
	}
	return best, found
}
