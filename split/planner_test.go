package split

import (
	"testing"
	"time"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n-1)
}

func days(from, to int) []time.Time {
	var out []time.Time
	for n := from; n <= to; n++ {
		out = append(out, day(n))
	}
	return out
}

func TestPlanWalkForward(t *testing.T) {
	plan, err := NewPlanner(5, 20).Plan(days(1, 100))
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	if len(plan.Folds) != 5 {
		t.Fatalf("folds = %d, want 5", len(plan.Folds))
	}
	if !plan.HasHoldout() {
		t.Fatal("expected a holdout range")
	}
	if !plan.Holdout.Start.Equal(day(81)) || !plan.Holdout.End.Equal(day(100)) {
		t.Errorf("holdout = [%v, %v], want the last 20 observed days",
			plan.Holdout.Start, plan.Holdout.End)
	}

	for i, fold := range plan.Folds {
		// Training always reaches back to the first day and ends strictly
		// before validation begins.
		if !fold.Train.Start.Equal(day(1)) {
			t.Errorf("fold %d train start = %v, want day 1", i, fold.Train.Start)
		}
		if !fold.Train.End.Before(fold.Validation.Start) {
			t.Errorf("fold %d: train end %v not before validation start %v",
				i, fold.Train.End, fold.Validation.Start)
		}
		// Validation never touches the holdout.
		if !fold.Validation.End.Before(plan.Holdout.Start) {
			t.Errorf("fold %d validation %v reaches into the holdout", i, fold.Validation.End)
		}
	}

	for i := 1; i < len(plan.Folds); i++ {
		prev, cur := plan.Folds[i-1], plan.Folds[i]
		// Validation blocks advance without overlap.
		if !prev.Validation.End.Before(cur.Validation.Start) {
			t.Errorf("fold %d validation overlaps fold %d", i, i-1)
		}
		// Each fold's training absorbs the previous validation block.
		if !cur.Train.End.After(prev.Train.End) {
			t.Errorf("fold %d training did not grow past fold %d", i, i-1)
		}
		if !cur.Train.End.Equal(prev.Validation.End) {
			t.Errorf("fold %d train end = %v, want previous validation end %v",
				i, cur.Train.End, prev.Validation.End)
		}
	}
}

func TestPlanWithoutHoldout(t *testing.T) {
	plan, err := NewPlanner(3, 0).Plan(days(1, 40))
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.HasHoldout() {
		t.Error("holdout_days=0 should produce no holdout range")
	}
	last := plan.Folds[len(plan.Folds)-1]
	if !last.Validation.End.Equal(day(40)) {
		t.Errorf("last validation end = %v, want day 40", last.Validation.End)
	}
}

func TestPlanNormalizesIndex(t *testing.T) {
	// Unsorted, duplicated, and with intraday timestamps.
	index := []time.Time{
		day(3).Add(14 * time.Hour),
		day(1),
		day(2),
		day(1).Add(6 * time.Hour),
		day(4), day(5), day(6), day(7), day(8),
	}
	plan, err := NewPlanner(2, 2).Plan(index)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if !plan.Holdout.Start.Equal(day(7)) || !plan.Holdout.End.Equal(day(8)) {
		t.Errorf("holdout = [%v, %v], want days 7..8", plan.Holdout.Start, plan.Holdout.End)
	}
}

func TestPlanConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		folds   int
		holdout int
		index   []time.Time
	}{
		{name: "zero folds", folds: 0, holdout: 0, index: days(1, 30)},
		{name: "negative holdout", folds: 2, holdout: -1, index: days(1, 30)},
		{name: "empty index", folds: 2, holdout: 0, index: nil},
		{name: "holdout consumes timeline", folds: 2, holdout: 30, index: days(1, 30)},
		{name: "too few days for folds", folds: 5, holdout: 0, index: days(1, 4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPlanner(tt.folds, tt.holdout).Plan(tt.index); err == nil {
				t.Error("Plan() expected error")
			}
		})
	}
}

func TestRangeContains(t *testing.T) {
	r := Range{Start: day(5), End: day(10)}
	if !r.Contains(day(5)) || !r.Contains(day(10)) {
		t.Error("range bounds are inclusive")
	}
	if r.Contains(day(4)) || r.Contains(day(11)) {
		t.Error("range must not contain days outside its bounds")
	}
}
