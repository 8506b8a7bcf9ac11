package forecast

import (
	"testing"

	"github.com/demandcast/demandcast/pkg/errors"
)

func TestParseConfig(t *testing.T) {
	data := []byte(`
model: gbt
features:
  lags: [1, 7, 14]
  rolling_windows: [7, 28]
  ewma_alphas: [0.3]
  group_window: 14
split:
  folds: 4
  holdout_days: 14
search:
  budget: 10
  seed: 99
training:
  num_iterations: 150
  lambda_l2: 2.0
`)
	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if len(cfg.Features.Lags) != 3 || cfg.Features.Lags[2] != 14 {
		t.Errorf("lags = %v, want [1 7 14]", cfg.Features.Lags)
	}
	if cfg.Split.Folds != 4 || cfg.Split.HoldoutDays != 14 {
		t.Errorf("split = %+v, want folds 4 holdout 14", cfg.Split)
	}
	if cfg.Search.Budget != 10 || cfg.Search.Seed != 99 {
		t.Errorf("search = %+v, want budget 10 seed 99", cfg.Search)
	}
	if cfg.Training.NumIterations != 150 || cfg.Training.Lambda != 2.0 {
		t.Errorf("training = %+v", cfg.Training)
	}
}

func TestParseConfigAppliesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("model: gbt\n"))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.Split.Folds != def.Split.Folds {
		t.Errorf("folds = %d, want default %d", cfg.Split.Folds, def.Split.Folds)
	}
	if cfg.Search.Budget != def.Search.Budget {
		t.Errorf("budget = %d, want default %d", cfg.Search.Budget, def.Search.Budget)
	}
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown model", yaml: "model: prophet\n"},
		{name: "zero folds", yaml: "model: gbt\nsplit:\n  folds: 0\n"},
		{name: "negative holdout", yaml: "model: gbt\nsplit:\n  holdout_days: -3\n"},
		{name: "malformed yaml", yaml: "model: [unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			if err == nil {
				t.Fatal("ParseConfig() expected error")
			}
			if tt.name != "malformed yaml" {
				var ce *errors.ConfigurationError
				if !errors.As(err, &ce) {
					t.Errorf("error type = %T, want *ConfigurationError", err)
				}
			}
		})
	}
}
