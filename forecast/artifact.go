package forecast

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/demandcast/demandcast/explain"
	"github.com/demandcast/demandcast/gbt"
	"github.com/demandcast/demandcast/metrics"
	"github.com/demandcast/demandcast/pkg/errors"
	"github.com/demandcast/demandcast/search"
	"github.com/demandcast/demandcast/timeseries"
)

// Bundle file names inside an artifact directory.
const (
	bundleFile      = "bundle.json"
	modelFile       = "model.json"
	statsFile       = "stats.json"
	attributionFile = "attribution.json"
)

// artifactSchemaVersion guards against loading bundles written by an
// incompatible release.
const artifactSchemaVersion = 1

// Artifact is everything one training run produces: the trained model, the
// imputation statistics frozen from the training range, the evaluation
// report, the search records and the attribution summary. Saving an
// artifact and loading it back is the supported path from training to
// inference.
type Artifact struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Config    Config    `json:"config"`

	Metrics   *metrics.Report `json:"metrics"`
	BestTrial *search.Trial   `json:"best_trial,omitempty"`
	Trials    []search.Trial  `json:"trials,omitempty"`

	Model       *gbt.Model                `json:"-"`
	Stats       *timeseries.TrainingStats `json:"-"`
	Attribution *explain.Summary          `json:"-"`
}

// manifest is the on-disk shape of bundle.json.
type manifest struct {
	SchemaVersion int       `json:"schema_version"`
	RunID         string    `json:"run_id"`
	CreatedAt     time.Time `json:"created_at"`
	Config        Config    `json:"config"`

	Metrics   *metrics.Report `json:"metrics"`
	BestTrial *search.Trial   `json:"best_trial,omitempty"`
	Trials    []search.Trial  `json:"trials,omitempty"`

	Files map[string]string `json:"files"`
}

func newRunID() string {
	return uuid.NewString()
}

// Save writes the artifact as a bundle directory. The directory is created
// if needed; existing bundle files are overwritten.
func (a *Artifact) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "forecast: create artifact dir %s", dir)
	}

	files := map[string]string{statsFile: statsFile}
	if a.Model != nil {
		files[modelFile] = modelFile
	}
	if a.Attribution != nil {
		files[attributionFile] = attributionFile
	}

	m := manifest{
		SchemaVersion: artifactSchemaVersion,
		RunID:         a.RunID,
		CreatedAt:     a.CreatedAt,
		Config:        a.Config,
		Metrics:       a.Metrics,
		BestTrial:     a.BestTrial,
		Trials:        a.Trials,
		Files:         files,
	}
	if err := writeJSON(filepath.Join(dir, bundleFile), m); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, statsFile), a.Stats); err != nil {
		return err
	}
	if a.Model != nil {
		data, err := a.Model.MarshalBinary()
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, modelFile), data, 0o644); err != nil {
			return errors.Wrap(err, "forecast: write model")
		}
	}
	if a.Attribution != nil {
		if err := writeJSON(filepath.Join(dir, attributionFile), a.Attribution); err != nil {
			return err
		}
	}
	return nil
}

// LoadArtifact reads a bundle directory back into memory.
func LoadArtifact(dir string) (*Artifact, error) {
	var m manifest
	if err := readJSON(filepath.Join(dir, bundleFile), &m); err != nil {
		return nil, err
	}
	if m.SchemaVersion != artifactSchemaVersion {
		return nil, errors.Newf("forecast: unsupported artifact schema version %d", m.SchemaVersion)
	}

	a := &Artifact{
		RunID:     m.RunID,
		CreatedAt: m.CreatedAt,
		Config:    m.Config,
		Metrics:   m.Metrics,
		BestTrial: m.BestTrial,
		Trials:    m.Trials,
	}

	a.Stats = &timeseries.TrainingStats{}
	if err := readJSON(filepath.Join(dir, statsFile), a.Stats); err != nil {
		return nil, err
	}
	if _, ok := m.Files[modelFile]; ok {
		data, err := os.ReadFile(filepath.Join(dir, modelFile))
		if err != nil {
			return nil, errors.Wrap(err, "forecast: read model")
		}
		a.Model = &gbt.Model{}
		if err := a.Model.UnmarshalBinary(data); err != nil {
			return nil, err
		}
	}
	if _, ok := m.Files[attributionFile]; ok {
		a.Attribution = &explain.Summary{}
		if err := readJSON(filepath.Join(dir, attributionFile), a.Attribution); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "forecast: marshal %s", filepath.Base(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "forecast: write %s", filepath.Base(path))
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "forecast: read %s", filepath.Base(path))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "forecast: parse %s", filepath.Base(path))
	}
	return nil
}
