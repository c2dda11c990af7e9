package detection

import (
	"errors"
	"log/slog"
)

var ErrModelMissing = errors.New("unable to load the model: artifact directory or file does not exist")

// Prediction is the classification of one banknote. Probability is the
// estimate for the predicted class.
type Prediction struct {
	ID          string  `json:"id"`
	IsFake      bool    `json:"is_fake"`
	Probability float64 `json:"probability"`
}

// Result is the outcome of a batch.
type Result struct {
	Predictions []Prediction `json:"predictions"`
	FakeIDs     []string     `json:"fake_ids"`
	FakeCount   int          `json:"fake_count"`
}

type Status struct {
	Available bool   `json:"available"`
	ModelPath string `json:"model_path"`
	Message   string `json:"message,omitempty"`
}

// Detector wraps the model loaded once at startup. When the artifact is
// missing or unusable the detector stays degraded for the process lifetime.
type Detector struct {
	path    string
	model   *Model
	loadErr error
}

// NewDetector never fails; check Available or Status.
func NewDetector(path string, logger *slog.Logger) *Detector {
	d := &Detector{path: path}
	logger = logger.With("component", "detector")

	m, err := LoadModel(path)
	if err != nil {
		if errors.Is(err, ErrInvalidModel) {
			d.loadErr = err
		} else {
			d.loadErr = ErrModelMissing
		}
		logger.Warn("classifier unavailable, running degraded", "path", path, "error", err)
		return d
	}

	d.model = m
	logger.Info("classifier loaded", "path", path, "features", len(m.Features))
	return d
}

// NewDetectorFromModel is used when the model is already in memory.
func NewDetectorFromModel(m *Model) *Detector {
	return &Detector{model: m}
}

func (d *Detector) Available() bool {
	return d.model != nil
}

func (d *Detector) Status() Status {
	s := Status{Available: d.Available(), ModelPath: d.path}
	if d.loadErr != nil {
		s.Message = d.loadErr.Error()
	}
	return s
}

// Err returns why the detector is degraded, or nil.
func (d *Detector) Err() error {
	switch {
	case d.model != nil:
		return nil
	case d.loadErr != nil:
		return d.loadErr
	}
	return ErrModelMissing
}

// Predict validates b then classifies every row. A row is fake when its
// fake probability exceeds one half.
func (d *Detector) Predict(b *Batch) (Result, error) {
	if err := d.Err(); err != nil {
		return Result{}, err
	}

	samples, err := b.samples()
	if err != nil {
		return Result{}, err
	}

	res := Result{Predictions: make([]Prediction, len(samples)), FakeIDs: []string{}}
	for i, s := range samples {
		p := d.model.ProbabilityFake(s.features)
		pred := Prediction{ID: s.id, IsFake: p > 0.5, Probability: 1 - p}
		if pred.IsFake {
			pred.Probability = p
			res.FakeIDs = append(res.FakeIDs, s.id)
		}
		res.Predictions[i] = pred
	}
	res.FakeCount = len(res.FakeIDs)
	return res, nil
}
