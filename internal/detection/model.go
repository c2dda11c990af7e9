package detection

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// Features are the banknote measurements, in millimeters, the classifier uses.
var Features = []string{"diagonal", "height_left", "height_right", "margin_low", "margin_up", "length"}

// IDColumn identifies a banknote in an uploaded batch.
const IDColumn = "id"

// Model is a trained logistic regression exported as JSON:
//
//	{"features": ["diagonal", ...], "coefficients": [0.1, ...], "intercept": -1.2}
//
// Coefficients are aligned with Features by name, not by column position.
type Model struct {
	Features     []string  `json:"features"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

var ErrInvalidModel = errors.New("invalid model artifact")

// LoadModel reads and checks the artifact at path.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	if err := m.check(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Model) check() error {
	if len(m.Features) == 0 || len(m.Features) != len(m.Coefficients) {
		return fmt.Errorf("%w: %d features for %d coefficients", ErrInvalidModel, len(m.Features), len(m.Coefficients))
	}
	known := map[string]bool{}
	for _, f := range Features {
		known[f] = true
	}
	for _, f := range m.Features {
		if !known[f] {
			return fmt.Errorf("%w: unknown feature %q", ErrInvalidModel, f)
		}
	}
	return nil
}

// ProbabilityFake returns p(fake | x) for a row keyed by feature name.
func (m *Model) ProbabilityFake(x map[string]float64) float64 {
	z := m.Intercept
	for i, f := range m.Features {
		z += m.Coefficients[i] * x[f]
	}
	return 1 / (1 + math.Exp(-z))
}
