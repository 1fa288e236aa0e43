// Package prediction holds the model catalog and the simulated predictors
// that turn an uploaded dataset into a soh.PredictionResult.
package prediction

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownModel is returned when a model id is not in the catalog.
var ErrUnknownModel = errors.New("unknown model")

const (
	ModelSVR      = "SVR"
	ModelLSTM     = "LSTM"
	ModelEnsemble = "Ensemble"
	ModelDeepSeek = "DeepSeek"

	DefaultModel = ModelSVR
)

// Model describes one selectable prediction model.
type Model struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Accuracy    float64        `json:"accuracy"` // percent
	Speed       string         `json:"speed"`
	Description string         `json:"description"`
	Pros        []string       `json:"pros,omitempty"`
	Cons        []string       `json:"cons,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

var catalog = []Model{
	{
		ID:          ModelSVR,
		Name:        "Support Vector Regression",
		Accuracy:    94.2,
		Speed:       "Fast",
		Description: "Traditional ML approach with kernel methods for non-linear regression",
		Pros:        []string{"Fast training", "Good for small datasets", "Robust to outliers"},
		Cons:        []string{"Less accurate on complex patterns", "Limited deep learning capabilities"},
		Params: map[string]any{
			"kernel":  "RBF",
			"C":       1.0,
			"gamma":   "scale",
			"epsilon": 0.1,
		},
	},
	{
		ID:          ModelLSTM,
		Name:        "Long Short-Term Memory",
		Accuracy:    96.7,
		Speed:       "Medium",
		Description: "Deep learning RNN architecture for sequential battery data",
		Pros:        []string{"Excellent for time series", "Captures long-term dependencies", "High accuracy"},
		Cons:        []string{"Requires more data", "Longer training time", "More complex"},
		Params: map[string]any{
			"units":     64,
			"dropout":   0.2,
			"epochs":    100,
			"batchSize": 32,
		},
	},
	{
		ID:          ModelEnsemble,
		Name:        "Ensemble Model",
		Accuracy:    97.3,
		Speed:       "Slow",
		Description: "Combines multiple models for superior prediction accuracy",
		Pros:        []string{"Highest accuracy", "Robust predictions", "Reduced overfitting"},
		Cons:        []string{"Slowest training", "Most resource intensive", "Complex interpretation"},
		Params: map[string]any{
			"models":  []string{"SVR", "LSTM", "RandomForest"},
			"weights": []float64{0.3, 0.4, 0.3},
			"voting":  "weighted",
		},
	},
	{
		ID:          ModelDeepSeek,
		Name:        "DeepSeek AI",
		Accuracy:    98,
		Speed:       "Fast",
		Description: "Advanced AI with latest algorithms",
	},
}

// Models returns a copy of the catalog in display order.
func Models() []Model {
	out := make([]Model, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a model by id, ignoring case.
func Lookup(id string) (Model, error) {
	for _, m := range catalog {
		if strings.EqualFold(m.ID, strings.TrimSpace(id)) {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("%w: %q", ErrUnknownModel, id)
}

// DisplayName returns the human-readable name of a model id, or the id itself
// when it is not in the catalog.
func DisplayName(id string) string {
	if m, err := Lookup(id); err == nil {
		return m.Name
	}
	return id
}
