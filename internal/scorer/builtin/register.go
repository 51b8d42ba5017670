package builtin

import "github.com/R3E-Network/autoscorer/internal/scorer"

// RegisterAll registers every statically shipped scorer with reg.
func RegisterAll(reg *scorer.Registry) error {
	entries := []struct {
		name    string
		class   string
		factory scorer.Factory
	}{
		{"classification_f1", "ClassificationF1", func() scorer.Scorer { return NewClassificationF1() }},
		{"classification_accuracy", "ClassificationAccuracy", func() scorer.Scorer { return NewClassificationAccuracy() }},
		{"regression_rmse", "RegressionRMSE", func() scorer.Scorer { return NewRegressionRMSE() }},
	}
	for _, e := range entries {
		if err := reg.Register(e.name, e.factory, e.class); err != nil {
			return err
		}
	}
	return nil
}
