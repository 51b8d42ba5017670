package builtin

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/R3E-Network/autoscorer/internal/apierrors"
	"github.com/R3E-Network/autoscorer/internal/resultdoc"
)

// ClassificationF1 scores predicted labels against ground truth with
// macro-averaged F1, grounded on the original ClassificationF1 scorer.
type ClassificationF1 struct{}

// NewClassificationF1 is the registry factory for "classification_f1".
func NewClassificationF1() *ClassificationF1 { return &ClassificationF1{} }

func (s *ClassificationF1) Validate(ctx context.Context, workspace string, params map[string]any) error {
	gt, pred, err := s.load(workspace)
	if err != nil {
		return err
	}
	return validateLabelConsistency(gt, pred)
}

func (s *ClassificationF1) Score(ctx context.Context, workspace string, params map[string]any) (*resultdoc.Result, error) {
	gt, pred, err := s.load(workspace)
	if err != nil {
		return nil, err
	}
	if err := validateLabelConsistency(gt, pred); err != nil {
		return nil, err
	}

	metrics := computeF1Metrics(gt, pred)
	f1 := metrics["f1_macro"]

	summary := map[string]any{
		"score":    f1,
		"f1_macro": f1,
		"rank":     rankFromThresholds(f1, 0.9, 0.8, 0.7),
		"pass":     f1 >= passThreshold(params, 0.8),
	}

	r := resultdoc.New()
	r.Summary = summary
	r.Metrics = metrics
	r.Versioning = map[string]string{
		"scorer":    "classification_f1",
		"version":   "2.0.0",
		"algorithm": "F1-Score Macro Average",
		"timestamp": isoTimestamp(),
	}
	return r, nil
}

func (s *ClassificationF1) load(workspace string) (gt, pred map[string]string, err error) {
	gtRows, err := loadAndValidateCSV(filepath.Join(workspace, "input", "gt.csv"), []string{"id", "label"})
	if err != nil {
		return nil, nil, err
	}
	predRows, err := loadAndValidateCSV(filepath.Join(workspace, "output", "pred.csv"), []string{"id", "label"})
	if err != nil {
		return nil, nil, err
	}
	return flattenLabels(gtRows), flattenLabels(predRows), nil
}

func flattenLabels(rows map[string]map[string]string) map[string]string {
	out := make(map[string]string, len(rows))
	for id, row := range rows {
		out[id] = row["label"]
	}
	return out
}

func validateLabelConsistency(gt, pred map[string]string) error {
	if err := validateIDConsistency(gt, pred); err != nil {
		return err
	}
	for id, label := range gt {
		if strings.TrimSpace(label) == "" {
			return apierrors.New(apierrors.CodeBadFormat, fmt.Sprintf("empty label in GT for ID: %s", id))
		}
	}
	for id, label := range pred {
		if strings.TrimSpace(label) == "" {
			return apierrors.New(apierrors.CodeBadFormat, fmt.Sprintf("empty label in predictions for ID: %s", id))
		}
	}
	return nil
}

func computeF1Metrics(gt, pred map[string]string) map[string]float64 {
	labelSet := map[string]struct{}{}
	for _, l := range gt {
		labelSet[l] = struct{}{}
	}
	labels := make([]string, 0, len(labelSet))
	for l := range labelSet {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	metrics := map[string]float64{}
	var sumF1 float64
	for _, label := range labels {
		var tp, fp, fn int
		for id, g := range gt {
			p := pred[id]
			if g == label && p == label {
				tp++
			}
			if g != label && p == label {
				fp++
			}
			if g == label && p != label {
				fn++
			}
		}
		precision := safeDiv(float64(tp), float64(tp+fp))
		recall := safeDiv(float64(tp), float64(tp+fn))
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		metrics["f1_"+label] = f1
		sumF1 += f1
	}
	macroF1 := 0.0
	if len(labels) > 0 {
		macroF1 = sumF1 / float64(len(labels))
	}
	metrics["f1_macro"] = macroF1
	metrics["num_labels"] = float64(len(labels))
	metrics["total_samples"] = float64(len(gt))
	return metrics
}

// ClassificationAccuracy scores predicted labels against ground truth with
// overall accuracy, grounded on the original ClassificationAccuracy scorer.
type ClassificationAccuracy struct{}

// NewClassificationAccuracy is the registry factory for "classification_accuracy".
func NewClassificationAccuracy() *ClassificationAccuracy { return &ClassificationAccuracy{} }

func (s *ClassificationAccuracy) Validate(ctx context.Context, workspace string, params map[string]any) error {
	gt, pred, err := (&ClassificationF1{}).load(workspace)
	if err != nil {
		return err
	}
	return validateLabelConsistency(gt, pred)
}

func (s *ClassificationAccuracy) Score(ctx context.Context, workspace string, params map[string]any) (*resultdoc.Result, error) {
	gt, pred, err := (&ClassificationF1{}).load(workspace)
	if err != nil {
		return nil, err
	}
	if err := validateLabelConsistency(gt, pred); err != nil {
		return nil, err
	}

	var correct int
	for id, g := range gt {
		if pred[id] == g {
			correct++
		}
	}
	total := len(gt)
	accuracy := safeDiv(float64(correct), float64(total))

	metrics := map[string]float64{
		"accuracy": accuracy,
		"correct":  float64(correct),
		"total":    float64(total),
	}

	summary := map[string]any{
		"score":    accuracy,
		"accuracy": accuracy,
		"rank":     rankFromThresholds(accuracy, 0.95, 0.85, 0.75),
		"pass":     accuracy >= passThreshold(params, 0.8),
	}

	r := resultdoc.New()
	r.Summary = summary
	r.Metrics = metrics
	r.Versioning = map[string]string{
		"scorer":    "classification_accuracy",
		"version":   "2.0.0",
		"algorithm": "Classification Accuracy",
		"timestamp": isoTimestamp(),
	}
	return r, nil
}

func rankFromThresholds(value, a, b, c float64) string {
	switch {
	case value >= a:
		return "A"
	case value >= b:
		return "B"
	case value >= c:
		return "C"
	default:
		return "D"
	}
}

func passThreshold(params map[string]any, def float64) float64 {
	if params == nil {
		return def
	}
	if v, ok := params["pass_threshold"]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return def
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
