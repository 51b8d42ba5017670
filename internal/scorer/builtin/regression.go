package builtin

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"github.com/R3E-Network/autoscorer/internal/apierrors"
	"github.com/R3E-Network/autoscorer/internal/resultdoc"
)

// RegressionRMSE scores predicted numeric labels against ground truth with
// root-mean-square error, grounded on the original RegressionRMSE scorer.
type RegressionRMSE struct{}

// NewRegressionRMSE is the registry factory for "regression_rmse".
func NewRegressionRMSE() *RegressionRMSE { return &RegressionRMSE{} }

func (s *RegressionRMSE) Validate(ctx context.Context, workspace string, params map[string]any) error {
	gt, pred, err := s.load(workspace)
	if err != nil {
		return err
	}
	return validateNumericConsistency(gt, pred)
}

func (s *RegressionRMSE) Score(ctx context.Context, workspace string, params map[string]any) (*resultdoc.Result, error) {
	gt, pred, err := s.load(workspace)
	if err != nil {
		return nil, err
	}
	if err := validateNumericConsistency(gt, pred); err != nil {
		return nil, err
	}

	metrics := computeRMSEMetrics(gt, pred)
	rmse := metrics["rmse"]

	summary := map[string]any{
		"score": rmse,
		"rmse":  rmse,
		"rank":  rankFromThresholdsDescending(rmse, 0.1, 0.3, 0.5),
		"pass":  rmse <= passThreshold(params, 0.5),
	}

	r := resultdoc.New()
	r.Summary = summary
	r.Metrics = metrics
	r.Versioning = map[string]string{
		"scorer":    "regression_rmse",
		"version":   "2.0.0",
		"algorithm": "Root Mean Square Error",
		"timestamp": isoTimestamp(),
	}
	return r, nil
}

func (s *RegressionRMSE) load(workspace string) (gt, pred map[string]float64, err error) {
	gtRows, err := loadAndValidateCSV(filepath.Join(workspace, "input", "gt.csv"), []string{"id", "label"})
	if err != nil {
		return nil, nil, err
	}
	predRows, err := loadAndValidateCSV(filepath.Join(workspace, "output", "pred.csv"), []string{"id", "label"})
	if err != nil {
		return nil, nil, err
	}
	gtNum, err := toNumeric(gtRows, "GT")
	if err != nil {
		return nil, nil, err
	}
	predNum, err := toNumeric(predRows, "predictions")
	if err != nil {
		return nil, nil, err
	}
	return gtNum, predNum, nil
}

func toNumeric(rows map[string]map[string]string, kind string) (map[string]float64, error) {
	out := make(map[string]float64, len(rows))
	for id, row := range rows {
		v, err := strconv.ParseFloat(row["label"], 64)
		if err != nil {
			return nil, apierrors.New(apierrors.CodeTypeError, fmt.Sprintf("label cannot be converted to float in %s for ID %s: %q", kind, id, row["label"]))
		}
		out[id] = v
	}
	return out, nil
}

func validateNumericConsistency(gt, pred map[string]float64) error {
	if err := validateIDConsistency(gt, pred); err != nil {
		return err
	}
	for id, v := range gt {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apierrors.New(apierrors.CodeBadFormat, fmt.Sprintf("invalid numeric value in GT for ID %s: %v", id, v))
		}
	}
	for id, v := range pred {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apierrors.New(apierrors.CodeBadFormat, fmt.Sprintf("invalid numeric value in predictions for ID %s: %v", id, v))
		}
	}
	return nil
}

func computeRMSEMetrics(gt, pred map[string]float64) map[string]float64 {
	n := len(gt)
	var seSum, aeSum, gtSum, predSum float64
	for id, g := range gt {
		p := pred[id]
		diff := p - g
		seSum += diff * diff
		aeSum += math.Abs(diff)
		gtSum += g
		predSum += p
	}

	mse := safeDiv(seSum, float64(n))
	rmse := math.Sqrt(mse)
	mae := safeDiv(aeSum, float64(n))
	gtMean := safeDiv(gtSum, float64(n))
	predMean := safeDiv(predSum, float64(n))

	var ssTot float64
	for _, g := range gt {
		ssTot += (g - gtMean) * (g - gtMean)
	}
	rSquared := 0.0
	if ssTot > 0 {
		rSquared = 1 - seSum/ssTot
	}

	return map[string]float64{
		"rmse":      rmse,
		"mse":       mse,
		"mae":       mae,
		"r_squared": rSquared,
		"gt_mean":   gtMean,
		"pred_mean": predMean,
		"n_samples": float64(n),
	}
}

func rankFromThresholdsDescending(value, a, b, c float64) string {
	switch {
	case value <= a:
		return "A"
	case value <= b:
		return "B"
	case value <= c:
		return "C"
	default:
		return "D"
	}
}
