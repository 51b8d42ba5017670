// Package builtin provides the statically registered scorers shipped with
// AutoScorer, grounded on the original BaseCSVScorer/classification.py/
// regression.py algorithms.
package builtin

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/R3E-Network/autoscorer/internal/apierrors"
)

// loadAndValidateCSV reads path as a CSV with a header row, requiring every
// column in required and a unique, non-empty "id" per row.
func loadAndValidateCSV(path string, required []string) (map[string]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierrors.New(apierrors.CodeMissingFile, fmt.Sprintf("file not found: %s", path))
		}
		return nil, apierrors.New(apierrors.CodeParseError, fmt.Sprintf("cannot open %s: %v", path, err))
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, apierrors.New(apierrors.CodeBadFormat, fmt.Sprintf("%s has no header", path))
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[col] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, apierrors.New(apierrors.CodeBadFormat, fmt.Sprintf("missing columns in %s: %s", path, col))
		}
	}
	idIdx := index["id"]

	data := make(map[string]map[string]string)
	rowNum := 1
	for {
		row, err := r.Read()
		if err != nil {
			break
		}
		rowNum++
		if idIdx >= len(row) || row[idIdx] == "" {
			return nil, apierrors.New(apierrors.CodeBadFormat, fmt.Sprintf("missing ID in row %d of %s", rowNum, path))
		}
		id := row[idIdx]
		if _, exists := data[id]; exists {
			return nil, apierrors.New(apierrors.CodeMismatch, fmt.Sprintf("duplicate ID in %s: %s", path, id))
		}
		record := make(map[string]string, len(header))
		for col, i := range index {
			if i < len(row) {
				record[col] = row[i]
			}
		}
		data[id] = record
	}
	if len(data) == 0 {
		return nil, apierrors.New(apierrors.CodeBadFormat, fmt.Sprintf("%s contains no data rows", path))
	}
	return data, nil
}

// validateIDConsistency requires gt and pred to cover exactly the same ID
// set, reporting the full missing/extra sets (capped at 5 each in the
// message, full counts in Details) rather than failing on the first
// mismatch encountered.
func validateIDConsistency[A, B any](gt map[string]A, pred map[string]B) error {
	var missingInPred, extraInPred []string
	for id := range gt {
		if _, ok := pred[id]; !ok {
			missingInPred = append(missingInPred, id)
		}
	}
	for id := range pred {
		if _, ok := gt[id]; !ok {
			extraInPred = append(extraInPred, id)
		}
	}
	if len(missingInPred) == 0 && len(extraInPred) == 0 {
		return nil
	}

	sort.Strings(missingInPred)
	sort.Strings(extraInPred)

	var parts []string
	if len(missingInPred) > 0 {
		parts = append(parts, fmt.Sprintf("Missing in predictions: %v", capped(missingInPred, 5)))
	}
	if len(extraInPred) > 0 {
		parts = append(parts, fmt.Sprintf("Extra in predictions: %v", capped(extraInPred, 5)))
	}

	return apierrors.New(apierrors.CodeMismatch, fmt.Sprintf("ID mismatch between GT and predictions. %s", strings.Join(parts, "; "))).
		WithDetails(map[string]any{
			"gt_count":        len(gt),
			"pred_count":      len(pred),
			"missing_in_pred": len(missingInPred),
			"extra_in_pred":   len(extraInPred),
		})
}

func capped(ids []string, n int) []string {
	if len(ids) <= n {
		return ids
	}
	return ids[:n]
}

func isoTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
