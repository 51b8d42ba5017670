package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/R3E-Network/autoscorer/internal/apierrors"
	"github.com/R3E-Network/autoscorer/pkg/version"
)

// meta returns the standard envelope metadata block.
func meta(extra map[string]any) map[string]any {
	m := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   version.Version,
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

// writeOK writes the success envelope {ok: true, data, meta}.
func writeOK(w http.ResponseWriter, status int, data any, extraMeta map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":   true,
		"data": data,
		"meta": meta(extraMeta),
	})
}

// writeErr writes the error envelope {ok: false, error, meta}, mapping the
// typed error's code to an HTTP status per spec §6.
func writeErr(w http.ResponseWriter, err error) {
	te := apierrors.FromError(err, apierrors.CodeUnhandledError, "")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForCode(te.Code))
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok": false,
		"error": map[string]any{
			"code":    te.Code,
			"message": te.Message,
			"stage":   te.Stage,
			"details": te.Details,
		},
		"meta": meta(nil),
	})
}

func statusForCode(code string) int {
	switch code {
	case apierrors.CodeMissingFile, apierrors.CodeWorkspaceNotFound, apierrors.CodeScorerNotFound:
		return http.StatusNotFound
	case apierrors.CodeUnhandledError:
		return http.StatusInternalServerError
	case "":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
