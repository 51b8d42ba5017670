package httpapi

import (
	"time"

	"github.com/R3E-Network/autoscorer/internal/asynctask"
)

func actionFromString(s string) asynctask.Action {
	switch s {
	case "run":
		return asynctask.ActionRun
	case "score":
		return asynctask.ActionScore
	case "run_and_score", "pipeline":
		return asynctask.ActionRunAndScore
	default:
		return asynctask.Action(s)
	}
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
