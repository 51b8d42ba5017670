// Package cli implements the autoscorer command-line entrypoint: a thin
// dispatcher over the same orchestrator/scorer/taskstore components the
// HTTP API serves, grounded on the teacher's cmd/slcli flag-driven
// subcommand style.
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"reflect"
	"sort"
	"time"

	"github.com/R3E-Network/autoscorer/internal/apierrors"
	"github.com/R3E-Network/autoscorer/internal/asynctask"
	"github.com/R3E-Network/autoscorer/internal/config"
	"github.com/R3E-Network/autoscorer/internal/orchestrator"
	"github.com/R3E-Network/autoscorer/internal/scorer"
	"github.com/R3E-Network/autoscorer/internal/validator"
	"github.com/R3E-Network/autoscorer/pkg/version"
)

// Deps bundles the components every subcommand dispatches against. Tasks
// may be nil when async submission is unavailable outside a running server.
type Deps struct {
	Orch  *orchestrator.Orchestrator
	Reg   *scorer.Registry
	Tasks *asynctask.Manager
	Cfg   *config.Config
}

// Run dispatches args[0] to the matching subcommand, writing a JSON envelope
// to stdout and returning a process exit code (0 on success).
func Run(ctx context.Context, args []string, deps Deps, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 2
	}

	switch args[0] {
	case "validate":
		return cmdValidate(deps, args[1:], stdout, stderr)
	case "run":
		return cmdRun(ctx, deps, args[1:], stdout, stderr)
	case "score":
		return cmdScore(ctx, deps, args[1:], stdout, stderr)
	case "pipeline":
		return cmdPipeline(ctx, deps, args[1:], stdout, stderr)
	case "submit":
		return cmdSubmit(ctx, deps, args[1:], stdout, stderr)
	case "scorers":
		return cmdScorers(deps, args[1:], stdout, stderr)
	case "config":
		return cmdConfig(deps, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n\n%s\n", args[0], usage())
		return 2
	}
}

func usage() string {
	return `autoscorer - validate, run, and score inference workspaces

Usage:
  autoscorer validate <workspace>
  autoscorer run [-backend <host>] <workspace>
  autoscorer score [-scorer <name>] [-params <json>] <workspace>
  autoscorer pipeline [-backend <host>] [-scorer <name>] [-params <json>] <workspace>
  autoscorer submit [-backend <host>] [-scorer <name>] [-params <json>] [-callback <url>] <action> <workspace>
  autoscorer scorers list
  autoscorer scorers load <file_or_dir>
  autoscorer scorers reload <file>
  autoscorer scorers test [-params <json>] <workspace> <scorer>
  autoscorer config show
  autoscorer config validate
  autoscorer config dump
  autoscorer config paths`
}

func parseParams(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("invalid -params JSON: %w", err)
	}
	return params, nil
}

func envelope(ok bool, data any, err *apierrors.Error) map[string]any {
	m := map[string]any{
		"ok":   ok,
		"meta": map[string]any{"timestamp": time.Now().UTC().Format(time.RFC3339), "version": version.Version},
	}
	if ok {
		m["data"] = data
	} else {
		m["error"] = map[string]any{"code": err.Code, "message": err.Message, "stage": err.Stage, "details": err.Details}
	}
	return m
}

func emit(w io.Writer, ok bool, data any, err *apierrors.Error) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(envelope(ok, data, err))
	if ok {
		return 0
	}
	return 1
}

func emitErr(w io.Writer, err error, fallbackCode, stage string) int {
	return emit(w, false, nil, apierrors.FromError(err, fallbackCode, stage))
}

func cmdValidate(deps Deps, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: autoscorer validate <workspace>")
		return 2
	}
	res := validator.Validate(args[0], deps.Reg)
	if !res.OK {
		return emit(stdout, false, nil, apierrors.New(res.FirstCode(), res.Errors[0]).WithDetails(map[string]any{"errors": res.Errors}))
	}
	return emit(stdout, true, map[string]any{"valid": true}, nil)
}

func cmdRun(ctx context.Context, deps Deps, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	backend := fs.String("backend", "", "scheduler backend hint")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Usage: autoscorer run [-backend <host>] <workspace>")
		return 2
	}

	result, err := deps.Orch.RunOnly(ctx, fs.Arg(0), *backend)
	if err != nil {
		return emitErr(stdout, err, apierrors.CodeExecError, "run")
	}
	return emit(stdout, true, result, nil)
}

func cmdScore(ctx context.Context, deps Deps, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	scorerName := fs.String("scorer", "", "scorer name override")
	paramsRaw := fs.String("params", "", "JSON-encoded scorer params")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Usage: autoscorer score [-scorer <name>] [-params <json>] <workspace>")
		return 2
	}

	params, err := parseParams(*paramsRaw)
	if err != nil {
		return emitErr(stdout, err, apierrors.CodeBadFormat, "score")
	}

	result, path, err := deps.Orch.ScoreOnly(ctx, fs.Arg(0), params, *scorerName)
	if err != nil {
		return emitErr(stdout, err, apierrors.CodeScoreError, "score")
	}
	return emit(stdout, true, map[string]any{"result": result, "result_path": path}, nil)
}

func cmdPipeline(ctx context.Context, deps Deps, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pipeline", flag.ContinueOnError)
	backend := fs.String("backend", "", "scheduler backend hint")
	scorerName := fs.String("scorer", "", "scorer name override")
	paramsRaw := fs.String("params", "", "JSON-encoded scorer params")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Usage: autoscorer pipeline [-backend <host>] [-scorer <name>] [-params <json>] <workspace>")
		return 2
	}

	params, err := parseParams(*paramsRaw)
	if err != nil {
		return emitErr(stdout, err, apierrors.CodeBadFormat, "pipeline")
	}

	out := deps.Orch.RunAndScore(ctx, fs.Arg(0), params, *backend, *scorerName)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
	if out["ok"] == false {
		return 1
	}
	return 0
}

func cmdSubmit(ctx context.Context, deps Deps, args []string, stdout, stderr io.Writer) int {
	if deps.Tasks == nil {
		return emitErr(stdout, apierrors.New(apierrors.CodePipelineError, "async submission is not enabled"), apierrors.CodePipelineError, "submit")
	}

	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	backend := fs.String("backend", "", "scheduler backend hint")
	scorerName := fs.String("scorer", "", "scorer name override")
	paramsRaw := fs.String("params", "", "JSON-encoded scorer params")
	callback := fs.String("callback", "", "callback URL")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 2 {
		fmt.Fprintln(stderr, "Usage: autoscorer submit [-backend <host>] [-scorer <name>] [-params <json>] [-callback <url>] <action> <workspace>")
		return 2
	}

	params, err := parseParams(*paramsRaw)
	if err != nil {
		return emitErr(stdout, err, apierrors.CodeBadFormat, "submit")
	}

	taskID, submitted, running, err := deps.Tasks.Submit(ctx, asynctask.Action(fs.Arg(0)), fs.Arg(1), params, *backend, *scorerName, *callback)
	if err != nil {
		return emitErr(stdout, err, apierrors.CodePipelineError, "submit")
	}
	return emit(stdout, true, map[string]any{"task_id": taskID, "submitted": submitted, "running": running}, nil)
}

func cmdScorers(deps Deps, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: autoscorer scorers {list|load|reload|test}")
		return 2
	}

	switch args[0] {
	case "list":
		names := deps.Reg.List()
		out := make([]map[string]string, 0, len(names))
		for name, class := range names {
			out = append(out, map[string]string{"name": name, "class": class})
		}
		sort.Slice(out, func(i, j int) bool { return out[i]["name"] < out[j]["name"] })
		return emit(stdout, true, out, nil)

	case "load":
		if len(args) < 2 {
			fmt.Fprintln(stderr, "Usage: autoscorer scorers load <file_or_dir>")
			return 2
		}
		loaded, err := loadScorerPath(deps.Reg, args[1])
		if err != nil {
			return emitErr(stdout, err, apierrors.CodeMissingFile, "scorers")
		}
		return emit(stdout, true, loaded, nil)

	case "reload":
		if len(args) < 2 {
			fmt.Fprintln(stderr, "Usage: autoscorer scorers reload <file>")
			return 2
		}
		loaded, err := deps.Reg.Reload(args[1])
		if err != nil {
			return emitErr(stdout, err, apierrors.CodeMissingFile, "scorers")
		}
		return emit(stdout, true, loaded, nil)

	case "test":
		fs := flag.NewFlagSet("scorers test", flag.ContinueOnError)
		paramsRaw := fs.String("params", "", "JSON-encoded scorer params")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 2 {
			fmt.Fprintln(stderr, "Usage: autoscorer scorers test [-params <json>] <workspace> <scorer>")
			return 2
		}
		params, err := parseParams(*paramsRaw)
		if err != nil {
			return emitErr(stdout, err, apierrors.CodeBadFormat, "scorers")
		}
		sc, err := deps.Reg.Get(fs.Arg(1))
		if err != nil {
			return emitErr(stdout, err, apierrors.CodeScorerNotFound, "scorers")
		}
		result, err := sc.Score(context.Background(), fs.Arg(0), params)
		if err != nil {
			return emitErr(stdout, err, apierrors.CodeScoreError, "scorers")
		}
		return emit(stdout, true, result, nil)

	default:
		fmt.Fprintf(stderr, "unknown scorers subcommand: %s\n", args[0])
		return 2
	}
}

// flattenConfig renders cfg as a flat env-var-keyed map (using the same
// `env` tags envdecode loads from), the CLI's equivalent of a dotenv dump.
func flattenConfig(cfg *config.Config) map[string]string {
	out := map[string]string{}
	flattenStruct(reflect.ValueOf(*cfg), out)
	return out
}

func flattenStruct(v reflect.Value, out map[string]string) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fv := v.Field(i)
		if fv.Kind() == reflect.Struct {
			flattenStruct(fv, out)
			continue
		}
		key := field.Tag.Get("env")
		if key == "" {
			key = field.Name
		}
		out[key] = fmt.Sprintf("%v", fv.Interface())
	}
}

func loadScorerPath(reg *scorer.Registry, path string) (map[string]string, error) {
	if loaded, err := reg.LoadFromDirectory(path, "*"); err == nil {
		return loaded, nil
	}
	return reg.LoadFromFile(path, false)
}

func cmdConfig(deps Deps, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: autoscorer config {show|validate|dump|paths}")
		return 2
	}

	switch args[0] {
	case "show":
		return emit(stdout, true, deps.Cfg, nil)
	case "validate":
		if err := deps.Cfg.Validate(); err != nil {
			return emitErr(stdout, err, apierrors.CodeBadFormat, "config")
		}
		return emit(stdout, true, map[string]any{"valid": true}, nil)
	case "dump":
		return emit(stdout, true, flattenConfig(deps.Cfg), nil)
	case "paths":
		return emit(stdout, true, deps.Cfg.Paths, nil)
	default:
		fmt.Fprintf(stderr, "unknown config subcommand: %s\n", args[0])
		return 2
	}
}
