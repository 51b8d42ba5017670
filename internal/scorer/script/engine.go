// Package script implements the embedded-JavaScript scorer runtime used for
// dynamically loaded scorers, grounded on the teacher's goja-based
// gojaScriptEngine (system/tee/script_engine.go).
package script

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"github.com/R3E-Network/autoscorer/internal/resultdoc"
)

// Scorer runs a single JavaScript source file against the fresh goja.Runtime
// it constructs per call, for isolation between concurrent scoring runs. It
// satisfies internal/scorer.Scorer and internal/scorer.Validatable by
// structural typing.
type Scorer struct {
	Name   string
	Source string
}

// nameAttribute is the JS-side convention mirroring the Python registry's
// SCORER_NAME class attribute.
const nameAttribute = "SCORER_NAME"

// Load compiles source to confirm it parses and extracts its declared name,
// returning a Scorer ready to run score/validate entry points.
func Load(source string) (*Scorer, error) {
	if _, err := goja.Compile("scorer.js", source, false); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}

	vm := goja.New()
	if _, err := vm.RunString(source); err != nil {
		return nil, fmt.Errorf("execute script: %w", err)
	}
	name := ""
	if v := vm.Get(nameAttribute); v != nil && !goja.IsUndefined(v) {
		name = v.String()
	}
	return &Scorer{Name: name, Source: source}, nil
}

// Score runs the script's score(workspace, params) entry point.
func (s *Scorer) Score(ctx context.Context, workspace string, params map[string]any) (*resultdoc.Result, error) {
	out, err := s.call(ctx, "score", workspace, params)
	if err != nil {
		return nil, err
	}
	r := resultdoc.New()
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal script result: %w", err)
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decode script result: %w", err)
	}
	return r, nil
}

// Validate runs the script's validate(workspace, params) entry point, if
// declared. A script without a validate function is treated as having no
// pre-check.
func (s *Scorer) Validate(ctx context.Context, workspace string, params map[string]any) error {
	vm := goja.New()
	if _, err := vm.RunString(s.Source); err != nil {
		return fmt.Errorf("execute script: %w", err)
	}
	fn, ok := goja.AssertFunction(vm.Get("validate"))
	if !ok {
		return nil
	}
	if _, err := fn(goja.Undefined(), vm.ToValue(workspace), vm.ToValue(params)); err != nil {
		return fmt.Errorf("script validate: %w", err)
	}
	return nil
}

func (s *Scorer) call(ctx context.Context, entryPoint, workspace string, params map[string]any) (any, error) {
	vm := goja.New()
	if _, err := vm.RunString(s.Source); err != nil {
		return nil, fmt.Errorf("execute script: %w", err)
	}
	fn, ok := goja.AssertFunction(vm.Get(entryPoint))
	if !ok {
		return nil, fmt.Errorf("entry point %q is not a function", entryPoint)
	}
	resultVal, err := fn(goja.Undefined(), vm.ToValue(workspace), vm.ToValue(params))
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", entryPoint, err)
	}
	if resultVal == nil || goja.IsUndefined(resultVal) || goja.IsNull(resultVal) {
		return map[string]any{}, nil
	}
	return resultVal.Export(), nil
}
