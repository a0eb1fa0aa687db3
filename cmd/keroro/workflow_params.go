package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"keroro/internal/workflow"
)

// applyParams overlays a JSON object and key=value settings onto the step's
// params. Values are coerced to the type the key already has; new keys are
// read as JSON when they parse and as strings otherwise.
func applyParams(step *workflow.Step, rawJSON string, settings []string) error {
	if strings.TrimSpace(rawJSON) == "" && len(settings) == 0 {
		return nil
	}
	encoded, err := json.Marshal(step.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	params := map[string]any{}
	if err := json.Unmarshal(encoded, &params); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	if strings.TrimSpace(rawJSON) != "" {
		var overlay map[string]any
		if err := json.Unmarshal([]byte(rawJSON), &overlay); err != nil {
			return fmt.Errorf("--params must be a JSON object: %w", err)
		}
		for key, value := range overlay {
			params[key] = value
		}
	}
	for _, setting := range settings {
		key, raw, ok := strings.Cut(setting, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("invalid --set %q (expected key=value)", setting)
		}
		value, err := coerceParam(params[key], raw)
		if err != nil {
			return fmt.Errorf("--set %s: %w", key, err)
		}
		params[key] = value
	}

	wire, err := json.Marshal(map[string]any{"type": step.Kind, "params": params})
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	var decoded workflow.Step
	if err := json.Unmarshal(wire, &decoded); err != nil {
		return err
	}
	step.Params = decoded.Params
	return nil
}

func coerceParam(current any, raw string) (any, error) {
	switch current.(type) {
	case string:
		return raw, nil
	case bool:
		return cast.ToBoolE(raw)
	case float64:
		return cast.ToFloat64E(raw)
	case []any:
		var list []any
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			return list, nil
		}
		parts := []any{}
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}
		return parts, nil
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err == nil {
		return value, nil
	}
	return raw, nil
}

// bindingsOf returns the bindings a runninghub_app step would submit.
func bindingsOf(params *workflow.RunningHubAppParams) map[string]any {
	if params.BindingsJSON != nil {
		return workflow.ParseBindings(*params.BindingsJSON)
	}
	if params.Bindings != nil {
		return params.Bindings
	}
	return map[string]any{}
}
