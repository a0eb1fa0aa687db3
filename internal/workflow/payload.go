package workflow

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
)

const defaultRetryDelay = 3.0

// Payload is the workflow form accepted by the backend's job endpoint.
type Payload struct {
	MaxWorkers *int          `json:"max_workers,omitempty"`
	Steps      []PayloadStep `json:"steps"`
}

// PayloadStep is one submitted step.
type PayloadStep struct {
	ID         string          `json:"id"`
	Type       Kind            `json:"type"`
	Params     map[string]any  `json:"params"`
	Uses       []string        `json:"uses"`
	When       *Condition      `json:"when,omitempty"`
	Retry      *int            `json:"retry,omitempty"`
	RetryDelay *float64        `json:"retry_delay,omitempty"`
	Timeout    *float64        `json:"timeout,omitempty"`
	UI         json.RawMessage `json:"ui,omitempty"`

	// Extra carries unmodelled step-level keys through to the backend.
	Extra map[string]any `json:"-"`
}

type plainPayloadStep PayloadStep

// MarshalJSON writes the step plus its passthrough keys.
func (p PayloadStep) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(plainPayloadStep(p), p.Extra)
}

// SubmissionPayload renders the document for submission. Manually edited
// runninghub bindings are parsed here; text that is not a JSON object is
// submitted as an empty bindings object.
func (d *Document) SubmissionPayload() (Payload, error) {
	payload := Payload{Steps: []PayloadStep{}}
	if d == nil {
		return payload, nil
	}
	if d.MaxWorkers != nil {
		limit := *d.MaxWorkers
		payload.MaxWorkers = &limit
	}
	for _, step := range d.Steps {
		if step == nil {
			continue
		}
		encoded, err := encodeStep(step)
		if err != nil {
			return Payload{}, err
		}
		payload.Steps = append(payload.Steps, encoded)
	}
	return payload, nil
}

// Preview returns the submission payload as indented JSON.
func (d *Document) Preview() (string, error) {
	payload, err := d.SubmissionPayload()
	if err != nil {
		return "", err
	}
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode preview: %w", err)
	}
	return string(encoded), nil
}

func encodeStep(step *Step) (PayloadStep, error) {
	params, err := paramsToMap(step.Params)
	if err != nil {
		return PayloadStep{}, fmt.Errorf("step %s: %w", step.ID, err)
	}
	if step.Kind == KindRunningHubApp {
		applyBindings(params)
	}
	out := PayloadStep{
		ID:     step.ID,
		Type:   step.Kind,
		Params: params,
		Uses:   append([]string{}, step.Uses...),
		When:   step.When,
		UI:     step.UI,
		Extra:  maps.Clone(step.Extra),
	}
	if step.Retry > 0 {
		retry := step.Retry
		delay := defaultRetryDelay
		if step.RetryDelay != nil && *step.RetryDelay != 0 {
			delay = *step.RetryDelay
		}
		out.Retry = &retry
		out.RetryDelay = &delay
	}
	if step.Timeout != nil && *step.Timeout != 0 {
		timeout := *step.Timeout
		out.Timeout = &timeout
	}
	return out, nil
}

// applyBindings replaces a bindingsJson string with the parsed bindings
// object. Anything that does not parse as an object becomes {}.
func applyBindings(params map[string]any) {
	raw, ok := params["bindingsJson"].(string)
	if !ok {
		return
	}
	delete(params, "bindingsJson")
	params["bindings"] = ParseBindings(raw)
}

// ParseBindings parses manually edited bindings text. Blank text, invalid
// JSON and non-object values all yield an empty map.
func ParseBindings(text string) map[string]any {
	bindings := map[string]any{}
	if strings.TrimSpace(text) == "" {
		return bindings
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil || parsed == nil {
		return bindings
	}
	return parsed
}
