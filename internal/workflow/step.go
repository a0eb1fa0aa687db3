package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// ConditionOp is the comparison applied by a step condition.
type ConditionOp string

const (
	OpContains    ConditionOp = "contains"
	OpEquals      ConditionOp = "equals"
	OpStartsWith  ConditionOp = "starts_with"
	OpEndsWith    ConditionOp = "ends_with"
	OpNotContains ConditionOp = "not_contains"
	OpNotEquals   ConditionOp = "not_equals"
	OpExists      ConditionOp = "exists"
	OpNotExists   ConditionOp = "not_exists"
)

var conditionOps = map[ConditionOp]struct{}{
	OpContains:    {},
	OpEquals:      {},
	OpStartsWith:  {},
	OpEndsWith:    {},
	OpNotContains: {},
	OpNotEquals:   {},
	OpExists:      {},
	OpNotExists:   {},
}

// Valid reports whether op is understood by the backend.
func (op ConditionOp) Valid() bool {
	_, ok := conditionOps[op]
	return ok
}

// Condition gates a step on the output of an earlier one.
type Condition struct {
	FromStep string      `json:"from_step"`
	Field    string      `json:"field"`
	Op       ConditionOp `json:"op"`
	Value    any         `json:"value,omitempty"`
}

// Condition keys written by the browser editor, in lookup order after the
// current Chinese labels and the English wire names.
var (
	conditionFromKeys  = []string{"检查哪个步骤", "from_step", "来源步骤"}
	conditionFieldKeys = []string{"检查什么", "field", "字段名"}
	conditionOpKeys    = []string{"怎么比较", "op", "操作符"}
	conditionValueKeys = []string{"期望值", "value", "比较值"}
)

// UnmarshalJSON accepts the English wire names as well as the labelled keys
// saved by the browser editor. Empty values fall through to the next alias.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode condition: %w", err)
	}
	*c = Condition{
		FromStep: conditionString(raw, conditionFromKeys),
		Field:    conditionString(raw, conditionFieldKeys),
		Op:       ConditionOp(conditionString(raw, conditionOpKeys)),
		Value:    firstPresent(raw, conditionValueKeys),
	}
	return nil
}

func conditionString(raw map[string]any, keys []string) string {
	value := firstPresent(raw, keys)
	if value == nil {
		return ""
	}
	if text, ok := value.(string); ok {
		return text
	}
	return fmt.Sprint(value)
}

func firstPresent(raw map[string]any, keys []string) any {
	for _, key := range keys {
		value, ok := raw[key]
		if !ok || value == nil || value == "" || value == false {
			continue
		}
		if number, isNumber := value.(float64); isNumber && number == 0 {
			continue
		}
		return value
	}
	return nil
}

// Step is one node of a workflow document. Extra holds step-level keys that
// are not modelled here; they are written back unchanged.
type Step struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"type"`
	Params     Params          `json:"params"`
	Uses       []string        `json:"uses"`
	When       *Condition      `json:"when,omitempty"`
	Retry      int             `json:"retry,omitempty"`
	RetryDelay *float64        `json:"retry_delay,omitempty"`
	Timeout    *float64        `json:"timeout,omitempty"`
	UI         json.RawMessage `json:"ui,omitempty"`

	Extra map[string]any `json:"-"`
}

type plainStep Step

// MarshalJSON writes the modelled keys plus Extra.
func (s Step) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(plainStep(s), s.Extra)
}

type stepWire struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"type"`
	Params     json.RawMessage `json:"params"`
	Uses       []string        `json:"uses"`
	When       *Condition      `json:"when"`
	Retry      int             `json:"retry"`
	RetryDelay *float64        `json:"retry_delay"`
	Timeout    *float64        `json:"timeout"`
	UI         json.RawMessage `json:"ui"`
}

// UnmarshalJSON decodes a step and its params variant. A step without a type
// keeps nil params so validation can report it.
func (s *Step) UnmarshalJSON(data []byte) error {
	var wire stepWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for key := range knownKeys(reflect.TypeOf(wire)) {
		delete(all, key)
	}
	if len(all) == 0 {
		all = nil
	}
	var params Params
	if wire.Kind != "" {
		decoded, err := decodeParams(wire.Kind, wire.Params)
		if err != nil {
			if wire.ID != "" {
				return fmt.Errorf("step %s: %w", wire.ID, err)
			}
			return err
		}
		params = decoded
	}
	ui := wire.UI
	if trimmed := bytes.TrimSpace(ui); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		ui = nil
	}
	*s = Step{
		ID:         wire.ID,
		Kind:       wire.Kind,
		Params:     params,
		Uses:       wire.Uses,
		When:       wire.When,
		Retry:      wire.Retry,
		RetryDelay: wire.RetryDelay,
		Timeout:    wire.Timeout,
		UI:         ui,
		Extra:      all,
	}
	return nil
}

// DisplayName returns the editor label of the step's kind.
func (s *Step) DisplayName() string {
	return s.Kind.DisplayName()
}
