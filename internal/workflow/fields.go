package workflow

import (
	"context"
	"fmt"
	"strings"
)

// FieldType is the data type carried by a step input or output.
type FieldType string

const (
	FieldString  FieldType = "STRING"
	FieldText    FieldType = "TEXT"
	FieldImage   FieldType = "IMAGE"
	FieldNumber  FieldType = "NUMBER"
	FieldBoolean FieldType = "BOOLEAN"
	FieldJSON    FieldType = "JSON"
	FieldAny     FieldType = "ANY"
)

// ParseFieldType maps a remote field type name onto FieldType. Names are
// matched case-insensitively and anything unrecognised becomes FieldAny.
func ParseFieldType(raw string) FieldType {
	switch FieldType(strings.ToUpper(strings.TrimSpace(raw))) {
	case FieldString:
		return FieldString
	case FieldText:
		return FieldText
	case FieldImage:
		return FieldImage
	case FieldNumber:
		return FieldNumber
	case FieldBoolean:
		return FieldBoolean
	case FieldJSON:
		return FieldJSON
	default:
		return FieldAny
	}
}

// Field describes one named input or output of a step kind.
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Description string    `json:"description,omitempty"`
	Optional    bool      `json:"optional,omitempty"`
	Multiple    bool      `json:"multiple,omitempty"`
	NodeID      string    `json:"node_id,omitempty"`
}

// Inputs returns the static input declaration of kind.
func Inputs(kind Kind) []Field {
	return cloneFields(catalog[kind].inputs)
}

// Outputs returns the output declaration of kind.
func Outputs(kind Kind) []Field {
	return cloneFields(catalog[kind].outputs)
}

// HasDynamicInputs reports whether kind discovers its inputs at runtime.
func HasDynamicInputs(kind Kind) bool {
	return catalog[kind].dynamicInputs
}

func cloneFields(fields []Field) []Field {
	if len(fields) == 0 {
		return []Field{}
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

func findField(fields []Field, name string) (Field, bool) {
	for _, field := range fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// IsCompatible reports whether an output of type from may feed an input of
// type to. ANY matches everything, TEXT and STRING are interchangeable and
// JSON inputs accept any producer.
func IsCompatible(from, to FieldType) bool {
	switch {
	case from == FieldAny || to == FieldAny:
		return true
	case from == to:
		return true
	case (from == FieldText && to == FieldString) || (from == FieldString && to == FieldText):
		return true
	case to == FieldJSON:
		return true
	default:
		return false
	}
}

// InputResolver looks up the runtime input fields of a runninghub_app webapp.
type InputResolver interface {
	RunningHubInputs(ctx context.Context, webappID string) ([]Field, error)
}

// ConnectionResult is the answer to a compatibility query.
type ConnectionResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ResolveInputs returns the input fields of step, consulting resolver for
// kinds with dynamic inputs. Resolver failures fall back to the static
// declaration.
func ResolveInputs(ctx context.Context, resolver InputResolver, step *Step) []Field {
	if step == nil {
		return []Field{}
	}
	static := Inputs(step.Kind)
	if !HasDynamicInputs(step.Kind) || resolver == nil {
		return static
	}
	params, ok := step.Params.(*RunningHubAppParams)
	if !ok || params == nil || strings.TrimSpace(params.WebAppID) == "" {
		return static
	}
	fields, err := resolver.RunningHubInputs(ctx, params.WebAppID)
	if err != nil || len(fields) == 0 {
		return static
	}
	return fields
}

// CheckConnection decides whether output fromField of step from may feed
// input toField of step to.
func CheckConnection(ctx context.Context, resolver InputResolver, from *Step, fromField string, to *Step, toField string) ConnectionResult {
	if from == nil || to == nil {
		return ConnectionResult{Error: "连接的步骤不存在"}
	}
	output, ok := findField(Outputs(from.Kind), fromField)
	if !ok {
		return ConnectionResult{Error: fmt.Sprintf("源节点没有输出字段: %s", fromField)}
	}
	input, ok := findField(ResolveInputs(ctx, resolver, to), toField)
	if !ok {
		return ConnectionResult{Error: fmt.Sprintf("目标节点没有输入字段: %s", toField)}
	}
	if !IsCompatible(output.Type, input.Type) {
		return ConnectionResult{Error: fmt.Sprintf("类型不兼容: %s -> %s", output.Type, input.Type)}
	}
	return ConnectionResult{Valid: true}
}
