package workflow

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cast"
	"github.com/xeipuuv/gojsonschema"
)

// ParseNodeInfo extracts input fields from a RunningHub node-info document.
// The list may sit at nodeInfoList, data.nodeInfoList or be the document
// itself. Entries without a field name or type are skipped.
func ParseNodeInfo(data []byte) ([]Field, error) {
	var envelope any
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode node info: %w", err)
	}
	list := nodeInfoList(envelope)
	fields := make([]Field, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := cast.ToString(entry["fieldName"])
		fieldType := cast.ToString(entry["fieldType"])
		if name == "" || fieldType == "" {
			continue
		}
		description := cast.ToString(entry["description"])
		if description == "" {
			description = name + " 字段"
		}
		optional := true
		if flag, ok := entry["optional"].(bool); ok && !flag {
			optional = false
		}
		fields = append(fields, Field{
			Name:        name,
			Type:        ParseFieldType(fieldType),
			Description: description,
			Optional:    optional,
			NodeID:      cast.ToString(entry["nodeId"]),
		})
	}
	return fields, nil
}

func nodeInfoList(envelope any) []any {
	switch v := envelope.(type) {
	case []any:
		return v
	case map[string]any:
		if list, ok := v["nodeInfoList"].([]any); ok {
			return list
		}
		if inner, ok := v["data"].(map[string]any); ok {
			if list, ok := inner["nodeInfoList"].([]any); ok {
				return list
			}
		}
	}
	return nil
}

// DynamicInputs is the resolved input list of a runninghub_app webapp.
// Fallback is set when the static declaration was used instead.
type DynamicInputs struct {
	WebAppID string  `json:"webapp_id"`
	Fields   []Field `json:"fields"`
	Fallback bool    `json:"fallback"`
}

// BindingsSchema describes a bindings object whose keys are the webapp's
// input field names.
func (d DynamicInputs) BindingsSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	for _, field := range d.Fields {
		props.Set(field.Name, &jsonschema.Schema{Description: field.Description})
	}
	return &jsonschema.Schema{
		Version:              schemaDraft,
		Title:                "bindings " + d.WebAppID,
		Type:                 "object",
		Properties:           props,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

// CheckBindings reports binding keys the webapp does not declare.
func (d DynamicInputs) CheckBindings(bindings map[string]any) ([]Finding, error) {
	if bindings == nil {
		bindings = map[string]any{}
	}
	schemaDoc := d.BindingsSchema()
	schemaDoc.Version = ""
	encodedSchema, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, fmt.Errorf("encode bindings schema: %w", err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(encodedSchema))
	if err != nil {
		return nil, fmt.Errorf("compile bindings schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(bindings))
	if err != nil {
		return nil, fmt.Errorf("validate bindings: %w", err)
	}
	var findings []Finding
	for _, desc := range result.Errors() {
		field := desc.Field()
		if property, ok := desc.Details()["property"].(string); ok && property != "" {
			field = property
		}
		findings = append(findings, Finding{
			Field:   "bindings." + strings.TrimPrefix(field, "(root)."),
			Message: desc.Description(),
		})
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].Field < findings[j].Field })
	return findings, nil
}
