package workflow

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

const schemaDraft = "https://json-schema.org/draft-07/schema"

// Finding is a non-blocking lint result. The backend stays authoritative on
// whether a step can run.
type Finding struct {
	StepID  string `json:"step_id"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s %s: %s", f.StepID, f.Field, f.Message)
}

var (
	schemaMu    sync.Mutex
	schemaCache = map[Kind]*gojsonschema.Schema{}
)

func newReflector() jsonschema.Reflector {
	return jsonschema.Reflector{
		AllowAdditionalProperties:  true,
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: false,
	}
}

// ParamSchema describes the params object of kind as JSON Schema.
func ParamSchema(kind Kind) (*jsonschema.Schema, error) {
	proto, ok := prototypes[kind]
	if !ok {
		return nil, fmt.Errorf("unknown step type %q", kind)
	}
	reflector := newReflector()
	schema := reflector.Reflect(proto)
	schema.Version = schemaDraft
	schema.Title = kind.DisplayName()
	schema.Description = kind.Description()
	return schema, nil
}

func compiledSchema(kind Kind) (*gojsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if schema, ok := schemaCache[kind]; ok {
		return schema, nil
	}
	doc, err := ParamSchema(kind)
	if err != nil {
		return nil, err
	}
	doc.Version = ""
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s schema: %w", kind, err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(encoded))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", kind, err)
	}
	schemaCache[kind] = schema
	return schema, nil
}

// Lint checks each step's params against its schema and reports condition
// and retry settings the backend would reject.
func (d *Document) Lint() ([]Finding, error) {
	if d == nil {
		return nil, nil
	}
	var findings []Finding
	for _, step := range d.Steps {
		if step == nil {
			continue
		}
		stepFindings, err := lintStep(step)
		if err != nil {
			return nil, err
		}
		findings = append(findings, stepFindings...)
	}
	return findings, nil
}

func lintStep(step *Step) ([]Finding, error) {
	var findings []Finding
	add := func(field, format string, args ...any) {
		findings = append(findings, Finding{StepID: step.ID, Field: field, Message: fmt.Sprintf(format, args...)})
	}
	if !step.Kind.Valid() {
		add("type", "未知步骤类型: %s", step.Kind)
		return findings, nil
	}
	if step.When != nil {
		if step.When.FromStep == "" {
			add("when.from_step", "条件缺少来源步骤")
		}
		if !step.When.Op.Valid() {
			add("when.op", "未知的条件运算符: %s", step.When.Op)
		}
	}
	if step.Retry < 0 {
		add("retry", "重试次数不能为负数")
	}
	if step.Timeout != nil && *step.Timeout < 0 {
		add("timeout", "超时时间不能为负数")
	}
	if isNilParams(step.Params) {
		return findings, nil
	}
	schema, err := compiledSchema(step.Kind)
	if err != nil {
		return nil, err
	}
	params, err := json.Marshal(step.Params)
	if err != nil {
		return nil, fmt.Errorf("step %s: encode params: %w", step.ID, err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(params))
	if err != nil {
		return nil, fmt.Errorf("step %s: validate params: %w", step.ID, err)
	}
	var schemaFindings []Finding
	for _, desc := range result.Errors() {
		schemaFindings = append(schemaFindings, Finding{
			StepID:  step.ID,
			Field:   paramPath(desc.Field()),
			Message: desc.Description(),
		})
	}
	sort.Slice(schemaFindings, func(i, j int) bool {
		if schemaFindings[i].Field != schemaFindings[j].Field {
			return schemaFindings[i].Field < schemaFindings[j].Field
		}
		return schemaFindings[i].Message < schemaFindings[j].Message
	})
	return append(findings, schemaFindings...), nil
}

func paramPath(field string) string {
	if field == "" || field == "(root)" {
		return "params"
	}
	return "params." + field
}
