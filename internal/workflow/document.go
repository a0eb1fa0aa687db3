package workflow

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/mohae/deepcopy"

	"keroro/internal/validation"
)

// Document is an ordered list of steps plus the optional worker limit. It is
// the form stored in local files and in saved templates.
type Document struct {
	MaxWorkers *int    `json:"max_workers,omitempty"`
	Steps      []*Step `json:"steps"`
}

var (
	now      = time.Now
	randIntN = rand.IntN
)

var prototypes = func() map[Kind]Params {
	out := make(map[Kind]Params, len(catalog))
	for kind, info := range catalog {
		out[kind] = info.newParams()
	}
	return out
}()

// NewDocument returns an empty document. A non-positive maxWorkers leaves
// the limit unset.
func NewDocument(maxWorkers int) *Document {
	doc := &Document{Steps: []*Step{}}
	if maxWorkers > 0 {
		doc.MaxWorkers = &maxWorkers
	}
	return doc
}

// DefaultParams returns an independent copy of the default params of kind.
func DefaultParams(kind Kind) (Params, error) {
	proto, ok := prototypes[kind]
	if !ok {
		return nil, fmt.Errorf("unknown step type %q", kind)
	}
	return deepcopy.Copy(proto).(Params), nil
}

// CreateStep builds a detached step of kind with default params.
func CreateStep(kind Kind) (*Step, error) {
	params, err := DefaultParams(kind)
	if err != nil {
		return nil, err
	}
	return &Step{
		ID:     newStepID(),
		Kind:   kind,
		Params: params,
		Uses:   []string{},
	}, nil
}

func newStepID() string {
	return fmt.Sprintf("step_%d_%d", now().UnixMilli(), randIntN(1000))
}

// AddStep appends a new step of kind and returns it. Ids already used in the
// document are regenerated.
func (d *Document) AddStep(kind Kind) (*Step, error) {
	step, err := CreateStep(kind)
	if err != nil {
		return nil, err
	}
	for attempts := 0; d.StepIndex(step.ID) >= 0; attempts++ {
		if attempts >= 16 {
			step.ID = fmt.Sprintf("%s_%d", step.ID, len(d.Steps))
			break
		}
		step.ID = newStepID()
	}
	d.Steps = append(d.Steps, step)
	return step, nil
}

// MoveStep swaps the step at index with its neighbour in direction (-1 up,
// +1 down). It reports false and leaves the document untouched when either
// position is out of range.
func (d *Document) MoveStep(index, direction int) bool {
	if direction != -1 && direction != 1 {
		return false
	}
	target := index + direction
	if index < 0 || index >= len(d.Steps) || target < 0 || target >= len(d.Steps) {
		return false
	}
	d.Steps[index], d.Steps[target] = d.Steps[target], d.Steps[index]
	return true
}

// RemoveStep deletes the step at index. References to it from other steps
// are left as they are.
func (d *Document) RemoveStep(index int) (*Step, bool) {
	if index < 0 || index >= len(d.Steps) {
		return nil, false
	}
	removed := d.Steps[index]
	d.Steps = append(d.Steps[:index], d.Steps[index+1:]...)
	return removed, true
}

// StepIndex returns the position of the step with id, or -1.
func (d *Document) StepIndex(id string) int {
	if d == nil {
		return -1
	}
	for i, step := range d.Steps {
		if step != nil && step.ID == id {
			return i
		}
	}
	return -1
}

// Step returns the step with id.
func (d *Document) Step(id string) (*Step, bool) {
	if i := d.StepIndex(id); i >= 0 {
		return d.Steps[i], true
	}
	return nil, false
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return deepcopy.Copy(d).(*Document)
}

// Normalize returns a copy with legacy kinds rewritten to their current
// equivalents. The receiver is not modified.
func (d *Document) Normalize() *Document {
	out := d.Clone()
	if out == nil {
		return nil
	}
	for _, step := range out.Steps {
		if step != nil && step.Kind.Legacy() {
			upgradeStep(step)
		}
	}
	return out
}

func upgradeStep(step *Step) {
	switch step.Kind {
	case KindGeminiGenerate:
		step.Kind = KindGeminiGenerateModel
		legacy, ok := step.Params.(*GeminiGenerateParams)
		if !ok || legacy == nil {
			return
		}
		model := &GeminiGenerateModelParams{
			GeminiImageOptions: legacy.GeminiImageOptions,
			Prompt:             legacy.Prompt,
		}
		extra := legacy.Extra
		if raw, found := extra["prompt_template"]; found {
			if template, isString := raw.(string); isString {
				model.PromptTemplate = template
			}
			delete(extra, "prompt_template")
		}
		if len(extra) > 0 {
			model.Extra = extra
		}
		step.Params = model
	}
}

// Validate checks the document structure.
func (d *Document) Validate() error {
	if d == nil {
		return validation.RequireValidWorkflow(nil)
	}
	return validation.RequireValidWorkflow(d)
}

// WorkerLimit implements validation.Workflow.
func (d *Document) WorkerLimit() (int, bool) {
	if d == nil || d.MaxWorkers == nil {
		return 0, false
	}
	return *d.MaxWorkers, true
}

// StepShapes implements validation.Workflow.
func (d *Document) StepShapes() []validation.StepShape {
	if d == nil || d.Steps == nil {
		return nil
	}
	shapes := make([]validation.StepShape, len(d.Steps))
	for i, step := range d.Steps {
		if step == nil {
			continue
		}
		shapes[i] = validation.StepShape{
			ID:        step.ID,
			Type:      string(step.Kind),
			HasParams: !isNilParams(step.Params),
		}
	}
	return shapes
}
