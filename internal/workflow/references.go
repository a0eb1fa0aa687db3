package workflow

import "regexp"

var slotRef = regexp.MustCompile(`^slot[1-4]$`)

// Reference is a step id mentioned by a step that names no step in the
// document.
type Reference struct {
	StepID string `json:"step_id"`
	Field  string `json:"field"`
	Target string `json:"target"`
}

// IsSlot reports whether ref names one of the four input image slots rather
// than a step.
func IsSlot(ref string) bool {
	return slotRef.MatchString(ref)
}

// DanglingReferences lists references to steps that are not in the
// document. Nothing is repaired; removing a step leaves its references in
// place and this report is how callers find them.
func (d *Document) DanglingReferences() []Reference {
	if d == nil {
		return nil
	}
	ids := make(map[string]struct{}, len(d.Steps))
	for _, step := range d.Steps {
		if step != nil {
			ids[step.ID] = struct{}{}
		}
	}
	var out []Reference
	check := func(stepID, field, target string) {
		if target == "" || IsSlot(target) {
			return
		}
		if _, ok := ids[target]; ok {
			return
		}
		out = append(out, Reference{StepID: stepID, Field: field, Target: target})
	}
	for _, step := range d.Steps {
		if step == nil {
			continue
		}
		for _, used := range step.Uses {
			check(step.ID, "uses", used)
		}
		if step.When != nil {
			check(step.ID, "when.from_step", step.When.FromStep)
		}
		if referencer, ok := step.Params.(stepReferencer); ok && !isNilParams(step.Params) {
			for _, ref := range referencer.references() {
				check(step.ID, "params."+ref.field, ref.target)
			}
		}
	}
	return out
}
