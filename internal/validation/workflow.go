package validation

// StepShape is the structural view of one step that the workflow check needs.
type StepShape struct {
	ID        string
	Type      string
	HasParams bool
}

// Workflow is implemented by documents that can be structurally validated.
// StepShapes returns nil when the document carries no steps list at all.
type Workflow interface {
	WorkerLimit() (int, bool)
	StepShapes() []StepShape
}

// RequireValidWorkflow checks the document structure only. Kind specific
// parameter completeness is left to the backend.
func RequireValidWorkflow(doc Workflow) error {
	if doc == nil {
		return fail("workflow", "工作流不能为空")
	}
	steps := doc.StepShapes()
	if steps == nil {
		return fail("steps", "工作流必须包含 steps 数组")
	}
	if len(steps) == 0 {
		return fail("steps", "工作流至少需要包含一个步骤")
	}
	seen := make(map[string]struct{}, len(steps))
	for i, step := range steps {
		if err := requireStep(step, i); err != nil {
			return err
		}
		if _, dup := seen[step.ID]; dup {
			return fail("steps", "步骤 %d 的 id 重复: %s", i+1, step.ID)
		}
		seen[step.ID] = struct{}{}
	}
	if limit, ok := doc.WorkerLimit(); ok {
		if err := RequireNumberInRange(limit, 1, 16, "最大并发数"); err != nil {
			return err
		}
	}
	return nil
}

func requireStep(step StepShape, index int) error {
	if step.ID == "" {
		return fail("steps", "步骤 %d缺少有效的 id", index+1)
	}
	if step.Type == "" {
		return fail("steps", "步骤 %d缺少有效的 type", index+1)
	}
	if !step.HasParams {
		return fail("steps", "步骤 %d缺少有效的 params 对象", index+1)
	}
	return nil
}
