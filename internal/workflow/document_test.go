package workflow

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keroro/internal/services"
)

func stubIDs(t *testing.T, suffixes ...int) {
	t.Helper()
	origNow, origRand := now, randIntN
	t.Cleanup(func() {
		now, randIntN = origNow, origRand
	})
	now = func() time.Time { return time.UnixMilli(1700000000000) }
	next := 0
	randIntN = func(int) int {
		if next >= len(suffixes) {
			return suffixes[len(suffixes)-1]
		}
		v := suffixes[next]
		next++
		return v
	}
}

func TestCreateStepUsesIndependentDefaults(t *testing.T) {
	first, err := CreateStep(KindGeminiEditCustom)
	require.NoError(t, err)
	params := first.Params.(*GeminiEditCustomParams)
	params.ImageSources[0] = "step_x"
	params.OutputCount = 4

	second, err := CreateStep(KindGeminiEditCustom)
	require.NoError(t, err)
	fresh := second.Params.(*GeminiEditCustomParams)
	assert.Equal(t, []string{"slot1"}, fresh.ImageSources)
	assert.Equal(t, 1, fresh.OutputCount)
	assert.Equal(t, []string{}, second.Uses)
	assert.Nil(t, second.When)
	assert.Nil(t, second.UI)
	assert.Regexp(t, regexp.MustCompile(`^step_\d+_\d{1,3}$`), second.ID)
}

func TestCreateStepRejectsUnknownKind(t *testing.T) {
	if _, err := CreateStep(Kind("teleport")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestAddStepRegeneratesCollidingIDs(t *testing.T) {
	stubIDs(t, 7, 7, 8)
	doc := NewDocument(2)

	first, err := doc.AddStep(KindQwenPrompt)
	require.NoError(t, err)
	second, err := doc.AddStep(KindCompareImage)
	require.NoError(t, err)

	assert.Equal(t, "step_1700000000000_7", first.ID)
	assert.Equal(t, "step_1700000000000_8", second.ID)
	assert.Len(t, doc.Steps, 2)
	assert.Equal(t, 1, doc.StepIndex(second.ID))
}

func threeStepDoc(t *testing.T) *Document {
	t.Helper()
	stubIDs(t, 1, 2, 3)
	doc := NewDocument(0)
	for _, kind := range []Kind{KindQwenPrompt, KindGeminiGenerateModel, KindCompareImage} {
		_, err := doc.AddStep(kind)
		require.NoError(t, err)
	}
	return doc
}

func stepIDs(doc *Document) []string {
	ids := make([]string, 0, len(doc.Steps))
	for _, step := range doc.Steps {
		ids = append(ids, step.ID)
	}
	return ids
}

func TestMoveStep(t *testing.T) {
	doc := threeStepDoc(t)
	original := stepIDs(doc)

	assert.False(t, doc.MoveStep(0, -1))
	assert.False(t, doc.MoveStep(2, 1))
	assert.False(t, doc.MoveStep(9, -1))
	assert.Equal(t, original, stepIDs(doc))

	assert.True(t, doc.MoveStep(0, 1))
	assert.Equal(t, []string{original[1], original[0], original[2]}, stepIDs(doc))
	assert.True(t, doc.MoveStep(2, -1))
	assert.Equal(t, []string{original[1], original[2], original[0]}, stepIDs(doc))
}

func TestRemoveStepLeavesReferencesDangling(t *testing.T) {
	doc := threeStepDoc(t)
	ids := stepIDs(doc)
	compare := doc.Steps[2]
	compare.Uses = []string{ids[1]}
	compare.Params.(*CompareImageParams).NewSource = ids[1]
	assert.Empty(t, doc.DanglingReferences())

	removed, ok := doc.RemoveStep(1)
	require.True(t, ok)
	assert.Equal(t, ids[1], removed.ID)
	assert.Equal(t, []string{ids[1]}, compare.Uses)

	refs := doc.DanglingReferences()
	assert.ElementsMatch(t, []Reference{
		{StepID: ids[2], Field: "uses", Target: ids[1]},
		{StepID: ids[2], Field: "params.new_source", Target: ids[1]},
	}, refs)

	_, ok = doc.RemoveStep(5)
	assert.False(t, ok)
}

func TestDanglingReferencesIgnoresSlots(t *testing.T) {
	doc := threeStepDoc(t)
	edit, err := doc.AddStep(KindGeminiEdit)
	require.NoError(t, err)
	edit.When = &Condition{FromStep: "ghost", Field: "prompt", Op: OpContains, Value: "x"}

	refs := doc.DanglingReferences()
	require.Len(t, refs, 1)
	assert.Equal(t, Reference{StepID: edit.ID, Field: "when.from_step", Target: "ghost"}, refs[0])
}

func TestNormalizeUpgradesLegacyKindWithoutMutating(t *testing.T) {
	raw := `{"steps":[{"id":"gen","type":"gemini_generate","params":{"provider":"comfly","aspect_ratio":"1:1","prompt":"a cat","base_prompt_from":"p1","custom_knob":3},"uses":["p1"],"ui":{"x":10,"y":20}}]}`
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	normalized := doc.Normalize()
	assert.Equal(t, KindGeminiGenerate, doc.Steps[0].Kind)
	require.Equal(t, KindGeminiGenerateModel, normalized.Steps[0].Kind)

	params, ok := normalized.Steps[0].Params.(*GeminiGenerateModelParams)
	require.True(t, ok)
	assert.Equal(t, "comfly", params.Provider)
	assert.Equal(t, "1:1", params.AspectRatio)
	assert.Equal(t, "a cat", params.Prompt)
	assert.Equal(t, "p1", params.BasePromptFrom)
	assert.Equal(t, map[string]any{"custom_knob": float64(3)}, params.Extra)
	assert.JSONEq(t, `{"x":10,"y":20}`, string(normalized.Steps[0].UI))
	assert.Equal(t, []string{"p1"}, normalized.Steps[0].Uses)

	assert.Equal(t, normalized, normalized.Normalize())
}

func TestNormalizeKeepsPromptTemplateFromLegacyExtras(t *testing.T) {
	raw := `{"steps":[{"id":"gen","type":"gemini_generate","params":{"prompt_template":"tpl"},"uses":[]}]}`
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	params := doc.Normalize().Steps[0].Params.(*GeminiGenerateModelParams)
	assert.Equal(t, "tpl", params.PromptTemplate)
	assert.Nil(t, params.Extra)
}

func TestDocumentJSONPreservesUnknownParams(t *testing.T) {
	raw := `{"max_workers":2,"steps":[{"id":"a","type":"compare_image","params":{"original_source":"slot1","new_source":"b","custom_flag":true},"uses":[]}]}`
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	encoded, err := json.Marshal(&doc)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(encoded))
}

func TestTemplateRoundTripPreservesNormalizedDocument(t *testing.T) {
	stubIDs(t, 1, 2, 3, 4, 5)
	doc := NewDocument(3)
	for _, kind := range []Kind{KindVisionPrompt, KindRunningHubApp, KindGeminiGenerate, KindKlingImage2Video, KindGeminiEcom} {
		_, err := doc.AddStep(kind)
		require.NoError(t, err)
	}
	delay := 1.5
	doc.Steps[1].Retry = 2
	doc.Steps[1].RetryDelay = &delay
	doc.Steps[2].UI = json.RawMessage(`{"x":1}`)

	saved, err := json.Marshal(doc.Normalize())
	require.NoError(t, err)
	var loaded Document
	require.NoError(t, json.Unmarshal(saved, &loaded))

	assert.Equal(t, doc.Normalize(), loaded.Normalize())
}

func TestUnmarshalRejectsUnknownStepType(t *testing.T) {
	var doc Document
	err := json.Unmarshal([]byte(`{"steps":[{"id":"a","type":"warp","params":{}}]}`), &doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warp")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "missing steps", raw: `{}`, want: "工作流必须包含 steps 数组"},
		{name: "empty steps", raw: `{"steps":[]}`, want: "工作流至少需要包含一个步骤"},
		{name: "missing id", raw: `{"steps":[{"type":"qwen_prompt","params":{}}]}`, want: "步骤 1缺少有效的 id"},
		{name: "missing type", raw: `{"steps":[{"id":"a","params":{}}]}`, want: "步骤 1缺少有效的 type"},
		{name: "missing params", raw: `{"steps":[{"id":"a","type":"qwen_prompt"}]}`, want: "步骤 1缺少有效的 params 对象"},
		{name: "duplicate ids", raw: `{"steps":[{"id":"a","type":"qwen_prompt","params":{}},{"id":"a","type":"qwen_prompt","params":{}}]}`, want: "重复"},
		{name: "worker limit", raw: `{"max_workers":17,"steps":[{"id":"a","type":"qwen_prompt","params":{}}]}`, want: "最大并发数必须在 1 到 16 之间"},
		{name: "valid", raw: `{"max_workers":16,"steps":[{"id":"a","type":"qwen_prompt","params":{}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc Document
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &doc))
			err := doc.Validate()
			if tt.want == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, services.ErrValidation))
			assert.True(t, strings.Contains(err.Error(), tt.want), "got %q", err.Error())
		})
	}
}

func TestValidateNilDocument(t *testing.T) {
	var doc *Document
	err := doc.Validate()
	require.Error(t, err)
	assert.Equal(t, "工作流不能为空", err.Error())
}

func TestSummaryDescribesStep(t *testing.T) {
	step, err := CreateStep(KindKlingImage2Video)
	require.NoError(t, err)
	step.Retry = 2
	assert.Equal(t, []string{"kling-v2-5", "std", "根据输入图", "重试2次"}, Summary(step))

	step.Params = nil
	step.Retry = 0
	assert.Equal(t, []string{"默认配置"}, Summary(step))
}

func TestConditionAcceptsEditorLabels(t *testing.T) {
	cases := map[string]string{
		"labels":  `{"检查哪个步骤":"a","检查什么":"text","怎么比较":"equals","期望值":"yes"}`,
		"aliases": `{"来源步骤":"a","字段名":"text","操作符":"equals","比较值":"yes"}`,
		"english": `{"from_step":"a","field":"text","op":"equals","value":"yes"}`,
		"mixed":   `{"检查哪个步骤":"","from_step":"a","来源步骤":"z","检查什么":"text","怎么比较":"equals","value":"yes","比较值":"no"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var cond Condition
			require.NoError(t, json.Unmarshal([]byte(raw), &cond))
			assert.Equal(t, Condition{FromStep: "a", Field: "text", Op: OpEquals, Value: "yes"}, cond)
		})
	}
}

func TestLabelledConditionSurvivesLoad(t *testing.T) {
	raw := `{"steps":[` +
		`{"id":"a","type":"compare_image","params":{"original_source":"slot1","new_source":"slot2"},"uses":[]},` +
		`{"id":"b","type":"compare_image","params":{"original_source":"slot1","new_source":"a"},"uses":["a"],` +
		`"when":{"检查哪个步骤":"ghost","检查什么":"text","怎么比较":"equals","期望值":"yes"}}]}`
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	payload, err := doc.SubmissionPayload()
	require.NoError(t, err)
	encoded, err := json.Marshal(payload.Steps[1].When)
	require.NoError(t, err)
	assert.JSONEq(t, `{"from_step":"ghost","field":"text","op":"equals","value":"yes"}`, string(encoded))

	refs := doc.DanglingReferences()
	require.Len(t, refs, 1)
	assert.Equal(t, Reference{StepID: "b", Field: "when.from_step", Target: "ghost"}, refs[0])
}

func TestDocumentJSONPreservesUnknownStepFields(t *testing.T) {
	raw := `{"steps":[{"id":"a","type":"compare_image","params":{"original_source":"slot1","new_source":"slot2"},"uses":[],"connections":[{"to":"b","port":"image"}],"note":"keep me"}]}`
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, "keep me", doc.Steps[0].Extra["note"])

	encoded, err := json.Marshal(&doc)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(encoded))

	normalized := doc.Normalize()
	normalized.Steps[0].Extra["note"] = "changed"
	assert.Equal(t, "keep me", doc.Steps[0].Extra["note"])

	payload, err := doc.SubmissionPayload()
	require.NoError(t, err)
	step, err := json.Marshal(payload.Steps[0])
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(step, &fields))
	assert.Equal(t, "keep me", fields["note"])
	assert.Equal(t, []any{map[string]any{"to": "b", "port": "image"}}, fields["connections"])
}
