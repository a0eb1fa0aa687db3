package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runningHubDoc(t *testing.T, bindings string) *Document {
	t.Helper()
	doc := NewDocument(2)
	step, err := doc.AddStep(KindRunningHubApp)
	require.NoError(t, err)
	step.Params.(*RunningHubAppParams).SetBindingsJSON(bindings)
	return doc
}

func TestSubmissionPayloadParsesBindings(t *testing.T) {
	tests := []struct {
		name     string
		bindings string
		want     map[string]any
	}{
		{name: "object", bindings: `{"face":"slot1","strength":0.5}`, want: map[string]any{"face": "slot1", "strength": 0.5}},
		{name: "invalid json", bindings: "not json", want: map[string]any{}},
		{name: "array", bindings: "[1,2]", want: map[string]any{}},
		{name: "blank", bindings: "  ", want: map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := runningHubDoc(t, tt.bindings).SubmissionPayload()
			require.NoError(t, err)
			require.Len(t, payload.Steps, 1)
			params := payload.Steps[0].Params
			assert.NotContains(t, params, "bindingsJson")
			assert.Equal(t, tt.want, params["bindings"])
		})
	}
}

func TestSetBindingsJSONTogglesAutoBind(t *testing.T) {
	params := NewRunningHubAppParams()
	params.SetBindingsJSON(`{"face":"slot1"}`)
	assert.False(t, params.AutoBind)
	params.SetBindingsJSON("{}")
	assert.True(t, params.AutoBind)
}

func TestSubmissionPayloadLeavesOtherKindsAlone(t *testing.T) {
	doc := NewDocument(0)
	step, err := doc.AddStep(KindQwenPrompt)
	require.NoError(t, err)
	step.Params.(*QwenPromptParams).Extra = map[string]any{"bindingsJson": "{}"}

	payload, err := doc.SubmissionPayload()
	require.NoError(t, err)
	assert.Nil(t, payload.MaxWorkers)
	assert.Equal(t, "{}", payload.Steps[0].Params["bindingsJson"])
}

func TestSubmissionPayloadRetryAndTimeout(t *testing.T) {
	doc := NewDocument(1)
	step, err := doc.AddStep(KindCompareImage)
	require.NoError(t, err)
	step.Retry = 2
	zero := 0.0
	step.Timeout = &zero

	payload, err := doc.SubmissionPayload()
	require.NoError(t, err)
	encoded := payload.Steps[0]
	require.NotNil(t, encoded.Retry)
	assert.Equal(t, 2, *encoded.Retry)
	require.NotNil(t, encoded.RetryDelay)
	assert.Equal(t, 3.0, *encoded.RetryDelay)
	assert.Nil(t, encoded.Timeout)
	assert.Equal(t, []string{}, encoded.Uses)

	step.Retry = 0
	payload, err = doc.SubmissionPayload()
	require.NoError(t, err)
	assert.Nil(t, payload.Steps[0].Retry)
	assert.Nil(t, payload.Steps[0].RetryDelay)
}

func TestPreviewMatchesSubmissionPayload(t *testing.T) {
	doc := runningHubDoc(t, `{"face":"slot2"}`)
	step, err := doc.AddStep(KindGeminiEdit)
	require.NoError(t, err)
	step.Uses = []string{doc.Steps[0].ID}
	step.When = &Condition{FromStep: doc.Steps[0].ID, Field: "result", Op: OpExists}
	step.UI = json.RawMessage(`{"x":5}`)
	timeout := 90.0
	step.Timeout = &timeout

	payload, err := doc.SubmissionPayload()
	require.NoError(t, err)
	encoded, err := json.Marshal(payload)
	require.NoError(t, err)
	preview, err := doc.Preview()
	require.NoError(t, err)

	assert.JSONEq(t, string(encoded), preview)

	var generic map[string]any
	require.NoError(t, json.Unmarshal([]byte(preview), &generic))
	steps := generic["steps"].([]any)
	second := steps[1].(map[string]any)
	assert.Equal(t, map[string]any{"x": float64(5)}, second["ui"])
	assert.Equal(t, float64(90), second["timeout"])
	assert.NotContains(t, second, "retry")
}
