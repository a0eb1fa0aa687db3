package workflow_test

import (
	"context"
	"errors"
	"testing"

	"keroro/internal/workflow"
)

type stubResolver struct {
	fields []workflow.Field
	err    error
	calls  int
}

func (s *stubResolver) RunningHubInputs(context.Context, string) ([]workflow.Field, error) {
	s.calls++
	return s.fields, s.err
}

func TestIsCompatible(t *testing.T) {
	tests := []struct {
		from, to workflow.FieldType
		want     bool
	}{
		{workflow.FieldAny, workflow.FieldImage, true},
		{workflow.FieldImage, workflow.FieldAny, true},
		{workflow.FieldImage, workflow.FieldImage, true},
		{workflow.FieldText, workflow.FieldString, true},
		{workflow.FieldString, workflow.FieldText, true},
		{workflow.FieldImage, workflow.FieldJSON, true},
		{workflow.FieldJSON, workflow.FieldText, false},
		{workflow.FieldText, workflow.FieldImage, false},
		{workflow.FieldNumber, workflow.FieldBoolean, false},
	}
	for _, tt := range tests {
		if got := workflow.IsCompatible(tt.from, tt.to); got != tt.want {
			t.Fatalf("IsCompatible(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestParseFieldType(t *testing.T) {
	if got := workflow.ParseFieldType("image"); got != workflow.FieldImage {
		t.Fatalf("expected IMAGE, got %s", got)
	}
	if got := workflow.ParseFieldType("LIST"); got != workflow.FieldAny {
		t.Fatalf("expected ANY for unknown type, got %s", got)
	}
}

func mustStep(t *testing.T, kind workflow.Kind) *workflow.Step {
	t.Helper()
	step, err := workflow.CreateStep(kind)
	if err != nil {
		t.Fatalf("CreateStep(%s): %v", kind, err)
	}
	return step
}

func TestCheckConnectionStaticKinds(t *testing.T) {
	ctx := context.Background()
	prompt := mustStep(t, workflow.KindQwenPrompt)
	generate := mustStep(t, workflow.KindGeminiGenerateModel)
	compare := mustStep(t, workflow.KindCompareImage)

	if res := workflow.CheckConnection(ctx, nil, prompt, "prompt", generate, "prompt"); !res.Valid {
		t.Fatalf("expected prompt -> prompt to connect, got %q", res.Error)
	}
	res := workflow.CheckConnection(ctx, nil, prompt, "prompt", compare, "new_image")
	if res.Valid || res.Error != "类型不兼容: TEXT -> IMAGE" {
		t.Fatalf("unexpected result: %+v", res)
	}
	res = workflow.CheckConnection(ctx, nil, prompt, "image", compare, "new_image")
	if res.Error != "源节点没有输出字段: image" {
		t.Fatalf("unexpected missing output error: %q", res.Error)
	}
	res = workflow.CheckConnection(ctx, nil, generate, "image", compare, "mask")
	if res.Error != "目标节点没有输入字段: mask" {
		t.Fatalf("unexpected missing input error: %q", res.Error)
	}
	res = workflow.CheckConnection(ctx, nil, nil, "image", compare, "mask")
	if res.Valid || res.Error == "" {
		t.Fatalf("expected missing step error, got %+v", res)
	}
}

func TestCheckConnectionUsesDynamicInputs(t *testing.T) {
	ctx := context.Background()
	generate := mustStep(t, workflow.KindGeminiGenerateModel)
	app := mustStep(t, workflow.KindRunningHubApp)
	resolver := &stubResolver{fields: []workflow.Field{
		{Name: "face", Type: workflow.FieldImage},
		{Name: "steps", Type: workflow.FieldNumber},
	}}

	if res := workflow.CheckConnection(ctx, resolver, generate, "image", app, "face"); !res.Valid {
		t.Fatalf("expected image -> face to connect, got %q", res.Error)
	}
	res := workflow.CheckConnection(ctx, resolver, generate, "image", app, "steps")
	if res.Error != "类型不兼容: IMAGE -> NUMBER" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if resolver.calls != 2 {
		t.Fatalf("expected resolver per check, got %d calls", resolver.calls)
	}
}

func TestResolveInputsFallsBackToStatic(t *testing.T) {
	app := mustStep(t, workflow.KindRunningHubApp)
	resolver := &stubResolver{err: errors.New("offline")}

	fields := workflow.ResolveInputs(context.Background(), resolver, app)
	if len(fields) != len(workflow.Inputs(workflow.KindRunningHubApp)) {
		t.Fatalf("expected static inputs on failure, got %+v", fields)
	}

	app.Params.(*workflow.RunningHubAppParams).WebAppID = ""
	resolver.err = nil
	_ = workflow.ResolveInputs(context.Background(), resolver, app)
	if resolver.calls != 1 {
		t.Fatalf("expected no lookup without a webapp id, got %d calls", resolver.calls)
	}
}

func TestKindsCatalog(t *testing.T) {
	kinds := workflow.Kinds()
	if len(kinds) != 12 {
		t.Fatalf("expected 12 kinds, got %d", len(kinds))
	}
	for _, kind := range kinds {
		if kind.DisplayName() == string(kind) {
			t.Fatalf("kind %s has no display name", kind)
		}
		if len(workflow.Outputs(kind)) == 0 {
			t.Fatalf("kind %s declares no outputs", kind)
		}
	}
	if _, err := workflow.ParseKind("nope"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if !workflow.KindGeminiGenerate.Legacy() || workflow.KindGeminiGenerateModel.Legacy() {
		t.Fatal("unexpected legacy flags")
	}
}
