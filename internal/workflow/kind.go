package workflow

import "fmt"

// Kind identifies the step type, serialized as the step "type" field.
type Kind string

const (
	KindQwenPrompt             Kind = "qwen_prompt"
	KindVisionPrompt           Kind = "vision_prompt"
	KindRunningHubApp          Kind = "runninghub_app"
	KindGeminiEdit             Kind = "gemini_edit"
	KindGeminiEditCustom       Kind = "gemini_edit_custom"
	KindGeminiGenerate         Kind = "gemini_generate"
	KindGeminiGenerateModel    Kind = "gemini_generate_model"
	KindCompareImage           Kind = "compare_image"
	KindKlingImage2Video       Kind = "kling_image2video"
	KindGeminiModelFromClothes Kind = "gemini_model_from_clothes"
	KindGeminiEcom             Kind = "gemini_ecom"
	KindGeminiPattern          Kind = "gemini_pattern"
)

// Kinds returns every step kind in catalog order.
func Kinds() []Kind {
	out := make([]Kind, len(kindOrder))
	copy(out, kindOrder)
	return out
}

// ParseKind validates a raw step type.
func ParseKind(raw string) (Kind, error) {
	kind := Kind(raw)
	if !kind.Valid() {
		return "", fmt.Errorf("unknown step type %q", raw)
	}
	return kind, nil
}

// Valid reports whether k is part of the catalog.
func (k Kind) Valid() bool {
	_, ok := catalog[k]
	return ok
}

// DisplayName returns the human-readable name shown in editors.
func (k Kind) DisplayName() string {
	if info, ok := catalog[k]; ok {
		return info.name
	}
	return string(k)
}

// Description returns a one-line explanation of the kind.
func (k Kind) Description() string {
	if info, ok := catalog[k]; ok {
		return info.description
	}
	return "未知步骤类型"
}

// Category groups kinds into input, processing and generation stages.
func (k Kind) Category() string {
	return catalog[k].category
}

// Legacy reports whether the backend no longer accepts k directly.
func (k Kind) Legacy() bool {
	return k == KindGeminiGenerate
}
