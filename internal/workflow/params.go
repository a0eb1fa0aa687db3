package workflow

import "strings"

// Params is the kind-specific parameter record of a step. Each variant is a
// pointer to one of the *Params structs in this file.
type Params interface {
	Kind() Kind
}

// stepReferencer is implemented by variants whose fields can name other
// steps (image sources, prompt sources).
type stepReferencer interface {
	references() []paramReference
}

type paramReference struct {
	field  string
	target string
}

func refs(field string, targets ...string) []paramReference {
	out := make([]paramReference, 0, len(targets))
	for _, target := range targets {
		out = append(out, paramReference{field: field, target: target})
	}
	return out
}

// PersonaOptions are the subject presets shared by the prompt kinds.
type PersonaOptions struct {
	Preset               string   `json:"preset"`
	IPMode               string   `json:"ip_mode" jsonschema:"enum=auto,enum=force_ip"`
	AgeGroup             string   `json:"age_group"`
	Gender               string   `json:"gender" jsonschema:"enum=female,enum=male"`
	EthnicityPreset      string   `json:"ethnicity_preset,omitempty"`
	StyleMode            string   `json:"style_mode,omitempty"`
	ScenePreset          string   `json:"scene_preset,omitempty"`
	PoseConstraint       string   `json:"pose_constraint,omitempty"`
	ExpressionConstraint string   `json:"expression_constraint,omitempty"`
	ActionConstraint     string   `json:"action_constraint,omitempty"`
	Model                string   `json:"model,omitempty"`
	Temperature          *float64 `json:"temperature,omitempty" jsonschema:"minimum=0,maximum=2"`
	TopP                 *float64 `json:"top_p,omitempty" jsonschema:"minimum=0,maximum=1"`
	MaxTokens            *int     `json:"max_tokens,omitempty" jsonschema:"minimum=1"`
}

func defaultPersona() PersonaOptions {
	return PersonaOptions{
		Preset:   "home",
		IPMode:   "auto",
		AgeGroup: "big_kid",
		Gender:   "female",
	}
}

// QwenPromptParams configures qwen_prompt steps.
type QwenPromptParams struct {
	PersonaOptions
	Extra map[string]any `json:"-"`
}

// NewQwenPromptParams returns the default qwen_prompt parameters.
func NewQwenPromptParams() *QwenPromptParams {
	return &QwenPromptParams{PersonaOptions: defaultPersona()}
}

func (*QwenPromptParams) Kind() Kind { return KindQwenPrompt }

func (p *QwenPromptParams) MarshalJSON() ([]byte, error) {
	type plain QwenPromptParams
	return marshalWithExtra((*plain)(p), p.Extra)
}

func (p *QwenPromptParams) UnmarshalJSON(data []byte) error {
	type plain QwenPromptParams
	extra, err := unmarshalWithExtra(data, (*plain)(p))
	if err != nil {
		return err
	}
	p.Extra = extra
	return nil
}

// VisionPromptParams configures vision_prompt steps.
type VisionPromptParams struct {
	Provider string `json:"provider"`
	PersonaOptions
	Extra map[string]any `json:"-"`
}

// NewVisionPromptParams returns the default vision_prompt parameters.
func NewVisionPromptParams() *VisionPromptParams {
	return &VisionPromptParams{Provider: "qwen", PersonaOptions: defaultPersona()}
}

func (*VisionPromptParams) Kind() Kind { return KindVisionPrompt }

func (p *VisionPromptParams) MarshalJSON() ([]byte, error) {
	type plain VisionPromptParams
	return marshalWithExtra((*plain)(p), p.Extra)
}

func (p *VisionPromptParams) UnmarshalJSON(data []byte) error {
	type plain VisionPromptParams
	extra, err := unmarshalWithExtra(data, (*plain)(p))
	if err != nil {
		return err
	}
	p.Extra = extra
	return nil
}

// RunningHubAppParams configures runninghub_app steps. BindingsJSON holds the
// manually edited bindings text; Bindings holds already parsed bindings as
// found in submitted payloads and saved templates.
type RunningHubAppParams struct {
	WebAppID       string         `json:"webapp_id"`
	InstanceType   string         `json:"instance_type"`
	FilenameSuffix string         `json:"filename_suffix"`
	AutoBind       bool           `json:"auto_bind"`
	BindingsJSON   *string        `json:"bindingsJson,omitempty"`
	Bindings       map[string]any `json:"bindings,omitempty"`
	PromptFromStep string         `json:"prompt_from_step,omitempty"`
	PromptJSONKey  string         `json:"prompt_json_key,omitempty"`
	Extra          map[string]any `json:"-"`
}

// NewRunningHubAppParams returns the default runninghub_app parameters.
func NewRunningHubAppParams() *RunningHubAppParams {
	bindings := "{}"
	return &RunningHubAppParams{
		WebAppID:       "1991820192487460866",
		InstanceType:   "plus",
		FilenameSuffix: "tongmo_home",
		AutoBind:       true,
		BindingsJSON:   &bindings,
	}
}

func (*RunningHubAppParams) Kind() Kind { return KindRunningHubApp }

// SetBindingsJSON stores manually edited bindings. Any text other than an
// empty object turns smart binding off, as the editor does.
func (p *RunningHubAppParams) SetBindingsJSON(text string) {
	p.BindingsJSON = &text
	trimmed := strings.TrimSpace(text)
	p.AutoBind = trimmed == "" || trimmed == "{}"
}

func (p *RunningHubAppParams) references() []paramReference {
	return refs("prompt_from_step", p.PromptFromStep)
}

func (p *RunningHubAppParams) MarshalJSON() ([]byte, error) {
	type plain RunningHubAppParams
	return marshalWithExtra((*plain)(p), p.Extra)
}

func (p *RunningHubAppParams) UnmarshalJSON(data []byte) error {
	type plain RunningHubAppParams
	extra, err := unmarshalWithExtra(data, (*plain)(p))
	if err != nil {
		return err
	}
	p.Extra = extra
	return nil
}

// GeminiEditParams configures preset-driven try-on edits.
type GeminiEditParams struct {
	Provider        string         `json:"provider"`
	Mode            string         `json:"mode" jsonschema:"enum=single,enum=multi"`
	Preset          string         `json:"preset"`
	BaseFrom        string         `json:"base_from"`
	ClothSlotTop    string         `json:"cloth_slot_top"`
	ClothSlotBottom string         `json:"cloth_slot_bottom"`
	TargetPart      string         `json:"target_part" jsonschema:"enum=full,enum=top,enum=bottom"`
	CropMode        string         `json:"crop_mode" jsonschema:"enum=none,enum=auto_from_part"`
	PromptVersion   string         `json:"prompt_version" jsonschema:"enum=legacy,enum=v1,enum=v2,enum=v3"`
	FilenameSuffix  string         `json:"filename_suffix"`
	Prompt          string         `json:"prompt"`
	AgeGroup        string         `json:"age_group,omitempty"`
	Gender          string         `json:"gender,omitempty"`
	ScenePreset     string         `json:"scene_preset,omitempty"`
	Extra           map[string]any `json:"-"`
}

// NewGeminiEditParams returns the default gemini_edit parameters.
func NewGeminiEditParams() *GeminiEditParams {
	return &GeminiEditParams{
		Provider:        "t8star",
		Mode:            "multi",
		Preset:          "home",
		BaseFrom:        "slot1",
		ClothSlotTop:    "slot2",
		ClothSlotBottom: "slot3",
		TargetPart:      "full",
		CropMode:        "none",
		PromptVersion:   "legacy",
		FilenameSuffix:  "tryon",
	}
}

func (*GeminiEditParams) Kind() Kind { return KindGeminiEdit }

func (p *GeminiEditParams) references() []paramReference {
	out := refs("base_from", p.BaseFrom)
	out = append(out, refs("cloth_slot_top", p.ClothSlotTop)...)
	return append(out, refs("cloth_slot_bottom", p.ClothSlotBottom)...)
}

func (p *GeminiEditParams) MarshalJSON() ([]byte, error) {
	type plain GeminiEditParams
	return marshalWithExtra((*plain)(p), p.Extra)
}

func (p *GeminiEditParams) UnmarshalJSON(data []byte) error {
	type plain GeminiEditParams
	extra, err := unmarshalWithExtra(data, (*plain)(p))
	if err != nil {
		return err
	}
	p.Extra = extra
	return nil
}

// GeminiEditCustomParams configures free-form prompt edits.
type GeminiEditCustomParams struct {
	Provider             string         `json:"provider"`
	ImageSources         []string       `json:"image_sources"`
	OutputCount          int            `json:"output_count" jsonschema:"minimum=1,maximum=4"`
	FilenameSuffix       string         `json:"filename_suffix"`
	Prompt               string         `json:"prompt"`
	PromptFromStep       string         `json:"prompt_from_step,omitempty"`
	PromptJSONKey        string         `json:"prompt_json_key,omitempty"`
	ExtraImagesFromSteps []string       `json:"extra_images_from_steps,omitempty"`
	Extra                map[string]any `json:"-"`
}

// NewGeminiEditCustomParams returns the default gemini_edit_custom parameters.
func NewGeminiEditCustomParams() *GeminiEditCustomParams {
	return &GeminiEditCustomParams{
		Provider:       "t8star",
		ImageSources:   []string{"slot1"},
		OutputCount:    1,
		FilenameSuffix: "custom_edit",
	}
}

func (*GeminiEditCustomParams) Kind() Kind { return KindGeminiEditCustom }

func (p *GeminiEditCustomParams) references() []paramReference {
	out := refs("image_sources", p.ImageSources...)
	out = append(out, refs("prompt_from_step", p.PromptFromStep)...)
	return append(out, refs("extra_images_from_steps", p.ExtraImagesFromSteps...)...)
}

func (p *GeminiEditCustomParams) MarshalJSON() ([]byte, error) {
	type plain GeminiEditCustomParams
	return marshalWithExtra((*plain)(p), p.Extra)
}

func (p *GeminiEditCustomParams) UnmarshalJSON(data []byte) error {
	type plain GeminiEditCustomParams
	extra, err := unmarshalWithExtra(data, (*plain)(p))
	if err != nil {
		return err
	}
	p.Extra = extra
	return nil
}

// GeminiImageOptions are shared by the text-to-image kinds.
type GeminiImageOptions struct {
	Provider       string `json:"provider"`
	AspectRatio    string `json:"aspect_ratio"`
	ImageSize      string `json:"image_size,omitempty" jsonschema:"enum=1K,enum=2K,enum=4K"`
	BasePromptFrom string `json:"base_prompt_from,omitempty"`
	PromptJSONKey  string `json:"prompt_json_key,omitempty"`
	PromptVersion  string `json:"prompt_version,omitempty"`
	AgeGroup       string `json:"age_group,omitempty"`
	ScenePreset    string `json:"scene_preset,omitempty"`
	FilenameSuffix string `json:"filename_suffix,omitempty"`
}

func (o GeminiImageOptions) references() []paramReference {
	return refs("base_prompt_from", o.BasePromptFrom)
}

// GeminiGenerateParams configures the legacy gemini_generate kind.
type GeminiGenerateParams struct {
	GeminiImageOptions
	Prompt string         `json:"prompt"`
	Extra  map[string]any `json:"-"`
}

// NewGeminiGenerateParams returns the default gemini_generate parameters.
func NewGeminiGenerateParams() *GeminiGenerateParams {
	return &GeminiGenerateParams{GeminiImageOptions: GeminiImageOptions{Provider: "t8star", AspectRatio: "3:4"}}
}

func (*GeminiGenerateParams) Kind() Kind { return KindGeminiGenerate }

func (p *GeminiGenerateParams) MarshalJSON() ([]byte, error) {
	type plain GeminiGenerateParams
	return marshalWithExtra((*plain)(p), p.Extra)
}

func (p *GeminiGenerateParams) UnmarshalJSON(data []byte) error {
	type plain GeminiGenerateParams
	extra, err := unmarshalWithExtra(data, (*plain)(p))
	if err != nil {
		return err
	}
	p.Extra = extra
	return nil
}

// GeminiGenerateModelParams configures gemini_generate_model steps.
type GeminiGenerateModelParams struct {
	GeminiImageOptions
	PromptTemplate string         `json:"prompt_template"`
	Prompt         string         `json:"prompt,omitempty"`
	Extra          map[string]any `json:"-"`
}

// NewGeminiGenerateModelParams returns the default gemini_generate_model parameters.
func NewGeminiGenerateModelParams() *GeminiGenerateModelParams {
	return &GeminiGenerateModelParams{GeminiImageOptions: GeminiImageOptions{Provider: "t8star", AspectRatio: "3:4"}}
}

func (*GeminiGenerateModelParams) Kind() Kind { return KindGeminiGenerateModel }

func (p *GeminiGenerateModelParams) MarshalJSON() ([]byte, error) {
	type plain GeminiGenerateModelParams
	return marshalWithExtra((*plain)(p), p.Extra)
}

func (p *GeminiGenerateModelParams) UnmarshalJSON(data []byte) error {
	type plain GeminiGenerateModelParams
	extra, err := unmarshalWithExtra(data, (*plain)(p))
	if err != nil {
		return err
	}
	p.Extra = extra
	return nil
}

// CompareImageParams configures side-by-side comparison images.
type CompareImageParams struct {
	OriginalSource string         `json:"original_source"`
	NewSource      string         `json:"new_source"`
	FilenameSuffix string         `json:"filename_suffix,omitempty"`
	Extra          map[string]any `json:"-"`
}

// NewCompareImageParams returns the default compare_image parameters.
func NewCompareImageParams() *CompareImageParams {
	return &CompareImageParams{OriginalSource: "slot1"}
}

func (*CompareImageParams) Kind() Kind { return KindCompareImage }

func (p *CompareImageParams) references() []paramReference {
	return append(refs("original_source", p.OriginalSource), refs("new_source", p.NewSource)...)
}

func (p *CompareImageParams) MarshalJSON() ([]byte, error) {
	type plain CompareImageParams
	return marshalWithExtra((*plain)(p), p.Extra)
}

func (p *CompareImageParams) UnmarshalJSON(data []byte) error {
	type plain CompareImageParams
	extra, err := unmarshalWithExtra(data, (*plain)(p))
	if err != nil {
		return err
	}
	p.Extra = extra
	return nil
}

const defaultKlingPrompt = "把小朋友和衣服做成轻微的动作，像是在开心走路或转身展示衣服，动作自然柔和，不要夸张摇晃。"

// KlingImage2VideoParams configures image-to-video generation.
type KlingImage2VideoParams struct {
	BaseFrom       string         `json:"base_from"`
	ImageIndex     int            `json:"image_index"`
	ModelName      string         `json:"model_name"`
	Mode           string         `json:"mode" jsonschema:"enum=std,enum=pro"`
	Prompt         string         `json:"prompt"`
	NegativePrompt string         `json:"negative_prompt"`
	AspectRatio    string         `json:"aspect_ratio"`
	Duration       int            `json:"duration" jsonschema:"minimum=1"`
	CFGScale       float64        `json:"cfg_scale" jsonschema:"minimum=0,maximum=1"`
	FilenameSuffix string         `json:"filename_suffix"`
	PromptFromStep string         `json:"prompt_from_step,omitempty"`
	PromptJSONKey  string         `json:"prompt_json_key,omitempty"`
	Extra          map[string]any `json:"-"`
}

// NewKlingImage2VideoParams returns the default kling_image2video parameters.
func NewKlingImage2VideoParams() *KlingImage2VideoParams {
	return &KlingImage2VideoParams{
		ImageIndex:     -1,
		ModelName:      "kling-v2-5",
		Mode:           "std",
		Prompt:         defaultKlingPrompt,
		AspectRatio:    "auto",
		Duration:       5,
		CFGScale:       0.5,
		FilenameSuffix: "kling_video",
	}
}

func (*KlingImage2VideoParams) Kind() Kind { return KindKlingImage2Video }

func (p *KlingImage2VideoParams) references() []paramReference {
	return append(refs("base_from", p.BaseFrom), refs("prompt_from_step", p.PromptFromStep)...)
}

func (p *KlingImage2VideoParams) MarshalJSON() ([]byte, error) {
	type plain KlingImage2VideoParams
	return marshalWithExtra((*plain)(p), p.Extra)
}

func (p *KlingImage2VideoParams) UnmarshalJSON(data []byte) error {
	type plain KlingImage2VideoParams
	extra, err := unmarshalWithExtra(data, (*plain)(p))
	if err != nil {
		return err
	}
	p.Extra = extra
	return nil
}

// GeminiModelFromClothesParams configures model shots generated from garment photos.
type GeminiModelFromClothesParams struct {
	Provider       string         `json:"provider"`
	AspectRatio    string         `json:"aspect_ratio" jsonschema:"enum=3:4,enum=4:3,enum=1:1"`
	ImageSize      string         `json:"image_size" jsonschema:"enum=1K,enum=2K,enum=4K"`
	GarmentDesc    string         `json:"garment_desc"`
	SceneStyle     string         `json:"scene_style" jsonschema:"enum=lifestyle,enum=studio,enum=outdoor"`
	ModelPose      string         `json:"model_pose" jsonschema:"enum=natural,enum=sitting,enum=playing"`
	FrontSources   []string       `json:"front_sources"`
	BackSources    []string       `json:"back_sources"`
	PromptFromStep string         `json:"prompt_from_step"`
	PromptJSONKey  string         `json:"prompt_json_key"`
	FilenameSuffix string         `json:"filename_suffix"`
	AgeGroup       string         `json:"age_group,omitempty"`
	ScenePreset    string         `json:"scene_preset,omitempty"`
	Extra          map[string]any `json:"-"`
}

// NewGeminiModelFromClothesParams returns the default gemini_model_from_clothes parameters.
func NewGeminiModelFromClothesParams() *GeminiModelFromClothesParams {
	return &GeminiModelFromClothesParams{
		Provider:       "t8star",
		AspectRatio:    "3:4",
		ImageSize:      "2K",
		GarmentDesc:    "儿童服装套装",
		SceneStyle:     "lifestyle",
		ModelPose:      "natural",
		FrontSources:   []string{"slot1"},
		BackSources:    []string{},
		PromptJSONKey:  "subject",
		FilenameSuffix: "model",
	}
}

func (*GeminiModelFromClothesParams) Kind() Kind { return KindGeminiModelFromClothes }

func (p *GeminiModelFromClothesParams) references() []paramReference {
	out := refs("front_sources", p.FrontSources...)
	out = append(out, refs("back_sources", p.BackSources...)...)
	return append(out, refs("prompt_from_step", p.PromptFromStep)...)
}

func (p *GeminiModelFromClothesParams) MarshalJSON() ([]byte, error) {
	type plain GeminiModelFromClothesParams
	return marshalWithExtra((*plain)(p), p.Extra)
}

func (p *GeminiModelFromClothesParams) UnmarshalJSON(data []byte) error {
	type plain GeminiModelFromClothesParams
	extra, err := unmarshalWithExtra(data, (*plain)(p))
	if err != nil {
		return err
	}
	p.Extra = extra
	return nil
}

// GeminiEcomParams configures e-commerce product shots.
type GeminiEcomParams struct {
	Provider       string         `json:"provider"`
	EnableMain     bool           `json:"enable_main"`
	EnableBack     bool           `json:"enable_back"`
	EnableDetail   bool           `json:"enable_detail"`
	GarmentDesc    string         `json:"garment_desc"`
	Layout         string         `json:"layout" jsonschema:"enum=平铺图,enum=挂拍图"`
	FillMode       string         `json:"fill_mode" jsonschema:"enum=有填充,enum=无填充"`
	ImageSources   []string       `json:"image_sources"`
	DetailTypes    []string       `json:"detail_types"`
	DetailCount    int            `json:"detail_count" jsonschema:"minimum=1"`
	AspectRatio    string         `json:"aspect_ratio"`
	ImageSize      string         `json:"image_size" jsonschema:"enum=1K,enum=2K,enum=4K"`
	FilenameSuffix string         `json:"filename_suffix"`
	Extra          map[string]any `json:"-"`
}

// NewGeminiEcomParams returns the default gemini_ecom parameters.
func NewGeminiEcomParams() *GeminiEcomParams {
	return &GeminiEcomParams{
		Provider:       "t8star",
		EnableMain:     true,
		GarmentDesc:    "儿童服装套装（上衣 + 下装）",
		Layout:         "平铺图",
		FillMode:       "有填充",
		ImageSources:   []string{"slot1", "slot2"},
		DetailTypes:    []string{"collar"},
		DetailCount:    1,
		AspectRatio:    "3:4",
		ImageSize:      "2K",
		FilenameSuffix: "ecom",
	}
}

func (*GeminiEcomParams) Kind() Kind { return KindGeminiEcom }

func (p *GeminiEcomParams) references() []paramReference {
	return refs("image_sources", p.ImageSources...)
}

func (p *GeminiEcomParams) MarshalJSON() ([]byte, error) {
	type plain GeminiEcomParams
	return marshalWithExtra((*plain)(p), p.Extra)
}

func (p *GeminiEcomParams) UnmarshalJSON(data []byte) error {
	type plain GeminiEcomParams
	extra, err := unmarshalWithExtra(data, (*plain)(p))
	if err != nil {
		return err
	}
	p.Extra = extra
	return nil
}

// GeminiPatternParams configures pattern and mockup generation.
type GeminiPatternParams struct {
	Provider       string         `json:"provider"`
	PatternMode    string         `json:"pattern_mode" jsonschema:"enum=graphic,enum=seamless,enum=mockup_set,enum=mockup_single"`
	GenerationMode string         `json:"generation_mode" jsonschema:"enum=Mode A,enum=Mode B,enum=Mode C"`
	StylePreset    string         `json:"style_preset"`
	UserPrompt     string         `json:"user_prompt"`
	ImageSources   []string       `json:"image_sources"`
	AspectRatio    string         `json:"aspect_ratio"`
	ImageSize      string         `json:"image_size" jsonschema:"enum=1K,enum=2K,enum=4K"`
	FilenameSuffix string         `json:"filename_suffix"`
	Extra          map[string]any `json:"-"`
}

// NewGeminiPatternParams returns the default gemini_pattern parameters.
func NewGeminiPatternParams() *GeminiPatternParams {
	return &GeminiPatternParams{
		Provider:       "t8star",
		PatternMode:    "graphic",
		GenerationMode: "Mode A",
		StylePreset:    "默认 (根据提示词)",
		ImageSources:   []string{"slot1"},
		AspectRatio:    "1:1",
		ImageSize:      "2K",
		FilenameSuffix: "pattern",
	}
}

func (*GeminiPatternParams) Kind() Kind { return KindGeminiPattern }

func (p *GeminiPatternParams) references() []paramReference {
	return refs("image_sources", p.ImageSources...)
}

func (p *GeminiPatternParams) MarshalJSON() ([]byte, error) {
	type plain GeminiPatternParams
	return marshalWithExtra((*plain)(p), p.Extra)
}

func (p *GeminiPatternParams) UnmarshalJSON(data []byte) error {
	type plain GeminiPatternParams
	extra, err := unmarshalWithExtra(data, (*plain)(p))
	if err != nil {
		return err
	}
	p.Extra = extra
	return nil
}
