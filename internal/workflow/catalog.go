package workflow

type kindInfo struct {
	name          string
	description   string
	category      string
	newParams     func() Params
	inputs        []Field
	outputs       []Field
	dynamicInputs bool
}

var kindOrder = []Kind{
	KindQwenPrompt,
	KindVisionPrompt,
	KindRunningHubApp,
	KindGeminiEdit,
	KindGeminiEditCustom,
	KindGeminiGenerate,
	KindGeminiGenerateModel,
	KindCompareImage,
	KindKlingImage2Video,
	KindGeminiModelFromClothes,
	KindGeminiEcom,
	KindGeminiPattern,
}

var (
	promptOutputs = []Field{
		{Name: "prompt", Type: FieldText, Description: "生成的文本提示词"},
		{Name: "result", Type: FieldJSON, Description: "完整的响应结果"},
	}
	imageOutputs = []Field{
		{Name: "result", Type: FieldJSON, Description: "生成结果"},
		{Name: "image", Type: FieldImage, Description: "生成的图片"},
	}
	batchImageOutputs = []Field{
		{Name: "result", Type: FieldJSON, Description: "生成结果"},
		{Name: "images", Type: FieldImage, Description: "生成的图片（数组）", Multiple: true},
	}
)

var catalog = map[Kind]kindInfo{
	KindQwenPrompt: {
		name:        "Qwen 提示词",
		description: "使用 Qwen 模型分析图片并生成描述提示词",
		category:    "输入",
		newParams:   func() Params { return NewQwenPromptParams() },
		outputs:     promptOutputs,
	},
	KindVisionPrompt: {
		name:        "视觉提示词",
		description: "使用 AI 模型（Qwen/Gemini）分析图片并生成描述提示词，支持多个提供商",
		category:    "输入",
		newParams:   func() Params { return NewVisionPromptParams() },
		outputs:     promptOutputs,
	},
	KindRunningHubApp: {
		name:        "RunningHub 应用",
		description: "调用 RunningHub 应用（如试衣、换装等）",
		category:    "处理",
		newParams:   func() Params { return NewRunningHubAppParams() },
		inputs: []Field{
			{Name: "prompt", Type: FieldText, Description: "文本提示词（可选）", Optional: true},
			{Name: "image", Type: FieldImage, Description: "图片输入（可选）", Optional: true},
		},
		outputs: []Field{
			{Name: "result", Type: FieldJSON, Description: "应用执行结果"},
			{Name: "images", Type: FieldImage, Description: "生成的图片（数组）", Multiple: true},
		},
		dynamicInputs: true,
	},
	KindGeminiEdit: {
		name:        "Gemini 换装",
		description: "使用 Gemini 进行换装（预设模式，自动生成提示词）",
		category:    "处理",
		newParams:   func() Params { return NewGeminiEditParams() },
		inputs: []Field{
			{Name: "base_image", Type: FieldImage, Description: "基础图片"},
			{Name: "top_image", Type: FieldImage, Description: "上衣图片（可选）", Optional: true},
			{Name: "bottom_image", Type: FieldImage, Description: "下装图片（可选）", Optional: true},
			{Name: "prompt", Type: FieldText, Description: "提示词（可选）", Optional: true},
		},
		outputs: []Field{
			{Name: "result", Type: FieldJSON, Description: "编辑结果"},
			{Name: "image", Type: FieldImage, Description: "编辑后的图片"},
		},
	},
	KindGeminiEditCustom: {
		name:        "Gemini 自定义编辑",
		description: "使用 Gemini 进行自定义图片编辑（需要手动输入提示词）",
		category:    "处理",
		newParams:   func() Params { return NewGeminiEditCustomParams() },
		inputs: []Field{
			{Name: "image", Type: FieldImage, Description: "输入图片"},
			{Name: "prompt", Type: FieldText, Description: "自定义提示词"},
		},
		outputs: []Field{
			{Name: "result", Type: FieldJSON, Description: "编辑结果"},
			{Name: "image", Type: FieldImage, Description: "编辑后的图片"},
		},
	},
	KindGeminiGenerate: {
		name:        "Gemini 文生图",
		description: "使用 Gemini 从文本提示词生成图片",
		category:    "生成",
		newParams:   func() Params { return NewGeminiGenerateParams() },
		inputs:      []Field{{Name: "prompt", Type: FieldText, Description: "文本提示词"}},
		outputs:     imageOutputs,
	},
	KindGeminiGenerateModel: {
		name:        "Gemini 生模特",
		description: "使用 Gemini 生成模特图片（基于提示词）",
		category:    "生成",
		newParams:   func() Params { return NewGeminiGenerateModelParams() },
		inputs:      []Field{{Name: "prompt", Type: FieldText, Description: "提示词模板"}},
		outputs: []Field{
			{Name: "result", Type: FieldJSON, Description: "生成结果"},
			{Name: "image", Type: FieldImage, Description: "生成的模特图片"},
		},
	},
	KindCompareImage: {
		name:        "对比图生成",
		description: "将原图和新图拼接在一起生成对比图",
		category:    "处理",
		newParams:   func() Params { return NewCompareImageParams() },
		inputs: []Field{
			{Name: "original_image", Type: FieldImage, Description: "原图"},
			{Name: "new_image", Type: FieldImage, Description: "新图"},
		},
		outputs: []Field{
			{Name: "result", Type: FieldJSON, Description: "生成结果"},
			{Name: "image", Type: FieldImage, Description: "对比图"},
		},
	},
	KindKlingImage2Video: {
		name:        "可灵图生视频",
		description: "使用 Kling AI 将图片转换为视频",
		category:    "生成",
		newParams:   func() Params { return NewKlingImage2VideoParams() },
		inputs:      []Field{{Name: "base_image", Type: FieldImage, Description: "基础图片"}},
		outputs: []Field{
			{Name: "result", Type: FieldJSON, Description: "生成结果"},
			{Name: "video", Type: FieldString, Description: "视频文件路径"},
		},
	},
	KindGeminiModelFromClothes: {
		name:        "Gemini 生模特（服装图）",
		description: "根据服装正面背面图生成模特展示图",
		category:    "生成",
		newParams:   func() Params { return NewGeminiModelFromClothesParams() },
		inputs: []Field{
			{Name: "front_image", Type: FieldImage, Description: "服装正面图", Multiple: true},
			{Name: "back_image", Type: FieldImage, Description: "服装背面图（可选）", Optional: true, Multiple: true},
			{Name: "prompt", Type: FieldText, Description: "打标提示词（可选）", Optional: true},
		},
		outputs: batchImageOutputs,
	},
	KindGeminiEcom: {
		name:        "Gemini 电商图",
		description: "生成电商图（主图/背面/细节）",
		category:    "生成",
		newParams:   func() Params { return NewGeminiEcomParams() },
		inputs:      []Field{{Name: "image", Type: FieldImage, Description: "服装图片", Multiple: true}},
		outputs:     batchImageOutputs,
	},
	KindGeminiPattern: {
		name:        "Gemini 图案生成",
		description: "生成图案（图形/无缝/Mockup）",
		category:    "生成",
		newParams:   func() Params { return NewGeminiPatternParams() },
		inputs: []Field{
			{Name: "image", Type: FieldImage, Description: "参考图片", Optional: true, Multiple: true},
			{Name: "prompt", Type: FieldText, Description: "图案描述（可选）", Optional: true},
		},
		outputs: batchImageOutputs,
	},
}
