package workflow

import (
	"fmt"
	"strings"
)

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}

// Summary returns short labels describing the notable settings of step, as
// shown next to each step in listings.
func Summary(step *Step) []string {
	if step == nil {
		return nil
	}
	var parts []string
	switch p := step.Params.(type) {
	case *QwenPromptParams:
		parts = append(parts, orDefault(p.Preset, "home"), orDefault(p.IPMode, "auto"))
	case *VisionPromptParams:
		parts = append(parts, orDefault(p.Provider, "qwen"), orDefault(p.Preset, "home"), orDefault(p.IPMode, "auto"))
	case *RunningHubAppParams:
		parts = append(parts, "WebApp: "+truncate(p.WebAppID, 8))
		if p.InstanceType != "" {
			parts = append(parts, p.InstanceType)
		}
	case *GeminiEditParams:
		parts = append(parts, orDefault(p.Provider, "t8star"), orDefault(p.Mode, "multi"), orDefault(p.TargetPart, "full"))
		if p.CropMode == "auto_from_part" {
			parts = append(parts, "自动裁切")
		}
	case *GeminiEditCustomParams:
		count := p.OutputCount
		if count == 0 {
			count = 1
		}
		parts = append(parts, orDefault(p.Provider, "t8star"), fmt.Sprintf("输出%d张", count))
		if len(p.ImageSources) > 0 {
			parts = append(parts, "来源: "+strings.Join(p.ImageSources, ", "))
		}
	case *GeminiGenerateParams:
		parts = append(parts, orDefault(p.Provider, "t8star"), orDefault(p.AspectRatio, "3:4"))
		switch {
		case p.BasePromptFrom != "":
			parts = append(parts, "Prompt来自"+p.BasePromptFrom)
		case p.Prompt != "":
			parts = append(parts, "Prompt: "+truncate(p.Prompt, 20))
		}
	case *GeminiGenerateModelParams:
		parts = append(parts, orDefault(p.Provider, "t8star"), orDefault(p.AspectRatio, "3:4"))
		if p.BasePromptFrom != "" {
			parts = append(parts, "来自"+p.BasePromptFrom)
		}
	case *CompareImageParams:
		parts = append(parts, "原图: "+orDefault(p.OriginalSource, "slot1"))
		if p.NewSource != "" {
			parts = append(parts, "新图: "+p.NewSource)
		}
	case *KlingImage2VideoParams:
		ratio := orDefault(p.AspectRatio, "auto")
		if ratio == "auto" {
			ratio = "根据输入图"
		}
		parts = append(parts, orDefault(p.ModelName, "kling-v2-5"), orDefault(p.Mode, "std"), ratio)
		if p.BaseFrom != "" {
			parts = append(parts, "来自"+p.BaseFrom)
		}
	case *GeminiModelFromClothesParams:
		parts = append(parts, orDefault(p.SceneStyle, "lifestyle"), orDefault(p.ModelPose, "natural"), orDefault(p.ImageSize, "2K"))
	case *GeminiEcomParams:
		var shots []string
		if p.EnableMain {
			shots = append(shots, "主图")
		}
		if p.EnableBack {
			shots = append(shots, "背面")
		}
		if p.EnableDetail {
			shots = append(shots, "细节")
		}
		if len(shots) > 0 {
			parts = append(parts, strings.Join(shots, "/"))
		}
		parts = append(parts, orDefault(p.Layout, "平铺图"))
	case *GeminiPatternParams:
		parts = append(parts, orDefault(p.PatternMode, "graphic"), orDefault(p.GenerationMode, "Mode A"))
	}
	if step.When != nil {
		parts = append(parts, "条件分支")
	}
	if step.Retry > 0 {
		parts = append(parts, fmt.Sprintf("重试%d次", step.Retry))
	}
	if len(parts) == 0 {
		return []string{"默认配置"}
	}
	return parts
}
