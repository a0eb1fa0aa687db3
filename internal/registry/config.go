package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"keroro/internal/logging"
	"keroro/internal/services"
	"keroro/internal/validation"
)

const defaultMaxWorkers = 4

// BackendConfig is the provider configuration exchanged with /api/config.
// Keys the backend returns that are not modelled here are kept in Extra and
// sent back unchanged.
type BackendConfig struct {
	QwenAPIKey  string `json:"qwen_api_key"`
	QwenBaseURL string `json:"qwen_base_url"`
	QwenModel   string `json:"qwen_model"`

	RunningHubAPIKey  string `json:"runninghub_api_key"`
	RunningHubBaseURL string `json:"runninghub_base_url"`

	GeminiT8StarAPIKey    string `json:"gemini_t8star_api_key"`
	GeminiT8StarBaseURL   string `json:"gemini_t8star_base_url"`
	GeminiT8StarModel     string `json:"gemini_t8star_model"`
	GeminiComflyAPIKey    string `json:"gemini_comfly_api_key"`
	GeminiComflyBaseURL   string `json:"gemini_comfly_base_url"`
	GeminiComflyModel     string `json:"gemini_comfly_model"`
	GeminiCherryinAPIKey  string `json:"gemini_cherryin_api_key"`
	GeminiCherryinBaseURL string `json:"gemini_cherryin_base_url"`
	GeminiCherryinModel   string `json:"gemini_cherryin_model"`
	GeminiAihubmixAPIKey  string `json:"gemini_aihubmix_api_key"`
	GeminiAihubmixBaseURL string `json:"gemini_aihubmix_base_url"`
	GeminiAihubmixModel   string `json:"gemini_aihubmix_model"`
	GeminiGrsaiAPIKey     string `json:"gemini_grsai_api_key"`
	GeminiGrsaiBaseURL    string `json:"gemini_grsai_base_url"`
	GeminiGrsaiModel      string `json:"gemini_grsai_model"`

	KlingAccessKey    string `json:"kling_access_key"`
	KlingSecretKey    string `json:"kling_secret_key"`
	KlingAPIKey       string `json:"kling_api_key"`
	KlingBaseURL      string `json:"kling_base_url"`
	KlingDefaultModel string `json:"kling_default_model"`

	OhMyGPTAPIKey      string `json:"ohmygpt_api_key"`
	OhMyGPTBaseURL     string `json:"ohmygpt_base_url"`
	OhMyGPTModel       string `json:"ohmygpt_model"`
	ModelScopeAPIKey   string `json:"modelscope_api_key"`
	ModelScopeBaseURL  string `json:"modelscope_base_url"`
	ModelScopeModel    string `json:"modelscope_model"`
	SiliconFlowAPIKey  string `json:"siliconflow_api_key"`
	SiliconFlowBaseURL string `json:"siliconflow_base_url"`
	SiliconFlowModel   string `json:"siliconflow_model"`
	CherryinAPIKey     string `json:"cherryin_api_key"`
	CherryinBaseURL    string `json:"cherryin_base_url"`
	CherryinModel      string `json:"cherryin_model"`

	PublicBaseURL string `json:"public_base_url"`
	MaxWorkers    int    `json:"max_workers"`

	Extra map[string]any `json:"-"`
}

type plainBackendConfig BackendConfig

// MarshalJSON writes the modelled keys plus Extra.
func (c BackendConfig) MarshalJSON() ([]byte, error) {
	encoded, err := json.Marshal(plainBackendConfig(c))
	if err != nil || len(c.Extra) == 0 {
		return encoded, err
	}
	merged := map[string]any{}
	if err := json.Unmarshal(encoded, &merged); err != nil {
		return nil, err
	}
	for key, value := range c.Extra {
		if _, ok := merged[key]; !ok {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads the modelled keys and keeps the rest in Extra.
func (c *BackendConfig) UnmarshalJSON(data []byte) error {
	var plain plainBackendConfig
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	known, err := json.Marshal(plainBackendConfig{})
	if err != nil {
		return err
	}
	var knownKeys map[string]any
	if err := json.Unmarshal(known, &knownKeys); err != nil {
		return err
	}
	for key := range knownKeys {
		delete(all, key)
	}
	*c = BackendConfig(plain)
	if len(all) > 0 {
		c.Extra = all
	}
	return nil
}

// Endpoint is one configurable base URL.
type Endpoint struct {
	Label string
	URL   string
}

// BaseURLs lists every endpoint field with its user-facing label.
func (c *BackendConfig) BaseURLs() []Endpoint {
	return []Endpoint{
		{"Qwen Base URL", c.QwenBaseURL},
		{"RunningHub Base URL", c.RunningHubBaseURL},
		{"Gemini T8Star Base URL", c.GeminiT8StarBaseURL},
		{"Gemini Comfly Base URL", c.GeminiComflyBaseURL},
		{"Gemini CherryIN Base URL", c.GeminiCherryinBaseURL},
		{"Gemini AIHubMix Base URL", c.GeminiAihubmixBaseURL},
		{"Gemini GRSAI Base URL", c.GeminiGrsaiBaseURL},
		{"Kling Base URL", c.KlingBaseURL},
		{"OhMyGPT Base URL", c.OhMyGPTBaseURL},
		{"ModelScope Base URL", c.ModelScopeBaseURL},
		{"SiliconFlow Base URL", c.SiliconFlowBaseURL},
		{"CherryIN Base URL", c.CherryinBaseURL},
		{"公网访问地址", c.PublicBaseURL},
	}
}

// Validate checks endpoint syntax and the worker range. A zero MaxWorkers is
// replaced with the default first.
func (c *BackendConfig) Validate() error {
	if c.MaxWorkers == 0 {
		c.MaxWorkers = defaultMaxWorkers
	}
	for _, entry := range c.BaseURLs() {
		if err := validation.RequireURL(entry.URL, entry.Label); err != nil {
			return err
		}
	}
	return validation.RequireNumberInRange(c.MaxWorkers, 1, 16, "最大并发数")
}

// GetConfig loads the backend's provider configuration.
func (c *Client) GetConfig(ctx context.Context) (*BackendConfig, error) {
	var cfg BackendConfig
	found, err := c.transport.Get(ctx, "/api/config", nil, &cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, services.Wrap(services.ErrApplication, "registry", "get config", "后端未返回配置", nil)
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = defaultMaxWorkers
	}
	return &cfg, nil
}

// SaveConfig validates cfg locally and then stores it. The backend's echo is
// returned when it sends one.
func (c *Client) SaveConfig(ctx context.Context, cfg *BackendConfig) (*BackendConfig, error) {
	if cfg == nil {
		return nil, &validation.ValidationError{Field: "config", Message: "配置不能为空"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var saved BackendConfig
	found, err := c.transport.Post(ctx, "/api/config", cfg, &saved)
	if err != nil {
		return nil, err
	}
	c.logger.Info("backend config saved",
		logging.Int("max_workers", cfg.MaxWorkers),
		logging.String(logging.FieldEventType, "config_saved"),
	)
	if !found {
		return cfg, nil
	}
	return &saved, nil
}

// Merge overlays settings onto c. Keys the struct does not know land in
// Extra and are sent back unchanged.
func (c *BackendConfig) Merge(settings map[string]any) error {
	if len(settings) == 0 {
		return nil
	}
	current, err := json.Marshal(c)
	if err != nil {
		return err
	}
	var merged map[string]any
	if err := json.Unmarshal(current, &merged); err != nil {
		return err
	}
	for key, value := range settings {
		merged[key] = value
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	var next BackendConfig
	if err := json.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("merge provider settings: %w", err)
	}
	*c = next
	return nil
}
