package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keroro/internal/backend"
	"keroro/internal/registry"
	"keroro/internal/services"
	"keroro/internal/testsupport"
	"keroro/internal/validation"
	"keroro/internal/workflow"
)

type fakeClock struct {
	now atomic.Uint32
}

func (c *fakeClock) Now() uint32 { return c.now.Load() }

func (c *fakeClock) advance(seconds uint32) { c.now.Add(seconds) }

func newTransport(url string) *backend.Client {
	return backend.NewClient(
		backend.Config{BaseURL: url, RetryBaseDelayMS: 1},
		backend.WithSleeper(func(time.Duration) {}),
	)
}

func newRegistry(t *testing.T, opts ...registry.Option) (*registry.Client, *testsupport.Backend) {
	t.Helper()
	fake := testsupport.NewBackend(t)
	fake.SetModels(
		map[string]any{"model_id": "qwen-vl-max", "provider": "qwen", "family": "qwen", "display_name": "Qwen VL Max", "tags": []string{"vision"}},
		map[string]any{"model_id": "gemini-2.5-flash-image", "provider": "t8star", "family": "gemini", "tags": []string{"image"}},
	)
	return registry.NewClient(newTransport(fake.URL), opts...), fake
}

func sampleDocument(t *testing.T) *workflow.Document {
	t.Helper()
	doc := workflow.NewDocument(2)
	prompt, err := doc.AddStep(workflow.KindQwenPrompt)
	require.NoError(t, err)
	gen, err := doc.AddStep(workflow.KindGeminiGenerate)
	require.NoError(t, err)
	gen.Uses = []string{prompt.ID}
	gen.Params.(*workflow.GeminiGenerateParams).Prompt = "studio portrait"
	return doc
}

func TestListModelsCachesPerQuery(t *testing.T) {
	client, fake := newRegistry(t)
	ctx := context.Background()

	all, err := client.ListModels(ctx, registry.Query{}, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Qwen VL Max", all[0].Label())
	assert.Equal(t, "gemini-2.5-flash-image", all[1].Label())

	_, err = client.ListModels(ctx, registry.Query{}, false)
	require.NoError(t, err)
	assert.Len(t, fake.RequestsTo(http.MethodGet, "/api/models"), 1, "second listing should be served from cache")

	qwen, err := client.ListModels(ctx, registry.Query{Provider: "qwen", Tag: "vision"}, false)
	require.NoError(t, err)
	require.Len(t, qwen, 1)
	requests := fake.RequestsTo(http.MethodGet, "/api/models")
	require.Len(t, requests, 2)
	assert.Equal(t, "qwen", requests[1].Query.Get("provider"))
	assert.Equal(t, "vision", requests[1].Query.Get("tag"))
	assert.Empty(t, requests[0].Query.Encode(), "empty filters must not be sent")

	_, err = client.ListModels(ctx, registry.Query{}, true)
	require.NoError(t, err)
	assert.Len(t, fake.RequestsTo(http.MethodGet, "/api/models"), 3, "force must bypass the cache")

	client.InvalidateModels()
	_, err = client.ListModels(ctx, registry.Query{Provider: "qwen", Tag: "vision"}, false)
	require.NoError(t, err)
	assert.Len(t, fake.RequestsTo(http.MethodGet, "/api/models"), 4, "invalidate must clear every query")
}

func TestListModelsExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{}
	clock.now.Store(1000)
	client, fake := newRegistry(t, registry.WithModelTTL(5*time.Minute), registry.WithCacheTimer(clock))
	ctx := context.Background()

	_, err := client.ListModels(ctx, registry.Query{}, false)
	require.NoError(t, err)
	clock.advance(299)
	_, err = client.ListModels(ctx, registry.Query{}, false)
	require.NoError(t, err)
	assert.Len(t, fake.RequestsTo(http.MethodGet, "/api/models"), 1)

	clock.advance(2)
	_, err = client.ListModels(ctx, registry.Query{}, false)
	require.NoError(t, err)
	assert.Len(t, fake.RequestsTo(http.MethodGet, "/api/models"), 2)
}

func TestListModelsAcceptsWrappedList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"model_id":"kling-v2-5","provider":"kling"}]}`))
	}))
	defer server.Close()

	client := registry.NewClient(newTransport(server.URL))
	models, err := client.ListModels(context.Background(), registry.Query{Provider: "kling"}, false)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "kling-v2-5", models[0].ModelID)
}

func TestListModelsWithoutBodyIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	models, err := registry.NewClient(newTransport(server.URL)).ListModels(context.Background(), registry.Query{}, false)
	require.NoError(t, err)
	assert.NotNil(t, models)
	assert.Empty(t, models)
}

func TestFetchModelsForProviderPushesConfigFirst(t *testing.T) {
	client, fake := newRegistry(t)
	ctx := context.Background()
	_, err := client.ListModels(ctx, registry.Query{Provider: "qwen"}, false)
	require.NoError(t, err)

	cfg := &registry.BackendConfig{QwenAPIKey: "sk-test", MaxWorkers: 4}
	models, err := client.FetchModelsForProvider(ctx, "qwen", cfg)
	require.NoError(t, err)
	require.Len(t, models, 1)

	requests := fake.Requests()
	require.GreaterOrEqual(t, len(requests), 3)
	push := requests[len(requests)-2]
	list := requests[len(requests)-1]
	assert.Equal(t, "/api/config", push.Path)
	assert.Equal(t, "sk-test", push.JSON(t)["qwen_api_key"])
	assert.Equal(t, "/api/models", list.Path)
	assert.Equal(t, "qwen", list.Query.Get("provider"))
	assert.Equal(t, "true", list.Query.Get("fetch_dynamic"))

	_, err = client.ListModels(ctx, registry.Query{Provider: "qwen"}, false)
	require.NoError(t, err)
	assert.Len(t, fake.RequestsTo(http.MethodGet, "/api/models"), 3, "dynamic fetch must invalidate the cache")
}

func TestFetchModelsForProviderIgnoresConfigPushFailure(t *testing.T) {
	client, fake := newRegistry(t)
	fake.FailNext("/api/config", 5)

	models, err := client.FetchModelsForProvider(context.Background(), "t8star", &registry.BackendConfig{MaxWorkers: 4})
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Len(t, fake.RequestsTo(http.MethodPost, "/api/config"), 1, "config push is a single attempt")
}

func TestSaveTemplateValidatesBeforeSending(t *testing.T) {
	client, fake := newRegistry(t)
	ctx := context.Background()

	_, err := client.SaveTemplate(ctx, sampleDocument(t), "   ", "", nil)
	require.Error(t, err)
	assert.Equal(t, "工作流名称不能为空", err.Error())
	assert.True(t, errors.Is(err, services.ErrValidation))

	_, err = client.SaveTemplate(ctx, workflow.NewDocument(0), "空白", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "工作流至少需要包含一个步骤")

	assert.Empty(t, fake.RequestsTo(http.MethodPost, "/api/workflows"))
}

func TestSaveTemplateSendsNormalizedDocument(t *testing.T) {
	client, fake := newRegistry(t)
	ctx := context.Background()
	doc := sampleDocument(t)

	saved, err := client.SaveTemplate(ctx, doc, "  童装 模特图 ", "   ", []string{" 童装 ", "", "  "})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	requests := fake.RequestsTo(http.MethodPost, "/api/workflows")
	require.Len(t, requests, 1)
	body := requests[0].JSON(t)
	assert.Equal(t, "童装 模特图", body["name"])
	assert.Contains(t, body, "description")
	assert.Nil(t, body["description"])
	assert.Equal(t, []any{"童装"}, body["tags"])
	steps := body["workflow"].(map[string]any)["steps"].([]any)
	assert.Equal(t, "gemini_generate_model", steps[1].(map[string]any)["type"])
	assert.Equal(t, workflow.KindGeminiGenerate, doc.Steps[1].Kind, "saving must not mutate the caller's document")

	loaded, err := client.GetTemplate(ctx, string(saved.ID))
	require.NoError(t, err)
	require.NotNil(t, loaded.Workflow)
	want, err := json.Marshal(doc.Normalize())
	require.NoError(t, err)
	got, err := json.Marshal(loaded.Workflow.Normalize())
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))

	list, err := client.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "童装 模特图", list[0].Name)
	assert.Nil(t, list[0].Workflow)
}

func TestSaveTemplateTagsOmittedWhenBlank(t *testing.T) {
	client, fake := newRegistry(t)
	_, err := client.SaveTemplate(context.Background(), sampleDocument(t), "pattern", "花型", []string{" ", ""})
	require.NoError(t, err)

	body := fake.RequestsTo(http.MethodPost, "/api/workflows")[0].JSON(t)
	assert.Contains(t, body, "tags")
	assert.Nil(t, body["tags"])
	assert.Equal(t, "花型", body["description"])
}

func TestSaveTemplateNormalizesUnicodeName(t *testing.T) {
	assert.Equal(t, "caf\u00e9", registry.NormalizeName(" cafe\u0301 "))
}

func TestDeleteAndMissingTemplate(t *testing.T) {
	client, _ := newRegistry(t)
	ctx := context.Background()
	saved, err := client.SaveTemplate(ctx, sampleDocument(t), "tmp", "", nil)
	require.NoError(t, err)

	resp, err := client.DeleteTemplate(ctx, string(saved.ID))
	require.NoError(t, err)
	assert.Equal(t, true, resp["deleted"])

	_, err = client.GetTemplate(ctx, string(saved.ID))
	require.Error(t, err)
	assert.True(t, backend.IsNotFound(err))

	_, err = client.DeleteTemplate(ctx, " ")
	require.Error(t, err)
	var vErr *validation.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestConfigRoundTripPreservesUnknownKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"qwen_api_key":"sk-1","max_workers":0,"future_flag":"on"}`))
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	client := registry.NewClient(newTransport(server.URL))
	ctx := context.Background()
	cfg, err := client.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk-1", cfg.QwenAPIKey)
	assert.Equal(t, 4, cfg.MaxWorkers)
	assert.Equal(t, map[string]any{"future_flag": "on"}, cfg.Extra)

	saved, err := client.SaveConfig(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "on", saved.Extra["future_flag"])
	assert.Equal(t, "sk-1", saved.QwenAPIKey)
}

func TestSaveConfigValidatesBeforeSending(t *testing.T) {
	client, fake := newRegistry(t)
	ctx := context.Background()

	_, err := client.SaveConfig(ctx, &registry.BackendConfig{KlingBaseURL: "api.klingai.com"})
	require.Error(t, err)
	assert.Equal(t, "Kling Base URL格式无效: api.klingai.com", err.Error())

	_, err = client.SaveConfig(ctx, &registry.BackendConfig{MaxWorkers: 20})
	require.Error(t, err)
	assert.Equal(t, "最大并发数必须在 1 到 16 之间", err.Error())

	assert.Empty(t, fake.RequestsTo(http.MethodPost, "/api/config"))

	saved, err := client.SaveConfig(ctx, &registry.BackendConfig{RunningHubBaseURL: "https://www.runninghub.cn"})
	require.NoError(t, err)
	assert.Equal(t, 4, saved.MaxWorkers)
	assert.Equal(t, float64(4), fake.Config()["max_workers"])
}

func TestRunningHubInputs(t *testing.T) {
	client, fake := newRegistry(t)
	fake.SetNodeInfo("42", map[string]any{
		"data": map[string]any{"nodeInfoList": []any{
			map[string]any{"nodeId": "3", "fieldName": "image", "fieldType": "IMAGE"},
			map[string]any{"nodeId": "7", "fieldName": "prompt", "fieldType": "STRING", "optional": false},
		}},
	})
	ctx := context.Background()

	fields, err := client.RunningHubInputs(ctx, "42")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "image 字段", fields[0].Description)
	assert.False(t, fields[1].Optional)

	described := client.DescribeRunningHubApp(ctx, "42")
	assert.False(t, described.Fallback)
	assert.Len(t, described.Fields, 2)

	fallback := client.DescribeRunningHubApp(ctx, "missing")
	assert.True(t, fallback.Fallback)
	assert.Equal(t, workflow.Inputs(workflow.KindRunningHubApp), fallback.Fields)

	step, err := workflow.CreateStep(workflow.KindRunningHubApp)
	require.NoError(t, err)
	step.Params.(*workflow.RunningHubAppParams).WebAppID = "42"
	assert.Equal(t, fields, workflow.ResolveInputs(ctx, client, step))
}

func TestUploadWallpaper(t *testing.T) {
	client, fake := newRegistry(t)
	url, err := client.UploadWallpaper(context.Background(), "/tmp/backgrounds/sky.png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, fake.URL+"/static/wallpapers/sky.png", url)

	_, err = client.UploadWallpaper(context.Background(), "  ", strings.NewReader(""))
	require.Error(t, err)
}

func TestUploadWallpaperFailureMessages(t *testing.T) {
	status := http.StatusBadRequest
	body := `{"detail":"文件格式不支持"}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()
	client := registry.NewClient(newTransport(server.URL))
	ctx := context.Background()

	_, err := client.UploadWallpaper(ctx, "a.bmp", strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, "文件格式不支持", err.Error())

	body = `not json`
	_, err = client.UploadWallpaper(ctx, "a.bmp", strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, "上传失败", err.Error())

	status = http.StatusOK
	body = `{"success":false}`
	_, err = client.UploadWallpaper(ctx, "a.bmp", strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, "上传失败", err.Error())
	assert.True(t, errors.Is(err, services.ErrApplication))
}

func TestBackendConfigMergeKeepsUnknownSettings(t *testing.T) {
	cfg := &registry.BackendConfig{QwenAPIKey: "old", MaxWorkers: 4}
	err := cfg.Merge(map[string]any{
		"qwen_api_key": "new",
		"max_workers":  int64(8),
		"beta_feature": true,
	})
	require.NoError(t, err)
	assert.Equal(t, "new", cfg.QwenAPIKey)
	assert.Equal(t, 8, cfg.MaxWorkers)
	assert.Equal(t, true, cfg.Extra["beta_feature"])

	err = cfg.Merge(map[string]any{"max_workers": "many"})
	require.Error(t, err)
	assert.Equal(t, 8, cfg.MaxWorkers)
}
