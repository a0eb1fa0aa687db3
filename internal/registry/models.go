package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/coocood/freecache"

	"keroro/internal/logging"
)

// Model is one entry of the backend model catalog.
type Model struct {
	ModelID     string   `json:"model_id"`
	Provider    string   `json:"provider"`
	Family      string   `json:"family,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Label returns the display name, falling back to the model id.
func (m Model) Label() string {
	if name := strings.TrimSpace(m.DisplayName); name != "" {
		return name
	}
	return m.ModelID
}

// Query filters a model listing. Empty fields are not sent.
type Query struct {
	Provider string
	Tag      string
}

func (q Query) values() url.Values {
	values := url.Values{}
	if provider := strings.TrimSpace(q.Provider); provider != "" {
		values.Set("provider", provider)
	}
	if tag := strings.TrimSpace(q.Tag); tag != "" {
		values.Set("tag", tag)
	}
	return values
}

func (q Query) cacheKey() []byte {
	return []byte("models?" + q.values().Encode())
}

// modelList accepts either a bare array or {"models": [...]}.
type modelList []Model

func (l *modelList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var models []Model
		if err := json.Unmarshal(data, &models); err != nil {
			return err
		}
		*l = models
		return nil
	}
	var wrapped struct {
		Models []Model `json:"models"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*l = wrapped.Models
	return nil
}

// ListModels returns the models matching q. Listings are cached per query;
// force skips the cache and refreshes it.
func (c *Client) ListModels(ctx context.Context, q Query, force bool) ([]Model, error) {
	key := q.cacheKey()
	if !force {
		if models, ok := c.cachedModels(key); ok {
			return models, nil
		}
	}
	var list modelList
	found, err := c.transport.Get(ctx, "/api/models", nullableValues(q.values()), &list)
	if err != nil {
		return nil, err
	}
	models := []Model(list)
	if !found || models == nil {
		models = []Model{}
	}
	c.storeModels(key, models)
	return models, nil
}

// FetchModelsForProvider pushes cfg to the backend so it can authenticate
// against provider, then asks for the provider's live model list. A failed
// config push is logged and does not stop the listing.
func (c *Client) FetchModelsForProvider(ctx context.Context, provider string, cfg *BackendConfig) ([]Model, error) {
	if cfg != nil {
		if _, err := c.transport.Once(ctx, http.MethodPost, "/api/config", nil, cfg, nil); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, c.logger), "provider config push failed", "config_push_failed",
				logging.Error(err),
				logging.String("provider", provider),
				logging.String(logging.FieldErrorHint, "the model listing uses whatever config the backend already has"),
				logging.String(logging.FieldImpact, "dynamic model list may be stale"),
			)
		}
	}
	query := url.Values{}
	if provider = strings.TrimSpace(provider); provider != "" {
		query.Set("provider", provider)
		query.Set("fetch_dynamic", "true")
	}
	var list modelList
	found, err := c.transport.Get(ctx, "/api/models", nullableValues(query), &list)
	if err != nil {
		return nil, err
	}
	c.InvalidateModels()
	models := []Model(list)
	if !found || models == nil {
		return []Model{}, nil
	}
	c.logger.Info("provider models fetched",
		logging.String("provider", provider),
		logging.Int("count", len(models)),
		logging.String(logging.FieldEventType, "models_fetched"),
	)
	return models, nil
}

// InvalidateModels drops every cached listing.
func (c *Client) InvalidateModels() {
	c.models.Clear()
}

func (c *Client) cachedModels(key []byte) ([]Model, bool) {
	raw, err := c.models.Get(key)
	if err != nil {
		if !errors.Is(err, freecache.ErrNotFound) {
			c.logger.Debug("model cache read failed", logging.Error(err))
		}
		return nil, false
	}
	var models []Model
	if err := json.Unmarshal(raw, &models); err != nil {
		c.models.Del(key)
		return nil, false
	}
	return models, true
}

func (c *Client) storeModels(key []byte, models []Model) {
	raw, err := json.Marshal(models)
	if err != nil {
		return
	}
	seconds := int(c.modelTTL.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	if err := c.models.Set(key, raw, seconds); err != nil {
		c.logger.Debug("model cache write failed", logging.Error(err))
	}
}

func nullableValues(values url.Values) url.Values {
	if len(values) == 0 {
		return nil
	}
	return values
}
