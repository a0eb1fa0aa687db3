package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/text/unicode/norm"

	"keroro/internal/logging"
	"keroro/internal/validation"
	"keroro/internal/workflow"
)

// TemplateID accepts string or numeric ids from the backend.
type TemplateID string

func (id *TemplateID) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*id = ""
		return nil
	}
	text, err := cast.ToStringE(raw)
	if err != nil {
		return fmt.Errorf("template id: %w", err)
	}
	*id = TemplateID(text)
	return nil
}

// Template is a saved workflow. Listings leave Workflow nil.
type Template struct {
	ID          TemplateID         `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	Workflow    *workflow.Document `json:"workflow,omitempty"`
	CreatedAt   any                `json:"created_at,omitempty"`
	UpdatedAt   any                `json:"updated_at,omitempty"`
}

type saveTemplateRequest struct {
	Workflow    *workflow.Document `json:"workflow"`
	Name        string             `json:"name"`
	Description *string            `json:"description"`
	Tags        []string           `json:"tags"`
}

// NormalizeName trims name and folds it to NFC so visually identical names
// compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// NormalizeTags trims tags and drops blanks. No tags yields nil.
func NormalizeTags(tags []string) []string {
	var out []string
	for _, tag := range tags {
		if tag = NormalizeName(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// ListTemplates returns template summaries.
func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	var templates []Template
	found, err := c.transport.Get(ctx, "/api/workflows", nil, &templates)
	if err != nil {
		return nil, err
	}
	if !found || templates == nil {
		return []Template{}, nil
	}
	return templates, nil
}

// GetTemplate loads one template including its workflow.
func (c *Client) GetTemplate(ctx context.Context, id string) (*Template, error) {
	if err := validation.RequireNonEmpty(id, "模板 ID"); err != nil {
		return nil, err
	}
	var tmpl Template
	found, err := c.transport.Get(ctx, templatePath(id), nil, &tmpl)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &validation.ValidationError{Field: "workflow", Message: "模板内容为空"}
	}
	return &tmpl, nil
}

// SaveTemplate stores doc under name. The document must validate and is sent
// in normalized form. A blank description and an empty tag list are sent as
// null.
func (c *Client) SaveTemplate(ctx context.Context, doc *workflow.Document, name, description string, tags []string) (*Template, error) {
	name = NormalizeName(name)
	if err := validation.RequireNonEmpty(name, "工作流名称"); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	req := saveTemplateRequest{
		Workflow: doc.Normalize(),
		Name:     name,
		Tags:     NormalizeTags(tags),
	}
	if desc := strings.TrimSpace(description); desc != "" {
		req.Description = &desc
	}
	var saved Template
	found, err := c.transport.Post(ctx, "/api/workflows", req, &saved)
	if err != nil {
		return nil, err
	}
	c.logger.Info("workflow template saved",
		logging.String("name", name),
		logging.Int("steps", len(req.Workflow.Steps)),
		logging.String(logging.FieldEventType, "template_saved"),
	)
	if !found {
		saved = Template{Name: name, Tags: req.Tags}
	}
	if saved.Workflow == nil {
		saved.Workflow = req.Workflow
	}
	return &saved, nil
}

// DeleteTemplate removes a template and returns the backend's confirmation.
func (c *Client) DeleteTemplate(ctx context.Context, id string) (map[string]any, error) {
	if err := validation.RequireNonEmpty(id, "模板 ID"); err != nil {
		return nil, err
	}
	var resp map[string]any
	if _, err := c.transport.Delete(ctx, templatePath(id), &resp); err != nil {
		return nil, err
	}
	c.logger.Info("workflow template deleted",
		logging.String("template_id", id),
		logging.String(logging.FieldEventType, "template_deleted"),
	)
	if resp == nil {
		resp = map[string]any{}
	}
	return resp, nil
}

func templatePath(id string) string {
	return "/api/workflows/" + url.PathEscape(strings.TrimSpace(id))
}
