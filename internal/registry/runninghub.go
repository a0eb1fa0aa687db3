package registry

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"keroro/internal/logging"
	"keroro/internal/services"
	"keroro/internal/workflow"
)

// RunningHubInputs fetches the input fields a RunningHub webapp declares.
// It satisfies workflow.InputResolver.
func (c *Client) RunningHubInputs(ctx context.Context, webappID string) ([]workflow.Field, error) {
	webappID = strings.TrimSpace(webappID)
	if webappID == "" {
		return nil, services.Wrap(services.ErrValidation, "registry", "node info", "缺少 webapp_id", nil)
	}
	var raw json.RawMessage
	found, err := c.transport.Get(ctx, "/api/runninghub/node-info", url.Values{"webapp_id": {webappID}}, &raw)
	if err != nil {
		return nil, err
	}
	if !found {
		return []workflow.Field{}, nil
	}
	fields, err := workflow.ParseNodeInfo(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrApplication, "registry", "node info", "节点信息解析失败", err)
	}
	return fields, nil
}

// DescribeRunningHubApp resolves a webapp's inputs, falling back to the
// static runninghub_app declaration when the lookup fails or is empty.
func (c *Client) DescribeRunningHubApp(ctx context.Context, webappID string) workflow.DynamicInputs {
	result := workflow.DynamicInputs{WebAppID: strings.TrimSpace(webappID)}
	fields, err := c.RunningHubInputs(ctx, webappID)
	if err != nil {
		logging.WithContext(ctx, c.logger).Warn("runninghub node info unavailable",
			logging.Error(err),
			logging.String("webapp_id", result.WebAppID),
			logging.String(logging.FieldEventType, "node_info_fallback"),
		)
	}
	if err != nil || len(fields) == 0 {
		result.Fields = workflow.Inputs(workflow.KindRunningHubApp)
		result.Fallback = true
		return result
	}
	result.Fields = fields
	return result
}
