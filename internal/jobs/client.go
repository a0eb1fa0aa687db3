package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"keroro/internal/backend"
	"keroro/internal/logging"
	"keroro/internal/services"
	"keroro/internal/validation"
	"keroro/internal/workflow"
)

const notFoundMessage = "任务不存在或已过期"

// ErrNoActiveJob is returned when an operation needs a job id and none was
// given.
var ErrNoActiveJob = &validation.ValidationError{Field: "job_id", Message: "暂无正在运行的任务"}

// Transport is the subset of the backend client the job client needs.
type Transport interface {
	Get(ctx context.Context, path string, query url.Values, out any) (bool, error)
	Post(ctx context.Context, path string, body, out any) (bool, error)
	Once(ctx context.Context, method, path string, query url.Values, body, out any) (bool, error)
}

// Client talks to the job endpoints.
type Client struct {
	transport Transport
	logger    *slog.Logger
}

// NewClient constructs a job client.
func NewClient(transport Transport, logger *slog.Logger) *Client {
	return &Client{
		transport: transport,
		logger:    logging.NewComponentLogger(logger, "jobs"),
	}
}

type createJobRequest struct {
	InputDir1 string            `json:"input_dir_1"`
	InputDir2 *string           `json:"input_dir_2"`
	InputDir3 *string           `json:"input_dir_3"`
	InputDir4 *string           `json:"input_dir_4"`
	Workflow  *workflow.Payload `json:"workflow"`
}

type createJobResponse struct {
	JobID string `json:"job_id"`
}

func optionalDir(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Submit validates inputs and doc locally and then creates a job. Nothing is
// sent when either check fails.
func (c *Client) Submit(ctx context.Context, inputs Inputs, doc *workflow.Document) (string, error) {
	if err := validation.RequireNonEmpty(inputs.Dir1, "图一目录"); err != nil {
		return "", err
	}
	if err := doc.Validate(); err != nil {
		return "", err
	}
	payload, err := doc.Normalize().SubmissionPayload()
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "jobs", "submit", "工作流编码失败", err)
	}
	req := createJobRequest{
		InputDir1: strings.TrimSpace(inputs.Dir1),
		InputDir2: optionalDir(inputs.Dir2),
		InputDir3: optionalDir(inputs.Dir3),
		InputDir4: optionalDir(inputs.Dir4),
		Workflow:  &payload,
	}
	var resp createJobResponse
	found, err := c.transport.Post(ctx, "/api/jobs", req, &resp)
	if err != nil {
		logging.ErrorWithContext(c.logger, "job submission failed", "job_submit_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the backend log for the rejected workflow"),
		)
		return "", err
	}
	if !found || strings.TrimSpace(resp.JobID) == "" {
		return "", services.Wrap(services.ErrApplication, "jobs", "submit", "后端未返回任务 ID", nil)
	}
	c.logger.Info("job submitted",
		logging.String(logging.FieldJobID, resp.JobID),
		logging.Int("steps", len(payload.Steps)),
		logging.String(logging.FieldEventType, "job_submitted"),
	)
	return resp.JobID, nil
}

// Status fetches a job snapshot. A 404 yields a synthetic failed snapshot.
// Other failures are logged and returned with a nil job.
func (c *Client) Status(ctx context.Context, id string) (*Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNoActiveJob
	}
	ctx = services.WithJobID(ctx, id)
	var job Job
	found, err := c.transport.Get(ctx, jobPath(id), nil, &job)
	if err != nil {
		if backend.IsNotFound(err) {
			logging.WarnWithContext(logging.WithContext(ctx, c.logger), notFoundMessage, "job_not_found",
				logging.String(logging.FieldImpact, "job reported as failed"),
			)
			return &Job{JobID: id, Status: StatusFailed, Message: notFoundMessage}, nil
		}
		logging.WithContext(ctx, c.logger).Warn("job status refresh failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_status_failed"),
		)
		return nil, err
	}
	if !found {
		return nil, services.Wrap(services.ErrApplication, "jobs", "status", "后端未返回任务状态", nil)
	}
	if job.JobID == "" {
		job.JobID = id
	}
	return &job, nil
}

// Cancel asks the backend to cancel id with a single attempt.
func (c *Client) Cancel(ctx context.Context, id string) (map[string]any, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNoActiveJob
	}
	var resp map[string]any
	if _, err := c.transport.Once(ctx, http.MethodPost, jobPath(id)+"/cancel", nil, nil, &resp); err != nil {
		return nil, err
	}
	logging.WithContext(services.WithJobID(ctx, id), c.logger).Info("job cancel requested",
		logging.String(logging.FieldEventType, "job_cancel_requested"),
	)
	if resp == nil {
		resp = map[string]any{}
	}
	return resp, nil
}

// Results fetches per-item results. An empty response yields no items.
func (c *Client) Results(ctx context.Context, id string) (*Results, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNoActiveJob
	}
	var results Results
	found, err := c.transport.Get(ctx, jobPath(id)+"/items", nil, &results)
	if err != nil {
		return nil, err
	}
	if !found || results.Items == nil {
		results.Items = []map[string]any{}
	}
	return &results, nil
}

// List fetches every job the backend remembers.
func (c *Client) List(ctx context.Context) ([]Job, error) {
	var jobs []Job
	found, err := c.transport.Get(ctx, "/api/jobs", nil, &jobs)
	if err != nil {
		return nil, err
	}
	if !found || jobs == nil {
		return []Job{}, nil
	}
	return jobs, nil
}

func jobPath(id string) string {
	return fmt.Sprintf("/api/jobs/%s", url.PathEscape(strings.TrimSpace(id)))
}
