package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"keroro/internal/logging"
	"keroro/internal/services"
)

const (
	// DefaultBaseURL is used when neither configuration nor KERORO_BASE_URL
	// names a backend.
	DefaultBaseURL        = "http://127.0.0.1:8000"
	defaultAttemptTimeout = 30 * time.Second
	defaultRetryAttempts  = 4
	defaultRetryBaseDelay = time.Second
	requestIDHeader       = "X-Request-ID"
	maxResponseBytes      = 32 << 20
)

var retryableStatuses = map[int]struct{}{
	http.StatusRequestTimeout:      {},
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// Config captures the transport settings.
type Config struct {
	BaseURL               string
	AttemptTimeoutSeconds int
	RetryAttempts         int
	RetryBaseDelayMS      int
}

// Client issues requests against the backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	attemptTimeout   time.Duration
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	sleeper          func(time.Duration)
	newRequestID     func() string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the total attempt count (defaults to 4).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBaseDelay overrides the linear backoff step.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = delay
	}
}

// WithAttemptTimeout overrides the per-attempt deadline.
func WithAttemptTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.attemptTimeout = timeout
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithLogger attaches a logger for retry and request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRequestIDs overrides request id generation.
func WithRequestIDs(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newRequestID = fn
		}
	}
}

// NewClient constructs a backend client. An empty base URL falls back to
// KERORO_BASE_URL and then DefaultBaseURL.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		baseURL:          resolveBaseURL(cfg.BaseURL),
		httpClient:       &http.Client{},
		logger:           logging.NewNop(),
		attemptTimeout:   defaultAttemptTimeout,
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		newRequestID:     uuid.NewString,
	}
	if cfg.AttemptTimeoutSeconds > 0 {
		client.attemptTimeout = time.Duration(cfg.AttemptTimeoutSeconds) * time.Second
	}
	if cfg.RetryAttempts > 0 {
		client.retryMaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryBaseDelayMS > 0 {
		client.retryBaseDelay = time.Duration(cfg.RetryBaseDelayMS) * time.Millisecond
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "backend")
	return client
}

func resolveBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		base = strings.TrimSpace(os.Getenv("KERORO_BASE_URL"))
	}
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/")
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ResolveURL turns a backend-relative path into an absolute URL. Absolute
// inputs are returned unchanged.
func (c *Client) ResolveURL(path string) string {
	if parsed, err := url.Parse(path); err == nil && parsed.IsAbs() {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Get issues a retried GET. found is false when the backend answered without
// a JSON body.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) (bool, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a retried POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) (bool, error) {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Delete issues a retried DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) (bool, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}

// Do issues a JSON request with the configured retry policy.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) (bool, error) {
	req, err := newJSONRequest(method, path, query, body)
	if err != nil {
		return false, err
	}
	return c.execute(ctx, req, c.retryAttempts(), out)
}

// Once issues a JSON request with a single attempt.
func (c *Client) Once(ctx context.Context, method, path string, query url.Values, body, out any) (bool, error) {
	req, err := newJSONRequest(method, path, query, body)
	if err != nil {
		return false, err
	}
	return c.execute(ctx, req, 1, out)
}

// Upload posts content as a multipart form file under field. Uploads are not
// retried.
func (c *Client) Upload(ctx context.Context, path, field, filename string, content io.Reader, out any) (bool, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return false, fmt.Errorf("backend upload: create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return false, fmt.Errorf("backend upload: read content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return false, fmt.Errorf("backend upload: close form: %w", err)
	}
	req := request{
		method:      http.MethodPost,
		path:        path,
		body:        buf.Bytes(),
		contentType: writer.FormDataContentType(),
	}
	return c.execute(ctx, req, 1, out)
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
}

func newJSONRequest(method, path string, query url.Values, body any) (request, error) {
	req := request{method: method, path: path, query: query}
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return req, fmt.Errorf("backend request: encode body: %w", err)
		}
		req.body = encoded
		req.contentType = "application/json"
	}
	return req, nil
}

func (c *Client) execute(ctx context.Context, req request, attempts int, out any) (bool, error) {
	if ctx == nil {
		return false, errors.New("backend request: nil context")
	}
	requestID := c.newRequestID()
	ctx = services.WithRequestID(ctx, requestID)
	logger := logging.WithContext(ctx, c.logger).With(
		logging.String("method", req.method),
		logging.String("path", req.path),
	)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		found, status, err := c.sendOnce(ctx, req, requestID, out)
		if err == nil {
			logger.Debug("backend request completed",
				logging.Int("status", status),
				logging.Int("attempt", attempt),
				logging.Duration("duration", time.Since(start)),
			)
			return found, nil
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		logging.WarnWithContext(logger, "backend request failed; retrying", "backend_retry",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the backend is running and reachable"),
			logging.String(logging.FieldImpact, "request delayed"),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return false, err
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	final := finalError(req, attempts, lastErr)
	logger.Debug("backend request failed", logging.Error(final))
	return false, final
}

func finalError(req request, attempts int, err error) error {
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return newApplicationError(statusErr.StatusCode, statusErr.Body)
	}
	var decodeErr *decodeError
	if errors.As(err, &decodeErr) {
		return services.Wrap(services.ErrApplication, "backend", req.method+" "+req.path, "响应解析失败", decodeErr.Err)
	}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return services.Wrap(services.ErrConfiguration, "backend", req.method+" "+req.path, "无效的后端地址", reqErr.Err)
	}
	return &TransportError{Method: req.method, Path: req.path, Attempts: attempts, Err: err}
}

func (c *Client) sendOnce(ctx context.Context, req request, requestID string, out any) (bool, int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	endpoint := c.ResolveURL(req.path)
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, req.method, endpoint, body)
	if err != nil {
		return false, 0, &requestError{Err: err}
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(requestIDHeader, requestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, 0, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return false, resp.StatusCode, fmt.Errorf("backend response: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, resp.StatusCode, &statusError{StatusCode: resp.StatusCode, Body: payload}
	}
	if !isJSON(resp.Header.Get("Content-Type")) || len(bytes.TrimSpace(payload)) == 0 {
		return false, resp.StatusCode, nil
	}
	if out == nil {
		return true, resp.StatusCode, nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, resp.StatusCode, &decodeError{Err: err}
	}
	return true, resp.StatusCode, nil
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func (c *Client) retryAttempts() int {
	if c == nil || c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil {
		return 0, false
	}
	if ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) {
		return 0, false
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		if _, ok := retryableStatuses[statusErr.StatusCode]; ok {
			return c.backoffDelay(attempt), true
		}
		return 0, false
	}
	var decodeErr *decodeError
	var reqErr *requestError
	if errors.As(err, &decodeErr) || errors.As(err, &reqErr) {
		return 0, false
	}
	// Remaining failures come from the transport itself, including the
	// per-attempt deadline.
	return c.backoffDelay(attempt), true
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.retryBaseDelay <= 0 {
		return 0
	}
	if attempt <= 0 {
		attempt = 1
	}
	return c.retryBaseDelay * time.Duration(attempt)
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
