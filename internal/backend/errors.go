package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"keroro/internal/services"
)

const transportMessage = "无法连接后端服务"

// TransportError reports that the backend could not be reached after every
// attempt was spent.
type TransportError struct {
	Method   string
	Path     string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return transportMessage
	}
	return fmt.Sprintf("%s (%s %s): %v", transportMessage, e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	return target == services.ErrTransport
}

// ApplicationError is a non-success HTTP response. Message is the detail or
// message field of a JSON body, the raw body text, or "HTTP <status>".
type ApplicationError struct {
	StatusCode int
	Message    string
	Detail     any
}

func (e *ApplicationError) Error() string {
	return e.Message
}

func (e *ApplicationError) Is(target error) bool {
	if target == services.ErrApplication {
		return true
	}
	return target == services.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var appErr *ApplicationError
	return errors.As(err, &appErr) && appErr.StatusCode == http.StatusNotFound
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 0
}

func newApplicationError(status int, body []byte) *ApplicationError {
	appErr := &ApplicationError{StatusCode: status, Message: fmt.Sprintf("HTTP %d", status)}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return appErr
	}
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		appErr.Message = text
		return appErr
	}
	appErr.Detail = parsed
	fields, ok := parsed.(map[string]any)
	if !ok {
		return appErr
	}
	for _, key := range []string{"detail", "message"} {
		if msg := messageValue(fields[key]); msg != "" {
			appErr.Message = msg
			return appErr
		}
	}
	return appErr
}

func messageValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case bool:
		if !v {
			return ""
		}
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(encoded)
}

type statusError struct {
	StatusCode int
	Body       []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("backend request: http %d", e.StatusCode)
}

type decodeError struct {
	Err error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("backend response: decode: %v", e.Err)
}

func (e *decodeError) Unwrap() error { return e.Err }

type requestError struct {
	Err error
}

func (e *requestError) Error() string {
	return fmt.Sprintf("backend request: build: %v", e.Err)
}

func (e *requestError) Unwrap() error { return e.Err }
