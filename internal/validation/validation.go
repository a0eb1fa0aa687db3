package validation

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"keroro/internal/services"
)

// ValidationError reports a failed local precondition.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is lets errors.Is match services.ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == services.ErrValidation
}

func fail(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var jobIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}$`)

// RequireNonEmpty fails when value is empty or only whitespace.
func RequireNonEmpty(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return fail(field, "%s不能为空", field)
	}
	return nil
}

// RequireURL accepts an empty value; anything else must be an absolute URL.
func RequireURL(value, field string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || !parsed.IsAbs() || (parsed.Host == "" && parsed.Opaque == "") {
		return fail(field, "%s格式无效: %s", field, value)
	}
	return nil
}

// RequireNumberInRange coerces value to a number and checks the inclusive
// range [min, max].
func RequireNumberInRange(value any, min, max float64, field string) error {
	num, ok := toNumber(value)
	if !ok {
		return fail(field, "%s必须是数字", field)
	}
	if num < min || num > max {
		return fail(field, "%s必须在 %s 到 %s 之间", field, formatNumber(min), formatNumber(max))
	}
	return nil
}

// RequireJobID fails unless value is exactly eight hex digits.
func RequireJobID(value string) error {
	if value == "" {
		return fail("job_id", "任务 ID 无效")
	}
	if !jobIDPattern.MatchString(value) {
		return fail("job_id", "任务 ID 格式无效（应为8位十六进制字符串）")
	}
	return nil
}

// RequireAPIKey accepts an empty value; anything else needs at least five
// non-blank characters.
func RequireAPIKey(value, field string) error {
	if value == "" {
		return nil
	}
	if len([]rune(strings.TrimSpace(value))) < 5 {
		return fail(field, "%s格式无效（至少5个字符）", field)
	}
	return nil
}

func toNumber(value any) (float64, bool) {
	if value == nil {
		return 0, false
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return 0, true
	}
	num, err := cast.ToFloat64E(value)
	if err != nil || math.IsNaN(num) {
		return 0, false
	}
	return num, true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
