package services_test

import (
	"errors"
	"strings"
	"testing"

	"keroro/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransport, "backend", "get", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"backend", "get", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrApplication) {
		t.Fatalf("expected application marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestLabelMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{services.Wrap(services.ErrValidation, "jobs", "submit", "bad", nil), "校验失败"},
		{services.Wrap(services.ErrTransport, "backend", "get", "down", nil), "网络错误"},
		{services.Wrap(services.ErrApplication, "backend", "get", "500", nil), "服务错误"},
		{services.Wrap(services.ErrNotFound, "registry", "get", "missing", nil), "服务错误"},
		{errors.New("plain"), ""},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := services.Label(tc.err); got != tc.want {
			t.Fatalf("Label(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestUserMessagePrefixesLabel(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "", "", "图一目录不能为空", nil)
	msg := services.UserMessage(err)
	if !strings.HasPrefix(msg, "校验失败: ") {
		t.Fatalf("expected validation prefix, got %q", msg)
	}
	if services.UserMessage(nil) != "" {
		t.Fatal("expected empty message for nil error")
	}
}
