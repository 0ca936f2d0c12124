package env

import "testing"

func TestFirstPrefersEarlierKeys(t *testing.T) {
	t.Setenv("BISTRO_LOG_FORMAT", "console")
	t.Setenv("LOG_FORMAT", "json")
	if got := First("json", "BISTRO_LOG_FORMAT", "LOG_FORMAT"); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
	t.Setenv("BISTRO_LOG_FORMAT", "")
	if got := First("text", "BISTRO_LOG_FORMAT", "LOG_FORMAT"); got != "json" {
		t.Fatalf("expected json, got %q", got)
	}
}

func TestGetFallback(t *testing.T) {
	t.Setenv("BISTRO_UNSET", "")
	if got := Get("BISTRO_UNSET", "x"); got != "x" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
