package instance

import "testing"

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv("BISTRO_INSTANCE_ID", "cron-7")
	if got := GetID(); got != "cron-7" {
		t.Fatalf("expected env id, got %q", got)
	}
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv("BISTRO_INSTANCE_ID", "")
	if got := GetID(); got == "" {
		t.Fatalf("expected a fallback id")
	}
}
