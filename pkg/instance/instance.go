package instance

import (
	"os"

	"github.com/angelmondragon/bistro-backend/pkg/env"
)

// GetID identifies this replica in logs. BISTRO_INSTANCE_ID wins, then the
// hostname (the pod name under Kubernetes).
func GetID() string {
	if id := env.Get("BISTRO_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "bistro-0"
}
