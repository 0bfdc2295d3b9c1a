package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency whose reachability is reported by the health check.
type Pinger func(ctx context.Context) error

// HealthHandler reports liveness and, when checks are configured, readiness
// of the backing stores.
type HealthHandler struct {
	Checks map[string]Pinger
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.Checks))
	for name, ping := range h.Checks {
		if err := ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	res := gin.H{"status": "ok"}
	if status != http.StatusOK {
		res["status"] = "degraded"
	}
	if len(checks) > 0 {
		res["checks"] = checks
	}
	c.JSON(status, res)
}
