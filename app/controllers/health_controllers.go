package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/onyxia-store/onyxia/pkg/ctx"
	"github.com/onyxia-store/onyxia/pkg/grpc"
	"github.com/onyxia-store/onyxia/pkg/logger"
)

// HealthController runs the same probes as the gRPC health service.
type HealthController struct {
	probes []grpc.Probe
}

func NewHealthController(probes ...grpc.Probe) *HealthController {
	return &HealthController{probes: probes}
}

// Show answers 200 {"status":"ok", "checks":{...}} or 503 with the failing
// checks marked.
func (hc *HealthController) Show(c *ctx.Context) {
	checks := make(map[string]string, len(hc.probes))
	healthy := true
	for _, p := range hc.probes {
		pctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		err := p.Check(pctx)
		cancel()
		if err != nil {
			healthy = false
			checks[p.Name] = "down"
			logger.WithCtx(c.Context()).Warn("health probe failed", "probe", p.Name, "error", err)
			continue
		}
		checks[p.Name] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": checks})
		return
	}
	c.OK(map[string]any{"status": "ok", "checks": checks})
}
