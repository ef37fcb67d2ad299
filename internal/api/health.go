package api

import (
	"context"
	"net/http"
	"time"
)

// HandleHealth handles GET /healthz. The database check is bounded so a
// stuck database cannot hang the probe.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}

	if h.repo != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.repo.Ping(ctx); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			JSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}

	JSON(w, http.StatusOK, status)
}
