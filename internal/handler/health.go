package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rgoodwin/beacon/internal/precheck"
)

// HealthHandler reports service liveness and datastore reachability.
//
// The datastore status comes from the connectivity checker's cached result,
// so the endpoint never pings the database on the request path.
type HealthHandler struct {
	checker *precheck.Checker
	logger  *slog.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checker *precheck.Checker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		logger:  logger,
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	CheckedAt string `json:"checked_at,omitempty"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	healthy, checkedAt := h.checker.Healthy()

	resp := healthResponse{
		Status:   "ok",
		Database: "reachable",
	}
	if !checkedAt.IsZero() {
		resp.CheckedAt = checkedAt.UTC().Format(time.RFC3339)
	}

	status := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}
