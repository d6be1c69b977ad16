package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/rgoodwin/beacon/internal/classifier"
	"github.com/rgoodwin/beacon/internal/domain"
	"github.com/rgoodwin/beacon/internal/metrics"
)

// maxAssessmentLength caps the description accepted by the classifier
// endpoint. Matches the submission description limit.
const maxAssessmentLength = 5000

// AssessHandler runs the rule-based text classifier over a description.
//
// Assessments are advisory and never persisted; the endpoint is pure
// compute and safe to call on every keystroke pause.
type AssessHandler struct {
	logger *slog.Logger
}

// NewAssessHandler creates a new AssessHandler.
func NewAssessHandler(logger *slog.Logger) *AssessHandler {
	return &AssessHandler{logger: logger}
}

type assessRequest struct {
	Description string `json:"description"`
}

// Assess handles POST /api/assess.
func (h *AssessHandler) Assess(w http.ResponseWriter, r *http.Request) {
	var req assessRequest
	if err := decodeBody(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("", "Description is required"))
		return
	}
	if len(description) > maxAssessmentLength {
		ErrorResponse(w, r, h.logger, domain.TooLarge("", "Description is too long"))
		return
	}

	assessment := classifier.Assess(description)
	metrics.AssessmentsTotal.WithLabelValues(string(assessment.Severity)).Inc()

	writeJSON(w, http.StatusOK, map[string]interface{}{"assessment": assessment})
}
