// Package handler contains HTTP handlers for the Beacon application.
//
// This file implements report submission and triage endpoints.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/rgoodwin/beacon/internal/auth"
	"github.com/rgoodwin/beacon/internal/domain"
	"github.com/rgoodwin/beacon/internal/metrics"
	"github.com/rgoodwin/beacon/internal/service"
)

// maxMultipartMemory bounds how much of a submission is buffered in memory
// while parsing; larger parts spill to temp files.
const maxMultipartMemory = 32 << 20

// =============================================================================
// Handler Configuration
// =============================================================================

// ReportHandler handles report submission and triage HTTP requests.
//
// Routes handled:
// - POST /api/reports               -> Submit       (requires user)
// - GET  /api/reports               -> List         (requires admin)
// - GET  /api/reports/{id}          -> Get          (requires admin)
// - POST /api/reports/{id}/complete -> MarkCompleted (requires admin)
type ReportHandler struct {
	reportService service.ReportService
	triageService service.TriageService
	logger        *slog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(
	reportService service.ReportService,
	triageService service.TriageService,
	logger *slog.Logger,
) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		triageService: triageService,
		logger:        logger,
	}
}

// =============================================================================
// POST /api/reports - Submit Report
// =============================================================================

// Submit accepts a multipart emergency report submission.
//
// Form fields: reporter_name, emergency_types (repeatable), location,
// latitude, longitude (optional pair), description, phone.
// File parts are read under the "attachments" field, at most three.
func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("", "Request must be multipart/form-data"))
		return
	}

	params := domain.SubmitReportParams{
		ReporterID:     user.ID,
		ReporterName:   r.FormValue("reporter_name"),
		EmergencyTypes: parseEmergencyTypes(r.Form["emergency_types"]),
		Location:       r.FormValue("location"),
		Description:    r.FormValue("description"),
		Phone:          r.FormValue("phone"),
	}

	lat, lon, err := parseCoordinates(r.FormValue("latitude"), r.FormValue("longitude"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	params.Latitude = lat
	params.Longitude = lon

	var uploads []service.AttachmentUpload
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["attachments"] {
			file, err := fh.Open()
			if err != nil {
				h.logger.Error("failed to open uploaded file", "error", err, "filename", fh.Filename)
				ErrorResponse(w, r, h.logger, domain.Invalid("", "Failed to read uploaded file"))
				return
			}
			defer file.Close()

			uploads = append(uploads, service.AttachmentUpload{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Data:        file,
			})
		}
	}

	report, err := h.reportService.Submit(r.Context(), params, uploads)
	if err != nil {
		if len(uploads) > 0 {
			metrics.AttachmentUploads.WithLabelValues("failed").Add(float64(len(uploads)))
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	metrics.ReportsSubmitted.Inc()
	if len(uploads) > 0 {
		metrics.AttachmentUploads.WithLabelValues("ok").Add(float64(len(uploads)))
	}

	h.logger.Info("report submitted",
		"report_id", report.ID,
		"reporter_id", user.ID,
		"attachments", len(report.Attachments),
	)

	writeJSON(w, http.StatusCreated, map[string]interface{}{"report": report})
}

// =============================================================================
// GET /api/reports - Triage List
// =============================================================================

// List returns all reports with effective statuses and aggregate counts.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	view, err := h.triageService.Load(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// =============================================================================
// GET /api/reports/{id} - Report Detail
// =============================================================================

// Get returns a single report by ID.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	report, err := h.reportService.GetByID(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"report": report})
}

// =============================================================================
// POST /api/reports/{id}/complete - Mark Completed
// =============================================================================

// MarkCompleted records a report as handled in the completion ledger.
//
// Repeating the call for an already completed report succeeds without a
// second ledger entry.
func (h *ReportHandler) MarkCompleted(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id := r.PathValue("id")

	inserted, err := h.triageService.MarkCompleted(r.Context(), id, user.ID)
	if err != nil {
		if domain.ErrorCode(err) == domain.EUNAVAILABLE {
			metrics.CompletionRollbacks.Inc()
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	// Repeated completions respond 200 but do not move the counter.
	if inserted {
		metrics.ReportsCompleted.Inc()
	}

	h.logger.Info("report marked completed", "report_id", id, "operator_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"status": string(domain.ReportStatusCompleted),
	})
}

// =============================================================================
// GET /api/completions - Completion History
// =============================================================================

// Completions returns the full completion ledger, including entries for
// reports outside the current fetch window.
func (h *ReportHandler) Completions(w http.ResponseWriter, r *http.Request) {
	entries, err := h.triageService.Completions(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"completions": entries})
}

// =============================================================================
// Form Parsing Helpers
// =============================================================================

// parseEmergencyTypes accepts both repeated form values and a single
// comma-separated value.
func parseEmergencyTypes(values []string) []domain.EmergencyType {
	var types []domain.EmergencyType
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			trimmed := strings.TrimSpace(strings.ToLower(part))
			if trimmed != "" {
				types = append(types, domain.EmergencyType(trimmed))
			}
		}
	}
	return types
}

// parseCoordinates parses an optional latitude/longitude pair. Both must be
// present, or neither.
func parseCoordinates(latStr, lonStr string) (*float64, *float64, error) {
	latStr = strings.TrimSpace(latStr)
	lonStr = strings.TrimSpace(lonStr)

	if latStr == "" && lonStr == "" {
		return nil, nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, nil, domain.Invalid("", "Latitude and longitude must be provided together")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, nil, domain.Invalid("", "Latitude must be a number between -90 and 90")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return nil, nil, domain.Invalid("", "Longitude must be a number between -180 and 180")
	}

	return &lat, &lon, nil
}
