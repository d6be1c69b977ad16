// Package service contains business logic for the Beacon application.
//
// This file implements the report submission pipeline: field validation,
// attachment vetting, sequential uploads, and persistence of the immutable
// report record.
package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/rgoodwin/beacon/internal/domain"
	"github.com/rgoodwin/beacon/internal/repository"
	"github.com/rgoodwin/beacon/internal/storage"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// MaxAttachments is the maximum number of files per report.
	MaxAttachments = 3

	// MaxAttachmentBatchSize is the combined size limit for all attachments
	// on a single report: 20 MiB.
	MaxAttachmentBatchSize = 20 << 20

	// MaxDescriptionLength bounds the free-text description.
	MaxDescriptionLength = 5000

	// attachmentURLExpiry is unused when the storage backend serves public
	// URLs; it applies only when a presigned URL is required.
	attachmentURLExpiry = 0
)

// =============================================================================
// Types
// =============================================================================

// AttachmentUpload carries one file from the submission form.
type AttachmentUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// ReverseGeocoder resolves coordinates to a human-readable address.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// =============================================================================
// Interface Definition
// =============================================================================

// ReportService defines the interface for report submission and retrieval.
type ReportService interface {
	// Submit validates and persists a new report with its attachments.
	// Validation checks fields in a fixed order and fails on the first
	// violation. Attachments are uploaded sequentially; the first upload
	// failure aborts the whole submission.
	// Returns domain.EINVALID for validation errors and domain.ETOOLARGE
	// when the attachment batch exceeds the size limit.
	Submit(ctx context.Context, params domain.SubmitReportParams, uploads []AttachmentUpload) (*domain.Report, error)

	// List returns all reports, newest first.
	List(ctx context.Context) ([]domain.Report, error)

	// GetByID retrieves a single report.
	// Returns domain.ENOTFOUND if the report does not exist.
	GetByID(ctx context.Context, id string) (*domain.Report, error)
}

// =============================================================================
// Implementation
// =============================================================================

// reportService is the concrete implementation of ReportService.
type reportService struct {
	queries    *repository.Queries
	store      storage.Storage
	thumbnails ThumbnailProcessor
	geocoder   ReverseGeocoder // may be nil; geocoding is best-effort
	logger     *slog.Logger
}

// NewReportService creates a new ReportService instance.
func NewReportService(
	queries *repository.Queries,
	store storage.Storage,
	thumbnails ThumbnailProcessor,
	geocoder ReverseGeocoder,
	logger *slog.Logger,
) ReportService {
	return &reportService{
		queries:    queries,
		store:      store,
		thumbnails: thumbnails,
		geocoder:   geocoder,
		logger:     logger,
	}
}

// =============================================================================
// Submit Implementation
// =============================================================================

// Submit validates and persists a new report.
//
// Flow:
//  1. Validate fields in fixed order (name, types, location, description, phone)
//  2. Vet the attachment batch (count, combined size, content types)
//  3. Upload attachments one at a time, aborting on the first failure
//  4. Generate thumbnails for image attachments (best-effort)
//  5. Reverse-geocode coordinates into an address (best-effort)
//  6. Insert the report row; the record is immutable from here on
func (s *reportService) Submit(ctx context.Context, params domain.SubmitReportParams, uploads []AttachmentUpload) (*domain.Report, error) {
	const op = "ReportService.Submit"

	if err := validateSubmission(&params); err != nil {
		return nil, err
	}

	if err := validateAttachmentBatch(uploads); err != nil {
		return nil, err
	}

	// Report IDs are wall-clock nanosecond timestamps. Collisions require two
	// submissions in the same nanosecond on the same instance.
	reportID := strconv.FormatInt(time.Now().UnixNano(), 10)

	attachments, err := s.uploadAttachments(ctx, reportID, uploads)
	if err != nil {
		return nil, err
	}

	// Resolve an address for the map pin when coordinates were captured.
	// Failure here never blocks the submission.
	var address string
	if params.Latitude != nil && params.Longitude != nil && s.geocoder != nil {
		address, err = s.geocoder.ReverseGeocode(ctx, *params.Latitude, *params.Longitude)
		if err != nil {
			s.logger.Warn("reverse geocoding failed", "report_id", reportID, "error", err)
			address = ""
		}
	}

	typesJSON, err := json.Marshal(params.EmergencyTypes)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to encode emergency types")
	}
	attachmentsJSON, err := json.Marshal(attachments)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to encode attachments")
	}

	repoReport, err := s.queries.CreateReport(ctx, repository.CreateReportParams{
		ID:             reportID,
		ReporterID:     params.ReporterID,
		ReporterName:   params.ReporterName,
		EmergencyTypes: typesJSON,
		Location:       params.Location,
		Latitude:       domain.ToNullFloat64(params.Latitude),
		Longitude:      domain.ToNullFloat64(params.Longitude),
		Address:        domain.ToNullString(address),
		Description:    params.Description,
		Phone:          params.Phone,
		Attachments:    attachmentsJSON,
		Status:         string(domain.ReportStatusPending),
	})
	if err != nil {
		// Orphaned uploads are cleaned up so a failed insert leaves no trace.
		s.deleteAttachments(ctx, attachments)
		return nil, domain.Internal(err, op, "Failed to create report")
	}

	report, err := repoReportToDomain(repoReport)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to decode report")
	}

	s.logger.Info("report submitted",
		"report_id", report.ID,
		"reporter_id", report.ReporterID,
		"types", report.EmergencyTypes,
		"attachments", len(report.Attachments),
	)

	return report, nil
}

// =============================================================================
// List / GetByID Implementation
// =============================================================================

// List returns all reports, newest first.
func (s *reportService) List(ctx context.Context) ([]domain.Report, error) {
	const op = "ReportService.List"

	repoReports, err := s.queries.ListReports(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list reports")
	}

	reports := make([]domain.Report, 0, len(repoReports))
	for _, rr := range repoReports {
		report, err := repoReportToDomain(rr)
		if err != nil {
			return nil, domain.Internal(err, op, "Failed to decode report")
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

// GetByID retrieves a single report.
func (s *reportService) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	const op = "ReportService.GetByID"

	repoReport, err := s.queries.GetReportByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "report", id)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve report")
	}

	report, err := repoReportToDomain(repoReport)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to decode report")
	}
	return report, nil
}

// =============================================================================
// Attachment Handling
// =============================================================================

// uploadAttachments stores each upload in turn. The first failure aborts the
// batch; already-stored objects are removed so no partial batch survives.
func (s *reportService) uploadAttachments(ctx context.Context, reportID string, uploads []AttachmentUpload) ([]domain.Attachment, error) {
	const op = "ReportService.uploadAttachments"

	attachments := make([]domain.Attachment, 0, len(uploads))

	for i, upload := range uploads {
		// Buffer the file so it can be read twice: once for the upload and
		// once for thumbnail generation.
		data, err := io.ReadAll(io.LimitReader(upload.Data, MaxAttachmentBatchSize+1))
		if err != nil {
			s.deleteAttachments(ctx, attachments)
			return nil, domain.Internal(err, op, "Failed to read attachment")
		}

		contentType := storage.DetectContentType(upload.ContentType, upload.Filename, bytes.NewReader(data))
		key := storage.AttachmentKey(reportID, upload.Filename)

		err = s.store.Put(ctx, key, bytes.NewReader(data), storage.PutOptions{
			ContentType: contentType,
			MaxSize:     MaxAttachmentBatchSize,
			Public:      true,
		})
		if err != nil {
			s.deleteAttachments(ctx, attachments)
			return nil, domain.Internal(err, op,
				fmt.Sprintf("Failed to upload attachment %d of %d", i+1, len(uploads)))
		}

		url, err := s.store.URL(ctx, key, attachmentURLExpiry)
		if err != nil {
			s.logger.Warn("failed to build attachment URL", "key", key, "error", err)
			url = ""
		}

		attachment := domain.Attachment{
			Name:        upload.Filename,
			URL:         url,
			StorageKey:  key,
			ContentType: contentType,
			Size:        int64(len(data)),
		}

		if storage.IsImage(contentType) && s.thumbnails != nil {
			attachment.ThumbnailKey = s.generateThumbnail(ctx, reportID, data)
		}

		attachments = append(attachments, attachment)
	}

	return attachments, nil
}

// generateThumbnail stores a thumbnail for an image attachment and returns
// its key, or "" when generation or storage fails. Thumbnails are an
// optimization, never a reason to fail a submission.
func (s *reportService) generateThumbnail(ctx context.Context, reportID string, data []byte) string {
	thumb, _, _, err := s.thumbnails.GenerateThumbnail(bytes.NewReader(data), ThumbnailMaxWidth, ThumbnailMaxHeight)
	if err != nil {
		s.logger.Warn("thumbnail generation failed", "report_id", reportID, "error", err)
		return ""
	}

	key := storage.ThumbnailKey(reportID)
	err = s.store.Put(ctx, key, bytes.NewReader(thumb), storage.PutOptions{
		ContentType: "image/jpeg",
		Public:      true,
	})
	if err != nil {
		s.logger.Warn("thumbnail upload failed", "report_id", reportID, "error", err)
		return ""
	}
	return key
}

// deleteAttachments best-effort removes stored objects after a failed batch.
func (s *reportService) deleteAttachments(ctx context.Context, attachments []domain.Attachment) {
	for _, a := range attachments {
		if err := s.store.Delete(ctx, a.StorageKey); err != nil {
			s.logger.Warn("failed to delete orphaned attachment", "key", a.StorageKey, "error", err)
		}
		if a.ThumbnailKey != "" {
			if err := s.store.Delete(ctx, a.ThumbnailKey); err != nil {
				s.logger.Warn("failed to delete orphaned thumbnail", "key", a.ThumbnailKey, "error", err)
			}
		}
	}
}

// =============================================================================
// Validation
// =============================================================================

// validateSubmission checks submission fields in a fixed order and returns
// the first violation found: reporter name, emergency types, location,
// description, then phone.
func validateSubmission(params *domain.SubmitReportParams) error {
	const op = "ReportService.Submit"

	params.ReporterName = strings.TrimSpace(params.ReporterName)
	params.Location = strings.TrimSpace(params.Location)
	params.Description = strings.TrimSpace(params.Description)
	params.Phone = strings.TrimSpace(params.Phone)

	if params.ReporterName == "" {
		return domain.Invalid(op, "Reporter name is required")
	}

	if len(params.EmergencyTypes) == 0 {
		return domain.Invalid(op, "At least one emergency type is required")
	}
	for _, t := range params.EmergencyTypes {
		if !t.IsValid() {
			return domain.Invalid(op, fmt.Sprintf("Unknown emergency type %q", t))
		}
	}

	if params.Location == "" {
		return domain.Invalid(op, "Location is required")
	}

	if params.Description == "" {
		return domain.Invalid(op, "Description is required")
	}
	if len(params.Description) > MaxDescriptionLength {
		return domain.Invalid(op, "Description is too long")
	}

	if params.Phone == "" {
		return domain.Invalid(op, "Phone number is required")
	}
	if !isPlausiblePhone(params.Phone) {
		return domain.Invalid(op, "Phone number is not valid")
	}

	return nil
}

// validateAttachmentBatch enforces the batch rules before any bytes are
// uploaded: at most MaxAttachments files, a combined size within
// MaxAttachmentBatchSize, and only permitted content types.
func validateAttachmentBatch(uploads []AttachmentUpload) error {
	const op = "ReportService.Submit"

	if len(uploads) > MaxAttachments {
		return domain.Invalid(op, fmt.Sprintf("At most %d attachments are allowed", MaxAttachments))
	}

	var total int64
	for _, upload := range uploads {
		total += upload.Size
		if !storage.IsAllowedAttachment(upload.ContentType, upload.Filename) {
			return domain.Invalid(op,
				fmt.Sprintf("File %q is not an accepted type (images, PDF, or Word documents)", upload.Filename))
		}
	}
	if total > MaxAttachmentBatchSize {
		return domain.TooLarge(op, "Attachments exceed the 20 MB combined limit")
	}

	return nil
}

// isPlausiblePhone accepts digits with optional leading + and common
// separators, requiring at least 7 digits.
func isPlausiblePhone(phone string) bool {
	digits := 0
	for i, c := range phone {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '+' && i == 0:
		case c == ' ' || c == '-' || c == '(' || c == ')':
		default:
			return false
		}
	}
	return digits >= 7
}

// =============================================================================
// Conversion
// =============================================================================

// repoReportToDomain converts a repository.Report to domain.Report, decoding
// the JSONB columns.
func repoReportToDomain(r repository.Report) (*domain.Report, error) {
	var types []domain.EmergencyType
	if len(r.EmergencyTypes) > 0 {
		if err := json.Unmarshal(r.EmergencyTypes, &types); err != nil {
			return nil, fmt.Errorf("decode emergency types: %w", err)
		}
	}

	var attachments []domain.Attachment
	if len(r.Attachments) > 0 {
		if err := json.Unmarshal(r.Attachments, &attachments); err != nil {
			return nil, fmt.Errorf("decode attachments: %w", err)
		}
	}

	return &domain.Report{
		ID:             r.ID,
		ReporterID:     r.ReporterID,
		ReporterName:   r.ReporterName,
		EmergencyTypes: types,
		Location:       r.Location,
		Latitude:       domain.NullFloat64Value(r.Latitude),
		Longitude:      domain.NullFloat64Value(r.Longitude),
		Address:        domain.NullStringValue(r.Address),
		Description:    r.Description,
		Phone:          r.Phone,
		Attachments:    attachments,
		Status:         domain.ReportStatus(r.Status),
		CreatedAt:      r.CreatedAt,
	}, nil
}

// Ensure reportService implements ReportService
var _ ReportService = (*reportService)(nil)
