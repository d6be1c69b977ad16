// Package domain contains core business types and interfaces.
//
// This file defines the Report domain type: the record a citizen files when
// reporting an emergency, together with its status model. Reports are written
// once at submission and never updated afterward; the authoritative
// "completed" state for a report lives in the completion ledger, and the two
// sources are merged into an effective status at read time.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Emergency Types
// =============================================================================

// EmergencyType tags a report with the kind of service it concerns.
type EmergencyType string

const (
	EmergencyTypeMedical EmergencyType = "medical"
	EmergencyTypePolice  EmergencyType = "police"
	EmergencyTypeFire    EmergencyType = "fire"
)

// IsValid returns true if the type is one of the closed tag set.
func (t EmergencyType) IsValid() bool {
	switch t {
	case EmergencyTypeMedical, EmergencyTypePolice, EmergencyTypeFire:
		return true
	}
	return false
}

// =============================================================================
// Report Status
// =============================================================================

// ReportStatus is the status stored on the report record itself.
//
// The stored status is written as "pending" at creation and never transitions
// server-side: completion is tracked exclusively in the ledger. The full enum
// is kept because historical records imported from other systems may carry
// "in-progress".
type ReportStatus string

const (
	ReportStatusPending    ReportStatus = "pending"
	ReportStatusInProgress ReportStatus = "in-progress"
	ReportStatusCompleted  ReportStatus = "completed"
)

// =============================================================================
// Attachment
// =============================================================================

// Attachment describes one file uploaded with a report.
type Attachment struct {
	Name         string `json:"name"`          // Original filename
	URL          string `json:"url"`           // Public or presigned URL
	StorageKey   string `json:"storage_key"`   // Object storage key
	ContentType  string `json:"content_type"`  // MIME type
	Size         int64  `json:"size"`          // Byte size
	ThumbnailKey string `json:"thumbnail_key"` // Thumbnail key (images only, may be empty)
}

// SizeMB returns the attachment size in megabytes for display.
func (a *Attachment) SizeMB() float64 {
	return float64(a.Size) / (1024 * 1024)
}

// =============================================================================
// Report
// =============================================================================

// Report is a citizen-submitted emergency report.
//
// Invariant: the stored record is immutable after creation. MarkCompleted
// never touches it; only the effective status changes, derived from the
// completion ledger.
type Report struct {
	ID             string          `json:"id"`
	ReporterID     uuid.UUID       `json:"reporter_id"`
	ReporterName   string          `json:"reporter_name"`
	EmergencyTypes []EmergencyType `json:"emergency_types"`
	Location       string          `json:"location"`
	Latitude       *float64        `json:"latitude,omitempty"`
	Longitude      *float64        `json:"longitude,omitempty"`
	Address        string          `json:"address,omitempty"`
	Description    string          `json:"description"`
	Phone          string          `json:"phone"`
	Attachments    []Attachment    `json:"attachments"`
	Status         ReportStatus    `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}

// HasCoordinates returns true if the report carries structured coordinates.
func (r *Report) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// EffectiveStatus derives the status shown to operators: completed if the
// report appears in the completion ledger, otherwise the stored status.
func (r *Report) EffectiveStatus(completed map[string]bool) ReportStatus {
	if completed[r.ID] {
		return ReportStatusCompleted
	}
	return r.Status
}

// =============================================================================
// Submission Parameters
// =============================================================================

// SubmitReportParams carries the validated inputs for a new report.
type SubmitReportParams struct {
	ReporterID     uuid.UUID
	ReporterName   string
	EmergencyTypes []EmergencyType
	Location       string
	Latitude       *float64
	Longitude      *float64
	Description    string
	Phone          string
}

// =============================================================================
// Aggregate Counts
// =============================================================================

// ReportCounts holds the triage dashboard counters.
//
// Completed counts only ledger entries whose report appears in the current
// fetch, not the raw ledger size: the ledger may reference historical IDs no
// longer present in the fetch window.
type ReportCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
}

// CalculateReportCounts derives aggregate counters from a fetched report list
// and the set of completed report IDs.
func CalculateReportCounts(reports []Report, completed map[string]bool) ReportCounts {
	counts := ReportCounts{Total: len(reports)}
	for i := range reports {
		if reports[i].EffectiveStatus(completed) == ReportStatusCompleted {
			counts.Completed++
		}
	}
	counts.Pending = counts.Total - counts.Completed
	return counts
}
