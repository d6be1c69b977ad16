// Package domain contains core business types and interfaces.
//
// This file defines the completion ledger entry. The ledger is the single
// source of truth for "done" status: the report record in the primary store
// is never mutated, and an operator marking a report completed appends a full
// snapshot of the report here instead.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// CompletionEntry is an append-only record of a report marked completed.
//
// Entries are keyed by report ID: inserting an entry for an ID that already
// exists is a no-op. Entries are never deleted and never synced back to the
// primary store, so clearing the local store silently loses completion
// history, a known data-integrity gap that is documented rather than fixed.
type CompletionEntry struct {
	Report      Report    // Snapshot of the report at completion time
	CompletedAt time.Time // Client clock at the moment of completion
	CompletedBy uuid.UUID // Operator who marked the report completed
}

// NewCompletionEntry snapshots a report for the ledger.
func NewCompletionEntry(report Report, by uuid.UUID, now time.Time) CompletionEntry {
	return CompletionEntry{
		Report:      report,
		CompletedAt: now,
		CompletedBy: by,
	}
}
