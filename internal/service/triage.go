// Package service contains business logic for the Beacon application.
//
// This file implements the triage dashboard: the merged view of the primary
// report store and the completion ledger, and the optimistic mark-completed
// operation.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rgoodwin/beacon/internal/domain"
	"github.com/rgoodwin/beacon/internal/ledger"
)

// =============================================================================
// Types
// =============================================================================

// TriageView is the dashboard payload: all reports with their effective
// status, plus aggregate counters.
//
// The Status field on each report is the effective status (ledger presence
// wins over the stored value), not the raw stored status.
type TriageView struct {
	Reports []domain.Report     `json:"reports"`
	Counts  domain.ReportCounts `json:"counts"`
}

// =============================================================================
// Interface Definition
// =============================================================================

// CompletionLedger is the ledger surface the triage service depends on.
// Satisfied by *ledger.Store.
type CompletionLedger interface {
	Has(ctx context.Context, reportID string) (bool, error)
	Add(ctx context.Context, entry domain.CompletionEntry) error
	All(ctx context.Context) ([]domain.CompletionEntry, error)
	CompletedIDs(ctx context.Context) (map[string]bool, error)
}

var _ CompletionLedger = (*ledger.Store)(nil)

// TriageService defines the operator-facing triage operations.
type TriageService interface {
	// Load fetches all reports and merges them with the completion ledger
	// into the dashboard view.
	Load(ctx context.Context) (*TriageView, error)

	// MarkCompleted records a report as completed in the ledger.
	//
	// The completion is applied optimistically: the in-memory view reflects
	// it immediately, and a ledger write failure rolls it back. Marking an
	// already-completed report is a no-op that still succeeds; the returned
	// bool is true only when a new ledger entry was written.
	// Returns domain.ENOTFOUND if the report does not exist.
	MarkCompleted(ctx context.Context, reportID string, operatorID uuid.UUID) (bool, error)

	// Completions returns the full completion history, oldest first.
	Completions(ctx context.Context) ([]domain.CompletionEntry, error)
}

// =============================================================================
// Implementation
// =============================================================================

// triageService is the concrete implementation of TriageService.
type triageService struct {
	reports ReportService
	ledger  CompletionLedger
	logger  *slog.Logger

	// mu guards pending, the optimistic overlay of report IDs marked
	// completed in-flight. Entries are promoted into the ledger on success
	// and removed on rollback, so the overlay is normally empty.
	mu      sync.Mutex
	pending map[string]bool
}

// NewTriageService creates a new TriageService instance.
func NewTriageService(reports ReportService, ledgerStore CompletionLedger, logger *slog.Logger) TriageService {
	return &triageService{
		reports: reports,
		ledger:  ledgerStore,
		logger:  logger,
		pending: make(map[string]bool),
	}
}

// =============================================================================
// Load Implementation
// =============================================================================

// Load fetches all reports and merges them with the completion ledger.
//
// Completion state comes exclusively from the ledger (plus any in-flight
// optimistic marks); the stored status on a report row is only a fallback for
// records imported with a non-pending status. Counts consider only ledger
// entries whose report appears in the fetched list.
func (s *triageService) Load(ctx context.Context) (*TriageView, error) {
	const op = "TriageService.Load"

	reports, err := s.reports.List(ctx)
	if err != nil {
		return nil, err
	}

	completed, err := s.ledger.CompletedIDs(ctx)
	if err != nil {
		return nil, domain.Errorf(domain.EUNAVAILABLE, op, "Completion ledger is unavailable")
	}

	s.mu.Lock()
	for id := range s.pending {
		completed[id] = true
	}
	s.mu.Unlock()

	counts := domain.CalculateReportCounts(reports, completed)

	// Rewrite each report's status to its effective status for display.
	for i := range reports {
		reports[i].Status = reports[i].EffectiveStatus(completed)
	}

	return &TriageView{
		Reports: reports,
		Counts:  counts,
	}, nil
}

// =============================================================================
// MarkCompleted Implementation
// =============================================================================

// MarkCompleted records a report as completed.
//
// Flow:
//  1. Fetch the report; unknown IDs fail with ENOTFOUND
//  2. If the ledger already has the report, succeed without writing
//  3. Apply the optimistic overlay so concurrent Loads see the completion
//  4. Write the ledger entry
//  5. On success drop the overlay entry (the ledger now carries it);
//     on failure drop it too, rolling the view back to pending
//
// The stored report row is never touched.
func (s *triageService) MarkCompleted(ctx context.Context, reportID string, operatorID uuid.UUID) (bool, error) {
	const op = "TriageService.MarkCompleted"

	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return false, err
	}

	has, err := s.ledger.Has(ctx, reportID)
	if err != nil {
		return false, domain.Errorf(domain.EUNAVAILABLE, op, "Completion ledger is unavailable")
	}
	if has {
		s.logger.Debug("report already completed", "report_id", reportID)
		return false, nil
	}

	// Optimistic: visible to Load before the ledger write lands.
	s.mu.Lock()
	s.pending[reportID] = true
	s.mu.Unlock()

	entry := domain.NewCompletionEntry(*report, operatorID, time.Now().UTC())
	err = s.ledger.Add(ctx, entry)

	s.mu.Lock()
	delete(s.pending, reportID)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("completion rolled back", "report_id", reportID, "error", err)
		return false, domain.Wrap(err, domain.EUNAVAILABLE, op, "Failed to record completion; the report remains pending")
	}

	s.logger.Info("report marked completed", "report_id", reportID, "operator_id", operatorID)

	return true, nil
}

// =============================================================================
// Completions Implementation
// =============================================================================

// Completions returns every ledger entry, including entries whose report no
// longer appears in the primary fetch window.
func (s *triageService) Completions(ctx context.Context) ([]domain.CompletionEntry, error) {
	const op = "TriageService.Completions"

	entries, err := s.ledger.All(ctx)
	if err != nil {
		return nil, domain.Errorf(domain.EUNAVAILABLE, op, "Completion ledger is unavailable")
	}

	return entries, nil
}

// Ensure triageService implements TriageService
var _ TriageService = (*triageService)(nil)
