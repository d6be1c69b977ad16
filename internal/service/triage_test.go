package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgoodwin/beacon/internal/domain"
	"github.com/rgoodwin/beacon/internal/ledger"
)

// stubReportService serves a fixed report list.
type stubReportService struct {
	reports []domain.Report
}

func (s *stubReportService) Submit(ctx context.Context, params domain.SubmitReportParams, uploads []AttachmentUpload) (*domain.Report, error) {
	panic("not used")
}

func (s *stubReportService) List(ctx context.Context) ([]domain.Report, error) {
	out := make([]domain.Report, len(s.reports))
	copy(out, s.reports)
	return out, nil
}

func (s *stubReportService) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	for i := range s.reports {
		if s.reports[i].ID == id {
			r := s.reports[i]
			return &r, nil
		}
	}
	return nil, domain.NotFound("stub.GetByID", "report", id)
}

var _ ReportService = (*stubReportService)(nil)

// fakeLedger is an in-memory CompletionLedger whose write path can be made
// to fail while reads keep working.
type fakeLedger struct {
	entries []domain.CompletionEntry
	addErr  error
}

func (f *fakeLedger) Has(ctx context.Context, reportID string) (bool, error) {
	for _, e := range f.entries {
		if e.Report.ID == reportID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) Add(ctx context.Context, entry domain.CompletionEntry) error {
	if f.addErr != nil {
		return f.addErr
	}
	if has, _ := f.Has(ctx, entry.Report.ID); has {
		return nil
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLedger) All(ctx context.Context) ([]domain.CompletionEntry, error) {
	out := make([]domain.CompletionEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *fakeLedger) CompletedIDs(ctx context.Context) (map[string]bool, error) {
	ids := make(map[string]bool, len(f.entries))
	for _, e := range f.entries {
		ids[e.Report.ID] = true
	}
	return ids, nil
}

var _ CompletionLedger = (*fakeLedger)(nil)

func triageFixture(t *testing.T, reports ...domain.Report) (*triageService, *ledger.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := NewTriageService(&stubReportService{reports: reports}, store, logger).(*triageService)
	return svc, store
}

func pendingReport(id string) domain.Report {
	return domain.Report{
		ID:             id,
		ReporterID:     uuid.New(),
		ReporterName:   "Jess Okafor",
		EmergencyTypes: []domain.EmergencyType{domain.EmergencyTypePolice},
		Location:       "Main St",
		Description:    "window smashed",
		Phone:          "+23276000000",
		Status:         domain.ReportStatusPending,
		CreatedAt:      time.Now(),
	}
}

func TestLoadMergesLedgerIntoView(t *testing.T) {
	svc, store := triageFixture(t, pendingReport("a"), pendingReport("b"), pendingReport("c"))
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, domain.NewCompletionEntry(pendingReport("b"), uuid.New(), time.Now())))

	view, err := svc.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.ReportCounts{Total: 3, Pending: 2, Completed: 1}, view.Counts)

	statuses := map[string]domain.ReportStatus{}
	for _, r := range view.Reports {
		statuses[r.ID] = r.Status
	}
	assert.Equal(t, domain.ReportStatusPending, statuses["a"])
	assert.Equal(t, domain.ReportStatusCompleted, statuses["b"])
	assert.Equal(t, domain.ReportStatusPending, statuses["c"])
}

func TestLoadIgnoresLedgerEntriesOutsideFetch(t *testing.T) {
	svc, store := triageFixture(t, pendingReport("a"))
	ctx := context.Background()

	// A historical completion whose report is no longer in the fetch window
	// must not inflate the completed count.
	require.NoError(t, store.Add(ctx, domain.NewCompletionEntry(pendingReport("gone"), uuid.New(), time.Now())))

	view, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportCounts{Total: 1, Pending: 1, Completed: 0}, view.Counts)
}

func TestMarkCompleted(t *testing.T) {
	svc, store := triageFixture(t, pendingReport("a"))
	ctx := context.Background()
	operator := uuid.New()

	inserted, err := svc.MarkCompleted(ctx, "a", operator)
	require.NoError(t, err)
	assert.True(t, inserted)

	has, err := store.Has(ctx, "a")
	require.NoError(t, err)
	assert.True(t, has)

	view, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportCounts{Total: 1, Pending: 0, Completed: 1}, view.Counts)
}

func TestMarkCompletedUnknownReport(t *testing.T) {
	svc, _ := triageFixture(t, pendingReport("a"))

	_, err := svc.MarkCompleted(context.Background(), "missing", uuid.New())
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestMarkCompletedIsIdempotent(t *testing.T) {
	svc, store := triageFixture(t, pendingReport("a"))
	ctx := context.Background()

	inserted, err := svc.MarkCompleted(ctx, "a", uuid.New())
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = svc.MarkCompleted(ctx, "a", uuid.New())
	require.NoError(t, err)
	assert.False(t, inserted)

	size, err := store.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestMarkCompletedLedgerUnavailable(t *testing.T) {
	svc, store := triageFixture(t, pendingReport("a"))
	ctx := context.Background()

	// A closed ledger fails the already-completed lookup, before any
	// optimistic state is applied.
	require.NoError(t, store.Close())

	_, err := svc.MarkCompleted(ctx, "a", uuid.New())
	require.Error(t, err)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.Equal(t, "Completion ledger is unavailable", domain.ErrorMessage(err))

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Empty(t, svc.pending)
}

func TestMarkCompletedRollsBackOnWriteFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	led := &fakeLedger{addErr: errors.New("disk full")}
	reports := &stubReportService{reports: []domain.Report{pendingReport("a"), pendingReport("b")}}
	svc := NewTriageService(reports, led, logger).(*triageService)
	ctx := context.Background()

	before, err := svc.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.ReportCounts{Total: 2, Pending: 2, Completed: 0}, before.Counts)

	// Has succeeds, so the optimistic overlay is applied; the ledger write
	// then fails and the overlay must be removed.
	inserted, err := svc.MarkCompleted(ctx, "a", uuid.New())
	require.Error(t, err)
	assert.False(t, inserted)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.Equal(t, "Failed to record completion; the report remains pending", domain.ErrorMessage(err))

	svc.mu.Lock()
	assert.Empty(t, svc.pending)
	svc.mu.Unlock()

	// The view is exactly what it was before the attempt.
	after, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Counts, after.Counts)
	for _, r := range after.Reports {
		assert.Equal(t, domain.ReportStatusPending, r.Status)
	}

	// Once the write path recovers the same report completes normally.
	led.addErr = nil
	inserted, err = svc.MarkCompleted(ctx, "a", uuid.New())
	require.NoError(t, err)
	assert.True(t, inserted)
}
