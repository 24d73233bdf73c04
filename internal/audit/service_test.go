package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/enums"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
)

type stubRevoker struct {
	revoked  []uuid.UUID
	canceled []uuid.UUID
	err      error
}

func (s *stubRevoker) Revoke(ctx context.Context, rentalID uuid.UUID) error {
	s.revoked = append(s.revoked, rentalID)
	return s.err
}

func (s *stubRevoker) Cancel(ctx context.Context, rentalID uuid.UUID) error {
	s.canceled = append(s.canceled, rentalID)
	return s.err
}

func newTestService(t *testing.T) (Service, *Repository, *gorm.DB) {
	t.Helper()
	dsn := "file:audit_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.AuditEvent{}); err != nil {
		t.Fatalf("migrate audit events: %v", err)
	}
	repo := NewRepository(db)
	svc, err := NewService(repo, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo, db
}

func TestReportAppendsEvent(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	rental := uuid.New()

	event, err := svc.Report(ctx, ReportInput{
		RentalID:  &rental,
		BuyerID:   uuid.New(),
		ContentID: uuid.New(),
		Kind:      enums.AuditEventRentalCreated,
	})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if event.ID == uuid.Nil {
		t.Fatal("expected event id")
	}

	rows, err := repo.ListByRental(ctx, rental)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].Kind != enums.AuditEventRentalCreated {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestReportViolationTriggersRevocation(t *testing.T) {
	svc, _, _ := newTestService(t)
	revoker := &stubRevoker{}
	svc.SetRevoker(revoker)
	rental := uuid.New()

	detail := json.RawMessage(`{"fingerprint":"devtools-open"}`)
	if _, err := svc.Report(context.Background(), ReportInput{
		RentalID:  &rental,
		BuyerID:   uuid.New(),
		ContentID: uuid.New(),
		Kind:      enums.AuditEventSecurityViolation,
		Detail:    detail,
	}); err != nil {
		t.Fatalf("report: %v", err)
	}

	if len(revoker.revoked) != 1 || revoker.revoked[0] != rental {
		t.Fatalf("expected revocation for %s, got %v", rental, revoker.revoked)
	}
}

func TestReportRentalEndCancels(t *testing.T) {
	svc, _, _ := newTestService(t)
	revoker := &stubRevoker{}
	svc.SetRevoker(revoker)
	rental := uuid.New()

	if _, err := svc.Report(context.Background(), ReportInput{
		RentalID:  &rental,
		BuyerID:   uuid.New(),
		ContentID: uuid.New(),
		Kind:      enums.AuditEventRentalEnd,
	}); err != nil {
		t.Fatalf("report: %v", err)
	}

	if len(revoker.canceled) != 1 || revoker.canceled[0] != rental {
		t.Fatalf("expected cancel for %s, got %v", rental, revoker.canceled)
	}
	if len(revoker.revoked) != 0 {
		t.Fatal("rental_end must not use the violation path")
	}
}

func TestReportSucceedsWhenRevocationFails(t *testing.T) {
	svc, repo, _ := newTestService(t)
	revoker := &stubRevoker{err: errors.New("rental busy")}
	svc.SetRevoker(revoker)
	rental := uuid.New()

	event, err := svc.Report(context.Background(), ReportInput{
		RentalID:  &rental,
		BuyerID:   uuid.New(),
		ContentID: uuid.New(),
		Kind:      enums.AuditEventSuspiciousActivity,
	})
	if err != nil {
		t.Fatalf("report must not fail on deferred revocation: %v", err)
	}
	if event == nil {
		t.Fatal("expected logged event")
	}

	rows, err := repo.ListByRental(context.Background(), rental)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected event persisted, got %d rows", len(rows))
	}
}

func TestReportRepeatedViolationIsIdempotentForCaller(t *testing.T) {
	svc, repo, _ := newTestService(t)
	revoker := &stubRevoker{}
	svc.SetRevoker(revoker)
	rental := uuid.New()
	buyer := uuid.New()
	content := uuid.New()

	for i := 0; i < 2; i++ {
		if _, err := svc.Report(context.Background(), ReportInput{
			RentalID:  &rental,
			BuyerID:   buyer,
			ContentID: content,
			Kind:      enums.AuditEventSecurityViolation,
		}); err != nil {
			t.Fatalf("report %d: %v", i, err)
		}
	}

	rows, err := repo.ListByRental(context.Background(), rental)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("append-only stream must keep both reports, got %d", len(rows))
	}
	if len(revoker.revoked) != 2 {
		t.Fatalf("revocation attempted per report, got %d", len(revoker.revoked))
	}
}

func TestReportValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Report(ctx, ReportInput{
		BuyerID:   uuid.New(),
		ContentID: uuid.New(),
		Kind:      enums.AuditEventKind("made_up"),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.Report(ctx, ReportInput{
		BuyerID:   uuid.New(),
		ContentID: uuid.New(),
		Kind:      enums.AuditEventSecurityViolation,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing rental id, got %v", err)
	}
}

func TestMarkPublished(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	rental := uuid.New()

	event, err := svc.Report(ctx, ReportInput{
		RentalID:  &rental,
		BuyerID:   uuid.New(),
		ContentID: uuid.New(),
		Kind:      enums.AuditEventAccessStart,
	})
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	pending, err := repo.ListUnpublished(ctx, 10)
	if err != nil {
		t.Fatalf("list unpublished: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 unpublished event, got %d", len(pending))
	}

	if err := repo.MarkPublished(ctx, []uuid.UUID{event.ID}, event.OccurredAt.Add(1)); err != nil {
		t.Fatalf("mark published: %v", err)
	}

	pending, err = repo.ListUnpublished(ctx, 10)
	if err != nil {
		t.Fatalf("list unpublished: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no unpublished events, got %d", len(pending))
	}
}

func TestHistoryReturnsFullEventStream(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	rental := uuid.New()
	buyer := uuid.New()
	content := uuid.New()

	for _, kind := range []enums.AuditEventKind{
		enums.AuditEventRentalCreated,
		enums.AuditEventAccessStart,
		enums.AuditEventAccessEnd,
	} {
		if _, err := svc.Report(ctx, ReportInput{
			RentalID:  &rental,
			BuyerID:   buyer,
			ContentID: content,
			Kind:      kind,
		}); err != nil {
			t.Fatalf("report %s: %v", kind, err)
		}
	}

	rows, err := svc.History(ctx, rental)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 events, got %d", len(rows))
	}
	if rows[0].Kind != enums.AuditEventRentalCreated {
		t.Fatalf("expected creation first, got %s", rows[0].Kind)
	}

	if _, err := svc.History(ctx, uuid.Nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for nil rental id, got %v", err)
	}
}
