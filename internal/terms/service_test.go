package terms

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/enums"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r *testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestService(t *testing.T) (Service, *Repository, *gorm.DB) {
	t.Helper()
	dsn := "file:terms_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.TermsVersion{}, &models.TermsAcceptance{}); err != nil {
		t.Fatalf("migrate terms: %v", err)
	}
	repo := NewRepository(db)
	svc, err := NewService(repo, &testTxRunner{db: db}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo, db
}

func seedActiveVersion(t *testing.T, db *gorm.DB, category enums.TermsCategory, effectiveAt time.Time) *models.TermsVersion {
	t.Helper()
	version := &models.TermsVersion{
		ID:          uuid.New(),
		Category:    category,
		Body:        "Kushtet e qirasë",
		EffectiveAt: effectiveAt,
		IsActive:    true,
	}
	if err := db.Create(version).Error; err != nil {
		t.Fatalf("seed version: %v", err)
	}
	return version
}

func TestCheckAcceptancePassesOpenWithoutActiveTerms(t *testing.T) {
	svc, _, _ := newTestService(t)

	status, err := svc.CheckAcceptance(context.Background(), uuid.New(), enums.TermsCategoryEbookRental)
	if err != nil {
		t.Fatalf("check acceptance: %v", err)
	}
	if !status.Accepted {
		t.Fatal("expected open gate when no terms are configured")
	}
	if status.ActiveTerms != nil {
		t.Fatal("expected no active terms attached")
	}
}

func TestCheckAcceptanceRequiresConfirmedAcceptance(t *testing.T) {
	svc, _, db := newTestService(t)
	buyer := uuid.New()
	version := seedActiveVersion(t, db, enums.TermsCategoryEbookRental, time.Now().Add(-time.Hour))

	status, err := svc.CheckAcceptance(context.Background(), buyer, enums.TermsCategoryEbookRental)
	if err != nil {
		t.Fatalf("check acceptance: %v", err)
	}
	if status.Accepted {
		t.Fatal("expected gate closed before acceptance")
	}
	if status.ActiveTerms == nil || status.ActiveTerms.ID != version.ID {
		t.Fatal("expected active terms returned for prompting")
	}

	_, err = svc.RecordAcceptance(context.Background(), buyer, AcceptInput{
		TermsVersionID:      version.ID,
		ConfirmedRead:       true,
		ConfirmedUnderstood: true,
	})
	if err != nil {
		t.Fatalf("record acceptance: %v", err)
	}

	status, err = svc.CheckAcceptance(context.Background(), buyer, enums.TermsCategoryEbookRental)
	if err != nil {
		t.Fatalf("check acceptance: %v", err)
	}
	if !status.Accepted {
		t.Fatal("expected gate open after acceptance")
	}
}

func TestRecordAcceptanceRejectsUnconfirmed(t *testing.T) {
	svc, _, db := newTestService(t)
	version := seedActiveVersion(t, db, enums.TermsCategoryGeneral, time.Now().Add(-time.Hour))

	_, err := svc.RecordAcceptance(context.Background(), uuid.New(), AcceptInput{
		TermsVersionID:      version.ID,
		ConfirmedRead:       true,
		ConfirmedUnderstood: false,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordAcceptanceRejectsUnknownVersion(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.RecordAcceptance(context.Background(), uuid.New(), AcceptInput{
		TermsVersionID:      uuid.New(),
		ConfirmedRead:       true,
		ConfirmedUnderstood: true,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestAcceptanceHistoryIsAppendOnly(t *testing.T) {
	svc, _, db := newTestService(t)
	buyer := uuid.New()
	version := seedActiveVersion(t, db, enums.TermsCategoryHardcopyRental, time.Now().Add(-time.Hour))

	for i := 0; i < 2; i++ {
		if _, err := svc.RecordAcceptance(context.Background(), buyer, AcceptInput{
			TermsVersionID:      version.ID,
			ConfirmedRead:       true,
			ConfirmedUnderstood: true,
		}); err != nil {
			t.Fatalf("record acceptance %d: %v", i, err)
		}
	}

	var count int64
	if err := db.Model(&models.TermsAcceptance{}).Where("buyer_id = ?", buyer).Count(&count).Error; err != nil {
		t.Fatalf("count acceptances: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 acceptance rows, got %d", count)
	}
}

func TestNeedsReacceptanceAfterNewVersion(t *testing.T) {
	svc, _, db := newTestService(t)
	buyer := uuid.New()
	version := seedActiveVersion(t, db, enums.TermsCategoryEbookRental, time.Now().Add(-48*time.Hour))

	if _, err := svc.RecordAcceptance(context.Background(), buyer, AcceptInput{
		TermsVersionID:      version.ID,
		ConfirmedRead:       true,
		ConfirmedUnderstood: true,
	}); err != nil {
		t.Fatalf("record acceptance: %v", err)
	}

	needs, err := svc.NeedsReacceptance(context.Background(), buyer, enums.TermsCategoryEbookRental)
	if err != nil {
		t.Fatalf("needs reacceptance: %v", err)
	}
	if needs {
		t.Fatal("acceptance of current version should not need refresh")
	}

	if _, err := svc.PublishVersion(context.Background(), PublishInput{
		Category:    enums.TermsCategoryEbookRental,
		Body:        "Kushte të përditësuara",
		EffectiveAt: time.Now(),
	}); err != nil {
		t.Fatalf("publish version: %v", err)
	}

	needs, err = svc.NeedsReacceptance(context.Background(), buyer, enums.TermsCategoryEbookRental)
	if err != nil {
		t.Fatalf("needs reacceptance: %v", err)
	}
	if !needs {
		t.Fatal("superseding terms must require reacceptance")
	}
}

func TestPublishVersionRetiresPriorActive(t *testing.T) {
	svc, repo, db := newTestService(t)
	old := seedActiveVersion(t, db, enums.TermsCategoryAudioRental, time.Now().Add(-24*time.Hour))

	published, err := svc.PublishVersion(context.Background(), PublishInput{
		Category:    enums.TermsCategoryAudioRental,
		Body:        "Kushte të reja",
		EffectiveAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("publish version: %v", err)
	}

	active, err := repo.FindActiveVersion(context.Background(), enums.TermsCategoryAudioRental)
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if active == nil || active.ID != published.ID {
		t.Fatalf("expected new version active, got %+v", active)
	}

	var oldRow models.TermsVersion
	if err := db.Where("id = ?", old.ID).First(&oldRow).Error; err != nil {
		t.Fatalf("reload old version: %v", err)
	}
	if oldRow.IsActive {
		t.Fatal("prior version must be retired")
	}
}
