package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/librariashqip/libraria-backend/internal/audit"
	"github.com/librariashqip/libraria-backend/internal/catalog"
	"github.com/librariashqip/libraria-backend/internal/rentals"
	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/enums"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
)

type settlementTxRunner struct {
	db *gorm.DB
}

func (r *settlementTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type settlementFixture struct {
	svc Service
	db  *gorm.DB
	now time.Time
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()
	dsn := "file:settlement_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Content{}, &models.Rental{}, &models.AuditEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	fx := &settlementFixture{
		db:  db,
		now: time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(
		rentals.NewRepository(db),
		catalog.NewRepository(db),
		audit.NewRepository(db),
		&settlementTxRunner{db: db},
		nil,
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.(*service).now = func() time.Time { return fx.now }
	fx.svc = svc
	return fx
}

func (fx *settlementFixture) seedHardcopyRental(t *testing.T, endsAt time.Time) *models.Rental {
	t.Helper()
	content := &models.Content{
		ID:                 uuid.New(),
		Title:              "Kronikë në gur",
		Active:             true,
		HasPhysical:        true,
		PhysicalPriceCents: 1000,
		Currency:           enums.CurrencyALL,
		Inventory:          2,
	}
	if err := fx.db.Create(content).Error; err != nil {
		t.Fatalf("seed content: %v", err)
	}

	initial := enums.ConditionGradeExcellent
	rental := &models.Rental{
		ID:               uuid.New(),
		BuyerID:          uuid.New(),
		ContentID:        content.ID,
		OrderItemID:      uuid.New(),
		Mode:             enums.DeliveryModeHardcopy,
		Tier:             enums.RentalTierMediumTerm,
		State:            enums.RentalStateActive,
		FeeCents:         250,
		GuaranteeCents:   800,
		Currency:         enums.CurrencyALL,
		StartsAt:         endsAt.Add(-14 * 24 * time.Hour),
		EndsAt:           endsAt,
		InitialCondition: &initial,
	}
	if err := fx.db.Create(rental).Error; err != nil {
		t.Fatalf("seed rental: %v", err)
	}
	return rental
}

func returnInput(rental *models.Rental, grade enums.ConditionGrade) ReturnInput {
	return ReturnInput{
		RentalID:  rental.ID,
		BuyerID:   rental.BuyerID,
		ContentID: rental.ContentID,
		Grade:     grade,
	}
}

func (fx *settlementFixture) eventKinds(t *testing.T, rentalID uuid.UUID) []enums.AuditEventKind {
	t.Helper()
	var kinds []enums.AuditEventKind
	if err := fx.db.Model(&models.AuditEvent{}).
		Where("rental_id = ?", rentalID).
		Order("created_at ASC").
		Pluck("kind", &kinds).Error; err != nil {
		t.Fatalf("load kinds: %v", err)
	}
	return kinds
}

func TestReturnOnTimeExcellent(t *testing.T) {
	fx := newSettlementFixture(t)
	rental := fx.seedHardcopyRental(t, fx.now.Add(24*time.Hour))

	settled, err := fx.svc.Return(context.Background(), returnInput(rental, enums.ConditionGradeExcellent))
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if settled.Breakdown.RefundCents != 800 {
		t.Fatalf("refund = %d, want the full guarantee", settled.Breakdown.RefundCents)
	}

	var stored models.Rental
	if err := fx.db.First(&stored, "id = ?", rental.ID).Error; err != nil {
		t.Fatalf("reload rental: %v", err)
	}
	if stored.State != enums.RentalStateReturned || !stored.Returned {
		t.Fatalf("state = %s returned = %v", stored.State, stored.Returned)
	}
	if stored.RefundCents == nil || *stored.RefundCents != 800 {
		t.Fatal("refund not persisted")
	}
	if stored.ReturnCondition == nil || *stored.ReturnCondition != enums.ConditionGradeExcellent {
		t.Fatal("return condition not persisted")
	}

	var content models.Content
	if err := fx.db.First(&content, "id = ?", rental.ContentID).Error; err != nil {
		t.Fatalf("reload content: %v", err)
	}
	if content.Inventory != 3 {
		t.Fatalf("inventory = %d, want 3 after restore", content.Inventory)
	}

	kinds := fx.eventKinds(t, rental.ID)
	want := []enums.AuditEventKind{
		enums.AuditEventBookReturned,
		enums.AuditEventGuaranteeRefunded,
		enums.AuditEventRentalCompleted,
	}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", kinds, want)
		}
	}
}

func TestReturnLateGoodWritesFullTrail(t *testing.T) {
	fx := newSettlementFixture(t)
	rental := fx.seedHardcopyRental(t, fx.now.Add(-5*24*time.Hour))

	notes := "uji ka dëmtuar kapakun"
	input := returnInput(rental, enums.ConditionGradeGood)
	input.DamageNotes = &notes

	settled, err := fx.svc.Return(context.Background(), input)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if settled.Breakdown.RefundCents != 595 {
		t.Fatalf("refund = %d, want 595", settled.Breakdown.RefundCents)
	}
	if settled.Breakdown.DaysLate != 5 || settled.Breakdown.LateFeeCents != 125 {
		t.Fatalf("late = %d days / %d cents, want 5 / 125", settled.Breakdown.DaysLate, settled.Breakdown.LateFeeCents)
	}

	kinds := fx.eventKinds(t, rental.ID)
	want := []enums.AuditEventKind{
		enums.AuditEventBookReturned,
		enums.AuditEventDamageAssessed,
		enums.AuditEventLateFeeCharged,
		enums.AuditEventGuaranteeRefunded,
		enums.AuditEventRentalCompleted,
	}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", kinds, want)
		}
	}
}

func TestReturnIsSettledOnlyOnce(t *testing.T) {
	fx := newSettlementFixture(t)
	rental := fx.seedHardcopyRental(t, fx.now.Add(24*time.Hour))

	if _, err := fx.svc.Return(context.Background(), returnInput(rental, enums.ConditionGradeGood)); err != nil {
		t.Fatalf("first return: %v", err)
	}
	_, err := fx.svc.Return(context.Background(), returnInput(rental, enums.ConditionGradeDamaged))
	if !pkgerrors.IsCode(err, pkgerrors.CodeAlreadyReturned) {
		t.Fatalf("err = %v, want ALREADY_RETURNED", err)
	}

	// Inventory restored exactly once.
	var content models.Content
	if err := fx.db.First(&content, "id = ?", rental.ContentID).Error; err != nil {
		t.Fatalf("reload content: %v", err)
	}
	if content.Inventory != 3 {
		t.Fatalf("inventory = %d, want 3", content.Inventory)
	}
}

func TestReturnAcceptsExpiredRental(t *testing.T) {
	fx := newSettlementFixture(t)
	rental := fx.seedHardcopyRental(t, fx.now.Add(-10*24*time.Hour))
	if err := fx.db.Model(rental).Update("state", enums.RentalStateExpired).Error; err != nil {
		t.Fatalf("expire rental: %v", err)
	}

	settled, err := fx.svc.Return(context.Background(), returnInput(rental, enums.ConditionGradeFair))
	if err != nil {
		t.Fatalf("return after expiry: %v", err)
	}
	// 600 condition refund minus 10 days at 25 leaves 350.
	if settled.Breakdown.RefundCents != 350 {
		t.Fatalf("refund = %d, want 350", settled.Breakdown.RefundCents)
	}

	var stored models.Rental
	if err := fx.db.First(&stored, "id = ?", rental.ID).Error; err != nil {
		t.Fatalf("reload rental: %v", err)
	}
	if stored.State != enums.RentalStateReturned {
		t.Fatalf("state = %s, want returned", stored.State)
	}
}

func TestReturnRejectsWrongRental(t *testing.T) {
	fx := newSettlementFixture(t)
	rental := fx.seedHardcopyRental(t, fx.now.Add(24*time.Hour))

	wrongBuyer := returnInput(rental, enums.ConditionGradeGood)
	wrongBuyer.BuyerID = uuid.New()
	if _, err := fx.svc.Return(context.Background(), wrongBuyer); !pkgerrors.IsCode(err, pkgerrors.CodeRentalNotFound) {
		t.Fatalf("err = %v, want RENTAL_NOT_FOUND", err)
	}

	// Digital rentals have nothing to hand back.
	ebook := &models.Rental{
		ID: uuid.New(), BuyerID: uuid.New(), ContentID: rental.ContentID, OrderItemID: uuid.New(),
		Mode: enums.DeliveryModeEbook, Tier: enums.RentalTierTimeLimited,
		State: enums.RentalStateActive, FeeCents: 600, Currency: enums.CurrencyALL,
		StartsAt: fx.now.Add(-time.Hour), EndsAt: fx.now.Add(6 * 24 * time.Hour),
	}
	if err := fx.db.Create(ebook).Error; err != nil {
		t.Fatalf("seed ebook rental: %v", err)
	}
	if _, err := fx.svc.Return(context.Background(), returnInput(ebook, enums.ConditionGradeGood)); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("err = %v, want VALIDATION_ERROR", err)
	}
}
